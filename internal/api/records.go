package api

import (
	"net/http"
	"strconv"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/ashureev/healthjournal/internal/records"
	"github.com/go-chi/chi/v5"
)

// RecordsHandler exposes the four health trackers.
type RecordsHandler struct {
	*Handler
	tracker *records.Tracker
}

// NewRecordsHandler creates a records handler.
func NewRecordsHandler(base *Handler, tracker *records.Tracker) *RecordsHandler {
	return &RecordsHandler{Handler: base, tracker: tracker}
}

// RegisterRoutes registers the tracker routes.
func (h *RecordsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/records", func(r chi.Router) {
		r.Get("/symptoms", h.ListSymptoms)
		r.Post("/symptoms", h.AddSymptom)
		r.Get("/moods", h.ListMoods)
		r.Post("/moods", h.AddMood)
		r.Get("/meals", h.ListMeals)
		r.Post("/meals", h.AddMeal)
		r.Get("/medications", h.ListMedications)
		r.Post("/medications", h.AddMedication)
	})
}

// limitParam parses ?limit. Zero means the tracker default.
func limitParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 500 {
		return 0, false
	}
	return n, true
}

// list handles the shared shape of every listing route.
func list[T any](h *RecordsHandler, w http.ResponseWriter, r *http.Request, fetch func(userID string, limit int) ([]T, error)) {
	limit, ok := limitParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	out, err := fetch(identity.UserIDFromContext(r.Context()), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"records": out})
}

// add handles the shared shape of every create route.
func add[In, Out any](h *RecordsHandler, w http.ResponseWriter, r *http.Request, store func(userID string, in In) (Out, error)) {
	var in In
	if !decode(w, r, &in) {
		return
	}
	rec, err := store(identity.UserIDFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, rec)
}

// ListSymptoms returns the user's most recent symptom records.
func (h *RecordsHandler) ListSymptoms(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, func(uid string, n int) ([]domain.SymptomRecord, error) {
		return h.tracker.ListSymptoms(r.Context(), uid, n)
	})
}

// AddSymptom validates and stores a symptom record.
func (h *RecordsHandler) AddSymptom(w http.ResponseWriter, r *http.Request) {
	add(h, w, r, func(uid string, in records.SymptomInput) (domain.SymptomRecord, error) {
		return h.tracker.AddSymptom(r.Context(), uid, in)
	})
}

// ListMoods returns the user's most recent mood entries.
func (h *RecordsHandler) ListMoods(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, func(uid string, n int) ([]domain.MoodRecord, error) {
		return h.tracker.ListMoods(r.Context(), uid, n)
	})
}

// AddMood validates and stores a mood entry.
func (h *RecordsHandler) AddMood(w http.ResponseWriter, r *http.Request) {
	add(h, w, r, func(uid string, in records.MoodInput) (domain.MoodRecord, error) {
		return h.tracker.AddMood(r.Context(), uid, in)
	})
}

// ListMeals returns the user's most recent meals.
func (h *RecordsHandler) ListMeals(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, func(uid string, n int) ([]domain.MealRecord, error) {
		return h.tracker.ListMeals(r.Context(), uid, n)
	})
}

// AddMeal validates and stores a meal.
func (h *RecordsHandler) AddMeal(w http.ResponseWriter, r *http.Request) {
	add(h, w, r, func(uid string, in records.MealInput) (domain.MealRecord, error) {
		return h.tracker.AddMeal(r.Context(), uid, in)
	})
}

// ListMedications returns the user's most recent medication doses.
func (h *RecordsHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, func(uid string, n int) ([]domain.MedicationRecord, error) {
		return h.tracker.ListMedications(r.Context(), uid, n)
	})
}

// AddMedication validates and stores a medication dose.
func (h *RecordsHandler) AddMedication(w http.ResponseWriter, r *http.Request) {
	add(h, w, r, func(uid string, in records.MedicationInput) (domain.MedicationRecord, error) {
		return h.tracker.AddMedication(r.Context(), uid, in)
	})
}
