// Package records implements the symptom, mood, meal and medication trackers.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultListLimit is how many records a listing returns when no limit is given.
const DefaultListLimit = 50

// ErrStore marks failures of the underlying record store.
var ErrStore = errors.New("record store failure")

// SymptomInput is a symptom submission.
type SymptomInput struct {
	SymptomName string     `json:"symptom_name" validate:"required"`
	Severity    *int       `json:"severity" validate:"omitempty,min=1,max=10"`
	Notes       string     `json:"notes"`
	RecordedAt  *time.Time `json:"recorded_at"`
}

// MoodInput is a mood submission.
type MoodInput struct {
	MoodName   string     `json:"mood_name" validate:"required"`
	MoodValue  *int       `json:"mood_value" validate:"omitempty,min=1,max=10"`
	Notes      string     `json:"notes"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// MealInput is a meal submission.
type MealInput struct {
	MealType   string     `json:"meal_type" validate:"required,oneof=breakfast lunch dinner snack"`
	FoodItems  string     `json:"food_items" validate:"required"`
	Calories   *int       `json:"calories" validate:"omitempty,min=0"`
	Notes      string     `json:"notes"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// MedicationInput is a medication dose submission.
type MedicationInput struct {
	MedicationName string     `json:"medication_name" validate:"required"`
	Dosage         string     `json:"dosage" validate:"required"`
	Frequency      string     `json:"frequency" validate:"required"`
	Notes          string     `json:"notes"`
	TakenAt        *time.Time `json:"taken_at"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithListLimit sets the default listing size.
func WithListLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.listLimit = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithCreateHook registers a function called after every stored record.
func WithCreateHook(fn func(domain.RecordKind)) Option {
	return func(t *Tracker) { t.onCreate = fn }
}

// Tracker validates record submissions and reads and writes them through a
// RecordStore. Invalid submissions never reach the store.
type Tracker struct {
	store     store.RecordStore
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
	listLimit int
	onCreate  func(domain.RecordKind)
}

// NewTracker creates a tracker over s.
func NewTracker(s store.RecordStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:     s,
		validate:  newValidator(),
		now:       time.Now,
		newID:     uuid.NewString,
		listLimit: DefaultListLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) limit(n int) int {
	if n <= 0 {
		return t.listLimit
	}
	return n
}

func (t *Tracker) recordedAt(at *time.Time) time.Time {
	if at == nil || at.IsZero() {
		return t.now().UTC()
	}
	return at.UTC()
}

func (t *Tracker) created(kind domain.RecordKind) {
	if t.onCreate != nil {
		t.onCreate(kind)
	}
}

func optionalNotes(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// ListSymptoms returns the user's most recent symptoms.
func (t *Tracker) ListSymptoms(ctx context.Context, userID string, limit int) ([]domain.SymptomRecord, error) {
	out, err := t.store.ListSymptoms(ctx, userID, domain.RecordQuery{Limit: t.limit(limit)})
	if err != nil {
		return nil, storeErr("list symptoms", err)
	}
	return out, nil
}

// AddSymptom validates and stores a symptom.
func (t *Tracker) AddSymptom(ctx context.Context, userID string, in SymptomInput) (domain.SymptomRecord, error) {
	in.SymptomName = strings.TrimSpace(in.SymptomName)
	if err := validateInput(t.validate, in); err != nil {
		return domain.SymptomRecord{}, err
	}

	rec := domain.SymptomRecord{
		ID:          t.newID(),
		UserID:      userID,
		SymptomName: in.SymptomName,
		Severity:    in.Severity,
		Notes:       optionalNotes(in.Notes),
		RecordedAt:  t.recordedAt(in.RecordedAt),
		CreatedAt:   t.now().UTC(),
	}
	if err := t.store.InsertSymptom(ctx, &rec); err != nil {
		return domain.SymptomRecord{}, storeErr("add symptom", err)
	}
	t.created(domain.KindSymptom)
	return rec, nil
}

// ListMoods returns the user's most recent moods.
func (t *Tracker) ListMoods(ctx context.Context, userID string, limit int) ([]domain.MoodRecord, error) {
	out, err := t.store.ListMoods(ctx, userID, domain.RecordQuery{Limit: t.limit(limit)})
	if err != nil {
		return nil, storeErr("list moods", err)
	}
	return out, nil
}

// AddMood validates and stores a mood.
func (t *Tracker) AddMood(ctx context.Context, userID string, in MoodInput) (domain.MoodRecord, error) {
	in.MoodName = strings.TrimSpace(in.MoodName)
	if err := validateInput(t.validate, in); err != nil {
		return domain.MoodRecord{}, err
	}

	rec := domain.MoodRecord{
		ID:         t.newID(),
		UserID:     userID,
		MoodName:   in.MoodName,
		MoodValue:  in.MoodValue,
		Notes:      optionalNotes(in.Notes),
		RecordedAt: t.recordedAt(in.RecordedAt),
		CreatedAt:  t.now().UTC(),
	}
	if err := t.store.InsertMood(ctx, &rec); err != nil {
		return domain.MoodRecord{}, storeErr("add mood", err)
	}
	t.created(domain.KindMood)
	return rec, nil
}

// ListMeals returns the user's most recent meals.
func (t *Tracker) ListMeals(ctx context.Context, userID string, limit int) ([]domain.MealRecord, error) {
	out, err := t.store.ListMeals(ctx, userID, domain.RecordQuery{Limit: t.limit(limit)})
	if err != nil {
		return nil, storeErr("list meals", err)
	}
	return out, nil
}

// AddMeal validates and stores a meal.
func (t *Tracker) AddMeal(ctx context.Context, userID string, in MealInput) (domain.MealRecord, error) {
	in.MealType = strings.ToLower(strings.TrimSpace(in.MealType))
	in.FoodItems = strings.TrimSpace(in.FoodItems)
	if err := validateInput(t.validate, in); err != nil {
		return domain.MealRecord{}, err
	}

	rec := domain.MealRecord{
		ID:         t.newID(),
		UserID:     userID,
		MealType:   in.MealType,
		FoodItems:  in.FoodItems,
		Calories:   in.Calories,
		Notes:      optionalNotes(in.Notes),
		RecordedAt: t.recordedAt(in.RecordedAt),
		CreatedAt:  t.now().UTC(),
	}
	if err := t.store.InsertMeal(ctx, &rec); err != nil {
		return domain.MealRecord{}, storeErr("add meal", err)
	}
	t.created(domain.KindMeal)
	return rec, nil
}

// ListMedications returns the user's most recent medication doses.
func (t *Tracker) ListMedications(ctx context.Context, userID string, limit int) ([]domain.MedicationRecord, error) {
	out, err := t.store.ListMedications(ctx, userID, domain.RecordQuery{Limit: t.limit(limit)})
	if err != nil {
		return nil, storeErr("list medications", err)
	}
	return out, nil
}

// AddMedication validates and stores a medication dose.
func (t *Tracker) AddMedication(ctx context.Context, userID string, in MedicationInput) (domain.MedicationRecord, error) {
	in.MedicationName = strings.TrimSpace(in.MedicationName)
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Frequency = strings.TrimSpace(in.Frequency)
	if err := validateInput(t.validate, in); err != nil {
		return domain.MedicationRecord{}, err
	}

	rec := domain.MedicationRecord{
		ID:             t.newID(),
		UserID:         userID,
		MedicationName: in.MedicationName,
		Dosage:         in.Dosage,
		Frequency:      in.Frequency,
		Notes:          optionalNotes(in.Notes),
		TakenAt:        t.recordedAt(in.TakenAt),
		CreatedAt:      t.now().UTC(),
	}
	if err := t.store.InsertMedication(ctx, &rec); err != nil {
		return domain.MedicationRecord{}, storeErr("add medication", err)
	}
	t.created(domain.KindMedication)
	return rec, nil
}
