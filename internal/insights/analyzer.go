// Package insights summarizes a user's recent health records.
package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultWindowDays is the trailing window analyzed.
const DefaultWindowDays = 30

// ErrStore marks failures to fetch records for analysis.
var ErrStore = errors.New("record store failure")

// Card is one insight shown on the analysis page.
type Card struct {
	Title   string            `json:"title"`
	Content string            `json:"content"`
	Kind    domain.RecordKind `json:"kind"`
}

// Counts are the number of records of each kind in the window.
type Counts struct {
	Symptoms    int `json:"symptoms"`
	Moods       int `json:"moods"`
	Meals       int `json:"meals"`
	Medications int `json:"medications"`
}

// Summary is the analysis of one user's window.
type Summary struct {
	WindowDays      int       `json:"window_days"`
	Since           time.Time `json:"since"`
	Counts          Counts    `json:"counts"`
	AverageMood     *float64  `json:"average_mood,omitempty"`
	TopSymptom      string    `json:"top_symptom,omitempty"`
	TopSymptomCount int       `json:"top_symptom_count,omitempty"`
	TopMealType     string    `json:"top_meal_type,omitempty"`
	Cards           []Card    `json:"cards"`
}

// Window holds every record of the analyzed period, newest first.
type Window struct {
	Since       time.Time
	Symptoms    []domain.SymptomRecord
	Moods       []domain.MoodRecord
	Meals       []domain.MealRecord
	Medications []domain.MedicationRecord
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWindowDays overrides the analyzed window.
func WithWindowDays(days int) Option {
	return func(a *Analyzer) {
		if days > 0 {
			a.windowDays = days
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// Analyzer computes summaries over a RecordStore.
type Analyzer struct {
	store      store.RecordStore
	windowDays int
	now        func() time.Time
}

// NewAnalyzer creates an analyzer over s.
func NewAnalyzer(s store.RecordStore, opts ...Option) *Analyzer {
	a := &Analyzer{store: s, windowDays: DefaultWindowDays, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch loads all four record kinds for the window in parallel.
func (a *Analyzer) Fetch(ctx context.Context, userID string) (*Window, error) {
	since := a.now().UTC().AddDate(0, 0, -a.windowDays)
	q := domain.RecordQuery{Since: since}
	w := &Window{Since: since}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		w.Symptoms, err = a.store.ListSymptoms(ctx, userID, q)
		return wrapFetch(domain.KindSymptom, err)
	})
	g.Go(func() error {
		var err error
		w.Moods, err = a.store.ListMoods(ctx, userID, q)
		return wrapFetch(domain.KindMood, err)
	})
	g.Go(func() error {
		var err error
		w.Meals, err = a.store.ListMeals(ctx, userID, q)
		return wrapFetch(domain.KindMeal, err)
	})
	g.Go(func() error {
		var err error
		w.Medications, err = a.store.ListMedications(ctx, userID, q)
		return wrapFetch(domain.KindMedication, err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return w, nil
}

func wrapFetch(kind domain.RecordKind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: fetch %s: %w", ErrStore, kind, err)
}

// Analyze fetches the window and summarizes it.
func (a *Analyzer) Analyze(ctx context.Context, userID string) (*Summary, error) {
	w, err := a.Fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(w, a.windowDays), nil
}

// Summarize computes statistics and insight cards from a fetched window.
func Summarize(w *Window, windowDays int) *Summary {
	s := &Summary{
		WindowDays: windowDays,
		Since:      w.Since,
		Counts: Counts{
			Symptoms:    len(w.Symptoms),
			Moods:       len(w.Moods),
			Meals:       len(w.Meals),
			Medications: len(w.Medications),
		},
		Cards: []Card{},
	}

	if len(w.Moods) > 0 {
		// An unrated mood counts as zero.
		total := 0
		for _, m := range w.Moods {
			if m.MoodValue != nil {
				total += *m.MoodValue
			}
		}
		avg := float64(total) / float64(len(w.Moods))
		s.AverageMood = &avg
		s.Cards = append(s.Cards, Card{
			Title:   "Mood Trend",
			Content: fmt.Sprintf("Your average mood rating over the last %d days is %.1f/10.", windowDays, avg),
			Kind:    domain.KindMood,
		})
	}

	if len(w.Symptoms) > 0 {
		names := make([]string, len(w.Symptoms))
		for i, sym := range w.Symptoms {
			names[i] = sym.SymptomName
		}
		s.TopSymptom, s.TopSymptomCount = mode(names)
		s.Cards = append(s.Cards, Card{
			Title:   "Most Common Symptom",
			Content: fmt.Sprintf("%s occurred %d times in the last %d days.", s.TopSymptom, s.TopSymptomCount, windowDays),
			Kind:    domain.KindSymptom,
		})
	}

	if len(w.Meals) > 0 {
		types := make([]string, len(w.Meals))
		for i, m := range w.Meals {
			types[i] = m.MealType
		}
		s.TopMealType, _ = mode(types)
		top := s.TopMealType
		if top == "" {
			top = "N/A"
		}
		s.Cards = append(s.Cards, Card{
			Title:   "Eating Patterns",
			Content: fmt.Sprintf("You've logged %d meals this month. Most common: %s.", len(w.Meals), top),
			Kind:    domain.KindMeal,
		})
	}

	return s
}

// mode returns the most frequent value. Ties go to the value seen first.
func mode(values []string) (string, int) {
	counts := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, bestCount
}
