// Package supabase stores health records in a Supabase project through its
// PostgREST API.
package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// TableClient opens query builders on named tables. *supabase.Client and
// *postgrest.Client both satisfy it.
type TableClient interface {
	From(table string) *postgrest.QueryBuilder
}

// NewClient connects to a Supabase project with a service role key.
func NewClient(url, key string) (*supa.Client, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// RecordStore implements store.RecordStore against the symptoms, moods,
// meals and medications tables. Every query filters on user_id; row level
// security on the project is expected to enforce the same.
type RecordStore struct {
	client TableClient
}

// NewRecordStore creates a record store over client.
func NewRecordStore(client TableClient) *RecordStore {
	return &RecordStore{client: client}
}

func (s *RecordStore) list(ctx context.Context, kind domain.RecordKind, userID string, q domain.RecordQuery, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeCol := kind.TimeColumn()
	f := s.client.From(string(kind)).
		Select("*", "", false).
		Eq("user_id", userID)
	if !q.Since.IsZero() {
		f = f.Gte(timeCol, q.Since.UTC().Format(time.RFC3339))
	}
	f = f.Order(timeCol, &postgrest.OrderOpts{Ascending: false})
	if q.Limit > 0 {
		f = f.Limit(q.Limit, "")
	}

	if _, err := f.ExecuteTo(out); err != nil {
		return fmt.Errorf("select %s: %w", kind, err)
	}
	return nil
}

func (s *RecordStore) insert(ctx context.Context, kind domain.RecordKind, row any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.From(string(kind)).
		Insert(row, false, "", "representation", "").
		ExecuteTo(out); err != nil {
		return fmt.Errorf("insert %s: %w", kind, err)
	}
	return nil
}

// ListSymptoms lists a user's symptoms, newest first.
func (s *RecordStore) ListSymptoms(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.SymptomRecord, error) {
	out := []domain.SymptomRecord{}
	if err := s.list(ctx, domain.KindSymptom, userID, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertSymptom stores a symptom and refreshes it with the stored row.
func (s *RecordStore) InsertSymptom(ctx context.Context, rec *domain.SymptomRecord) error {
	var rows []domain.SymptomRecord
	if err := s.insert(ctx, domain.KindSymptom, rec, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*rec = rows[0]
	}
	return nil
}

// ListMoods lists a user's moods, newest first.
func (s *RecordStore) ListMoods(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MoodRecord, error) {
	out := []domain.MoodRecord{}
	if err := s.list(ctx, domain.KindMood, userID, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertMood stores a mood and refreshes it with the stored row.
func (s *RecordStore) InsertMood(ctx context.Context, rec *domain.MoodRecord) error {
	var rows []domain.MoodRecord
	if err := s.insert(ctx, domain.KindMood, rec, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*rec = rows[0]
	}
	return nil
}

// ListMeals lists a user's meals, newest first.
func (s *RecordStore) ListMeals(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MealRecord, error) {
	out := []domain.MealRecord{}
	if err := s.list(ctx, domain.KindMeal, userID, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertMeal stores a meal and refreshes it with the stored row.
func (s *RecordStore) InsertMeal(ctx context.Context, rec *domain.MealRecord) error {
	var rows []domain.MealRecord
	if err := s.insert(ctx, domain.KindMeal, rec, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*rec = rows[0]
	}
	return nil
}

// ListMedications lists a user's medication doses, newest first.
func (s *RecordStore) ListMedications(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MedicationRecord, error) {
	out := []domain.MedicationRecord{}
	if err := s.list(ctx, domain.KindMedication, userID, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertMedication stores a medication dose and refreshes it with the stored row.
func (s *RecordStore) InsertMedication(ctx context.Context, rec *domain.MedicationRecord) error {
	var rows []domain.MedicationRecord
	if err := s.insert(ctx, domain.KindMedication, rec, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*rec = rows[0]
	}
	return nil
}
