package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/shared"
)

// listQuery builds the shared listing query for a record table.
func listQuery(kind domain.RecordKind, columns, userID string, q domain.RecordQuery) (string, []any) {
	timeCol := kind.TimeColumn()
	query := `SELECT ` + columns + ` FROM ` + string(kind) + ` WHERE user_id = ?`
	args := []any{userID}
	if !q.Since.IsZero() {
		query += ` AND ` + timeCol + ` >= ?`
		args = append(args, toMillis(q.Since))
	}
	query += ` ORDER BY ` + timeCol + ` DESC, created_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	return query, args
}

// queryRows runs query and calls scan for every row.
func (s *SQLiteStore) queryRows(ctx context.Context, what, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", what, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close rows", "what", what, "error", closeErr)
		}
	}()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s row: %w", what, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", what, err)
	}
	return nil
}

func (s *SQLiteStore) insert(ctx context.Context, what, query string, args ...any) error {
	err := shared.RetryOnConflict(ctx, s.retry, "insert "+what, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	return nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

// ListSymptoms lists a user's symptoms, newest first.
func (s *SQLiteStore) ListSymptoms(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.SymptomRecord, error) {
	query, args := listQuery(domain.KindSymptom, `id, user_id, symptom_name, severity, notes, recorded_at, created_at`, userID, q)

	out := []domain.SymptomRecord{}
	err := s.queryRows(ctx, "symptoms", query, args, func(rows *sql.Rows) error {
		var r domain.SymptomRecord
		var severity sql.NullInt64
		var notes sql.NullString
		var recordedAt, createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.SymptomName, &severity, &notes, &recordedAt, &createdAt); err != nil {
			return err
		}
		r.Severity = intPtr(severity)
		r.Notes = stringPtr(notes)
		r.RecordedAt = fromMillis(recordedAt)
		r.CreatedAt = fromMillis(createdAt)
		out = append(out, r)
		return nil
	})
	return out, err
}

// InsertSymptom stores a symptom.
func (s *SQLiteStore) InsertSymptom(ctx context.Context, r *domain.SymptomRecord) error {
	return s.insert(ctx, "symptom",
		`INSERT INTO symptoms (id, user_id, symptom_name, severity, notes, recorded_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.SymptomName, nullInt(r.Severity), nullString(r.Notes), toMillis(r.RecordedAt), toMillis(r.CreatedAt),
	)
}

// ListMoods lists a user's moods, newest first.
func (s *SQLiteStore) ListMoods(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MoodRecord, error) {
	query, args := listQuery(domain.KindMood, `id, user_id, mood_name, mood_value, notes, recorded_at, created_at`, userID, q)

	out := []domain.MoodRecord{}
	err := s.queryRows(ctx, "moods", query, args, func(rows *sql.Rows) error {
		var r domain.MoodRecord
		var value sql.NullInt64
		var notes sql.NullString
		var recordedAt, createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.MoodName, &value, &notes, &recordedAt, &createdAt); err != nil {
			return err
		}
		r.MoodValue = intPtr(value)
		r.Notes = stringPtr(notes)
		r.RecordedAt = fromMillis(recordedAt)
		r.CreatedAt = fromMillis(createdAt)
		out = append(out, r)
		return nil
	})
	return out, err
}

// InsertMood stores a mood.
func (s *SQLiteStore) InsertMood(ctx context.Context, r *domain.MoodRecord) error {
	return s.insert(ctx, "mood",
		`INSERT INTO moods (id, user_id, mood_name, mood_value, notes, recorded_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.MoodName, nullInt(r.MoodValue), nullString(r.Notes), toMillis(r.RecordedAt), toMillis(r.CreatedAt),
	)
}

// ListMeals lists a user's meals, newest first.
func (s *SQLiteStore) ListMeals(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MealRecord, error) {
	query, args := listQuery(domain.KindMeal, `id, user_id, meal_type, food_items, calories, notes, recorded_at, created_at`, userID, q)

	out := []domain.MealRecord{}
	err := s.queryRows(ctx, "meals", query, args, func(rows *sql.Rows) error {
		var r domain.MealRecord
		var calories sql.NullInt64
		var notes sql.NullString
		var recordedAt, createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.MealType, &r.FoodItems, &calories, &notes, &recordedAt, &createdAt); err != nil {
			return err
		}
		r.Calories = intPtr(calories)
		r.Notes = stringPtr(notes)
		r.RecordedAt = fromMillis(recordedAt)
		r.CreatedAt = fromMillis(createdAt)
		out = append(out, r)
		return nil
	})
	return out, err
}

// InsertMeal stores a meal.
func (s *SQLiteStore) InsertMeal(ctx context.Context, r *domain.MealRecord) error {
	return s.insert(ctx, "meal",
		`INSERT INTO meals (id, user_id, meal_type, food_items, calories, notes, recorded_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.MealType, r.FoodItems, nullInt(r.Calories), nullString(r.Notes), toMillis(r.RecordedAt), toMillis(r.CreatedAt),
	)
}

// ListMedications lists a user's medications, newest first.
func (s *SQLiteStore) ListMedications(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MedicationRecord, error) {
	query, args := listQuery(domain.KindMedication, `id, user_id, medication_name, dosage, frequency, notes, taken_at, created_at`, userID, q)

	out := []domain.MedicationRecord{}
	err := s.queryRows(ctx, "medications", query, args, func(rows *sql.Rows) error {
		var r domain.MedicationRecord
		var notes sql.NullString
		var takenAt, createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.MedicationName, &r.Dosage, &r.Frequency, &notes, &takenAt, &createdAt); err != nil {
			return err
		}
		r.Notes = stringPtr(notes)
		r.TakenAt = fromMillis(takenAt)
		r.CreatedAt = fromMillis(createdAt)
		out = append(out, r)
		return nil
	})
	return out, err
}

// InsertMedication stores a medication dose.
func (s *SQLiteStore) InsertMedication(ctx context.Context, r *domain.MedicationRecord) error {
	return s.insert(ctx, "medication",
		`INSERT INTO medications (id, user_id, medication_name, dosage, frequency, notes, taken_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.MedicationName, r.Dosage, r.Frequency, nullString(r.Notes), toMillis(r.TakenAt), toMillis(r.CreatedAt),
	)
}
