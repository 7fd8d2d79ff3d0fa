package insights

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/store"
)

func intp(n int) *int { return &n }

func TestSummarizeEmptyWindowHasNoCards(t *testing.T) {
	t.Parallel()

	s := Summarize(&Window{}, DefaultWindowDays)
	if len(s.Cards) != 0 || s.AverageMood != nil || s.Counts != (Counts{}) {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}

func TestSummarizeMoodAverageCountsUnratedAsZero(t *testing.T) {
	t.Parallel()

	w := &Window{Moods: []domain.MoodRecord{
		{MoodName: "Happy", MoodValue: intp(8)},
		{MoodName: "Tired"},
		{MoodName: "Calm", MoodValue: intp(7)},
	}}
	s := Summarize(w, DefaultWindowDays)

	if s.AverageMood == nil || *s.AverageMood != 5 {
		t.Fatalf("expected average 5, got %v", s.AverageMood)
	}
	if len(s.Cards) != 1 || s.Cards[0].Title != "Mood Trend" {
		t.Fatalf("unexpected cards %+v", s.Cards)
	}
	want := "Your average mood rating over the last 30 days is 5.0/10."
	if s.Cards[0].Content != want {
		t.Fatalf("expected %q, got %q", want, s.Cards[0].Content)
	}
}

func TestSummarizeModesPreferFirstSeenOnTies(t *testing.T) {
	t.Parallel()

	w := &Window{
		Symptoms: []domain.SymptomRecord{
			{SymptomName: "Nausea"},
			{SymptomName: "Headache"},
			{SymptomName: "Headache"},
			{SymptomName: "Nausea"},
		},
		Meals: []domain.MealRecord{
			{MealType: "dinner"},
			{MealType: "lunch"},
		},
	}
	s := Summarize(w, DefaultWindowDays)

	if s.TopSymptom != "Nausea" || s.TopSymptomCount != 2 {
		t.Fatalf("expected Nausea x2, got %s x%d", s.TopSymptom, s.TopSymptomCount)
	}
	if s.TopMealType != "dinner" {
		t.Fatalf("expected dinner, got %s", s.TopMealType)
	}

	titles := make([]string, len(s.Cards))
	for i, c := range s.Cards {
		titles[i] = c.Title
	}
	if strings.Join(titles, ",") != "Most Common Symptom,Eating Patterns" {
		t.Fatalf("unexpected card order %v", titles)
	}
	if s.Cards[0].Content != "Nausea occurred 2 times in the last 30 days." {
		t.Fatalf("unexpected symptom card %q", s.Cards[0].Content)
	}
	if s.Cards[1].Content != "You've logged 2 meals this month. Most common: dinner." {
		t.Fatalf("unexpected meal card %q", s.Cards[1].Content)
	}
}

type failingStore struct {
	store.RecordStore
}

func (failingStore) ListSymptoms(context.Context, string, domain.RecordQuery) ([]domain.SymptomRecord, error) {
	return []domain.SymptomRecord{}, nil
}

func (failingStore) ListMoods(context.Context, string, domain.RecordQuery) ([]domain.MoodRecord, error) {
	return nil, errors.New("timeout")
}

func (failingStore) ListMeals(context.Context, string, domain.RecordQuery) ([]domain.MealRecord, error) {
	return []domain.MealRecord{}, nil
}

func (failingStore) ListMedications(context.Context, string, domain.RecordQuery) ([]domain.MedicationRecord, error) {
	return []domain.MedicationRecord{}, nil
}

func TestAnalyzeFailsWhenAnyKindFails(t *testing.T) {
	t.Parallel()

	_, err := NewAnalyzer(failingStore{}).Analyze(context.Background(), "u1")
	if !errors.Is(err, ErrStore) || !strings.Contains(err.Error(), "moods") {
		t.Fatalf("expected wrapped moods failure, got %v", err)
	}
}

func seededStore(t *testing.T, now time.Time) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "insights.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	recent := now.Add(-24 * time.Hour)
	stale := now.AddDate(0, 0, -45)
	notes := "after run"

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	must(s.InsertSymptom(ctx, &domain.SymptomRecord{ID: "s1", UserID: "u1", SymptomName: "Headache", Severity: intp(5), RecordedAt: recent, CreatedAt: recent}))
	must(s.InsertSymptom(ctx, &domain.SymptomRecord{ID: "s2", UserID: "u1", SymptomName: "Cough", RecordedAt: stale, CreatedAt: stale}))
	must(s.InsertSymptom(ctx, &domain.SymptomRecord{ID: "s3", UserID: "u2", SymptomName: "Fever", RecordedAt: recent, CreatedAt: recent}))
	must(s.InsertMood(ctx, &domain.MoodRecord{ID: "m1", UserID: "u1", MoodName: "Good", MoodValue: intp(9), RecordedAt: recent, CreatedAt: recent}))
	must(s.InsertMeal(ctx, &domain.MealRecord{ID: "f1", UserID: "u1", MealType: "lunch", FoodItems: "rice, beans", Calories: intp(1200), Notes: &notes, RecordedAt: recent, CreatedAt: recent}))
	must(s.InsertMeal(ctx, &domain.MealRecord{ID: "f2", UserID: "u1", MealType: "snack", FoodItems: "apple", Calories: intp(95), RecordedAt: recent, CreatedAt: recent}))
	must(s.InsertMedication(ctx, &domain.MedicationRecord{ID: "d1", UserID: "u1", MedicationName: "Ibuprofen", Dosage: "200mg", Frequency: "as needed", TakenAt: stale, CreatedAt: stale}))
	return s
}

func TestAnalyzeUsesTrailingWindowAndUserScope(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	a := NewAnalyzer(seededStore(t, now), WithClock(func() time.Time { return now }))

	s, err := a.Analyze(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	want := Counts{Symptoms: 1, Moods: 1, Meals: 2, Medications: 0}
	if s.Counts != want {
		t.Fatalf("expected counts %+v, got %+v", want, s.Counts)
	}
	if s.TopSymptom != "Headache" || !s.Since.Equal(now.AddDate(0, 0, -30)) {
		t.Fatalf("unexpected summary %+v", s)
	}
}

type memoryUploader struct {
	key  string
	data []byte
}

func (m *memoryUploader) UploadReport(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.key, m.data = key, data
	return "https://reports.example.com/" + key + "?sig=abc", nil
}

func TestExportInlineCSV(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	a := NewAnalyzer(seededStore(t, now), WithClock(func() time.Time { return now }))
	e := NewExporter(a, nil, nil)

	r, err := e.Export(context.Background(), domain.User{ID: "u1", Email: "a@b.co", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if r.URL != "" || len(r.Data) == 0 || r.FileName != "health-report-2026-06-15.csv" {
		t.Fatalf("unexpected report %+v", r)
	}

	rows, err := csv.NewReader(bytes.NewReader(r.Data)).ReadAll()
	if err != nil {
		t.Fatalf("report is not valid CSV: %v", err)
	}
	if strings.Join(rows[0], ",") != "kind,time,name,value,details,notes" {
		t.Fatalf("unexpected header %v", rows[0])
	}

	var sawCalories, sawMeal bool
	for _, row := range rows {
		if row[0] == "summary" && row[2] == "total_calories" && row[3] == "1,295" {
			sawCalories = true
		}
		if row[0] == "meals" && row[2] == "lunch" && row[4] == "rice, beans" && row[5] == "after run" {
			sawMeal = true
		}
		if row[0] == "symptoms" && row[2] == "Cough" {
			t.Fatal("record outside the window exported")
		}
	}
	if !sawCalories || !sawMeal {
		t.Fatalf("missing expected rows in %v", rows)
	}
}

func TestExportUploadsWhenConfigured(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	up := &memoryUploader{}
	a := NewAnalyzer(seededStore(t, now), WithClock(func() time.Time { return now }))

	r, err := NewExporter(a, up, nil).Export(context.Background(), domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if r.Data != nil || !strings.HasPrefix(r.URL, "https://reports.example.com/reports/u1/") {
		t.Fatalf("expected uploaded report, got %+v", r)
	}
	if up.key != "reports/u1/health-report-2026-06-15.csv" || len(up.data) == 0 {
		t.Fatalf("unexpected upload %s (%d bytes)", up.key, len(up.data))
	}
}

func TestExportNeutralizesFormulaCells(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "formula.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	recent := now.Add(-time.Hour)
	notes := "@SUM(A1:A9)"
	if err := s.InsertSymptom(context.Background(), &domain.SymptomRecord{
		ID: "s1", UserID: "u1", SymptomName: `=HYPERLINK("http://evil.example","x")`,
		Notes: &notes, RecordedAt: recent, CreatedAt: recent,
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	a := NewAnalyzer(s, WithClock(func() time.Time { return now }))
	r, err := NewExporter(a, nil, nil).Export(context.Background(), domain.User{ID: "u1", FirstName: "+Ada"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(r.Data)).ReadAll()
	if err != nil {
		t.Fatalf("report is not valid CSV: %v", err)
	}

	var sawSymptom, sawUser bool
	for _, row := range rows[1:] {
		for _, cell := range row {
			if cell != "" && strings.ContainsRune("=+-@", rune(cell[0])) {
				t.Fatalf("cell %q would be evaluated as a formula", cell)
			}
		}
		if row[0] == "symptoms" && row[2] == `'=HYPERLINK("http://evil.example","x")` && row[5] == "'@SUM(A1:A9)" {
			sawSymptom = true
		}
		if row[2] == "user" && row[3] == "'+Ada" {
			sawUser = true
		}
	}
	if !sawSymptom || !sawUser {
		t.Fatalf("expected quoted cells in %v", rows)
	}
}
