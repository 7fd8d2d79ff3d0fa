package insights

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/dustin/go-humanize"
)

// ReportContentType is the media type of exported reports.
const ReportContentType = "text/csv"

// Uploader stores a report and returns a link to download it.
type Uploader interface {
	UploadReport(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Report is an exported health report. URL is set when the report was
// uploaded; otherwise Data holds the CSV itself.
type Report struct {
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        string    `json:"size"`
	URL         string    `json:"url,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Data        []byte    `json:"-"`
}

// Exporter renders analysis windows into CSV reports.
type Exporter struct {
	analyzer *Analyzer
	uploader Uploader
	logger   *slog.Logger
}

// NewExporter creates an exporter. uploader may be nil, in which case
// reports are returned inline.
func NewExporter(analyzer *Analyzer, uploader Uploader, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{analyzer: analyzer, uploader: uploader, logger: logger}
}

// Export builds the report for user's current window.
func (e *Exporter) Export(ctx context.Context, user domain.User) (*Report, error) {
	w, err := e.analyzer.Fetch(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	generated := e.analyzer.now().UTC()
	summary := Summarize(w, e.analyzer.windowDays)

	data, err := renderCSV(user, w, summary, generated)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	r := &Report{
		FileName:    fmt.Sprintf("health-report-%s.csv", generated.Format("2006-01-02")),
		ContentType: ReportContentType,
		Size:        humanize.Bytes(uint64(len(data))),
		GeneratedAt: generated,
	}

	if e.uploader == nil {
		r.Data = data
		return r, nil
	}

	key := fmt.Sprintf("reports/%s/%s", user.ID, r.FileName)
	u, err := e.uploader.UploadReport(ctx, key, data, ReportContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: upload report: %w", ErrStore, err)
	}
	r.URL = u
	e.logger.Info("Health report exported", "user_id", user.ID, "size", r.Size)
	return r, nil
}

var reportHeader = []string{"kind", "time", "name", "value", "details", "notes"}

func renderCSV(user domain.User, w *Window, s *Summary, generated time.Time) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	summaryRow := func(field, value string) []string {
		return []string{"summary", "", field, value, "", ""}
	}

	rows := [][]string{
		reportHeader,
		summaryRow("user", user.DisplayName()),
		summaryRow("generated_at", generated.Format(time.RFC3339)),
		summaryRow("window_start", w.Since.Format(time.RFC3339)),
		summaryRow("window_days", strconv.Itoa(s.WindowDays)),
		summaryRow("symptoms_logged", humanize.Comma(int64(s.Counts.Symptoms))),
		summaryRow("mood_entries", humanize.Comma(int64(s.Counts.Moods))),
		summaryRow("meals_tracked", humanize.Comma(int64(s.Counts.Meals))),
		summaryRow("medications", humanize.Comma(int64(s.Counts.Medications))),
	}
	if s.AverageMood != nil {
		rows = append(rows, summaryRow("average_mood", strconv.FormatFloat(*s.AverageMood, 'f', 1, 64)))
	}
	if s.TopSymptom != "" {
		rows = append(rows, summaryRow("top_symptom", fmt.Sprintf("%s (%d)", s.TopSymptom, s.TopSymptomCount)))
	}
	if s.TopMealType != "" {
		rows = append(rows, summaryRow("top_meal_type", s.TopMealType))
	}
	if total, ok := totalCalories(w.Meals); ok {
		rows = append(rows, summaryRow("total_calories", humanize.Comma(int64(total))))
	}

	for _, r := range w.Symptoms {
		rows = append(rows, []string{string(domain.KindSymptom), stamp(r.RecordedAt), r.SymptomName, optInt(r.Severity), "", optString(r.Notes)})
	}
	for _, r := range w.Moods {
		rows = append(rows, []string{string(domain.KindMood), stamp(r.RecordedAt), r.MoodName, optInt(r.MoodValue), "", optString(r.Notes)})
	}
	for _, r := range w.Meals {
		rows = append(rows, []string{string(domain.KindMeal), stamp(r.RecordedAt), r.MealType, optInt(r.Calories), r.FoodItems, optString(r.Notes)})
	}
	for _, r := range w.Medications {
		rows = append(rows, []string{string(domain.KindMedication), stamp(r.TakenAt), r.MedicationName, r.Dosage, r.Frequency, optString(r.Notes)})
	}

	for _, row := range rows[1:] {
		for i, cell := range row {
			row[i] = spreadsheetSafe(cell)
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// spreadsheetSafe prefixes cells that a spreadsheet would evaluate as a
// formula with a single quote so they open as plain text.
func spreadsheetSafe(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + cell
	}
	return cell
}

func totalCalories(meals []domain.MealRecord) (int, bool) {
	total, seen := 0, false
	for _, m := range meals {
		if m.Calories != nil {
			total += *m.Calories
			seen = true
		}
	}
	return total, seen
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
