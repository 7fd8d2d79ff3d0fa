package domain

import "time"

// RecordKind names one of the four health record tables.
type RecordKind string

const (
	KindSymptom    RecordKind = "symptoms"
	KindMood       RecordKind = "moods"
	KindMeal       RecordKind = "meals"
	KindMedication RecordKind = "medications"
)

// RecordKinds lists every kind in display order.
var RecordKinds = []RecordKind{KindSymptom, KindMood, KindMeal, KindMedication}

// Valid reports whether k is a known record kind.
func (k RecordKind) Valid() bool {
	switch k {
	case KindSymptom, KindMood, KindMeal, KindMedication:
		return true
	}
	return false
}

// TimeColumn is the column records of this kind are ordered and windowed by.
func (k RecordKind) TimeColumn() string {
	if k == KindMedication {
		return "taken_at"
	}
	return "recorded_at"
}

// SymptomRecord is a logged symptom.
type SymptomRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SymptomName string    `json:"symptom_name"`
	Severity    *int      `json:"severity"`
	Notes       *string   `json:"notes"`
	RecordedAt  time.Time `json:"recorded_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// MoodRecord is a logged mood.
type MoodRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MoodName   string    `json:"mood_name"`
	MoodValue  *int      `json:"mood_value"`
	Notes      *string   `json:"notes"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// MealRecord is a logged meal.
type MealRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MealType   string    `json:"meal_type"`
	FoodItems  string    `json:"food_items"`
	Calories   *int      `json:"calories"`
	Notes      *string   `json:"notes"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// MedicationRecord is a logged medication dose.
type MedicationRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage"`
	Frequency      string    `json:"frequency"`
	Notes          *string   `json:"notes"`
	TakenAt        time.Time `json:"taken_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecordQuery narrows a record listing. Zero values mean no bound.
type RecordQuery struct {
	Since time.Time
	Limit int
}
