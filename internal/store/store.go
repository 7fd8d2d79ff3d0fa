// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/healthjournal/internal/domain"
)

// ErrDuplicate is returned when a unique key such as a user's email already exists.
var ErrDuplicate = errors.New("duplicate record")

// RecordStore persists the four health record kinds. Listings are always
// scoped to one user and ordered newest first by the kind's time column.
type RecordStore interface {
	ListSymptoms(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.SymptomRecord, error)
	InsertSymptom(ctx context.Context, rec *domain.SymptomRecord) error

	ListMoods(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MoodRecord, error)
	InsertMood(ctx context.Context, rec *domain.MoodRecord) error

	ListMeals(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MealRecord, error)
	InsertMeal(ctx context.Context, rec *domain.MealRecord) error

	ListMedications(ctx context.Context, userID string, q domain.RecordQuery) ([]domain.MedicationRecord, error)
	InsertMedication(ctx context.Context, rec *domain.MedicationRecord) error
}

// UserStore persists accounts for the local authentication provider.
type UserStore interface {
	// GetUser retrieves a user by id. It returns nil, nil when none exists.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email, case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateUser inserts a new user. A taken email returns ErrDuplicate.
	CreateUser(ctx context.Context, user *domain.User) error

	// UpdatePassword replaces a user's password hash.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// SettingsStore persists per-user preferences.
type SettingsStore interface {
	// GetSettings returns nil, nil when the user never saved settings.
	GetSettings(ctx context.Context, userID string) (*domain.Settings, error)

	// UpsertSettings creates or replaces a user's settings.
	UpsertSettings(ctx context.Context, settings *domain.Settings) error
}

// Repository is the full local persistence layer.
type Repository interface {
	RecordStore
	UserStore
	SettingsStore

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
