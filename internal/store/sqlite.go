package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite. Timestamps are stored as
// Unix milliseconds.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// modernc.org/sqlite applies _pragma parameters to every new connection.
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		user_id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		theme TEXT NOT NULL,
		language TEXT NOT NULL,
		spoken_language TEXT NOT NULL,
		voice TEXT NOT NULL,
		follow_up_suggestions INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS symptoms (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symptom_name TEXT NOT NULL,
		severity INTEGER,
		notes TEXT,
		recorded_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_symptoms_user_time ON symptoms(user_id, recorded_at DESC);

	CREATE TABLE IF NOT EXISTS moods (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		mood_name TEXT NOT NULL,
		mood_value INTEGER,
		notes TEXT,
		recorded_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_moods_user_time ON moods(user_id, recorded_at DESC);

	CREATE TABLE IF NOT EXISTS meals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		meal_type TEXT NOT NULL,
		food_items TEXT NOT NULL,
		calories INTEGER,
		notes TEXT,
		recorded_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_meals_user_time ON meals(user_id, recorded_at DESC);

	CREATE TABLE IF NOT EXISTS medications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		medication_name TEXT NOT NULL,
		dosage TEXT NOT NULL,
		frequency TEXT NOT NULL,
		notes TEXT,
		taken_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_medications_user_time ON medications(user_id, taken_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const userColumns = `id, email, first_name, last_name, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	var createdAt, updatedAt int64
	err := row.Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.PasswordHash, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	return scanUser(row)
}

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	err := shared.RetryOnConflict(ctx, s.retry, "create user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash,
			toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
		)
		return err
	})
	if shared.IsSQLiteUniqueError(err) {
		return fmt.Errorf("create user %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdatePassword replaces a user's password hash.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	var result sql.Result
	err := shared.RetryOnConflict(ctx, s.retry, "update password", func() error {
		var err error
		result, err = s.db.ExecContext(ctx,
			`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
			passwordHash, toMillis(time.Now()), userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// GetSettings returns a user's saved settings.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (*domain.Settings, error) {
	query := `
		SELECT user_id, model, theme, language, spoken_language, voice,
		       follow_up_suggestions, updated_at
		FROM settings WHERE user_id = ?`

	var st domain.Settings
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&st.UserID, &st.Model, &st.Theme, &st.Language, &st.SpokenLanguage,
		&st.Voice, &st.FollowUpSuggestions, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan settings row: %w", err)
	}
	st.UpdatedAt = fromMillis(updatedAt)
	return &st, nil
}

// UpsertSettings creates or replaces a user's settings.
func (s *SQLiteStore) UpsertSettings(ctx context.Context, st *domain.Settings) error {
	query := `
	INSERT INTO settings (user_id, model, theme, language, spoken_language, voice, follow_up_suggestions, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		model = excluded.model,
		theme = excluded.theme,
		language = excluded.language,
		spoken_language = excluded.spoken_language,
		voice = excluded.voice,
		follow_up_suggestions = excluded.follow_up_suggestions,
		updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, s.retry, "upsert settings", func() error {
		_, err := s.db.ExecContext(ctx, query,
			st.UserID, st.Model, st.Theme, st.Language, st.SpokenLanguage,
			st.Voice, st.FollowUpSuggestions, toMillis(st.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
