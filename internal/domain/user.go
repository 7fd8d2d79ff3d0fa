// Package domain contains core domain types for the health journal.
package domain

import (
	"time"
)

// User is an account known to the authentication provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns the name shown in the sidebar and chat header.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// Settings are per-user preferences chosen in the settings dialog.
type Settings struct {
	UserID              string    `json:"-"`
	Model               string    `json:"model"`
	Theme               string    `json:"theme"`
	Language            string    `json:"language"`
	SpokenLanguage      string    `json:"spoken_language"`
	Voice               string    `json:"voice"`
	FollowUpSuggestions bool      `json:"follow_up_suggestions"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings a new user starts with.
func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:              userID,
		Model:               "GPT-4",
		Theme:               "System",
		Language:            "Auto-detect",
		SpokenLanguage:      "Auto-detect",
		Voice:               "Ember",
		FollowUpSuggestions: true,
	}
}
