package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/supabase-community/gotrue-go"
)

const fakeUserJSON = `{"id":"6f1c2a8e-3b7d-4c55-9a1e-2d4f6b8c0e12","email":"ada@example.com","user_metadata":{"first_name":"Ada","last_name":"Lovelace"},"created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}`

func newGoTrueFake(t *testing.T, handler http.HandlerFunc) *SupabaseProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := gotrue.New("test-project", "anon-key").WithCustomGoTrueURL(srv.URL)
	return NewSupabaseProvider(client, "")
}

func TestSupabaseCurrentUser(t *testing.T) {
	t.Parallel()

	p := newGoTrueFake(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/user") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"msg":"invalid JWT"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, fakeUserJSON)
	})
	ctx := context.Background()

	user, err := p.CurrentUser(ctx, "good-token")
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if user.ID != "6f1c2a8e-3b7d-4c55-9a1e-2d4f6b8c0e12" || user.DisplayName() != "Ada Lovelace" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := p.CurrentUser(ctx, "bad-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := p.CurrentUser(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty token, got %v", err)
	}
}

func TestSupabaseSignInFailureMapsToInvalidCredentials(t *testing.T) {
	t.Parallel()

	p := newGoTrueFake(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
	})

	if _, err := p.SignIn(context.Background(), "ada@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSupabaseServerErrorIsProviderFailure(t *testing.T) {
	t.Parallel()

	p := newGoTrueFake(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := p.SignIn(context.Background(), "ada@example.com", "secret1"); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestSupabaseSignUpRejectsShortPasswordLocally(t *testing.T) {
	t.Parallel()

	called := false
	p := newGoTrueFake(t, func(http.ResponseWriter, *http.Request) { called = true })

	if _, err := p.SignUp(context.Background(), SignUpInput{Email: "a@b.co", Password: "123"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Fatal("short password should not reach the provider")
	}
}

func TestAppendRedirect(t *testing.T) {
	t.Parallel()

	got := appendRedirect("https://x.supabase.co/auth/v1/authorize?provider=google", "http://localhost:5173/")
	want := "https://x.supabase.co/auth/v1/authorize?provider=google&redirect_to=http%3A%2F%2Flocalhost%3A5173%2F"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
