package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/healthjournal/internal/auth"
	"github.com/ashureev/healthjournal/internal/conversation"
	"github.com/ashureev/healthjournal/internal/records"
)

func TestErrorWritesJSONBody(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	Error(w, http.StatusTeapot, "no coffee")

	if w.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["error"] != "no coffee" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	body := `{"text":"` + strings.Repeat("a", maxBodySize) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()

	var v struct{ Text string }
	if decode(w, r, &v) {
		t.Fatal("oversized body decoded")
	}
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestFailStatusMapping(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil)
	cases := map[string]struct {
		err  error
		want int
	}{
		"validation":  {err: &records.ValidationError{Fields: map[string]string{"name": "required"}}, want: http.StatusBadRequest},
		"empty":       {err: conversation.ErrEmptyMessage, want: http.StatusBadRequest},
		"credentials": {err: fmt.Errorf("sign in: %w", auth.ErrInvalidCredentials), want: http.StatusUnauthorized},
		"not found":   {err: conversation.ErrNotFound, want: http.StatusNotFound},
		"taken":       {err: auth.ErrEmailTaken, want: http.StatusConflict},
		"unsupported": {err: auth.ErrUnsupported, want: http.StatusNotImplemented},
		"provider":    {err: fmt.Errorf("%w: timeout", auth.ErrProvider), want: http.StatusBadGateway},
		"unknown":     {err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.fail(w, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
			if name == "unknown" && strings.Contains(w.Body.String(), "boom") {
				t.Fatalf("internal error leaked: %s", w.Body.String())
			}
		})
	}
}
