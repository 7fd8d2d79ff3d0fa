package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSAllowsAuthorizationHeader(t *testing.T) {
	t.Parallel()

	h := CORS([]string{"http://localhost:5173"})(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/api/workspace", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Fatalf("unexpected allow headers %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials for explicit origin")
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	t.Parallel()

	h := CORS([]string{"*"})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/workspace", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatal("wildcard origin must not allow credentials")
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(60, 2)
	limited := 0
	l.OnLimit(func() { limited++ })
	h := l.Middleware(func(r *http.Request) string { return r.Header.Get("X-User") })(okHandler())

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/conversations/active/messages", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("a") != http.StatusOK || send("a") != http.StatusOK {
		t.Fatal("burst should be allowed")
	}
	if code := send("a"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if send("b") != http.StatusOK {
		t.Fatal("other users keep their own bucket")
	}
	if send("") != http.StatusOK || send("") != http.StatusOK || send("") != http.StatusOK {
		t.Fatal("empty key should bypass limiting")
	}
	if limited != 1 {
		t.Fatalf("expected one limit callback, got %d", limited)
	}
}

func TestRateLimiterDropsIdleBuckets(t *testing.T) {
	t.Parallel()

	now := time.Now()
	l := NewRateLimiter(60, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(11 * time.Minute)
	l.Allow("b")

	l.mu.Lock()
	_, ok := l.limiters["a"]
	l.mu.Unlock()
	if ok {
		t.Fatal("idle bucket should be dropped")
	}
}

func TestRateLimiterPrunesAtMostOncePerInterval(t *testing.T) {
	t.Parallel()

	start := time.Now()
	now := start
	l := NewRateLimiter(60, 1)
	l.now = func() time.Time { return now }

	has := func(key string) bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		_, ok := l.limiters[key]
		return ok
	}

	l.Allow("a")
	now = start.Add(9*time.Minute + 30*time.Second)
	l.Allow("c")

	// "a" is idle now, but the last sweep was under a minute ago.
	now = start.Add(10*time.Minute + 10*time.Second)
	l.Allow("b")
	if !has("a") {
		t.Fatal("bucket swept before the prune interval elapsed")
	}

	now = start.Add(10*time.Minute + 40*time.Second)
	l.Allow("b")
	if has("a") {
		t.Fatal("idle bucket should be dropped once the interval elapsed")
	}
	if !has("b") || !has("c") {
		t.Fatal("active buckets must survive the sweep")
	}
}

type observed struct {
	method, route string
	status        int
}

type recordingObserver struct {
	mu  sync.Mutex
	got []observed
}

func (o *recordingObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, observed{method, route, status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(Metrics(obs))
	r.Delete("/api/conversations/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/abc-123", nil))

	if len(obs.got) != 1 {
		t.Fatalf("expected one observation, got %d", len(obs.got))
	}
	want := observed{http.MethodDelete, "/api/conversations/{id}", http.StatusNoContent}
	if obs.got[0] != want {
		t.Fatalf("expected %+v, got %+v", want, obs.got[0])
	}
}
