package storage

import (
	"context"
	"testing"
	"time"
)

func TestSanitizeKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"reports/U1/Health Report.csv": "reports/u1/health-report.csv",
		"  ":                           "report",
		"/a?b=c":                       "a-b-c",
	}
	for in, want := range cases {
		if got := SanitizeKey(in); got != want {
			t.Errorf("SanitizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewMinIOUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := NewMinIO(ctx, "127.0.0.1:1", "key", "secret", "reports", false, time.Minute); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}
