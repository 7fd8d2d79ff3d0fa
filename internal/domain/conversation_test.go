package domain

import (
	"strings"
	"testing"
)

func TestTitleFromMessageTruncatesToThirtyRunes(t *testing.T) {
	t.Parallel()

	got := TitleFromMessage(strings.Repeat("a", 45))
	if got != strings.Repeat("a", 30)+"..." {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestTitleFromMessageShortContentKeepsEllipsis(t *testing.T) {
	t.Parallel()

	if got := TitleFromMessage("Headache today"); got != "Headache today..." {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestTitleFromMessageCountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("ñ", 31)
	got := TitleFromMessage(in)
	if got != strings.Repeat("ñ", 30)+"..." {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestCloneDoesNotShareMessages(t *testing.T) {
	t.Parallel()

	c := Conversation{ID: "c1", Messages: []Message{{ID: "m1", Content: "hi"}}}
	cp := c.Clone()
	cp.Messages[0].Content = "changed"
	if c.Messages[0].Content != "hi" {
		t.Fatal("clone mutated source messages")
	}
}
