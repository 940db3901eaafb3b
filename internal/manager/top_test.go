package manager

import (
	"fmt"
	"strings"
	"testing"

	"argbot/internal/store"
)

func TestRenderTopLimitsToTen(t *testing.T) {
	var records []store.Record
	for i := 0; i < 25; i++ {
		records = append(records, store.Record{ChatID: int64(i), Title: fmt.Sprintf("chat-%d", i), Count: int64(i)})
	}
	out := renderTop(records)
	lines := strings.Split(out, "\n")
	if len(lines) != 11 { // header + 10 entries
		t.Fatalf("expected 11 lines, got %d:\n%s", len(lines), out)
	}
	// Highest count first.
	if !strings.Contains(lines[1], "chat-24") {
		t.Fatalf("first entry should be the top chat: %s", lines[1])
	}
}

func TestRenderTopSkipsUndisplayableRecords(t *testing.T) {
	records := []store.Record{
		{ChatID: 1, Count: 100}, // no title, no username: skipped
		{ChatID: 2, Title: "Named", Count: 5},
		{ChatID: 3, Username: "someone", Count: 3},
	}
	out := renderTop(records)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 entries, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "1. Named") {
		t.Fatalf("skipped records must not consume positions: %s", lines[1])
	}
	if !strings.Contains(lines[2], "@someone (private chat)") {
		t.Fatalf("username fallback missing: %s", lines[2])
	}
}

func TestRenderTopLinksTitleToInvite(t *testing.T) {
	out := renderTop([]store.Record{
		{ChatID: 1, Title: "Club", InviteLink: "https://t.me/+abc", Count: 9},
	})
	if !strings.Contains(out, `<a href="https://t.me/+abc">Club</a>`) {
		t.Fatalf("expected linked title:\n%s", out)
	}
}

func TestRenderTopEscapesHTML(t *testing.T) {
	out := renderTop([]store.Record{
		{ChatID: 1, Title: "<b>evil</b>", Count: 1},
	})
	if strings.Contains(out, "<b>") {
		t.Fatalf("title must be escaped:\n%s", out)
	}
}

func TestRenderTopEmpty(t *testing.T) {
	if out := renderTop(nil); out != "" {
		t.Fatalf("expected empty render, got %q", out)
	}
	// Records exist but none are displayable.
	if out := renderTop([]store.Record{{ChatID: 1, Count: 4}}); out != "" {
		t.Fatalf("expected empty render, got %q", out)
	}
}
