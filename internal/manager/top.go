package manager

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"argbot/internal/store"
)

const topLimit = 10

// renderTop formats the leaderboard as HTML. Records with neither a title nor
// a username have nothing displayable and are skipped entirely (they do not
// use up a slot). Returns "" when nothing is renderable.
func renderTop(records []store.Record) string {
	sorted := append([]store.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].ChatID < sorted[j].ChatID
	})

	var lines []string
	for _, rec := range sorted {
		if len(lines) == topLimit {
			break
		}
		line := formatLine(len(lines)+1, rec)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	return "🏆 Top active chats:\n" + strings.Join(lines, "\n")
}

func formatLine(pos int, rec store.Record) string {
	title := html.EscapeString(rec.Title)
	switch {
	case rec.Title != "" && rec.InviteLink != "":
		return fmt.Sprintf(`%d. <a href="%s">%s</a> — %d`, pos, html.EscapeString(rec.InviteLink), title, rec.Count)
	case rec.Title != "":
		return fmt.Sprintf("%d. %s — %d", pos, title, rec.Count)
	case rec.Username != "":
		return fmt.Sprintf("%d. @%s (private chat) — %d", pos, html.EscapeString(rec.Username), rec.Count)
	default:
		return ""
	}
}
