package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// renderHTML re-renders text carrying platform formatting entities as HTML so
// the formatting survives a re-send. Reports false (text unchanged) when no
// entity has an HTML representation; mentions, urls and commands render as
// plain text and the platform re-detects them on delivery. Entity offsets are
// UTF-16 code units, per the Bot API.
func renderHTML(text string, entities []tele.MessageEntity) (string, bool) {
	opens, closes := entityMarkup(entities)
	if len(opens) == 0 {
		return text, false
	}

	var b strings.Builder
	flush := func(pos int) {
		for _, tag := range closes[pos] {
			b.WriteString(tag)
		}
		for _, tag := range opens[pos] {
			b.WriteString(tag)
		}
	}

	pos := 0
	flush(0)
	for _, r := range text {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
		if r >= 0x10000 {
			pos += 2
		} else {
			pos++
		}
		flush(pos)
	}
	return b.String(), true
}

// entityMarkup maps UTF-16 positions to the tags inserted there. Outer
// entities open first; at a shared end position inner entities close first.
func entityMarkup(entities []tele.MessageEntity) (opens, closes map[int][]string) {
	sorted := append([]tele.MessageEntity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Offset != sorted[j].Offset {
			return sorted[i].Offset < sorted[j].Offset
		}
		return sorted[i].Length > sorted[j].Length
	})

	opens = map[int][]string{}
	closes = map[int][]string{}
	for _, e := range sorted {
		if e.Length <= 0 {
			continue
		}
		open, cls, ok := entityTags(e)
		if !ok {
			continue
		}
		opens[e.Offset] = append(opens[e.Offset], open)
		end := e.Offset + e.Length
		closes[end] = append([]string{cls}, closes[end]...)
	}
	return opens, closes
}

func entityTags(e tele.MessageEntity) (open, cls string, ok bool) {
	switch e.Type {
	case tele.EntityBold:
		return "<b>", "</b>", true
	case tele.EntityItalic:
		return "<i>", "</i>", true
	case tele.EntityUnderline:
		return "<u>", "</u>", true
	case tele.EntityStrikethrough:
		return "<s>", "</s>", true
	case tele.EntitySpoiler:
		return "<tg-spoiler>", "</tg-spoiler>", true
	case tele.EntityCode:
		return "<code>", "</code>", true
	case tele.EntityCodeBlock:
		if e.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(e.Language) + `">`, "</code></pre>", true
		}
		return "<pre>", "</pre>", true
	case tele.EntityTextLink:
		return `<a href="` + html.EscapeString(e.URL) + `">`, "</a>", true
	case tele.EntityTMention:
		if e.User != nil {
			return fmt.Sprintf(`<a href="tg://user?id=%d">`, e.User.ID), "</a>", true
		}
	}
	return "", "", false
}
