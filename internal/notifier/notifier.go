package notifier

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/filter"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

// Notifier delivers a rendered message to one destination.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Message is one site's notification for one poll cycle.
type Message struct {
	Site        string
	DisplayName string
	Username    string
	Text        string
	Link        string
	Records     []availability.Record
}

// NewMessage renders the grouped result of a site into a Message.
func NewMessage(s *site.Site, result *filter.GroupedResult) Message {
	return Message{
		Site:        s.Name,
		DisplayName: s.DisplayName,
		Username:    s.Username,
		Text:        Format(s, result),
		Link:        s.Link,
		Records:     result.Records(),
	}
}

// Format renders a grouped result as Discord-flavoured markdown. A nil result
// renders as the empty string.
func Format(s *site.Site, result *filter.GroupedResult) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏕️ **%sに空きが出たぜ！**\n\n", s.DisplayName)

	for _, month := range result.Months {
		for _, group := range month.Facilities {
			if group.Facility != "" {
				fmt.Fprintf(&b, "**【%s】%s**\n", month.Label, group.Facility)
			} else {
				fmt.Fprintf(&b, "**【%s】**\n", month.Label)
			}
			for _, r := range group.Records {
				fmt.Fprintf(&b, "%s %s(%s) - %s\n", Marker(r.Level), r.Date, r.WeekdayJP(), r.Status)
				if r.Detail != "" {
					fmt.Fprintf(&b, "　　%s\n", r.Detail)
				}
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "🔗 予約はこちら: %s", s.Link)
	return b.String()
}

// Marker distinguishes fully available slots from limited ones.
func Marker(level availability.Level) string {
	if level == availability.LevelAvailable {
		return "✅"
	}
	return "⚠️"
}

// SplitContent breaks text into chunks of at most limit characters, cutting on
// line boundaries. Lines longer than limit are cut mid-line.
func SplitContent(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if chunk := strings.TrimRight(cur.String(), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		cur.Reset()
		curLen = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		for n > limit {
			r := []rune(line)
			chunks = append(chunks, string(r[:limit]))
			line = string(r[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()

	return chunks
}
