package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/focuslist/internal/ranking"
)

const telegramMaxChars = 3800

func IsTelegramFormat(format string) bool {
	return strings.ToLower(strings.TrimSpace(format)) == "telegram"
}

func trimTelegramOutput(s string) string {
	s = strings.TrimRight(s, "\n")
	runes := []rune(s)
	if len(runes) <= telegramMaxChars {
		return s
	}
	suffix := "\n… (truncated)"
	suffixRunes := []rune(suffix)
	limit := telegramMaxChars - len(suffixRunes)
	if limit < 1 {
		return string(runes[:telegramMaxChars])
	}
	return string(runes[:limit]) + suffix
}

func telegramUrgencyEmoji(urgency int) string {
	switch {
	case urgency >= 2:
		return "🔴"
	case urgency == 0:
		return "🟡"
	default:
		return ""
	}
}

func cleanTaskTitle(title string) string {
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.TrimSpace(title)
	if title == "" {
		return "(untitled)"
	}
	return title
}

func formatDueShort(due *time.Time, now time.Time) string {
	if due == nil {
		return ""
	}
	layout := "Jan 02"
	if due.Year() != now.Year() {
		layout = "Jan 02 2006"
	}
	if due.Hour() != 0 || due.Minute() != 0 {
		layout += " 15:04"
	}
	return due.Format(layout)
}

func dueSuffix(t Task, now time.Time) string {
	due := formatDueShort(t.Due, now)
	if due == "" {
		return ""
	}
	if ranking.BandOf(t.Due, now) == ranking.BandOverdue {
		return " (overdue " + due + ")"
	}
	return " (due " + due + ")"
}

func telegramTaskLine(t Task, now time.Time) string {
	var b strings.Builder
	b.WriteString("• ")
	if t.Pinned {
		b.WriteString("📌 ")
	}
	if emoji := telegramUrgencyEmoji(t.EffectiveUrgency()); emoji != "" {
		b.WriteString(emoji)
		b.WriteString(" ")
	}
	b.WriteString(cleanTaskTitle(t.Title))
	b.WriteString(dueSuffix(t, now))
	b.WriteString("\n")
	return b.String()
}

func textTaskLine(i int, s ranking.Scored[Task], now time.Time, ascii bool) string {
	t := s.Item
	pin := " "
	if t.Pinned {
		pin = "*"
	}
	title := truncate(cleanTaskTitle(t.Title), 80, ascii)
	return fmt.Sprintf("  %2d. %s[U%d] %s%s  %s\n", i+1, pin, t.EffectiveUrgency(), title, dueSuffix(t, now), t.IDShort(12))
}

// RenderFocus renders the focus split of a ranked list as plain text or,
// with format "telegram", as a chat message.
func RenderFocus(focus, others []ranking.Scored[Task], now time.Time, format string, ascii bool) string {
	if IsTelegramFormat(format) {
		return renderTelegramFocus(focus, others, now)
	}
	var b strings.Builder
	day := now.Format("2006-01-02")
	if len(focus) == 0 {
		return fmt.Sprintf("Focus (%s) - nothing to do", day)
	}
	b.WriteString(fmt.Sprintf("Focus (%s) - %d of %d\n\n", day, len(focus), len(focus)+len(others)))
	for i, s := range focus {
		b.WriteString(textTaskLine(i, s, now, ascii))
	}
	if len(others) > 0 {
		b.WriteString("\nLater\n")
		for i, s := range others {
			b.WriteString(textTaskLine(len(focus)+i, s, now, ascii))
		}
	}
	return b.String()
}

func renderTelegramFocus(focus, others []ranking.Scored[Task], now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎯 Focus — %s\n\n", now.Format("2006-01-02")))
	if len(focus) == 0 {
		b.WriteString("Nothing to do.\n")
		return trimTelegramOutput(b.String())
	}
	for _, s := range focus {
		b.WriteString(telegramTaskLine(s.Item, now))
	}
	if len(others) > 0 {
		b.WriteString(fmt.Sprintf("\n📋 Later (%d)\n", len(others)))
		for _, s := range others {
			b.WriteString(telegramTaskLine(s.Item, now))
		}
	}
	return trimTelegramOutput(b.String())
}
