package transcript

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// Label is the speaker name shown next to a line.
func (r Role) Label() string {
	if r == RoleCaller {
		return "Caller"
	}
	return "AI"
}

type Line struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// FromUpdate converts one live update into transcript lines, caller first.
// Blank halves of the update are skipped.
func FromUpdate(caller, suggestion string, at time.Time) []Line {
	var lines []Line
	if text := strings.TrimSpace(caller); text != "" {
		lines = append(lines, Line{Role: RoleCaller, Text: text, Timestamp: at})
	}
	if text := strings.TrimSpace(suggestion); text != "" {
		lines = append(lines, Line{Role: RoleAssistant, Text: text, Timestamp: at})
	}
	return lines
}

func (l Line) FormatMarkdown() string {
	ts := l.Timestamp.Format("15:04:05")
	return fmt.Sprintf("**[%s] %s:** %s", ts, l.Role.Label(), strings.TrimSpace(l.Text))
}
