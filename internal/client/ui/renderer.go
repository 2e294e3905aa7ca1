package ui

import (
	"fmt"
	"strings"

	"github.com/yourusername/roomlog/internal/actionlog"
)

// UnknownTypeText is shown for groups whose type has no renderer
const UnknownTypeText = "unknown action log item type"

const clockFormat = "15:04"

// Renderer turns grouped action log entries into terminal text
type Renderer struct {
	styles Styles
}

// NewRenderer creates a renderer with styles
func NewRenderer(styles Styles) *Renderer {
	return &Renderer{styles: styles}
}

// RenderGroup renders one group
func (r *Renderer) RenderGroup(g actionlog.GroupedLogEntry) string {
	switch g.Type {
	case actionlog.TypeRoomChat:
		return r.renderChat(g)
	case actionlog.TypeUserJoined:
		return r.renderNotice(g, "joined")
	case actionlog.TypeUserLeft:
		return r.renderNotice(g, "left")
	default:
		return r.styles.Fallback.Render(UnknownTypeText)
	}
}

// RenderLog renders groups in order, one block per group
func (r *Renderer) RenderLog(groups []actionlog.GroupedLogEntry) string {
	blocks := make([]string, len(groups))
	for i, g := range groups {
		blocks[i] = r.RenderGroup(g)
	}
	return strings.Join(blocks, "\n")
}

func (r *Renderer) renderChat(g actionlog.GroupedLogEntry) string {
	payloads := g.DecodeUserPayloads()

	var b strings.Builder
	b.WriteString(r.styles.Username.Render(displayName(payloads)))
	b.WriteString(" ")
	b.WriteString(r.styles.Timestamp.Render(clock(g.Timestamp)))
	for _, p := range payloads {
		b.WriteString("\n")
		b.WriteString(r.styles.Message.Render(p.Message))
	}
	return b.String()
}

func (r *Renderer) renderNotice(g actionlog.GroupedLogEntry, verb string) string {
	payloads := g.DecodeUserPayloads()

	var names []string
	seen := make(map[string]bool)
	for _, p := range payloads {
		name := p.Username
		if name == "" {
			name = "someone"
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		names = []string{"someone"}
	}

	text := fmt.Sprintf("%s %s", strings.Join(names, ", "), verb)
	if n := len(payloads); n > 1 {
		text = fmt.Sprintf("%s (x%d)", text, n)
	}
	return r.styles.Notice.Render(fmt.Sprintf("%s · %s", text, clock(g.Timestamp)))
}

// displayName is the username of a chat group; every payload in a group
// shares a user
func displayName(payloads []actionlog.UserPayload) string {
	for i := len(payloads) - 1; i >= 0; i-- {
		if payloads[i].Username != "" {
			return payloads[i].Username
		}
	}
	return "anonymous"
}

// clock formats a timestamp as local wall-clock time, or returns it as
// given when it cannot be parsed
func clock(timestamp string) string {
	t, ok := actionlog.ParseTimestamp(timestamp)
	if !ok {
		return timestamp
	}
	return t.Local().Format(clockFormat)
}
