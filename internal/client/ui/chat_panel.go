package ui

import (
	"strings"

	"github.com/yourusername/roomlog/internal/actionlog"
)

// DefaultMaxEntries bounds the raw log a ChatPanel keeps
const DefaultMaxEntries = 500

// ChatPanel holds a room's raw action log and renders it grouped. It is not
// safe for concurrent use.
type ChatPanel struct {
	title      string
	entries    []actionlog.LogEntry
	maxEntries int
	grouper    *actionlog.Grouper
	renderer   *Renderer
}

// NewChatPanel creates a new chat panel. A nil grouper groups with the
// defaults and a non-positive maxEntries means DefaultMaxEntries.
func NewChatPanel(title string, renderer *Renderer, grouper *actionlog.Grouper, maxEntries int) *ChatPanel {
	if grouper == nil {
		grouper = actionlog.MustNewGrouper(actionlog.DefaultWindow, actionlog.DefaultUserKey)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &ChatPanel{
		title:      title,
		maxEntries: maxEntries,
		grouper:    grouper,
		renderer:   renderer,
	}
}

// SetLog replaces the panel's log with a snapshot, keeping held entries
// that are newer than it and missing from it
func (c *ChatPanel) SetLog(entries []actionlog.LogEntry) {
	c.entries = actionlog.Reconcile(entries, c.entries)
	c.trim()
}

// AddEntry appends an entry and returns the group it ended up in. merged
// reports whether it joined the previous group rather than starting one.
func (c *ChatPanel) AddEntry(entry actionlog.LogEntry) (group actionlog.GroupedLogEntry, merged bool) {
	c.entries = append(c.entries, entry)
	c.trim()

	groups := c.Groups()
	last := groups[len(groups)-1]
	return last, len(last.Payloads) > 1
}

// Len returns the number of raw entries held
func (c *ChatPanel) Len() int {
	return len(c.entries)
}

// Groups regroups the whole log
func (c *ChatPanel) Groups() []actionlog.GroupedLogEntry {
	return c.grouper.Group(c.entries)
}

// View renders the titled, grouped log
func (c *ChatPanel) View() string {
	var b strings.Builder
	if c.title != "" {
		b.WriteString(c.renderer.styles.Title.Render(c.title))
		b.WriteString("\n")
	}
	b.WriteString(c.renderer.RenderLog(c.Groups()))
	return b.String()
}

func (c *ChatPanel) trim() {
	if len(c.entries) > c.maxEntries {
		c.entries = c.entries[len(c.entries)-c.maxEntries:]
	}
}
