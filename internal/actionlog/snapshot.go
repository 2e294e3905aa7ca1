package actionlog

import "time"

// Reconcile replaces held with snapshot, keeping held entries the snapshot
// does not contain and that are no older than its newest entry. Those are
// entries that arrived live while the snapshot was in flight. Entries with
// unparsable timestamps are kept when missing from the snapshot. The result
// is a fresh slice; neither input is modified.
func Reconcile(snapshot, held []LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(snapshot)+len(held))
	out = append(out, snapshot...)

	ids := make(map[string]bool, len(snapshot))
	for _, e := range snapshot {
		ids[e.ID] = true
	}

	var newestAt time.Time
	bounded := false
	if n := len(snapshot); n > 0 {
		newestAt, bounded = snapshot[n-1].Time()
	}

	for _, e := range held {
		if e.ID != "" && ids[e.ID] {
			continue
		}
		if bounded {
			if at, ok := e.Time(); ok && at.Before(newestAt) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
