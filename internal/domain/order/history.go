package order

import (
	"encoding/json"
	"slices"
	"time"
)

// StatusEntry records one fulfillment status change.
type StatusEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// StatusHistory is insert-only: entries can be read and appended (by Order) but never edited or removed.
type StatusHistory struct {
	entries []StatusEntry
}

// RestoreHistory rebuilds a history loaded from storage.
func RestoreHistory(entries []StatusEntry) StatusHistory {
	return StatusHistory{entries: slices.Clone(entries)}
}

// Entries returns a copy of the entries, oldest first.
func (h StatusHistory) Entries() []StatusEntry {
	return slices.Clone(h.entries)
}

func (h StatusHistory) Len() int { return len(h.entries) }

// Last returns the most recent entry.
func (h StatusHistory) Last() (StatusEntry, bool) {
	if len(h.entries) == 0 {
		return StatusEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

func (h *StatusHistory) append(e StatusEntry) {
	h.entries = append(h.entries, e)
}

func (h StatusHistory) MarshalJSON() ([]byte, error) {
	if h.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.entries)
}

func (h *StatusHistory) UnmarshalJSON(data []byte) error {
	var entries []StatusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	h.entries = entries
	return nil
}
