package models

import "time"

// MemoryEntry is one key/value record in a project's persistent memory
// store (spec.md §3, §4.D).
type MemoryEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
