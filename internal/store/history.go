package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// maxHistoryEntries caps the invocation log; the oldest entries are pruned
// once the cap is exceeded.
const maxHistoryEntries = 200

// HistoryEntry records one function invocation made through the console.
type HistoryEntry struct {
	ID        uuid.UUID       `json:"id"`
	FullPath  string          `json:"fullPath"`
	Kind      string          `json:"kind"`
	Args      json.RawMessage `json:"args,omitempty"`
	Identity  string          `json:"identity,omitempty"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	InvokedAt time.Time       `json:"invokedAt"`
}

// History persists the invocation log in a Store.
type History struct {
	store Store
}

// NewHistory creates a history repository on top of s.
func NewHistory(s Store) *History {
	return &History{store: s}
}

// Append records an invocation and prunes beyond the cap.
func (h *History) Append(ctx context.Context, entry HistoryEntry) (*HistoryEntry, error) {
	entry.ID = uuid.New()
	if entry.InvokedAt.IsZero() {
		entry.InvokedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history entry: %w", err)
	}
	if err := h.store.Put(ctx, BucketHistory, entry.ID.String(), data); err != nil {
		return nil, err
	}
	if err := h.prune(ctx); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns history entries, newest first.
func (h *History) List(ctx context.Context) ([]HistoryEntry, error) {
	blobs, err := h.store.List(ctx, BucketHistory)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(blobs))
	for key, data := range blobs {
		var entry HistoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode history entry %s: %w", key, err)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].InvokedAt.After(entries[j].InvokedAt) })
	return entries, nil
}

// Clear removes the whole invocation log.
func (h *History) Clear(ctx context.Context) error {
	blobs, err := h.store.List(ctx, BucketHistory)
	if err != nil {
		return err
	}
	for key := range blobs {
		if err := h.store.Delete(ctx, BucketHistory, key); err != nil {
			return err
		}
	}
	return nil
}

func (h *History) prune(ctx context.Context) error {
	entries, err := h.List(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries[min(len(entries), maxHistoryEntries):] {
		if err := h.store.Delete(ctx, BucketHistory, entry.ID.String()); err != nil {
			return err
		}
	}
	return nil
}
