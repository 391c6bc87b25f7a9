package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SavedRequest is one reusable invocation inside a collection.
type SavedRequest struct {
	Name     string          `json:"name"`
	FullPath string          `json:"fullPath"`
	Kind     string          `json:"kind"`
	Args     json.RawMessage `json:"args,omitempty"`
	Identity string          `json:"identity,omitempty"`
}

// Collection is a named set of saved requests.
type Collection struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Requests  []SavedRequest `json:"requests"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Collections persists request collections in a Store.
type Collections struct {
	store Store
}

// NewCollections creates a collection repository on top of s.
func NewCollections(s Store) *Collections {
	return &Collections{store: s}
}

// Create stores a new collection and returns it with its assigned ID.
func (c *Collections) Create(ctx context.Context, name string, requests []SavedRequest) (*Collection, error) {
	now := time.Now().UTC()
	col := &Collection{
		ID:        uuid.New(),
		Name:      name,
		Requests:  requests,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if col.Requests == nil {
		col.Requests = []SavedRequest{}
	}
	if err := c.save(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

// Get returns one collection by ID; ErrNotFound when it does not exist.
func (c *Collections) Get(ctx context.Context, id uuid.UUID) (*Collection, error) {
	data, err := c.store.Get(ctx, BucketCollections, id.String())
	if err != nil {
		return nil, err
	}
	var col Collection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", id, err)
	}
	return &col, nil
}

// Update replaces a collection's name and requests.
func (c *Collections) Update(ctx context.Context, id uuid.UUID, name string, requests []SavedRequest) (*Collection, error) {
	col, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	col.Name = name
	col.Requests = requests
	if col.Requests == nil {
		col.Requests = []SavedRequest{}
	}
	col.UpdatedAt = time.Now().UTC()
	if err := c.save(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

// Delete removes a collection; deleting a missing collection is not an
// error.
func (c *Collections) Delete(ctx context.Context, id uuid.UUID) error {
	return c.store.Delete(ctx, BucketCollections, id.String())
}

// List returns all collections, newest first.
func (c *Collections) List(ctx context.Context) ([]Collection, error) {
	blobs, err := c.store.List(ctx, BucketCollections)
	if err != nil {
		return nil, err
	}

	cols := make([]Collection, 0, len(blobs))
	for key, data := range blobs {
		var col Collection
		if err := json.Unmarshal(data, &col); err != nil {
			return nil, fmt.Errorf("failed to decode collection %s: %w", key, err)
		}
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].CreatedAt.After(cols[j].CreatedAt) })
	return cols, nil
}

func (c *Collections) save(ctx context.Context, col *Collection) error {
	data, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", col.ID, err)
	}
	return c.store.Put(ctx, BucketCollections, col.ID.String(), data)
}
