/*
Package session keeps the current dataset of each workbench session.

A session holds at most one Snapshot: a table and the metadata describing
it. Snapshots are replaced whole; there is no merge and no history. Stores
are keyed by an opaque session id and never share state between ids.

Two stores are provided: MemoryStore for a single process and RedisStore
for deployments that run several replicas behind a load balancer. Manager
serializes read-modify-write sequences on one session.
*/
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/workbench/internal/dataset"
)

// ErrEmptySnapshot is returned when a snapshot without a table is stored.
var ErrEmptySnapshot = errors.New("snapshot has no table")

// Snapshot is the dataset of a session together with its metadata.
type Snapshot struct {
	Table *dataset.Table
	Meta  dataset.Metadata
}

// NewSnapshot pairs t with meta, stamping meta's rows and cols from t so
// the two can never disagree.
func NewSnapshot(t *dataset.Table, meta dataset.Metadata) Snapshot {
	return Snapshot{Table: t, Meta: meta.WithShape(t)}
}

type snapshotJSON struct {
	Table *dataset.Table   `json:"table"`
	Meta  dataset.Metadata `json:"meta"`
}

// MarshalJSON encodes the snapshot for persistent stores.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{Table: s.Table, Meta: s.Meta})
}

// UnmarshalJSON decodes a snapshot written by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Table == nil {
		return fmt.Errorf("decode snapshot: %w", ErrEmptySnapshot)
	}
	*s = Snapshot{Table: raw.Table, Meta: raw.Meta}
	return nil
}

// Store persists one snapshot per session id.
type Store interface {
	// Get returns the snapshot of id. ok is false when the session is empty.
	Get(ctx context.Context, id string) (snap Snapshot, ok bool, err error)
	// Set replaces the snapshot of id.
	Set(ctx context.Context, id string, snap Snapshot) error
	// Clear empties the session. Clearing an empty session is not an error.
	Clear(ctx context.Context, id string) error
	// List returns the ids of non-empty sessions.
	List(ctx context.Context) ([]string, error)
}

func validate(snap Snapshot) (Snapshot, error) {
	if snap.Table == nil {
		return snap, ErrEmptySnapshot
	}
	return NewSnapshot(snap.Table, snap.Meta), nil
}
