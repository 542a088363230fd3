package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNoDataset is returned by Update when the session holds no snapshot.
var ErrNoDataset = errors.New("no dataset loaded")

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager wraps a Store with per-session locks so a read-modify-write on
// one session cannot interleave with another on the same session. Locks
// are reference counted and dropped once no caller holds them.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewManager creates a Manager over store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]*lockEntry),
	}
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[id]
	if !ok {
		e = &lockEntry{}
		m.locks[id] = e
	}
	e.refs++
	return e
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock runs fn while holding the lock of id.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	e := m.acquire(id)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		m.release(id)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// Get returns the snapshot of id.
func (m *Manager) Get(ctx context.Context, id string) (Snapshot, bool, error) {
	return m.store.Get(ctx, id)
}

// Set replaces the snapshot of id under its lock.
func (m *Manager) Set(ctx context.Context, id string, snap Snapshot) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Set(ctx, id, snap)
	})
}

// Clear empties id under its lock.
func (m *Manager) Clear(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Clear(ctx, id)
	})
}

// Update loads the snapshot of id, passes it to fn and stores the result.
// Nothing is written when fn fails. Update returns ErrNoDataset when the
// session is empty.
func (m *Manager) Update(ctx context.Context, id string, fn func(Snapshot) (Snapshot, error)) (Snapshot, error) {
	var out Snapshot
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		cur, ok, err := m.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoDataset
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if err := m.store.Set(ctx, id, next); err != nil {
			return err
		}
		out = NewSnapshot(next.Table, next.Meta)
		return nil
	})
	return out, err
}
