package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/workbench/internal/analysis"
	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/loader"
	"github.com/JonMunkholm/workbench/internal/logging"
	"github.com/JonMunkholm/workbench/internal/metrics"
	"github.com/JonMunkholm/workbench/internal/session"
)

var (
	// ErrNoDataset is returned by every operation except LoadDataset when
	// the session is empty.
	ErrNoDataset = session.ErrNoDataset

	// ErrFileTooLarge is returned when an upload exceeds Config.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when an upload has no file name.
	ErrNoFile = errors.New("no file provided")
)

// Config holds the service limits and analysis defaults.
type Config struct {
	// MaxFileSize bounds upload size in bytes; zero disables the check.
	MaxFileSize int64

	// MaxConcurrentLoads and LoadWaitTime configure the upload limiter.
	MaxConcurrentLoads int
	LoadWaitTime       time.Duration

	// Analysis fills zero fields of per-request analysis options.
	Analysis analysis.Options
}

// Service runs workbench operations against session-scoped datasets.
type Service struct {
	sessions *session.Manager
	audit    AuditStore
	limiter  *UploadLimiter
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithAuditStore replaces the default in-memory audit log.
func WithAuditStore(a AuditStore) Option {
	return func(s *Service) {
		s.audit = a
	}
}

// WithClock sets the time source used for exports and audit entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a service over store.
func NewService(store session.Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		sessions: session.NewManager(store),
		audit:    NewMemoryAuditStore(0),
		limiter:  NewUploadLimiter(cfg.MaxConcurrentLoads, cfg.LoadWaitTime),
		metrics:  metrics.Get(),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadStatus reports the upload limiter state.
func (s *Service) UploadStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// Drain waits for in-flight loads to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// LoadDataset parses an upload and makes it the session's dataset. The
// previous dataset, if any, is replaced only when parsing succeeds.
func (s *Service) LoadDataset(ctx context.Context, id, fileName string, data []byte, opts ...loader.Option) (session.Snapshot, error) {
	start := time.Now()
	snap, prev, err := s.loadDataset(ctx, id, fileName, data, opts...)
	s.metrics.Observe(string(OpLoad), start, err)

	log := logging.WithFields(ctx, "operation", OpLoad, "file_name", fileName, "bytes", len(data))
	if err != nil {
		log.Warn("load failed", "error", err)
		return session.Snapshot{}, err
	}

	s.metrics.DatasetsLoaded.WithLabelValues(snap.Meta.FileType).Inc()
	s.metrics.DatasetRows.Observe(float64(snap.Table.Rows()))
	s.LogAudit(ctx, AuditLogParams{
		Action:     ActionLoad,
		SessionID:  id,
		FileName:   fileName,
		RowsBefore: prev.Meta.Rows,
		ColsBefore: prev.Meta.Cols,
		RowsAfter:  snap.Meta.Rows,
		ColsAfter:  snap.Meta.Cols,
		Details:    map[string]any{"file_type": snap.Meta.FileType, "bytes": len(data)},
	})
	log.Info("dataset loaded",
		"rows", snap.Meta.Rows,
		"cols", snap.Meta.Cols,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func (s *Service) loadDataset(ctx context.Context, id, fileName string, data []byte, opts ...loader.Option) (snap, prev session.Snapshot, err error) {
	if fileName == "" {
		return snap, prev, ErrNoFile
	}
	if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
		return snap, prev, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, len(data), s.cfg.MaxFileSize)
	}

	var (
		t    *dataset.Table
		meta dataset.Metadata
	)
	err = s.withLoadSlot(ctx, func() error {
		var err error
		t, meta, err = loader.Load(ctx, data, fileName, opts...)
		return err
	})
	if err != nil {
		return snap, prev, err
	}

	snap = session.NewSnapshot(t, meta)
	err = s.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		cur, _, err := s.sessions.Store().Get(ctx, id)
		if err != nil {
			return fmt.Errorf("read session: %w", err)
		}
		prev = cur
		return s.sessions.Store().Set(ctx, id, snap)
	})
	return snap, prev, err
}

// withLoadSlot runs fn while holding an upload limiter slot. The slot is
// released even if fn panics.
func (s *Service) withLoadSlot(ctx context.Context, fn func() error) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.Release()
	return fn()
}

// Dataset returns the session's current dataset.
func (s *Service) Dataset(ctx context.Context, id string) (session.Snapshot, error) {
	snap, ok, err := s.sessions.Get(ctx, id)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return session.Snapshot{}, ErrNoDataset
	}
	return snap, nil
}

// HasDataset reports whether the session holds a dataset.
func (s *Service) HasDataset(ctx context.Context, id string) bool {
	_, ok, err := s.sessions.Get(ctx, id)
	return err == nil && ok
}

// ClearDataset empties the session. Clearing an empty session succeeds.
func (s *Service) ClearDataset(ctx context.Context, id string) error {
	start := time.Now()
	var prev session.Snapshot
	err := s.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		cur, _, err := s.sessions.Store().Get(ctx, id)
		if err != nil {
			return fmt.Errorf("read session: %w", err)
		}
		prev = cur
		return s.sessions.Store().Clear(ctx, id)
	})
	s.metrics.Observe(string(OpClear), start, err)
	if err != nil {
		logging.WithFields(ctx, "operation", OpClear).Warn("clear failed", "error", err)
		return err
	}

	if prev.Table != nil {
		s.LogAudit(ctx, AuditLogParams{
			Action:     ActionClear,
			SessionID:  id,
			FileName:   prev.Meta.FileName,
			RowsBefore: prev.Meta.Rows,
			ColsBefore: prev.Meta.Cols,
		})
	}
	logging.WithFields(ctx, "operation", OpClear).Info("dataset cleared", "had_dataset", prev.Table != nil)
	return nil
}

// read runs fn on the current dataset and records the operation metrics.
func (s *Service) read(ctx context.Context, id string, op Operation, fn func(session.Snapshot) error) error {
	start := time.Now()
	snap, err := s.Dataset(ctx, id)
	if err == nil {
		err = fn(snap)
	}
	s.metrics.Observe(string(op), start, err)
	if err != nil && !errors.Is(err, ErrNoDataset) {
		logging.WithFields(ctx, "operation", op).Warn("operation failed", "error", err)
	}
	return err
}

// mutate replaces the session dataset with the result of fn under the
// session lock. A failing fn leaves the session untouched.
func (s *Service) mutate(ctx context.Context, id string, op Operation, details map[string]any,
	fn func(*dataset.Table, dataset.Metadata) (*dataset.Table, dataset.Metadata, error)) (session.Snapshot, error) {
	start := time.Now()
	var prev session.Snapshot
	snap, err := s.sessions.Update(ctx, id, func(cur session.Snapshot) (session.Snapshot, error) {
		prev = cur
		t, meta, err := fn(cur.Table, cur.Meta)
		if err != nil {
			return session.Snapshot{}, err
		}
		return session.NewSnapshot(t, meta), nil
	})
	s.metrics.Observe(string(op), start, err)

	log := logging.WithFields(ctx, "operation", op)
	if err != nil {
		if !errors.Is(err, ErrNoDataset) {
			log.Warn("operation failed", "error", err)
		}
		return session.Snapshot{}, err
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:     AuditAction(op),
		SessionID:  id,
		FileName:   snap.Meta.FileName,
		RowsBefore: prev.Meta.Rows,
		ColsBefore: prev.Meta.Cols,
		RowsAfter:  snap.Meta.Rows,
		ColsAfter:  snap.Meta.Cols,
		Details:    details,
	})
	log.Info("dataset updated",
		"rows_before", prev.Meta.Rows,
		"rows_after", snap.Meta.Rows,
		"cols_before", prev.Meta.Cols,
		"cols_after", snap.Meta.Cols,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

// Sweep drops idle sessions when the store supports it.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	sw, ok := s.sessions.Store().(interface {
		Sweep(ctx context.Context) (int, error)
	})
	if !ok {
		return 0, nil
	}
	n, err := sw.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.SessionsSwept.Add(float64(n))
	return n, nil
}
