package core

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/workbench/internal/logging"
)

// AuditAction is the audited operation. It shares the names of Operation.
type AuditAction string

const (
	ActionLoad          = AuditAction(OpLoad)
	ActionClear         = AuditAction(OpClear)
	ActionDropColumns   = AuditAction(OpDropColumns)
	ActionDropRows      = AuditAction(OpDropRows)
	ActionImpute        = AuditAction(OpImpute)
	ActionTreatOutliers = AuditAction(OpTreatOutliers)
	ActionPreprocess    = AuditAction(OpPreprocess)
	ActionApplyRecipe   = AuditAction(OpApplyRecipe)
	ActionExport        = AuditAction(OpExport)
)

// AuditSeverity ranks how much an action changed.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// DefaultAuditLimit is the page size of audit queries.
const DefaultAuditLimit = 100

// AuditEntry is one audit log record.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     AuditAction    `json:"action"`
	Severity   AuditSeverity  `json:"severity"`
	SessionID  string         `json:"sessionId"`
	FileName   string         `json:"fileName,omitempty"`
	RowsBefore int            `json:"rowsBefore"`
	ColsBefore int            `json:"colsBefore"`
	RowsAfter  int            `json:"rowsAfter"`
	ColsAfter  int            `json:"colsAfter"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AuditLogParams describes an entry to record.
type AuditLogParams struct {
	Action     AuditAction
	SessionID  string
	FileName   string
	RowsBefore int
	ColsBefore int
	RowsAfter  int
	ColsAfter  int
	Details    map[string]any
}

// AuditLogFilter narrows an audit query. Zero fields match everything.
type AuditLogFilter struct {
	SessionID string
	Action    AuditAction
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

func (f AuditLogFilter) matches(e AuditEntry) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

func (f AuditLogFilter) withDefaults() AuditLogFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// AuditStore persists audit entries.
type AuditStore interface {
	Record(ctx context.Context, e AuditEntry) error
	// List returns matching entries, newest first.
	List(ctx context.Context, f AuditLogFilter) ([]AuditEntry, error)
	// Purge deletes entries created before cutoff.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionClear:
		return SeverityCritical
	case ActionLoad, ActionPreprocess, ActionApplyRecipe:
		return SeverityHigh
	case ActionExport:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit records an entry. The operation being audited has already
// happened, so a store failure is logged and not returned.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) *AuditEntry {
	if s.audit == nil {
		return nil
	}
	client := ClientFromContext(ctx)
	entry := AuditEntry{
		ID:         uuid.NewString(),
		Action:     params.Action,
		Severity:   determineSeverity(params.Action),
		SessionID:  params.SessionID,
		FileName:   params.FileName,
		RowsBefore: params.RowsBefore,
		ColsBefore: params.ColsBefore,
		RowsAfter:  params.RowsAfter,
		ColsAfter:  params.ColsAfter,
		Details:    params.Details,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logging.FromContext(ctx).Error("audit record failed",
			"action", params.Action,
			"error", err,
		)
		return nil
	}
	return &entry
}

// AuditLog returns audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, f AuditLogFilter) ([]AuditEntry, error) {
	if s.audit == nil {
		return []AuditEntry{}, nil
	}
	return s.audit.List(ctx, f.withDefaults())
}

// DefaultMemoryAuditCapacity bounds MemoryAuditStore.
const DefaultMemoryAuditCapacity = 10000

// MemoryAuditStore keeps the most recent entries in memory. When full,
// the oldest entry is dropped.
type MemoryAuditStore struct {
	mu       sync.RWMutex
	entries  []AuditEntry
	capacity int
}

// NewMemoryAuditStore creates a store holding up to capacity entries.
func NewMemoryAuditStore(capacity int) *MemoryAuditStore {
	if capacity <= 0 {
		capacity = DefaultMemoryAuditCapacity
	}
	return &MemoryAuditStore{capacity: capacity}
}

// Record appends e.
func (m *MemoryAuditStore) Record(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == m.capacity {
		m.entries = slices.Delete(m.entries, 0, 1)
	}
	m.entries = append(m.entries, e)
	return nil
}

// List returns matching entries, newest first.
func (m *MemoryAuditStore) List(_ context.Context, f AuditLogFilter) ([]AuditEntry, error) {
	f = f.withDefaults()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []AuditEntry{}
	skipped := 0
	for i := len(m.entries) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := m.entries[i]
		if !f.matches(e) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Purge drops entries created before cutoff.
func (m *MemoryAuditStore) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.entries)
	m.entries = slices.DeleteFunc(m.entries, func(e AuditEntry) bool {
		return e.CreatedAt.Before(cutoff)
	})
	return int64(before - len(m.entries)), nil
}
