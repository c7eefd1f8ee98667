package task

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/types"
	"github.com/BaSui01/deepresearch/workflow"
)

// MemoryRegistry is an in-process registry. Records live for the lifetime of
// the process; restarting the service forgets all tasks.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]*Record
	logger  *zap.Logger
	now     func() time.Time
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry(logger *zap.Logger) *MemoryRegistry {
	return &MemoryRegistry{
		records: make(map[string]*Record),
		logger:  logger.With(zap.String("component", "task_registry")),
		now:     time.Now,
	}
}

func (m *MemoryRegistry) Create(ctx context.Context, query string) (*Record, error) {
	now := m.now()
	rec := &Record{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	cp := *rec

	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()

	m.logger.Debug("task created", zap.String("task_id", rec.ID))
	return &cp, nil
}

func (m *MemoryRegistry) Get(ctx context.Context, id string) (*Record, error) {
	// Snapshot under the lock: finish mutates the stored record in place.
	m.mu.RLock()
	rec, ok := m.records[id]
	var cp Record
	if ok {
		cp = *rec
	}
	m.mu.RUnlock()

	if !ok {
		return nil, notFound(id)
	}
	return &cp, nil
}

func (m *MemoryRegistry) Complete(ctx context.Context, id string, state *workflow.State) error {
	return m.finish(id, StatusCompleted, NewResult(state), "")
}

func (m *MemoryRegistry) Fail(ctx context.Context, id string, reason string) error {
	return m.finish(id, StatusFailed, nil, reason)
}

// finish performs the once-only terminal write under the registry lock.
func (m *MemoryRegistry) finish(id, status string, result *Result, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return notFound(id)
	}
	if rec.Terminal() {
		return fmt.Errorf("task %s already terminal with status %s", id, rec.Status)
	}

	rec.Status = status
	rec.Result = result
	rec.Error = reason
	rec.UpdatedAt = m.now()

	m.logger.Debug("task finished",
		zap.String("task_id", id),
		zap.String("status", status),
	)
	return nil
}

func notFound(id string) error {
	return types.NewError(types.ErrTaskNotFound,
		fmt.Sprintf("task not found: %s", id)).WithHTTPStatus(http.StatusNotFound)
}
