package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/consilium/internal/models"
)

// Store is the in-memory progress board for running and finished workflows.
// Workers write through the mutator methods while status handlers read
// snapshots concurrently. Records live until process exit; the result cache
// is what survives restarts.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]*models.WorkflowSnapshot
}

func NewStore() *Store {
	return &Store{workflows: make(map[string]*models.WorkflowSnapshot)}
}

// Create registers a new workflow record in the starting state with every
// evidence source and generation provider marked idle.
func (s *Store) Create(id, companyName, ticker, strategyFocus string, providers []string) {
	sourceStatus := make(map[string]models.SourceStatus)
	for _, source := range models.AllSources() {
		sourceStatus[source] = models.SourceStatusIdle
	}
	providerStatus := make(map[string]models.SourceStatus)
	for _, p := range providers {
		providerStatus[p] = models.SourceStatusIdle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[id] = &models.WorkflowSnapshot{
		ID:             id,
		Status:         models.WorkflowStatusStarting,
		CurrentStep:    models.StepInput,
		CompanyName:    companyName,
		Ticker:         ticker,
		StrategyFocus:  strategyFocus,
		ActivityLog:    []models.ActivityEntry{},
		Metrics:        []models.MetricEntry{},
		SourceStatus:   sourceStatus,
		ProviderStatus: providerStatus,
		StartedAt:      time.Now().UTC(),
	}
}

// Get returns a copy of the workflow record. The copy detaches the lists
// and maps so callers may hold it past the read lock.
func (s *Store) Get(id string) (models.WorkflowSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.workflows[id]
	if !ok {
		return models.WorkflowSnapshot{}, false
	}

	snapshot := *record
	snapshot.ActivityLog = append([]models.ActivityEntry(nil), record.ActivityLog...)
	snapshot.Metrics = append([]models.MetricEntry(nil), record.Metrics...)
	snapshot.SourceStatus = copyStatusMap(record.SourceStatus)
	snapshot.ProviderStatus = copyStatusMap(record.ProviderStatus)
	return snapshot, true
}

// Update applies a mutation to the workflow record under the write lock.
// Unknown ids are ignored so late callbacks from a finished worker are safe.
func (s *Store) Update(id string, fn func(*models.WorkflowSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.workflows[id]; ok {
		fn(record)
	}
}

// AppendActivity adds one line to the workflow activity log.
func (s *Store) AppendActivity(id, step, message string) {
	s.Update(id, func(w *models.WorkflowSnapshot) {
		w.ActivityLog = append(w.ActivityLog, models.ActivityEntry{
			Timestamp: time.Now().UTC(),
			Step:      step,
			Message:   message,
		})
	})
}

// AppendMetric records a streamed evidence metric, mirrors it into the
// activity log, and marks the originating source as delivering.
func (s *Store) AppendMetric(id, source, metric string, value any) {
	display := fmt.Sprintf("%v", value)
	if f, ok := value.(float64); ok {
		display = fmt.Sprintf("%.2f", f)
	}

	s.Update(id, func(w *models.WorkflowSnapshot) {
		now := time.Now().UTC()
		w.Metrics = append(w.Metrics, models.MetricEntry{
			Timestamp: now,
			Source:    source,
			Metric:    metric,
			Value:     value,
		})
		w.ActivityLog = append(w.ActivityLog, models.ActivityEntry{
			Timestamp: now,
			Step:      source,
			Message:   fmt.Sprintf("Fetched %s: %s", metric, display),
		})
		if _, ok := w.SourceStatus[source]; ok {
			w.SourceStatus[source] = models.SourceStatusCompleted
		}
	})
}

// SetStep moves the workflow to a pipeline stage.
func (s *Store) SetStep(id string, step models.Step) {
	s.Update(id, func(w *models.WorkflowSnapshot) {
		w.CurrentStep = step
	})
}

// SetStatus sets the lifecycle status; terminal states also stamp FinishedAt.
func (s *Store) SetStatus(id string, status models.WorkflowStatus) {
	s.Update(id, func(w *models.WorkflowSnapshot) {
		w.Status = status
		switch status {
		case models.WorkflowStatusCompleted, models.WorkflowStatusAborted, models.WorkflowStatusError:
			now := time.Now().UTC()
			w.FinishedAt = &now
		}
	})
}

// SetSourceStatus marks an evidence source's terminal outcome.
func (s *Store) SetSourceStatus(id, source string, status models.SourceStatus) {
	s.Update(id, func(w *models.WorkflowSnapshot) {
		if _, ok := w.SourceStatus[source]; ok {
			w.SourceStatus[source] = status
		}
	})
}

// SetProviderStatus marks a generation provider's outcome.
func (s *Store) SetProviderStatus(id, provider string, status models.SourceStatus) {
	s.Update(id, func(w *models.WorkflowSnapshot) {
		if _, ok := w.ProviderStatus[provider]; ok {
			w.ProviderStatus[provider] = status
		}
	})
}

func copyStatusMap(in map[string]models.SourceStatus) map[string]models.SourceStatus {
	out := make(map[string]models.SourceStatus, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
