package progress

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/models"
)

func TestCreateInitializesIdleStatuses(t *testing.T) {
	store := NewStore()
	store.Create("wf-1", "Tesla", "TSLA", "Growth", []string{"claude", "gemini"})

	snapshot, ok := store.Get("wf-1")
	require.True(t, ok)

	assert.Equal(t, models.WorkflowStatusStarting, snapshot.Status)
	assert.Equal(t, models.StepInput, snapshot.CurrentStep)
	assert.Len(t, snapshot.SourceStatus, 6)
	for source, status := range snapshot.SourceStatus {
		assert.Equal(t, models.SourceStatusIdle, status, source)
	}
	assert.Equal(t, models.SourceStatusIdle, snapshot.ProviderStatus["claude"])
	assert.False(t, snapshot.StartedAt.IsZero())
}

func TestGetUnknownWorkflow(t *testing.T) {
	store := NewStore()
	_, ok := store.Get("missing")
	assert.False(t, ok)

	// Mutators on unknown ids are no-ops, not panics.
	store.AppendActivity("missing", "cache", "ignored")
	store.SetStatus("missing", models.WorkflowStatusCompleted)
}

func TestAppendMetricMirrorsToActivityLog(t *testing.T) {
	store := NewStore()
	store.Create("wf-1", "Tesla", "TSLA", "Growth", nil)

	store.AppendMetric("wf-1", "financials", "revenue", 96.77)
	store.AppendMetric("wf-1", "valuation", "pe_ratio", 21)

	snapshot, _ := store.Get("wf-1")
	require.Len(t, snapshot.Metrics, 2)
	require.Len(t, snapshot.ActivityLog, 2)

	assert.Equal(t, "Fetched revenue: 96.77", snapshot.ActivityLog[0].Message)
	assert.Equal(t, "Fetched pe_ratio: 21", snapshot.ActivityLog[1].Message)
	assert.Equal(t, models.SourceStatusCompleted, snapshot.SourceStatus["financials"])
	assert.Equal(t, models.SourceStatusCompleted, snapshot.SourceStatus["valuation"])
	assert.Equal(t, models.SourceStatusIdle, snapshot.SourceStatus["news"])
}

func TestSetStatusStampsFinishedAt(t *testing.T) {
	store := NewStore()
	store.Create("wf-1", "Tesla", "TSLA", "Growth", nil)

	store.SetStatus("wf-1", models.WorkflowStatusRunning)
	snapshot, _ := store.Get("wf-1")
	assert.Nil(t, snapshot.FinishedAt)

	store.SetStatus("wf-1", models.WorkflowStatusAborted)
	snapshot, _ = store.Get("wf-1")
	require.NotNil(t, snapshot.FinishedAt)
}

func TestSnapshotIsDetached(t *testing.T) {
	store := NewStore()
	store.Create("wf-1", "Tesla", "TSLA", "Growth", nil)
	store.AppendActivity("wf-1", "cache", "first")

	snapshot, _ := store.Get("wf-1")
	store.AppendActivity("wf-1", "cache", "second")
	store.SetSourceStatus("wf-1", "news", models.SourceStatusFailed)

	// The earlier snapshot must not see later writes.
	assert.Len(t, snapshot.ActivityLog, 1)
	assert.Equal(t, models.SourceStatusIdle, snapshot.SourceStatus["news"])
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	store := NewStore()
	store.Create("wf-1", "Tesla", "TSLA", "Growth", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.AppendActivity("wf-1", "research", fmt.Sprintf("writer %d line %d", n, j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Get("wf-1")
			}
		}()
	}
	wg.Wait()

	snapshot, _ := store.Get("wf-1")
	assert.Len(t, snapshot.ActivityLog, 8*50)
}
