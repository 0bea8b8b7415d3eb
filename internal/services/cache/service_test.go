package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/models"
	storage "github.com/ternarybob/consilium/internal/storage/badger"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()

	db, err := storage.NewDB(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "cache"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewService(db, ttl, common.GetLogger())
}

func sampleResult(ticker string) models.AnalysisResult {
	return models.AnalysisResult{
		CompanyName:   "Tesla",
		Ticker:        ticker,
		Score:         8.5,
		RevisionCount: 1,
		RawReport:     "Strengths:\n- revenue grew 12%",
		DataSource:    "live",
		ProviderUsed:  "claude:haiku",
	}
}

func TestGetMissOnEmptyCache(t *testing.T) {
	svc := newTestService(t, time.Hour)
	assert.Nil(t, svc.Get("TSLA"))
}

func TestSetThenGetHit(t *testing.T) {
	svc := newTestService(t, time.Hour)
	require.NoError(t, svc.Set("TSLA", "Tesla", sampleResult("TSLA")))

	got := svc.Get("TSLA")
	require.NotNil(t, got)

	assert.Equal(t, 8.5, got.Score)
	assert.Equal(t, "claude:haiku", got.ProviderUsed)
	assert.Equal(t, "true", got.CacheInfo["cached"])
	assert.NotEmpty(t, got.CacheInfo["expires_at"])
}

func TestGetNormalizesTicker(t *testing.T) {
	svc := newTestService(t, time.Hour)
	require.NoError(t, svc.Set("tsla", "Tesla", sampleResult("TSLA")))

	assert.NotNil(t, svc.Get("TSLA"))
	assert.NotNil(t, svc.Get(" tsla "))
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	svc := newTestService(t, time.Millisecond)
	require.NoError(t, svc.Set("TSLA", "Tesla", sampleResult("TSLA")))

	time.Sleep(5 * time.Millisecond)

	assert.Nil(t, svc.Get("TSLA"))

	// The expired entry was deleted on read.
	total, _, _ := svc.Stats()
	assert.Zero(t, total)
}

func TestSetReplacesAndRestartsTTL(t *testing.T) {
	svc := newTestService(t, time.Hour)
	require.NoError(t, svc.Set("TSLA", "Tesla", sampleResult("TSLA")))

	updated := sampleResult("TSLA")
	updated.Score = 9.0
	require.NoError(t, svc.Set("TSLA", "Tesla", updated))

	got := svc.Get("TSLA")
	require.NotNil(t, got)
	assert.Equal(t, 9.0, got.Score)

	total, valid, _ := svc.Stats()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, valid)
}

func TestSetStripsCacheMetadata(t *testing.T) {
	svc := newTestService(t, time.Hour)

	tainted := sampleResult("TSLA")
	tainted.CacheInfo = map[string]string{"cached": "true"}
	require.NoError(t, svc.Set("TSLA", "Tesla", tainted))

	got := svc.Get("TSLA")
	require.NotNil(t, got)
	// Metadata present reflects this read, not the stored payload.
	assert.Equal(t, "true", got.CacheInfo["cached"])
	assert.Contains(t, got.CacheInfo, "expires_at")
}

func TestClearExpiredSweep(t *testing.T) {
	svc := newTestService(t, time.Millisecond)
	require.NoError(t, svc.Set("TSLA", "Tesla", sampleResult("TSLA")))
	require.NoError(t, svc.Set("AAPL", "Apple", sampleResult("AAPL")))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, svc.ClearExpired())

	total, _, _ := svc.Stats()
	assert.Zero(t, total)
}

func TestClearSingleAndAll(t *testing.T) {
	svc := newTestService(t, time.Hour)
	require.NoError(t, svc.Set("TSLA", "Tesla", sampleResult("TSLA")))
	require.NoError(t, svc.Set("AAPL", "Apple", sampleResult("AAPL")))

	require.NoError(t, svc.Clear("tsla"))
	assert.Nil(t, svc.Get("TSLA"))
	assert.NotNil(t, svc.Get("AAPL"))

	require.NoError(t, svc.Clear(""))
	assert.Nil(t, svc.Get("AAPL"))

	// Clearing an absent ticker is not an error.
	require.NoError(t, svc.Clear("MSFT"))
}
