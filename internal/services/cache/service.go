// Package cache stores finished analysis results keyed by ticker so a
// repeat request within the TTL window skips the whole pipeline.
package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/consilium/internal/models"
	storage "github.com/ternarybob/consilium/internal/storage/badger"
)

// Entry is one cached analysis, keyed by upper-cased ticker.
type Entry struct {
	Ticker      string `badgerhold:"key"`
	CompanyName string
	Result      models.AnalysisResult
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Service is the ticker-keyed analysis cache. Reads validate expiry
// themselves; a cron sweep clears expired entries in the background so the
// store does not grow unbounded between hits.
type Service struct {
	db     *storage.DB
	ttl    time.Duration
	logger arbor.ILogger
	cron   *cron.Cron
}

func NewService(db *storage.DB, ttl time.Duration, logger arbor.ILogger) *Service {
	return &Service{
		db:     db,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached result for a ticker, or nil on miss. An expired
// entry is deleted on the spot and reported as a miss. Hits carry cache
// metadata so the caller can label the result's provenance.
func (s *Service) Get(ticker string) *models.AnalysisResult {
	key := normalizeTicker(ticker)

	var entry Entry
	if err := s.db.Store().Get(key, &entry); err != nil {
		if !errors.Is(err, badgerhold.ErrNotFound) {
			s.logger.Warn().Err(err).Str("ticker", key).Msg("Cache read failed")
		}
		s.logger.Info().Str("ticker", key).Msg("Cache MISS")
		return nil
	}

	if time.Now().After(entry.ExpiresAt) {
		if err := s.db.Store().Delete(key, &Entry{}); err != nil {
			s.logger.Warn().Err(err).Str("ticker", key).Msg("Could not delete expired entry")
		}
		s.logger.Info().Str("ticker", key).Msg("Cache MISS (expired)")
		return nil
	}

	result := entry.Result
	result.CacheInfo = map[string]string{
		"cached":     "true",
		"expires_at": entry.ExpiresAt.UTC().Format(time.RFC3339),
	}
	s.logger.Info().Str("ticker", key).Msg("Cache HIT")
	return &result
}

// Set stores a finished analysis under the ticker, replacing any previous
// entry and restarting the TTL clock. Cache metadata from an earlier hit is
// stripped before storage.
func (s *Service) Set(ticker, companyName string, result models.AnalysisResult) error {
	key := normalizeTicker(ticker)
	result.CacheInfo = nil

	entry := Entry{
		Ticker:      key,
		CompanyName: companyName,
		Result:      result,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().Add(s.ttl),
	}

	if err := s.db.Store().Upsert(key, entry); err != nil {
		return fmt.Errorf("cache write for %s failed: %w", key, err)
	}

	s.logger.Info().Str("ticker", key).Str("expires_at", entry.ExpiresAt.Format(time.RFC3339)).Msg("Cached analysis")
	return nil
}

// Clear removes one ticker's entry; with an empty ticker it removes all.
func (s *Service) Clear(ticker string) error {
	if ticker == "" {
		return s.db.Store().DeleteMatching(&Entry{}, badgerhold.Where("Ticker").Ne(""))
	}
	key := normalizeTicker(ticker)
	if err := s.db.Store().Delete(key, &Entry{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return err
	}
	return nil
}

// ClearExpired removes all expired entries and returns how many went.
func (s *Service) ClearExpired() int {
	var expired []Entry
	if err := s.db.Store().Find(&expired, badgerhold.Where("ExpiresAt").Le(time.Now())); err != nil {
		s.logger.Warn().Err(err).Msg("Cache sweep query failed")
		return 0
	}

	deleted := 0
	for _, entry := range expired {
		if err := s.db.Store().Delete(entry.Ticker, &Entry{}); err != nil {
			s.logger.Warn().Err(err).Str("ticker", entry.Ticker).Msg("Cache sweep delete failed")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Removed expired cache entries")
	}
	return deleted
}

// Stats reports entry counts for the status endpoint.
func (s *Service) Stats() (total, valid, expired int) {
	now := time.Now()
	var entries []Entry
	if err := s.db.Store().Find(&entries, badgerhold.Where("Ticker").Ne("")); err != nil {
		s.logger.Warn().Err(err).Msg("Cache stats query failed")
		return 0, 0, 0
	}
	for _, entry := range entries {
		if entry.ExpiresAt.After(now) {
			valid++
		} else {
			expired++
		}
	}
	return len(entries), valid, expired
}

// StartJanitor schedules the periodic expired-entry sweep. The schedule uses
// six-field cron syntax (with seconds).
func (s *Service) StartJanitor(schedule string) error {
	s.cron = cron.New(cron.WithSeconds())
	if _, err := s.cron.AddFunc(schedule, func() {
		if s.ClearExpired() > 0 {
			s.db.RunGC()
		}
	}); err != nil {
		return fmt.Errorf("invalid cache cleanup schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("Cache janitor started")
	return nil
}

// Stop halts the janitor if it was started.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
