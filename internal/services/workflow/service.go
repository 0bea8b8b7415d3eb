// Package workflow owns the lifecycle of analysis runs: it creates the
// progress record, consults the result cache, drives the engine in the
// background, and assembles the final structured result.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/engine"
	"github.com/ternarybob/consilium/internal/models"
	"github.com/ternarybob/consilium/internal/progress"
	"github.com/ternarybob/consilium/internal/services/cache"
	"github.com/ternarybob/consilium/internal/services/confidence"
	"github.com/ternarybob/consilium/internal/services/swot"
)

// Runner is the engine surface the service drives. Satisfied by *engine.Engine.
type Runner interface {
	Run(ctx context.Context, state *models.WorkflowState, cb engine.Callbacks) error
}

// Service starts and tracks analysis workflows
type Service struct {
	engine    Runner
	store     *progress.Store
	cache     *cache.Service
	providers []string
	logger    arbor.ILogger
}

func NewService(runner Runner, store *progress.Store, cacheSvc *cache.Service, providers []string, logger arbor.ILogger) *Service {
	return &Service{
		engine:    runner,
		store:     store,
		cache:     cacheSvc,
		providers: providers,
		logger:    logger,
	}
}

// Start registers a new workflow and launches it in the background.
// The returned identifier can be polled immediately.
func (s *Service) Start(req models.AnalysisRequest) string {
	id := uuid.NewString()

	company := common.NormalizeCompanyName(req.Name)
	ticker := common.NormalizeTicker(req.Ticker)
	if ticker == "" {
		ticker = common.LookupTicker(company)
	}
	if ticker == "" {
		ticker = common.FallbackTicker(company)
	}

	focus := strings.TrimSpace(req.StrategyFocus)

	s.store.Create(id, company, ticker, focus, s.providers)

	go s.run(id, company, ticker, focus)

	return id
}

// Status returns a point-in-time copy of the workflow progress record.
func (s *Service) Status(id string) (models.WorkflowSnapshot, bool) {
	return s.store.Get(id)
}

// run executes one workflow end to end. It never returns an error; every
// failure mode lands in the progress record for the status endpoint.
func (s *Service) run(id, company, ticker, focus string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("workflow_id", id).Str("panic", fmt.Sprintf("%v", r)).Msg("Workflow panicked")
			s.store.Update(id, func(w *models.WorkflowSnapshot) {
				w.Error = fmt.Sprintf("internal error: %v", r)
				w.CurrentStep = models.StepAborted
			})
			s.store.SetStatus(id, models.WorkflowStatusError)
		}
	}()

	ctx := context.Background()

	s.store.SetStep(id, models.StepCache)
	s.store.AppendActivity(id, string(models.StepCache), fmt.Sprintf("Checking cache for %s", ticker))

	if cached := s.cache.Get(ticker); cached != nil {
		s.store.AppendActivity(id, string(models.StepCache), fmt.Sprintf("Cache HIT for %s - returning stored analysis", ticker))
		s.store.Update(id, func(w *models.WorkflowSnapshot) {
			w.Score = cached.Score
			w.RevisionCount = cached.RevisionCount
			w.ProviderUsed = cached.ProviderUsed
			w.DataSource = "cache"
			w.CurrentStep = models.StepCompleted
			cached.DataSource = "cache"
			w.Result = cached
		})
		s.store.SetStatus(id, models.WorkflowStatusCompleted)
		return
	}

	s.store.AppendActivity(id, string(models.StepCache), fmt.Sprintf("Cache MISS for %s - running full analysis", ticker))
	s.store.SetStatus(id, models.WorkflowStatusRunning)

	state := &models.WorkflowState{
		CompanyName:   company,
		Ticker:        ticker,
		StrategyFocus: focus,
	}

	currentStep := models.StepResearch
	cb := engine.Callbacks{
		OnStep: func(step models.Step) {
			currentStep = step
			s.store.SetStep(id, step)
		},
		OnActivity: func(step models.Step, message string) {
			s.store.AppendActivity(id, string(step), message)
		},
		OnMetric: func(source, metric string, value any) {
			s.store.AppendMetric(id, source, metric, value)
		},
		OnProgress: func(score float64, revisions int) {
			s.store.Update(id, func(w *models.WorkflowSnapshot) {
				w.Score = score
				w.RevisionCount = revisions
			})
		},
	}

	err := s.engine.Run(ctx, state, cb)

	s.applySourceStatuses(id, state)
	s.applyProviderStatuses(id, state)

	if err != nil {
		status := models.WorkflowStatusError
		if errors.Is(err, engine.ErrInsufficientCoreData) || errors.Is(err, engine.ErrAllSourcesFailed) {
			status = models.WorkflowStatusAborted
		}
		s.store.AppendActivity(id, string(currentStep), fmt.Sprintf("Workflow failed: %v", err))
		s.store.Update(id, func(w *models.WorkflowSnapshot) {
			w.Error = err.Error()
			w.CurrentStep = models.StepAborted
		})
		s.store.SetStatus(id, status)
		s.logger.Warn().Str("workflow_id", id).Err(err).Msg("Workflow failed during research")
		return
	}

	if state.Error != "" {
		s.store.AppendActivity(id, string(currentStep), fmt.Sprintf("Workflow aborted: %s", state.Error))
		s.store.Update(id, func(w *models.WorkflowSnapshot) {
			w.Error = state.Error
			w.Score = state.Score
			w.RevisionCount = state.RevisionCount
			w.CurrentStep = models.StepAborted
		})
		s.store.SetStatus(id, models.WorkflowStatusAborted)
		s.logger.Warn().Str("workflow_id", id).Str("error", state.Error).Msg("Workflow aborted")
		return
	}

	result := s.buildResult(state)

	if cacheErr := s.cache.Set(ticker, company, result); cacheErr != nil {
		s.logger.Warn().Str("ticker", ticker).Err(cacheErr).Msg("Failed to cache analysis result")
	} else {
		s.store.AppendActivity(id, string(models.StepCompleted), fmt.Sprintf("Cached analysis for %s", ticker))
	}

	s.store.Update(id, func(w *models.WorkflowSnapshot) {
		w.Score = state.Score
		w.RevisionCount = state.RevisionCount
		w.ProviderUsed = state.ProviderUsed
		w.DataSource = "live"
		w.CurrentStep = models.StepCompleted
		w.Result = &result
	})
	s.store.SetStatus(id, models.WorkflowStatusCompleted)

	s.logger.Info().
		Str("workflow_id", id).
		Str("ticker", ticker).
		Float64("score", state.Score).
		Int("revisions", state.RevisionCount).
		Msg("Workflow completed")
}

// buildResult assembles the caller-facing record from the final run state.
func (s *Service) buildResult(state *models.WorkflowState) models.AnalysisResult {
	sections := swot.Parse(state.DraftReport)
	mergeAggregatedSwot(&sections, state.RawData)

	conf := confidence.Calculate(state.Score, state.SourcesAvailable, state.SourcesFailed)

	return models.AnalysisResult{
		CompanyName:   state.CompanyName,
		Ticker:        state.Ticker,
		Score:         state.Score,
		RevisionCount: state.RevisionCount,
		ReportLength:  len(state.DraftReport),
		Critique:      state.Critique,
		Swot:          sections,
		RawReport:     state.DraftReport,
		DataSource:    "live",
		ProviderUsed:  state.ProviderUsed,
		Confidence:    conf,
	}
}

func (s *Service) applySourceStatuses(id string, state *models.WorkflowState) {
	for _, source := range state.SourcesAvailable {
		s.store.SetSourceStatus(id, source, models.SourceStatusCompleted)
	}
	for _, source := range state.SourcesFailed {
		s.store.SetSourceStatus(id, source, models.SourceStatusFailed)
	}
}

func (s *Service) applyProviderStatuses(id string, state *models.WorkflowState) {
	for _, failure := range state.ProvidersFailed {
		s.store.SetProviderStatus(id, failure.Name, models.SourceStatusFailed)
	}
	if state.ProviderUsed != "" {
		name := state.ProviderUsed
		if idx := strings.Index(name, ":"); idx > 0 {
			name = name[:idx]
		}
		s.store.SetProviderStatus(id, name, models.SourceStatusCompleted)
	}
}

// mergeAggregatedSwot folds pre-classified signals from the research payload
// into the parsed report sections, skipping near-duplicates. Two items are
// considered the same when their first fifty characters match case-insensitively.
func mergeAggregatedSwot(sections *models.SwotSections, rawData string) {
	if rawData == "" {
		return
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		return
	}
	agg, _ := data["aggregated_swot"].(map[string]any)
	if agg == nil {
		return
	}

	merge := func(target *[]string, category string) {
		seen := make(map[string]struct{}, len(*target))
		for _, item := range *target {
			seen[dedupKey(item)] = struct{}{}
		}
		items, _ := agg[category].([]any)
		for _, raw := range items {
			item, ok := raw.(string)
			if !ok || strings.TrimSpace(item) == "" {
				continue
			}
			key := dedupKey(item)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			*target = append(*target, item)
		}
	}

	merge(&sections.Strengths, "strengths")
	merge(&sections.Weaknesses, "weaknesses")
	merge(&sections.Opportunities, "opportunities")
	merge(&sections.Threats, "threats")
}

func dedupKey(item string) string {
	key := strings.ToLower(strings.TrimSpace(item))
	if len(key) > 50 {
		key = key[:50]
	}
	return key
}
