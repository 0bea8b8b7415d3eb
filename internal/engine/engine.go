package engine

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/gateway"
	"github.com/ternarybob/consilium/internal/models"
	"github.com/ternarybob/consilium/internal/quality"
)

// maxRevisions bounds the quality loop: the gate may send a draft back to
// revision until RevisionCount exceeds it, so a run performs at most four
// revise attempts.
const maxRevisions = 3

// Researcher fetches the evidence payload for a company. Satisfied by
// *gateway.Client.
type Researcher interface {
	Research(ctx context.Context, company, ticker string, onMetric gateway.MetricCallback, onActivity gateway.ActivityCallback) (map[string]any, error)
}

// Callbacks receives progress events while a run executes. Any field may be
// nil; the engine reports through whatever is wired.
type Callbacks struct {
	OnStep     func(step models.Step)
	OnActivity func(step models.Step, message string)
	OnMetric   func(source, metric string, value any)
	OnProgress func(score float64, revisionCount int)
}

func (cb Callbacks) step(step models.Step) {
	if cb.OnStep != nil {
		cb.OnStep(step)
	}
}

func (cb Callbacks) activity(step models.Step, message string) {
	if cb.OnActivity != nil {
		cb.OnActivity(step, message)
	}
}

func (cb Callbacks) progress(score float64, revisions int) {
	if cb.OnProgress != nil {
		cb.OnProgress(score, revisions)
	}
}

// Engine drives one analysis run through its stages: research the evidence,
// draft a report, then loop score and revise until the draft passes the
// quality gate or a stop condition fires.
type Engine struct {
	llm        Querier
	researcher Researcher
	gate       *quality.Gate
	logger     arbor.ILogger
}

// Querier is the generation client surface the engine needs.
type Querier = quality.Querier

func New(llm Querier, researcher Researcher, logger arbor.ILogger) *Engine {
	return &Engine{
		llm:        llm,
		researcher: researcher,
		gate:       quality.NewGate(llm, logger),
		logger:     logger,
	}
}

// Run executes the pipeline against state. A returned error means the run
// could not produce any report (research failure); generation failures after
// research are recorded in state.Error instead, leaving the canned critique
// in place for the caller to surface.
func (e *Engine) Run(ctx context.Context, state *models.WorkflowState, cb Callbacks) error {
	cb.step(models.StepResearch)
	if err := e.research(ctx, state, cb); err != nil {
		return err
	}

	cb.step(models.StepDraft)
	e.draft(ctx, state, cb)

	for {
		cb.step(models.StepScore)
		e.gate.Review(ctx, state, func(msg string) {
			cb.activity(models.StepScore, msg)
		})
		cb.progress(state.Score, state.RevisionCount)

		if shouldExit(state) {
			break
		}

		cb.step(models.StepRevise)
		e.revise(ctx, state, cb)
		cb.progress(state.Score, state.RevisionCount)
	}

	e.logger.Info().
		Str("company", state.CompanyName).
		Float64("score", state.Score).
		Int("revisions", state.RevisionCount).
		Bool("editor_skipped", state.EditorSkipped).
		Str("error", state.Error).
		Msg("Run finished")

	return nil
}

// shouldExit decides whether the score/revise loop stops. Checked in order:
// a terminal error aborts, a skipped revision ships the fallback draft, a
// passing score ships the current draft, and the revision cap ships whatever
// the final attempt produced.
func shouldExit(state *models.WorkflowState) bool {
	if state.Error != "" {
		return true
	}
	if state.EditorSkipped {
		return true
	}
	if state.Score >= quality.PassingScore {
		return true
	}
	return state.RevisionCount > maxRevisions
}
