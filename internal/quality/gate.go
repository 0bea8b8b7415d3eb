package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/llm"
	"github.com/ternarybob/consilium/internal/models"
)

const (
	// PassingScore is the quality bar: drafts at or above it ship without
	// further revision.
	PassingScore = 7.0

	// sourceDataLimit caps the evidence excerpt handed to the rubric judge.
	sourceDataLimit = 4000

	defaultStrategyFocus = "Cost Leadership"
)

// ActivityFunc receives human-readable progress lines from the gate.
type ActivityFunc func(message string)

// Gate scores a draft with the hybrid scheme: deterministic checks
// contribute 0-4 points and the LLM rubric contributes 1-6, clamped onto
// a 1-10 scale.
type Gate struct {
	evaluator *Evaluator
	logger    arbor.ILogger
}

func NewGate(llm Querier, logger arbor.ILogger) *Gate {
	return &Gate{
		evaluator: NewEvaluator(llm),
		logger:    logger,
	}
}

// Review scores state.DraftReport and writes Score and Critique back.
// On an already-aborted run it performs no generation work: the score is
// pinned to 0 and Critique carries a user-facing failure message.
func (g *Gate) Review(ctx context.Context, state *models.WorkflowState, onActivity ActivityFunc) {
	activity := func(msg string) {
		if onActivity != nil {
			onActivity(msg)
		}
	}

	if state.Error != "" {
		activity("Skipping evaluation - workflow aborted")
		state.Critique = AbortMessage(state.Error)
		state.Score = 0
		return
	}

	activity(fmt.Sprintf("Evaluating SWOT quality (revision #%d)...", state.RevisionCount))

	sources := availableSources(state)

	det := RunChecks(state.DraftReport, sources)
	g.logger.Debug().
		Int("sections", det.Sections.PresentCount).
		Int("citations", det.Citations.Count).
		Float64("coverage_pct", det.Sources.CoveragePct).
		Bool("balanced", det.Balance.Balanced).
		Float64("deterministic", det.NormalizedScore).
		Msg("Deterministic checks complete")

	strategyFocus := state.StrategyFocus
	if strategyFocus == "" {
		strategyFocus = defaultStrategyFocus
	}

	sourceData := state.RawData
	if len(sourceData) > sourceDataLimit {
		sourceData = sourceData[:sourceDataLimit] + "\n... [truncated]"
	}

	activity("Calling LLM for quality evaluation...")
	rubric := g.evaluator.Evaluate(ctx, state.DraftReport, strategyFocus, sourceData)

	for _, pf := range rubric.ProvidersFailed {
		activity(fmt.Sprintf("LLM %s failed: %s", pf.Name, pf.Error))
	}
	state.RecordProviderFailures(rubric.ProvidersFailed)

	if rubric.Provider != "" {
		activity(fmt.Sprintf("LLM evaluation via %s", rubric.Provider))
	}

	final := det.NormalizedScore + float64(rubric.Score)
	if final < 1 {
		final = 1
	}
	if final > 10 {
		final = 10
	}

	g.logger.Info().
		Float64("deterministic", det.NormalizedScore).
		Int("rubric", rubric.Score).
		Float64("final", final).
		Msg("Draft scored")

	msg := fmt.Sprintf("Score: %.0f/10", final)
	if final < PassingScore {
		msg += " - needs revision"
	} else {
		msg += " - quality passed"
	}
	activity(msg)

	state.Critique = buildCritique(det, rubric)
	state.Score = final
}

// availableSources prefers the research stage's source list, falls back to
// the raw payload, then to the full known set so scoring still runs on
// states restored from older snapshots.
func availableSources(state *models.WorkflowState) []string {
	if len(state.SourcesAvailable) > 0 {
		return state.SourcesAvailable
	}

	var payload struct {
		SourcesAvailable []string `json:"sources_available"`
	}
	if err := json.Unmarshal([]byte(state.RawData), &payload); err == nil && len(payload.SourcesAvailable) > 0 {
		return payload.SourcesAvailable
	}

	return models.AllSources()
}

func buildCritique(det DeterministicResult, rubric RubricResult) string {
	balance := "Unbalanced"
	if det.Balance.Balanced {
		balance = "Balanced"
	}

	parts := []string{
		fmt.Sprintf("Deterministic Analysis (%d/%d pts):", det.TotalScore, det.MaxScore),
		fmt.Sprintf("  - SWOT Sections: %d/4 present", det.Sections.PresentCount),
		fmt.Sprintf("  - Numeric Citations: %d found", det.Citations.Count),
		fmt.Sprintf("  - Data Source Coverage: %.1f%%", det.Sources.CoveragePct),
		fmt.Sprintf("  - Section Balance: %s", balance),
		"",
		fmt.Sprintf("LLM Evaluation (%d/6 pts):", rubric.Score),
		fmt.Sprintf("  %s", rubric.Reasoning),
	}
	return strings.Join(parts, "\n")
}

// AbortMessage maps an internal failure onto the user-facing text shown in
// place of a critique when a run aborts.
func AbortMessage(internal string) string {
	switch {
	case llm.IsRateLimitMessage(internal):
		return "All AI providers are temporarily unavailable due to rate limits. Please wait a moment and try again."
	case strings.Contains(internal, "all generation providers failed"):
		return "Unable to connect to AI providers. Please check your API keys or try again later."
	default:
		return "Analysis could not be completed. Please try again."
	}
}
