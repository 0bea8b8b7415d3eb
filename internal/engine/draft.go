package engine

import (
	"context"
	"fmt"

	"github.com/ternarybob/consilium/internal/models"
)

const (
	defaultStrategyFocus = "Cost Leadership"

	// evidenceLimit caps the raw evidence excerpt embedded in the revision
	// prompt so it stays within provider token limits.
	evidenceLimit = 4000
)

// Strategy context injected into the draft prompt so the analysis leans
// toward the caller's chosen lens.
var strategyContexts = map[string]string{
	"Cost Leadership": "Evaluate whether the company can win by operating cheaper than rivals: margins, scale, debt burden, and cost structure matter most.",
	"Differentiation": "Evaluate whether the company commands premium pricing through brand, product quality, or unique capabilities.",
	"Growth":          "Evaluate expansion potential: revenue trajectory, addressable market signals, and reinvestment capacity.",
	"Innovation":      "Evaluate the company's ability to out-invent rivals: R&D leverage, product pipeline signals, and disruption exposure.",
	"Defensive":       "Evaluate resilience: balance sheet strength, volatility exposure, and sensitivity to macro deterioration.",
}

func strategyContext(name string) string {
	if ctx, ok := strategyContexts[name]; ok {
		return ctx
	}
	return strategyContexts[defaultStrategyFocus]
}

// draft generates the initial report from the evidence payload. Provider
// exhaustion here is terminal: with no draft at all there is nothing to
// score or revise, so the run aborts through state.Error.
func (e *Engine) draft(ctx context.Context, state *models.WorkflowState, cb Callbacks) {
	strategy := state.StrategyFocus
	if strategy == "" {
		strategy = defaultStrategyFocus
	}

	evidence := state.RawData
	if extracted, err := extractKeyMetrics(state.RawData); err == nil {
		evidence = formatEvidence(extracted)
	} else {
		e.logger.Warn().Err(err).Msg("Evidence digest unavailable, prompting with raw payload")
	}

	cb.activity(models.StepDraft, "Calling LLM to generate SWOT analysis...")

	prompt := draftPrompt(state.CompanyName, state.Ticker, strategy, evidence)
	text, provider, failures, err := e.llm.Query(ctx, prompt, 0, 4096)

	for _, pf := range failures {
		cb.activity(models.StepDraft, fmt.Sprintf("LLM %s failed: %s", pf.Name, pf.Error))
	}
	state.RecordProviderFailures(failures)

	if err != nil {
		state.DraftReport = fmt.Sprintf("Error generating analysis: %v", err)
		state.ProviderUsed = ""
		state.Error = err.Error()
		cb.activity(models.StepDraft, fmt.Sprintf("LLM error: %v", err))
		cb.activity(models.StepDraft, "Workflow aborted - all LLM providers unavailable")
		return
	}

	state.DraftReport = text
	state.ProviderUsed = provider
	cb.activity(models.StepDraft, fmt.Sprintf("SWOT generated via %s", provider))
}

// revise rewrites the draft against the latest critique. The attempt counts
// toward the revision cap whether or not it produces a new draft; a failed
// attempt keeps the previous draft and marks EditorSkipped so the loop ships
// it instead of retrying a dead provider chain.
func (e *Engine) revise(ctx context.Context, state *models.WorkflowState, cb Callbacks) {
	attempt := state.RevisionCount + 1

	if state.Error != "" {
		cb.activity(models.StepRevise, "Skipping revision - workflow aborted")
		state.RevisionCount = attempt
		return
	}

	cb.activity(models.StepRevise, fmt.Sprintf("Revision #%d in progress...", attempt))

	strategy := state.StrategyFocus
	if strategy == "" {
		strategy = defaultStrategyFocus
	}

	evidence := state.RawData
	if len(evidence) > evidenceLimit {
		evidence = evidence[:evidenceLimit] + "\n... [truncated]"
	}

	prompt := revisePrompt(evidence, state.DraftReport, state.Critique, strategy)
	text, provider, failures, err := e.llm.Query(ctx, prompt, 0, 4096)

	for _, pf := range failures {
		cb.activity(models.StepRevise, fmt.Sprintf("LLM %s failed: %s", pf.Name, pf.Error))
	}
	state.RecordProviderFailures(failures)

	if err != nil {
		cb.activity(models.StepRevise, fmt.Sprintf("Revision failed: %v", err))
		if attempt == 1 {
			cb.activity(models.StepRevise, "Using initial draft (revision unavailable)")
		} else {
			cb.activity(models.StepRevise, fmt.Sprintf("Using revision #%d draft (further revision unavailable)", attempt-1))
		}
		state.EditorSkipped = true
	} else {
		state.DraftReport = text
		state.ProviderUsed = provider
		state.EditorSkipped = false
		cb.activity(models.StepRevise, fmt.Sprintf("Revision #%d completed via %s", attempt, provider))
	}

	state.RevisionCount = attempt
}

func draftPrompt(company, ticker, strategy, evidence string) string {
	return fmt.Sprintf(`You are a financial analyst creating a SWOT analysis for %[1]s (%[2]s).

CRITICAL INSTRUCTIONS:
1. ONLY use the data provided below. DO NOT invent or assume any information.
2. Every point MUST cite specific numbers from the data (e.g., "P/E of 21.3", "Beta of 0.88").
3. If data is missing for a category, say "Insufficient data" - do NOT make up information.
4. Focus on what the numbers actually mean for this specific company.
5. This is a %[1]s - tailor your analysis to their industry (e.g., bank, tech, retail).

Strategic Focus: %[3]s
Context: %[4]s

=== ACTUAL DATA FROM FINANCIAL SOURCES ===
%[5]s

Based ONLY on the data above, provide a SWOT analysis in this format:

Strengths:
- [Cite specific metrics that show strengths]

Weaknesses:
- [Cite specific metrics that show weaknesses]

Opportunities:
- [Cite macro/market conditions that create opportunities]

Threats:
- [Cite risks from volatility, macro conditions, or sentiment]

Remember: Every bullet point must reference actual data provided above. Do not invent any figures or facts.`,
		company, ticker, strategy, strategyContext(strategy), evidence)
}

func revisePrompt(evidence, draft, critique, strategy string) string {
	return fmt.Sprintf(`You are revising a SWOT analysis based on critique feedback.

CRITICAL GROUNDING RULES:
1. You may ONLY use facts and numbers from the SOURCE DATA provided below.
2. DO NOT invent, assume, or fabricate any information not in the source data.
3. Every claim must cite specific numbers from the source data.
4. If the critique asks for information not in the source data, state "Data not available".

SOURCE DATA (use ONLY this for facts and numbers):
%[1]s

CURRENT DRAFT:
%[2]s

CRITIQUE:
%[3]s

Strategic Focus: %[4]s

REVISION INSTRUCTIONS:
1. Address the critique points using ONLY data from SOURCE DATA above
2. Ensure all 4 SWOT sections are present and complete
3. Every bullet point must cite specific metrics from the source data
4. Make sure strengths/opportunities are positive, weaknesses/threats are negative
5. Align analysis with %[4]s strategic focus
6. If data is missing for a point, remove that point rather than inventing data

Return only the improved SWOT analysis. Do NOT include any facts not found in the SOURCE DATA.`,
		evidence, draft, critique, strategy)
}
