package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/consilium/internal/models"
)

// Querier is the slice of the generation client the evaluator needs.
type Querier interface {
	Query(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, string, []models.ProviderFailure, error)
}

const rubricDefaultScore = 3

const rubricInstructions = `You are a strategy evaluator. Given a SWOT analysis and the SOURCE DATA it should be based on, score it on a scale of 1 to 6.

Scoring Criteria:
1. Strategic Alignment (0-2 pts): Does the analysis align with the given strategic focus?
2. Data Grounding (0-2 pts): Does EVERY claim cite specific numbers from the source data? Penalize any invented facts not in the data.
3. Logical Consistency (0-2 pts): Are S/O clearly positive and W/T clearly negative? No contradictions?

IMPORTANT: If the analysis mentions facts/numbers NOT present in the source data, score Data Grounding as 0.

Respond in this JSON format only, no other text:
{
  "score": <int 1-6>,
  "strategic_alignment": <0-2>,
  "data_grounding": <0-2>,
  "logical_consistency": <0-2>,
  "reasoning": "<string>"
}`

// rubricResponse is the JSON shape the evaluator expects back. Sub-scores
// outside their range mean the model ignored the rubric, so the whole
// response is rejected. The overall score is forgiven instead: out-of-range
// values get clamped to [1,6] and an absent key falls back to the neutral
// default, so a usable judgement survives a sloppy judge.
type rubricResponse struct {
	Score              *int   `json:"score"`
	StrategicAlignment int    `json:"strategic_alignment" validate:"min=0,max=2"`
	DataGrounding      int    `json:"data_grounding" validate:"min=0,max=2"`
	LogicalConsistency int    `json:"logical_consistency" validate:"min=0,max=2"`
	Reasoning          string `json:"reasoning"`
}

// RubricResult is the outcome of one LLM rubric evaluation. Failed
// evaluations still carry a usable default score so the pipeline never
// stalls on a flaky judge.
type RubricResult struct {
	Score              int                      `json:"score"`
	StrategicAlignment int                      `json:"strategic_alignment"`
	DataGrounding      int                      `json:"data_grounding"`
	LogicalConsistency int                      `json:"logical_consistency"`
	Reasoning          string                   `json:"reasoning"`
	Provider           string                   `json:"provider"`
	ProvidersFailed    []models.ProviderFailure `json:"providers_failed,omitempty"`
	Failed             bool                     `json:"failed"`
}

// Evaluator scores a draft against the 1-6 rubric using whatever provider
// the generation client can reach.
type Evaluator struct {
	llm      Querier
	validate *validator.Validate
}

func NewEvaluator(llm Querier) *Evaluator {
	return &Evaluator{
		llm:      llm,
		validate: validator.New(),
	}
}

// Evaluate runs the rubric against a draft. Provider exhaustion, malformed
// JSON, and schema violations all degrade to the default middle score of 3
// with the failure reason recorded in Reasoning.
func (e *Evaluator) Evaluate(ctx context.Context, report, strategyFocus, sourceData string) RubricResult {
	if sourceData == "" {
		sourceData = "No source data provided"
	}

	prompt := fmt.Sprintf("SWOT Draft:\n%s\n\nStrategic Focus: %s\n\nSOURCE DATA (the analysis should be based ONLY on this):\n%s\n\n%s",
		report, strategyFocus, sourceData, rubricInstructions)

	text, provider, failed, err := e.llm.Query(ctx, prompt, 0, 2048)
	if err != nil {
		return RubricResult{
			Score:           rubricDefaultScore,
			Reasoning:       fmt.Sprintf("LLM evaluation failed: %v", err),
			Provider:        provider,
			ProvidersFailed: failed,
			Failed:          true,
		}
	}

	parsed, perr := parseRubricResponse(e.validate, text)
	if perr != nil {
		return RubricResult{
			Score:           rubricDefaultScore,
			Reasoning:       fmt.Sprintf("rubric parsing failed: %v", perr),
			Provider:        provider,
			ProvidersFailed: failed,
			Failed:          true,
		}
	}

	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	score := rubricDefaultScore
	if parsed.Score != nil {
		score = clampInt(*parsed.Score, 1, 6)
	}

	return RubricResult{
		Score:              score,
		StrategicAlignment: parsed.StrategicAlignment,
		DataGrounding:      parsed.DataGrounding,
		LogicalConsistency: parsed.LogicalConsistency,
		Reasoning:          reasoning,
		Provider:           provider,
		ProvidersFailed:    failed,
	}
}

// parseRubricResponse extracts the JSON object between the first "{" and the
// last "}" so prose wrappers around the payload do not break parsing.
func parseRubricResponse(validate *validator.Validate, text string) (*rubricResponse, error) {
	content := strings.TrimSpace(text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	content = content[start : end+1]

	var parsed rubricResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(&parsed); err != nil {
		return nil, fmt.Errorf("response outside rubric bounds: %w", err)
	}
	return &parsed, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
