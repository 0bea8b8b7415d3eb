package quality

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/models"
)

func newTestGate(querier Querier) *Gate {
	return NewGate(querier, common.GetLogger())
}

func TestReviewCombinesDeterministicAndRubric(t *testing.T) {
	querier := &fakeQuerier{
		text:     `{"score": 5, "strategic_alignment": 2, "data_grounding": 2, "logical_consistency": 1, "reasoning": "grounded"}`,
		provider: "claude:haiku",
	}
	state := &models.WorkflowState{
		CompanyName:      "Tesla",
		StrategyFocus:    "Growth",
		DraftReport:      balancedDraft,
		RawData:          `{"sources_available": ["financials", "valuation", "volatility"]}`,
		SourcesAvailable: []string{"financials", "valuation", "volatility"},
	}

	newTestGate(querier).Review(context.Background(), state, nil)

	det := RunChecks(balancedDraft, state.SourcesAvailable)
	assert.InDelta(t, det.NormalizedScore+5, state.Score, 0.001)
	assert.Contains(t, state.Critique, "Deterministic Analysis")
	assert.Contains(t, state.Critique, "grounded")
}

func TestReviewClampsToTen(t *testing.T) {
	querier := &fakeQuerier{
		text:     `{"score": 6, "strategic_alignment": 2, "data_grounding": 2, "logical_consistency": 2, "reasoning": "excellent"}`,
		provider: "claude:haiku",
	}
	state := &models.WorkflowState{
		DraftReport:      balancedDraft,
		SourcesAvailable: []string{"financials", "valuation", "volatility", "macro", "news", "sentiment"},
	}

	newTestGate(querier).Review(context.Background(), state, nil)

	assert.LessOrEqual(t, state.Score, 10.0)
	assert.GreaterOrEqual(t, state.Score, 1.0)
}

func TestReviewAbortedRunSkipsGeneration(t *testing.T) {
	tests := []struct {
		name    string
		err     string
		message string
	}{
		{
			name:    "rate limited",
			err:     "claude: 429 Too Many Requests",
			message: "temporarily unavailable due to rate limits",
		},
		{
			name:    "quota exhausted",
			err:     "all generation providers failed: gemini: RESOURCE_EXHAUSTED: quota exceeded",
			message: "temporarily unavailable due to rate limits",
		},
		{
			name:    "provider exhaustion",
			err:     "all generation providers failed: claude: connection refused",
			message: "check your API keys",
		},
		{
			name:    "anything else",
			err:     "insufficient core data: 1/3 core sources available",
			message: "Analysis could not be completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			querier := &fakeQuerier{text: "should never be called"}
			state := &models.WorkflowState{Error: tt.err, DraftReport: "leftover draft"}

			newTestGate(querier).Review(context.Background(), state, nil)

			assert.Zero(t, state.Score)
			assert.Contains(t, state.Critique, tt.message)
			assert.Empty(t, querier.prompts, "aborted run must not call the judge")
		})
	}
}

func TestReviewRecordsJudgeProviderFailures(t *testing.T) {
	querier := &fakeQuerier{
		text:     `{"score": 4, "strategic_alignment": 1, "data_grounding": 2, "logical_consistency": 1, "reasoning": "ok"}`,
		provider: "gemini:flash",
		failed:   []models.ProviderFailure{{Name: "claude", Error: "429"}},
	}
	state := &models.WorkflowState{
		DraftReport:      balancedDraft,
		SourcesAvailable: []string{"financials"},
		ProvidersFailed:  []models.ProviderFailure{{Name: "claude", Error: "earlier failure"}},
	}

	var activity []string
	newTestGate(querier).Review(context.Background(), state, func(msg string) {
		activity = append(activity, msg)
	})

	assert.Len(t, state.ProvidersFailed, 2, "judge failures append to the run-wide accumulator")

	joined := strings.Join(activity, "\n")
	assert.Contains(t, joined, "LLM claude failed: 429")
	assert.Contains(t, joined, "LLM evaluation via gemini:flash")
}

func TestReviewTruncatesLongEvidence(t *testing.T) {
	querier := &fakeQuerier{
		text:     `{"score": 4, "strategic_alignment": 1, "data_grounding": 2, "logical_consistency": 1, "reasoning": "ok"}`,
		provider: "claude:haiku",
	}
	state := &models.WorkflowState{
		DraftReport:      balancedDraft,
		RawData:          strings.Repeat("x", 5000),
		SourcesAvailable: []string{"financials"},
	}

	newTestGate(querier).Review(context.Background(), state, nil)

	assert.Contains(t, querier.prompts[0], "... [truncated]")
	assert.NotContains(t, querier.prompts[0], strings.Repeat("x", 4001))
}

func TestAvailableSourcesFallsBackToRawData(t *testing.T) {
	state := &models.WorkflowState{RawData: `{"sources_available": ["news", "macro"]}`}
	assert.Equal(t, []string{"news", "macro"}, availableSources(state))

	state = &models.WorkflowState{RawData: "not json"}
	assert.Equal(t, models.AllSources(), availableSources(state))
}
