package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/gateway"
	"github.com/ternarybob/consilium/internal/models"
)

const goodDraft = `## Strengths
- Revenue grew 12.4% year over year to $96.8B
- Net margin of 14.9% with cash conversion at 0.9x

## Weaknesses
- Debt load of $9.5B against shrinking EPS
- Beta: 2.1 signals unusual volatility

## Opportunities
- Analyst news coverage remains bullish, CAGR: 14 in services
- P/E: 21 and P/S: 7 leave room against sector valuation

## Threats
- Inflation and fed interest rate pressure on demand, VIX: 18
- EV/EBITDA: 12 could compress in 2025, sentiment score 61/100
`

const poorDraft = "nothing useful here"

func rubricJSON(score int) string {
	return `{"score": ` + strconv.Itoa(score) + `, "strategic_alignment": 1, "data_grounding": 1, "logical_consistency": 1, "reasoning": "scripted"}`
}

// scriptedResponse is one canned Query outcome.
type scriptedResponse struct {
	text string
	err  error
}

type scriptedQuerier struct {
	responses []scriptedResponse
	calls     int
}

func (s *scriptedQuerier) Query(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, string, []models.ProviderFailure, error) {
	if s.calls >= len(s.responses) {
		s.calls++
		return "", "", nil, errors.New("unexpected extra LLM call")
	}
	resp := s.responses[s.calls]
	s.calls++
	if resp.err != nil {
		return "", "", []models.ProviderFailure{{Name: "claude", Error: resp.err.Error()}}, resp.err
	}
	return resp.text, "claude:haiku", nil, nil
}

type fakeResearcher struct {
	result map[string]any
	err    error
}

func (f *fakeResearcher) Research(ctx context.Context, company, ticker string, onMetric gateway.MetricCallback, onActivity gateway.ActivityCallback) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	if onMetric != nil {
		onMetric("financials", "revenue", 96.77)
	}
	return f.result, nil
}

func fullResearchResult() map[string]any {
	return map[string]any{
		"company_name":      "Tesla",
		"ticker":            "TSLA",
		"sources_available": []string{"financials", "valuation", "volatility", "macro", "news", "sentiment"},
		"sources_failed":    []string{},
	}
}

func newTestEngine(querier Querier, researcher Researcher) *Engine {
	return New(querier, researcher, common.GetLogger())
}

func TestRunPassesWithoutRevision(t *testing.T) {
	querier := &scriptedQuerier{responses: []scriptedResponse{
		{text: goodDraft},      // draft
		{text: rubricJSON(6)},  // rubric
	}}
	engine := newTestEngine(querier, &fakeResearcher{result: fullResearchResult()})

	state := &models.WorkflowState{CompanyName: "Tesla", Ticker: "TSLA", StrategyFocus: "Growth"}
	err := engine.Run(context.Background(), state, Callbacks{})
	require.NoError(t, err)

	assert.Empty(t, state.Error)
	assert.Equal(t, 0, state.RevisionCount)
	assert.GreaterOrEqual(t, state.Score, 7.0)
	assert.Equal(t, goodDraft, state.DraftReport)
	assert.Equal(t, "claude:haiku", state.ProviderUsed)
	assert.Equal(t, 2, querier.calls, "draft and one rubric call only")
}

func TestRunRevisesUntilCap(t *testing.T) {
	// Every score stays low, so the loop runs the full four revise attempts.
	querier := &scriptedQuerier{responses: []scriptedResponse{
		{text: poorDraft},     // draft
		{text: rubricJSON(1)}, // score #0
		{text: poorDraft},     // revise #1
		{text: rubricJSON(1)},
		{text: poorDraft},     // revise #2
		{text: rubricJSON(1)},
		{text: poorDraft},     // revise #3
		{text: rubricJSON(1)},
		{text: poorDraft},     // revise #4
		{text: rubricJSON(1)}, // final score, revision_count now 4 > 3
	}}
	engine := newTestEngine(querier, &fakeResearcher{result: fullResearchResult()})

	state := &models.WorkflowState{CompanyName: "Tesla", Ticker: "TSLA"}
	require.NoError(t, engine.Run(context.Background(), state, Callbacks{}))

	assert.Equal(t, 4, state.RevisionCount)
	assert.Less(t, state.Score, 7.0)
	assert.GreaterOrEqual(t, state.Score, 1.0)
	assert.Equal(t, 10, querier.calls)
}

func TestRunDraftExhaustionAborts(t *testing.T) {
	querier := &scriptedQuerier{responses: []scriptedResponse{
		{err: errors.New("all generation providers failed: claude: 429 Too Many Requests")},
	}}
	engine := newTestEngine(querier, &fakeResearcher{result: fullResearchResult()})

	state := &models.WorkflowState{CompanyName: "Tesla", Ticker: "TSLA"}
	require.NoError(t, engine.Run(context.Background(), state, Callbacks{}))

	assert.NotEmpty(t, state.Error)
	assert.Zero(t, state.Score)
	assert.Equal(t, 0, state.RevisionCount)
	assert.Contains(t, state.Critique, "temporarily unavailable")
	assert.Equal(t, 1, querier.calls, "no rubric or revision calls after abort")
	assert.Len(t, state.ProvidersFailed, 1)
}

func TestRunEditorSkippedShipsFallbackDraft(t *testing.T) {
	querier := &scriptedQuerier{responses: []scriptedResponse{
		{text: poorDraft},                      // draft
		{text: rubricJSON(1)},                  // low score, loop continues
		{err: errors.New("revision backend down")}, // revise #1 fails
		{text: rubricJSON(1)},                  // re-score the fallback draft
	}}
	engine := newTestEngine(querier, &fakeResearcher{result: fullResearchResult()})

	state := &models.WorkflowState{CompanyName: "Tesla", Ticker: "TSLA"}
	require.NoError(t, engine.Run(context.Background(), state, Callbacks{}))

	assert.True(t, state.EditorSkipped)
	assert.Equal(t, 1, state.RevisionCount, "failed attempt still counts")
	assert.Equal(t, poorDraft, state.DraftReport, "prior draft survives a failed revision")
	assert.Empty(t, state.Error, "degraded completion is not an abort")
	assert.Equal(t, 4, querier.calls)
}

func TestRunInsufficientCoreDataAborts(t *testing.T) {
	researcher := &fakeResearcher{result: map[string]any{
		"sources_available": []string{"financials", "news"},
		"sources_failed":    []string{"valuation", "volatility"},
	}}
	engine := newTestEngine(&scriptedQuerier{}, researcher)

	state := &models.WorkflowState{CompanyName: "Tesla", Ticker: "TSLA"}
	err := engine.Run(context.Background(), state, Callbacks{})

	require.ErrorIs(t, err, ErrInsufficientCoreData)
	assert.Contains(t, err.Error(), "valuation")
	assert.Contains(t, err.Error(), "volatility")
}

func TestRunGatewayFailureAborts(t *testing.T) {
	researcher := &fakeResearcher{err: errors.New("connection refused")}
	engine := newTestEngine(&scriptedQuerier{}, researcher)

	state := &models.WorkflowState{CompanyName: "Tesla", Ticker: "TSLA"}
	err := engine.Run(context.Background(), state, Callbacks{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "research failed for Tesla")
}

func TestRunRecordsResearchOutcome(t *testing.T) {
	querier := &scriptedQuerier{responses: []scriptedResponse{
		{text: goodDraft},
		{text: rubricJSON(6)},
	}}
	result := fullResearchResult()
	result["sources_available"] = []string{"financials", "valuation", "news"}
	result["sources_failed"] = []string{"volatility", "macro"}

	var metrics int
	engine := newTestEngine(querier, &fakeResearcher{result: result})
	state := &models.WorkflowState{CompanyName: "Tesla", Ticker: "TSLA"}
	require.NoError(t, engine.Run(context.Background(), state, Callbacks{
		OnMetric: func(source, metric string, value any) { metrics++ },
	}))

	assert.Equal(t, []string{"financials", "news", "valuation"}, state.SourcesAvailable)
	assert.Equal(t, []string{"macro", "volatility"}, state.SourcesFailed)
	assert.Contains(t, state.RawData, "sources_available")
	assert.Equal(t, 1, metrics)
}

func TestShouldExit(t *testing.T) {
	tests := []struct {
		name  string
		state models.WorkflowState
		want  bool
	}{
		{"fresh low score", models.WorkflowState{Score: 4, RevisionCount: 0}, false},
		{"passing score", models.WorkflowState{Score: 7, RevisionCount: 0}, true},
		{"score just under", models.WorkflowState{Score: 6.99, RevisionCount: 3}, false},
		{"revision cap reached", models.WorkflowState{Score: 1, RevisionCount: 4}, true},
		{"error set", models.WorkflowState{Error: "boom", Score: 9}, true},
		{"editor skipped", models.WorkflowState{EditorSkipped: true, Score: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldExit(&tt.state))
		})
	}
}
