package models

import (
	"time"
)

// WorkflowStatus represents the lifecycle state of an analysis workflow
type WorkflowStatus string

const (
	WorkflowStatusStarting  WorkflowStatus = "starting"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	// WorkflowStatusAborted indicates a critical failure (provider exhaustion
	// during drafting, gateway failure, insufficient core data)
	WorkflowStatusAborted WorkflowStatus = "aborted"
	WorkflowStatusError   WorkflowStatus = "error"
)

// Step identifies a stage of the analysis pipeline
type Step string

const (
	StepInput     Step = "input"
	StepCache     Step = "cache"
	StepResearch  Step = "research"
	StepDraft     Step = "draft"
	StepScore     Step = "score"
	StepRevise    Step = "revise"
	StepCompleted Step = "completed"
	StepAborted   Step = "aborted"
)

// ProviderFailure records a single generation backend failure.
// Failures accumulate across the whole run: the draft stage and every
// revision share the same accumulator.
type ProviderFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// WorkflowState is the single mutable record threaded through all pipeline
// stages. The engine owns it exclusively for the duration of a run; stages
// mutate it and return control to the engine, which decides the next step.
type WorkflowState struct {
	// Immutable inputs, set at creation
	CompanyName   string `json:"company_name"`
	Ticker        string `json:"ticker"`
	StrategyFocus string `json:"strategy_focus"`

	// Evidence payload fetched once by the research stage, immutable after
	RawData string `json:"raw_data,omitempty"`

	// Current best report text, overwritten by Draft and each successful Revise
	DraftReport string `json:"draft_report,omitempty"`

	// Most recent quality gate explanation
	Critique string `json:"critique,omitempty"`

	// Quality score in [0,10], overwritten each Score stage
	Score float64 `json:"score"`

	// Incremented by exactly 1 on each Revise attempt, success or failure
	RevisionCount int `json:"revision_count"`

	// Identifier of the backend that produced the current draft ("provider:model")
	ProviderUsed string `json:"provider_used,omitempty"`

	// Append-only list of generation backend failures for the whole run
	ProvidersFailed []ProviderFailure `json:"providers_failed,omitempty"`

	// Evidence sources the research gateway could not retrieve
	SourcesFailed []string `json:"sources_failed,omitempty"`

	// Evidence sources the research gateway did retrieve
	SourcesAvailable []string `json:"sources_available,omitempty"`

	// Terminal failure marker. Once set, no further stage performs
	// generation work.
	Error string `json:"error,omitempty"`

	// Set when Revise could not produce a new draft and fell back to a
	// prior one. Forces loop exit regardless of score. Mutually exclusive
	// with Error.
	EditorSkipped bool `json:"editor_skipped,omitempty"`
}

// RecordProviderFailures appends backend failures to the run-wide accumulator.
func (s *WorkflowState) RecordProviderFailures(failures []ProviderFailure) {
	s.ProvidersFailed = append(s.ProvidersFailed, failures...)
}

// ActivityEntry is one line of the workflow activity log
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Step      string    `json:"step"`
	Message   string    `json:"message"`
}

// MetricEntry is one streamed evidence metric
type MetricEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Metric    string    `json:"metric"`
	Value     any       `json:"value"`
}

// SourceStatus tracks per-evidence-source progress (idle/completed/failed)
type SourceStatus string

const (
	SourceStatusIdle      SourceStatus = "idle"
	SourceStatusCompleted SourceStatus = "completed"
	SourceStatusFailed    SourceStatus = "failed"
)

// WorkflowSnapshot is the progress record surfaced by the status endpoint.
// A snapshot may be read while the owning worker is still mutating it; every
// field is either monotonic (appended lists, revision count) or idempotently
// overwritten (status, step, score), so torn reads are acceptable.
type WorkflowSnapshot struct {
	ID             string                  `json:"workflow_id"`
	Status         WorkflowStatus          `json:"status"`
	CurrentStep    Step                    `json:"current_step"`
	CompanyName    string                  `json:"company_name"`
	Ticker         string                  `json:"ticker"`
	StrategyFocus  string                  `json:"strategy_focus"`
	RevisionCount  int                     `json:"revision_count"`
	Score          float64                 `json:"score"`
	ProviderUsed   string                  `json:"provider_used,omitempty"`
	DataSource     string                  `json:"data_source,omitempty"`
	Error          string                  `json:"error,omitempty"`
	ActivityLog    []ActivityEntry         `json:"activity_log"`
	Metrics        []MetricEntry           `json:"metrics"`
	SourceStatus   map[string]SourceStatus `json:"source_status"`
	ProviderStatus map[string]SourceStatus `json:"provider_status"`
	Result         *AnalysisResult         `json:"result,omitempty"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     *time.Time              `json:"finished_at,omitempty"`
}

// SwotSections holds the structured report sections parsed from the draft
type SwotSections struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// Confidence summarizes how much weight the final report deserves,
// combining quality score and evidence coverage.
type Confidence struct {
	Confidence        int    `json:"confidence"` // 0-100
	Readiness         string `json:"readiness"`
	Level             string `json:"level"` // high/medium/low
	ScoreContribution int    `json:"score_contribution"`
	DataContribution  int    `json:"data_contribution"`
}

// AnalysisResult is the final output handed to the caller and the cache
type AnalysisResult struct {
	CompanyName   string            `json:"company_name"`
	Ticker        string            `json:"ticker"`
	Score         float64           `json:"score"`
	RevisionCount int               `json:"revision_count"`
	ReportLength  int               `json:"report_length"`
	Critique      string            `json:"critique"`
	Swot          SwotSections      `json:"swot_data"`
	RawReport     string            `json:"raw_report"`
	DataSource    string            `json:"data_source"`
	ProviderUsed  string            `json:"provider_used"`
	Confidence    Confidence        `json:"confidence"`
	CacheInfo     map[string]string `json:"_cache_info,omitempty"`
}
