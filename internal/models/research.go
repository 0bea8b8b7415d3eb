package models

// TaskStatus is the remote research task state. The task is owned by the
// research service; these values mirror its poll responses only.
type TaskStatus string

const (
	TaskStatusSubmitted TaskStatus = "submitted"
	TaskStatusWorking   TaskStatus = "working"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

// PartialMetric is one evidence metric streamed by the research service
// while a task is still working.
type PartialMetric struct {
	Source string `json:"source"`
	Metric string `json:"metric"`
	Value  any    `json:"value"`
}

// Artifact is one output attachment of a completed research task.
// The payload the pipeline consumes is the artifact of type "data".
type Artifact struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// TaskError carries the remote-supplied failure message of a failed task
type TaskError struct {
	Message string `json:"message"`
}

// ResearchTask mirrors one tasks/get poll response
type ResearchTask struct {
	ID             string          `json:"id"`
	Status         TaskStatus      `json:"status"`
	PartialMetrics []PartialMetric `json:"partial_metrics,omitempty"`
	Artifacts      []Artifact      `json:"artifacts,omitempty"`
	Error          *TaskError      `json:"error,omitempty"`
}

// Evidence source partitions. Fewer than two core sources is fatal;
// supplementary absence is logged but never fatal.
var (
	CoreSources          = []string{"financials", "valuation", "volatility"}
	SupplementarySources = []string{"macro", "news", "sentiment"}
)

// AllSources returns the full known evidence source list in display order
func AllSources() []string {
	out := make([]string, 0, len(CoreSources)+len(SupplementarySources))
	out = append(out, CoreSources...)
	out = append(out, SupplementarySources...)
	return out
}
