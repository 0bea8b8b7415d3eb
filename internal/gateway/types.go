// Package gateway provides the client for the remote research service.
// Research runs as an asynchronous task on the remote side: the client
// submits it over JSON-RPC, polls it to completion, and streams partial
// metrics to the caller as they appear.
package gateway

import (
	"errors"
	"fmt"

	"github.com/ternarybob/consilium/internal/models"
)

// MetricCallback receives each newly-seen partial metric while the remote
// task is still working. Deduplication happens before the callback fires.
type MetricCallback func(source, metric string, value any)

// ActivityCallback receives human-readable progress lines for the
// workflow activity log.
type ActivityCallback func(message string)

var (
	// ErrTaskCanceled is returned when the remote service cancels the task
	ErrTaskCanceled = errors.New("research task was canceled")

	// ErrNoDataArtifact is returned when a completed task carries no
	// artifact of type "data"
	ErrNoDataArtifact = errors.New("no data artifact in completed task")

	// ErrNoTaskID is returned when message/send does not yield a task id
	ErrNoTaskID = errors.New("no task ID returned from message/send")
)

// TaskFailedError carries the remote-supplied failure message
type TaskFailedError struct {
	Message string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("research task failed: %s", e.Message)
}

// TimeoutError is returned when the poll ceiling is exceeded
type TimeoutError struct {
	Ceiling string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("research task timed out after %s", e.Ceiling)
}

// ConnectionError wraps transport failures against the research service
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// rpcRequest is the JSON-RPC 2.0 envelope the research service speaks
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result *rpcResult `json:"result"`
	Error  *rpcError  `json:"error"`
}

type rpcResult struct {
	Task *models.ResearchTask `json:"task"`
}

type sendParams struct {
	Message messageParam `json:"message"`
}

type messageParam struct {
	Parts []messagePart `json:"parts"`
}

type messagePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type getParams struct {
	TaskID string `json:"taskId"`
}
