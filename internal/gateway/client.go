package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/consilium/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the poll ceiling for one research task
	DefaultTimeout = 120 * time.Second

	// DefaultPollInterval is the fixed wait between tasks/get polls
	DefaultPollInterval = time.Second

	// DefaultRateLimit is the default request rate against the service
	DefaultRateLimit = 10

	// requestTimeout bounds each individual HTTP exchange
	requestTimeout = 30 * time.Second

	// healthTimeout bounds the advisory health probe
	healthTimeout = 10 * time.Second
)

// Client is a research service client
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       arbor.ILogger
	limiter      *rate.Limiter
	pollInterval time.Duration
	timeout      time.Duration
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPollInterval sets the wait between status polls
func WithPollInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithTimeout sets the poll ceiling for one task
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRateLimit sets a custom request rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a research service client
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		limiter:      rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// call performs one JSON-RPC exchange
func (c *Client) call(ctx context.Context, method string, params any) (*rpcResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: err}
	}

	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if parsed.Error != nil {
		return nil, fmt.Errorf("research service error: %s", parsed.Error.Message)
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("empty result in %s response", method)
	}

	return parsed.Result, nil
}

// Submit starts a research task and returns its id
func (c *Client) Submit(ctx context.Context, message string) (string, error) {
	result, err := c.call(ctx, "message/send", sendParams{
		Message: messageParam{
			Parts: []messagePart{{Type: "text", Text: message}},
		},
	})
	if err != nil {
		return "", err
	}

	if result.Task == nil || result.Task.ID == "" {
		return "", ErrNoTaskID
	}

	return result.Task.ID, nil
}

// GetTask polls the current state of a task
func (c *Client) GetTask(ctx context.Context, taskID string) (*models.ResearchTask, error) {
	result, err := c.call(ctx, "tasks/get", getParams{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	if result.Task == nil {
		return nil, fmt.Errorf("empty task in tasks/get response")
	}
	return result.Task, nil
}

// WaitForCompletion polls a task until it reaches a terminal state or the
// poll ceiling expires. While the task is working, each newly-seen partial
// metric is emitted through onMetric exactly once, deduplicated by the
// (source, metric, value) triple. The only suspension point is the sleep
// between polls.
func (c *Client) WaitForCompletion(ctx context.Context, taskID string, onMetric MetricCallback, onActivity ActivityCallback) (*models.ResearchTask, error) {
	deadline := time.Now().Add(c.timeout)
	emitted := make(map[string]struct{})

	for time.Now().Before(deadline) {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		if task.Status == models.TaskStatusWorking && onMetric != nil {
			for _, metric := range task.PartialMetrics {
				key := fmt.Sprintf("%s:%s:%v", metric.Source, metric.Metric, metric.Value)
				if _, seen := emitted[key]; seen {
					continue
				}
				emitted[key] = struct{}{}
				onMetric(metric.Source, metric.Metric, metric.Value)
			}
		}

		switch task.Status {
		case models.TaskStatusCompleted:
			return task, nil
		case models.TaskStatusFailed:
			message := "unknown error"
			if task.Error != nil && task.Error.Message != "" {
				message = task.Error.Message
			}
			if onActivity != nil {
				onActivity("Research failed: " + message)
			}
			return nil, &TaskFailedError{Message: message}
		case models.TaskStatusCanceled:
			if onActivity != nil {
				onActivity("Research task was canceled")
			}
			return nil, ErrTaskCanceled
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, &TimeoutError{Ceiling: c.timeout.String()}
}

// CheckHealth probes the service health endpoint. The probe is advisory:
// callers log a failed probe and proceed with submission anyway.
func (c *Client) CheckHealth(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Msg("Research service health check failed")
		}
		return false
	}
	defer resp.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}

	return health.Status == "healthy"
}

// Research submits a task for the given company and polls it to completion,
// returning the payload of the "data" artifact.
func (c *Client) Research(ctx context.Context, company, ticker string, onMetric MetricCallback, onActivity ActivityCallback) (map[string]any, error) {
	message := "Research " + company
	if ticker != "" {
		message = fmt.Sprintf("Research %s %s", ticker, company)
	}

	activity := func(msg string) {
		if onActivity != nil {
			onActivity(msg)
		}
	}

	activity("Connecting to research service...")

	if !c.CheckHealth(ctx) {
		activity("WARNING: research service health check failed, attempting anyway...")
		if c.logger != nil {
			c.logger.Warn().Str("url", c.baseURL).Msg("Research service health check failed")
		}
	}

	activity(fmt.Sprintf("Submitting research task for %s (%s)...", company, ticker))

	taskID, err := c.Submit(ctx, message)
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Info().Str("task_id", taskID).Msg("Research task created")
	}
	if len(taskID) >= 8 {
		activity(fmt.Sprintf("Task submitted: %s...", taskID[:8]))
	} else {
		activity("Task submitted: " + taskID)
	}

	task, err := c.WaitForCompletion(ctx, taskID, onMetric, onActivity)
	if err != nil {
		return nil, err
	}

	for _, artifact := range task.Artifacts {
		if artifact.Type == "data" {
			return artifact.Data, nil
		}
	}

	return nil, ErrNoDataArtifact
}
