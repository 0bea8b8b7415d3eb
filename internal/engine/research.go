package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/consilium/internal/models"
)

var (
	// ErrInsufficientCoreData aborts a run when fewer than two of the three
	// core evidence sources delivered.
	ErrInsufficientCoreData = errors.New("insufficient core data")

	// ErrAllSourcesFailed aborts a run when the gateway delivered nothing.
	ErrAllSourcesFailed = errors.New("all research sources failed")
)

// research fetches the evidence payload and applies the tiered source
// policy: core sources (financials, valuation, volatility) need at least
// two of three, supplementary sources degrade with a log line only.
func (e *Engine) research(ctx context.Context, state *models.WorkflowState, cb Callbacks) error {
	company := state.CompanyName

	result, err := e.researcher.Research(ctx, company, state.Ticker,
		func(source, metric string, value any) {
			if cb.OnMetric != nil {
				cb.OnMetric(source, metric, value)
			}
		},
		func(message string) {
			cb.activity(models.StepResearch, message)
		},
	)
	if err != nil {
		return fmt.Errorf("research failed for %s: %w", company, err)
	}

	available := stringSet(result["sources_available"])
	failed := stringSet(result["sources_failed"])

	var coreAvailable, coreFailed []string
	for _, source := range models.CoreSources {
		if available[source] {
			coreAvailable = append(coreAvailable, source)
		} else {
			coreFailed = append(coreFailed, source)
		}
	}

	for _, source := range models.SupplementarySources {
		if failed[source] {
			cb.activity(models.StepResearch, fmt.Sprintf("%s unavailable (non-critical)", capitalize(source)))
		}
	}
	for _, source := range coreFailed {
		cb.activity(models.StepResearch, fmt.Sprintf("%s unavailable (critical)", capitalize(source)))
	}

	if len(coreAvailable) < 2 {
		sort.Strings(coreFailed)
		return fmt.Errorf("%w: %s unavailable, need at least 2 of: Financials, Valuation, Volatility",
			ErrInsufficientCoreData, strings.Join(coreFailed, ", "))
	}

	if len(available) == 0 {
		return fmt.Errorf("%w for %s, check research service configuration", ErrAllSourcesFailed, company)
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode evidence payload: %w", err)
	}

	state.RawData = string(raw)
	state.SourcesAvailable = sortedKeys(available)
	state.SourcesFailed = sortedKeys(failed)

	e.logger.Info().
		Str("company", company).
		Strs("available", state.SourcesAvailable).
		Strs("failed", state.SourcesFailed).
		Msg("Research complete")

	return nil
}

func stringSet(v any) map[string]bool {
	out := make(map[string]bool)
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok {
				out[s] = true
			}
		}
	case []string:
		for _, s := range list {
			out[s] = true
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
