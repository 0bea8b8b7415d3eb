package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Evidence payload shaping. The research gateway returns one nested JSON
// document per run; the draft prompt wants a flat, labelled digest so the
// model cites real figures instead of paraphrasing structure.

type keyMetrics struct {
	Company        string
	Ticker         string
	Financials     map[string]any
	Valuation      map[string]any
	Volatility     map[string]any
	Macro          map[string]any
	News           map[string]any
	Sentiment      map[string]any
	AggregatedSwot map[string][]string
}

// extractKeyMetrics pulls the figures the draft prompt cares about out of
// the raw gateway payload. Sections carrying an "error" key are dropped
// entirely rather than surfaced half-populated.
func extractKeyMetrics(rawData string) (keyMetrics, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		return keyMetrics{}, fmt.Errorf("could not parse evidence payload: %w", err)
	}

	metrics, _ := data["metrics"].(map[string]any)

	out := keyMetrics{
		Company:        str(data, "company_name"),
		Ticker:         str(data, "ticker"),
		AggregatedSwot: extractAggregatedSwot(data),
	}
	if out.Company == "" {
		out.Company = "Unknown"
	}
	if out.Ticker == "" {
		out.Ticker = "N/A"
	}

	if fin := section(metrics, "financials"); fin != nil {
		finData, _ := fin["financials"].(map[string]any)
		out.Financials = prune(map[string]any{
			"revenue":          dig(finData, "revenue", "value"),
			"revenue_cagr_3yr": finData["revenue_cagr_3yr"],
			"net_margin":       finData["net_margin"],
			"eps":              dig(finData, "eps", "value"),
			"debt_to_equity":   dig(fin, "debt", "debt_to_equity"),
			"free_cash_flow":   dig(fin, "cash_flow", "free_cash_flow", "value"),
		})
	}

	if val := section(metrics, "valuation"); val != nil {
		valMetrics, _ := val["metrics"].(map[string]any)
		var peTrailing, peForward any
		switch pe := valMetrics["pe_ratio"].(type) {
		case map[string]any:
			peTrailing = pe["trailing"]
			peForward = pe["forward"]
		default:
			peTrailing = pe
		}
		out.Valuation = prune(map[string]any{
			"pe_trailing":      peTrailing,
			"pe_forward":       peForward,
			"pb_ratio":         valMetrics["pb_ratio"],
			"ps_ratio":         valMetrics["ps_ratio"],
			"ev_ebitda":        valMetrics["ev_ebitda"],
			"valuation_signal": val["overall_signal"],
		})
	}

	if vol := section(metrics, "volatility"); vol != nil {
		volMetrics, _ := vol["metrics"].(map[string]any)
		out.Volatility = prune(map[string]any{
			"beta":                  dig(volMetrics, "beta", "value"),
			"vix":                   dig(volMetrics, "vix", "value"),
			"historical_volatility": dig(volMetrics, "historical_volatility", "value"),
		})
	}

	if macro := section(metrics, "macro"); macro != nil {
		macroMetrics, _ := macro["metrics"].(map[string]any)
		out.Macro = prune(map[string]any{
			"gdp_growth":    dig(macroMetrics, "gdp_growth", "value"),
			"interest_rate": dig(macroMetrics, "interest_rate", "value"),
			"inflation":     dig(macroMetrics, "cpi_inflation", "value"),
			"unemployment":  dig(macroMetrics, "unemployment", "value"),
		})
	}

	if news := section(metrics, "news"); news != nil {
		articles, _ := news["articles"].([]any)
		headlines := make([]string, 0, 5)
		for _, a := range articles {
			if len(headlines) == 5 {
				break
			}
			if article, ok := a.(map[string]any); ok {
				title := str(article, "title")
				if len(title) > 100 {
					title = title[:100]
				}
				headlines = append(headlines, title)
			}
		}
		out.News = map[string]any{
			"article_count": len(articles),
			"headlines":     headlines,
		}
	}

	if sent := section(metrics, "sentiment"); sent != nil {
		out.Sentiment = prune(map[string]any{
			"composite_score":  sent["composite_score"],
			"overall_category": sent["overall_swot_category"],
		})
	}

	return out, nil
}

func extractAggregatedSwot(data map[string]any) map[string][]string {
	raw, _ := data["aggregated_swot"].(map[string]any)
	if raw == nil {
		return nil
	}
	out := make(map[string][]string)
	for _, category := range []string{"strengths", "weaknesses", "opportunities", "threats"} {
		items, _ := raw[category].([]any)
		for _, item := range items {
			if s, ok := item.(string); ok {
				out[category] = append(out[category], s)
			}
		}
	}
	return out
}

// formatEvidence renders the digest the draft prompt embeds. Empty sections
// are omitted so the model never sees a heading with nothing under it.
func formatEvidence(m keyMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s (%s)\n\n", m.Company, m.Ticker)

	writeSection(&b, "=== FINANCIALS (from SEC EDGAR) ===", m.Financials, []metricLine{
		{"revenue", "Revenue", "$%s"},
		{"revenue_cagr_3yr", "Revenue CAGR (3yr)", "%s%%"},
		{"net_margin", "Net Margin", "%s%%"},
		{"eps", "EPS", "$%s"},
		{"debt_to_equity", "Debt/Equity", "%s"},
		{"free_cash_flow", "Free Cash Flow", "$%s"},
	})

	writeSection(&b, "=== VALUATION (from Yahoo Finance) ===", m.Valuation, []metricLine{
		{"pe_trailing", "P/E Ratio (trailing)", "%s"},
		{"pe_forward", "P/E Ratio (forward)", "%s"},
		{"pb_ratio", "P/B Ratio", "%s"},
		{"ps_ratio", "P/S Ratio", "%s"},
		{"ev_ebitda", "EV/EBITDA", "%s"},
		{"valuation_signal", "Overall Signal", "%s"},
	})

	writeSection(&b, "=== VOLATILITY/RISK ===", m.Volatility, []metricLine{
		{"beta", "Beta", "%s"},
		{"vix", "VIX (market fear index)", "%s"},
		{"historical_volatility", "Historical Volatility", "%s%%"},
	})

	writeSection(&b, "=== MACROECONOMIC ENVIRONMENT (from FRED) ===", m.Macro, []metricLine{
		{"gdp_growth", "GDP Growth", "%s%%"},
		{"interest_rate", "Federal Funds Rate", "%s%%"},
		{"inflation", "Inflation (CPI)", "%s%%"},
		{"unemployment", "Unemployment", "%s%%"},
	})

	if m.News != nil {
		b.WriteString("=== RECENT NEWS ===\n")
		fmt.Fprintf(&b, "- Articles found: %v\n", m.News["article_count"])
		if headlines, ok := m.News["headlines"].([]string); ok {
			for _, h := range headlines {
				fmt.Fprintf(&b, "  • %s\n", h)
			}
		}
		b.WriteString("\n")
	}

	writeSection(&b, "=== MARKET SENTIMENT ===", m.Sentiment, []metricLine{
		{"composite_score", "Composite Score", "%s"},
		{"overall_category", "Overall", "%s"},
	})

	if len(m.AggregatedSwot) > 0 {
		b.WriteString("=== DATA-DRIVEN SWOT SIGNALS (from metrics analysis) ===\n")
		for _, category := range []string{"strengths", "weaknesses", "opportunities", "threats"} {
			items := m.AggregatedSwot[category]
			if len(items) == 0 {
				continue
			}
			fmt.Fprintf(&b, "%s:\n", strings.ToUpper(category))
			for _, item := range items {
				fmt.Fprintf(&b, "  • %s\n", item)
			}
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

type metricLine struct {
	key    string
	label  string
	format string
}

func writeSection(b *strings.Builder, heading string, data map[string]any, lines []metricLine) {
	if len(data) == 0 {
		return
	}
	b.WriteString(heading + "\n")
	for _, line := range lines {
		v, ok := data[line.key]
		if !ok || v == nil {
			continue
		}
		fmt.Fprintf(b, "- %s: %s\n", line.label, fmt.Sprintf(line.format, displayValue(v)))
	}
	b.WriteString("\n")
}

// displayValue renders thousands separators for large magnitudes and two
// decimals otherwise, mirroring how analysts quote the figures.
func displayValue(v any) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	if f == float64(int64(f)) && (f >= 1000 || f <= -1000) {
		return groupThousands(int64(f))
	}
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// JSON helpers for the loosely typed gateway payload.

func str(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// section returns a metrics subsection unless it is absent or reported an
// upstream error.
func section(metrics map[string]any, name string) map[string]any {
	m, ok := metrics[name].(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	if _, failed := m["error"]; failed {
		return nil
	}
	return m
}

func dig(m map[string]any, keys ...string) any {
	var current any = m
	for _, key := range keys {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = node[key]
	}
	return current
}

// prune drops nil entries so section rendering and emptiness checks see
// only real values.
func prune(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
