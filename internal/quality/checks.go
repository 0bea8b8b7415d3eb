package quality

import (
	"regexp"
	"sort"
	"strings"
)

// Deterministic scoring. Four independent checks worth 8 points total,
// normalized to a 0-4 contribution toward the final 1-10 score.

const deterministicMaxScore = 8

// SectionCheck reports which of the four SWOT sections appear in a draft.
type SectionCheck struct {
	Sections     map[string]bool `json:"sections"`
	PresentCount int             `json:"present_count"`
	Score        int             `json:"score"`
	MaxScore     int             `json:"max_score"`
}

// CitationCheck reports how many distinct numeric facts the draft cites.
type CitationCheck struct {
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
	Score    int      `json:"score"`
	MaxScore int      `json:"max_score"`
}

// CoverageCheck reports which available evidence sources the draft references.
type CoverageCheck struct {
	SourcesReferenced map[string]bool `json:"sources_referenced"`
	ReferencedCount   int             `json:"referenced_count"`
	TotalAvailable    int             `json:"total_available"`
	CoveragePct       float64         `json:"coverage_pct"`
	Score             int             `json:"score"`
	MaxScore          int             `json:"max_score"`
}

// BalanceCheck reports whether bullet items are spread across sections
// rather than piled into one.
type BalanceCheck struct {
	ItemCounts map[string]int `json:"item_counts,omitempty"`
	Balanced   bool           `json:"balanced"`
	Score      int            `json:"score"`
	MaxScore   int            `json:"max_score"`
}

// DeterministicResult aggregates all four checks.
type DeterministicResult struct {
	Sections        SectionCheck  `json:"sections"`
	Citations       CitationCheck `json:"citations"`
	Sources         CoverageCheck `json:"sources"`
	Balance         BalanceCheck  `json:"balance"`
	TotalScore      int           `json:"total_score"`
	MaxScore        int           `json:"max_score"`
	NormalizedScore float64       `json:"normalized_score"`
}

var sectionPatterns = map[string]*regexp.Regexp{
	"strengths":     regexp.MustCompile(`\bstrengths?\b`),
	"weaknesses":    regexp.MustCompile(`\bweaknesses?\b`),
	"opportunities": regexp.MustCompile(`\bopportunit(y|ies)\b`),
	"threats":       regexp.MustCompile(`\bthreats?\b`),
}

var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$[\d,]+\.?\d*[BMK]?`),    // dollar amounts: $3.6B, $100M
	regexp.MustCompile(`(?i)\d+\.?\d*\s*%`),           // percentages: 7.26%
	regexp.MustCompile(`(?i)\d+\.?\d*x`),              // multiples: 0.13x
	regexp.MustCompile(`(?i)P/E[:\s]+\d+`),            // valuation ratios
	regexp.MustCompile(`(?i)P/S[:\s]+\d+`),
	regexp.MustCompile(`(?i)P/B[:\s]+\d+`),
	regexp.MustCompile(`(?i)EV/EBITDA[:\s]+\d+`),
	regexp.MustCompile(`(?i)PEG[:\s]+\d+`),
	regexp.MustCompile(`(?i)VIX[:\s]+\d+`),
	regexp.MustCompile(`(?i)Beta[:\s]+\d+`),
	regexp.MustCompile(`(?i)\d+/100`),                 // composite scores: 67/100
	regexp.MustCompile(`(?i)CAGR[:\s]*\d+`),
	regexp.MustCompile(`\d{4}`),                       // years
}

var sourceKeywords = map[string][]string{
	"financials": {"revenue", "net margin", "debt", "cash flow", "eps", "earnings"},
	"volatility": {"beta", "volatility", "vix", "price swing"},
	"macro":      {"gdp", "interest rate", "inflation", "unemployment", "fed"},
	"valuation":  {"p/e", "p/s", "p/b", "ev/ebitda", "peg", "valuation", "market cap"},
	"news":       {"news", "analyst", "article", "report"},
	"sentiment":  {"sentiment", "bullish", "bearish", "reddit", "finnhub"},
}

var bulletPattern = regexp.MustCompile(`(?m)[-*•]\s+\w|^\d+\.\s+\w`)

// CheckSections scores SWOT section presence: 2 points for all four,
// 1 point for at least two, otherwise 0.
func CheckSections(report string) SectionCheck {
	lower := strings.ToLower(report)

	sections := make(map[string]bool, len(sectionPatterns))
	present := 0
	for name, pattern := range sectionPatterns {
		found := pattern.MatchString(lower)
		sections[name] = found
		if found {
			present++
		}
	}

	score := 0
	switch {
	case present == 4:
		score = 2
	case present >= 2:
		score = 1
	}

	return SectionCheck{Sections: sections, PresentCount: present, Score: score, MaxScore: 2}
}

// CountCitations counts distinct numeric facts cited in the draft.
// Duplicated matches count once. 10+ unique citations earn 3 points,
// 6-9 earn 2, 3-5 earn 1.
func CountCitations(report string) CitationCheck {
	seen := make(map[string]struct{})
	var unique []string
	for _, pattern := range citationPatterns {
		for _, match := range pattern.FindAllString(report, -1) {
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = struct{}{}
			unique = append(unique, match)
		}
	}
	sort.Strings(unique)

	count := len(unique)
	score := 0
	switch {
	case count >= 10:
		score = 3
	case count >= 6:
		score = 2
	case count >= 3:
		score = 1
	}

	examples := unique
	if len(examples) > 10 {
		examples = examples[:10]
	}

	return CitationCheck{Count: count, Examples: examples, Score: score, MaxScore: 3}
}

// CheckSourceCoverage scores how many of the available evidence sources
// the draft actually references, by keyword. 75%+ coverage earns 2 points,
// 50%+ earns 1.
func CheckSourceCoverage(report string, sourcesAvailable []string) CoverageCheck {
	lower := strings.ToLower(report)

	referenced := make(map[string]bool, len(sourcesAvailable))
	count := 0
	for _, source := range sourcesAvailable {
		found := false
		for _, kw := range sourceKeywords[source] {
			if strings.Contains(lower, kw) {
				found = true
				break
			}
		}
		referenced[source] = found
		if found {
			count++
		}
	}

	coverage := 0.0
	if len(sourcesAvailable) > 0 {
		coverage = float64(count) / float64(len(sourcesAvailable)) * 100
	}

	score := 0
	switch {
	case coverage >= 75:
		score = 2
	case coverage >= 50:
		score = 1
	}

	return CoverageCheck{
		SourcesReferenced: referenced,
		ReferencedCount:   count,
		TotalAvailable:    len(sourcesAvailable),
		CoveragePct:       coverage,
		Score:             score,
		MaxScore:          2,
	}
}

// Section boundaries for balance counting. A section's bullet run ends at
// the next weakness/opportunity/threat heading; strengths never terminates
// a run so trailing summary text attaches to the threats section.
var balanceSections = []string{"strength", "weakness", "opportunit", "threat"}
var balanceTerminators = []string{"weakness", "opportunit", "threat"}

// CheckSectionBalance awards 1 point when no section holds fewer bullet
// items than a quarter of the per-section average.
func CheckSectionBalance(report string) BalanceCheck {
	lower := strings.ToLower(report)

	itemCounts := make(map[string]int)
	for _, section := range balanceSections {
		start := strings.Index(lower, section)
		if start < 0 {
			continue
		}
		body := lower[start+len(section):]
		end := len(body)
		for _, term := range balanceTerminators {
			if idx := strings.Index(body, term); idx >= 0 && idx < end {
				end = idx
			}
		}
		items := len(bulletPattern.FindAllString(body[:end], -1))
		if items < 1 {
			items = 1 // section heading exists even without bullets
		}
		itemCounts[section] = items
	}

	if len(itemCounts) == 0 {
		return BalanceCheck{Balanced: false, Score: 0, MaxScore: 1}
	}

	total := 0
	for _, c := range itemCounts {
		total += c
	}
	avg := float64(total) / float64(len(itemCounts))

	balanced := avg > 0
	for _, c := range itemCounts {
		if float64(c) < avg*0.25 {
			balanced = false
			break
		}
	}

	score := 0
	if balanced {
		score = 1
	}

	return BalanceCheck{ItemCounts: itemCounts, Balanced: balanced, Score: score, MaxScore: 1}
}

// RunChecks executes all deterministic checks and normalizes the 0-8 point
// total onto the 0-4 deterministic share of the final score.
func RunChecks(report string, sourcesAvailable []string) DeterministicResult {
	sections := CheckSections(report)
	citations := CountCitations(report)
	sources := CheckSourceCoverage(report, sourcesAvailable)
	balance := CheckSectionBalance(report)

	total := sections.Score + citations.Score + sources.Score + balance.Score

	return DeterministicResult{
		Sections:        sections,
		Citations:       citations,
		Sources:         sources,
		Balance:         balance,
		TotalScore:      total,
		MaxScore:        deterministicMaxScore,
		NormalizedScore: float64(total) / float64(deterministicMaxScore) * 4,
	}
}
