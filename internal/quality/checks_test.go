package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const balancedDraft = `## Strengths
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

func TestCheckSectionsAllPresent(t *testing.T) {
	result := CheckSections(balancedDraft)

	assert.Equal(t, 4, result.PresentCount)
	assert.Equal(t, 2, result.Score)
	assert.True(t, result.Sections["strengths"])
	assert.True(t, result.Sections["threats"])
}

func TestCheckSectionsPartial(t *testing.T) {
	tests := []struct {
		name      string
		report    string
		wantCount int
		wantScore int
	}{
		{"two sections", "Strengths: solid. Weaknesses: debt.", 2, 1},
		{"one section", "Strengths only here", 1, 0},
		{"none", "nothing structured at all", 0, 0},
		{"singular forms", "strength opportunity threat weakness", 4, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckSections(tt.report)
			assert.Equal(t, tt.wantCount, result.PresentCount)
			assert.Equal(t, tt.wantScore, result.Score)
		})
	}
}

func TestCountCitationsDedup(t *testing.T) {
	// Same figure repeated must count once.
	result := CountCitations("Revenue grew 7.26% then 7.26% again")
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 0, result.Score)
}

func TestCountCitationsMixed(t *testing.T) {
	result := CountCitations("Revenue grew 7.26% with P/E: 21 and EV/EBITDA: 12 in 2024")

	// 7.26%, P/E: 21, EV/EBITDA: 12, 2024
	assert.GreaterOrEqual(t, result.Count, 4)
	assert.Equal(t, 1, result.Score)
}

func TestCountCitationsRichDraft(t *testing.T) {
	result := CountCitations(balancedDraft)
	assert.GreaterOrEqual(t, result.Count, 10)
	assert.Equal(t, 3, result.Score)
	assert.LessOrEqual(t, len(result.Examples), 10)
}

func TestCheckSourceCoverage(t *testing.T) {
	tests := []struct {
		name      string
		report    string
		available []string
		wantCount int
		wantScore int
	}{
		{
			name:      "full coverage",
			report:    "revenue and beta with p/e plus analyst news and bullish sentiment amid inflation",
			available: []string{"financials", "volatility", "valuation", "news", "sentiment", "macro"},
			wantCount: 6,
			wantScore: 2,
		},
		{
			name:      "half coverage",
			report:    "revenue and beta only",
			available: []string{"financials", "volatility", "news", "macro"},
			wantCount: 2,
			wantScore: 1,
		},
		{
			name:      "low coverage",
			report:    "revenue only",
			available: []string{"financials", "volatility", "news", "macro"},
			wantCount: 1,
			wantScore: 0,
		},
		{
			name:      "no sources available",
			report:    "revenue everywhere",
			available: nil,
			wantCount: 0,
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckSourceCoverage(tt.report, tt.available)
			assert.Equal(t, tt.wantCount, result.ReferencedCount)
			assert.Equal(t, tt.wantScore, result.Score)
		})
	}
}

func TestCheckSectionBalance(t *testing.T) {
	result := CheckSectionBalance(balancedDraft)
	assert.True(t, result.Balanced)
	assert.Equal(t, 1, result.Score)
}

func TestCheckSectionBalanceLopsided(t *testing.T) {
	lopsided := `## Strengths
- one
- two
- three
- four
- five
- six
- seven
- eight
- nine
- ten
- eleven
- twelve
- thirteen
- fourteen

## Weaknesses

## Opportunities

## Threats
`
	result := CheckSectionBalance(lopsided)
	// Empty sections count as one item each; fourteen against three ones
	// leaves the minimum below a quarter of the average.
	assert.False(t, result.Balanced)
	assert.Equal(t, 0, result.Score)
}

func TestCheckSectionBalanceNoSections(t *testing.T) {
	result := CheckSectionBalance("free-form text with no headings")
	assert.False(t, result.Balanced)
	assert.Equal(t, 0, result.Score)
}

func TestRunChecksNormalizes(t *testing.T) {
	result := RunChecks(balancedDraft, []string{"financials", "volatility", "valuation", "news", "macro", "sentiment"})

	assert.Equal(t, 8, result.MaxScore)
	assert.Equal(t, result.Sections.Score+result.Citations.Score+result.Sources.Score+result.Balance.Score, result.TotalScore)
	assert.InDelta(t, float64(result.TotalScore)/8*4, result.NormalizedScore, 0.001)
	assert.LessOrEqual(t, result.NormalizedScore, 4.0)
}

func TestRunChecksEmptyReport(t *testing.T) {
	result := RunChecks("", []string{"financials"})
	assert.Equal(t, 0, result.TotalScore)
	assert.Equal(t, 0.0, result.NormalizedScore)
}
