// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// TickerEntry maps a company name to its exchange ticker
type TickerEntry struct {
	Ticker      string
	CompanyName string
}

// tickerTable is the static company-name lookup used when a request arrives
// without a ticker. Matching is case-insensitive on whole words and known
// aliases; it is a convenience only, the caller may always supply a ticker.
var tickerTable = []TickerEntry{
	{"AAPL", "Apple Inc."},
	{"MSFT", "Microsoft Corporation"},
	{"GOOGL", "Alphabet Inc."},
	{"AMZN", "Amazon.com Inc."},
	{"META", "Meta Platforms Inc."},
	{"TSLA", "Tesla Inc."},
	{"NVDA", "NVIDIA Corporation"},
	{"JPM", "JPMorgan Chase & Co."},
	{"BAC", "Bank of America Corporation"},
	{"WMT", "Walmart Inc."},
	{"DIS", "The Walt Disney Company"},
	{"NFLX", "Netflix Inc."},
	{"INTC", "Intel Corporation"},
	{"AMD", "Advanced Micro Devices Inc."},
	{"ORCL", "Oracle Corporation"},
	{"IBM", "International Business Machines Corporation"},
	{"KO", "The Coca-Cola Company"},
	{"PEP", "PepsiCo Inc."},
	{"NKE", "Nike Inc."},
	{"BA", "The Boeing Company"},
}

var tickerAliases = map[string]string{
	"google":   "GOOGL",
	"alphabet": "GOOGL",
	"facebook": "META",
	"meta":     "META",
	"amazon":   "AMZN",
	"apple":    "AAPL",
	"tesla":    "TSLA",
	"netflix":  "NFLX",
	"nvidia":   "NVDA",
	"disney":   "DIS",
	"walmart":  "WMT",
	"boeing":   "BA",
}

// NormalizeTicker uppercases and trims a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// NormalizeCompanyName trims a company name and title-cases single-word input
func NormalizeCompanyName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	if !strings.Contains(name, " ") {
		return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
	}
	return name
}

// LookupTicker resolves a company name to a ticker symbol. Returns the empty
// string when no match is found.
func LookupTicker(company string) string {
	key := strings.ToLower(strings.TrimSpace(company))
	if key == "" {
		return ""
	}

	if ticker, ok := tickerAliases[key]; ok {
		return ticker
	}

	for _, entry := range tickerTable {
		lower := strings.ToLower(entry.CompanyName)
		if lower == key || strings.HasPrefix(lower, key+" ") || strings.HasPrefix(lower, key+".") {
			return entry.Ticker
		}
	}

	return ""
}

// FallbackTicker derives a placeholder symbol from a company name when no
// real ticker can be resolved.
func FallbackTicker(company string) string {
	compact := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(company)), " ", "")
	if len(compact) > 5 {
		compact = compact[:5]
	}
	return compact
}

// SearchTickers returns all table entries whose ticker or company name
// contains the query, case-insensitive.
func SearchTickers(query string) []TickerEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var matches []TickerEntry
	for _, entry := range tickerTable {
		if strings.Contains(strings.ToLower(entry.Ticker), query) ||
			strings.Contains(strings.ToLower(entry.CompanyName), query) {
			matches = append(matches, entry)
		}
	}
	return matches
}
