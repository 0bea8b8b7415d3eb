// Package swot extracts structured sections from a free-form analysis
// report. Models format the output inconsistently (markdown headings, bold
// labels, inline headers, numbered lists), so parsing is keyword-driven
// rather than grammar-driven.
package swot

import (
	"regexp"
	"strings"

	"github.com/ternarybob/consilium/internal/models"
)

var (
	bulletPattern      = regexp.MustCompile(`^\s*[-*•]\s*(.+)$|^\s*\d+[.)]\s*(.+)$`)
	headerMarkup       = regexp.MustCompile(`[#*_:\[\]()]`)
	headerLineMarkup   = regexp.MustCompile(`[#*_:\-–—\[\]()]`)
	leadingSeparators  = regexp.MustCompile(`^[:\-–—\s]+`)
	leadingMarkup      = regexp.MustCompile(`^[#*_]+\s*`)
)

// sectionKeywords in match priority order. A header line naming several
// sections attaches to the first keyword found.
var sectionKeywords = []string{"strength", "weakness", "opportunit", "threat"}

// Parse splits a report into the four SWOT sections. Lines under a section
// heading become items: bullet and numbered entries are unwrapped, and plain
// prose lines longer than ten characters are kept as-is.
func Parse(text string) models.SwotSections {
	sections := map[string][]string{
		"strength":   {},
		"weakness":   {},
		"opportunit": {},
		"threat":     {},
	}

	current := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if keyword, ok := matchSectionHeader(line); ok {
			current = keyword
			if after := extractAfterHeader(line, keyword); after != "" {
				sections[current] = append(sections[current], after)
			}
			continue
		}

		if current == "" {
			continue
		}

		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			item := m[1]
			if item == "" {
				item = m[2]
			}
			if item = strings.TrimSpace(item); item != "" {
				sections[current] = append(sections[current], item)
			}
		} else if !isHeaderLine(line) && len(line) > 10 {
			sections[current] = append(sections[current], line)
		}
	}

	return models.SwotSections{
		Strengths:     sections["strength"],
		Weaknesses:    sections["weakness"],
		Opportunities: sections["opportunit"],
		Threats:       sections["threat"],
	}
}

// matchSectionHeader reports whether a line is a section heading. Long lines
// containing a keyword are treated as content, not headings.
func matchSectionHeader(line string) (string, bool) {
	clean := strings.TrimSpace(headerMarkup.ReplaceAllString(strings.ToLower(line), ""))
	if len(clean) >= 50 {
		return "", false
	}
	for _, keyword := range sectionKeywords {
		if strings.Contains(clean, keyword) {
			return keyword, true
		}
	}
	return "", false
}

// extractAfterHeader returns inline content following a heading keyword on
// the same line, e.g. "Strengths: dominant market position".
func extractAfterHeader(line, keyword string) string {
	idx := strings.Index(strings.ToLower(line), keyword)
	if idx < 0 {
		return ""
	}

	end := idx + len(keyword)
	for end < len(line) && isAlpha(line[end]) {
		end++ // skip plural suffixes
	}

	remainder := strings.TrimSpace(line[end:])
	remainder = leadingSeparators.ReplaceAllString(remainder, "")
	remainder = strings.TrimSpace(leadingMarkup.ReplaceAllString(remainder, ""))

	if len(remainder) <= 10 {
		return ""
	}
	lower := strings.ToLower(remainder)
	for _, kw := range sectionKeywords {
		if strings.HasPrefix(lower, kw) {
			return ""
		}
	}
	return remainder
}

func isHeaderLine(line string) bool {
	clean := strings.TrimSpace(headerLineMarkup.ReplaceAllString(line, ""))
	if len(clean) < 5 {
		return true
	}
	return strings.HasSuffix(strings.TrimRight(line, " "), ":")
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
