// Package export renders a finished analysis for download: standalone HTML
// via markdown conversion, and a structured PDF report.
package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/consilium/internal/models"
)

type Service struct {
	md     goldmark.Markdown
	logger arbor.ILogger
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		),
		logger: logger,
	}
}

// HTML renders the raw report into a self-contained HTML document with a
// header carrying the run's score and confidence grade.
func (s *Service) HTML(result *models.AnalysisResult) ([]byte, error) {
	var body bytes.Buffer
	if err := s.md.Convert([]byte(result.RawReport), &body); err != nil {
		return nil, fmt.Errorf("could not render report markdown: %w", err)
	}

	var doc bytes.Buffer
	title := fmt.Sprintf("%s (%s) — SWOT Analysis", result.CompanyName, result.Ticker)
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(title))
	doc.WriteString("<style>body{font-family:Georgia,serif;max-width:48rem;margin:2rem auto;padding:0 1rem;color:#1a1a1a}h1,h2{color:#0b3954}.meta{color:#555;border-bottom:1px solid #ddd;padding-bottom:.75rem;margin-bottom:1.5rem}</style>\n")
	doc.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&doc, "<h1>%s</h1>\n", html.EscapeString(title))
	fmt.Fprintf(&doc, "<p class=\"meta\">Quality score %.1f/10 after %d revision(s) · Confidence %d%% (%s) · Generated via %s</p>\n",
		result.Score, result.RevisionCount, result.Confidence.Confidence,
		html.EscapeString(result.Confidence.Readiness), html.EscapeString(result.ProviderUsed))
	doc.Write(body.Bytes())
	doc.WriteString("\n</body>\n</html>\n")

	s.logger.Debug().Int("html_size", doc.Len()).Str("ticker", result.Ticker).Msg("HTML export rendered")
	return doc.Bytes(), nil
}

// PDF renders the structured result as an A4 report: a title block, the run
// summary, the four sections, and the final critique.
func (s *Service) PDF(result *models.AnalysisResult) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s (%s) SWOT Analysis", result.CompanyName, result.Ticker), false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, tr(fmt.Sprintf("%s (%s)", result.CompanyName, result.Ticker)), "", "L", false)
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, "SWOT Analysis", "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(90, 90, 90)
	summary := fmt.Sprintf("Quality score %.1f/10 after %d revision(s)  |  Confidence %d%% (%s)  |  Source: %s  |  Provider: %s",
		result.Score, result.RevisionCount, result.Confidence.Confidence,
		result.Confidence.Readiness, result.DataSource, result.ProviderUsed)
	pdf.MultiCell(0, 5, tr(summary), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	sections := []struct {
		title string
		items []string
	}{
		{"Strengths", result.Swot.Strengths},
		{"Weaknesses", result.Swot.Weaknesses},
		{"Opportunities", result.Swot.Opportunities},
		{"Threats", result.Swot.Threats},
	}

	for _, section := range sections {
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 7, section.title, "", "L", false)
		pdf.SetFont("Arial", "", 10)
		if len(section.items) == 0 {
			pdf.MultiCell(0, 5, "Insufficient data", "", "L", false)
		}
		for _, item := range section.items {
			pdf.MultiCell(0, 5, tr("- "+item), "", "L", false)
		}
		pdf.Ln(2)
	}

	if critique := strings.TrimSpace(result.Critique); critique != "" {
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 7, "Quality Review", "", "L", false)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, tr(critique), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("could not generate PDF: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Str("ticker", result.Ticker).Msg("PDF export rendered")
	return buf.Bytes(), nil
}
