// Package confidence grades how much weight a finished analysis deserves.
// The quality score carries 60% of the grade and evidence coverage the
// remaining 40%, so a well-written report on thin data still reads as
// tentative.
package confidence

import (
	"math"

	"github.com/ternarybob/consilium/internal/models"
)

// Readiness labels surfaced to the caller.
const (
	ReadinessBoardReady  = "Board-ready"
	ReadinessReview      = "Review recommended"
	ReadinessExploratory = "Exploratory"
)

// Calculate combines the quality score (0-10) with evidence source coverage
// into a 0-100 confidence grade. Board-ready additionally requires zero
// failed sources: high confidence on partial evidence is a contradiction.
func Calculate(score float64, sourcesAvailable, sourcesFailed []string) models.Confidence {
	scoreContribution := score / 10 * 60

	totalSources := len(sourcesAvailable) + len(sourcesFailed)
	dataContribution := 20.0
	if totalSources > 0 {
		dataContribution = float64(len(sourcesAvailable)) / float64(totalSources) * 40
	}

	total := scoreContribution + dataContribution

	readiness := ReadinessExploratory
	level := "low"
	switch {
	case total >= 75 && len(sourcesFailed) == 0:
		readiness = ReadinessBoardReady
		level = "high"
	case total >= 60:
		readiness = ReadinessReview
		level = "medium"
	}

	return models.Confidence{
		Confidence:        int(math.Round(total)),
		Readiness:         readiness,
		Level:             level,
		ScoreContribution: int(math.Round(scoreContribution)),
		DataContribution:  int(math.Round(dataContribution)),
	}
}
