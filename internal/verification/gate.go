package verification

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/metrics"
	"github.com/draftpilot/backend/pkg/logger"
)

const (
	StatusExcellent = "EXCELLENT"
	StatusGood      = "GOOD"
	StatusFailed    = "FAILED"

	TagVerified          = "[VERIFIED]"
	TagUnverified        = "[UNVERIFIED]"
	TagNeedsVerification = "[NEEDS VERIFICATION]"
	TagHypothetical      = "[HYPOTHETICAL]"
	citationMarker       = "[Source:"

	minVerifiedClaims      = 3
	minCitations           = 3
	maxHypothetical        = 3
	maxUnverifiedPercent   = 20.0
	missingSectionPenalty  = 20
	lowVerifiedPenalty     = 10
	highUnverifiedPenalty  = 30
	lowCitationPenalty     = 15
	hypotheticalPenalty    = 5
)

// RequiredSections are the literal headings every generated text must
// carry to be releasable.
var RequiredSections = []string{
	"SEARCH LOG",
	"FACT VERIFICATION SUMMARY",
	"FACT-CHECK NOTES",
	"ACCURACY DISCLAIMER",
}

// Report is the auditable outcome of validating one generated text.
// It is derived purely from the text and can always be recomputed.
type Report struct {
	Searches             []string `json:"searches"`
	VerifiedClaims       []string `json:"verified_claims"`
	UnverifiedClaims     []string `json:"unverified_claims"`
	HypotheticalExamples []string `json:"hypothetical_examples"`
	Sources              []string `json:"sources"`
	Score                int      `json:"score"`
	Status               string   `json:"status"`
	Passed               bool     `json:"passed"`
	Errors               []string `json:"errors"`
	Warnings             []string `json:"warnings"`
}

// Gate renders the deterministic accept/reject decision over generated
// text: required sections present, enough verified claims, bounded
// unverified share, enough citations.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) Validate(text string) *Report {
	report := &Report{
		Score:    100,
		Passed:   true,
		Errors:   []string{},
		Warnings: []string{},
	}

	for _, section := range RequiredSections {
		if !strings.Contains(text, section) {
			report.Passed = false
			report.Score -= missingSectionPenalty
			report.Errors = append(report.Errors, fmt.Sprintf("missing required section: %s", section))
		}
	}

	verifiedCount := strings.Count(text, TagVerified)
	unverifiedCount := strings.Count(text, TagUnverified) + strings.Count(text, TagNeedsVerification)
	hypotheticalCount := strings.Count(text, TagHypothetical)
	citationCount := strings.Count(text, citationMarker)

	if verifiedCount < minVerifiedClaims {
		report.Score -= lowVerifiedPenalty
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"only %d verified claims (want at least %d)", verifiedCount, minVerifiedClaims))
	}

	if unverifiedCount > 0 {
		percentage := float64(unverifiedCount) / float64(verifiedCount+unverifiedCount) * 100
		if percentage > maxUnverifiedPercent {
			report.Passed = false
			report.Score -= highUnverifiedPenalty
			report.Errors = append(report.Errors, fmt.Sprintf(
				"%.0f%% of claims are unverified (limit %.0f%%)", percentage, maxUnverifiedPercent))
		} else {
			report.Score -= int(percentage / 2)
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"%.0f%% of claims are unverified", percentage))
		}
	}

	if citationCount < minCitations {
		report.Score -= lowCitationPenalty
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"only %d source citations (want at least %d)", citationCount, minCitations))
	}

	if hypotheticalCount > maxHypothetical {
		report.Score -= hypotheticalPenalty
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"%d hypothetical examples (limit %d)", hypotheticalCount, maxHypothetical))
	}

	if report.Score < 0 {
		report.Score = 0
	}

	switch {
	case report.Passed && len(report.Warnings) == 0:
		report.Status = StatusExcellent
	case report.Passed:
		report.Status = StatusGood
	default:
		report.Status = StatusFailed
	}

	// audit extraction is best-effort and never changes the verdict
	g.extract(text, report)

	metrics.VerificationReports.WithLabelValues(report.Status).Inc()
	logger.Info("Verification gate decision",
		zap.String("status", report.Status),
		zap.Int("score", report.Score),
		zap.Int("verified", verifiedCount),
		zap.Int("unverified", unverifiedCount),
		zap.Int("citations", citationCount),
	)

	return report
}
