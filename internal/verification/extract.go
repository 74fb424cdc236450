package verification

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
)

var (
	citationPattern = regexp.MustCompile(`\[Source:\s*([^\]]+)\]`)
	bulletPrefix    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// extract pulls the audit trail out of the text: searches performed,
// tagged claim sentences and cited sources. It fills the report
// in-place and never touches Passed or Score.
func (g *Gate) extract(text string, report *Report) {
	report.Searches = extractSearches(text)
	report.Sources = extractSources(text)

	for _, sentence := range sentencesOf(text) {
		switch {
		case strings.Contains(sentence, TagVerified):
			report.VerifiedClaims = append(report.VerifiedClaims, stripTags(sentence))
		case strings.Contains(sentence, TagUnverified), strings.Contains(sentence, TagNeedsVerification):
			report.UnverifiedClaims = append(report.UnverifiedClaims, stripTags(sentence))
		case strings.Contains(sentence, TagHypothetical):
			report.HypotheticalExamples = append(report.HypotheticalExamples, stripTags(sentence))
		}
	}
}

// extractSearches collects the bullet lines of the search log section.
func extractSearches(text string) []string {
	start := strings.Index(text, "SEARCH LOG")
	if start < 0 {
		return nil
	}

	section := text[start:]
	if end := nextSectionOffset(section); end > 0 {
		section = section[:end]
	}

	var searches []string
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !bulletPrefix.MatchString(line) {
			continue
		}
		searches = append(searches, bulletPrefix.ReplaceAllString(trimmed, ""))
	}
	return searches
}

func nextSectionOffset(section string) int {
	end := -1
	for _, heading := range RequiredSections {
		if heading == "SEARCH LOG" {
			continue
		}
		if i := strings.Index(section, heading); i > 0 && (end < 0 || i < end) {
			end = i
		}
	}
	return end
}

func extractSources(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var sources []string
	for _, m := range matches {
		src := strings.TrimSpace(m[1])
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources
}

// sentencesOf segments the text with prose; on failure it degrades to
// line-based splitting so extraction stays best-effort.
func sentencesOf(text string) []string {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		var lines []string
		for _, line := range strings.Split(text, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		return lines
	}

	sentences := doc.Sentences()
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, strings.TrimSpace(s.Text))
	}
	return out
}

func stripTags(sentence string) string {
	for _, tag := range []string{TagVerified, TagUnverified, TagNeedsVerification, TagHypothetical} {
		sentence = strings.ReplaceAll(sentence, tag, "")
	}
	return strings.TrimSpace(strings.Join(strings.Fields(sentence), " "))
}
