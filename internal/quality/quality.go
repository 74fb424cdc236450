package quality

import (
	"regexp"
	"strings"
)

var (
	headingPattern = regexp.MustCompile(`(?m)^(#{1,6}\s+\S.*|[A-Z][A-Z0-9 ,'\-]{3,}:?)\s*$`)
	bulletPattern  = regexp.MustCompile(`(?m)^\s*([-*•]|\d+[.)])\s+\S`)
	numeralPattern = regexp.MustCompile(`\d+(\.\d+)?%|[$€£]\s?\d|\d{1,3}(,\d{3})+`)
)

// ScoreText computes the deterministic content-quality heuristic shared
// by web fetches and document uploads. Structure signals (headings,
// bullets, hard numbers, readable line lengths) push the score up,
// very short texts are penalized. The result is always in [0,1].
func ScoreText(text string) float64 {
	words := strings.Fields(text)
	wordCount := len(words)

	score := 0.7

	switch {
	case wordCount > 5000:
		score += 0.15
	case wordCount > 2000:
		score += 0.10
	case wordCount > 1000:
		score += 0.05
	}

	if wordCount < 200 {
		score -= 0.2
	}

	if headingPattern.MatchString(text) {
		score += 0.05
	}
	if bulletPattern.MatchString(text) {
		score += 0.03
	}
	if numeralPattern.MatchString(text) {
		score += 0.02
	}

	if avg := averageWordsPerLine(text); avg >= 8 && avg <= 20 {
		score += 0.05
	}

	return clamp01(score)
}

func averageWordsPerLine(text string) float64 {
	lines := strings.Split(text, "\n")
	total, nonBlank := 0, 0
	for _, line := range lines {
		n := len(strings.Fields(line))
		if n > 0 {
			total += n
			nonBlank++
		}
	}
	if nonBlank == 0 {
		return 0
	}
	return float64(total) / float64(nonBlank)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
