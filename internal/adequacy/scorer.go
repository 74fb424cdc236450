package adequacy

import (
	"fmt"
	"math"

	"github.com/draftpilot/backend/internal/metrics"
	"github.com/draftpilot/backend/internal/storage/models"
)

const (
	StatusExcellent    = "excellent"
	StatusGood         = "good"
	StatusAdequate     = "adequate"
	StatusInsufficient = "insufficient"
)

type Totals struct {
	Words   int     `json:"words"`
	Sources int     `json:"sources"`
	Quality float64 `json:"quality"`
}

type Breakdown struct {
	Synthesis int `json:"synthesis"`
	Documents int `json:"documents"`
	Web       int `json:"web"`
	Verified  int `json:"verified"`
	Starred   int `json:"starred"`
}

type Requirements struct {
	MinWords   int     `json:"min_words"`
	MinSources int     `json:"min_sources"`
	MinQuality float64 `json:"min_quality"`
}

// Score is computed on demand from the current source set; it is never
// cached or persisted.
type Score struct {
	Current         Totals       `json:"current"`
	Breakdown       Breakdown    `json:"breakdown"`
	Requirements    Requirements `json:"requirements"`
	OverallScore    float64      `json:"overall_score"`
	Status          string       `json:"status"`
	Recommendations []string     `json:"recommendations"`
}

// Policy holds the tunable scaling and combining constants. The
// combining function is a weighted mean of the three capped ratios:
// monotonic in each and never above 1.
type Policy struct {
	MinimumMinutes int
	WordsPerMinute int
	WordsWeight    float64
	SourcesWeight  float64
	QualityWeight  float64
}

func DefaultPolicy() Policy {
	return Policy{
		MinimumMinutes: 35,
		WordsPerMinute: 80,
		WordsWeight:    0.5,
		SourcesWeight:  0.3,
		QualityWeight:  0.2,
	}
}

type Scorer struct {
	policy Policy
}

func NewScorer(policy Policy) *Scorer {
	if policy.MinimumMinutes == 0 {
		policy.MinimumMinutes = 35
	}
	if policy.WordsPerMinute == 0 {
		policy.WordsPerMinute = 80
	}
	if policy.WordsWeight+policy.SourcesWeight+policy.QualityWeight == 0 {
		def := DefaultPolicy()
		policy.WordsWeight = def.WordsWeight
		policy.SourcesWeight = def.SourcesWeight
		policy.QualityWeight = def.QualityWeight
	}
	return &Scorer{policy: policy}
}

// Score reports whether accumulated research is adequate for the
// target output duration. The gate only exists for long-form output:
// below the minimum duration it returns (nil, false) and callers show
// nothing.
func (s *Scorer) Score(sources []models.Source, targetDurationSeconds int) (*Score, bool) {
	minutes := targetDurationSeconds / 60
	if minutes < s.policy.MinimumMinutes {
		return nil, false
	}

	current := s.totals(sources)
	reqs := s.requirements(minutes)
	overall := s.combine(current, reqs)

	score := &Score{
		Current:      current,
		Breakdown:    tally(sources),
		Requirements: reqs,
		OverallScore: overall,
		Status:       statusFor(overall),
	}
	score.Recommendations = s.recommend(current, reqs)

	metrics.AdequacyScores.Observe(overall)
	return score, true
}

func (s *Scorer) totals(sources []models.Source) Totals {
	var t Totals
	var qualitySum float64
	for _, src := range sources {
		if !src.CountsTowardAdequacy() {
			continue
		}
		t.Words += src.WordCount
		t.Sources++
		qualitySum += src.QualityScore
	}
	if t.Sources > 0 {
		t.Quality = qualitySum / float64(t.Sources)
	}
	return t
}

// requirements scale with the target duration: longer output demands
// more words, more sources and higher average quality.
func (s *Scorer) requirements(minutes int) Requirements {
	minQuality := 0.60
	if minutes >= 90 {
		minQuality = 0.70
	} else if minutes >= 60 {
		minQuality = 0.65
	}

	minSources := minutes / 10
	if minSources < 5 {
		minSources = 5
	}

	return Requirements{
		MinWords:   minutes * s.policy.WordsPerMinute,
		MinSources: minSources,
		MinQuality: minQuality,
	}
}

func (s *Scorer) combine(current Totals, reqs Requirements) float64 {
	wordsRatio := cappedRatio(float64(current.Words), float64(reqs.MinWords))
	sourcesRatio := cappedRatio(float64(current.Sources), float64(reqs.MinSources))
	qualityRatio := cappedRatio(current.Quality, reqs.MinQuality)

	weightSum := s.policy.WordsWeight + s.policy.SourcesWeight + s.policy.QualityWeight
	combined := (s.policy.WordsWeight*wordsRatio +
		s.policy.SourcesWeight*sourcesRatio +
		s.policy.QualityWeight*qualityRatio) / weightSum

	if combined > 1 {
		combined = 1
	}
	return combined
}

func cappedRatio(current, required float64) float64 {
	if required <= 0 {
		return 1
	}
	ratio := current / required
	if ratio > 1 {
		return 1
	}
	return ratio
}

func statusFor(overall float64) string {
	switch points := int(math.Floor(overall * 100)); {
	case points >= 80:
		return StatusExcellent
	case points >= 70:
		return StatusGood
	case points >= 50:
		return StatusAdequate
	default:
		return StatusInsufficient
	}
}

func tally(sources []models.Source) Breakdown {
	var b Breakdown
	for _, src := range sources {
		switch src.Kind {
		case models.KindSynthesis:
			b.Synthesis++
		case models.KindDocument:
			b.Documents++
		case models.KindWeb:
			b.Web++
		}
		if src.Verified {
			b.Verified++
		}
		if src.Starred {
			b.Starred++
		}
	}
	return b
}

// recommend produces advisory gap-closing suggestions; they never
// block generation.
func (s *Scorer) recommend(current Totals, reqs Requirements) []string {
	var recs []string

	if current.Words < reqs.MinWords {
		needed := int(math.Ceil(float64(reqs.MinWords-current.Words) / 500))
		recs = append(recs, fmt.Sprintf(
			"Add roughly %d more sources to close the %d-word research gap",
			needed, reqs.MinWords-current.Words))
	}

	if current.Sources < reqs.MinSources {
		recs = append(recs, fmt.Sprintf(
			"Add %d more sources (have %d, need %d)",
			reqs.MinSources-current.Sources, current.Sources, reqs.MinSources))
	}

	if current.Quality < reqs.MinQuality && len(recs) < 2 {
		recs = append(recs, "Replace low-quality sources with higher-quality material")
	}

	return recs
}
