package models

import "time"

type SourceKind string

const (
	KindWeb       SourceKind = "web"
	KindDocument  SourceKind = "document"
	KindSynthesis SourceKind = "synthesis"
)

type FetchStatus string

const (
	StatusPending      FetchStatus = "pending"
	StatusComplete     FetchStatus = "complete"
	StatusPartial      FetchStatus = "partial"
	StatusFailed       FetchStatus = "failed"
	StatusSkipped      FetchStatus = "skipped"
	StatusUserProvided FetchStatus = "user-provided"
)

// Source is one unit of research material. The id is assigned by the
// storage layer, never by the pipeline. Content, QualityScore and
// FetchStatus are the enrichment fields; storage allows updating them
// exactly once.
type Source struct {
	ID            string      `json:"id"`
	Kind          SourceKind  `json:"kind"`
	Locator       string      `json:"locator"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	WordCount     int         `json:"word_count"`
	ContentLength int         `json:"content_length"`
	QualityScore  float64     `json:"quality_score"`
	FetchStatus   FetchStatus `json:"fetch_status"`
	FetchError    string      `json:"fetch_error,omitempty"`
	Starred       bool        `json:"starred"`
	Selected      bool        `json:"selected"`
	Verified      bool        `json:"verified"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CountsTowardAdequacy reports whether the source feeds the adequacy
// totals. Synthesis material is pre-trusted and always counts.
func (s Source) CountsTowardAdequacy() bool {
	return s.Kind == KindSynthesis || s.Starred || s.Selected
}

// Chunk is a contiguous, non-overlapping word-range slice of a
// document source's normalized text.
type Chunk struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Index     int       `json:"index"`
	Content   string    `json:"content"`
	WordCount int       `json:"word_count"`
	StartWord int       `json:"start_word"`
	EndWord   int       `json:"end_word"`
	CreatedAt time.Time `json:"created_at"`
}
