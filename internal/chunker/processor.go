package chunker

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/extraction"
	"github.com/draftpilot/backend/internal/quality"
	"github.com/draftpilot/backend/internal/storage/models"
	"github.com/draftpilot/backend/pkg/logger"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// FileDescriptor is the upload preflight view of a file: what the
// client declared, before any bytes are parsed.
type FileDescriptor struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

type Metadata struct {
	FileType   string `json:"file_type"`
	WordCount  int    `json:"word_count"`
	LineCount  int    `json:"line_count"`
	ChunkCount int    `json:"chunk_count"`
	Partial    bool   `json:"partial"`
}

// Processed is a ready-to-persist document source plus its chunks.
type Processed struct {
	Source   models.Source  `json:"source"`
	Chunks   []models.Chunk `json:"chunks"`
	Metadata Metadata       `json:"metadata"`
}

// Processor normalizes uploaded documents into bounded word-window
// chunks with a deterministic quality score.
type Processor struct {
	registry   *extraction.Registry
	chunkWords int
}

func NewProcessor(registry *extraction.Registry, chunkWords int) *Processor {
	if chunkWords <= 0 {
		chunkWords = 500
	}
	return &Processor{
		registry:   registry,
		chunkWords: chunkWords,
	}
}

// Process extracts, normalizes and chunks one uploaded document. An
// unavailable extractor surfaces as an error wrapping
// extraction.ErrUnavailable; it is the caller's decision whether to
// skip, queue or reject the upload.
func (p *Processor) Process(fd FileDescriptor, raw []byte) (*Processed, error) {
	fileType := detectType(fd)

	result, err := p.registry.Extract(fileType, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %q: %w", fd.FileName, err)
	}

	normalized := Normalize(result.Text)
	words := strings.Fields(normalized)
	chunks := p.chunk(words)

	src := models.Source{
		Kind:          models.KindDocument,
		Locator:       fmt.Sprintf("upload://%d-%s", time.Now().Unix(), uuid.NewString()),
		Title:         titleFromFileName(fd.FileName),
		Content:       normalized,
		WordCount:     len(words),
		ContentLength: len(normalized),
		QualityScore:  quality.ScoreText(normalized),
		FetchStatus:   models.StatusUserProvided,
		Starred:       true,
		Selected:      true,
	}

	logger.Info("Document processed",
		zap.String("file", fd.FileName),
		zap.String("type", fileType),
		zap.Int("words", src.WordCount),
		zap.Int("chunks", len(chunks)),
		zap.Float64("quality", src.QualityScore),
	)

	return &Processed{
		Source: src,
		Chunks: chunks,
		Metadata: Metadata{
			FileType:   extraction.NormalizeType(fileType),
			WordCount:  len(words),
			LineCount:  countNonBlankLines(normalized),
			ChunkCount: len(chunks),
			Partial:    result.Partial,
		},
	}, nil
}

// Normalize unifies line endings, collapses runs of blank lines and
// trims surrounding whitespace.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// chunk slices the word sequence into fixed windows. Chunks are
// contiguous and non-overlapping; joining their contents with single
// spaces reproduces the token sequence of the normalized text.
func (p *Processor) chunk(words []string) []models.Chunk {
	if len(words) == 0 {
		return nil
	}

	chunks := make([]models.Chunk, 0, len(words)/p.chunkWords+1)
	for start := 0; start < len(words); start += p.chunkWords {
		end := start + p.chunkWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, models.Chunk{
			Index:     len(chunks),
			Content:   strings.Join(words[start:end], " "),
			WordCount: end - start,
			StartWord: start,
			EndWord:   end,
		})
	}
	return chunks
}

func detectType(fd FileDescriptor) string {
	if ext := strings.TrimPrefix(filepath.Ext(fd.FileName), "."); ext != "" {
		return ext
	}
	return fd.MimeType
}

func titleFromFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" {
		return "Untitled upload"
	}
	return base
}

func countNonBlankLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
