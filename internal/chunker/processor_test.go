package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpilot/backend/internal/extraction"
	"github.com/draftpilot/backend/internal/storage/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"windows line endings", "a\r\nb\r\nc", "a\nb\nc"},
		{"bare carriage returns", "a\rb", "a\nb"},
		{"blank run collapsed", "a\n\n\n\n\nb", "a\n\nb"},
		{"double newline kept", "a\n\nb", "a\n\nb"},
		{"surrounding whitespace trimmed", "\n\n  body  \n\n", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestProcessChunksAreLossless(t *testing.T) {
	p := NewProcessor(extraction.NewRegistry(), 10)

	words := make([]string, 47)
	for i := range words {
		words[i] = string(rune('a' + i%26))
	}
	raw := []byte(strings.Join(words, " "))

	processed, err := p.Process(FileDescriptor{FileName: "notes.txt"}, raw)
	require.NoError(t, err)

	require.Len(t, processed.Chunks, 5)

	// contiguous, non-overlapping windows
	for i, chunk := range processed.Chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, chunk.EndWord-chunk.StartWord, chunk.WordCount)
		if i > 0 {
			assert.Equal(t, processed.Chunks[i-1].EndWord, chunk.StartWord)
		}
	}
	assert.Equal(t, 10, processed.Chunks[0].WordCount)
	assert.Equal(t, 7, processed.Chunks[4].WordCount)

	// joining chunk contents reproduces the token sequence
	var parts []string
	for _, chunk := range processed.Chunks {
		parts = append(parts, chunk.Content)
	}
	assert.Equal(t, strings.Fields(processed.Source.Content), strings.Fields(strings.Join(parts, " ")))
}

func TestProcessBuildsDocumentSource(t *testing.T) {
	p := NewProcessor(extraction.NewRegistry(), 500)

	raw := []byte("Line one with several words here.\r\n\r\n\r\nLine two follows.")
	processed, err := p.Process(FileDescriptor{FileName: "reports/q3-summary.txt"}, raw)
	require.NoError(t, err)

	src := processed.Source
	assert.Equal(t, models.KindDocument, src.Kind)
	assert.True(t, strings.HasPrefix(src.Locator, "upload://"))
	assert.Equal(t, "q3-summary", src.Title)
	assert.Equal(t, models.StatusUserProvided, src.FetchStatus)
	assert.True(t, src.Starred)
	assert.True(t, src.Selected)
	assert.Equal(t, len(src.Content), src.ContentLength)
	assert.Greater(t, src.QualityScore, 0.0)

	assert.Equal(t, "txt", processed.Metadata.FileType)
	assert.Equal(t, 2, processed.Metadata.LineCount)
	assert.Equal(t, 1, processed.Metadata.ChunkCount)
	assert.False(t, processed.Metadata.Partial)
}

func TestProcessEmptyDocumentHasNoChunks(t *testing.T) {
	p := NewProcessor(extraction.NewRegistry(), 500)

	processed, err := p.Process(FileDescriptor{FileName: "empty.txt"}, []byte("   \n\n  "))
	require.NoError(t, err)
	assert.Empty(t, processed.Chunks)
	assert.Zero(t, processed.Source.WordCount)
}

func TestProcessPDFWithoutCollaboratorFails(t *testing.T) {
	p := NewProcessor(extraction.NewRegistry(), 500)

	_, err := p.Process(FileDescriptor{FileName: "paper.pdf"}, []byte("%PDF-1.7"))
	assert.ErrorIs(t, err, extraction.ErrUnavailable)
}

func TestProcessJSONDocument(t *testing.T) {
	p := NewProcessor(extraction.NewRegistry(), 500)

	processed, err := p.Process(FileDescriptor{FileName: "export.json"}, []byte(`{"topic":"grid storage"}`))
	require.NoError(t, err)
	assert.Contains(t, processed.Source.Content, `"topic": "grid storage"`)
	assert.Equal(t, "json", processed.Metadata.FileType)
}

func TestProcessMarksSalvagedTextPartial(t *testing.T) {
	p := NewProcessor(extraction.NewRegistry(), 500)

	processed, err := p.Process(FileDescriptor{FileName: "legacy.txt"}, []byte{'h', 'i', 0xff})
	require.NoError(t, err)
	assert.True(t, processed.Metadata.Partial)
	assert.Equal(t, "hi", processed.Source.Content)
}
