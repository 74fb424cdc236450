package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrUnavailable means no extractor is registered for the file type.
// This is a hard failure: a missing parser must never masquerade as a
// successful extraction with placeholder text.
var ErrUnavailable = errors.New("no extractor available for file type")

// Result is the output of a text-extraction collaborator. Partial marks
// extractions that recovered only part of the document.
type Result struct {
	Text    string
	Partial bool
}

// Extractor turns raw file bytes into plain text. PDF and DOCX
// extraction is delegated to external collaborators registered at
// startup; the pipeline never parses those formats itself.
type Extractor interface {
	Extract(data []byte) (Result, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(data []byte) (Result, error)

func (f ExtractorFunc) Extract(data []byte) (Result, error) {
	return f(data)
}

// Registry dispatches extraction by normalized file type. Plain-text
// and JSON handlers are built in; binary formats must be injected.
type Registry struct {
	byType map[string]Extractor
}

func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Extractor)}
	r.Register("txt", ExtractorFunc(extractPlainText))
	r.Register("json", ExtractorFunc(extractJSON))
	return r
}

func (r *Registry) Register(fileType string, e Extractor) {
	r.byType[strings.ToLower(fileType)] = e
}

// Extract dispatches on the declared type. Unknown types fall back to
// best-effort plain-text decoding; known binary types without a
// registered collaborator fail with ErrUnavailable.
func (r *Registry) Extract(fileType string, data []byte) (Result, error) {
	ft := NormalizeType(fileType)

	if e, ok := r.byType[ft]; ok {
		return e.Extract(data)
	}

	switch ft {
	case "pdf", "docx", "doc":
		return Result{}, fmt.Errorf("%s: %w", ft, ErrUnavailable)
	}

	return extractPlainText(data)
}

// NormalizeType maps file extensions and declared MIME types onto the
// registry's canonical type keys.
func NormalizeType(fileType string) string {
	ft := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))

	switch ft {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "application/msword":
		return "doc"
	case "text/plain":
		return "txt"
	case "application/json":
		return "json"
	}

	if i := strings.IndexByte(ft, ';'); i >= 0 {
		return NormalizeType(ft[:i])
	}

	return ft
}

func extractPlainText(data []byte) (Result, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		// salvage what decodes; mark the extraction partial
		return Result{Text: strings.ToValidUTF8(text, ""), Partial: true}, nil
	}
	return Result{Text: text}, nil
}

func extractJSON(data []byte) (Result, error) {
	if !json.Valid(data) {
		return Result{}, errors.New("invalid JSON document")
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return Result{}, fmt.Errorf("failed to render JSON: %w", err)
	}
	return Result{Text: buf.String()}, nil
}
