package chunker

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/draftpilot/backend/internal/extraction"
)

// Preflight validates an upload before any bytes are read. Violations
// come back as human-readable strings, never as errors: the caller
// renders them directly.
type Preflight struct {
	maxBytes          int64
	allowedExtensions map[string]bool
}

func NewPreflight(maxBytes int64, allowedExtensions []string) *Preflight {
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Preflight{maxBytes: maxBytes, allowedExtensions: allowed}
}

func (p *Preflight) Validate(fd FileDescriptor) []string {
	var violations []string

	if strings.TrimSpace(fd.FileName) == "" {
		violations = append(violations, "file name is required")
	}

	if fd.SizeBytes > p.maxBytes {
		violations = append(violations, fmt.Sprintf(
			"file is too large: %d bytes (maximum %d)", fd.SizeBytes, p.maxBytes))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fd.FileName), "."))
	if ext == "" || !p.allowedExtensions[ext] {
		violations = append(violations, fmt.Sprintf(
			"unsupported file extension %q (allowed: %s)", ext, p.allowedList()))
	}

	if strings.Contains(fd.MimeType, "/") {
		if mt := extraction.NormalizeType(fd.MimeType); !p.allowedExtensions[mt] {
			violations = append(violations, fmt.Sprintf("unsupported content type %q", fd.MimeType))
		}
	}

	return violations
}

func (p *Preflight) allowedList() string {
	exts := make([]string, 0, len(p.allowedExtensions))
	for ext := range p.allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
