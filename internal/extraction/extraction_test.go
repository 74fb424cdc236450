package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeType(t *testing.T) {
	tests := map[string]string{
		".PDF":                            "pdf",
		"pdf":                             "pdf",
		"application/pdf":                 "pdf",
		"application/msword":              "doc",
		"text/plain":                      "txt",
		"text/plain; charset=utf-8":       "txt",
		"application/json":                "json",
		"  .TXT ":                         "txt",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	}

	for input, want := range tests {
		assert.Equal(t, want, NormalizeType(input), "input %q", input)
	}
}

func TestExtractPlainText(t *testing.T) {
	r := NewRegistry()

	result, err := r.Extract("txt", []byte("plain body text"))
	require.NoError(t, err)
	assert.Equal(t, "plain body text", result.Text)
	assert.False(t, result.Partial)
}

func TestExtractSalvagesInvalidUTF8(t *testing.T) {
	r := NewRegistry()

	result, err := r.Extract("txt", []byte{'o', 'k', 0xff, 0xfe, '!'})
	require.NoError(t, err)
	assert.Equal(t, "ok!", result.Text)
	assert.True(t, result.Partial)
}

func TestExtractJSON(t *testing.T) {
	r := NewRegistry()

	result, err := r.Extract("application/json", []byte(`{"name":"report","pages":12}`))
	require.NoError(t, err)
	assert.Contains(t, result.Text, `"name": "report"`)

	_, err = r.Extract("json", []byte(`{"broken":`))
	assert.Error(t, err)
}

func TestExtractBinaryTypesRequireCollaborator(t *testing.T) {
	r := NewRegistry()

	for _, ft := range []string{"pdf", "docx", "doc", "application/pdf"} {
		_, err := r.Extract(ft, []byte("%PDF-1.7 ..."))
		assert.ErrorIs(t, err, ErrUnavailable, ft)
	}
}

func TestExtractUnknownTypeFallsBackToPlainText(t *testing.T) {
	r := NewRegistry()

	result, err := r.Extract("md", []byte("# Notes\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "# Notes\nbody", result.Text)
}

func TestRegisteredCollaboratorTakesOver(t *testing.T) {
	r := NewRegistry()
	r.Register("pdf", ExtractorFunc(func(data []byte) (Result, error) {
		return Result{Text: "parsed by collaborator"}, nil
	}))

	result, err := r.Extract("application/pdf", []byte{0x25, 0x50})
	require.NoError(t, err)
	assert.Equal(t, "parsed by collaborator", result.Text)
}
