package hcl

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSeriesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "daily.hcl", `
series "daily" {
	type        = "regular"
	base_period = [1, "d"]
	observation {
		period = "2020-01-01Z"
		value  = 1
	}
}`)
	writeFile(t, dir, "nested/spans.hcl", `
series "spans" {
	type = "irregular"
	observation {
		start = "2020Z"
		end   = "2021Z"
		value = "a"
	}
}`)
	writeFile(t, dir, "README.md", "not a series file")

	defs, err := ParseSeriesDirectory(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "daily", defs[0].Name)
	assert.Equal(t, "spans", defs[1].Name)
}

func TestParseSeriesDirectoryEmpty(t *testing.T) {
	_, err := ParseSeriesDirectory(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no HCL files found")
}

func TestMergeHCLFilesDuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.hcl", `series "x" { type = "irregular" }`)
	b := writeFile(t, dir, "b.hcl", `series "x" { type = "irregular" }`)

	_, err := ParseSeriesFiles([]string{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined more than once")
}

func TestMergeHCLFilesMissingFile(t *testing.T) {
	_, err := MergeHCLFiles([]string{filepath.Join(t.TempDir(), "missing.hcl")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		expected    string
	}{
		{"hcl header", "application/vnd.hcl; charset=utf-8", `{}`, ContentTypeHCL},
		{"json header", "application/json", `series "a" {}`, ContentTypeJSON},
		{"sniff json", "", `  {"JsonTs": "regular"}`, ContentTypeJSON},
		{"sniff hcl", "text/plain", `series "a" { type = "irregular" }`, ContentTypeHCL},
		{"empty body", "", ``, ContentTypeJSON},
		{"alternate hcl header", "application/hcl", `series "a" {}`, ContentTypeHCL},
		{"jsonts with text header", "text/plain", `{"JsonTs": "irregular", "data": []}`, ContentTypeJSON},
		{"hcl after comment", "", "# outages\n\nseries \"a\" {\n  type = \"irregular\"\n}\n", ContentTypeHCL},
		{"json object without JsonTs", "", `{"series": "a"}`, ContentTypeJSON},
		{"json array", "", `[{"JsonTs": "regular"}]`, ContentTypeJSON},
		{"hcl without series block", "", `name = "a"`, ContentTypeJSON},
		{"malformed hcl", "", `series "a" {`, ContentTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/series/a", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			got, err := DetectContentType(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestHasSeriesBlocks(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected bool
	}{
		{"single block", `series "a" { type = "irregular" }`, true},
		{"among other blocks", "layer \"x\" {}\nseries \"a\" {}", true},
		{"attributes only", `type = "regular"`, false},
		{"other blocks only", `layer "x" {}`, false},
		{"json", `{"JsonTs": "regular"}`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasSeriesBlocks([]byte(tt.content)))
		})
	}
}

func TestDetectContentTypeKeepsBody(t *testing.T) {
	body := `series "a" { type = "irregular" }`
	req := httptest.NewRequest(http.MethodPut, "/series/a", strings.NewReader(body))
	_, err := DetectContentType(req)
	require.NoError(t, err)

	got, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}
