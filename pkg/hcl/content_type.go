package hcl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// Body formats accepted by the series endpoints
const (
	ContentTypeHCL  = "application/vnd.hcl"
	ContentTypeJSON = "application/json"
)

var hclMediaTypes = map[string]bool{
	ContentTypeHCL:      true,
	"application/hcl":   true,
	"text/x-hcl":        true,
	"application/x-hcl": true,
}

// DetectContentType decides whether a request carries a JSON-TS document or
// HCL series blocks. A recognised Content-Type wins, otherwise the body is
// inspected and restored for the caller.
func DetectContentType(r *http.Request) (string, error) {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		switch {
		case hclMediaTypes[mediaType]:
			return ContentTypeHCL, nil
		case mediaType == ContentTypeJSON:
			return ContentTypeJSON, nil
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	return sniffBody(body), nil
}

// sniffBody picks HCL only for bodies declaring series blocks. Everything
// else goes to the JSON-TS decoder, which reports what is wrong with it.
func sniffBody(body []byte) string {
	if isJSONTSDocument(body) {
		return ContentTypeJSON
	}
	if HasSeriesBlocks(body) {
		return ContentTypeHCL
	}
	return ContentTypeJSON
}

// isJSONTSDocument reports whether body is a JSON object with a JsonTs member
func isJSONTSDocument(body []byte) bool {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return false
	}
	_, ok := members["JsonTs"]
	return ok
}

// HasSeriesBlocks reports whether content is valid HCL declaring at least one
// series block.
func HasSeriesBlocks(content []byte) bool {
	file, diags := hclsyntax.ParseConfig(content, "body.hcl", hcl.InitialPos)
	if diags.HasErrors() {
		return false
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return false
	}
	for _, block := range body.Blocks {
		if block.Type == "series" {
			return true
		}
	}
	return false
}

// IsHCLBasedOnExtension checks if the filename holds series definitions
func IsHCLBasedOnExtension(filename string) bool {
	return filepath.Ext(filename) == ".hcl"
}
