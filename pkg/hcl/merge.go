package hcl

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// MergeHCLFiles combines multiple HCL files into a single HCL file body.
// Series blocks from every file end up side by side, the way Terraform loads
// the .tf files of a directory.
func MergeHCLFiles(filePaths []string) (*hcl.File, error) {
	parser := hclparse.NewParser()
	var mergedContent bytes.Buffer

	for _, path := range filePaths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
		mergedContent.Write(content)
		mergedContent.WriteString("\n")
	}

	file, diags := parser.ParseHCL(mergedContent.Bytes(), "merged.hcl")
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse merged HCL content: %s", diags.Error())
	}
	return file, nil
}

// ParseSeriesFiles parses and merges the given files
func ParseSeriesFiles(filePaths []string) ([]Definition, error) {
	file, err := MergeHCLFiles(filePaths)
	if err != nil {
		return nil, err
	}
	return decodeSeriesFile(file)
}

// FindHCLFiles walks dirPath and returns every HCL file under it, sorted
func FindHCLFiles(dirPath string) ([]string, error) {
	var hclFiles []string
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && IsHCLBasedOnExtension(info.Name()) {
			hclFiles = append(hclFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}
	sort.Strings(hclFiles)
	return hclFiles, nil
}

// ParseSeriesDirectory parses all HCL files in a directory as one merged set
// of series definitions.
func ParseSeriesDirectory(dirPath string) ([]Definition, error) {
	hclFiles, err := FindHCLFiles(dirPath)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no HCL files found in directory %s", dirPath)
	}
	return ParseSeriesFiles(hclFiles)
}
