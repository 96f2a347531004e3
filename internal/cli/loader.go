package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/docrun/internal/document"
)

// Error codes for load failures. Document validation errors use the
// E1xx codes of package document.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeScanError  = "E002" // Directory scan error
	ErrCodeNoFiles    = "E003" // No scenario files found
	ErrCodeLoadFailed = "E004" // File could not be read
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeStore      = "E006" // Database error
	ErrCodeInvalid    = "E007" // Document failed validation
)

// LoadError represents an error that occurred while loading input files.
type LoadError struct {
	Code    string
	Message string
	Path    string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// readDocument reads a document file, reporting a missing path as
// ErrCodeNotFound.
func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "document not found", Path: path, Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Path: path, Err: err}
	}
	return data, nil
}

// loadDocument reads, validates and decodes a document. Validation
// failures are returned as document.ValidationErrors.
func loadDocument(path string) (*document.Document, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return document.Load(path, data)
}

// findScenarioFiles finds all YAML scenario files under dir, sorted, and
// optionally filtered by a glob on the file name without extension.
// Files under golden/ directories are skipped.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "scenarios directory not found", Path: dir, Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: err.Error(), Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeScanError, Message: "not a directory", Path: dir}
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: err.Error(), Path: dir, Err: err}
	}
	sort.Strings(files)
	return files, nil
}
