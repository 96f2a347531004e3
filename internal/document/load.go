package document

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load validates and decodes a document. On validation failure the error is
// a ValidationErrors.
func Load(filename string, data []byte, extraTypes ...string) (*Document, error) {
	if errs := Validate(filename, data, extraTypes...); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return &doc, nil
}

// LoadFile reads and loads a document file.
func LoadFile(path string, extraTypes ...string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Load(path, data, extraTypes...)
}
