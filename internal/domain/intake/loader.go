package intake

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed forms/patient_record.yaml
var defaultFormYAML []byte

// DefaultFormConfig returns the built-in patient record form.
func DefaultFormConfig() (*FormConfig, error) {
	data, err := YAMLToJSON(defaultFormYAML)
	if err != nil {
		return nil, fmt.Errorf("default form: %w", err)
	}
	return ParseFormConfig(data)
}

// LoadFormConfigFile reads a .json, .yaml or .yml form document.
func LoadFormConfigFile(path string) (*FormConfig, error) {
	data, err := ReadFormDocument(path)
	if err != nil {
		return nil, err
	}
	return ParseFormConfig(data)
}

// ReadFormDocument reads a form document from disk and returns it as JSON.
func ReadFormDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLToJSON(data)
	case ".json":
		return data, nil
	default:
		return nil, fmt.Errorf("read form config %s: unsupported extension", path)
	}
}

// ParseFormConfig schema-checks a JSON form document and builds the config.
func ParseFormConfig(data []byte) (*FormConfig, error) {
	if err := CheckFormSchema(data); err != nil {
		return nil, err
	}
	var doc FormDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormConfig, err)
	}
	return NewFormConfig(&doc)
}

// YAMLToJSON converts a YAML document into JSON.
func YAMLToJSON(data []byte) ([]byte, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(normalizeYAML(tree))
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return out, nil
}

// normalizeYAML turns map[any]any nodes into map[string]any so the tree can
// be encoded as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeYAML(child)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, child := range t {
			m[fmt.Sprint(k)] = normalizeYAML(child)
		}
		return m
	case []any:
		for i, child := range t {
			t[i] = normalizeYAML(child)
		}
		return t
	}
	return v
}
