package intake

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const minimalFormJSON = `{
  "sections": {
    "visit": {
      "title": "Visit",
      "linkId": "visit-section",
      "requiredFields": ["reason"],
      "items": {
        "reason": {"kind": "input", "label": "Reason"}
      }
    }
  }
}`

const minimalFormYAML = `
sections:
  visit:
    title: Visit
    linkId: visit-section
    requiredFields: [reason]
    items:
      reason:
        kind: input
        label: Reason
`

func TestDefaultFormConfig(t *testing.T) {
	cfg, err := DefaultFormConfig()
	if err != nil {
		t.Fatalf("DefaultFormConfig: %v", err)
	}

	want := []string{"accident", "emergency-contact", "employer", "guarantor", "insurance", "legacy-pharmacy", "patient-demographics", "visit"}
	if got := cfg.SectionKeys(); !reflect.DeepEqual(got, want) {
		t.Errorf("sections = %v, want %v", got, want)
	}
	if !cfg.IsAlwaysHidden("legacy-pharmacy-section") {
		t.Error("expected the legacy pharmacy section to be statically hidden")
	}

	insurance, ok := cfg.Section("insurance")
	if !ok || !insurance.IsArray() || insurance.Repetitions() != 2 {
		t.Fatalf("insurance section: %+v", insurance)
	}
	if got := insurance.RequiredFields.For(1); len(got) != 4 || got[0] != "insurance-priority-2" {
		t.Errorf("secondary required keys = %v", got)
	}

	demo, _ := cfg.Section("patient-demographics")
	fields, err := demo.Fields()
	if err != nil {
		t.Fatal(err)
	}
	if f := fields["patient-first-name"]; f.Key != "patient-first-name" || f.Kind != KindInput {
		t.Errorf("field key and kind should be filled in: %+v", f)
	}
}

func TestLoadFormConfigFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"form.json": minimalFormJSON,
		"form.yaml": minimalFormYAML,
		"form.YML":  minimalFormYAML,
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFormConfigFile(path)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if _, ok := cfg.Section("visit"); !ok {
			t.Errorf("%s: missing visit section", name)
		}
	}

	txt := filepath.Join(dir, "form.txt")
	if err := os.WriteFile(txt, []byte(minimalFormJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFormConfigFile(txt); err == nil || !strings.Contains(err.Error(), "unsupported extension") {
		t.Errorf("expected unsupported extension error, got %v", err)
	}

	if _, err := LoadFormConfigFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestParseFormConfig_SchemaErrors(t *testing.T) {
	tests := map[string]string{
		"not json":         `{"sections":`,
		"unknown effect":   strings.Replace(minimalFormJSON, `"label": "Reason"}`, `"label": "Reason", "triggers": [{"targetFieldKey": "x", "operator": "=", "effects": ["hide"]}]}`, 1),
		"no effects":       strings.Replace(minimalFormJSON, `"label": "Reason"}`, `"label": "Reason", "triggers": [{"targetFieldKey": "x", "operator": "=", "effects": []}]}`, 1),
		"empty target":     strings.Replace(minimalFormJSON, `"label": "Reason"}`, `"label": "Reason", "triggers": [{"targetFieldKey": "", "operator": "=", "effects": ["enable"]}]}`, 1),
		"unknown kind":     strings.Replace(minimalFormJSON, `"kind": "input"`, `"kind": "slider"`, 1),
		"unknown dataType": strings.Replace(minimalFormJSON, `"label": "Reason"}`, `"label": "Reason", "dataType": "IBAN"}`, 1),
		"unknown field":    strings.Replace(minimalFormJSON, `"label": "Reason"}`, `"label": "Reason", "colour": "red"}`, 1),
		"missing title":    strings.Replace(minimalFormJSON, `"title": "Visit",`, ``, 1),
		"numeric linkId":   strings.Replace(minimalFormJSON, `"visit-section"`, `42`, 1),
		"no sections":      `{"sections": {}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFormConfig([]byte(doc))
			if !errors.Is(err, ErrInvalidFormConfig) {
				t.Errorf("expected ErrInvalidFormConfig, got %v", err)
			}
		})
	}
}

func TestParseFormConfig_UnknownOperatorLoads(t *testing.T) {
	doc := strings.Replace(minimalFormJSON, `"label": "Reason"}`,
		`"label": "Reason", "triggers": [{"targetFieldKey": "x", "operator": "~=", "effects": ["enable"]}]}`, 1)
	if _, err := ParseFormConfig([]byte(doc)); err != nil {
		t.Errorf("unknown operators are tolerated at load time: %v", err)
	}
}

func TestYAMLToJSON(t *testing.T) {
	out, err := YAMLToJSON([]byte("a: 1\nb:\n  - x\n  - 2: y\n"))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"a": float64(1), "b": []any{"x", map[string]any{"2": "y"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := YAMLToJSON([]byte("a: [unclosed")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLinkIDJSON(t *testing.T) {
	var single, array LinkID
	if err := json.Unmarshal([]byte(`"visit-section"`), &single); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(` ["i-1", "i-2"]`), &array); err != nil {
		t.Fatal(err)
	}
	if single.Array || !reflect.DeepEqual(single.IDs, []string{"visit-section"}) {
		t.Errorf("single = %+v", single)
	}
	if !array.Array || len(array.IDs) != 2 {
		t.Errorf("array = %+v", array)
	}
	if err := json.Unmarshal([]byte(`12`), &single); err == nil {
		t.Error("expected a number to be rejected")
	}

	out, _ := json.Marshal(array)
	if string(out) != `["i-1","i-2"]` {
		t.Errorf("marshal array = %s", out)
	}
	out, _ = json.Marshal(SingleLinkID("s"))
	if string(out) != `"s"` {
		t.Errorf("marshal single = %s", out)
	}
}

func TestRequiredKeysJSON(t *testing.T) {
	var flat, indexed RequiredKeys
	if err := json.Unmarshal([]byte(`["a", "b"]`), &flat); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`[["a"], ["a-2"]]`), &indexed); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(flat.For(3), []string{"a", "b"}) {
		t.Errorf("flat keys apply to every repetition: %v", flat.For(3))
	}
	if !reflect.DeepEqual(indexed.For(1), []string{"a-2"}) || indexed.For(2) != nil {
		t.Errorf("indexed = %+v", indexed)
	}

	out, _ := json.Marshal(RequiredKeys{})
	if string(out) != `[]` {
		t.Errorf("empty marshal = %s", out)
	}
}

func TestFormDocumentRoundTrip(t *testing.T) {
	cfg, err := DefaultFormConfig()
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(cfg.Document())
	if err != nil {
		t.Fatal(err)
	}
	again, err := ParseFormConfig(data)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !reflect.DeepEqual(again.SectionKeys(), cfg.SectionKeys()) {
		t.Error("section keys changed across a round trip")
	}
	if !again.IsAlwaysHidden("legacy-pharmacy-section") {
		t.Error("always hidden sections lost across a round trip")
	}
}
