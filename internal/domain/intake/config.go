package intake

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidFormConfig wraps every structural problem found while building a
// FormConfig.
var ErrInvalidFormConfig = errors.New("invalid form config")

// FormDocument is the serialised shape of a form configuration.
type FormDocument struct {
	Sections             map[string]*FormSection `json:"sections"`
	AlwaysHiddenSections []string                `json:"alwaysHiddenSections,omitempty"`
}

// FormConfig is the read-only form definition shared by every resolver pass.
// Build it once with NewFormConfig and never modify it afterwards.
type FormConfig struct {
	sections     map[string]*FormSection
	order        []string
	alwaysHidden map[string]struct{}
}

// NewFormConfig checks the document's structure and freezes it.
func NewFormConfig(doc *FormDocument) (*FormConfig, error) {
	if doc == nil || len(doc.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrInvalidFormConfig)
	}

	cfg := &FormConfig{
		sections:     make(map[string]*FormSection, len(doc.Sections)),
		alwaysHidden: make(map[string]struct{}, len(doc.AlwaysHiddenSections)),
	}
	for key, section := range doc.Sections {
		if section == nil {
			return nil, fmt.Errorf("%w: section %q is empty", ErrInvalidFormConfig, key)
		}
		if err := checkSection(key, section); err != nil {
			return nil, err
		}
		cfg.sections[key] = section
		cfg.order = append(cfg.order, key)
	}
	sort.Strings(cfg.order)

	for _, id := range doc.AlwaysHiddenSections {
		cfg.alwaysHidden[id] = struct{}{}
	}
	return cfg, nil
}

func checkSection(key string, s *FormSection) error {
	if len(s.LinkID.IDs) == 0 {
		return fmt.Errorf("%w: section %q has no linkId", ErrInvalidFormConfig, key)
	}
	if s.IsArray() {
		if s.Items.Repeated == nil {
			return fmt.Errorf("%w: section %q has an array linkId but a single item map", ErrInvalidFormConfig, key)
		}
		if len(s.Items.Repeated) != len(s.LinkID.IDs) {
			return fmt.Errorf("%w: section %q declares %d linkIds but %d item maps",
				ErrInvalidFormConfig, key, len(s.LinkID.IDs), len(s.Items.Repeated))
		}
		if s.RequiredFields.Indexed != nil && len(s.RequiredFields.Indexed) != len(s.Items.Repeated) {
			return fmt.Errorf("%w: section %q declares %d requiredFields lists for %d repetitions",
				ErrInvalidFormConfig, key, len(s.RequiredFields.Indexed), len(s.Items.Repeated))
		}
	} else {
		if s.Items.Repeated != nil {
			return fmt.Errorf("%w: section %q has a single linkId but repeated item maps", ErrInvalidFormConfig, key)
		}
		if s.RequiredFields.Indexed != nil {
			return fmt.Errorf("%w: section %q has indexed requiredFields but does not repeat", ErrInvalidFormConfig, key)
		}
	}

	maps := s.Items.Repeated
	if !s.IsArray() {
		maps = []FieldMap{s.Items.Single}
	}
	for i, fields := range maps {
		for fk, f := range fields {
			if f == nil {
				return fmt.Errorf("%w: section %q repetition %d field %q is empty", ErrInvalidFormConfig, key, i, fk)
			}
			if f.Key == "" {
				f.Key = fk
			}
			if f.Key != fk {
				return fmt.Errorf("%w: section %q field map key %q does not match field key %q",
					ErrInvalidFormConfig, key, fk, f.Key)
			}
			if f.Kind == "" {
				f.Kind = KindInput
			}
		}
	}
	return nil
}

// Section returns a section by its config key.
func (c *FormConfig) Section(key string) (*FormSection, bool) {
	s, ok := c.sections[key]
	return s, ok
}

// SectionByLinkID finds the section that owns a linkId, either directly or
// as one repetition of an array section. The repetition index is returned.
func (c *FormConfig) SectionByLinkID(linkID string) (*FormSection, int, bool) {
	for _, key := range c.order {
		s := c.sections[key]
		for i, id := range s.LinkID.IDs {
			if id == linkID {
				return s, i, true
			}
		}
	}
	return nil, 0, false
}

// SectionKeys returns section keys in a stable order.
func (c *FormConfig) SectionKeys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// IsAlwaysHidden reports whether a linkId is statically hidden.
func (c *FormConfig) IsAlwaysHidden(linkID string) bool {
	_, ok := c.alwaysHidden[linkID]
	return ok
}

// Document returns the serialisable form of the config.
func (c *FormConfig) Document() *FormDocument {
	doc := &FormDocument{Sections: make(map[string]*FormSection, len(c.sections))}
	for k, s := range c.sections {
		doc.Sections[k] = s
	}
	for id := range c.alwaysHidden {
		doc.AlwaysHiddenSections = append(doc.AlwaysHiddenSections, id)
	}
	sort.Strings(doc.AlwaysHiddenSections)
	return doc
}

// indexedField is one entry of the flattened field index.
type indexedField struct {
	field      *FieldConfig
	sectionKey string
	section    *FormSection
	index      int
}

// flatten indexes every field of every section and repetition. Keys are
// expected to be unique across the form; if one is repeated the first
// occurrence in section-key order wins.
func (c *FormConfig) flatten() ([]indexedField, error) {
	var out []indexedField
	seen := make(map[string]bool)
	for _, key := range c.order {
		s := c.sections[key]
		for i := 0; i < s.Repetitions(); i++ {
			var (
				fields FieldMap
				err    error
			)
			if s.IsArray() {
				fields, err = s.Fields(i)
			} else {
				fields, err = s.Fields()
			}
			if err != nil {
				return nil, fmt.Errorf("section %q: %w", key, err)
			}
			for _, fk := range sortedKeys(fields) {
				if seen[fk] {
					continue
				}
				seen[fk] = true
				out = append(out, indexedField{field: fields[fk], sectionKey: key, section: s, index: i})
			}
		}
	}
	return out, nil
}

func sortedKeys(m FieldMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
