package intake

import (
	"fmt"
	"strings"
)

// IsHidden reports whether a whole section is hidden. For array sections an
// index selects the repetition's linkId; without one every linkId of the
// section is checked against the always-hidden list.
//
// A statically hidden section is hidden regardless of values. Otherwise the
// section's own triggers decide, and only an explicit false from the enable
// triggers hides it.
func (e *Engine) IsHidden(section *FormSection, values FormValues, index ...int) bool {
	if section == nil {
		return true
	}
	ids := section.LinkID.Resolve(index...)
	if e.cfg != nil {
		for _, id := range ids {
			if e.cfg.IsAlwaysHidden(id) {
				return true
			}
		}
	}
	if len(section.Triggers) == 0 {
		return false
	}

	synthetic := &FieldConfig{
		Key:            strings.Join(ids, ","),
		Kind:           KindDisplay,
		Triggers:       section.Triggers,
		EnableBehavior: section.EnableBehavior,
	}
	return e.Evaluate(synthetic, values, section.EnableBehavior).IsDisabled()
}

// SectionChecker answers repeated visibility questions against one snapshot.
type SectionChecker func(section *FormSection, index ...int) bool

// SectionChecker binds IsHidden to a value snapshot.
func (e *Engine) SectionChecker(values FormValues) SectionChecker {
	return func(section *FormSection, index ...int) bool {
		return e.IsHidden(section, values, index...)
	}
}

// IsLinkIDHidden looks a section up by linkId and reports its visibility for
// that repetition.
func (e *Engine) IsLinkIDHidden(linkID string, values FormValues) (bool, error) {
	section, index, ok := e.cfg.SectionByLinkID(linkID)
	if !ok {
		return false, fmt.Errorf("section %q: %w", linkID, ErrSectionNotFound)
	}
	if section.IsArray() {
		return e.IsHidden(section, values, index), nil
	}
	return e.IsHidden(section, values), nil
}

// isFieldHidden reports whether a field is disabled by its own triggers and
// configured to disappear when disabled.
func (e *Engine) isFieldHidden(field *FieldConfig, values FormValues) bool {
	return field.hiddenWhenDisabled() && e.Evaluate(field, values, field.EnableBehavior).IsDisabled()
}

// allFieldsHidden reports whether every answerable field of one repetition is
// hidden by its own triggers. A repetition with no answerable fields is not
// considered hidden.
func (e *Engine) allFieldsHidden(section *FormSection, index int, values FormValues) (bool, error) {
	fields, err := sectionFields(section, index)
	if err != nil {
		return false, err
	}
	answerable := 0
	for _, f := range fields {
		if f.Kind == KindDisplay {
			continue
		}
		answerable++
		if !e.isFieldHidden(f, values) {
			return false, nil
		}
	}
	return answerable > 0, nil
}

// sectionHidden combines the section resolver with the all-fields fallback.
func (e *Engine) sectionHidden(section *FormSection, index int, values FormValues) (bool, error) {
	if section.IsArray() {
		if e.IsHidden(section, values, index) {
			return true, nil
		}
	} else if e.IsHidden(section, values) {
		return true, nil
	}
	return e.allFieldsHidden(section, index, values)
}

func sectionFields(section *FormSection, index int) (FieldMap, error) {
	if section.IsArray() {
		return section.Fields(index)
	}
	return section.Fields()
}
