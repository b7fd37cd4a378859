package intake

import (
	"context"
	"errors"
	"time"
)

// ErrSectionNotFound is returned when a section key or linkId is unknown.
var ErrSectionNotFound = errors.New("section not found")

// ResolverOptions configures a whole-form resolver.
type ResolverOptions struct {
	// RenderedSectionCounts limits validation of array sections to the
	// repetitions currently on screen. Sections not listed are fully rendered.
	RenderedSectionCounts RenderedSectionCounts
}

// ResolverResult carries the submitted values back with the error map. Only
// failing fields appear in Errors.
type ResolverResult struct {
	Values FormValues            `json:"values"`
	Errors map[string]FieldError `json:"errors"`
}

// HasErrors reports whether any field failed.
func (r *ResolverResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Resolver validates a full value snapshot. The error return is reserved for
// structurally invalid configuration; field failures are reported in the
// result.
type Resolver func(ctx context.Context, values FormValues) (*ResolverResult, error)

// NewResolver builds a resolver bound to the engine's config. The body runs
// synchronously and keeps no state between calls.
func (e *Engine) NewResolver(opts ResolverOptions) Resolver {
	counts := make(RenderedSectionCounts, len(opts.RenderedSectionCounts))
	for k, v := range opts.RenderedSectionCounts {
		counts[k] = v
	}
	return func(_ context.Context, values FormValues) (*ResolverResult, error) {
		return e.resolve(values, counts)
	}
}

const (
	skipFieldHidden   = "field_hidden"
	skipNotRendered   = "not_rendered"
	skipSectionHidden = "section_hidden"
)

func (e *Engine) resolve(values FormValues, counts RenderedSectionCounts) (*ResolverResult, error) {
	start := time.Now()
	if values == nil {
		values = FormValues{}
	}

	fields, err := e.cfg.flatten()
	if err != nil {
		return nil, err
	}

	errs := make(map[string]FieldError)
	for _, entry := range fields {
		field := entry.field
		if field.Kind == KindDisplay {
			continue
		}
		if entry.section.IsFieldHidden(field.Key) || e.isFieldHidden(field, values) {
			e.metrics.FieldSkipped(skipFieldHidden)
			continue
		}
		if !isRendered(entry.section, entry.index, counts) {
			e.metrics.FieldSkipped(skipNotRendered)
			continue
		}
		hidden, err := e.sectionHidden(entry.section, entry.index, values)
		if err != nil {
			return nil, err
		}
		if hidden {
			e.metrics.FieldSkipped(skipSectionHidden)
			continue
		}

		rules := e.GenerateRules(field, values, entry.section.RequiredFields.For(entry.index))
		if fe := rules.Check(values[field.Key]); fe != nil {
			errs[field.Key] = *fe
			e.metrics.FieldError(string(fe.Type))
		}
	}

	e.metrics.ObserveResolverPass(time.Since(start))
	if len(errs) > 0 {
		e.logger.Debug().Int("errors", len(errs)).Msg("intake form failed validation")
	}
	return &ResolverResult{Values: values, Errors: errs}, nil
}

// isRendered applies the caller's rendered counts. The first linkId of the
// section found in counts decides.
func isRendered(section *FormSection, index int, counts RenderedSectionCounts) bool {
	for _, id := range section.LinkID.IDs {
		if n, ok := counts[id]; ok {
			return index < n
		}
	}
	return true
}

// FieldStates evaluates every field's triggers for renderers: whether it is
// required, enabled, and which label substitute applies.
func (e *Engine) FieldStates(values FormValues) (map[string]EvaluationResult, error) {
	fields, err := e.cfg.flatten()
	if err != nil {
		return nil, err
	}
	out := make(map[string]EvaluationResult, len(fields))
	for _, entry := range fields {
		res := e.Evaluate(entry.field, values, entry.field.EnableBehavior)
		if containsKey(entry.section.RequiredFields.For(entry.index), entry.field.Key) && entry.field.Kind != KindDisplay {
			res.Required = true
		}
		out[entry.field.Key] = res
	}
	return out, nil
}
