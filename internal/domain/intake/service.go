package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/metrics"
)

// Service exposes the engine and the stored form versions to transports.
// The engine's config is fixed for the life of the process; activating a
// stored version takes effect on the next start.
type Service struct {
	engine  *Engine
	forms   FormRepository
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// NewService wires an engine to an optional form store. forms may be nil
// when no database is configured.
func NewService(engine *Engine, forms FormRepository, logger zerolog.Logger) *Service {
	return &Service{
		engine: engine,
		forms:  forms,
		logger: logger.With().Str("component", "intake-service").Logger(),
	}
}

// SetMetrics attaches an optional metrics collector to the service and its
// engine.
func (s *Service) SetMetrics(m *metrics.Collector) {
	s.metrics = m
	s.engine.SetMetrics(m)
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// -- Evaluation --

func (s *Service) Validate(ctx context.Context, values FormValues, counts RenderedSectionCounts) (*ResolverResult, error) {
	return s.engine.NewResolver(ResolverOptions{RenderedSectionCounts: counts})(ctx, values)
}

func (s *Service) FieldStates(values FormValues) (map[string]EvaluationResult, error) {
	return s.engine.FieldStates(values)
}

// SectionVisibility reports whether a section is hidden. The section may be
// named by its config key or by one of its linkIds.
func (s *Service) SectionVisibility(section string, values FormValues, index *int) (bool, error) {
	sec, idx, err := s.lookupSection(section, index)
	if err != nil {
		return false, err
	}
	if sec.IsArray() && idx != nil {
		return s.engine.IsHidden(sec, values, *idx), nil
	}
	return s.engine.IsHidden(sec, values), nil
}

// SectionRules generates the ruleset of every field of one section
// repetition. Array sections must be addressed with an index or by a
// repetition's linkId.
func (s *Service) SectionRules(section string, values FormValues, index *int) (map[string]Rules, error) {
	sec, idx, err := s.lookupSection(section, index)
	if err != nil {
		return nil, err
	}
	var (
		fields FieldMap
		i      int
	)
	if idx != nil {
		i = *idx
		fields, err = sec.Fields(i)
	} else {
		fields, err = sec.Fields()
	}
	if err != nil {
		return nil, err
	}
	return s.engine.GenerateRulesForSection(fields, values, sec.RequiredFields.For(i)), nil
}

func (s *Service) lookupSection(name string, index *int) (*FormSection, *int, error) {
	cfg := s.engine.Config()
	if sec, ok := cfg.Section(name); ok {
		return sec, index, nil
	}
	sec, i, ok := cfg.SectionByLinkID(name)
	if !ok {
		return nil, nil, fmt.Errorf("section %q: %w", name, ErrSectionNotFound)
	}
	if sec.IsArray() {
		if index != nil && *index != i {
			return nil, nil, fmt.Errorf("%w: linkId %q is repetition %d, not %d", ErrSectionShape, name, i, *index)
		}
		return sec, &i, nil
	}
	return sec, index, nil
}

func (s *Service) Lint() *LintResult {
	return Lint(s.engine.Config())
}

// -- Form versions --

// PublishForm checks a form document and stores it as a new draft version.
func (s *Service) PublishForm(ctx context.Context, name string, definition []byte, note *string) (*FormVersion, error) {
	if s.forms == nil {
		return nil, ErrFormsUnavailable
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidFormConfig)
	}
	cfg, err := ParseFormConfig(definition)
	if err != nil {
		return nil, err
	}
	if lint := Lint(cfg); !lint.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormConfig, firstLintError(lint))
	}

	f := &FormVersion{Name: name, Status: FormStatusDraft, Definition: definition, Note: note}
	if err := s.forms.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("store form: %w", err)
	}
	s.metrics.FormPublished()
	s.logger.Info().Str("form", f.Name).Int("version", f.Version).Str("id", f.ID.String()).Msg("form version published")
	return f, nil
}

func firstLintError(r *LintResult) string {
	for _, issue := range r.Issues {
		if issue.Severity == "error" {
			return issue.Message
		}
	}
	return "lint failed"
}

func (s *Service) ActivateForm(ctx context.Context, id uuid.UUID) (*FormVersion, error) {
	if s.forms == nil {
		return nil, ErrFormsUnavailable
	}
	f, err := s.forms.Activate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.FormActivated()
	s.logger.Info().Str("form", f.Name).Int("version", f.Version).Msg("form version activated; restart to apply")
	return f, nil
}

func (s *Service) GetForm(ctx context.Context, id uuid.UUID) (*FormVersion, error) {
	if s.forms == nil {
		return nil, ErrFormsUnavailable
	}
	return s.forms.GetByID(ctx, id)
}

func (s *Service) ListForms(ctx context.Context, name string, limit, offset int) ([]*FormVersion, int, error) {
	if s.forms == nil {
		return nil, 0, ErrFormsUnavailable
	}
	return s.forms.List(ctx, name, limit, offset)
}

// ActiveConfig loads the active stored version of a form.
func ActiveConfig(ctx context.Context, forms FormRepository, name string) (*FormConfig, *FormVersion, error) {
	f, err := forms.GetActive(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := f.Config()
	if err != nil {
		return nil, nil, fmt.Errorf("form %s v%d: %w", f.Name, f.Version, err)
	}
	return cfg, f, nil
}
