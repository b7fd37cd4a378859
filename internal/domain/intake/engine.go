// Package intake implements the patient intake form engine: conditional
// field triggers, per-field validation rules, section visibility and the
// whole-form validation resolver.
package intake

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/metrics"
)

// Engine evaluates a single immutable FormConfig. It keeps no state between
// calls and is safe for concurrent use.
type Engine struct {
	cfg     *FormConfig
	logger  zerolog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewEngine(cfg *FormConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "intake").Logger(),
		now:    time.Now,
	}
}

// SetMetrics attaches an optional metrics collector.
func (e *Engine) SetMetrics(m *metrics.Collector) {
	e.metrics = m
}

// SetClock replaces the clock used by date-of-birth checks.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Config returns the engine's form configuration.
func (e *Engine) Config() *FormConfig {
	return e.cfg
}
