package intake

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Form version statuses.
const (
	FormStatusDraft   = "draft"
	FormStatusActive  = "active"
	FormStatusRetired = "retired"
)

var (
	// ErrFormNotFound is returned when a stored form version does not exist.
	ErrFormNotFound = errors.New("form not found")
	// ErrFormsUnavailable is returned when no form store is configured.
	ErrFormsUnavailable = errors.New("form storage is not configured")
)

// FormVersion maps to the intake_form table. Definition holds the JSON form
// document exactly as published.
type FormVersion struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Version    int             `db:"version" json:"version"`
	Status     string          `db:"status" json:"status"`
	Definition json.RawMessage `db:"definition" json:"definition"`
	Note       *string         `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Config parses the stored definition.
func (f *FormVersion) Config() (*FormConfig, error) {
	return ParseFormConfig(f.Definition)
}
