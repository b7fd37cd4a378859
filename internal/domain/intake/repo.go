package intake

import (
	"context"

	"github.com/google/uuid"
)

type FormRepository interface {
	// Create stores a new draft and assigns its ID and next version number.
	Create(ctx context.Context, f *FormVersion) error
	GetByID(ctx context.Context, id uuid.UUID) (*FormVersion, error)
	GetActive(ctx context.Context, name string) (*FormVersion, error)
	List(ctx context.Context, name string, limit, offset int) ([]*FormVersion, int, error)
	// Activate marks a version active and retires the previously active
	// version of the same form.
	Activate(ctx context.Context, id uuid.UUID) (*FormVersion, error)
}
