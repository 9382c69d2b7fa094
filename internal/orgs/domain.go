package orgs

import (
	"fmt"
	"time"

	"github.com/taskhive/taskhive/internal/shared"
)

// ErrNotFound indicates the requested organization does not exist.
var ErrNotFound = fmt.Errorf("orgs: %w", shared.ErrNotFound)

// Organization is a tenant.
type Organization struct {
	ID        int64
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
