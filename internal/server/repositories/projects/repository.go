package projects

import (
	"context"

	"github.com/dmitrijs2005/enrollportal/internal/server/models"
)

// Repository is owner-scoped: every read and write is filtered by ownerID.
type Repository interface {
	Create(ctx context.Context, ownerID int64, fields models.ProjectFields) (*models.Project, error)
	Get(ctx context.Context, id, ownerID int64) (*models.Project, error)
	// ListByOwner returns projects newest first, without files.
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Project, error)
	Update(ctx context.Context, id, ownerID int64, fields models.ProjectFields) error
	Delete(ctx context.Context, id, ownerID int64) error
}
