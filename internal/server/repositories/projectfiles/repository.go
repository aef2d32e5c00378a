package projectfiles

import (
	"context"

	"github.com/dmitrijs2005/enrollportal/internal/server/models"
)

// Repository stores project attachments. Ownership is always resolved
// through the parent project; there is no owner column on project_files.
type Repository interface {
	Add(ctx context.Context, file *models.ProjectFile) (*models.ProjectFile, error)
	// ListByProject returns the files of a project owned by ownerID, oldest first.
	ListByProject(ctx context.Context, projectID, ownerID int64) ([]*models.ProjectFile, error)
	// ListByOwner returns every file across the owner's projects, oldest first.
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.ProjectFile, error)
	GetForOwner(ctx context.Context, fileID, ownerID int64) (*models.ProjectFile, error)
	Delete(ctx context.Context, fileID, ownerID int64) error
	// DeleteByProject removes every file row of the project and reports how many went.
	DeleteByProject(ctx context.Context, projectID, ownerID int64) (int64, error)
}
