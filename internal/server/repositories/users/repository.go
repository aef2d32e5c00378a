package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// EmailTaken reports whether another account (id <> excludeID) uses email.
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Update writes profile fields and replaces only the non-nil documents.
	// It returns the row's new updated_at.
	Update(ctx context.Context, id int64, fields models.ProfileFields, docs models.Documents) (time.Time, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}
