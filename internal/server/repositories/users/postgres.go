// Package users provides the PostgreSQL-backed user repository.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/dbx"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `SELECT id, full_name, email, password_hash, phone, gender, course, address, about,
		profile_photo, resume_file, cover_letter_file, created_at, updated_at
	FROM users`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Phone, &u.Gender, &u.Course,
		&u.Address, &u.About, &u.ProfilePhoto, &u.ResumeFile, &u.CoverLetterFile, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE lower(email) = lower($1)`, email))
}

func (r *PostgresRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`

	var taken bool
	if err := r.db.QueryRowContext(ctx, query, email, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return taken, nil
}

// Create inserts user and fills its ID and timestamps. A concurrent
// registration that wins the unique index yields common.ErrDuplicateEmail.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.PasswordHash == "" {
		return nil, fmt.Errorf("empty password hash")
	}

	query := `INSERT INTO users (full_name, email, password_hash, phone, gender, course, address, about,
			profile_photo, resume_file, cover_letter_file)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.FullName, user.Email, user.PasswordHash, user.Phone, user.Gender, user.Course, user.Address, user.About,
		nullable(user.ProfilePhoto), nullable(user.ResumeFile), nullable(user.CoverLetterFile),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// Update returns the new updated_at of the row.
func (r *PostgresRepository) Update(ctx context.Context, id int64, f models.ProfileFields, docs models.Documents) (time.Time, error) {
	query := `UPDATE users SET
			full_name = $1, email = $2, phone = $3, gender = $4, course = $5, address = $6, about = $7,
			profile_photo = COALESCE($8, profile_photo),
			resume_file = COALESCE($9, resume_file),
			cover_letter_file = COALESCE($10, cover_letter_file),
			updated_at = now()
		WHERE id = $11
		RETURNING updated_at`

	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		f.FullName, f.Email, f.Phone, f.Gender, f.Course, f.Address, f.About,
		nullable(docs.ProfilePhoto), nullable(docs.ResumeFile), nullable(docs.CoverLetterFile), id,
	).Scan(&updatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return time.Time{}, common.ErrorNotFound
		case dbx.IsUniqueViolation(err):
			return time.Time{}, common.ErrDuplicateEmail
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return updatedAt, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	if hash == "" {
		return fmt.Errorf("empty password hash")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
