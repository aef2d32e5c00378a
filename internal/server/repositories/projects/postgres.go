// Package projects provides the PostgreSQL-backed project repository.
package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/dbx"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
)

// PostgresRepository implements project storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, ownerID int64, f models.ProjectFields) (*models.Project, error) {
	query := `INSERT INTO projects (user_id, title, description, technologies)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	p := &models.Project{UserID: ownerID, Title: f.Title, Description: f.Description, Technologies: f.Technologies}
	err := r.db.QueryRowContext(ctx, query, ownerID, f.Title, f.Description, f.Technologies).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Get returns the project only when ownerID owns it; otherwise common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id, ownerID int64) (*models.Project, error) {
	query := `SELECT id, user_id, title, description, technologies, created_at, updated_at
		FROM projects WHERE id = $1 AND user_id = $2`

	p := &models.Project{}
	err := r.db.QueryRowContext(ctx, query, id, ownerID).
		Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.Technologies, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Project, error) {
	query := `SELECT id, user_id, title, description, technologies, created_at, updated_at
		FROM projects WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select projects: %w", err)
	}
	defer rows.Close()

	var result []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.Technologies, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update rewrites the text fields and refreshes updated_at. A project the
// owner does not have yields common.ErrorNotFound.
func (r *PostgresRepository) Update(ctx context.Context, id, ownerID int64, f models.ProjectFields) error {
	query := `UPDATE projects SET title = $1, description = $2, technologies = $3, updated_at = now()
		WHERE id = $4 AND user_id = $5`

	res, err := r.db.ExecContext(ctx, query, f.Title, f.Description, f.Technologies, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// Delete removes the project row; child file rows go with it (ON DELETE CASCADE).
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, ownerID)
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
