// Package projectfiles provides the PostgreSQL-backed project attachment repository.
package projectfiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/dbx"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
)

// PostgresRepository implements attachment storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `f.id, f.project_id, f.original_name, f.stored_name, f.file_path, f.mime_type, f.file_size, f.created_at`

func (r *PostgresRepository) Add(ctx context.Context, file *models.ProjectFile) (*models.ProjectFile, error) {
	query := `INSERT INTO project_files (project_id, original_name, stored_name, file_path, mime_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		file.ProjectID, file.OriginalName, file.StoredName, file.FilePath, file.MimeType, file.FileSize,
	).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID, ownerID int64) ([]*models.ProjectFile, error) {
	query := `SELECT ` + fileColumns + `
		FROM project_files f JOIN projects p ON p.id = f.project_id
		WHERE f.project_id = $1 AND p.user_id = $2
		ORDER BY f.created_at ASC, f.id ASC`

	return r.list(ctx, query, projectID, ownerID)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.ProjectFile, error) {
	query := `SELECT ` + fileColumns + `
		FROM project_files f JOIN projects p ON p.id = f.project_id
		WHERE p.user_id = $1
		ORDER BY f.created_at ASC, f.id ASC`

	return r.list(ctx, query, ownerID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.ProjectFile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select project files: %w", err)
	}
	defer rows.Close()

	var result []*models.ProjectFile
	for rows.Next() {
		var f models.ProjectFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.OriginalName, &f.StoredName, &f.FilePath, &f.MimeType,
			&f.FileSize, &f.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetForOwner(ctx context.Context, fileID, ownerID int64) (*models.ProjectFile, error) {
	query := `SELECT ` + fileColumns + `
		FROM project_files f JOIN projects p ON p.id = f.project_id
		WHERE f.id = $1 AND p.user_id = $2`

	var f models.ProjectFile
	err := r.db.QueryRowContext(ctx, query, fileID, ownerID).Scan(&f.ID, &f.ProjectID, &f.OriginalName,
		&f.StoredName, &f.FilePath, &f.MimeType, &f.FileSize, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &f, nil
}

// Delete removes one file row if, and only if, its parent project belongs to ownerID.
func (r *PostgresRepository) Delete(ctx context.Context, fileID, ownerID int64) error {
	query := `DELETE FROM project_files f USING projects p
		WHERE f.id = $1 AND p.id = f.project_id AND p.user_id = $2`

	res, err := r.db.ExecContext(ctx, query, fileID, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
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

func (r *PostgresRepository) DeleteByProject(ctx context.Context, projectID, ownerID int64) (int64, error) {
	query := `DELETE FROM project_files f USING projects p
		WHERE f.project_id = $1 AND p.id = f.project_id AND p.user_id = $2`

	res, err := r.db.ExecContext(ctx, query, projectID, ownerID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
