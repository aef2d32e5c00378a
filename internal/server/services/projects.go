package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/dbx"
	"github.com/dmitrijs2005/enrollportal/internal/server/blobstore"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
	"github.com/dmitrijs2005/enrollportal/internal/server/uploads"
)

const (
	MsgNoProjectFiles = "Please upload at least one project file."

	labelProjectFile = "Project file"
)

// ProjectInput is a validated project form plus the files attached to it.
// Empty file slots are ignored.
type ProjectInput struct {
	Fields models.ProjectFields
	Files  []uploads.File
}

type ProjectService struct {
	c *Coordinator
}

func NewProjectService(c *Coordinator) *ProjectService {
	return &ProjectService{c: c}
}

func (s *ProjectService) fileSlots(files []uploads.File) []slot {
	var slots []slot
	for _, f := range files {
		if !f.Supplied() {
			continue
		}
		slots = append(slots, slot{
			label:      labelProjectFile,
			file:       f,
			policy:     uploads.ProjectFilePolicy,
			collection: blobstore.CollectionProjects,
		})
	}
	return slots
}

// CreateProject stores a new project with at least one file. The whole file
// batch is validated before anything is written, and either the project and
// all its files exist afterwards or none of them do.
func (s *ProjectService) CreateProject(ctx context.Context, ownerID int64, in ProjectInput) (*models.Project, error) {
	m := s.c.begin("create_project")

	var errs common.ValidationErrors
	slots := s.fileSlots(in.Files)
	if len(slots) == 0 {
		errs.Add(MsgNoProjectFiles)
	}
	accepted := m.validate(slots, &errs)
	if err := errs.Err(); err != nil {
		return nil, m.abort(ctx, err)
	}

	ctx = context.WithoutCancel(ctx)

	stored, err := m.storeAll(ctx, accepted)
	if err != nil {
		return nil, err
	}

	var project *models.Project
	err = m.commit(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.c.repos.Projects(tx).Create(ctx, ownerID, in.Fields)
		if err != nil {
			return err
		}
		files, err := s.addFiles(ctx, tx, p.ID, stored)
		if err != nil {
			return err
		}
		p.Files = files
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.c.log.Info(ctx, "project created", "user_id", ownerID, "project_id", project.ID, "files", len(stored))
	return project, nil
}

// UpdateProject rewrites the project fields and appends any new files.
// Existing files are never touched.
func (s *ProjectService) UpdateProject(ctx context.Context, ownerID, projectID int64, in ProjectInput) (*models.Project, error) {
	m := s.c.begin("update_project")

	project, err := s.c.repos.Projects(s.c.db).Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, m.abort(ctx, lookupErr(err))
	}

	var errs common.ValidationErrors
	accepted := m.validate(s.fileSlots(in.Files), &errs)
	if err := errs.Err(); err != nil {
		return nil, m.abort(ctx, err)
	}

	ctx = context.WithoutCancel(ctx)

	stored, err := m.storeAll(ctx, accepted)
	if err != nil {
		return nil, err
	}

	var added []*models.ProjectFile
	err = m.commit(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.c.repos.Projects(tx).Update(ctx, projectID, ownerID, in.Fields); err != nil {
			return err
		}
		files, err := s.addFiles(ctx, tx, projectID, stored)
		added = files
		return err
	})
	if err != nil {
		return nil, err
	}

	project.Title = in.Fields.Title
	project.Description = in.Fields.Description
	project.Technologies = in.Fields.Technologies
	project.Files = added

	s.c.log.Info(ctx, "project updated", "user_id", ownerID, "project_id", projectID, "files_added", len(added))
	return project, nil
}

func (s *ProjectService) addFiles(ctx context.Context, tx dbx.DBTX, projectID int64, stored []models.UploadResult) ([]*models.ProjectFile, error) {
	repo := s.c.repos.ProjectFiles(tx)
	files := make([]*models.ProjectFile, 0, len(stored))
	for _, res := range stored {
		f, err := repo.Add(ctx, res.AsProjectFile(projectID))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// DeleteProject removes the project, its file rows and, once the deletion
// is committed, their blobs.
func (s *ProjectService) DeleteProject(ctx context.Context, ownerID, projectID int64) error {
	m := s.c.begin("delete_project")

	if _, err := s.c.repos.Projects(s.c.db).Get(ctx, projectID, ownerID); err != nil {
		return m.abort(ctx, lookupErr(err))
	}

	ctx = context.WithoutCancel(ctx)

	var removed int
	err := m.commit(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		files, err := s.c.repos.ProjectFiles(tx).ListByProject(ctx, projectID, ownerID)
		if err != nil {
			return err
		}
		if _, err := s.c.repos.ProjectFiles(tx).DeleteByProject(ctx, projectID, ownerID); err != nil {
			return err
		}
		if err := s.c.repos.Projects(tx).Delete(ctx, projectID, ownerID); err != nil {
			return err
		}
		for _, f := range files {
			m.retire(f.FilePath)
		}
		removed = len(files)
		return nil
	})
	if err != nil {
		return err
	}

	s.c.log.Info(ctx, "project deleted", "user_id", ownerID, "project_id", projectID, "files", removed)
	return nil
}

// DeleteProjectFile removes one attachment of a project the caller owns.
// A project may end up with no files.
func (s *ProjectService) DeleteProjectFile(ctx context.Context, ownerID, fileID int64) error {
	m := s.c.begin("delete_project_file")

	file, err := s.c.repos.ProjectFiles(s.c.db).GetForOwner(ctx, fileID, ownerID)
	if err != nil {
		return m.abort(ctx, lookupErr(err))
	}

	ctx = context.WithoutCancel(ctx)

	err = m.commit(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.c.repos.ProjectFiles(tx).Delete(ctx, fileID, ownerID); err != nil {
			return err
		}
		m.retire(file.FilePath)
		return nil
	})
	if err != nil {
		return err
	}

	s.c.log.Info(ctx, "project file deleted", "user_id", ownerID, "file_id", fileID)
	return nil
}

// ListProjects returns the owner's projects newest first, each with its
// files oldest first. Parents and children are loaded separately and merged
// by project id.
func (s *ProjectService) ListProjects(ctx context.Context, ownerID int64) ([]*models.Project, error) {
	projects, err := s.c.repos.Projects(s.c.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return projects, nil
	}

	files, err := s.c.repos.ProjectFiles(s.c.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	byProject := make(map[int64][]*models.ProjectFile, len(projects))
	for _, f := range files {
		byProject[f.ProjectID] = append(byProject[f.ProjectID], f)
	}
	for _, p := range projects {
		p.Files = byProject[p.ID]
	}
	return projects, nil
}

// ExportProject returns one owned project with its files, for export.
func (s *ProjectService) ExportProject(ctx context.Context, ownerID, projectID int64) (*models.Project, error) {
	p, err := s.c.repos.Projects(s.c.db).Get(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	p.Files, err = s.c.repos.ProjectFiles(s.c.db).ListByProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// OpenProjectFile returns the metadata and content of an owned file. The
// caller closes the reader.
func (s *ProjectService) OpenProjectFile(ctx context.Context, ownerID, fileID int64) (*models.ProjectFile, io.ReadCloser, error) {
	f, err := s.c.repos.ProjectFiles(s.c.db).GetForOwner(ctx, fileID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.c.store.Open(ctx, f.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return f, rc, nil
}

func lookupErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("%w: %w", common.ErrPersistence, err)
}
