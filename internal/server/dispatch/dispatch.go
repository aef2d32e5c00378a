// Package dispatch routes dashboard form posts to the user and project
// services after checking the session and anti-forgery token.
package dispatch

import (
	"context"
	"errors"
	"net/url"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/cryptox"
	"github.com/dmitrijs2005/enrollportal/internal/logging"
	"github.com/dmitrijs2005/enrollportal/internal/server/forms"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
	"github.com/dmitrijs2005/enrollportal/internal/server/services"
	"github.com/dmitrijs2005/enrollportal/internal/server/uploads"
)

const (
	ActionUpdateProfile     = "update_profile"
	ActionCreateProject     = "create_project"
	ActionUpdateProject     = "update_project"
	ActionDeleteProject     = "delete_project"
	ActionDeleteProjectFile = "delete_project_file"
)

// File field names of the dashboard form.
const (
	FieldProfilePhoto    = "profile_photo"
	FieldResume          = "resume"
	FieldCoverLetter     = "cover_letter"
	FieldProjectFiles    = "project_files"
	FieldProjectFilesNew = "project_files_new"
)

const (
	MsgInvalidCSRF     = "Invalid CSRF token."
	MsgUnknownAction   = "Unknown action."
	MsgUserNotFound    = "User not found."
	MsgProjectNotFound = "Project not found."
	MsgFileNotFound    = "File not found."

	MsgProfileFailed       = "Could not update profile."
	MsgProjectCreateFailed = "Project create failed."
	MsgProjectUpdateFailed = "Could not update project."
	MsgProjectDeleteFailed = "Could not remove project."
	MsgFileDeleteFailed    = "Could not remove file."

	MsgProfileUpdated  = "Profile updated successfully."
	MsgProjectCreated  = "Project created successfully."
	MsgProjectUpdated  = "Project updated successfully."
	MsgProjectRemoved  = "Project removed successfully."
	MsgProjectFileGone = "File removed successfully."
)

// RequestContext is the authenticated caller of one request. It is built
// by the session middleware and passed explicitly.
type RequestContext struct {
	UserID    int64
	SessionID string
	CSRFToken string
}

// Request is one decoded dashboard post.
type Request struct {
	Action    string
	CSRFToken string
	Values    url.Values
	Files     map[string][]uploads.File
}

func (r Request) file(name string) uploads.File {
	if fs := r.Files[name]; len(fs) > 0 {
		return fs[0]
	}
	return uploads.File{}
}

// Result is what the dashboard shows after a post: either error messages or
// a success line.
type Result struct {
	Errors  []string `json:"errors"`
	Success string   `json:"success"`
}

func failed(msgs ...string) *Result {
	return &Result{Errors: msgs}
}

func succeeded(msg string) *Result {
	return &Result{Errors: []string{}, Success: msg}
}

type UserService interface {
	UpdateProfile(ctx context.Context, userID int64, in services.ProfileInput) (*models.User, error)
}

type ProjectService interface {
	CreateProject(ctx context.Context, ownerID int64, in services.ProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, ownerID, projectID int64, in services.ProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, ownerID, projectID int64) error
	DeleteProjectFile(ctx context.Context, ownerID, fileID int64) error
}

type Dispatcher struct {
	users         UserService
	projects      ProjectService
	log           logging.Logger
	rejectUnknown bool
}

type Option func(*Dispatcher)

// RejectUnknownActions makes unrecognised actions an error instead of a
// no-op.
func RejectUnknownActions(reject bool) Option {
	return func(d *Dispatcher) { d.rejectUnknown = reject }
}

func New(users UserService, projects ProjectService, log logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{users: users, projects: projects, log: log.With("module", "dispatch")}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch runs req on behalf of rc. The returned error is only set for an
// anonymous caller; every other outcome is described by the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, rc *RequestContext, req Request) (*Result, error) {
	if rc == nil || rc.UserID == 0 {
		return nil, common.ErrorUnauthorized
	}
	if !cryptox.TokensEqual(rc.CSRFToken, req.CSRFToken) {
		d.log.Warn(ctx, common.ErrForgery.Error(), "user_id", rc.UserID, "action", req.Action)
		return failed(MsgInvalidCSRF), nil
	}

	switch req.Action {
	case ActionUpdateProfile:
		return d.updateProfile(ctx, rc, req), nil
	case ActionCreateProject:
		return d.createProject(ctx, rc, req), nil
	case ActionUpdateProject:
		return d.updateProject(ctx, rc, req), nil
	case ActionDeleteProject:
		return d.deleteProject(ctx, rc, req), nil
	case ActionDeleteProjectFile:
		return d.deleteProjectFile(ctx, rc, req), nil
	}

	if d.rejectUnknown {
		return failed(MsgUnknownAction), nil
	}
	d.log.Debug(ctx, "ignoring unknown action", "user_id", rc.UserID, "action", req.Action)
	return &Result{Errors: []string{}}, nil
}

func (d *Dispatcher) updateProfile(ctx context.Context, rc *RequestContext, req Request) *Result {
	fields, err := forms.ParseProfile(req.Values)
	if err != nil {
		return d.outcome(ctx, req.Action, err, "", MsgProfileFailed)
	}
	_, err = d.users.UpdateProfile(ctx, rc.UserID, services.ProfileInput{
		Fields:      fields,
		Photo:       req.file(FieldProfilePhoto),
		Resume:      req.file(FieldResume),
		CoverLetter: req.file(FieldCoverLetter),
	})
	if err != nil {
		return d.outcome(ctx, req.Action, err, MsgUserNotFound, MsgProfileFailed)
	}
	return succeeded(MsgProfileUpdated)
}

func (d *Dispatcher) createProject(ctx context.Context, rc *RequestContext, req Request) *Result {
	fields, err := forms.ParseProject(req.Values, forms.ProjectCreate)
	if err != nil {
		return d.outcome(ctx, req.Action, err, "", MsgProjectCreateFailed)
	}
	_, err = d.projects.CreateProject(ctx, rc.UserID, services.ProjectInput{
		Fields: fields,
		Files:  req.Files[FieldProjectFiles],
	})
	if err != nil {
		return d.outcome(ctx, req.Action, err, "", MsgProjectCreateFailed)
	}
	return succeeded(MsgProjectCreated)
}

func (d *Dispatcher) updateProject(ctx context.Context, rc *RequestContext, req Request) *Result {
	fields, err := forms.ParseProject(req.Values, forms.ProjectUpdate)
	if err != nil {
		return d.outcome(ctx, req.Action, err, "", MsgProjectUpdateFailed)
	}
	_, err = d.projects.UpdateProject(ctx, rc.UserID, forms.ID(req.Values, "project_id"), services.ProjectInput{
		Fields: fields,
		Files:  req.Files[FieldProjectFilesNew],
	})
	if err != nil {
		return d.outcome(ctx, req.Action, err, MsgProjectNotFound, MsgProjectUpdateFailed)
	}
	return succeeded(MsgProjectUpdated)
}

func (d *Dispatcher) deleteProject(ctx context.Context, rc *RequestContext, req Request) *Result {
	err := d.projects.DeleteProject(ctx, rc.UserID, forms.ID(req.Values, "project_id"))
	if err != nil {
		return d.outcome(ctx, req.Action, err, MsgProjectNotFound, MsgProjectDeleteFailed)
	}
	return succeeded(MsgProjectRemoved)
}

func (d *Dispatcher) deleteProjectFile(ctx context.Context, rc *RequestContext, req Request) *Result {
	err := d.projects.DeleteProjectFile(ctx, rc.UserID, forms.ID(req.Values, "file_id"))
	if err != nil {
		return d.outcome(ctx, req.Action, err, MsgFileNotFound, MsgFileDeleteFailed)
	}
	return succeeded(MsgProjectFileGone)
}

// outcome turns a failed action into user-facing messages. Validation
// messages are shown as they are; anything unexpected is logged and
// replaced by the action's generic message.
func (d *Dispatcher) outcome(ctx context.Context, action string, err error, notFound, generic string) *Result {
	var verrs common.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return failed(verrs...)
	case notFound != "" && errors.Is(err, common.ErrorNotFound):
		return failed(notFound)
	}
	d.log.Error(ctx, "action failed", "action", action, "error", err)
	return failed(generic)
}
