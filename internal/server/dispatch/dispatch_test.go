package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/logging"
	"github.com/dmitrijs2005/enrollportal/internal/server/forms"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
	"github.com/dmitrijs2005/enrollportal/internal/server/services"
	"github.com/dmitrijs2005/enrollportal/internal/server/uploads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name   string
	userID int64
	target int64
	files  int
}

type fakeServices struct {
	calls []call
	err   error
}

func (f *fakeServices) UpdateProfile(_ context.Context, userID int64, in services.ProfileInput) (*models.User, error) {
	n := 0
	for _, file := range []uploads.File{in.Photo, in.Resume, in.CoverLetter} {
		if file.Supplied() {
			n++
		}
	}
	f.calls = append(f.calls, call{"UpdateProfile", userID, 0, n})
	return &models.User{ID: userID}, f.err
}

func (f *fakeServices) CreateProject(_ context.Context, ownerID int64, in services.ProjectInput) (*models.Project, error) {
	f.calls = append(f.calls, call{"CreateProject", ownerID, 0, len(in.Files)})
	return &models.Project{ID: 1}, f.err
}

func (f *fakeServices) UpdateProject(_ context.Context, ownerID, projectID int64, in services.ProjectInput) (*models.Project, error) {
	f.calls = append(f.calls, call{"UpdateProject", ownerID, projectID, len(in.Files)})
	return &models.Project{ID: projectID}, f.err
}

func (f *fakeServices) DeleteProject(_ context.Context, ownerID, projectID int64) error {
	f.calls = append(f.calls, call{"DeleteProject", ownerID, projectID, 0})
	return f.err
}

func (f *fakeServices) DeleteProjectFile(_ context.Context, ownerID, fileID int64) error {
	f.calls = append(f.calls, call{"DeleteProjectFile", ownerID, fileID, 0})
	return f.err
}

func newDispatcher(svc *fakeServices, opts ...Option) *Dispatcher {
	return New(svc, svc, logging.Nop(), opts...)
}

var caller = &RequestContext{UserID: 7, SessionID: "s", CSRFToken: "csrf-ok"}

func memFile(name string) uploads.File {
	return uploads.File{Name: name, Size: 3, Status: uploads.StatusOK, Open: func() (io.ReadSeekCloser, error) {
		return nopSeekCloser{strings.NewReader("abc")}, nil
	}}
}

type nopSeekCloser struct{ *strings.Reader }

func (nopSeekCloser) Close() error { return nil }

func profileValues() url.Values {
	return url.Values{
		"full_name": {"Alice Doe"}, "email": {"alice@example.com"}, "phone": {"5550100"},
		"gender": {"Female"}, "course": {"PHP Full Stack"}, "address": {"a"}, "about": {"b"},
	}
}

func projectValues() url.Values {
	return url.Values{"project_id": {"12"}, "title": {"Portfolio"}, "description": {"d"}, "technologies": {"Go"}}
}

func TestDispatch_Anonymous(t *testing.T) {
	d := newDispatcher(&fakeServices{})
	_, err := d.Dispatch(context.Background(), nil, Request{Action: ActionDeleteProject})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = d.Dispatch(context.Background(), &RequestContext{CSRFToken: "x"}, Request{CSRFToken: "x"})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestDispatch_CSRFMismatchStopsEverything(t *testing.T) {
	for _, token := range []string{"", "csrf-bad", "csrf-ok "} {
		svc := &fakeServices{}
		res, err := newDispatcher(svc).Dispatch(context.Background(), caller, Request{
			Action: ActionDeleteProject, CSRFToken: token, Values: projectValues(),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{MsgInvalidCSRF}, res.Errors)
		assert.Empty(t, res.Success)
		assert.Empty(t, svc.calls)
	}
}

func TestDispatch_Success(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want call
		msg  string
	}{
		{
			name: "update profile",
			req: Request{Action: ActionUpdateProfile, Values: profileValues(),
				Files: map[string][]uploads.File{FieldResume: {memFile("cv.pdf")}}},
			want: call{"UpdateProfile", 7, 0, 1},
			msg:  MsgProfileUpdated,
		},
		{
			name: "create project",
			req: Request{Action: ActionCreateProject, Values: projectValues(),
				Files: map[string][]uploads.File{FieldProjectFiles: {memFile("a.pdf"), {}, memFile("b.pdf")}}},
			want: call{"CreateProject", 7, 0, 3},
			msg:  MsgProjectCreated,
		},
		{
			name: "update project",
			req: Request{Action: ActionUpdateProject, Values: projectValues(),
				Files: map[string][]uploads.File{FieldProjectFilesNew: {memFile("c.pdf")}, FieldProjectFiles: {memFile("x.pdf")}}},
			want: call{"UpdateProject", 7, 12, 1},
			msg:  MsgProjectUpdated,
		},
		{
			name: "delete project",
			req:  Request{Action: ActionDeleteProject, Values: url.Values{"project_id": {"12"}}},
			want: call{"DeleteProject", 7, 12, 0},
			msg:  MsgProjectRemoved,
		},
		{
			name: "delete project file",
			req:  Request{Action: ActionDeleteProjectFile, Values: url.Values{"file_id": {"5"}}},
			want: call{"DeleteProjectFile", 7, 5, 0},
			msg:  MsgProjectFileGone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeServices{}
			tt.req.CSRFToken = "csrf-ok"
			res, err := newDispatcher(svc).Dispatch(context.Background(), caller, tt.req)
			require.NoError(t, err)
			assert.Empty(t, res.Errors)
			assert.Equal(t, tt.msg, res.Success)
			assert.Equal(t, []call{tt.want}, svc.calls)
		})
	}
}

func TestDispatch_FieldErrorsSkipServices(t *testing.T) {
	svc := &fakeServices{}
	d := newDispatcher(svc)

	v := profileValues()
	v.Set("full_name", "Al")
	res, err := d.Dispatch(context.Background(), caller, Request{Action: ActionUpdateProfile, CSRFToken: "csrf-ok", Values: v})
	require.NoError(t, err)
	assert.Equal(t, []string{forms.MsgFullName}, res.Errors)

	res, err = d.Dispatch(context.Background(), caller, Request{
		Action: ActionUpdateProject, CSRFToken: "csrf-ok",
		Values: url.Values{"project_id": {"12"}, "title": {"T"}, "description": {"D"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{forms.MsgTechnologiesEdit}, res.Errors)

	res, err = d.Dispatch(context.Background(), caller, Request{
		Action: ActionCreateProject, CSRFToken: "csrf-ok",
		Values: url.Values{"title": {"T"}, "description": {"D"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{forms.MsgTechnologiesNew}, res.Errors)

	assert.Empty(t, svc.calls)
}

func TestDispatch_ErrorMapping(t *testing.T) {
	storage := fmt.Errorf("%w: %w", common.ErrStorage, errors.New("disk full"))
	persistence := fmt.Errorf("%w: %w", common.ErrPersistence, errors.New("deadlock"))

	tests := []struct {
		action string
		values url.Values
		err    error
		want   []string
	}{
		{ActionUpdateProfile, profileValues(), common.ErrorNotFound, []string{MsgUserNotFound}},
		{ActionUpdateProfile, profileValues(), storage, []string{MsgProfileFailed}},
		{ActionUpdateProfile, profileValues(), common.ValidationErrors{"Email is already used by another account."}, []string{"Email is already used by another account."}},
		{ActionCreateProject, projectValues(), common.ValidationErrors{"a", "b"}, []string{"a", "b"}},
		{ActionCreateProject, projectValues(), persistence, []string{MsgProjectCreateFailed}},
		{ActionUpdateProject, projectValues(), common.ErrorNotFound, []string{MsgProjectNotFound}},
		{ActionUpdateProject, projectValues(), storage, []string{MsgProjectUpdateFailed}},
		{ActionDeleteProject, projectValues(), common.ErrorNotFound, []string{MsgProjectNotFound}},
		{ActionDeleteProject, projectValues(), persistence, []string{MsgProjectDeleteFailed}},
		{ActionDeleteProjectFile, url.Values{"file_id": {"1"}}, common.ErrorNotFound, []string{MsgFileNotFound}},
		{ActionDeleteProjectFile, url.Values{"file_id": {"1"}}, persistence, []string{MsgFileDeleteFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			svc := &fakeServices{err: tt.err}
			res, err := newDispatcher(svc).Dispatch(context.Background(), caller, Request{
				Action: tt.action, CSRFToken: "csrf-ok", Values: tt.values,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Errors)
			assert.Empty(t, res.Success)
			for _, m := range res.Errors {
				assert.NotContains(t, m, "disk full")
				assert.NotContains(t, m, "deadlock")
			}
		})
	}
}

func TestDispatch_UnknownAction(t *testing.T) {
	svc := &fakeServices{}
	req := Request{Action: "drop_tables", CSRFToken: "csrf-ok"}

	res, err := newDispatcher(svc).Dispatch(context.Background(), caller, req)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Success)

	res, err = newDispatcher(svc, RejectUnknownActions(true)).Dispatch(context.Background(), caller, req)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgUnknownAction}, res.Errors)
	assert.Empty(t, svc.calls)
}
