package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/dbx"
	"github.com/dmitrijs2005/enrollportal/internal/logging"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
	"github.com/dmitrijs2005/enrollportal/internal/server/orphans"
	"github.com/dmitrijs2005/enrollportal/internal/server/repositories/projectfiles"
	"github.com/dmitrijs2005/enrollportal/internal/server/repositories/projects"
	"github.com/dmitrijs2005/enrollportal/internal/server/repositories/users"
	"github.com/dmitrijs2005/enrollportal/internal/server/uploads"
)

// --- blob store ---

type fakeStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	seq       int
	putCalls  int
	failPutAt int // 1-based; 0 means never
	deleteErr map[string]error
	deletes   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[string][]byte{}, deleteErr: map[string]error{}}
}

func (s *fakeStore) Put(ctx context.Context, r io.ReadSeeker, collection, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.putCalls == s.failPutAt {
		return "", fmt.Errorf("disk full")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.seq++
	loc := fmt.Sprintf("%s/blob%03d.%s", collection, s.seq, ext)
	s.blobs[loc] = b
	return loc, nil
}

func (s *fakeStore) Delete(ctx context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, locator)
	if err := s.deleteErr[locator]; err != nil {
		return err
	}
	delete(s.blobs, locator)
	return nil
}

func (s *fakeStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[locator]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}

func (s *fakeStore) has(locator string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[locator]
	return ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// seed stores a blob as if an earlier request had written it.
func (s *fakeStore) seed(locator, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[locator] = []byte(content)
}

// --- orphan reporter ---

type recordingReporter struct {
	mu      sync.Mutex
	orphans []orphans.Orphan
}

func (r *recordingReporter) Report(ctx context.Context, o orphans.Orphan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans = append(r.orphans, o)
	return nil
}

// --- repositories ---

// memDB backs the fake repositories. Writes are applied immediately; the
// transaction boundary itself is asserted through sqlmock.
type memDB struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	projects map[int64]*models.Project
	files    map[int64]*models.ProjectFile
	nextID   int64
	clock    time.Time

	userUpdateErr  error
	staleEmailView bool
	projectErr     error
	addFileErr     error
	failAddFileAt  int
	addFileCalls   int
	deleteFilesErr error
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[int64]*models.User{},
		projects: map[int64]*models.Project{},
		files:    map[int64]*models.ProjectFile{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (d *memDB) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *memDB) tick() time.Time {
	d.clock = d.clock.Add(time.Second)
	return d.clock
}

type fakeRepoMgr struct{ d *memDB }

func (m fakeRepoMgr) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeRepoMgr) Users(dbx.DBTX) users.Repository             { return fakeUsers{m.d} }
func (m fakeRepoMgr) Projects(dbx.DBTX) projects.Repository       { return fakeProjects{m.d} }
func (m fakeRepoMgr) ProjectFiles(dbx.DBTX) projectfiles.Repository {
	return fakeFiles{m.d}
}

type fakeUsers struct{ d *memDB }

func (r fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	u, ok := r.d.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, u := range r.d.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r fakeUsers) EmailTaken(_ context.Context, email string, excludeID int64) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.staleEmailView {
		return false, nil
	}
	for _, u := range r.d.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, existing := range r.d.users {
		if existing.Email == u.Email {
			return nil, common.ErrDuplicateEmail
		}
	}
	u.ID = r.d.id()
	u.CreatedAt = r.d.tick()
	u.UpdatedAt = u.CreatedAt
	c := *u
	r.d.users[u.ID] = &c
	return u, nil
}

func (r fakeUsers) Update(_ context.Context, id int64, f models.ProfileFields, docs models.Documents) (time.Time, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.userUpdateErr != nil {
		return time.Time{}, r.d.userUpdateErr
	}
	u, ok := r.d.users[id]
	if !ok {
		return time.Time{}, common.ErrorNotFound
	}
	for _, other := range r.d.users {
		if other.ID != id && other.Email == f.Email {
			return time.Time{}, common.ErrDuplicateEmail
		}
	}
	u.FullName, u.Email, u.Phone, u.Gender = f.FullName, f.Email, f.Phone, f.Gender
	u.Course, u.Address, u.About = f.Course, f.Address, f.About
	if docs.ProfilePhoto != nil {
		u.ProfilePhoto = docs.ProfilePhoto
	}
	if docs.ResumeFile != nil {
		u.ResumeFile = docs.ResumeFile
	}
	if docs.CoverLetterFile != nil {
		u.CoverLetterFile = docs.CoverLetterFile
	}
	u.UpdatedAt = r.d.tick()
	return u.UpdatedAt, nil
}

func (r fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	u, ok := r.d.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

type fakeProjects struct{ d *memDB }

func (r fakeProjects) Create(_ context.Context, ownerID int64, f models.ProjectFields) (*models.Project, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.projectErr != nil {
		return nil, r.d.projectErr
	}
	now := r.d.tick()
	p := &models.Project{ID: r.d.id(), UserID: ownerID, Title: f.Title, Description: f.Description,
		Technologies: f.Technologies, CreatedAt: now, UpdatedAt: now}
	c := *p
	r.d.projects[p.ID] = &c
	return p, nil
}

func (r fakeProjects) Get(_ context.Context, id, ownerID int64) (*models.Project, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.projects[id]
	if !ok || p.UserID != ownerID {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

func (r fakeProjects) ListByOwner(_ context.Context, ownerID int64) ([]*models.Project, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []*models.Project
	for _, p := range r.d.projects {
		if p.UserID == ownerID {
			c := *p
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.Project) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r fakeProjects) Update(_ context.Context, id, ownerID int64, f models.ProjectFields) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.projectErr != nil {
		return r.d.projectErr
	}
	p, ok := r.d.projects[id]
	if !ok || p.UserID != ownerID {
		return common.ErrorNotFound
	}
	p.Title, p.Description, p.Technologies = f.Title, f.Description, f.Technologies
	p.UpdatedAt = r.d.tick()
	return nil
}

func (r fakeProjects) Delete(_ context.Context, id, ownerID int64) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.projects[id]
	if !ok || p.UserID != ownerID {
		return common.ErrorNotFound
	}
	delete(r.d.projects, id)
	for fid, f := range r.d.files {
		if f.ProjectID == id {
			delete(r.d.files, fid)
		}
	}
	return nil
}

type fakeFiles struct{ d *memDB }

func (r fakeFiles) owned(f *models.ProjectFile, ownerID int64) bool {
	p, ok := r.d.projects[f.ProjectID]
	return ok && p.UserID == ownerID
}

func (r fakeFiles) Add(_ context.Context, f *models.ProjectFile) (*models.ProjectFile, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.addFileCalls++
	if r.d.addFileErr != nil && r.d.addFileCalls >= r.d.failAddFileAt {
		return nil, r.d.addFileErr
	}
	f.ID = r.d.id()
	f.CreatedAt = r.d.tick()
	c := *f
	r.d.files[f.ID] = &c
	return f, nil
}

func (r fakeFiles) sorted(keep func(*models.ProjectFile) bool) []*models.ProjectFile {
	var out []*models.ProjectFile
	for _, f := range r.d.files {
		if keep(f) {
			c := *f
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.ProjectFile) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (r fakeFiles) ListByProject(_ context.Context, projectID, ownerID int64) ([]*models.ProjectFile, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.sorted(func(f *models.ProjectFile) bool { return f.ProjectID == projectID && r.owned(f, ownerID) }), nil
}

func (r fakeFiles) ListByOwner(_ context.Context, ownerID int64) ([]*models.ProjectFile, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.sorted(func(f *models.ProjectFile) bool { return r.owned(f, ownerID) }), nil
}

func (r fakeFiles) GetForOwner(_ context.Context, fileID, ownerID int64) (*models.ProjectFile, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	f, ok := r.d.files[fileID]
	if !ok || !r.owned(f, ownerID) {
		return nil, common.ErrorNotFound
	}
	c := *f
	return &c, nil
}

func (r fakeFiles) Delete(_ context.Context, fileID, ownerID int64) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	f, ok := r.d.files[fileID]
	if !ok || !r.owned(f, ownerID) {
		return common.ErrorNotFound
	}
	delete(r.d.files, fileID)
	return nil
}

func (r fakeFiles) DeleteByProject(_ context.Context, projectID, ownerID int64) (int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.deleteFilesErr != nil {
		return 0, r.d.deleteFilesErr
	}
	var n int64
	for id, f := range r.d.files {
		if f.ProjectID == projectID && r.owned(f, ownerID) {
			delete(r.d.files, id)
			n++
		}
	}
	return n, nil
}

func (d *memDB) fileCount(projectID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, f := range d.files {
		if f.ProjectID == projectID {
			n++
		}
	}
	return n
}

// --- harness ---

type harness struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	mem      *memDB
	store    *fakeStore
	reporter *recordingReporter
	coord    *Coordinator
	users    *UserService
	projects *ProjectService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{db: db, mock: mock, mem: newMemDB(), store: newFakeStore(), reporter: &recordingReporter{}}
	h.coord = NewCoordinator(db, fakeRepoMgr{h.mem}, h.store, h.reporter, logging.Nop())
	h.users = NewUserService(h.coord)
	h.projects = NewProjectService(h.coord)
	return h
}

type nopSeekCloser struct{ *strings.Reader }

func (nopSeekCloser) Close() error { return nil }

func memFile(name, content string) uploads.File {
	return uploads.File{
		Name:   name,
		Size:   int64(len(content)),
		Status: uploads.StatusOK,
		Open: func() (io.ReadSeekCloser, error) {
			return nopSeekCloser{strings.NewReader(content)}, nil
		},
	}
}

// seedUser inserts a user whose documents exist in the store.
func (h *harness) seedUser(email string) *models.User {
	photo, resume, cover := "uploads/old-photo.png", "uploads/old-resume.pdf", "uploads/old-cover.pdf"
	h.store.seed(photo, "png")
	h.store.seed(resume, "pdf")
	h.store.seed(cover, "pdf")
	u, _ := fakeUsers{h.mem}.Create(context.Background(), &models.User{
		FullName: "Alice Doe", Email: email, PasswordHash: "x", Phone: "5550100", Gender: "Female",
		Course: "PHP Full Stack", Address: "addr", About: "about",
		ProfilePhoto: &photo, ResumeFile: &resume, CoverLetterFile: &cover,
	})
	return u
}

// seedProject inserts a project with n files stored in the blob store.
func (h *harness) seedProject(ownerID int64, n int) (*models.Project, []*models.ProjectFile) {
	ctx := context.Background()
	p, _ := fakeProjects{h.mem}.Create(ctx, ownerID, models.ProjectFields{Title: "Seed", Description: "d", Technologies: "Go"})
	var files []*models.ProjectFile
	for i := 0; i < n; i++ {
		loc := fmt.Sprintf("uploads/projects/seed-%d-%d.pdf", p.ID, i)
		h.store.seed(loc, "pdf")
		f, _ := fakeFiles{h.mem}.Add(ctx, &models.ProjectFile{ProjectID: p.ID, OriginalName: "f.pdf", FilePath: loc})
		files = append(files, f)
	}
	h.mem.addFileCalls = 0
	return p, files
}
