package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/dbx"
	"github.com/dmitrijs2005/enrollportal/internal/logging"
	"github.com/dmitrijs2005/enrollportal/internal/server/blobstore"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
	"github.com/dmitrijs2005/enrollportal/internal/server/orphans"
	"github.com/dmitrijs2005/enrollportal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/enrollportal/internal/server/uploads"
)

// Phase is the state of one mutation.
type Phase int

const (
	PhaseValidating Phase = iota
	PhaseStoring
	PhaseCommitting
	PhaseCommitted
	PhaseRollingBack
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseStoring:
		return "storing"
	case PhaseCommitting:
		return "committing"
	case PhaseCommitted:
		return "committed"
	case PhaseRollingBack:
		return "rolling_back"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Coordinator runs mutations that touch both the blob store and the
// database. The database has transactions, the blob store does not, so every
// stored blob is paired with a compensating delete that runs if the mutation
// does not commit.
type Coordinator struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   blobstore.Store
	orphans orphans.Reporter
	log     logging.Logger
}

func NewCoordinator(db *sql.DB, repos repomanager.RepositoryManager, store blobstore.Store,
	reporter orphans.Reporter, log logging.Logger) *Coordinator {
	return &Coordinator{
		db:      db,
		repos:   repos,
		store:   store,
		orphans: reporter,
		log:     log.With("module", "mutation"),
	}
}

// slot is one file field of a request together with the rules it must pass.
type slot struct {
	label      string
	file       uploads.File
	policy     uploads.Policy
	collection string
}

// mutation tracks one request from validation to completion.
type mutation struct {
	c     *Coordinator
	op    string
	phase Phase

	// stored holds locators written by this request, in write order.
	stored []string
	// obsolete holds locators that become unreferenced once the commit lands.
	obsolete []string
}

func (c *Coordinator) begin(op string) *mutation {
	return &mutation{c: c, op: op, phase: PhaseValidating}
}

func (m *mutation) enter(ctx context.Context, p Phase) {
	m.c.log.Debug(ctx, "mutation phase", "op", m.op, "from", m.phase.String(), "to", p.String())
	m.phase = p
}

// validate screens every slot before anything is stored. Absent optional
// slots are dropped; the remaining ones are returned in order.
func (m *mutation) validate(slots []slot, errs *common.ValidationErrors) []slot {
	var accepted []slot
	for _, s := range slots {
		res := uploads.Validate(s.file, s.policy)
		switch res.Outcome {
		case uploads.Accepted:
			accepted = append(accepted, s)
		case uploads.Rejected:
			errs.Add(res.Message(s.label))
		}
	}
	return accepted
}

// abort ends a mutation that failed validation. Nothing was written.
func (m *mutation) abort(ctx context.Context, err error) error {
	m.enter(ctx, PhaseDone)
	return err
}

// storeAll writes every accepted slot. A failing write compensates the
// blobs already written in this request and returns common.ErrStorage.
func (m *mutation) storeAll(ctx context.Context, slots []slot) ([]models.UploadResult, error) {
	m.enter(ctx, PhaseStoring)

	results := make([]models.UploadResult, 0, len(slots))
	for _, s := range slots {
		res, err := m.put(ctx, s)
		if err != nil {
			m.c.log.Error(ctx, "blob write failed", "op", m.op, "label", s.label, "error", err)
			m.rollback(ctx)
			return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *mutation) put(ctx context.Context, s slot) (models.UploadResult, error) {
	if s.file.Open == nil {
		return models.UploadResult{}, errors.New("upload has no content")
	}
	rc, err := s.file.Open()
	if err != nil {
		return models.UploadResult{}, err
	}
	defer rc.Close()

	head := make([]byte, blobstore.SniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return models.UploadResult{}, err
	}
	head = head[:n]

	size, err := rc.Seek(0, io.SeekEnd)
	if err != nil {
		return models.UploadResult{}, err
	}
	if _, err := rc.Seek(0, io.SeekStart); err != nil {
		return models.UploadResult{}, err
	}

	locator, err := m.c.store.Put(ctx, rc, s.collection, s.file.Ext())
	if err != nil {
		return models.UploadResult{}, err
	}
	m.stored = append(m.stored, locator)

	return models.UploadResult{
		Locator:      locator,
		OriginalName: uploads.SanitizeDisplayName(s.file.Name),
		StoredName:   blobstore.StoredName(locator),
		MimeType:     blobstore.DetectMIME(head, s.file.Name),
		Size:         size,
	}, nil
}

// commit runs fn in one database transaction. If fn or the commit fails the
// transaction is rolled back and the blobs stored by this request are
// deleted. Not-found and validation outcomes are returned as they are; any
// other failure is reported as common.ErrPersistence.
func (m *mutation) commit(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.enter(ctx, PhaseCommitting)

	err := dbx.WithTx(ctx, m.c.db, nil, fn)
	if err != nil {
		m.c.log.Warn(ctx, "mutation not committed", "op", m.op, "error", err)
		m.rollback(ctx)
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	m.enter(ctx, PhaseCommitted)
	m.cleanup(ctx)
	return nil
}

// retire schedules locator for deletion after a successful commit.
func (m *mutation) retire(locators ...string) {
	for _, l := range locators {
		if l != "" {
			m.obsolete = append(m.obsolete, l)
		}
	}
}

// rollback deletes stored blobs newest first. Failures are reported as
// orphans and never replace the error that caused the rollback.
func (m *mutation) rollback(ctx context.Context) {
	m.enter(ctx, PhaseRollingBack)
	for _, l := range slices.Backward(m.stored) {
		m.remove(ctx, l)
	}
	m.stored = nil
	m.enter(ctx, PhaseDone)
}

// cleanup removes blobs the committed state no longer references.
func (m *mutation) cleanup(ctx context.Context) {
	for _, l := range m.obsolete {
		m.remove(ctx, l)
	}
	m.obsolete = nil
	m.enter(ctx, PhaseDone)
}

func (m *mutation) remove(ctx context.Context, locator string) {
	err := m.c.store.Delete(ctx, locator)
	if err == nil {
		return
	}
	m.c.log.Error(ctx, "blob delete failed", "op", m.op, "locator", locator, "error", err)
	o := orphans.Orphan{Locator: locator, Operation: m.op, Cause: err.Error(), At: time.Now().UTC()}
	if rerr := m.c.orphans.Report(ctx, o); rerr != nil {
		m.c.log.Error(ctx, "orphan report failed", "locator", locator, "error", rerr)
	}
}
