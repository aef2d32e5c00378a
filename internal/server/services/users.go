package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/cryptox"
	"github.com/dmitrijs2005/enrollportal/internal/dbx"
	"github.com/dmitrijs2005/enrollportal/internal/server/blobstore"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
	"github.com/dmitrijs2005/enrollportal/internal/server/uploads"
)

const (
	MsgEmailRegistered = "Email address is already registered."
	MsgEmailInUse      = "Email is already used by another account."
	MsgPasswordShort   = "Password must be at least 8 characters."

	labelPhoto       = "Profile photo"
	labelResume      = "Resume"
	labelCoverLetter = "Cover letter"
)

const minPasswordLen = 8

// RegistrationInput is a validated registration form plus its three
// mandatory documents.
type RegistrationInput struct {
	Fields      models.ProfileFields
	Password    string
	Photo       uploads.File
	Resume      uploads.File
	CoverLetter uploads.File
}

// ProfileInput is a validated profile form. Each document may be left empty
// to keep the stored one.
type ProfileInput struct {
	Fields      models.ProfileFields
	Photo       uploads.File
	Resume      uploads.File
	CoverLetter uploads.File
}

type UserService struct {
	c *Coordinator
}

func NewUserService(c *Coordinator) *UserService {
	return &UserService{c: c}
}

// Register creates an account. All three documents are mandatory; a taken
// email is a validation error, also when a concurrent registration wins the
// unique index between the check and the insert.
func (s *UserService) Register(ctx context.Context, in RegistrationInput) (*models.User, error) {
	m := s.c.begin("register")
	users := s.c.repos.Users(s.c.db)

	var errs common.ValidationErrors
	if len(in.Password) < minPasswordLen {
		errs.Add(MsgPasswordShort)
	}

	taken, err := users.EmailTaken(ctx, in.Fields.Email, 0)
	if err != nil {
		return nil, m.abort(ctx, fmt.Errorf("%w: %w", common.ErrPersistence, err))
	}
	if taken {
		errs.Add(MsgEmailRegistered)
	}

	accepted := m.validate([]slot{
		{label: labelPhoto, file: in.Photo, policy: uploads.PhotoPolicy, collection: blobstore.CollectionDocuments},
		{label: labelResume, file: in.Resume, policy: uploads.DocumentPolicy, collection: blobstore.CollectionDocuments},
		{label: labelCoverLetter, file: in.CoverLetter, policy: uploads.DocumentPolicy, collection: blobstore.CollectionDocuments},
	}, &errs)
	if err := errs.Err(); err != nil {
		return nil, m.abort(ctx, err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return nil, m.abort(ctx, fmt.Errorf("hash password: %w", err))
	}

	ctx = context.WithoutCancel(ctx)

	stored, err := m.storeAll(ctx, accepted)
	if err != nil {
		return nil, err
	}

	f := in.Fields
	user := &models.User{
		FullName:        f.FullName,
		Email:           f.Email,
		PasswordHash:    hash,
		Phone:           f.Phone,
		Gender:          f.Gender,
		Course:          f.Course,
		Address:         f.Address,
		About:           f.About,
		ProfilePhoto:    &stored[0].Locator,
		ResumeFile:      &stored[1].Locator,
		CoverLetterFile: &stored[2].Locator,
	}

	err = m.commit(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.c.repos.Users(tx).Create(ctx, user)
		if err != nil {
			if errors.Is(err, common.ErrDuplicateEmail) {
				return fmt.Errorf("%w: %w", common.ErrDuplicateEmail, common.ValidationErrors{MsgEmailRegistered})
			}
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.c.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// UpdateProfile rewrites the profile fields and replaces the documents that
// were supplied. Replaced documents are deleted only after the commit.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	m := s.c.begin("update_profile")
	users := s.c.repos.Users(s.c.db)

	current, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, m.abort(ctx, common.ErrorNotFound)
		}
		return nil, m.abort(ctx, fmt.Errorf("%w: %w", common.ErrPersistence, err))
	}

	var errs common.ValidationErrors
	taken, err := users.EmailTaken(ctx, in.Fields.Email, userID)
	if err != nil {
		return nil, m.abort(ctx, fmt.Errorf("%w: %w", common.ErrPersistence, err))
	}
	if taken {
		errs.Add(MsgEmailInUse)
	}

	type docSlot struct {
		slot
		current *string
		target  **string
	}
	var docs models.Documents
	candidates := []docSlot{
		{slot{labelPhoto, in.Photo, uploads.PhotoPolicy.AsOptional(), blobstore.CollectionDocuments}, current.ProfilePhoto, &docs.ProfilePhoto},
		{slot{labelResume, in.Resume, uploads.DocumentPolicy.AsOptional(), blobstore.CollectionDocuments}, current.ResumeFile, &docs.ResumeFile},
		{slot{labelCoverLetter, in.CoverLetter, uploads.DocumentPolicy.AsOptional(), blobstore.CollectionDocuments}, current.CoverLetterFile, &docs.CoverLetterFile},
	}

	var slots []slot
	var replacing []docSlot
	for _, c := range candidates {
		if ok := m.validate([]slot{c.slot}, &errs); len(ok) == 1 {
			slots = append(slots, c.slot)
			replacing = append(replacing, c)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, m.abort(ctx, err)
	}

	ctx = context.WithoutCancel(ctx)

	stored, err := m.storeAll(ctx, slots)
	if err != nil {
		return nil, err
	}
	for i, c := range replacing {
		loc := stored[i].Locator
		*c.target = &loc
		if c.current != nil {
			m.retire(*c.current)
		}
	}

	var updatedAt time.Time
	err = m.commit(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		updatedAt, err = s.c.repos.Users(tx).Update(ctx, userID, in.Fields, docs)
		if errors.Is(err, common.ErrDuplicateEmail) {
			return fmt.Errorf("%w: %w", common.ErrDuplicateEmail, common.ValidationErrors{MsgEmailInUse})
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.UpdatedAt = updatedAt
	f := in.Fields
	updated.FullName, updated.Email, updated.Phone = f.FullName, f.Email, f.Phone
	updated.Gender, updated.Course, updated.Address, updated.About = f.Gender, f.Course, f.Address, f.About
	if docs.ProfilePhoto != nil {
		updated.ProfilePhoto = docs.ProfilePhoto
	}
	if docs.ResumeFile != nil {
		updated.ResumeFile = docs.ResumeFile
	}
	if docs.CoverLetterFile != nil {
		updated.CoverLetterFile = docs.CoverLetterFile
	}

	s.c.log.Info(ctx, "profile updated", "user_id", userID, "documents_replaced", len(stored))
	return &updated, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.c.repos.Users(s.c.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if err := cryptox.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// EmailAvailable reports whether no account uses email yet.
func (s *UserService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	taken, err := s.c.repos.Users(s.c.db).EmailTaken(ctx, email, 0)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.c.repos.Users(s.c.db).GetByID(ctx, id)
}

// ResetPassword sets a new password for the account with email.
func (s *UserService) ResetPassword(ctx context.Context, email, password string) error {
	if len(password) < minPasswordLen {
		return common.ValidationErrors{MsgPasswordShort}
	}

	users := s.c.repos.Users(s.c.db)
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.c.log.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}
