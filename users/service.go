package users

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/internal/utils"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const dummyPassword = "not-a-real-password"

// CreateParams holds the fields needed to register a new identity
type CreateParams struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     RoleType
}

// Service owns identity mutations. Every write carries the version it read, so a
// concurrent writer that got there first turns the write into a conflict instead of an overwrite.
type Service struct {
	repo        UserRepo
	hasher      Hasher
	dummyDigest string // Compared against when no identity matches, so a miss costs as much as a hit
	nowFunc     func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = nowFunc
	}
}

func NewService(repo UserRepo, hasher Hasher, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] user repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewService] hasher is required")
	}
	s := &Service{
		repo:    repo,
		hasher:  hasher,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	digest, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, errors.Wrap(err, "[NewService] dummy digest")
	}
	s.dummyDigest = digest
	return s, nil
}

// Create registers an ACTIVE, unverified identity.
func (s *Service) Create(ctx context.Context, params CreateParams) (*User, error) {
	email := NormalizeEmail(params.Email)
	phone := strings.TrimSpace(params.Phone)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ensureEmailFree(gctx, email, "")
	})
	if phone != "" {
		g.Go(func() error {
			return s.ensurePhoneFree(gctx, phone, "")
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Create] hash")
	}

	role := params.Role
	if role == "" {
		role = RoleUser
	}
	now := s.nowFunc()
	user := &User{
		Name:         strings.TrimSpace(params.Name),
		Email:        email,
		Phone:        phone,
		PasswordHash: digest,
		Role:         role,
		Status:       StatusActive,
		IsVerified:   false,
		Addresses:    []Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrEmailAlreadyExists) || errors.Is(err, apperrors.ErrPhoneAlreadyExists) {
			return nil, err
		}
		return nil, errors.Wrap(err, "[Service.Create] insert")
	}
	return user, nil
}

// VerifyCredentials returns the ACTIVE identity owning email if password matches its digest.
// Every failure is reported as INVALID_CREDENTIALS.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email), StatusActive)
	if errors.Is(err, ErrNotFound) {
		user = nil
	} else if err != nil {
		return nil, errors.Wrap(err, "[Service.VerifyCredentials] find")
	}
	if user == nil || user.PasswordHash == "" {
		s.hasher.Compare(password, s.dummyDigest)
		return nil, apperrors.ErrInvalidCredentials
	}
	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// GetByID returns the client facing view of an ACTIVE identity
func (s *Service) GetByID(ctx context.Context, id string) (SafeUser, error) {
	user, err := s.findActive(ctx, id)
	if err != nil {
		return SafeUser{}, err
	}
	return user.Safe(), nil
}

// FindActive returns the ACTIVE identity or USER_NOT_FOUND
func (s *Service) FindActive(ctx context.Context, id string) (*User, error) {
	return s.findActive(ctx, id)
}

// FindByEmail looks up any identity by email. The second return is false when none exists.
func (s *Service) FindByEmail(ctx context.Context, email string, statuses ...Status) (*User, bool, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email), statuses...)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "[Service.FindByEmail]")
	}
	return user, true, nil
}

// ChangeEmail moves an ACTIVE identity to newEmail. Changing to the address the identity
// already owns is a no-op.
func (s *Service) ChangeEmail(ctx context.Context, id, newEmail string) (*User, error) {
	email := NormalizeEmail(newEmail)

	var current *User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.findActive(gctx, id)
		current = u
		return err
	})
	g.Go(func() error {
		return s.ensureEmailFree(gctx, email, id)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if current.Email == email {
		return current, nil
	}
	return s.update(ctx, current, Patch{Email: &email}, "ChangeEmail")
}

// ChangePhone moves an ACTIVE identity to newPhone, with the same rules as ChangeEmail
func (s *Service) ChangePhone(ctx context.Context, id, newPhone string) (*User, error) {
	phone := strings.TrimSpace(newPhone)
	if phone == "" {
		return nil, &apperrors.ValidationError{Fields: []apperrors.FieldError{{Field: "phone", Message: "phone is required"}}}
	}

	var current *User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.findActive(gctx, id)
		current = u
		return err
	})
	g.Go(func() error {
		return s.ensurePhoneFree(gctx, phone, id)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if current.Phone == phone {
		return current, nil
	}
	return s.update(ctx, current, Patch{Phone: &phone}, "ChangePhone")
}

// ChangePassword replaces the digest after checking oldPassword against the stored one
func (s *Service) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) (*User, error) {
	current, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.PasswordHash == "" || !s.hasher.Compare(oldPassword, current.PasswordHash) {
		return nil, apperrors.ErrInvalidOldPassword
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ChangePassword] hash")
	}
	return s.update(ctx, current, Patch{PasswordHash: &digest}, "ChangePassword")
}

// ResetPassword replaces the digest without the old password. Callers must have proven
// ownership some other way, normally by consuming a reset token.
func (s *Service) ResetPassword(ctx context.Context, id, newPassword string) (*User, error) {
	current, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ResetPassword] hash")
	}
	return s.update(ctx, current, Patch{PasswordHash: &digest}, "ResetPassword")
}

// VerifyAccount sets isVerified using the version it reads. A concurrent write between the read
// and the write fails with USER_DATA_MODIFIED_CONCURRENTLY; there is no retry.
func (s *Service) VerifyAccount(ctx context.Context, id string, isVerified bool) (*User, error) {
	current, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, current, Patch{IsVerified: utils.Ptr(isVerified)}, "VerifyAccount")
}

// UpdateStatus is the only way an identity leaves ACTIVE; records are never removed.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*User, error) {
	if !status.Valid() {
		return nil, &apperrors.ValidationError{Fields: []apperrors.FieldError{{Field: "status", Message: "unknown status"}}}
	}
	current, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.UpdateStatus] find")
	}
	return s.update(ctx, current, Patch{Status: &status}, "UpdateStatus")
}

func (s *Service) UpdateProfile(ctx context.Context, id, name string) (*User, error) {
	current, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	return s.update(ctx, current, Patch{Name: &name}, "UpdateProfile")
}

func (s *Service) update(ctx context.Context, current *User, patch Patch, op string) (*User, error) {
	updated, err := s.repo.Update(ctx, current.ID, patch, current.Version)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, ErrNotFound):
		return nil, apperrors.ErrUserNotFound
	case errors.Is(err, apperrors.ErrDataModifiedConcurrently),
		errors.Is(err, apperrors.ErrEmailAlreadyExists),
		errors.Is(err, apperrors.ErrPhoneAlreadyExists):
		return nil, err
	default:
		return nil, errors.Wrapf(err, "[Service.%s] update", op)
	}
}

func (s *Service) findActive(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id, StatusActive)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.findActive]")
	}
	return user, nil
}

// ensureEmailFree fails unless email is unowned or owned by selfID
func (s *Service) ensureEmailFree(ctx context.Context, email, selfID string) error {
	owner, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Service.ensureEmailFree]")
	}
	if selfID != "" && owner.ID == selfID {
		return nil
	}
	return apperrors.ErrEmailAlreadyExists
}

func (s *Service) ensurePhoneFree(ctx context.Context, phone, selfID string) error {
	owner, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Service.ensurePhoneFree]")
	}
	if selfID != "" && owner.ID == selfID {
		return nil
	}
	return apperrors.ErrPhoneAlreadyExists
}
