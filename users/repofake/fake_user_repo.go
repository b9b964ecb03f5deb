package repofake

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo keeps users in memory and enforces the same uniqueness and version
// rules as the Mongo repository. Stored values are copied in and out.
type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	phoneIds map[string]string // phone to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
		phoneIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) FindByID(_ context.Context, id string, statuses ...users.Status) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.lookup(id, statuses)
}

func (ur *FakeUserRepo) FindByEmail(_ context.Context, email string, statuses ...users.Status) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.lookup(id, statuses)
}

func (ur *FakeUserRepo) FindByPhone(_ context.Context, phone string, statuses ...users.Status) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.phoneIds[phone]
	if !ok || phone == "" {
		return nil, users.ErrNotFound
	}
	return ur.lookup(id, statuses)
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIds[user.Email]; ok {
		return apperrors.ErrEmailAlreadyExists
	}
	if _, ok := ur.phoneIds[user.Phone]; ok && user.Phone != "" {
		return apperrors.ErrPhoneAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Version = 1
	ur.store(user.Clone())
	return nil
}

func (ur *FakeUserRepo) Update(_ context.Context, id string, patch users.Patch, version int64) (*users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	if existing.Version != version {
		return nil, apperrors.ErrDataModifiedConcurrently
	}
	if patch.Email != nil {
		if owner, ok := ur.emailIds[*patch.Email]; ok && owner != id {
			return nil, apperrors.ErrEmailAlreadyExists
		}
	}
	if patch.Phone != nil {
		if owner, ok := ur.phoneIds[*patch.Phone]; ok && owner != id {
			return nil, apperrors.ErrPhoneAlreadyExists
		}
	}

	updated := existing.Clone()
	applyPatch(updated, patch)
	updated.Version++
	updated.UpdatedAt = time.Now()

	delete(ur.emailIds, existing.Email)
	delete(ur.phoneIds, existing.Phone)
	ur.store(updated)
	return updated.Clone(), nil
}

// Put seeds a user as-is, bypassing uniqueness checks and versioning
func (ur *FakeUserRepo) Put(user *users.User) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.store(user.Clone())
}

func (ur *FakeUserRepo) Len() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return len(ur.users)
}

func (ur *FakeUserRepo) lookup(id string, statuses []users.Status) (*users.User, error) {
	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	if len(statuses) > 0 && !slices.Contains(statuses, user.Status) {
		return nil, users.ErrNotFound
	}
	return user.Clone(), nil
}

func (ur *FakeUserRepo) store(user *users.User) {
	ur.users[user.ID] = user
	ur.emailIds[user.Email] = user.ID
	if user.Phone != "" {
		ur.phoneIds[user.Phone] = user.ID
	}
}

func applyPatch(u *users.User, patch users.Patch) {
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Status != nil {
		u.Status = *patch.Status
	}
	if patch.IsVerified != nil {
		u.IsVerified = *patch.IsVerified
	}
	if patch.Addresses != nil {
		u.Addresses = append([]users.Address(nil), (*patch.Addresses)...)
	}
}
