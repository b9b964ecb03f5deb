package users

import (
	"context"
	"errors"
)

// ErrNotFound is returned by UserRepo lookups that match nothing
var ErrNotFound = errors.New("user not found")

// Patch lists the fields an update sets; nil fields are left unchanged.
type Patch struct {
	Name         *string
	Email        *string
	Phone        *string
	PasswordHash *string
	Status       *Status
	IsVerified   *bool
	Addresses    *[]Address
}

// UserRepo defines identity persistence.
type UserRepo interface {
	// FindByID returns the user, optionally restricted to the given statuses, or ErrNotFound
	FindByID(ctx context.Context, id string, statuses ...Status) (*User, error)

	// FindByEmail returns the user owning a normalised email, or ErrNotFound
	FindByEmail(ctx context.Context, email string, statuses ...Status) (*User, error)

	// FindByPhone returns the user owning phone, or ErrNotFound
	FindByPhone(ctx context.Context, phone string, statuses ...Status) (*User, error)

	// Create inserts the user, assigning ID and version 1. A duplicate email or phone
	// fails with EMAIL_ALREADY_EXISTS / PHONE_ALREADY_EXISTS.
	Create(ctx context.Context, user *User) error

	// Update applies patch only if the stored version still equals version, then increments it.
	// A version mismatch fails with USER_DATA_MODIFIED_CONCURRENTLY, a missing id with ErrNotFound.
	Update(ctx context.Context, id string, patch Patch, version int64) (*User, error)
}
