package users

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Status is the lifecycle state of an account. Accounts are never hard deleted.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusPending     Status = "PENDING"
	StatusDeactivated Status = "DEACTIVATED"
	StatusBanned      Status = "BANNED"
	StatusDeleted     Status = "DELETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusDeactivated, StatusBanned, StatusDeleted:
		return true
	}
	return false
}

// RoleType is carried in issued tokens
type RoleType string

const (
	RoleUser  RoleType = "USER"
	RoleAdmin RoleType = "ADMIN"
)

type Address struct {
	Label      string `json:"label,omitempty" bson:"label,omitempty"`
	Street     string `json:"street" bson:"street"`
	City       string `json:"city" bson:"city"`
	PostalCode string `json:"postalCode,omitempty" bson:"postalCode,omitempty"`
	Country    string `json:"country" bson:"country"`
	IsDefault  bool   `json:"isDefault,omitempty" bson:"isDefault,omitempty"`
}

type User struct {
	ID           string    `json:"id" bson:"_id"`                        // Unique identifier for the user
	Name         string    `json:"name" bson:"name"`                     // Display name
	Email        string    `json:"email" bson:"email"`                   // Lower-cased, unique
	Phone        string    `json:"phone,omitempty" bson:"phone,omitempty"` // Optional, unique when present
	PasswordHash string    `json:"-" bson:"password"`                    // Hashed password - never serialize
	Role         RoleType  `json:"role" bson:"role"`
	Status       Status    `json:"status" bson:"status"`
	IsVerified   bool      `json:"isVerified" bson:"isVerified"`
	Addresses    []Address `json:"addresses" bson:"addresses"`
	Version      int64     `json:"version" bson:"version"` // Optimistic lock, incremented on every update
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// SafeUser is the client facing view of a User. It has no password field at all.
type SafeUser struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Role       RoleType  `json:"role"`
	Status     Status    `json:"status"`
	IsVerified bool      `json:"isVerified"`
	Addresses  []Address `json:"addresses"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Safe maps the record to its client facing view
func (u *User) Safe() SafeUser {
	addresses := u.Addresses
	if addresses == nil {
		addresses = []Address{}
	}
	return SafeUser{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		Role:       u.Role,
		Status:     u.Status,
		IsVerified: u.IsVerified,
		Addresses:  addresses,
		Version:    u.Version,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// Clone returns a deep copy so callers never share mutable state with a store
func (u *User) Clone() *User {
	c := *u
	if u.Addresses != nil {
		c.Addresses = append([]Address(nil), u.Addresses...)
	}
	return &c
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// NormalizeEmail lower-cases and trims an address before any lookup or write
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
