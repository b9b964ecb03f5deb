package opaquetokens

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no token matches the lookup
var ErrNotFound = errors.New("opaque token not found")

// Repo defines the durable storage for opaque tokens.
type Repo interface {
	// Create stores a new unused token. Token values are unique
	Create(ctx context.Context, token *Token) error

	// FindByToken returns the token of the given type or ErrNotFound
	FindByToken(ctx context.Context, token string, tokenType Type) (*Token, error)

	// MarkUsed flips isUsed from false to true in a single conditional write.
	// It reports false when the token was already used (or does not exist).
	MarkUsed(ctx context.Context, token string) (bool, error)
}
