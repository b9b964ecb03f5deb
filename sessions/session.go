package sessions

import (
	"fmt"
	"time"
)

// MaxUsedRefreshTokens bounds the rotation history kept per session for reuse detection.
// Replays older than this window are not detected.
const MaxUsedRefreshTokens = 5

// Session is the server side state behind a refresh token. Absence of the record is revocation.
type Session struct {
	SessionID         string   `json:"sessionId"`         // Stable across rotations
	UserID            string   `json:"userId"`            // Owning identity
	RefreshToken      string   `json:"refreshToken"`      // The only refresh token currently accepted
	RefreshTokensUsed []string `json:"refreshTokensUsed"` // Rotated tokens, oldest first
	ExpiresAt         int64    `json:"expiresAt"`         // Absolute expiry in epoch milliseconds
}

// Expiry returns ExpiresAt as a time
func (s *Session) Expiry() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// Key is the store key of a single session
func Key(userID, sessionID string) string {
	return fmt.Sprintf("auth:user:%s:session:%s", userID, sessionID)
}

// UserPattern matches every session key of a user
func UserPattern(userID string) string {
	return fmt.Sprintf("auth:user:%s:session:*", userID)
}

// appendBounded appends token and evicts the oldest entries beyond limit.
func appendBounded(used []string, token string, limit int) []string {
	used = append(used, token)
	if len(used) > limit {
		used = append([]string(nil), used[len(used)-limit:]...)
	}
	return used
}
