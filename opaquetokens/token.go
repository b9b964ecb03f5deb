package opaquetokens

import "time"

// Type distinguishes the email flows an opaque token can authorise
type Type string

const (
	TypeEmailVerification Type = "EMAIL_VERIFICATION"
	TypeResetPassword     Type = "RESET_PASSWORD"
)

const (
	// tokenBytes is 256 bits of entropy, hex encoded into 64 characters
	tokenBytes    = 32
	DefaultExpiry = 24 * time.Hour
)

// Token is a single-use capability pointer sent by email. It carries no payload of its own;
// UserID and Email are a snapshot taken when the token was created.
type Token struct {
	Token     string    `json:"token" bson:"token"`
	UserID    string    `json:"userId" bson:"userId"`
	Email     string    `json:"email" bson:"email"`
	Type      Type      `json:"type" bson:"type"`
	IsUsed    bool      `json:"isUsed" bson:"isUsed"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

func (t Type) Valid() bool {
	return t == TypeEmailVerification || t == TypeResetPassword
}
