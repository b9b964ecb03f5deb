package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	accessTokenSecretVar  = "ACCESS_TOKEN_SECRET"
	refreshTokenSecretVar = "REFRESH_TOKEN_SECRET"
	accessTokenExpiryVar  = "ACCESS_TOKEN_EXPIRES_IN"
	refreshTokenExpiryVar = "REFRESH_TOKEN_EXPIRES_IN"
)

type TokenConfig interface {
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetOpaqueTokenExpiry() time.Duration
}

type Tokens struct {
	v *viper.Viper
}

var _ TokenConfig = Tokens{}

func (t Tokens) GetAccessTokenSecret() string {
	return t.v.GetString(accessTokenSecretVar)
}

func (t Tokens) GetRefreshTokenSecret() string {
	return t.v.GetString(refreshTokenSecretVar)
}

func (t Tokens) GetAccessTokenExpiry() time.Duration {
	return t.v.GetDuration(accessTokenExpiryVar)
}

func (t Tokens) GetRefreshTokenExpiry() time.Duration {
	return t.v.GetDuration(refreshTokenExpiryVar)
}

func (Tokens) GetOpaqueTokenExpiry() time.Duration {
	return 24 * time.Hour
}
