package config

import (
	"strings"

	"github.com/joho/godotenv"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	SecurityConfig
	StoreConfig
	MailConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDevelopment() bool
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Security
	Stores
	Mail
}

// New loads configuration from the environment (and an optional .env file) and validates it.
// A missing signing secret is a ConfigurationError and must abort boot.
func New() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return NewFromViper(v)
}

// NewFromViper builds a Config over an existing viper instance, applying defaults.
func NewFromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	c := mainConfig{
		EnvVars:  EnvVars{v: v},
		Cors:     Cors{v: v},
		Tokens:   Tokens{v: v},
		Security: Security{v: v},
		Stores:   Stores{v: v},
		Mail:     Mail{v: v},
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portEnvVar, "3636")
	v.SetDefault(appNameVar, "Auth Session Server")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "info")

	v.SetDefault(allowedOriginsVar, "http://localhost:5173")

	v.SetDefault(accessTokenExpiryVar, "15m")
	v.SetDefault(refreshTokenExpiryVar, "168h")

	v.SetDefault(saltRoundsVar, 10)
	v.SetDefault(rateLimitVar, 30)
	v.SetDefault(rateLimitBurstVar, 5)

	v.SetDefault(mongoURIVar, "mongodb://localhost:27017")
	v.SetDefault(mongoDatabaseVar, "dev_db")
	v.SetDefault(redisURLVar, "redis://localhost:6379/0")

	v.SetDefault(clientHostVar, "http://localhost:5173")
	v.SetDefault(projectNameVar, "Auth Session Server")
}

func (c mainConfig) validate() error {
	if c.GetAccessTokenSecret() == "" || c.GetRefreshTokenSecret() == "" {
		return errors.Wrap(apperrors.ErrConfiguration, "config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}
	if c.GetAccessTokenExpiry() <= 0 || c.GetRefreshTokenExpiry() <= 0 {
		return errors.Wrap(apperrors.ErrConfiguration, "config: token expiries must be positive")
	}
	if !c.IsDevelopment() && !c.IsMailConfigured() {
		return errors.Wrap(apperrors.ErrConfiguration, "config: EMAIL_API_KEY and RESEND_FROM_EMAIL must be set outside DEV")
	}
	return nil
}
