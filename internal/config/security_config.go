package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	saltRoundsVar     = "SALT_ROUNDS"
	rateLimitVar      = "RATE_LIMIT_PER_MINUTE"
	rateLimitBurstVar = "RATE_LIMIT_BURST"
	trustedProxiesVar = "TRUSTED_PROXIES"
)

type SecurityConfig interface {
	GetSaltRounds() int
	GetRateLimitPerMinute() int
	GetRateLimitBurst() int
	GetEnableRateLimiting() bool
	GetTrustedProxies() []string
}

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

// GetSaltRounds is the bcrypt cost
func (s Security) GetSaltRounds() int {
	return s.v.GetInt(saltRoundsVar)
}

func (s Security) GetRateLimitPerMinute() int {
	return s.v.GetInt(rateLimitVar)
}

func (s Security) GetRateLimitBurst() int {
	return s.v.GetInt(rateLimitBurstVar)
}

func (s Security) GetEnableRateLimiting() bool {
	return s.GetRateLimitPerMinute() > 0
}

// GetTrustedProxies parses the comma separated TRUSTED_PROXIES list of IPs or CIDRs. Only
// connections from these addresses may set X-Forwarded-For.
func (s Security) GetTrustedProxies() []string {
	var proxies []string
	for _, p := range strings.Split(s.v.GetString(trustedProxiesVar), ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}
