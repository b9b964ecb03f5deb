package config

import "github.com/spf13/viper"

const (
	emailAPIKeyVar  = "EMAIL_API_KEY"
	fromEmailVar    = "RESEND_FROM_EMAIL"
	clientHostVar   = "CLIENT_HOST"
	projectNameVar  = "PROJECT_NAME"
	mailBaseURLVar  = "EMAIL_API_URL"
	defaultMailBase = "https://api.resend.com"
)

type MailConfig interface {
	GetEmailAPIKey() string
	GetEmailAPIURL() string
	GetFromEmail() string
	GetClientHost() string
	GetProjectName() string
	IsMailConfigured() bool
}

type Mail struct {
	v *viper.Viper
}

var _ MailConfig = Mail{}

func (m Mail) GetEmailAPIKey() string {
	return m.v.GetString(emailAPIKeyVar)
}

func (m Mail) GetEmailAPIURL() string {
	if url := m.v.GetString(mailBaseURLVar); url != "" {
		return url
	}
	return defaultMailBase
}

func (m Mail) GetFromEmail() string {
	return m.v.GetString(fromEmailVar)
}

// GetClientHost is the front-end origin used to build verification and reset links
func (m Mail) GetClientHost() string {
	return m.v.GetString(clientHostVar)
}

func (m Mail) GetProjectName() string {
	return m.v.GetString(projectNameVar)
}

func (m Mail) IsMailConfigured() bool {
	return m.GetEmailAPIKey() != "" && m.GetFromEmail() != "" && m.GetClientHost() != ""
}
