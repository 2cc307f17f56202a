package config

import (
	"time"

	"github.com/spf13/viper"
)

type SecurityConfig interface {
	GetCookieSecure() bool
	GetRefreshLeeway() time.Duration
}

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

func (s Security) GetCookieSecure() bool {
	return s.v.GetBool(cookieSecureVar)
}

// GetRefreshLeeway is how close to expiry an access token may get before it is refreshed proactively
func (s Security) GetRefreshLeeway() time.Duration {
	return s.v.GetDuration(refreshLeewayVar)
}
