package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appNameVar       = "APP_NAME"
	envVar           = "ENV"
	logLevelVar      = "LOG_LEVEL"
	apiBaseURLVar    = "API_BASE_URL"
	apiTimeoutVar    = "API_TIMEOUT"
	loginPathVar     = "LOGIN_PATH"
	dashboardPathVar = "DASHBOARD_PATH"
	sessionDBVar     = "SESSION_DB_PATH"
	redisAddrVar     = "SESSION_REDIS_ADDR"
	redisPasswordVar = "SESSION_REDIS_PASSWORD"
	cookieSecureVar  = "COOKIE_SECURE"
	cookieMaxAgeVar  = "COOKIE_MAX_AGE"
	refreshLeewayVar = "REFRESH_LEEWAY"
	webAddrVar       = "WEB_ADDR"
)

// DefaultAPIBaseURL is the local development API.
const DefaultAPIBaseURL = "http://localhost:8000/api"

func setDefaults(v *viper.Viper) {
	v.SetDefault(appNameVar, "CloudHub Session")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "info")
	v.SetDefault(apiBaseURLVar, DefaultAPIBaseURL)
	v.SetDefault(apiTimeoutVar, 10*time.Second)
	v.SetDefault(loginPathVar, "/login")
	v.SetDefault(dashboardPathVar, "/dashboard")
	v.SetDefault(sessionDBVar, defaultSessionDBPath())
	v.SetDefault(redisAddrVar, "")
	v.SetDefault(redisPasswordVar, "")
	v.SetDefault(cookieSecureVar, true)
	v.SetDefault(cookieMaxAgeVar, 7*24*time.Hour)
	v.SetDefault(refreshLeewayVar, 30*time.Second)
	v.SetDefault(webAddrVar, ":3000")
}

func defaultSessionDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cloudhub", "session.db")
	}
	return filepath.Join(home, ".cloudhub", "session.db")
}

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.v.GetString(envVar))
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelVar)
}

type API struct {
	v *viper.Viper
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the API root every relative request path is joined to,
// without a trailing slash (e.g. "http://localhost:8000/api")
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.v.GetString(apiBaseURLVar), "/")
}

func (a API) GetAPITimeout() time.Duration {
	return a.v.GetDuration(apiTimeoutVar)
}

func (a API) GetLoginPath() string {
	return a.v.GetString(loginPathVar)
}

func (a API) GetDashboardPath() string {
	return a.v.GetString(dashboardPathVar)
}

// GetWebAddr is the listen address of the server-rendered pages
func (a API) GetWebAddr() string {
	return a.v.GetString(webAddrVar)
}
