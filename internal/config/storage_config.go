package config

import (
	"time"

	"github.com/spf13/viper"
)

type StorageConfig interface {
	GetSessionDBPath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetCookieMaxAge() time.Duration
}

type Storage struct {
	v *viper.Viper
}

var _ StorageConfig = Storage{}

func (s Storage) GetSessionDBPath() string {
	return s.v.GetString(sessionDBVar)
}

// GetRedisAddr is empty when the shared redis backend is disabled
func (s Storage) GetRedisAddr() string {
	return s.v.GetString(redisAddrVar)
}

func (s Storage) GetRedisPassword() string {
	return s.v.GetString(redisPasswordVar)
}

func (s Storage) GetCookieMaxAge() time.Duration {
	return s.v.GetDuration(cookieMaxAgeVar)
}
