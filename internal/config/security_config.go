package config

import "time"

type SecurityConfig interface {
	GetSessionCheckTimeout() time.Duration
	GetLoginRateLimit() int
	GetLoginRateBurst() int
}

type Security struct {
	SessionCheckTimeout time.Duration `env:"SESSION_CHECK_TIMEOUT" envDefault:"3s"`
	LoginRateLimit      int           `env:"LOGIN_RATE_LIMIT" envDefault:"5"` // attempts per minute
	LoginRateBurst      int           `env:"LOGIN_RATE_BURST" envDefault:"5"`
}

var _ SecurityConfig = Security{}

func (s Security) GetSessionCheckTimeout() time.Duration {
	return s.SessionCheckTimeout
}

func (s Security) GetLoginRateLimit() int {
	return s.LoginRateLimit
}

func (s Security) GetLoginRateBurst() int {
	return s.LoginRateBurst
}
