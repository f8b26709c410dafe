package config

import "time"

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

// API holds the backend connection settings.
type API struct {
	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return a.APIBaseURL
}

func (a API) GetAPITimeout() time.Duration {
	return a.APITimeout
}
