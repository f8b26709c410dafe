package config

import "time"

const (
	IdentityProviderMemory = "memory"
	IdentityProviderOAuth  = "oauth"
)

type IdentityConfig interface {
	GetIdentityProvider() string
	GetIdentityURL() string
	GetIdentityPublicKey() string
	GetIdentityTokenSecret() string
	GetIdentityAutoConfirm() bool
	GetIdentityTokenTTL() time.Duration
}

// Identity configures the session source. The URL and public key defaults are
// placeholders for local development only.
type Identity struct {
	IdentityProvider    string        `env:"IDENTITY_PROVIDER" envDefault:"memory"`
	IdentityURL         string        `env:"IDENTITY_URL" envDefault:"https://your-project.supabase.co"`
	IdentityPublicKey   string        `env:"IDENTITY_PUBLIC_KEY" envDefault:"your-anon-key"`
	IdentityTokenSecret string        `env:"IDENTITY_TOKEN_SECRET" envDefault:"local-dev-secret"`
	IdentityAutoConfirm bool          `env:"IDENTITY_AUTO_CONFIRM" envDefault:"false"`
	IdentityTokenTTL    time.Duration `env:"IDENTITY_TOKEN_TTL" envDefault:"1h"`
}

var _ IdentityConfig = Identity{}

func (i Identity) GetIdentityProvider() string {
	return i.IdentityProvider
}

func (i Identity) GetIdentityURL() string {
	return i.IdentityURL
}

func (i Identity) GetIdentityPublicKey() string {
	return i.IdentityPublicKey
}

func (i Identity) GetIdentityTokenSecret() string {
	return i.IdentityTokenSecret
}

func (i Identity) GetIdentityAutoConfirm() bool {
	return i.IdentityAutoConfirm
}

func (i Identity) GetIdentityTokenTTL() time.Duration {
	return i.IdentityTokenTTL
}
