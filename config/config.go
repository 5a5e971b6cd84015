// Package config defines the bridge's environment-loaded configuration,
// analogous to Mak-1911-flynn/internal/config: a typed struct decoded with
// env-var tags and sane defaults, so the core packages never touch the
// environment directly.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full set of configuration inputs the core depends on, plus
// the process-level wiring knobs (listen address, upstream credentials,
// store backend selection) the core itself is agnostic to.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	UpstreamBaseURL string        `env:"UPSTREAM_BASE_URL,required"`
	UpstreamAPIKey  string        `env:"UPSTREAM_API_KEY,required"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	MaxTokensBuffer  int           `env:"MAX_TOKENS_BUFFER" envDefault:"512"`
	DegradeFields    []string      `env:"DEGRADE_FIELDS" envSeparator:"," envDefault:"verbosity,parallel_tool_calls"`
	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryMaxElapsed  time.Duration `env:"RETRY_MAX_ELAPSED" envDefault:"30s"`
	RetryBurstRPS    float64       `env:"RETRY_BURST_RPS" envDefault:"10"`

	StateEnabled  bool          `env:"STATE_ENABLED" envDefault:"true"`
	StateBackend  string        `env:"STATE_BACKEND" envDefault:"memory"` // memory | redis | mongo
	StateTTL      time.Duration `env:"STATE_TTL" envDefault:"24h"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	MongoURI      string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"responses_bridge"`

	ModelAliasMap map[string]string `env:"MODEL_ALIAS_MAP" envSeparator:"," envKeyValSeparator:"="`
}

// DegradeFieldSet returns DegradeFields as a lookup set for upstream.Config.
func (c Config) DegradeFieldSet() map[string]bool {
	set := make(map[string]bool, len(c.DegradeFields))
	for _, f := range c.DegradeFields {
		set[f] = true
	}
	return set
}

// Load reads Config from the process environment, applying defaults and
// failing if a required variable (the upstream base URL and API key) is
// unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
