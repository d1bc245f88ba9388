package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/cboard-org/cboard-billing/pkg/ratelimiter"
)

// Storage drivers.
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Config is the service configuration read from the environment.
type Config struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	Name            string        `env:"APP_NAME" envDefault:"cboard-billing"`
	StorageDriver   string        `env:"STORAGE_DRIVER" envDefault:"mongo"` // mongo or memory; memory is for local runs only
	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"cboard.io"`
	ProviderTimeout time.Duration `env:"BILLING_PROVIDER_TIMEOUT" envDefault:"15s"`
	RefreshOnRead   bool          `env:"REFRESH_ON_READ" envDefault:"true"`
	RefreshCron     string        `env:"REFRESH_CRON" envDefault:"0 */6 * * *"` // Empty disables the job
	SyncCron        string        `env:"SYNC_CRON" envDefault:"30 3 * * *"`     // Empty disables the job
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	ReadyTimeout    time.Duration `env:"READY_TIMEOUT" envDefault:"2s"`

	RateLimitEnabled bool               `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimit        ratelimiter.Config `envPrefix:"RATE_LIMIT_"`
}

// Validate checks values the env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageMongo, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.StorageDriver))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: BILLING_PROVIDER_TIMEOUT must be positive", ErrInvalidConfig))
	}
	if c.RateLimitEnabled && (c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, fmt.Errorf("%w: rate limit needs a positive limit and window", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}
