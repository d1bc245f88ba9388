package paypal

import "time"

// Config holds PayPal REST API settings.
type Config struct {
	BaseURL       string        `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.sandbox.paypal.com"` // BaseURL is the REST API host, without the /v1 suffix.
	ClientID      string        `env:"PAYPAL_CLIENT_ID"`
	ClientSecret  string        `env:"PAYPAL_CLIENT_SECRET"`
	PlansPageSize int           `env:"PAYPAL_PLANS_PAGE_SIZE" envDefault:"20"`
	Timeout       time.Duration `env:"PAYPAL_HTTP_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether client credentials are configured.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
