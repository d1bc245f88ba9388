package appstore

import "time"

// Config holds App Store verification settings. The receipt endpoints work
// with SharedSecret alone; the Server API additionally needs the key fields.
type Config struct {
	SharedSecret     string        `env:"APPSTORE_SHARED_SECRET"`                                                      // SharedSecret is the app-specific shared secret for verifyReceipt.
	VerifyURL        string        `env:"APPSTORE_VERIFY_URL" envDefault:"https://buy.itunes.apple.com/verifyReceipt"` // VerifyURL is the production verifyReceipt endpoint.
	SandboxVerifyURL string        `env:"APPSTORE_SANDBOX_VERIFY_URL" envDefault:"https://sandbox.itunes.apple.com/verifyReceipt"`
	APIURL           string        `env:"APPSTORE_API_URL" envDefault:"https://api.storekit.itunes.apple.com"` // APIURL is the App Store Server API base URL.
	SandboxAPIURL    string        `env:"APPSTORE_SANDBOX_API_URL" envDefault:"https://api.storekit-sandbox.itunes.apple.com"`
	BundleID         string        `env:"APPSTORE_BUNDLE_ID"`
	KeyID            string        `env:"APPSTORE_KEY_ID"`
	IssuerID         string        `env:"APPSTORE_ISSUER_ID"`
	PrivateKey       string        `env:"APPSTORE_PRIVATE_KEY"`      // PrivateKey is the PEM encoded .p8 key. Takes precedence over PrivateKeyFile.
	PrivateKeyFile   string        `env:"APPSTORE_PRIVATE_KEY_FILE"` // PrivateKeyFile points to the .p8 key.
	TokenTTL         time.Duration `env:"APPSTORE_TOKEN_TTL" envDefault:"19m"`

	// RootCertificates holds PEM root certificates (Apple Root CA - G3) that
	// signed Server API payloads must chain to. Empty skips chain checks.
	RootCertificates     string `env:"APPSTORE_ROOT_CERTIFICATES"`
	RootCertificatesFile string `env:"APPSTORE_ROOT_CERTIFICATES_FILE"`
}

// ServerAPIEnabled reports whether Server API credentials are configured.
func (c Config) ServerAPIEnabled() bool {
	return c.KeyID != "" && c.IssuerID != "" && c.BundleID != "" && (c.PrivateKey != "" || c.PrivateKeyFile != "")
}
