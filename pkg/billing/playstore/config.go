package playstore

// Config holds Google Play Developer API settings.
type Config struct {
	PackageName     string `env:"PLAYSTORE_PACKAGE_NAME" envDefault:"com.unicef.cboard"` // PackageName is the Android application id.
	CredentialsFile string `env:"PLAYSTORE_CREDENTIALS_FILE"`                            // CredentialsFile points to a service account JSON key. Empty uses application default credentials.
	CredentialsJSON string `env:"PLAYSTORE_CREDENTIALS_JSON"`                            // CredentialsJSON is the service account key inline. Takes precedence over CredentialsFile.
	Endpoint        string `env:"PLAYSTORE_ENDPOINT"`                                    // Endpoint overrides the API base URL.
}
