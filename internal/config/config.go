package config

import (
	"os"
	"strconv"
)

// Config carries everything shipd reads from the environment. A .env file is
// loaded by main before this is resolved, so both sources end up here.
type Config struct {
	Port    string
	DataDir string

	// Fleet defaults seeded into the deployment registry on first boot.
	Image         string
	SourcePath    string
	DomainSuffix  string
	PostgresImage string

	// Legacy shared secret migrated into the token store as the first admin
	// token. Empty means no bootstrap credential.
	AdminToken string

	// Cron expression for the scheduled retention sweep. Empty disables it.
	RetentionSchedule string

	Archive ArchiveConfig
}

// ArchiveConfig holds SFTP credentials for remote archival. Archival is only
// attempted when Host is set.
type ArchiveConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	PrivateKeyFile string
	RemoteDir      string
}

func (a ArchiveConfig) Configured() bool {
	return a.Host != ""
}

// Load resolves the configuration from environment variables.
func Load() Config {
	return Config{
		Port:              getenv("PORT", "8000"),
		DataDir:           getenv("SHIPD_DATA_DIR", "/var/lib/shipd"),
		Image:             getenv("SHIPD_IMAGE", "ship-app"),
		SourcePath:        getenv("SHIPD_SOURCE_PATH", "/opt/ship/source"),
		DomainSuffix:      getenv("SHIPD_DOMAIN_SUFFIX", "example.com"),
		PostgresImage:     getenv("SHIPD_POSTGRES_IMAGE", "postgres:16-alpine"),
		AdminToken:        os.Getenv("SHIPD_ADMIN_TOKEN"),
		RetentionSchedule: os.Getenv("SHIPD_RETENTION_SCHEDULE"),
		Archive: ArchiveConfig{
			Host:           os.Getenv("SHIPD_ARCHIVE_HOST"),
			Port:           getenvInt("SHIPD_ARCHIVE_PORT", 22),
			User:           os.Getenv("SHIPD_ARCHIVE_USER"),
			Password:       os.Getenv("SHIPD_ARCHIVE_PASSWORD"),
			PrivateKeyFile: os.Getenv("SHIPD_ARCHIVE_KEY_FILE"),
			RemoteDir:      getenv("SHIPD_ARCHIVE_DIR", "shipd-archive"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
