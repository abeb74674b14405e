package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	BaseURL   string
	Timezone  *time.Location
	AdminDNIs []string
	SecretKey string

	// SecureCookies marks the session cookie Secure; on by default.
	SecureCookies bool

	RolloverSchedule       string
	StreakWarningSchedule  string
	ReminderLead           time.Duration
	SessionCleanupInterval time.Duration

	S3     S3Config
	Push   PushConfig
	Vercel VercelConfig
	Backup BackupConfig
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
}

// Enabled reports whether enough S3 settings are present to build a client.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

func (c PushConfig) Enabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

type VercelConfig struct {
	Token   string
	Project string
	APIURL  string
}

type BackupConfig struct {
	Passphrase    string
	Schedule      string
	RetentionDays int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	port := getEnv("CHOREQUEST_PORT", "8080")
	if _, err := strconv.Atoi(port); err != nil {
		return Config{}, fmt.Errorf("invalid CHOREQUEST_PORT %q", port)
	}

	tzName := getEnv("CHOREQUEST_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", tzName, err)
	}

	return Config{
		Port:      port,
		DBPath:    getEnv("CHOREQUEST_DB_PATH", "chorequest.db"),
		LogLevel:  getEnv("CHOREQUEST_LOG_LEVEL", "info"),
		LogFormat: getEnv("CHOREQUEST_LOG_FORMAT", "text"),
		BaseURL:   getEnv("CHOREQUEST_BASE_URL", "http://localhost:"+port),
		Timezone:  loc,
		AdminDNIs: getEnvList("CHOREQUEST_ADMIN_DNIS"),
		SecretKey: getEnv("CHOREQUEST_SECRET_KEY", ""),

		SecureCookies: getEnvBool("CHOREQUEST_SECURE_COOKIES", true),

		RolloverSchedule:       getEnv("CHOREQUEST_ROLLOVER_SCHEDULE", "0 */5 * * * *"),
		StreakWarningSchedule:  getEnv("CHOREQUEST_STREAK_WARNING_SCHEDULE", "0 0 20 * * *"),
		ReminderLead:           getEnvDuration("CHOREQUEST_REMINDER_LEAD", 5*time.Minute),
		SessionCleanupInterval: getEnvDuration("CHOREQUEST_SESSION_CLEANUP_INTERVAL", time.Hour),

		S3: S3Config{
			Endpoint:  getEnv("CHOREQUEST_S3_ENDPOINT", ""),
			Region:    getEnv("CHOREQUEST_S3_REGION", "auto"),
			Bucket:    getEnv("CHOREQUEST_S3_BUCKET", "evidencias"),
			AccessKey: getEnv("CHOREQUEST_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("CHOREQUEST_S3_SECRET_KEY", ""),
			PublicURL: strings.TrimRight(getEnv("CHOREQUEST_S3_PUBLIC_URL", ""), "/"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("CHOREQUEST_VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("CHOREQUEST_VAPID_PRIVATE_KEY", ""),
			Subscriber:      getEnv("CHOREQUEST_VAPID_SUBSCRIBER", "mailto:noreply@chorequest.app"),
		},
		Vercel: VercelConfig{
			Token:   getEnv("CHOREQUEST_VERCEL_TOKEN", ""),
			Project: getEnv("CHOREQUEST_VERCEL_PROJECT", "freybert-panel"),
			APIURL:  getEnv("CHOREQUEST_VERCEL_API_URL", "https://api.vercel.com"),
		},
		Backup: BackupConfig{
			Passphrase:    getEnv("CHOREQUEST_BACKUP_PASSPHRASE", ""),
			Schedule:      getEnv("CHOREQUEST_BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays: getEnvInt("CHOREQUEST_BACKUP_RETENTION_DAYS", 30),
		},
	}, nil
}

// IsAdminDNI reports whether dni is listed in CHOREQUEST_ADMIN_DNIS.
func (c Config) IsAdminDNI(dni string) bool {
	for _, d := range c.AdminDNIs {
		if d == dni {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
