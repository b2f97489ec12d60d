package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the CLI and viewer need to talk to the
// ingest and chat services. Values come from a .env file when present,
// then the process environment; command-line flags override on top.
type Config struct {
	Env          string
	ServerURL    string
	ChatURL      string
	ViewerAddr   string
	PollInterval time.Duration
	// MaxPollDuration bounds how long a session keeps polling a job that
	// never reaches a terminal status. Zero means poll forever.
	MaxPollDuration time.Duration
	HTTPTimeout     time.Duration

	Storage StorageConfig
}

// StorageConfig enables the direct-to-MinIO upload path used against a
// local stack, bypassing presigned targets.
type StorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	cfg := &Config{
		Env:             env,
		ServerURL:       firstNonEmpty(strings.TrimSpace(os.Getenv("BEPVIEW_SERVER_URL")), "http://localhost:8000"),
		ChatURL:         strings.TrimSpace(os.Getenv("BEPVIEW_CHAT_URL")),
		ViewerAddr:      firstNonEmpty(strings.TrimSpace(os.Getenv("BEPVIEW_VIEWER_ADDR")), ":8090"),
		PollInterval:    durationEnv("BEPVIEW_POLL_INTERVAL", 3*time.Second),
		MaxPollDuration: durationEnv("BEPVIEW_MAX_POLL_DURATION", 0),
		HTTPTimeout:     durationEnv("BEPVIEW_HTTP_TIMEOUT", 30*time.Second),
		Storage:         loadStorageConfig(env),
	}
	if cfg.ChatURL == "" {
		cfg.ChatURL = cfg.ServerURL
	}
	return cfg, nil
}

func loadStorageConfig(env string) StorageConfig {
	return StorageConfig{
		Endpoint:  strings.TrimSpace(os.Getenv("BEPVIEW_S3_ENDPOINT")),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("BEPVIEW_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("BEPVIEW_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("BEPVIEW_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("BEPVIEW_S3_BUCKET")), "bep-files"),
		UseSSL:    resolveUseSSL(env),
	}
}

// resolveUseSSL honors an explicit BEPVIEW_S3_USE_SSL first; the
// environment name only picks the default when the var is absent or
// unparseable.
func resolveUseSSL(env string) bool {
	raw := strings.TrimSpace(os.Getenv("BEPVIEW_S3_USE_SSL"))
	if raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return !strings.EqualFold(strings.TrimSpace(env), "local")
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
