package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local"
	StorageBackendS3    StorageBackend = "s3"
)

type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKeyID  string
	AccessSecret string
	UsePathStyle bool
}

type Config struct {
	Addr              string
	DBPath            string
	UploadsDir        string
	JWTSecret         string
	BodyLimitMB       int
	Storage           StorageBackend
	S3                S3Config
	AllowRegistration bool
	BootstrapUser     string
	BootstrapPassword string
}

// Load reads configuration from the environment, after merging in an optional
// .env file. Values already set in the environment win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:              env("MEMOIR_ADDR", ":8233"),
		DBPath:            env("MEMOIR_DB_PATH", "./data/memoir.db"),
		UploadsDir:        env("MEMOIR_UPLOADS_DIR", "./data/uploads"),
		JWTSecret:         env("MEMOIR_JWT_SECRET", ""),
		BodyLimitMB:       envInt("MEMOIR_BODY_LIMIT_MB", 32),
		Storage:           StorageBackend(strings.ToLower(env("MEMOIR_STORAGE", string(StorageBackendLocal)))),
		AllowRegistration: envBool("MEMOIR_ALLOW_REGISTRATION", true),
		BootstrapUser:     env("MEMOIR_BOOTSTRAP_USER", ""),
		BootstrapPassword: env("MEMOIR_BOOTSTRAP_PASSWORD", ""),
		S3: S3Config{
			Endpoint:     env("MEMOIR_S3_ENDPOINT", ""),
			Region:       env("MEMOIR_S3_REGION", ""),
			Bucket:       env("MEMOIR_S3_BUCKET", ""),
			AccessKeyID:  env("MEMOIR_S3_ACCESS_KEY_ID", ""),
			AccessSecret: env("MEMOIR_S3_ACCESS_SECRET", ""),
			UsePathStyle: envBool("MEMOIR_S3_USE_PATH_STYLE", false),
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("MEMOIR_JWT_SECRET is required")
	}
	switch cfg.Storage {
	case StorageBackendLocal:
	case StorageBackendS3:
		if err := cfg.S3.Validate(); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
	return cfg, nil
}

func (c S3Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("s3 endpoint is required when storage backend is s3")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required when storage backend is s3")
	}
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required when storage backend is s3")
	}
	if c.AccessKeyID == "" {
		return fmt.Errorf("s3 access key id is required when storage backend is s3")
	}
	if c.AccessSecret == "" {
		return fmt.Errorf("s3 access key secret is required when storage backend is s3")
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
