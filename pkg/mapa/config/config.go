// Package config loads server configuration from the environment and
// builds the service dependencies it describes.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
	"github.com/mapa-edu/mapa-server/pkg/mapa/notify"
	repomem "github.com/mapa-edu/mapa-server/pkg/mapa/repo/memory"
	repopg "github.com/mapa-edu/mapa-server/pkg/mapa/repo/postgres"
	fsstorage "github.com/mapa-edu/mapa-server/pkg/mapa/storage/fs"
	memorystorage "github.com/mapa-edu/mapa-server/pkg/mapa/storage/memory"
	s3storage "github.com/mapa-edu/mapa-server/pkg/mapa/storage/s3"
)

// ServerConfig represents server configuration for the mapa service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	BaseURL     string `env:"BASE_URL" env-default:"http://localhost:8080"`

	// Auth
	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" env-default:"24h"`

	// Database configuration. Empty or "memory" selects the in-memory
	// repository.
	DatabaseURL string `env:"DATABASE_URL"`

	// Storage configuration
	StorageBackend  string `env:"STORAGE_BACKEND" env-default:"memory"` // memory, fs, s3
	FSBaseDir       string `env:"FS_BASE_DIR" env-default:"./data/storage"`
	MediaStagingDir string `env:"MEDIA_STAGING_DIR"`
	MediaBaseURL    string `env:"MEDIA_BASE_URL"`

	S3 S3Config

	// Outbound email. When the host is empty notifications are logged
	// and dropped.
	SMTP SMTPConfig
}

// S3Config holds credentials and addressing for the S3 backend
type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Bucket          string `env:"AWS_S3_BUCKET"`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// SMTPConfig holds the outbound mail server settings
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

// Load reads configuration from a .env file (when present) and the
// process environment.
func Load() (*ServerConfig, error) {
	_ = godotenv.Load()

	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	switch c.StorageBackend {
	case "memory", "fs":
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}
	return nil
}

// UsesPostgres reports whether the configuration selects the
// PostgreSQL repository.
func (c *ServerConfig) UsesPostgres() bool {
	return c.DatabaseURL != "" && c.DatabaseURL != "memory"
}

// BuildRepository creates a Repository based on the configuration.
// The returned pool is nil for the in-memory repository.
func (c *ServerConfig) BuildRepository(ctx context.Context) (mapa.Repository, *pgxpool.Pool, error) {
	if !c.UsesPostgres() {
		return repomem.New(), nil, nil
	}

	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := repopg.Migrate(pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return repopg.New(pool), pool, nil
}

// BuildBlobStore creates a BlobStore based on the configuration
func (c *ServerConfig) BuildBlobStore() (mapa.BlobStore, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}
}

// BuildMediaPipeline creates the staging pipeline in front of the
// configured blob store.
func (c *ServerConfig) BuildMediaPipeline(store mapa.BlobStore) (*mapa.MediaPipeline, error) {
	baseURL := c.MediaBaseURL
	if baseURL == "" {
		baseURL = c.BaseURL + "/media"
	}
	stagingDir := c.MediaStagingDir
	if stagingDir == "" {
		stagingDir = filepath.Join(os.TempDir(), "mapa-uploads")
	}
	return mapa.NewMediaPipeline(store, mapa.MediaConfig{
		StagingDir:    stagingDir,
		PublicBaseURL: baseURL,
	})
}

// BuildNotifier creates the outbound mail notifier, or a noop when no
// SMTP host is configured.
func (c *ServerConfig) BuildNotifier() (mapa.Notifier, error) {
	if c.SMTP.Host == "" {
		return mapa.NewNoopNotifier(), nil
	}
	return notify.New(notify.Config{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
	})
}
