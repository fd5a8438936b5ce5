package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the storage engine.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// Driver is the scalar database driver (sqlite, postgres or mysql)
	Driver string
	// DSN points to where inkstone stores its scalar data
	DSN string
	// Version is the current version of the server
	Version string

	// VectorDir is the directory holding the embedded vector store files.
	VectorDir string

	// Embedding configuration.
	EmbeddingProvider   string // INKSTONE_EMBEDDING_PROVIDER (openai or siliconflow)
	EmbeddingAPIKey     string // INKSTONE_EMBEDDING_API_KEY
	EmbeddingBaseURL    string // INKSTONE_EMBEDDING_BASE_URL
	EmbeddingModel      string // INKSTONE_EMBEDDING_MODEL (default: text-embedding-3-small)
	EmbeddingDimensions int    // INKSTONE_EMBEDDING_DIMENSIONS (default: 1536)

	// EmbeddingCacheCapacity bounds the in-process embedding cache (entries).
	EmbeddingCacheCapacity int

	// Backup configuration.
	BackupEnabled  bool
	BackupBucket   string // S3 bucket; empty means local directory under Data
	BackupPrefix   string
	BackupCron     string // cron expression, default "0 3 * * *"
	BackupMaxCount int
	BackupMaxDays  int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads embedding and backup configuration from environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingProvider = getEnvOrDefault("INKSTONE_EMBEDDING_PROVIDER", "openai")
	if key := os.Getenv("INKSTONE_EMBEDDING_API_KEY"); key != "" {
		p.EmbeddingAPIKey = key
	}
	if url := os.Getenv("INKSTONE_EMBEDDING_BASE_URL"); url != "" {
		p.EmbeddingBaseURL = url
	}
	p.EmbeddingModel = getEnvOrDefault("INKSTONE_EMBEDDING_MODEL", "text-embedding-3-small")
	if p.EmbeddingDimensions <= 0 {
		p.EmbeddingDimensions = 1536
	}
	if os.Getenv("INKSTONE_BACKUP_ENABLED") == "true" {
		p.BackupEnabled = true
	}
	if bucket := os.Getenv("INKSTONE_BACKUP_BUCKET"); bucket != "" {
		p.BackupBucket = bucket
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/inkstone"
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("inkstone_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.VectorDir == "" {
		p.VectorDir = filepath.Join(dataDir, "vectors")
	}

	if p.EmbeddingModel == "" {
		p.EmbeddingModel = "text-embedding-3-small"
	}
	if p.EmbeddingDimensions <= 0 {
		p.EmbeddingDimensions = 1536
	}
	if p.EmbeddingCacheCapacity <= 0 {
		p.EmbeddingCacheCapacity = 4096
	}

	if p.BackupCron == "" {
		p.BackupCron = "0 3 * * *"
	}
	if p.BackupMaxCount <= 0 {
		p.BackupMaxCount = 14
	}
	if p.BackupMaxDays <= 0 {
		p.BackupMaxDays = 30
	}

	return nil
}
