package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inkstonehq/inkstone/internal/profile"
	"github.com/inkstonehq/inkstone/plugin/embedding"
	"github.com/inkstonehq/inkstone/runner/backup"
	"github.com/inkstonehq/inkstone/runner/reconcile"
	"github.com/inkstonehq/inkstone/store"
	"github.com/inkstonehq/inkstone/store/db"
	"github.com/inkstonehq/inkstone/vecstore"
)

const greetingBanner = `
inkstone - hybrid memo storage engine
`

var rootCmd = &cobra.Command{
	Use:   "inkstone",
	Short: "A hybrid scalar+vector storage engine for personal memos",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:                   viper.GetString("mode"),
			Data:                   viper.GetString("data"),
			Driver:                 viper.GetString("driver"),
			DSN:                    viper.GetString("dsn"),
			EmbeddingDimensions:    viper.GetInt("embedding-dimensions"),
			EmbeddingCacheCapacity: viper.GetInt("embedding-cache-capacity"),
			BackupCron:             viper.GetString("backup-cron"),
			BackupMaxCount:         viper.GetInt("backup-max-count"),
			BackupMaxDays:          viper.GetInt("backup-max-days"),
			Version:                version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid profile", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if err := run(instanceProfile); err != nil {
			slog.Error("fatal", slog.String("error", err.Error()))
			os.Exit(1)
		}
	},
}

var version = "dev"

func run(p *profile.Profile) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return fmt.Errorf("failed to create db driver: %w", err)
	}
	st := store.New(dbDriver, p)
	defer st.Close()

	vec, err := vecstore.New(p.VectorDir)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}

	// Schema and vector index migrations run before anything serves.
	if err := st.Migrate(ctx, vec); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	var provider embedding.Provider
	if p.EmbeddingAPIKey == "" {
		slog.Warn("no embedding api key configured, using deterministic local embeddings")
		provider = embedding.NewMockProvider(p.EmbeddingDimensions)
	} else {
		provider, err = embedding.NewProvider(embedding.Config{
			Provider:   p.EmbeddingProvider,
			APIKey:     p.EmbeddingAPIKey,
			BaseURL:    p.EmbeddingBaseURL,
			Model:      p.EmbeddingModel,
			Dimensions: p.EmbeddingDimensions,
		})
		if err != nil {
			return fmt.Errorf("failed to create embedding provider: %w", err)
		}
	}
	cache, err := embedding.NewCache(provider, p.EmbeddingCacheCapacity)
	if err != nil {
		return fmt.Errorf("failed to create embedding cache: %w", err)
	}

	reconcileRunner := reconcile.NewRunner(st, vec, cache)
	go reconcileRunner.Run(ctx)

	var backupRunner *backup.Runner
	if p.BackupEnabled {
		var uploader backup.Uploader
		if p.BackupBucket != "" {
			uploader, err = backup.NewS3Uploader(ctx, p.BackupBucket, p.BackupPrefix)
			if err != nil {
				return fmt.Errorf("failed to create s3 uploader: %w", err)
			}
		} else {
			uploader = backup.NewLocalUploader(filepath.Join(p.Data, "backups"))
		}
		executor := backup.NewExecutor(p.VectorDir, uploader)
		backupRunner, err = backup.NewRunner(executor, p.BackupCron, p.BackupMaxCount, p.BackupMaxDays)
		if err != nil {
			return fmt.Errorf("failed to create backup runner: %w", err)
		}
		backupRunner.Run(ctx)
	}

	fmt.Print(greetingBanner)
	slog.Info("inkstone started",
		slog.String("mode", p.Mode),
		slog.String("driver", p.Driver),
		slog.String("version", version))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	slog.Info("shutting down")
	if backupRunner != nil {
		backupRunner.Destroy()
	}
	cancel()
	return nil
}

func init() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("inkstone")

	rootCmd.PersistentFlags().String("mode", "demo", `mode of the server: "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver: "sqlite", "postgres" or "mysql"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka DSN)")
	rootCmd.PersistentFlags().Int("embedding-dimensions", 1536, "embedding vector dimensions")
	rootCmd.PersistentFlags().Int("embedding-cache-capacity", 4096, "embedding cache capacity in entries")
	rootCmd.PersistentFlags().String("backup-cron", "0 3 * * *", "backup cron schedule")
	rootCmd.PersistentFlags().Int("backup-max-count", 14, "maximum number of backups retained")
	rootCmd.PersistentFlags().Int("backup-max-days", 30, "maximum backup age in days")

	for _, flag := range []string{
		"mode", "data", "driver", "dsn",
		"embedding-dimensions", "embedding-cache-capacity",
		"backup-cron", "backup-max-count", "backup-max-days",
	} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
