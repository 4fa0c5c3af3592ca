package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sitepush/sitepush/internal/config"
	"github.com/sitepush/sitepush/internal/engine"
	"github.com/sitepush/sitepush/internal/store"
	"github.com/sitepush/sitepush/internal/version"
)

var (
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "sitepush",
	Short:   "Sync a static site export to an object-storage bucket, uploading only what changed",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			SourceDir:   viper.GetString("source"),
			Provider:    viper.GetString("provider"),
			Bucket:      viper.GetString("bucket"),
			Region:      viper.GetString("region"),
			Endpoint:    viper.GetString("endpoint"),
			AccessKey:   viper.GetString("access_key"),
			SecretKey:   viper.GetString("secret_key"),
			Prefix:      viper.GetString("prefix"),
			Concurrency: viper.GetInt("concurrency"),
			Retries:     viper.GetInt("retries"),
			RetryDelay:  viper.GetDuration("retry_delay"),
			Force:       viper.GetBool("force"),
			DryRun:      viper.GetBool("dry_run"),
			Excludes:    viper.GetStringSlice("exclude"),
			CachePath:   viper.GetString("cache"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if viper.GetBool("verbose") {
			logLevel.Set(slog.LevelDebug)
		}

		// config is good; failures from here on are runtime, not usage
		cmd.SilenceUsage = true

		st, err := newStore(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("create %s store: %w", cfg.Provider, err)
		}

		var journal *engine.Journal
		if cfg.CachePath != "" {
			journal, err = engine.OpenJournal(cfg.CachePath)
			if err != nil {
				return err
			}
			defer journal.Close()
		}

		res, err := engine.New(cfg, st, journal).Run(cmd.Context())
		if err != nil {
			return err
		}

		uploaded, skipped, failed := res.Uploaded.Load(), res.Skipped.Load(), res.Failed.Load()
		verb := "uploaded"
		if cfg.DryRun {
			verb = "planned"
		}
		fmt.Printf("%s %s, %s skipped, %s failed in %s\n",
			green(uploaded), verb, cyan(skipped), red(failed), res.Elapsed.Round(time.Millisecond))

		if failed > 0 && !cfg.DryRun {
			return fmt.Errorf("%d file(s) failed to upload", failed)
		}
		return nil
	},
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	storeCfg := store.Config{
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	}
	switch cfg.Provider {
	case config.ProviderMinio:
		return store.NewMinioStore(storeCfg)
	default:
		return store.NewS3Store(ctx, storeCfg)
	}
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("source", "s", "public", "Local directory to sync")
	rootCmd.Flags().StringP("bucket", "b", "", "Destination bucket")
	rootCmd.Flags().String("provider", config.ProviderS3, "Storage provider (s3 or minio)")
	rootCmd.Flags().String("region", "", "Bucket region (s3)")
	rootCmd.Flags().String("endpoint", "", "Custom endpoint (s3-compatible services, minio)")
	rootCmd.Flags().StringP("prefix", "p", "", "Key prefix prepended to every file")
	rootCmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency, "Max concurrent uploads")
	rootCmd.Flags().Int("retries", config.DefaultRetries, "Retries per remote call")
	rootCmd.Flags().Duration("retry-delay", config.DefaultRetryDelay, "Base retry backoff delay")
	rootCmd.Flags().BoolP("force", "f", false, "Upload everything, skip change detection")
	rootCmd.Flags().Bool("dry-run", false, "Plan and log uploads without writing anything")
	rootCmd.Flags().StringArrayP("exclude", "x", nil, "Exclude glob (repeatable, e.g. '**/*.map')")
	rootCmd.Flags().String("cache", "", "Fingerprint cache database path (empty disables)")
	rootCmd.Flags().BoolP("verbose", "v", false, "Debug logging")
}

func bindConfig(cmd *cobra.Command) error {
	// .env is a convenience for local use; absence is fine
	_ = godotenv.Load()

	viper.SetEnvPrefix("SITEPUSH")
	viper.AutomaticEnv()

	for flag, key := range map[string]string{
		"source":      "source",
		"bucket":      "bucket",
		"provider":    "provider",
		"region":      "region",
		"endpoint":    "endpoint",
		"prefix":      "prefix",
		"concurrency": "concurrency",
		"retries":     "retries",
		"retry-delay": "retry_delay",
		"force":       "force",
		"dry-run":     "dry_run",
		"exclude":     "exclude",
		"cache":       "cache",
		"verbose":     "verbose",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", red("ERROR"), err)
		}
		os.Exit(1)
	}
}
