package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"treecert/internal/app"
	"treecert/internal/config"
	"treecert/internal/logging"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	cfg     *config.Config
	logger  = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "certctl",
	Short: "Tree certificate client",
	Long: `certctl talks to the tree certificate service.

It prepares certificate payloads from a photo, generates certificates and
saves them to disk, a Cloud Storage bucket or a Drive folder, and keeps an
optional ledger of issued certificates in Firestore.

Settings come from the environment (and .env), an optional YAML file given
with --config, and flags, in increasing order of precedence.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentPreRunE = setup

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file")
	pf.String("api-url", "", "certificate service base URL (CERTIFICATE_API_URL)")
	pf.Duration("timeout", 0, "request timeout, 0 disables (REQUEST_TIMEOUT)")
	pf.String("save-target", "", "file, gcs or drive (SAVE_TARGET)")
	pf.String("output-dir", "", "directory for the file target (OUTPUT_DIR)")
	pf.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	pf.String("log-format", "", "console or json (LOG_FORMAT)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// flagKeys maps persistent flags to their config keys.
var flagKeys = map[string]string{
	"api-url":     "certificate_api_url",
	"timeout":     "request_timeout",
	"save-target": "save_target",
	"output-dir":  "output_dir",
	"log-level":   "log_level",
	"log-format":  "log_format",
}

func setup(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
			return err
		}
	}

	var err error
	cfg, err = config.Load(func(c *config.Config) { applyViper(v, c) })
	if err != nil {
		return err
	}

	logger, err = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return err
}

// applyViper copies every key set in the config file or on the command line
// over the environment-derived configuration.
func applyViper(v *viper.Viper, c *config.Config) {
	strs := map[string]*string{
		"certificate_api_url":     &c.CertificateAPIURL,
		"save_target":             &c.SaveTarget,
		"output_dir":              &c.OutputDir,
		"gcs_bucket_name":         &c.GCSBucketName,
		"gcs_prefix":              &c.GCSPrefix,
		"google_drive_folder_id":  &c.GoogleDriveFolderID,
		"google_credentials_path": &c.GoogleCredentialsPath,
		"google_credentials_json": &c.GoogleCredentialsJSON,
		"firestore_project_id":    &c.FirestoreProjectID,
		"firestore_collection":    &c.FirestoreCollection,
		"log_level":               &c.LogLevel,
		"log_format":              &c.LogFormat,
	}
	durations := map[string]*time.Duration{
		"request_timeout":        &c.RequestTimeout,
		"cache_ttl":              &c.CacheTTL,
		"cache_cleanup_interval": &c.CacheCleanupInterval,
	}
	ints := map[string]*int{
		"rate_limit_burst":    &c.RateLimitBurst,
		"image_max_dimension": &c.ImageMaxDimension,
		"jpeg_quality":        &c.JPEGQuality,
	}

	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	for key, dst := range durations {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	if v.IsSet("rate_limit_rps") {
		c.RateLimitRPS = v.GetFloat64("rate_limit_rps")
	}
	if v.IsSet("ledger_enabled") {
		c.LedgerEnabled = v.GetBool("ledger_enabled")
	}
}

func initServices(cmd *cobra.Command) (*app.Services, error) {
	return app.InitServices(cmd.Context(), cfg, logger)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the certctl version",
	// No configuration needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "certctl %s\n", version)
	},
}
