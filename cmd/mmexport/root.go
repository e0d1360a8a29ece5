package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "MMEXPORT"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mmexport",
	Short: "Export media metadata as JSON, CSV or Parquet",
	Long: `mmexport reads the tags of media files (or JSON metadata trees) and exports
them as JSON documents, flattened CSV tables or Parquet files.

Output shape is driven by the persisted export settings (see "mmexport settings").
Runtime options come from flags, MMEXPORT_* environment variables or a config file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()
		return setupLogging()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/mmexport/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("settings", defaultSettingsPath(), "export settings file")
	pf.String("history-db", "", "SQLite ledger of deliveries (disabled when empty)")
	pf.String("metrics-textfile", "", "write Prometheus metrics to this file on exit")
	pf.StringP("out", "o", ".", "output directory")
	pf.String("s3-bucket", "", "deliver to this S3 bucket instead of --out")
	pf.String("s3-prefix", "", "key prefix inside --s3-bucket")
	pf.Int("retries", 3, "delivery attempts per file")

	for _, name := range []string{"log-format", "settings", "history-db", "metrics-textfile", "out", "s3-bucket", "s3-prefix", "retries"} {
		viper.BindPFlag(configKey(name), pf.Lookup(name))
	}
}

// configKey maps a flag name to its viper key ("s3-bucket" -> "s3_bucket").
func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(dir, "mmexport"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
		}
	}
}

func setupLogging() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch format := viper.GetString("log_format"); format {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mmexport-settings.yaml"
	}
	return filepath.Join(dir, "mmexport", "settings.yaml")
}
