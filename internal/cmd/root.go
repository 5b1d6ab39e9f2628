// Package cmd implements the nimbuswalk command line.
package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/3leaps/nimbuswalk/internal/config"
	"github.com/3leaps/nimbuswalk/internal/observability"
	"github.com/3leaps/nimbuswalk/internal/server/handlers"
)

const appName = "nimbuswalk"

var versionInfo = handlers.VersionInfo{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Concurrent object storage tree walker",
	Long: `nimbuswalk lists every object under a bucket prefix by walking the
delimiter hierarchy with a bounded number of concurrent listing calls.

Examples:
  nimbuswalk walk s3://bucket/data/ -c 16
  nimbuswalk walk minio://backups/ --endpoint http://localhost:9000 -o jsonl
  nimbuswalk walk file:///srv/export --include '**/*.csv' --sort
  nimbuswalk serve --port 8080`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	pf.String("log-level", "info", "Log level (debug|info|warn|error)")
	pf.String("log-format", observability.FormatConsole, "Log format (console|json)")

	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", pf.Lookup("log-format"))
}

// SetVersionInfo records build metadata injected by main.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setDefaults() {
	config.SetDefaults(viper.GetViper())
}

func initConfig(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	setDefaults()
	config.BindEnv(v)

	// Console logger until the configured one is known.
	observability.InitCLILogger(appName, verbose)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return ExitWithCode(observability.CLILogger, foundry.ExitFileReadError, "Failed to read config file", err)
		}
	}

	level := v.GetString("logging.level")
	if verbose {
		level = "debug"
	}
	if err := observability.Configure(appName, level, v.GetString("logging.format")); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	if cfgFile != "" {
		observability.CLILogger.Debug("Loaded config file")
	}
	return nil
}

// loadConfig decodes and validates the layered configuration.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	return cfg, nil
}
