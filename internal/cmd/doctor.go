package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuswalk/internal/observability"
	"github.com/3leaps/nimbuswalk/pkg/provider"
)

var doctorTimeout time.Duration

var doctorCmd = &cobra.Command{
	Use:   "doctor [uri...]",
	Short: "Run diagnostic checks",
	Long: `Check the environment and, for each URI given, that one listing page
can be fetched with the configured credentials.

Examples:
  nimbuswalk doctor
  nimbuswalk doctor s3://bucket/data/ --profile analytics`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 15*time.Second, "Timeout per target probe")
}

type doctorCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	logger := observability.CLILogger
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	open := newOpener(cfg.S3)

	checks := []doctorCheck{
		{name: "Go runtime", run: func(context.Context) (string, error) {
			return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH), nil
		}},
		{name: "Fulmen libraries", run: fulmenVersions},
		{name: "Config directory", run: func(context.Context) (string, error) {
			return os.UserConfigDir()
		}},
		{name: "Data directory", run: func(context.Context) (string, error) {
			return gfconfig.GetAppDataDir(appName), nil
		}},
	}
	for _, uri := range args {
		checks = append(checks, doctorCheck{name: "List " + uri, run: func(ctx context.Context) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
			defer cancel()
			if err := probeTarget(ctx, open, uri); err != nil {
				return provider.Code(err), err
			}
			return "ok", nil
		}})
	}

	failed := 0
	var lastErr error
	for i, c := range checks {
		detail, err := c.run(cmd.Context())
		prefix := fmt.Sprintf("[%d/%d] %s", i+1, len(checks), c.name)
		if err != nil {
			failed++
			lastErr = err
			logger.Error(prefix+"... failed", zap.String("detail", detail), zap.Error(err))
			continue
		}
		logger.Info(prefix+"... ok", zap.String("detail", detail))
	}

	if failed > 0 {
		return ExitWithCode(logger, foundry.ExitExternalServiceUnavailable,
			fmt.Sprintf("%d of %d checks failed", failed, len(checks)), lastErr)
	}
	logger.Info("All checks passed")
	return nil
}

func fulmenVersions(context.Context) (string, error) {
	v := crucible.GetVersion()
	return fmt.Sprintf("crucible %s, gofulmen %s", orUnknown(v.Crucible), orUnknown(v.Gofulmen)), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return "v" + s
}
