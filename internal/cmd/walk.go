package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuswalk/internal/observability"
	"github.com/3leaps/nimbuswalk/pkg/manifest"
	"github.com/3leaps/nimbuswalk/pkg/match"
	"github.com/3leaps/nimbuswalk/pkg/output"
	"github.com/3leaps/nimbuswalk/pkg/provider"
	"github.com/3leaps/nimbuswalk/pkg/walker"
)

var walkCmd = &cobra.Command{
	Use:   "walk [uri]",
	Short: "List every object under a prefix",
	Long: `Walk the delimiter hierarchy under a bucket prefix and print every object.

Each prefix is listed page by page; sub-prefixes are queued and listed
concurrently, at most --concurrency at a time. Objects are printed as they
are found unless --sort is given.

A walk can also be described by a YAML or JSON job manifest (--job).

Examples:
  nimbuswalk walk s3://bucket/
  nimbuswalk walk s3://bucket/data/ -c 32 --max-keys 1000
  nimbuswalk walk s3://bucket/data/**/*.parquet -o jsonl
  nimbuswalk walk minio://backups/ --endpoint http://localhost:9000
  nimbuswalk walk file:///srv/export --exclude '**/_tmp/**' --sort
  nimbuswalk walk --job walk.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWalk,
}

var (
	walkJobPath     string
	walkDestination string
	walkQuiet       bool
	walkTraceHTTP   bool
	walkDryRun      bool
)

func init() {
	rootCmd.AddCommand(walkCmd)

	f := walkCmd.Flags()
	f.IntP("concurrency", "c", walker.DefaultConcurrency, "Maximum concurrent listing calls")
	f.String("delimiter", provider.DefaultDelimiter, "Delimiter that separates prefixes")
	f.Int("max-keys", 0, "Page size requested per listing call (0 = provider default)")
	f.Float64("rate-limit", 0, "Maximum listing calls per second (0 = unlimited)")
	f.Int("progress-every", manifest.DefaultProgressEvery, "Report progress every N pages")
	f.StringSlice("include", nil, "Glob of keys to print (repeatable)")
	f.StringSlice("exclude", nil, "Glob of keys to skip (repeatable)")
	f.Bool("exclude-hidden", false, "Skip keys and prefixes with dot-prefixed segments below the root")
	f.StringP("output", "o", output.FormatText, "Output format (text|jsonl)")
	f.Bool("sort", false, "Collect all keys and print them sorted at the end")
	f.StringP("region", "r", "", "AWS region")
	f.StringP("profile", "p", "", "AWS profile")
	f.String("endpoint", "", "Custom S3 or MinIO endpoint")
	f.Bool("region-from-imds", false, "Resolve the AWS region from EC2 instance metadata")

	f.StringVarP(&walkJobPath, "job", "j", "", "Path to job manifest")
	f.StringVar(&walkDestination, "destination", "", "Output destination (stdout|file:<path>)")
	f.BoolVarP(&walkQuiet, "quiet", "q", false, "Suppress progress records")
	f.BoolVar(&walkTraceHTTP, "trace-http", false, "Log every HTTP round trip at debug level")
	f.BoolVar(&walkDryRun, "dry-run", false, "Validate options and show the plan without listing")

	for key, flag := range map[string]string{
		"walk.concurrency":    "concurrency",
		"walk.delimiter":      "delimiter",
		"walk.max_keys":       "max-keys",
		"walk.rate_limit":     "rate-limit",
		"walk.progress_every": "progress-every",
		"walk.include":        "include",
		"walk.exclude":        "exclude",
		"walk.exclude_hidden": "exclude-hidden",
		"walk.output":         "output",
		"walk.sort":           "sort",
		"s3.region":           "region",
		"s3.profile":          "profile",
		"s3.endpoint":         "endpoint",
		"s3.region_from_imds": "region-from-imds",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

func runWalk(cmd *cobra.Command, args []string) error {
	var (
		m   *manifest.Manifest
		err error
	)
	switch {
	case walkJobPath != "" && len(args) > 0:
		return exitError(foundry.ExitInvalidArgument, "Invalid arguments", errors.New("give a URI or --job, not both"))
	case walkJobPath != "":
		m, err = manifest.Load(walkJobPath)
		if err != nil {
			observability.CLILogger.Error("Failed to load manifest",
				zap.String("path", walkJobPath),
				zap.Error(err))
			if errors.Is(err, os.ErrNotExist) {
				return exitError(foundry.ExitFileNotFound, "Manifest not found", err)
			}
			return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
		}
		applyOutputOverrides(cmd, m)
	case len(args) == 1:
		m, err = manifestFromURI(viper.GetViper(), args[0])
		if err != nil {
			return err
		}
	default:
		return exitError(foundry.ExitInvalidArgument, "Missing walk target", errors.New("a URI or --job is required"))
	}

	if walkDryRun {
		return showWalkPlan(cmd.OutOrStdout(), m)
	}
	return executeWalk(cmd.Context(), m, cmd.OutOrStdout())
}

// showWalkPlan displays what would be walked without listing anything.
func showWalkPlan(out io.Writer, m *manifest.Manifest) error {
	matcher, err := newMatcher(m)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("=== Walk Plan (dry-run) ===\n\n")
	fmt.Fprintf(&b, "Target:      %s\n", walkTarget(m))
	if m.Connection.Region != "" {
		fmt.Fprintf(&b, "Region:      %s\n", m.Connection.Region)
	}
	if m.Connection.Endpoint != "" {
		fmt.Fprintf(&b, "Endpoint:    %s\n", m.Connection.Endpoint)
	}
	fmt.Fprintf(&b, "Concurrency: %d\n", m.Walk.Concurrency)
	fmt.Fprintf(&b, "Delimiter:   %q\n", m.Walk.Delimiter)
	if m.Walk.MaxKeys > 0 {
		fmt.Fprintf(&b, "Max Keys:    %d\n", m.Walk.MaxKeys)
	}
	if m.Walk.RateLimit > 0 {
		fmt.Fprintf(&b, "Rate Limit:  %.1f req/s\n", m.Walk.RateLimit)
	}
	b.WriteString("Include:\n")
	for _, p := range matcher.IncludePatterns() {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	if excludes := matcher.ExcludePatterns(); len(excludes) > 0 {
		b.WriteString("Exclude:\n")
		for _, p := range excludes {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
	}
	if matcher.ExcludesHidden() {
		b.WriteString("Hidden:      excluded below root\n")
	}
	fmt.Fprintf(&b, "Output:      %s (%s)\n", m.Output.Format, m.Output.Destination)
	fmt.Fprintf(&b, "Sorted:      %v\n", m.Output.Sort)
	b.WriteString("\nOptions validated successfully. Remove --dry-run to execute.\n")

	_, err = io.WriteString(out, b.String())
	return err
}

// newMatcher compiles the job's key filter. Hidden segments are judged
// relative to the walk root.
func newMatcher(m *manifest.Manifest) (*match.Matcher, error) {
	matcher, err := match.New(match.Config{
		Includes:      m.Match.Includes,
		Excludes:      m.Match.Excludes,
		ExcludeHidden: m.Match.ExcludeHidden,
		Root:          m.Walk.Root,
	})
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid match patterns", err)
	}
	return matcher, nil
}

// manifestFromURI builds a job from a URI and the layered walk settings.
func manifestFromURI(v *viper.Viper, uri string) (*manifest.Manifest, error) {
	u, err := ParseURI(uri)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	progress := !walkQuiet
	m := &manifest.Manifest{
		Version: manifest.DefaultVersion,
		Connection: connectionFromURI(u, manifest.ConnectionConfig{
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			Profile:        cfg.S3.Profile,
			RegionFromIMDS: cfg.S3.RegionFromIMDS,
		}),
		Walk: manifest.WalkConfig{
			Root:          u.Key,
			Concurrency:   cfg.Walk.Concurrency,
			Delimiter:     cfg.Walk.Delimiter,
			MaxKeys:       cfg.Walk.MaxKeys,
			RateLimit:     cfg.Walk.RateLimit,
			ProgressEvery: cfg.Walk.ProgressEvery,
		},
		Match: manifest.MatchConfig{
			Includes:      slices.Clone(cfg.Walk.Include),
			Excludes:      cfg.Walk.Exclude,
			ExcludeHidden: cfg.Walk.ExcludeHidden,
		},
		Output: manifest.OutputConfig{
			Format:      cfg.Walk.Output,
			Destination: walkDestination,
			Sort:        cfg.Walk.Sort,
			Progress:    &progress,
		},
	}
	if u.IsPattern() {
		m.Match.Includes = append(m.Match.Includes, u.Pattern)
	}

	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid walk options", err)
	}
	return m, nil
}

// applyOutputOverrides lets explicit output flags win over a manifest.
func applyOutputOverrides(cmd *cobra.Command, m *manifest.Manifest) {
	f := cmd.Flags()
	if f.Changed("output") {
		m.Output.Format, _ = f.GetString("output")
	}
	if f.Changed("sort") {
		m.Output.Sort, _ = f.GetBool("sort")
	}
	if walkDestination != "" {
		m.Output.Destination = walkDestination
	}
	if walkQuiet {
		disabled := false
		m.Output.Progress = &disabled
	}
}

// executeWalk runs a validated job, writing results to stdout unless the
// manifest names a file destination.
func executeWalk(ctx context.Context, m *manifest.Manifest, stdout io.Writer) error {
	jobID := uuid.NewString()
	logger := observability.CLILogger.With(zap.String("job_id", jobID))

	prov, err := openProvider(ctx, m.Connection, m.Walk.MaxKeys, walkTraceHTTP)
	if err != nil {
		logger.Error("Failed to create provider", zap.Error(err))
		switch {
		case errors.Is(err, ErrUnsupportedProvider):
			return exitError(foundry.ExitInvalidArgument, "Unsupported provider", err)
		case m.Connection.Provider == string(provider.ProviderFile) && provider.IsBucketNotFound(err):
			return exitError(foundry.ExitFileNotFound, "Directory not found", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	matcher, err := newMatcher(m)
	if err != nil {
		return err
	}

	writer, cleanup, err := createWriter(m, jobID, stdout)
	if err != nil {
		logger.Error("Failed to create writer", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	var (
		sink      walker.Sink
		collector *walker.Collector
	)
	if m.Output.Sort {
		collector = walker.NewCollector()
		sink = collector
	} else {
		sink = walker.NewRecordSink(writer)
	}

	w := walker.New(prov, sink, walker.Config{
		Concurrency:   m.Walk.Concurrency,
		Delimiter:     m.Walk.Delimiter,
		MaxKeys:       m.Walk.MaxKeys,
		RateLimit:     m.Walk.RateLimit,
		ProgressEvery: m.Walk.ProgressEvery,
	}).WithMatcher(matcher).WithLogger(logger)

	progress := m.Output.Format == output.FormatJSONL && m.Output.ProgressEnabled()
	if progress {
		_ = writer.WriteProgress(ctx, walker.Stats{}.ProgressRecord(output.PhaseStarting, m.Walk.Root))
		w.WithProgress(func(stats walker.Stats, prefix string) {
			if err := writer.WriteProgress(ctx, stats.ProgressRecord(output.PhaseListing, prefix)); err != nil {
				logger.Debug("Failed to write progress record", zap.Error(err))
			}
		})
	}

	logger.Info("Starting walk",
		zap.String("uri", walkTarget(m)),
		zap.Int("concurrency", w.Config().Concurrency))

	summary, err := w.Run(ctx, m.Walk.Root)
	if err != nil {
		return walkFailed(ctx, logger, writer, summary, err)
	}

	if collector != nil {
		objs := collector.Objects()
		slices.SortFunc(objs, func(a, b provider.ObjectSummary) int { return strings.Compare(a.Key, b.Key) })
		if err := walker.NewRecordSink(writer).Accept(ctx, m.Walk.Root, objs); err != nil {
			logger.Error("Failed to write output", zap.Error(err))
			return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
		}
	}

	if progress {
		_ = writer.WriteProgress(ctx, summary.ProgressRecord(output.PhaseComplete, ""))
	}
	if err := writer.WriteSummary(ctx, summary.Record()); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write summary", err)
	}

	logger.Info("Walk completed",
		zap.Int64("prefixes", summary.Prefixes),
		zap.Int64("pages", summary.Pages),
		zap.Int64("objects_listed", summary.ObjectsListed),
		zap.Int64("objects_matched", summary.ObjectsMatched),
		zap.Int64("bytes_total", summary.BytesTotal),
		zap.Duration("duration", summary.Duration))
	return nil
}

func walkFailed(ctx context.Context, logger *zap.Logger, writer output.Writer, summary *walker.Summary, err error) error {
	if ctx.Err() != nil {
		fields := []zap.Field{zap.Error(err)}
		if summary != nil {
			fields = append(fields, zap.Int64("objects_matched", summary.ObjectsMatched))
		}
		logger.Warn("Walk cancelled", fields...)
		return exitError(foundry.ExitSignalInt, "Walk cancelled", err)
	}

	var sinkErr *walker.SinkError
	if errors.As(err, &sinkErr) {
		logger.Error("Failed to write output", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}

	rec := &output.ErrorRecord{Code: provider.Code(err), Message: err.Error()}
	var le *provider.ListingError
	if errors.As(err, &le) {
		rec.Prefix = le.Prefix
	}
	if werr := writer.WriteError(ctx, rec); werr != nil {
		logger.Debug("Failed to write error record", zap.Error(werr))
	}
	logger.Error("Walk failed", zap.String("code", rec.Code), zap.Error(err))
	return exitError(foundry.ExitExternalServiceUnavailable, "Walk failed", err)
}

func walkTarget(m *manifest.Manifest) string {
	if m.Connection.Provider == string(provider.ProviderFile) {
		return "file://" + m.Connection.Bucket
	}
	return fmt.Sprintf("%s://%s/%s", m.Connection.Provider, m.Connection.Bucket, m.Walk.Root)
}

// createWriter creates an output writer from manifest configuration.
// Returns the writer, a cleanup function, and any error.
func createWriter(m *manifest.Manifest, jobID string, stdout io.Writer) (output.Writer, func(), error) {
	dest := m.Output.Destination
	if dest == "" || dest == manifest.DefaultDestination {
		w, err := output.New(m.Output.Format, stdout, jobID, m.Connection.Provider)
		if err != nil {
			return nil, nil, err
		}
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	w, err := output.New(m.Output.Format, f, jobID, m.Connection.Provider)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}
