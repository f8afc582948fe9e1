// windstream downloads GFS 0.25 degree analysis files, keeps the U and V
// wind records and streams them into object storage, one object per cycle.
//
// Usage:
//
//	windstream --start-date 2020-01-01 --end-date 2020-01-31 --bucket gfs-wind --prefix wind/2020
//
// Settings come from defaults, then an optional --config YAML file, then
// flags. The exit status is 1 when any file failed.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/input-output-hk/catalyst-forge-libs/windstream"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/config"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/source"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/storage"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// errHelp reports that usage was printed and nothing else should run.
var errHelp = stderrors.New("help requested")

// batchError is returned when at least one file failed.
type batchError struct {
	failed, total int
}

func (e *batchError) Error() string {
	return fmt.Sprintf("%d of %d files failed", e.failed, e.total)
}

func (e *batchError) ExitCode() int {
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()

	if err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := loadConfig(args, stderr)
	if stderrors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}

	cycles, err := cfg.Cycles()
	if err != nil {
		return err
	}

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := windstream.New(backend,
		windstream.WithConcurrency(cfg.Concurrency),
		windstream.WithPartSize(cfg.PartSize),
		windstream.WithMaxRecordSize(cfg.MaxRecordSize),
		windstream.WithLogger(logger),
		windstream.WithFetcher(&source.Router{
			HTTP: source.NewHTTPFetcher(
				source.WithChunkSize(cfg.HTTP.ChunkSize),
				source.WithUserAgent(cfg.HTTP.UserAgent),
				source.WithHTTPClient(newHTTPClient(cfg.HTTP.Timeout)),
				source.WithLogger(logger),
			),
			File: source.NewFileFetcher(nil, cfg.HTTP.ChunkSize),
		}),
	)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting batch",
		"start_date", cfg.StartDate,
		"end_date", cfg.EndDate,
		"files", len(cycles),
		"backend", cfg.Backend,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
	)

	result := client.ProcessBatch(ctx, windstream.CycleJobs(cycles, cfg.SourceURL, cfg.Prefix))
	for _, f := range result.Files {
		if f.Err != nil {
			logger.ErrorContext(ctx, "error processing file", "key", f.Job.Key, "error", f.Err)
		}
	}

	if result.Failed > 0 {
		return &batchError{failed: result.Failed, total: len(result.Files)}
	}
	return nil
}

// loadConfig parses flags, loads the config file and applies explicitly set
// flags over it.
func loadConfig(args []string, stderr io.Writer) (*config.Config, error) {
	flagSet := pflag.NewFlagSet("windstream", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)

	defaults := config.Default()
	var (
		configPath  string
		startDate   string
		endDate     string
		bucket      string
		prefix      string
		region      string
		backend     string
		endpoint    string
		pathStyle   bool
		sourceURL   string
		partSize    int
		concurrency int
		hours       []int
		logLevel    string
		logFormat   string
	)

	flagSet.StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	flagSet.StringVarP(&startDate, "start-date", "s", "", "first date to process (YYYY-MM-DD)")
	flagSet.StringVarP(&endDate, "end-date", "e", "", "last date to process (YYYY-MM-DD)")
	flagSet.StringVarP(&bucket, "bucket", "b", "", "destination bucket (Swift container)")
	flagSet.StringVarP(&prefix, "prefix", "p", "", "destination key prefix (e.g. wind/2020/)")
	flagSet.StringVar(&region, "region", "", "AWS region (defaults to the AWS credential chain, then us-east-1)")
	flagSet.StringVar(&backend, "backend", defaults.Backend, "storage backend: s3, minio or swift")
	flagSet.StringVar(&endpoint, "endpoint", "", "custom S3 or MinIO endpoint")
	flagSet.BoolVar(&pathStyle, "path-style", false, "use path-style S3 addressing")
	flagSet.StringVar(&sourceURL, "source-url", defaults.SourceURL, "archive root URL or local mirror directory")
	flagSet.IntVar(&partSize, "part-size", defaults.PartSize, "multipart part size in bytes")
	flagSet.IntVar(&concurrency, "concurrency", defaults.Concurrency, "files processed at once")
	flagSet.IntSliceVar(&hours, "hours", defaults.Hours, "cycle hours to process")
	flagSet.StringVar(&logLevel, "log-level", defaults.Log.Level, "log level: debug, info, warn or error")
	flagSet.StringVar(&logFormat, "log-format", defaults.Log.Format, "log format: text or json")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return nil, errHelp
		}
		return nil, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(stderr, "Usage: windstream [flags]\n\nDownload GFS wind data and stream it to object storage.\n\n%s",
			flagSet.FlagUsages())
		return nil, errHelp
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	set := func(name string, apply func()) {
		if flagSet.Changed(name) {
			apply()
		}
	}
	set("start-date", func() { cfg.StartDate = startDate })
	set("end-date", func() { cfg.EndDate = endDate })
	set("bucket", func() { cfg.Bucket = bucket })
	set("prefix", func() { cfg.Prefix = prefix })
	set("region", func() { cfg.S3.Region = region; cfg.Minio.Region = region })
	set("backend", func() { cfg.Backend = backend })
	set("endpoint", func() { cfg.S3.Endpoint = endpoint; cfg.Minio.Endpoint = endpoint })
	set("path-style", func() { cfg.S3.UsePathStyle = pathStyle })
	set("source-url", func() { cfg.SourceURL = sourceURL })
	set("part-size", func() { cfg.PartSize = partSize })
	set("concurrency", func() { cfg.Concurrency = concurrency })
	set("hours", func() { cfg.Hours = hours })
	set("log-level", func() { cfg.Log.Level = logLevel })
	set("log-format", func() { cfg.Log.Format = logFormat })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
}

// newBackend creates the shared storage backend selected by cfg.
func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (upload.Backend, error) {
	opts := []storage.Option{
		storage.WithLogger(logger),
		storage.WithMetadata(cfg.Metadata),
	}
	if cfg.ContentType != "" {
		opts = append(opts, storage.WithContentType(cfg.ContentType))
	}

	switch cfg.Backend {
	case config.BackendS3:
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			MaxRetries:   cfg.S3.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		if cfg.S3.StorageClass != "" {
			opts = append(opts, storage.WithStorageClass(cfg.S3.StorageClass))
		}
		if cfg.S3.SSE != "" {
			opts = append(opts, storage.WithServerSideEncryption(storage.SSEType(cfg.S3.SSE), cfg.S3.KMSKeyID))
		}
		return storage.NewS3Backend(client, cfg.Bucket, opts...)

	case config.BackendMinio:
		accessKey, secretKey, err := cfg.Minio.Credentials()
		if err != nil {
			return nil, err
		}
		core, err := storage.NewMinioCore(storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: accessKey,
			SecretKey: secretKey,
			Region:    cfg.Minio.Region,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewMinioBackend(core, cfg.Bucket, opts...)

	case config.BackendSwift:
		apiKey, err := cfg.Swift.APIKey()
		if err != nil {
			return nil, err
		}
		conn, err := storage.NewSwiftConnection(storage.SwiftConfig{
			UserName: cfg.Swift.UserName,
			APIKey:   apiKey,
			AuthURL:  cfg.Swift.AuthURL,
			Domain:   cfg.Swift.Domain,
			Tenant:   cfg.Swift.Tenant,
			Region:   cfg.Swift.Region,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewSwiftBackend(conn, cfg.Bucket, cfg.SegmentContainer(), opts...)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
