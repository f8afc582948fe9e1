package windstream

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/gfs"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/grib"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/pipeline"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/source"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// Job is one file to process.
type Job struct {
	// Location is the input URL or path
	Location string

	// Key is the destination object key
	Key string
}

// FileResult is the outcome of one Job.
type FileResult struct {
	Job   Job
	Stats *pipeline.Stats
	Err   error
}

// BatchResult is the outcome of ProcessBatch, with one FileResult per job in
// job order.
type BatchResult struct {
	Files     []FileResult
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Err joins the errors of every failed file, or returns nil.
func (r *BatchResult) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return stderrors.Join(errs...)
}

// CycleJobs maps GFS cycles to jobs reading from base and writing under prefix.
func CycleJobs(cycles []gfs.Cycle, base, prefix string) []Job {
	jobs := make([]Job, 0, len(cycles))
	for _, c := range cycles {
		jobs = append(jobs, Job{Location: c.URL(base), Key: c.Key(prefix)})
	}
	return jobs
}

// Client processes files into a storage backend. The backend is shared by
// every file; each file gets its own extractor and upload manager. A Client
// is safe for concurrent use.
type Client struct {
	backend     upload.Backend
	fetcher     source.Fetcher
	processor   *pipeline.Processor
	logger      *slog.Logger
	concurrency int
	partSize    int
}

// New creates a Client writing to backend.
func New(backend upload.Backend, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, errors.InvalidInput("new", "backend cannot be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.partSize < upload.MinPartSize {
		return nil, errors.InvalidInput("new", "part size %d is below the %d byte minimum", o.partSize, upload.MinPartSize)
	}
	if o.maxRecordSize < grib.MinRecordSize {
		return nil, errors.InvalidInput("new", "max record size %d is below %d", o.maxRecordSize, grib.MinRecordSize)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = &source.Router{
			HTTP: source.NewHTTPFetcher(source.WithLogger(logger)),
			File: source.NewFileFetcher(nil, source.DefaultChunkSize),
		}
	}

	return &Client{
		backend: backend,
		fetcher: fetcher,
		processor: pipeline.New(
			pipeline.WithLogger(logger),
			pipeline.WithProgressInterval(o.progressInterval),
			pipeline.WithExtractorOptions(grib.WithMaxRecordSize(o.maxRecordSize)),
		),
		logger:      logger,
		concurrency: o.concurrency,
		partSize:    o.partSize,
	}, nil
}

// ProcessFile runs one job to completion. The input is opened before the
// upload is initiated, so an unreachable input never touches storage.
func (c *Client) ProcessFile(ctx context.Context, job Job) (*pipeline.Stats, error) {
	c.logger.InfoContext(ctx, "processing file", "location", job.Location, "key", job.Key)

	src, err := c.fetcher.Open(ctx, job.Location)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to open input", "location", job.Location, "key", job.Key, "error", err)
		return &pipeline.Stats{}, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			c.logger.DebugContext(ctx, "failed to close input", "location", job.Location, "error", err)
		}
	}()

	manager := upload.NewManager(c.backend,
		upload.WithPartSize(c.partSize),
		upload.WithLogger(c.logger),
	)

	stats, err := c.processor.Run(ctx, src, manager, job.Key)
	if err != nil {
		c.logger.ErrorContext(ctx, "file failed",
			"location", job.Location, "key", job.Key, "code", errors.CodeOf(err), "error", err)
		return stats, err
	}

	c.logger.InfoContext(ctx, "file completed",
		"key", job.Key,
		"records", stats.Records,
		"kept", stats.Kept,
		"decode_failures", stats.DecodeFailures,
		"bytes", stats.BytesKept,
		"parts", stats.Parts,
		"digest", stats.Digest,
		"duration", stats.Duration,
	)
	return stats, nil
}

// ProcessBatch runs every job, up to the configured concurrency at a time.
// A failed job is recorded in its FileResult and never cancels the others.
// Jobs not yet started when ctx is canceled fail with the context error.
func (c *Client) ProcessBatch(ctx context.Context, jobs []Job) *BatchResult {
	started := time.Now()
	result := &BatchResult{Files: make([]FileResult, len(jobs))}

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				result.Files[i] = FileResult{Job: job, Stats: &pipeline.Stats{}, Err: fmt.Errorf("%s: %w", job.Key, err)}
				return nil
			}
			stats, err := c.ProcessFile(ctx, job)
			result.Files[i] = FileResult{Job: job, Stats: stats, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range result.Files {
		if f.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	result.Duration = time.Since(started)

	c.logger.InfoContext(ctx, "batch finished",
		"files", len(jobs), "succeeded", result.Succeeded, "failed", result.Failed, "duration", result.Duration)
	return result
}
