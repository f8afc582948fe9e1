// Package pipeline runs the per-file extraction task: chunks from a Source
// are split into GRIB2 records, wind records are kept, and the kept bytes are
// streamed into a multipart upload.
//
// The task is strictly sequential. Every failure other than a record that
// cannot be decoded aborts the upload before the error is returned, so a
// failed file never leaves an object or orphaned parts behind.
package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/filter"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/grib"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/source"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// DefaultProgressInterval is the number of bytes read between progress logs.
const DefaultProgressInterval = 64 * 1024 * 1024

// Stats describes one run.
type Stats struct {
	// BytesRead is the number of input bytes consumed
	BytesRead int64

	// Records is the number of complete records extracted
	Records int64

	// Kept is the number of wind records uploaded
	Kept int64

	// DecodeFailures is the number of records dropped because their header
	// could not be decoded
	DecodeFailures int64

	// BytesKept is the size of the uploaded object
	BytesKept int64

	// Skipped is the number of bytes outside any record
	Skipped int64

	// Parts is the number of uploaded parts
	Parts int

	// Digest is the hex BLAKE3 digest of the uploaded object
	Digest string

	// Duration is the wall time of the run
	Duration time.Duration
}

// Processor runs extraction tasks. A Processor holds no per-file state and
// may be shared by concurrent runs.
type Processor struct {
	filter           *filter.WindFilter
	logger           *slog.Logger
	extractorOpts    []grib.Option
	progressInterval int64
}

// Option is a functional option for configuring a Processor.
type Option func(*Processor)

// WithFilter replaces the default wind filter.
func WithFilter(f *filter.WindFilter) Option {
	return func(p *Processor) {
		if f != nil {
			p.filter = f
		}
	}
}

// WithExtractorOptions configures the extractor created for every run.
func WithExtractorOptions(opts ...grib.Option) Option {
	return func(p *Processor) {
		p.extractorOpts = append(p.extractorOpts, opts...)
	}
}

// WithProgressInterval sets how many input bytes pass between progress
// logs. Zero or less disables progress logging.
func WithProgressInterval(n int64) Option {
	return func(p *Processor) {
		p.progressInterval = n
	}
}

// WithLogger configures the processor with a logger.
// If logger is nil, logging will be disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// New creates a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		filter:           filter.New(nil),
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// Run streams src into a new upload at key. manager must be freshly created;
// Run initiates, completes or aborts it. Stats are returned even on failure.
func (p *Processor) Run(
	ctx context.Context,
	src source.Source,
	manager *upload.Manager,
	key string,
) (*Stats, error) {
	started := time.Now()
	stats := &Stats{}
	defer func() { stats.Duration = time.Since(started) }()

	if err := manager.Initiate(ctx, key); err != nil {
		return stats, err
	}

	if err := p.stream(ctx, src, manager, stats); err != nil {
		p.abort(ctx, manager, err)
		return stats, err
	}

	result, err := manager.Complete(ctx)
	if err != nil {
		p.abort(ctx, manager, err)
		return stats, err
	}

	stats.Parts = len(result.Parts)
	stats.Digest = result.Digest
	return stats, nil
}

func (p *Processor) stream(
	ctx context.Context,
	src source.Source,
	manager *upload.Manager,
	stats *Stats,
) error {
	extractor := grib.NewExtractor(p.extractorOpts...)
	total := src.Size()
	nextProgress := p.progressInterval

	for {
		chunk, err := src.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		stats.BytesRead += int64(len(chunk))

		records, feedErr := extractor.Feed(chunk)
		for _, rec := range records {
			if err := p.handle(ctx, rec, manager, stats); err != nil {
				return err
			}
		}
		stats.Skipped = extractor.Skipped()
		if feedErr != nil {
			return feedErr
		}

		if p.progressInterval > 0 && stats.BytesRead >= nextProgress {
			p.progress(ctx, manager.Key(), total, stats)
			for nextProgress <= stats.BytesRead {
				nextProgress += p.progressInterval
			}
		}
	}

	return extractor.Finish()
}

func (p *Processor) handle(
	ctx context.Context,
	rec grib.Record,
	manager *upload.Manager,
	stats *Stats,
) error {
	stats.Records++

	outcome, err := p.filter.Evaluate(rec)
	switch outcome {
	case filter.Keep:
		if err := manager.Write(ctx, rec); err != nil {
			return err
		}
		stats.Kept++
		stats.BytesKept += int64(rec.Len())
	case filter.DecodeFailed:
		stats.DecodeFailures++
		p.logger.WarnContext(ctx, "dropping undecodable record",
			"key", manager.Key(), "record", stats.Records, "bytes", rec.Len(), "error", err)
	}
	return nil
}

// abort releases the upload after cause. It runs even when ctx is canceled.
func (p *Processor) abort(ctx context.Context, manager *upload.Manager, cause error) {
	if manager.State() != upload.StateInProgress {
		return
	}

	if err := manager.Abort(context.WithoutCancel(ctx)); err != nil {
		p.logger.ErrorContext(ctx, "failed to abort upload",
			"key", manager.Key(), "upload_id", manager.UploadID(), "cause", cause, "error", err)
		return
	}
	p.logger.WarnContext(ctx, "upload aborted",
		"key", manager.Key(), "upload_id", manager.UploadID(), "cause", cause)
}

func (p *Processor) progress(ctx context.Context, key string, total int64, stats *Stats) {
	attrs := []any{
		"key", key,
		"bytes", stats.BytesRead,
		"records", stats.Records,
		"kept", stats.Kept,
	}
	if total > 0 {
		attrs = append(attrs, "percent", float64(stats.BytesRead)*100/float64(total))
	}
	p.logger.InfoContext(ctx, "download progress", attrs...)
}
