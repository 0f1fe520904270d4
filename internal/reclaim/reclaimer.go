package reclaim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/google/uuid"
	"github.com/serroba/doclinks/internal/audit"
	"github.com/serroba/doclinks/internal/link"
	"github.com/serroba/doclinks/internal/messaging"
	"go.uber.org/zap"
)

// ErrNoProgress aborts a run whose chunk deleted nothing, so a chunk of
// undeletable records cannot spin the loop forever.
var ErrNoProgress = errors.New("reclaim chunk made no progress")

// Config bounds the work of one sweep.
type Config struct {
	// ChunkSize is the number of expired records queried per iteration.
	ChunkSize int
	// Delay is the pause before continuing after a partially accepted chunk.
	Delay time.Duration
	// MaxAttempts bounds tries of a single store call on transient errors.
	MaxAttempts uint
	// RetryBackoff is the base of the exponential backoff between tries.
	RetryBackoff time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    100,
		Delay:        100 * time.Millisecond,
		MaxAttempts:  5,
		RetryBackoff: 50 * time.Millisecond,
	}
}

// Report summarizes one sweep.
type Report struct {
	RunID   string
	Deleted int
	Failed  int
	Chunks  int
	// Continuation is true when the last chunk was only partially accepted.
	Continuation bool
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Reclaimer deletes expired link records in bounded chunks. It keeps no
// cursor: every iteration re-queries expiresAt < now, so an interrupted run
// is resumed by the next one.
type Reclaimer struct {
	links   link.Repository
	cfg     Config
	now     func() time.Time
	publish messaging.Publish[audit.LinksReclaimedEvent]
	logger  *zap.Logger
}

// Option customises a Reclaimer.
type Option func(*Reclaimer)

// WithClock overrides the time source used for the expiry cutoff.
func WithClock(now func() time.Time) Option {
	return func(r *Reclaimer) {
		r.now = now
	}
}

// WithPublisher publishes a summary event after every run.
func WithPublisher(publish messaging.Publish[audit.LinksReclaimedEvent]) Option {
	return func(r *Reclaimer) {
		r.publish = publish
	}
}

// New creates a Reclaimer. Zero ChunkSize, MaxAttempts and RetryBackoff take
// their defaults; a zero Delay continues immediately.
func New(links link.Repository, cfg Config, logger *zap.Logger, opts ...Option) *Reclaimer {
	def := DefaultConfig()

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}

	if cfg.Delay < 0 {
		cfg.Delay = 0
	}

	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}

	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}

	r := &Reclaimer{
		links:  links,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type chunkResult struct {
	deleted      int
	failed       int
	continuation bool
}

// Sweep runs one reclamation pass until no expired records remain, the
// context ends, or a hard error occurs. The report is returned in every case.
func (r *Reclaimer) Sweep(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: r.now()}
	logger := r.logger.With(zap.String("run_id", report.RunID))

	err := r.sweep(ctx, report, logger)

	report.FinishedAt = r.now()

	fields := []zap.Field{
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
		zap.Int("chunks", report.Chunks),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	}

	if err != nil {
		logger.Error("reclaim run aborted", append(fields, zap.Error(err))...)
	} else {
		logger.Info("reclaim run finished", fields...)
	}

	r.publishReport(report, err, logger)

	return report, err
}

func (r *Reclaimer) sweep(ctx context.Context, report *Report, logger *zap.Logger) error {
	// Records that exhausted their retries stay expired and keep coming back
	// in later chunks; they are attempted and counted once per run.
	failed := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cutoff := r.now()

		var chunk []*link.Record

		err := r.retry(ctx, logger, func() error {
			var err error

			chunk, err = r.links.QueryExpired(ctx, cutoff, r.cfg.ChunkSize)

			return err
		})
		if err != nil {
			return fmt.Errorf("query expired: %w", err)
		}

		if len(chunk) == 0 {
			report.Continuation = false

			return nil
		}

		res, err := r.deleteChunk(ctx, chunk, failed, logger)

		report.Chunks++
		report.Deleted += res.deleted
		report.Failed += res.failed
		report.Continuation = res.continuation

		logger.Info("reclaimed chunk",
			zap.Int("chunk", report.Chunks),
			zap.Int("size", len(chunk)),
			zap.Int("deleted", res.deleted),
			zap.Bool("continuation", res.continuation),
			zap.Int("total", report.Deleted),
		)

		if err != nil {
			return err
		}

		if res.deleted == 0 {
			return ErrNoProgress
		}

		if res.continuation {
			if err := r.pause(ctx); err != nil {
				return err
			}

			continue
		}

		if len(chunk) < r.cfg.ChunkSize {
			return nil
		}
	}
}

func (r *Reclaimer) deleteChunk(
	ctx context.Context, chunk []*link.Record, failed map[string]struct{}, logger *zap.Logger,
) (chunkResult, error) {
	if batch, ok := r.links.(link.BatchDeleter); ok {
		ids := make([]string, len(chunk))
		for i, rec := range chunk {
			ids[i] = rec.ID
		}

		var accepted int

		err := r.retry(ctx, logger, func() error {
			var err error

			accepted, err = batch.DeleteBatch(ctx, ids)

			return err
		})
		if err != nil {
			return chunkResult{deleted: accepted}, fmt.Errorf("delete batch: %w", err)
		}

		return chunkResult{deleted: accepted, continuation: accepted < len(ids)}, nil
	}

	var res chunkResult

	for _, rec := range chunk {
		if _, skip := failed[rec.ID]; skip {
			continue
		}

		err := r.retry(ctx, logger, func() error {
			return r.links.Delete(ctx, rec.ID)
		})

		switch {
		case err == nil, errors.Is(err, link.ErrNotFound):
			res.deleted++
		case ctx.Err() != nil:
			return res, ctx.Err()
		case link.IsTransient(err):
			res.failed++
			failed[rec.ID] = struct{}{}

			logger.Warn("skipping link after repeated transient errors",
				zap.String("link_id", rec.ID), zap.Error(err))
		default:
			return res, fmt.Errorf("delete link %q: %w", rec.ID, err)
		}
	}

	return res, nil
}

// retry runs op until it succeeds, fails with a non-transient error, the
// context ends, or MaxAttempts is reached.
func (r *Reclaimer) retry(ctx context.Context, logger *zap.Logger, op func() error) error {
	var last error

	return retry.Retry(
		func(uint) error {
			last = op()

			return last
		},
		strategy.Limit(r.cfg.MaxAttempts),
		func(attempt uint) bool {
			if attempt == 0 {
				return true
			}

			if !link.IsTransient(last) || ctx.Err() != nil {
				return false
			}

			logger.Warn("transient store error, backing off",
				zap.Uint("attempt", attempt), zap.Error(last))

			return true
		},
		strategy.Backoff(backoff.BinaryExponential(r.cfg.RetryBackoff)),
	)
}

func (r *Reclaimer) pause(ctx context.Context) error {
	if r.cfg.Delay == 0 {
		return nil
	}

	timer := time.NewTimer(r.cfg.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Reclaimer) publishReport(report *Report, runErr error, logger *zap.Logger) {
	if r.publish == nil {
		return
	}

	event := &audit.LinksReclaimedEvent{
		RunID:        report.RunID,
		Deleted:      report.Deleted,
		Failed:       report.Failed,
		Chunks:       report.Chunks,
		Continuation: report.Continuation,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
	}

	if runErr != nil {
		event.Error = runErr.Error()
	}

	if err := r.publish(event); err != nil {
		logger.Error("failed to publish reclaim event", zap.Error(err))
	}
}
