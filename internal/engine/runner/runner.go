package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/framesource/internal/source"
)

// Default run configuration.
const (
	// DefaultParallelism is the number of bundles read at once.
	DefaultParallelism = 4

	// MaxParallelism caps concurrent read passes.
	MaxParallelism = 256

	// DefaultBundleSize is the desired number of rows per bundle.
	DefaultBundleSize = 100
)

// Run errors.
var (
	ErrInvalidParallelism = errors.New("parallelism must be between 1 and 256")
	ErrInvalidBundleSize  = errors.New("bundle size cannot be negative")
	ErrNilSource          = errors.New("source cannot be nil")
	ErrNilCallback        = errors.New("row callback cannot be nil")
)

// RowFunc handles one row. It is called concurrently from different bundles
// but sequentially, in offset order, within one bundle.
type RowFunc[T any] func(ctx context.Context, offset int64, row T) error

// ProgressCallback is invoked after each bundle completes, from the worker
// goroutine that read it.
type ProgressCallback func(progress *Progress)

// Option configures a Runner.
type Option func(*settings)

type settings struct {
	parallelism int
	bundleSize  int64
	onProgress  ProgressCallback
	logger      zerolog.Logger
}

// WithParallelism sets how many bundles are read concurrently.
func WithParallelism(n int) Option {
	return func(s *settings) { s.parallelism = n }
}

// WithBundleSize sets the desired bundle size passed to Split. Zero reads the
// whole source as a single bundle.
func WithBundleSize(n int64) Option {
	return func(s *settings) { s.bundleSize = n }
}

// WithProgressCallback sets a callback invoked after every bundle.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(s *settings) { s.onProgress = cb }
}

// WithLogger sets the runner's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// Runner executes a bounded source locally: it splits the source and reads
// each bundle with its own tracker on a bounded pool of goroutines.
type Runner[T any] struct {
	settings
}

// New creates a runner. It fails when parallelism or bundle size are out of
// range.
func New[T any](opts ...Option) (*Runner[T], error) {
	s := settings{
		parallelism: DefaultParallelism,
		bundleSize:  DefaultBundleSize,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.parallelism < 1 || s.parallelism > MaxParallelism {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidParallelism, s.parallelism)
	}
	if s.bundleSize < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBundleSize, s.bundleSize)
	}
	s.logger = s.logger.With().Str("component", "runner").Logger()

	return &Runner[T]{settings: s}, nil
}

// Parallelism returns the configured concurrency.
func (r *Runner[T]) Parallelism() int {
	return r.parallelism
}

// BundleSize returns the configured desired bundle size.
func (r *Runner[T]) BundleSize() int64 {
	return r.bundleSize
}

// Run reads every bundle of src and hands each row to fn. The first error
// from fn or from a tracker cancels the remaining passes and is returned
// wrapped with the failing bundle.
func (r *Runner[T]) Run(ctx context.Context, src *source.Source[T], fn RowFunc[T]) (*Progress, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if fn == nil {
		return nil, ErrNilCallback
	}

	bundles := slices.Collect(src.Split(r.bundleSize))
	progress := NewProgress(src.EstimateSize(), len(bundles))

	r.logger.Info().
		Int64("rows", progress.TotalRows).
		Int("bundles", len(bundles)).
		Int("parallelism", r.parallelism).
		Msg("run started")

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	for idx, bundle := range bundles {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			return r.readBundle(gCtx, src, idx, bundle, fn, progress)
		})
	}

	if err := g.Wait(); err != nil {
		return progress, err
	}
	if err := ctx.Err(); err != nil {
		return progress, err
	}

	snap := progress.Snapshot()
	r.logger.Info().
		Int64("rows", snap.ProcessedRows).
		Int("bundles", snap.ProcessedBundles).
		Dur("elapsed", snap.ElapsedTime).
		Msg("run finished")

	return progress, nil
}

func (r *Runner[T]) readBundle(
	ctx context.Context,
	src *source.Source[T],
	idx int,
	bundle source.Bundle,
	fn RowFunc[T],
	progress *Progress,
) error {
	seq, tracker := src.ReadBundle(bundle)

	var n int64
	for offset, row := range seq {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, offset, row); err != nil {
			return fmt.Errorf("bundle %d [%d, %d) failed at offset %d: %w",
				idx, bundle.Start, bundle.Stop, offset, err)
		}
		n++
	}
	if err := tracker.Err(); err != nil {
		return fmt.Errorf("bundle %d [%d, %d) failed: %w", idx, bundle.Start, bundle.Stop, err)
	}

	progress.AddBundle(n)
	r.logger.Debug().
		Int("bundle", idx).
		Int64("start", bundle.Start).
		Int64("stop", bundle.Stop).
		Int64("rows", n).
		Float64("fraction_consumed", tracker.FractionConsumed()).
		Msg("bundle read")

	if r.onProgress != nil {
		r.onProgress(progress)
	}
	return nil
}

// ReadAll runs src and returns its rows in offset order.
func (r *Runner[T]) ReadAll(ctx context.Context, src *source.Source[T]) ([]T, error) {
	if src == nil {
		return nil, ErrNilSource
	}

	out := make([]T, src.EstimateSize())

	// Bundles are disjoint, so each slot is written by exactly one goroutine.
	_, err := r.Run(ctx, src, func(_ context.Context, offset int64, row T) error {
		out[offset] = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
