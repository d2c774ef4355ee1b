// Package source adapts an in-memory row collection into a bounded source
// that a batch engine can split into bundles and read in parallel.
//
// A Source answers four questions for the engine: how many rows there are
// (EstimateSize), how to cut the offset range into weighted bundles (Split),
// how to track claims over one bundle (GetRangeTracker), and which rows a
// claimed range produces (Read). Each read pass uses its own tracker; the
// underlying collection is shared read-only between passes.
package source

import (
	"iter"

	"github.com/rs/zerolog"

	"github.com/rshade/framesource/internal/metrics"
	"github.com/rshade/framesource/internal/offsetrange"
	"github.com/rshade/framesource/internal/rows"
)

// RecordsReadCounter is the name of the counter incremented once per row read.
const RecordsReadCounter = "records_read"

// RangeTracker is the claim contract a read pass depends on.
type RangeTracker interface {
	StartPosition() int64
	TryClaim(offset int64) bool
}

// Counter receives one increment per row produced by Read.
type Counter interface {
	Inc()
}

// Bundle is a half-open offset range [Start, Stop) with a scheduling weight.
type Bundle struct {
	Start  int64   `json:"start"`
	Stop   int64   `json:"stop"`
	Weight float64 `json:"weight"`
}

// Size returns the number of offsets the bundle covers.
func (b Bundle) Size() int64 {
	if b.Stop <= b.Start {
		return 0
	}
	return b.Stop - b.Start
}

// Option configures a Source.
type Option func(*options)

type options struct {
	counter      Counter
	logger       zerolog.Logger
	legacySplit  bool
	scanFromZero bool
}

// WithCounter injects the counter Read increments per row.
func WithCounter(c Counter) Option {
	return func(o *options) {
		o.counter = c
	}
}

// WithLogger sets the logger used for split and read diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLegacySplit computes each bundle stop as max(N, start+size) instead of
// min(stop, start+size). Every split then collapses to one bundle ending at
// N whenever the desired size is smaller than the remaining rows.
func WithLegacySplit() Option {
	return func(o *options) {
		o.legacySplit = true
	}
}

// WithScanFromZero makes Read offer offsets from 0 rather than from the
// tracker's start. With a tracker that refuses offsets below its start, a
// pass over any range not starting at 0 then produces nothing.
func WithScanFromZero() Option {
	return func(o *options) {
		o.scanFromZero = true
	}
}

// Source is a bounded, splittable view over a row collection.
type Source[T any] struct {
	rows rows.Collection[T]
	opts options
}

// New wraps collection. Without WithCounter, rows are counted on a private
// counter that is not exported anywhere.
func New[T any](collection rows.Collection[T], opts ...Option) *Source[T] {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.counter == nil {
		o.counter = metrics.NewCounter(RecordsReadCounter)
	}
	o.logger = o.logger.With().Str("component", "source").Logger()
	return &Source[T]{rows: collection, opts: o}
}

// EstimateSize returns the number of rows.
func (s *Source[T]) EstimateSize() int64 {
	return int64(s.rows.Len())
}

// RangeOption overrides one bound of the range passed to Split or
// GetRangeTracker.
type RangeOption func(*bounds)

type bounds struct {
	start, stop int64
}

// From sets the first offset. Defaults to 0.
func From(start int64) RangeOption {
	return func(b *bounds) { b.start = start }
}

// To sets the exclusive end offset. Defaults to the row count.
func To(stop int64) RangeOption {
	return func(b *bounds) { b.stop = stop }
}

func (s *Source[T]) resolve(opts []RangeOption) bounds {
	b := bounds{start: 0, stop: s.EstimateSize()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Split lazily yields bundles of at most desiredBundleSize offsets that
// together cover [start, stop). A non-positive size yields the whole range as
// one bundle.
func (s *Source[T]) Split(desiredBundleSize int64, opts ...RangeOption) iter.Seq[Bundle] {
	b := s.resolve(opts)
	n := s.EstimateSize()
	legacy := s.opts.legacySplit

	s.opts.logger.Debug().
		Int64("desired_bundle_size", desiredBundleSize).
		Int64("start", b.start).
		Int64("stop", b.stop).
		Bool("legacy", legacy).
		Msg("splitting source")

	return func(yield func(Bundle) bool) {
		if legacy {
			for start := b.start; start < n; {
				stop := max(n, start+desiredBundleSize)
				if !yield(newBundle(start, stop)) {
					return
				}
				start = stop
			}
			return
		}

		if desiredBundleSize <= 0 {
			if b.start < b.stop {
				yield(newBundle(b.start, b.stop))
			}
			return
		}
		for start := b.start; start < b.stop; {
			stop := b.stop
			if desiredBundleSize < b.stop-start {
				stop = start + desiredBundleSize
			}
			if !yield(newBundle(start, stop)) {
				return
			}
			start = stop
		}
	}
}

func newBundle(start, stop int64) Bundle {
	return Bundle{Start: start, Stop: stop, Weight: float64(stop - start)}
}

// GetRangeTracker returns a fresh tracker over [start, stop). Bounds are
// passed through unchecked; the tracker records invalid ones.
func (s *Source[T]) GetRangeTracker(opts ...RangeOption) *offsetrange.Tracker {
	b := s.resolve(opts)
	return offsetrange.New(b.start, b.stop)
}

// Read lazily yields (offset, row) pairs claimed through tracker. Offsets are
// offered in increasing order up to the last row; the pass ends at the first
// refused claim. Each yielded row increments the read counter once.
func (s *Source[T]) Read(tracker RangeTracker) iter.Seq2[int64, T] {
	return func(yield func(int64, T) bool) {
		n := s.EstimateSize()
		first := tracker.StartPosition()
		if s.opts.scanFromZero || first < 0 {
			first = 0
		}

		for i := first; i < n; i++ {
			if !tracker.TryClaim(i) {
				s.opts.logger.Trace().
					Int64("first", first).
					Int64("refused", i).
					Msg("read pass ended")
				return
			}
			s.opts.counter.Inc()
			if !yield(i, s.rows.At(int(i))) {
				return
			}
		}
	}
}

// ReadBundle reads one bundle with a tracker created for it. The tracker is
// returned so callers can inspect its error once the pass ends.
func (s *Source[T]) ReadBundle(b Bundle) (iter.Seq2[int64, T], *offsetrange.Tracker) {
	tracker := s.GetRangeTracker(From(b.Start), To(b.Stop))
	return s.Read(tracker), tracker
}
