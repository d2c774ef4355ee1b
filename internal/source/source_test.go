package source_test

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/framesource/internal/metrics"
	"github.com/rshade/framesource/internal/offsetrange"
	"github.com/rshade/framesource/internal/rows"
	"github.com/rshade/framesource/internal/source"
)

func intRows(n int) rows.Slice[int] {
	r := make(rows.Slice[int], n)
	for i := range r {
		r[i] = i * 10
	}
	return r
}

// readAll drains one read pass and returns the offsets it produced.
func readAll[T any](src *source.Source[T], tracker source.RangeTracker) []int64 {
	var offsets []int64
	for off := range src.Read(tracker) {
		offsets = append(offsets, off)
	}
	return offsets
}

func TestEstimateSize(t *testing.T) {
	src := source.New[int](intRows(7))
	assert.Equal(t, int64(7), src.EstimateSize())
	assert.Equal(t, int64(7), src.EstimateSize())

	_ = slices.Collect(src.Split(2))
	_ = readAll(src, src.GetRangeTracker())
	assert.Equal(t, int64(7), src.EstimateSize(), "split and read must not change the size")

	assert.Equal(t, int64(0), source.New[int](intRows(0)).EstimateSize())
}

func TestSplit(t *testing.T) {
	b := func(start, stop int64) source.Bundle {
		return source.Bundle{Start: start, Stop: stop, Weight: float64(stop - start)}
	}

	tests := []struct {
		name    string
		n       int
		size    int64
		opts    []source.RangeOption
		legacy  bool
		bundles []source.Bundle
	}{
		{
			name:    "ten rows in threes",
			n:       10,
			size:    3,
			bundles: []source.Bundle{b(0, 3), b(3, 6), b(6, 9), b(9, 10)},
		},
		{
			name:    "exact multiple",
			n:       6,
			size:    2,
			bundles: []source.Bundle{b(0, 2), b(2, 4), b(4, 6)},
		},
		{
			name:    "size larger than range",
			n:       4,
			size:    100,
			bundles: []source.Bundle{b(0, 4)},
		},
		{
			name:    "sub range",
			n:       10,
			size:    4,
			opts:    []source.RangeOption{source.From(2), source.To(9)},
			bundles: []source.Bundle{b(2, 6), b(6, 9)},
		},
		{
			name:    "non-positive size keeps range whole",
			n:       5,
			size:    0,
			bundles: []source.Bundle{b(0, 5)},
		},
		{
			name: "start at end",
			n:    5,
			size: 2,
			opts: []source.RangeOption{source.From(5)},
		},
		{
			name: "empty collection",
			n:    0,
			size: 3,
		},
		{
			name:    "legacy collapses to one bundle",
			n:       10,
			size:    3,
			legacy:  true,
			bundles: []source.Bundle{b(0, 10)},
		},
		{
			name:    "legacy ignores stop",
			n:       10,
			size:    3,
			opts:    []source.RangeOption{source.From(4), source.To(6)},
			legacy:  true,
			bundles: []source.Bundle{b(4, 10)},
		},
		{
			name:    "legacy oversized bundle",
			n:       10,
			size:    25,
			legacy:  true,
			bundles: []source.Bundle{b(0, 25)},
		},
		{
			name:   "legacy start past end",
			n:      3,
			size:   1,
			opts:   []source.RangeOption{source.From(3)},
			legacy: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []source.Option
			if tt.legacy {
				opts = append(opts, source.WithLegacySplit())
			}
			src := source.New[int](intRows(tt.n), opts...)
			got := slices.Collect(src.Split(tt.size, tt.opts...))
			assert.Equal(t, tt.bundles, got)
		})
	}
}

func TestSplit_CoversRangeExactly(t *testing.T) {
	for n := 0; n <= 25; n++ {
		src := source.New[int](intRows(n))
		for start := int64(0); start <= int64(n); start++ {
			for stop := start; stop <= int64(n); stop++ {
				for size := int64(1); size <= 7; size++ {
					next := start
					for bundle := range src.Split(size, source.From(start), source.To(stop)) {
						require.Equal(t, next, bundle.Start, "n=%d [%d,%d) size=%d", n, start, stop, size)
						require.Greater(t, bundle.Stop, bundle.Start)
						require.LessOrEqual(t, bundle.Size(), size)
						require.InDelta(t, float64(bundle.Size()), bundle.Weight, 1e-9)
						next = bundle.Stop
					}
					require.Equal(t, stop, next, "n=%d [%d,%d) size=%d", n, start, stop, size)
				}
			}
		}
	}
}

func TestSplit_HugeBundleSize(t *testing.T) {
	src := source.New[int](intRows(10))

	tests := []struct {
		name string
		opts []source.RangeOption
		want []source.Bundle
	}{
		{name: "full range", want: []source.Bundle{{Start: 0, Stop: 10, Weight: 10}}},
		{name: "from 5", opts: []source.RangeOption{source.From(5)}, want: []source.Bundle{{Start: 5, Stop: 10, Weight: 5}}},
		{
			name: "from 9 to 10",
			opts: []source.RangeOption{source.From(9), source.To(10)},
			want: []source.Bundle{{Start: 9, Stop: 10, Weight: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slices.Collect(src.Split(math.MaxInt64, tt.opts...)))
			assert.Equal(t, tt.want, slices.Collect(src.Split(math.MaxInt64-3, tt.opts...)))
		})
	}
}

func TestSplit_EarlyBreak(t *testing.T) {
	src := source.New[int](intRows(100))
	var seen int
	for range src.Split(10) {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestGetRangeTracker_Defaults(t *testing.T) {
	src := source.New[int](intRows(8))

	tr := src.GetRangeTracker()
	assert.Equal(t, offsetrange.Range{Start: 0, Stop: 8}, tr.Range())

	tr = src.GetRangeTracker(source.From(3))
	assert.Equal(t, offsetrange.Range{Start: 3, Stop: 8}, tr.Range())

	tr = src.GetRangeTracker(source.To(5))
	assert.Equal(t, offsetrange.Range{Start: 0, Stop: 5}, tr.Range())

	tr = src.GetRangeTracker(source.From(6), source.To(2))
	assert.ErrorIs(t, tr.Err(), offsetrange.ErrInvalidRange)
}

func TestRead_FullRange(t *testing.T) {
	counter := metrics.NewCounter(source.RecordsReadCounter)
	src := source.New[int](intRows(5), source.WithCounter(counter))

	var offsets []int64
	var values []int
	for off, v := range src.Read(src.GetRangeTracker()) {
		offsets = append(offsets, off)
		values = append(values, v)
	}

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, offsets)
	assert.Equal(t, []int{0, 10, 20, 30, 40}, values)
	assert.Equal(t, int64(5), counter.Value())
}

func TestRead_RestrictedRange(t *testing.T) {
	tests := []struct {
		name         string
		start, stop  int64
		scanFromZero bool
		want         []int64
		wantErr      error
	}{
		{name: "middle", start: 3, stop: 7, want: []int64{3, 4, 5, 6}},
		{name: "prefix", start: 0, stop: 2, want: []int64{0, 1}},
		{name: "empty", start: 4, stop: 4},
		{name: "scan from zero over prefix", start: 0, stop: 3, scanFromZero: true, want: []int64{0, 1, 2}},
		{
			name:         "scan from zero refuses offsets below start",
			start:        3,
			stop:         7,
			scanFromZero: true,
			wantErr:      offsetrange.ErrClaimBeforeStart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := metrics.NewCounter("rows")
			opts := []source.Option{source.WithCounter(counter)}
			if tt.scanFromZero {
				opts = append(opts, source.WithScanFromZero())
			}
			src := source.New[int](intRows(10), opts...)
			tr := src.GetRangeTracker(source.From(tt.start), source.To(tt.stop))

			got := readAll(src, tr)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int64(len(tt.want)), counter.Value())
			for _, off := range got {
				assert.True(t, off >= tt.start && off < tt.stop, "offset %d outside [%d,%d)", off, tt.start, tt.stop)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, tr.Err(), tt.wantErr)
			} else {
				assert.NoError(t, tr.Err())
			}
			assert.Equal(t, offsetrange.Exhausted, tr.State())
		})
	}
}

// refusingTracker refuses one offset and records every claim it sees.
type refusingTracker struct {
	start  int64
	refuse int64
	claims []int64
}

func (r *refusingTracker) StartPosition() int64 { return r.start }

func (r *refusingTracker) TryClaim(offset int64) bool {
	r.claims = append(r.claims, offset)
	return offset != r.refuse
}

func TestRead_StopsAtFirstRefusal(t *testing.T) {
	src := source.New[int](intRows(10))
	tr := &refusingTracker{start: 0, refuse: 4}

	assert.Equal(t, []int64{0, 1, 2, 3}, readAll(src, tr))
	// Offsets after the refusal would have been accepted but are never offered.
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, tr.claims)
}

func TestRead_NeverPastLastRow(t *testing.T) {
	src := source.New[int](intRows(3))
	tr := &refusingTracker{start: 0, refuse: -1}

	assert.Equal(t, []int64{0, 1, 2}, readAll(src, tr))
	assert.Equal(t, []int64{0, 1, 2}, tr.claims)
}

func TestRead_EarlyBreakCountsYieldedRows(t *testing.T) {
	counter := metrics.NewCounter("rows")
	src := source.New[int](intRows(10), source.WithCounter(counter))

	for off := range src.Read(src.GetRangeTracker()) {
		if off == 2 {
			break
		}
	}
	assert.Equal(t, int64(3), counter.Value())
}

func TestRead_RequiresFreshTracker(t *testing.T) {
	src := source.New[int](intRows(4))
	tr := src.GetRangeTracker()

	assert.Len(t, readAll(src, tr), 4)
	assert.Empty(t, readAll(src, tr))
	assert.ErrorIs(t, tr.Err(), offsetrange.ErrClaimNotIncreasing)

	tr = src.GetRangeTracker(source.To(2))
	assert.Len(t, readAll(src, tr), 2)
	assert.Empty(t, readAll(src, tr))
	assert.ErrorIs(t, tr.Err(), offsetrange.ErrClaimAfterDone)
}

func TestReadBundle(t *testing.T) {
	reg := metrics.NewRegistry("test")
	counter := reg.MustCounter(source.RecordsReadCounter, "")
	src := source.New[int](intRows(10), source.WithCounter(counter))

	var all []int64
	for bundle := range src.Split(3) {
		seq, tr := src.ReadBundle(bundle)
		for off := range seq {
			all = append(all, off)
		}
		require.NoError(t, tr.Err())
	}

	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)
	assert.Equal(t, map[string]int64{source.RecordsReadCounter: 10}, reg.Snapshot())
}

func TestRead_LegacyCombination(t *testing.T) {
	// With both literal behaviours the first bundle spans everything and
	// starts at zero, so a full read still yields every row.
	counter := metrics.NewCounter("rows")
	src := source.New[int](intRows(6),
		source.WithLegacySplit(), source.WithScanFromZero(), source.WithCounter(counter))

	bundles := slices.Collect(src.Split(2))
	require.Len(t, bundles, 1)

	seq, tr := src.ReadBundle(bundles[0])
	var got []int64
	for off := range seq {
		got = append(got, off)
	}
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, got)
	assert.NoError(t, tr.Err())
	assert.Equal(t, int64(6), counter.Value())
}

func TestBundle_Size(t *testing.T) {
	assert.Equal(t, int64(3), source.Bundle{Start: 2, Stop: 5}.Size())
	assert.Equal(t, int64(0), source.Bundle{Start: 5, Stop: 2}.Size())
}
