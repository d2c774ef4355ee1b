// Package offsetrange implements a claim tracker over a half-open range of
// integer offsets.
//
// A Tracker hands out offsets to a single reader in strictly increasing
// order. Once an offset is claimed, every offset below it is considered
// consumed. A refused claim moves the tracker into the exhausted state, after
// which no further claims succeed.
package offsetrange

import (
	"errors"
	"fmt"
	"sync"
)

// Claim errors recorded by a Tracker. A refused claim at or past the stop
// position is normal exhaustion and records no error.
var (
	ErrInvalidRange       = errors.New("invalid offset range")
	ErrClaimBeforeStart   = errors.New("claimed offset is before the range start")
	ErrClaimNotIncreasing = errors.New("claimed offset is not greater than the last claim")
	ErrClaimAfterDone     = errors.New("cannot claim after the tracker is exhausted")
)

// State is the lifecycle position of a Tracker.
type State int

// Tracker states.
const (
	Unclaimed State = iota
	Claiming
	Exhausted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unclaimed:
		return "unclaimed"
	case Claiming:
		return "claiming"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Range is a half-open [Start, Stop) offset range.
type Range struct {
	Start int64
	Stop  int64
}

// Size returns the number of offsets in the range, or 0 when it is empty or
// inverted.
func (r Range) Size() int64 {
	if r.Stop <= r.Start {
		return 0
	}
	return r.Stop - r.Start
}

// Contains reports whether offset lies in [Start, Stop).
func (r Range) Contains(offset int64) bool {
	return offset >= r.Start && offset < r.Stop
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.Stop)
}

// Tracker is a claim cursor over one Range.
//
// Claims come from a single goroutine; the accessors may be called
// concurrently by an observer reporting progress.
type Tracker struct {
	mu          sync.Mutex
	rng         Range
	lastClaimed int64
	state       State
	err         error
}

// New returns a tracker over [start, stop). Bounds are not rejected here; an
// inverted range records ErrInvalidRange and refuses every claim.
func New(start, stop int64) *Tracker {
	t := &Tracker{
		rng:         Range{Start: start, Stop: stop},
		lastClaimed: start - 1,
	}
	if start < 0 || stop < start {
		t.state = Exhausted
		t.err = fmt.Errorf("%w: %s", ErrInvalidRange, t.rng)
	}
	return t
}

// StartPosition returns the first offset of the range.
func (t *Tracker) StartPosition() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Start
}

// StopPosition returns the exclusive end of the range.
func (t *Tracker) StopPosition() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Stop
}

// Range returns the current range.
func (t *Tracker) Range() Range {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng
}

// LastClaimed returns the last successfully claimed offset, or start-1 when
// nothing has been claimed.
func (t *Tracker) LastClaimed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastClaimed
}

// TryClaim attempts to claim offset. It returns false once offset reaches the
// stop position, and also when the claim breaks ordering, in which case Err
// reports why.
func (t *Tracker) TryClaim(offset int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Exhausted {
		if t.err == nil {
			t.err = fmt.Errorf("%w: offset %d", ErrClaimAfterDone, offset)
		}
		return false
	}
	if offset < t.rng.Start {
		t.state = Exhausted
		t.err = fmt.Errorf("%w: offset %d, range %s", ErrClaimBeforeStart, offset, t.rng)
		return false
	}
	if offset <= t.lastClaimed {
		t.state = Exhausted
		t.err = fmt.Errorf("%w: offset %d, last claimed %d", ErrClaimNotIncreasing, offset, t.lastClaimed)
		return false
	}
	if offset >= t.rng.Stop {
		t.state = Exhausted
		return false
	}

	t.lastClaimed = offset
	t.state = Claiming
	return true
}

// Err returns the first ordering or range error recorded by the tracker.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsDone reports whether no work remains: either the tracker is exhausted or
// the final offset of the range has been claimed.
func (t *Tracker) IsDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Exhausted || t.lastClaimed >= t.rng.Stop-1
}

// FractionConsumed returns the share of the range at or below the last claim,
// in [0, 1].
func (t *Tracker) FractionConsumed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := t.rng.Size()
	if size == 0 {
		return 1
	}
	consumed := t.lastClaimed - t.rng.Start + 1
	if consumed <= 0 {
		return 0
	}
	if consumed >= size {
		return 1
	}
	return float64(consumed) / float64(size)
}
