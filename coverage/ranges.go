// Package coverage records which ranges of a source have executed.
package coverage

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("codeprint.coverage")

// SourceID groups the ranges that belong to one logical source text.
type SourceID uint64

// Range is an offset interval within a source. Containment treats both
// ends as inclusive.
type Range struct {
	Start uint32
	End   uint32
}

// Contains reports whether Start <= offset <= End.
func (r Range) Contains(offset uint32) bool {
	return r.Start <= offset && offset <= r.End
}

// Width returns End - Start.
func (r Range) Width() uint32 {
	return r.End - r.Start
}

// ExecutedRange is a registered range and its execution flag.
type ExecutedRange struct {
	Start    uint32 `cbor:"1,keyasint"`
	End      uint32 `cbor:"2,keyasint"`
	Executed bool   `cbor:"3,keyasint"`
}

// Range returns the offsets of r.
func (r ExecutedRange) Range() Range {
	return Range{Start: r.Start, End: r.End}
}

// sourceRanges holds the ranges of one source in registration order.
type sourceRanges struct {
	entries []ExecutedRange
	index   map[Range]int
}

func newSourceRanges() *sourceRanges {
	return &sourceRanges{index: make(map[Range]int)}
}

// ---------------------------------------------------------------------------
// ExecutedRanges: per-source side table of executed code ranges
// ---------------------------------------------------------------------------

// ExecutedRanges tracks, per source, which registered ranges have executed
// at least once. A range is registered unexecuted when the code unit
// covering it is created and flipped to executed the first time the unit
// runs. Flags never go back to false.
//
// All methods are safe for concurrent use.
type ExecutedRanges struct {
	mu      sync.RWMutex
	sources map[SourceID]*sourceRanges

	registrations     atomic.Uint64
	unregisteredMarks atomic.Uint64
}

// NewExecutedRanges creates an empty tracker.
func NewExecutedRanges() *ExecutedRanges {
	return &ExecutedRanges{
		sources: make(map[SourceID]*sourceRanges),
	}
}

// InsertUnexecuted registers [start, end] of id as not yet executed.
// An existing identical range is left alone, so an executed flag is never
// downgraded. Inverted ranges (start > end) are ignored. Reports whether a
// new range was added.
func (t *ExecutedRanges) InsertUnexecuted(id SourceID, start, end uint32) bool {
	if start > end {
		log.Debugf("ignoring inverted range [%d,%d] for source %d", start, end, id)
		return false
	}
	r := Range{Start: start, End: end}

	t.mu.Lock()
	defer t.mu.Unlock()

	src := t.sources[id]
	if src == nil {
		src = newSourceRanges()
		t.sources[id] = src
	}
	if _, ok := src.index[r]; ok {
		return false
	}
	src.index[r] = len(src.entries)
	src.entries = append(src.entries, ExecutedRange{Start: start, End: end})
	t.registrations.Add(1)
	return true
}

// MarkExecuted flips the flag of the exact range [start, end] of id.
//
// Marking a range that was never registered is a silent no-op. Units can
// report execution for ranges they never registered when their allocation
// and collection race with instrumentation; such calls are only counted
// (see UnregisteredMarks). Reports whether the range was found.
func (t *ExecutedRanges) MarkExecuted(id SourceID, start, end uint32) bool {
	r := Range{Start: start, End: end}

	t.mu.Lock()
	defer t.mu.Unlock()

	if src := t.sources[id]; src != nil {
		if i, ok := src.index[r]; ok {
			src.entries[i].Executed = true
			return true
		}
	}
	t.unregisteredMarks.Add(1)
	log.Debugf("mark of unregistered range [%d,%d] for source %d", start, end, id)
	return false
}

// HasExecutedAt returns the flag of the narrowest registered range of id
// containing offset. Among ranges of equal width the earliest registered
// wins. Returns false when no range contains offset.
func (t *ExecutedRanges) HasExecutedAt(id SourceID, offset uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	src := t.sources[id]
	if src == nil {
		return false
	}

	found := false
	var best ExecutedRange
	for _, e := range src.entries {
		r := e.Range()
		if !r.Contains(offset) {
			continue
		}
		if !found || r.Width() < best.Range().Width() {
			best = e
			found = true
		}
	}
	return found && best.Executed
}

// AllRanges returns a copy of every range registered for id, in
// registration order.
func (t *ExecutedRanges) AllRanges(id SourceID) []ExecutedRange {
	t.mu.RLock()
	defer t.mu.RUnlock()

	src := t.sources[id]
	if src == nil {
		return nil
	}
	out := make([]ExecutedRange, len(src.entries))
	copy(out, src.entries)
	return out
}

// Sources returns the IDs of all sources with registered ranges, sorted.
func (t *ExecutedRanges) Sources() []SourceID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]SourceID, 0, len(t.sources))
	for id := range t.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RemoveSource forgets every range of id.
func (t *ExecutedRanges) RemoveSource(id SourceID) {
	t.mu.Lock()
	delete(t.sources, id)
	t.mu.Unlock()
}

// RangeCount returns the number of ranges registered across all sources.
func (t *ExecutedRanges) RangeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, src := range t.sources {
		n += len(src.entries)
	}
	return n
}

// Registrations returns the number of ranges ever added.
func (t *ExecutedRanges) Registrations() uint64 {
	return t.registrations.Load()
}

// UnregisteredMarks returns how many MarkExecuted calls named a range that
// was not registered.
func (t *ExecutedRanges) UnregisteredMarks() uint64 {
	return t.unregisteredMarks.Load()
}
