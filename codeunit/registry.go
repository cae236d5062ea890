package codeunit

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/codeprint/coverage"
	"github.com/chazu/codeprint/fingerprint"
)

var log = commonlog.GetLogger("codeprint.codeunit")

// ErrBadRange is returned by Create when the unit's offsets do not lie
// within the containing text.
var ErrBadRange = errors.New("codeunit: range outside containing text")

// Spec describes a unit to create: the slice Text[Start:End] of a source,
// compiled for Kind.
type Spec struct {
	Source coverage.SourceID
	Text   string // full containing source text
	Start  uint32
	End    uint32
	Kind   fingerprint.Kind
	Name   string
}

// ---------------------------------------------------------------------------
// Registry: fingerprint index and execution tracking for code units
// ---------------------------------------------------------------------------

// Registry creates code units, indexes them by fingerprint and reports
// their execution to an ExecutedRanges tracker. Distinct units with the
// same text and kind share a fingerprint; all of them are kept.
//
// All methods are safe for concurrent use.
type Registry struct {
	hasher *fingerprint.Hasher
	ranges *coverage.ExecutedRanges

	mu    sync.RWMutex
	units map[fingerprint.Fingerprint][]*CodeUnit
	count int
}

// NewRegistry creates a registry. A nil hasher selects fingerprint.Default
// and a nil tracker creates a fresh one.
func NewRegistry(h *fingerprint.Hasher, ranges *coverage.ExecutedRanges) *Registry {
	if h == nil {
		h = fingerprint.Default()
	}
	if ranges == nil {
		ranges = coverage.NewExecutedRanges()
	}
	return &Registry{
		hasher: h,
		ranges: ranges,
		units:  make(map[fingerprint.Fingerprint][]*CodeUnit),
	}
}

// Hasher returns the hasher used for new units.
func (r *Registry) Hasher() *fingerprint.Hasher {
	return r.hasher
}

// Ranges returns the execution tracker.
func (r *Registry) Ranges() *coverage.ExecutedRanges {
	return r.ranges
}

// Create fingerprints a new unit, registers its covered offsets as
// unexecuted and indexes it. Empty units are indexed but not tracked.
func (r *Registry) Create(s Spec) (*CodeUnit, error) {
	if s.Start > s.End || uint64(s.End) > uint64(len(s.Text)) {
		return nil, fmt.Errorf("%w: [%d,%d) in %d bytes", ErrBadRange, s.Start, s.End, len(s.Text))
	}
	unitText := s.Text[s.Start:s.End]
	if r.hasher.Sampled(unitText) {
		log.Infof("unit %q is %d bytes; fingerprinting sampled source %d", s.Name, len(unitText), s.Source)
	}

	u := &CodeUnit{
		source: s.Source,
		start:  s.Start,
		end:    s.End,
		kind:   s.Kind,
		hash:   r.hasher.Compute(unitText, s.Text, s.Kind),
		name:   s.Name,
	}

	if c, ok := u.Covered(); ok {
		r.ranges.InsertUnexecuted(u.source, c.Start, c.End)
	}

	r.mu.Lock()
	r.units[u.hash] = append(r.units[u.hash], u)
	r.count++
	r.mu.Unlock()

	log.Debugf("created unit %s %q [%d,%d) of source %d", u.Code(), u.name, u.start, u.end, u.source)
	return u, nil
}

// Executed records one run of u. The first run marks its range executed.
func (r *Registry) Executed(u *CodeUnit) {
	if u.invocations.Add(1) != 1 {
		return
	}
	if c, ok := u.Covered(); ok {
		r.ranges.MarkExecuted(u.source, c.Start, c.End)
	}
}

// Release drops u from the fingerprint index. Its range stays in the
// tracker.
func (r *Registry) Release(u *CodeUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.units[u.hash]
	for i, v := range list {
		if v != u {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		r.count--
		break
	}
	if len(list) == 0 {
		delete(r.units, u.hash)
	} else {
		r.units[u.hash] = list
	}
}

// Lookup returns the units with fingerprint f, in creation order.
func (r *Registry) Lookup(f fingerprint.Fingerprint) []*CodeUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.units[f]
	if len(list) == 0 {
		return nil
	}
	out := make([]*CodeUnit, len(list))
	copy(out, list)
	return out
}

// LookupCode decodes a six-character code and returns its units.
func (r *Registry) LookupCode(code string) ([]*CodeUnit, error) {
	f, err := fingerprint.ParseFingerprint(code)
	if err != nil {
		return nil, err
	}
	return r.Lookup(f), nil
}

// Units returns every indexed unit ordered by fingerprint, then creation.
func (r *Registry) Units() []*CodeUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]fingerprint.Fingerprint, 0, len(r.units))
	for f := range r.units {
		keys = append(keys, f)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]*CodeUnit, 0, r.count)
	for _, f := range keys {
		out = append(out, r.units[f]...)
	}
	return out
}

// Count returns the number of indexed units.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
