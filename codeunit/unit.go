// Package codeunit models compiled code units and the registry that
// fingerprints them and tracks their execution.
package codeunit

import (
	"sync/atomic"

	"github.com/chazu/codeprint/coverage"
	"github.com/chazu/codeprint/fingerprint"
)

// ---------------------------------------------------------------------------
// CodeUnit: a compiled specialization of a source range
// ---------------------------------------------------------------------------

// CodeUnit is one compiled unit of a source. Its fingerprint is computed
// once, when the unit is created, and never changes.
type CodeUnit struct {
	// Identity
	source coverage.SourceID
	start  uint32 // offset of the unit in the containing text
	end    uint32 // offset one past the unit's last code unit
	kind   fingerprint.Kind
	hash   fingerprint.Fingerprint
	name   string // for debugging

	// Execution
	invocations atomic.Uint64
}

// Source returns the ID of the containing source.
func (u *CodeUnit) Source() coverage.SourceID {
	return u.source
}

// Range returns the offsets the unit covers.
func (u *CodeUnit) Range() coverage.Range {
	return coverage.Range{Start: u.start, End: u.end}
}

// Covered returns the offsets the unit occupies with both ends inclusive,
// as the range tracker records them. An empty unit covers no offset and
// reports false.
func (u *CodeUnit) Covered() (coverage.Range, bool) {
	if u.end == u.start {
		return coverage.Range{}, false
	}
	return coverage.Range{Start: u.start, End: u.end - 1}, true
}

// Kind returns the specialization kind.
func (u *CodeUnit) Kind() fingerprint.Kind {
	return u.kind
}

// Fingerprint returns the unit's fingerprint.
func (u *CodeUnit) Fingerprint() fingerprint.Fingerprint {
	return u.hash
}

// Code renders the fingerprint as its six-character code. The string is
// not cached.
func (u *CodeUnit) Code() string {
	return u.hash.String()
}

// Name returns the debugging name.
func (u *CodeUnit) Name() string {
	return u.name
}

// Invocations returns how many times the unit has been reported executed.
func (u *CodeUnit) Invocations() uint64 {
	return u.invocations.Load()
}

// HasExecuted reports whether the unit has run at least once.
func (u *CodeUnit) HasExecuted() bool {
	return u.invocations.Load() > 0
}

// String returns the code followed by the debugging name.
func (u *CodeUnit) String() string {
	if u.name == "" {
		return u.Code()
	}
	return u.Code() + " " + u.name
}
