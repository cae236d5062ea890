package coverage

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion prefixes every encoded snapshot.
const SnapshotVersion byte = 1

// Snapshot is a point-in-time copy of a tracker, ordered by source ID and
// then by registration order, so equal trackers encode to equal bytes.
type Snapshot struct {
	Version byte             `cbor:"1,keyasint"`
	Sources []SourceSnapshot `cbor:"2,keyasint"`
}

// SourceSnapshot holds the ranges of one source.
type SourceSnapshot struct {
	ID     SourceID        `cbor:"1,keyasint"`
	Ranges []ExecutedRange `cbor:"2,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("coverage: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot copies the current state of the tracker.
func (t *ExecutedRanges) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]SourceID, 0, len(t.sources))
	for id := range t.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	s := &Snapshot{Version: SnapshotVersion}
	for _, id := range ids {
		entries := t.sources[id].entries
		if len(entries) == 0 {
			continue
		}
		ranges := make([]ExecutedRange, len(entries))
		copy(ranges, entries)
		s.Sources = append(s.Sources, SourceSnapshot{ID: id, Ranges: ranges})
	}
	return s
}

// Restore merges a snapshot into the tracker. Ranges already present keep
// their executed flag unless the snapshot marks them executed. Inverted
// ranges are skipped.
func (t *ExecutedRanges) Restore(s *Snapshot) {
	for _, src := range s.Sources {
		for _, r := range src.Ranges {
			if r.Start > r.End {
				log.Debugf("skipping inverted range [%d,%d] of source %d in snapshot", r.Start, r.End, src.ID)
				continue
			}
			t.InsertUnexecuted(src.ID, r.Start, r.End)
			if r.Executed {
				t.MarkExecuted(src.ID, r.Start, r.End)
			}
		}
	}
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("coverage: unmarshal snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("coverage: unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}
