package fingerprint

import (
	"encoding/binary"
	"hash"
)

// ---------------------------------------------------------------------------
// Bounded sampling of oversized source text.
//
// Encoding conventions (little-endian throughout):
//   - Length prefix: len(text) as uint64 (8B)
//   - Samples: one code unit per window, widened to uint16 (2B)
//
// At most SampleWindows+1 samples are written, whatever the text length.
// ---------------------------------------------------------------------------

type sampler struct {
	buf []byte
}

func (s *sampler) writeUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *sampler) writeUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

// sampleStep returns the distance between sampled code units.
func sampleStep(n int) int {
	return n/SampleWindows + 1
}

// sampleText serializes the length of text and its sampled code units.
func sampleText(text string) []byte {
	n := len(text)
	s := &sampler{buf: make([]byte, 0, 8+2*(SampleWindows+1))}
	s.writeUint64(uint64(n))

	step := sampleStep(n)
	for i := 0; i < n; i += step {
		s.writeUint16(uint16(text[i]))
	}
	return s.buf
}

// writeSampled feeds the sampled form of text into h.
func writeSampled(h hash.Hash, text string) {
	// hash.Hash.Write never returns an error.
	_, _ = h.Write(sampleText(text))
}
