// Package fingerprint derives compact, deterministic fingerprints for
// compiled code units and renders them as six-character codes.
//
// A fingerprint is a non-zero uint32 computed from the unit's source text,
// the source text containing it, and a Kind discriminator. Its display form
// (see Encode) is the stable identifier used in logs, profiles and diffs.
package fingerprint

import (
	"encoding/binary"
	"fmt"
)

// Kind distinguishes the two specializations compiled from the same text.
// KindConstruct sets the low bit of the fingerprint's XOR mask.
type Kind uint8

const (
	KindCall      Kind = 0
	KindConstruct Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindConstruct:
		return "construct"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind accepts the names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "call":
		return KindCall, nil
	case "construct":
		return KindConstruct, nil
	}
	return 0, fmt.Errorf("fingerprint: unknown kind %q (want call or construct)", s)
}

// Fingerprint identifies a compiled code unit. The zero value means unset;
// Compute never returns 0 or 1.
type Fingerprint uint32

// IsSet reports whether f was produced by Compute.
func (f Fingerprint) IsSet() bool {
	return f != 0
}

// String returns the six-character code.
func (f Fingerprint) String() string {
	return Encode(uint32(f))
}

// ParseFingerprint decodes a six-character code.
func ParseFingerprint(code string) (Fingerprint, error) {
	v, err := Decode(code)
	if err != nil {
		return 0, err
	}
	return Fingerprint(v), nil
}

// Hasher computes fingerprints with a fixed digest and sampling threshold.
// A Hasher is immutable and safe for concurrent use.
type Hasher struct {
	digest    Digest
	threshold int
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithDigest selects the digest primitive. Defaults to SHA1.
func WithDigest(d Digest) Option {
	return func(h *Hasher) { h.digest = d }
}

// WithSampleThreshold sets the unit text length at which derivation falls
// back to sampling. Defaults to DefaultSampleThreshold.
func WithSampleThreshold(n int) Option {
	return func(h *Hasher) { h.threshold = n }
}

// NewHasher creates a Hasher. It fails if the digest is nil or too narrow,
// or the threshold is not positive.
func NewHasher(opts ...Option) (*Hasher, error) {
	h := &Hasher{
		digest:    SHA1,
		threshold: DefaultSampleThreshold,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.digest == nil {
		return nil, fmt.Errorf("fingerprint: nil digest")
	}
	if err := checkDigest(h.digest); err != nil {
		return nil, err
	}
	if h.threshold <= 0 {
		return nil, fmt.Errorf("fingerprint: sample threshold must be positive, got %d", h.threshold)
	}
	return h, nil
}

var defaultHasher = &Hasher{digest: SHA1, threshold: DefaultSampleThreshold}

// Default returns the SHA-1 hasher with the default threshold.
func Default() *Hasher {
	return defaultHasher
}

// Digest returns the configured digest.
func (h *Hasher) Digest() Digest {
	return h.digest
}

// SampleThreshold returns the configured sampling threshold.
func (h *Hasher) SampleThreshold() int {
	return h.threshold
}

// Sampled reports whether unitText takes the sampling path.
func (h *Hasher) Sampled(unitText string) bool {
	return len(unitText) >= h.threshold
}

// Compute derives the fingerprint of a code unit. Only KindConstruct flips
// the low bit; any other kind fingerprints as KindCall.
//
// Units shorter than the threshold hash their own UTF-8 bytes. Longer units
// hash a bounded sample of containingText instead, so huge inputs cost
// O(SampleWindows) digest work; collisions between such units are accepted.
func (h *Hasher) Compute(unitText, containingText string, kind Kind) Fingerprint {
	d := h.digest.New()
	if h.Sampled(unitText) {
		writeSampled(d, containingText)
	} else {
		_, _ = d.Write([]byte(unitText))
	}
	sum := d.Sum(nil)
	v := normalize(binary.LittleEndian.Uint32(sum[:4]))
	if kind == KindConstruct {
		v ^= 1
	}
	return Fingerprint(v)
}

// Compute derives a fingerprint with the default hasher.
func Compute(unitText, containingText string, kind Kind) Fingerprint {
	return defaultHasher.Compute(unitText, containingText, kind)
}

// normalize keeps digest words out of the reserved pair {0, 1}. Because the
// pair is aligned on an even boundary and the kind only flips the low bit,
// no kind can map a normalized word back onto 0 or 1.
func normalize(v uint32) uint32 {
	if v == 0 || v == 1 {
		v += ReservedBump
	}
	return v
}
