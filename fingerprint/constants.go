package fingerprint

// ---------------------------------------------------------------------------
// Frozen constants for fingerprint derivation and display.
//
// IMPORTANT: These values are FROZEN. Fingerprints and their six-character
// codes appear in logs and profiler output and are diffed across runs.
// Changing any of them changes every fingerprint ever printed.
// ---------------------------------------------------------------------------

// Alphabet is the ordered symbol set of the six-character code. The index of
// a symbol is its digit value.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Base is the digit base of the code (len(Alphabet)).
const Base = 62

// CodeLength is the fixed width of an encoded fingerprint.
const CodeLength = 6

// DefaultSampleThreshold is the unit text length (in bytes) at and above
// which derivation switches to sampling the containing text.
const DefaultSampleThreshold = 500_000_000

// SampleWindows bounds the number of code units sampled from oversized
// text: the step is n/SampleWindows + 1.
const SampleWindows = 1024

// ReservedBump moves digest words that land on a reserved value (0 or 1)
// out of the reserved zone. It is even, so the low bit is preserved.
const ReservedBump uint32 = 0x2d5a93d0

// MinDigestSize is the smallest digest output (in bytes) accepted from a
// Digest implementation.
const MinDigestSize = 20

// maxCode is the largest value representable in CodeLength symbols.
const maxCode = uint64(Base) * Base * Base * Base * Base * Base

// decodeTable maps a byte to its digit value plus one; zero marks a byte
// outside the alphabet.
var decodeTable [256]byte

func init() {
	for i := 0; i < len(Alphabet); i++ {
		decodeTable[Alphabet[i]] = byte(i + 1)
	}
}
