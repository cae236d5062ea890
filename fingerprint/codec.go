package fingerprint

import (
	"errors"
	"fmt"
)

// Sentinel errors for Decode. A *DecodeError matches exactly one of them
// under errors.Is.
var (
	ErrWrongLength      = errors.New("fingerprint: code must be exactly 6 characters")
	ErrInvalidCharacter = errors.New("fingerprint: character outside code alphabet")
	ErrOutOfRange       = errors.New("fingerprint: code exceeds 32-bit range")
)

// DecodeErrorKind classifies a failed decode.
type DecodeErrorKind uint8

const (
	WrongLength DecodeErrorKind = iota + 1
	InvalidCharacter
	OutOfRange
)

func (k DecodeErrorKind) String() string {
	switch k {
	case WrongLength:
		return "wrong length"
	case InvalidCharacter:
		return "invalid character"
	case OutOfRange:
		return "out of range"
	default:
		return fmt.Sprintf("DecodeErrorKind(%d)", uint8(k))
	}
}

// DecodeError reports why a string is not a valid six-character code.
type DecodeError struct {
	Kind DecodeErrorKind
	Code string

	// Pos and Char locate the offending byte for InvalidCharacter.
	Pos  int
	Char byte
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case WrongLength:
		return fmt.Sprintf("fingerprint: decode %q: length %d, want %d", e.Code, len(e.Code), CodeLength)
	case InvalidCharacter:
		return fmt.Sprintf("fingerprint: decode %q: invalid character %q at %d", e.Code, e.Char, e.Pos)
	default:
		return fmt.Sprintf("fingerprint: decode %q: %s", e.Code, e.Kind)
	}
}

// Unwrap returns the sentinel matching e.Kind.
func (e *DecodeError) Unwrap() error {
	switch e.Kind {
	case WrongLength:
		return ErrWrongLength
	case InvalidCharacter:
		return ErrInvalidCharacter
	case OutOfRange:
		return ErrOutOfRange
	}
	return nil
}

// Encode renders v as six base-62 digits, most significant first.
// Every uint32 has exactly one encoding.
func Encode(v uint32) string {
	var buf [CodeLength]byte
	acc := v
	for i := CodeLength - 1; i >= 0; i-- {
		buf[i] = Alphabet[acc%Base]
		acc /= Base
	}
	return string(buf[:])
}

// Decode is the inverse of Encode. It rejects strings that are not exactly
// CodeLength bytes, contain a byte outside Alphabet, or denote a value
// above 2^32-1.
func Decode(code string) (uint32, error) {
	if len(code) != CodeLength {
		return 0, &DecodeError{Kind: WrongLength, Code: code}
	}
	var acc uint64
	for i := 0; i < CodeLength; i++ {
		d := decodeTable[code[i]]
		if d == 0 {
			return 0, &DecodeError{Kind: InvalidCharacter, Code: code, Pos: i, Char: code[i]}
		}
		acc = acc*Base + uint64(d-1)
	}
	if acc > uint64(^uint32(0)) {
		return 0, &DecodeError{Kind: OutOfRange, Code: code}
	}
	return uint32(acc), nil
}

// ValidCode reports whether code decodes without error.
func ValidCode(code string) bool {
	_, err := Decode(code)
	return err == nil
}
