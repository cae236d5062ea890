package coverage

import (
	"encoding/binary"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// PathSourceID derives the SourceID of a file from its cleaned absolute
// path: the first eight bytes, little-endian, of the path's BLAKE3 digest.
// The same file keeps its ID across runs regardless of argument order.
func PathSourceID(path string) (SourceID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	sum := blake3.Sum256([]byte(abs))
	return SourceID(binary.LittleEndian.Uint64(sum[:8])), nil
}
