package fingerprint

import (
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"sort"

	"github.com/zeebo/blake3"
)

// ErrUnknownDigest is returned by DigestByName for an unregistered name.
var ErrUnknownDigest = errors.New("fingerprint: unknown digest")

// Digest is a collision-resistant hash primitive used as the front end of
// fingerprint derivation. New must return a fresh hash whose Size is at
// least MinDigestSize.
type Digest interface {
	Name() string
	New() hash.Hash
}

type digestFunc struct {
	name string
	fn   func() hash.Hash
}

func (d *digestFunc) Name() string   { return d.name }
func (d *digestFunc) New() hash.Hash { return d.fn() }

// Shipped digests. SHA1 reproduces the historical fingerprints.
var (
	SHA1   Digest = &digestFunc{"sha1", sha1.New}
	SHA256 Digest = &digestFunc{"sha256", sha256.New}
	BLAKE3 Digest = &digestFunc{"blake3", func() hash.Hash { return blake3.New() }}
)

var digests = map[string]Digest{
	SHA1.Name():   SHA1,
	SHA256.Name(): SHA256,
	BLAKE3.Name(): BLAKE3,
}

// DigestByName resolves a configured digest name.
func DigestByName(name string) (Digest, error) {
	d, ok := digests[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDigest, name)
	}
	return d, nil
}

// DigestNames lists the registered digest names, sorted.
func DigestNames() []string {
	names := make([]string, 0, len(digests))
	for n := range digests {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func checkDigest(d Digest) error {
	if size := d.New().Size(); size < MinDigestSize {
		return fmt.Errorf("fingerprint: digest %s produces %d bytes, need at least %d", d.Name(), size, MinDigestSize)
	}
	return nil
}
