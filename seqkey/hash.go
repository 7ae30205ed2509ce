package seqkey

import (
	"fmt"
	"strings"

	"blainsmith.com/go/seahash"
	farm "github.com/dgryski/go-farm"
	"github.com/minio/highwayhash"
)

// HashKind selects the function used to place keys in hash buckets.
type HashKind int

const (
	// Sum adds the code words.
	Sum HashKind = iota
	// Farm is farmhash over the little-endian code words.
	Farm
	// Sea is seahash over the little-endian code words.
	Sea
	// Highway is highwayhash-64 over the little-endian code words.
	Highway
)

// highwayKey is the fixed 32-byte key for Highway.
var highwayKey = []byte("spatialdup.seqkey.highwayhash.k0")

var hashNames = []string{"sum", "farm", "sea", "highway"}

// String implements fmt.Stringer.
func (h HashKind) String() string {
	if h < 0 || int(h) >= len(hashNames) {
		return fmt.Sprintf("HashKind(%d)", int(h))
	}
	return hashNames[h]
}

// ParseHashKind parses a name produced by HashKind.String.
func ParseHashKind(s string) (HashKind, error) {
	for i, name := range hashNames {
		if strings.EqualFold(s, name) {
			return HashKind(i), nil
		}
	}
	return Sum, fmt.Errorf("unknown hash %q, must be one of %s", s, strings.Join(hashNames, ", "))
}

func hashBytes(kind HashKind, b []byte) uint64 {
	switch kind {
	case Farm:
		return farm.Hash64(b)
	case Sea:
		return seahash.Sum64(b)
	case Highway:
		return highwayhash.Sum64(b, highwayKey)
	}
	panic(kind)
}
