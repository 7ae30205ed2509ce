// Package seqkey encodes fixed-length nucleotide substrings into compact
// keys that can be compared and hashed a word at a time.
//
// A key of B bases occupies W = ceil(B/32) code words followed by
// ceil(W/2) flag words. Each base contributes bits 1-2 of its ASCII code
// to a code word (A=00, C=01, T=10, G=11) and bit 3 to a flag word, so N
// (0x4e) shares G's code but is told apart by its flag.
package seqkey

import (
	"encoding/binary"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

const (
	// BasesPerWord is the number of bases packed into one code word.
	BasesPerWord = 32
	// MaxWords is the widest key supported.
	MaxWords = 10
	// MaxBases is the longest substring that can be encoded.
	MaxBases = MaxWords * BasesPerWord

	codeMask = 0x0606060606060606
	flagMask = 0x0808080808080808
)

// ErrWidth is returned when a codec is requested for zero bases or more
// than MaxBases.
var ErrWidth = errors.New("unsupported key width")

// Key is an encoded substring. Keys produced by one Codec all have the
// same length.
type Key []uint64

// Equal reports whether k and o encode the same substring, including the
// positions of ambiguous bases.
func (k Key) Equal(o Key) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// Codec encodes substrings of a fixed length. A Codec is not thread safe:
// it keeps scratch buffers for padding and hashing.
type Codec struct {
	bases     int
	words     int
	flagWords int
	hash      HashKind
	seq       []byte // zero-padded copy of the input, words*32 bytes.
	bytes     []byte // little-endian code words, for byte-oriented hashes.
}

// NewCodec returns a codec for substrings of the given number of bases.
func NewCodec(bases int, hash HashKind) (*Codec, error) {
	if bases <= 0 || bases > MaxBases {
		return nil, errors.Wrapf(ErrWidth, "%d bases (supported: 1 to %d)", bases, MaxBases)
	}
	words := (bases + BasesPerWord - 1) / BasesPerWord
	return &Codec{
		bases:     bases,
		words:     words,
		flagWords: (words + 1) / 2,
		hash:      hash,
		seq:       make([]byte, words*BasesPerWord),
		bytes:     make([]byte, words*8),
	}, nil
}

// Bases returns the number of bases per key.
func (c *Codec) Bases() int { return c.bases }

// Words returns the number of code words per key.
func (c *Codec) Words() int { return c.words }

// Len returns the total number of uint64s per key, code and flag words
// together.
func (c *Codec) Len() int { return c.words + c.flagWords }

// Encode encodes seq into dst, growing dst if needed, and returns it.
// len(seq) must equal c.Bases().
func (c *Codec) Encode(dst Key, seq string) Key {
	if len(seq) != c.bases {
		log.Panicf("seqkey: encode %d bases with a %d base codec", len(seq), c.bases)
	}
	n := copy(c.seq, seq)
	return c.pack(dst, n)
}

// EncodePair encodes the concatenation r1+r2 into dst. Mate 1 occupies
// the low positions of the key and mate 2 the high ones.
// len(r1)+len(r2) must equal c.Bases().
func (c *Codec) EncodePair(dst Key, r1, r2 string) Key {
	if len(r1)+len(r2) != c.bases {
		log.Panicf("seqkey: encode %d+%d bases with a %d base codec", len(r1), len(r2), c.bases)
	}
	n := copy(c.seq, r1)
	n += copy(c.seq[n:], r2)
	return c.pack(dst, n)
}

func (c *Codec) pack(dst Key, n int) Key {
	for i := n; i < len(c.seq); i++ {
		c.seq[i] = 0
	}
	if cap(dst) < c.Len() {
		dst = make(Key, c.Len())
	}
	dst = dst[:c.Len()]
	flags := dst[c.words:]
	for i := range flags {
		flags[i] = 0
	}
	for i := 0; i < c.words; i++ {
		b := c.seq[i*BasesPerWord:]
		b0 := binary.LittleEndian.Uint64(b[0:])
		b1 := binary.LittleEndian.Uint64(b[8:])
		b2 := binary.LittleEndian.Uint64(b[16:])
		b3 := binary.LittleEndian.Uint64(b[24:])
		dst[i] = (b0&codeMask)>>1 | (b1&codeMask)<<1 | (b2&codeMask)<<3 | (b3&codeMask)<<5

		// Even words fill the low nibble of each flag byte, odd words the high one.
		shift := uint(i&1) * 4
		flags[i/2] |= ((b0&flagMask)>>3)<<shift |
			((b1&flagMask)>>3)<<(shift+1) |
			((b2&flagMask)>>3)<<(shift+2) |
			((b3&flagMask)>>3)<<(shift+3)
	}
	return dst
}

// Hash returns the hash of k under the codec's hash kind. Only the code
// words contribute, so keys differing only in N flags may collide.
func (c *Codec) Hash(k Key) uint64 {
	codes := k[:c.words]
	if c.hash == Sum {
		var h uint64
		for _, w := range codes {
			h += w
		}
		return h
	}
	for i, w := range codes {
		binary.LittleEndian.PutUint64(c.bytes[i*8:], w)
	}
	return hashBytes(c.hash, c.bytes)
}
