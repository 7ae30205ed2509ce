// Package dupindex implements a hash index that finds reads with the same
// sequence key lying within a pixel window of each other on a flowcell.
//
// The index is a chained hash table over an arena of entries. Reads are
// inserted in stream order; while an insert walks its bucket chain it
// unlinks entries that can no longer match any future read under the
// configured Mode, so for sorted input the table size is bounded by the
// number of reads in a y window rather than by the input size.
//
// An Index is not thread safe.
package dupindex

import (
	"math"
	"unsafe"

	"github.com/grailbio/base/log"
	"github.com/grailbio/spatialdup/seqkey"
	"github.com/pkg/errors"
)

// ErrConfig is returned by New for unusable options.
var ErrConfig = errors.New("invalid index configuration")

// DefaultHashBytes is the default bucket array budget.
const DefaultHashBytes = 512 * 1024 * 8

const refSize = int(unsafe.Sizeof(uint32(0)))

// Opts configures an Index.
type Opts struct {
	// HashBytes is the size of the bucket array in bytes. It must be a
	// power of two. Each bucket takes 4 bytes.
	HashBytes int
	// WinX and WinY define the window. Two reads can be duplicates only
	// if |Δx| < WinX and |Δy| <= WinY.
	WinX, WinY int
	// Mode is the ordering guarantee of the input.
	Mode Mode
	// Identify makes Insert report every duplicate partner of a read
	// through OnPair. Otherwise Insert stops at the first partner.
	Identify bool
	// OnPair is called with the names of the incoming read and of the
	// earlier read it duplicates. Used only when Identify is set.
	OnPair func(newName, oldName string)
}

// Read describes one read to insert.
type Read struct {
	// Group is the tile the read belongs to. Group ids start at 1.
	Group int32
	X, Y  int
	Key   seqkey.Key
	// Name identifies the read in OnPair callbacks.
	Name string
}

// GroupMetrics holds counters for one group.
type GroupMetrics struct {
	Reads        uint64
	ReadsWithDup uint64
}

// Metrics holds the index counters.
type Metrics struct {
	// Reads is the number of reads inserted.
	Reads uint64
	// ReadsWithDup is the number of reads found to have at least one
	// duplicate. Every read is counted at most once, whichever side of
	// the duplicate relationship it was on.
	ReadsWithDup uint64
	// Evicted is the number of entries unlinked by the eviction policy.
	Evicted uint64
	// Groups is indexed by group id. Groups[0] is unused.
	Groups []GroupMetrics
}

type entry struct {
	next  uint32 // arena slot of the next entry in the chain; 0 ends it.
	group int32
	x, y  int32
	dup   bool // counted in ReadsWithDup.
}

// Index is a spatially windowed duplicate index.
type Index struct {
	opts    Opts
	policy  Policy
	codec   *seqkey.Codec
	stride  int
	mask    uint64
	heads   []uint32
	release func() error

	// Arena. Slot 0 is a sentinel so that zeroed heads are empty chains.
	entries []entry
	keys    []uint64 // stride words per slot.
	names   []string // per slot, only if opts.Identify.
	free    []uint32
	live    int

	metrics Metrics
}

// New creates an index for keys produced by codec.
func New(codec *seqkey.Codec, opts Opts) (*Index, error) {
	n := opts.HashBytes / refSize
	if opts.HashBytes <= 0 || opts.HashBytes&(opts.HashBytes-1) != 0 || n == 0 {
		return nil, errors.Wrapf(ErrConfig, "hash size %d is not a power of two of at least %d bytes", opts.HashBytes, refSize)
	}
	if opts.WinX < 0 || opts.WinY < 0 {
		return nil, errors.Wrapf(ErrConfig, "negative window %dx%d", opts.WinX, opts.WinY)
	}
	if opts.Mode < Sorted || opts.Mode > Unsorted {
		return nil, errors.Wrapf(ErrConfig, "unknown mode %v", opts.Mode)
	}
	heads, release := allocHeads(n)
	ix := &Index{
		opts:    opts,
		policy:  PolicyFor(opts.Mode),
		codec:   codec,
		stride:  codec.Len(),
		mask:    uint64(n - 1),
		heads:   heads,
		release: release,
		entries: make([]entry, 1, 1024),
		keys:    make([]uint64, codec.Len(), 1024*codec.Len()),
	}
	if opts.Identify {
		ix.names = make([]string, 1, 1024)
	}
	log.Debug.Printf("dupindex: %d buckets, window %dx%d, mode %v", n, opts.WinX, opts.WinY, opts.Mode)
	return ix, nil
}

// Insert adds r to the index and reports whether an earlier read in the
// index is a duplicate of it.
//
// A retained entry is a duplicate of r if it has the same group, its
// coordinates are within the window and its key equals r.Key. Without
// Identify, the walk stops at the first duplicate and r is linked ahead
// of it. With Identify, every duplicate is reported through OnPair and r
// is appended to the chain.
func (ix *Index) Insert(r Read) bool {
	if len(r.Key) != ix.stride {
		log.Panicf("dupindex: key has %d words, want %d", len(r.Key), ix.stride)
	}
	if r.Group <= 0 {
		log.Panicf("dupindex: invalid group %d", r.Group)
	}
	g := ix.group(r.Group)
	ix.metrics.Reads++
	g.Reads++

	var (
		bucket = ix.codec.Hash(r.Key) & ix.mask
		winX   = ix.opts.WinX
		winY   = ix.opts.WinY
		found  bool
		prev   uint32 // 0: the bucket head.
		cur    = ix.heads[bucket]
	)
	for cur != 0 {
		e := &ix.entries[cur]
		next := e.next
		dy := r.Y - int(e.y)
		if (ix.policy.EvictByAge && dy > winY) || (ix.policy.EvictByGroup && e.group != r.Group) {
			ix.setNext(bucket, prev, next)
			ix.evict(cur)
			cur = next
			continue
		}
		if e.group == r.Group && abs(dy) <= winY && abs(r.X-int(e.x)) < winX &&
			(!found || ix.opts.Identify) && ix.key(cur).Equal(r.Key) {
			if !found {
				found = true
				ix.metrics.ReadsWithDup++
				g.ReadsWithDup++
			}
			if !e.dup {
				e.dup = true
				ix.metrics.ReadsWithDup++
				g.ReadsWithDup++
			}
			if ix.opts.Identify {
				if ix.opts.OnPair != nil {
					ix.opts.OnPair(r.Name, ix.names[cur])
				}
			} else {
				slot := ix.alloc(&r, true)
				ix.entries[slot].next = cur
				ix.setNext(bucket, prev, slot)
				return true
			}
		}
		prev = cur
		cur = next
	}
	ix.setNext(bucket, prev, ix.alloc(&r, found))
	return found
}

// Len returns the number of entries currently held.
func (ix *Index) Len() int { return ix.live }

// Metrics returns a snapshot of the index counters.
func (ix *Index) Metrics() Metrics {
	m := ix.metrics
	m.Groups = append([]GroupMetrics(nil), ix.metrics.Groups...)
	return m
}

// Close releases the bucket array. The index must not be used afterwards.
func (ix *Index) Close() error {
	ix.heads = nil
	ix.entries, ix.keys, ix.names, ix.free = nil, nil, nil, nil
	release := ix.release
	ix.release = func() error { return nil }
	return release()
}

func (ix *Index) group(id int32) *GroupMetrics {
	for int(id) >= len(ix.metrics.Groups) {
		ix.metrics.Groups = append(ix.metrics.Groups, GroupMetrics{})
	}
	return &ix.metrics.Groups[id]
}

func (ix *Index) key(slot uint32) seqkey.Key {
	off := int(slot) * ix.stride
	return ix.keys[off : off+ix.stride]
}

func (ix *Index) setNext(bucket uint64, prev, slot uint32) {
	if prev == 0 {
		ix.heads[bucket] = slot
	} else {
		ix.entries[prev].next = slot
	}
}

func (ix *Index) alloc(r *Read, dup bool) uint32 {
	var slot uint32
	if n := len(ix.free); n > 0 {
		slot = ix.free[n-1]
		ix.free = ix.free[:n-1]
		copy(ix.key(slot), r.Key)
	} else {
		if uint64(len(ix.entries)) >= math.MaxUint32 {
			log.Panicf("dupindex: more than %d live entries", uint32(math.MaxUint32)-1)
		}
		slot = uint32(len(ix.entries))
		ix.entries = append(ix.entries, entry{})
		ix.keys = append(ix.keys, r.Key...)
		if ix.opts.Identify {
			ix.names = append(ix.names, "")
		}
	}
	ix.entries[slot] = entry{group: r.Group, x: int32(r.X), y: int32(r.Y), dup: dup}
	if ix.opts.Identify {
		ix.names[slot] = r.Name
	}
	ix.live++
	return slot
}

func (ix *Index) evict(slot uint32) {
	if ix.opts.Identify {
		ix.names[slot] = ""
	}
	ix.free = append(ix.free, slot)
	ix.live--
	ix.metrics.Evicted++
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
