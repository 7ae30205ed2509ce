package dupindex

import "fmt"

// Mode is an input ordering assumption. It determines which entries an
// insert may discard while walking a bucket chain.
type Mode int

const (
	// Sorted input is ordered by y within each tile, and tiles are not
	// interleaved.
	Sorted Mode = iota
	// RegionSorted input keeps each tile contiguous, but reads within a
	// tile are in no particular order.
	RegionSorted
	// Unsorted input makes no ordering promise. Nothing is ever evicted,
	// so the index holds the whole input.
	Unsorted
)

var modeNames = []string{"sorted", "region-sorted", "unsorted"}

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Policy is the eviction strategy for a Mode.
type Policy struct {
	// EvictByAge drops entries whose y lies more than WinY behind the
	// incoming read.
	EvictByAge bool
	// EvictByGroup drops entries from a group other than the incoming
	// read's.
	EvictByGroup bool
}

// PolicyFor returns the eviction policy that is sound for mode m.
func PolicyFor(m Mode) Policy {
	switch m {
	case Sorted:
		return Policy{EvictByAge: true, EvictByGroup: true}
	case RegionSorted:
		return Policy{EvictByGroup: true}
	default:
		return Policy{}
	}
}
