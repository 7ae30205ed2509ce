package dupscan

import (
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/spatialdup/dupindex"
	"github.com/pkg/errors"
)

// groupAssigner maps read name prefixes to group ids. In the sorted
// modes a group is a run of consecutive reads sharing a prefix, and a
// prefix that comes back opens a new group (an error in Sorted mode). In
// Unsorted mode every distinct prefix is a group.
type groupAssigner struct {
	mode     dupindex.Mode
	cur      int32
	prefix   string
	prevY    int
	ids      map[string]int32 // latest group of each prefix.
	prefixes []string // by id; prefixes[0] is unused.
	yMin     []int
	yMax     []int
}

func newGroupAssigner(mode dupindex.Mode) *groupAssigner {
	return &groupAssigner{
		mode:     mode,
		ids:      make(map[string]int32),
		prefixes: []string{""},
		yMin:     []int{0},
		yMax:     []int{0},
	}
}

// assign returns the group of a read with the given prefix and y.
func (g *groupAssigner) assign(prefix string, y int) (int32, error) {
	if g.mode == dupindex.Unsorted {
		id, ok := g.ids[prefix]
		if !ok {
			id = g.add(prefix, y)
		}
		g.observe(id, y)
		return id, nil
	}
	if g.cur == 0 || prefix != g.prefix {
		if _, ok := g.ids[prefix]; ok {
			tile := strings.TrimPrefix(prefix, "@")
			if g.mode == dupindex.Sorted {
				return 0, errors.Wrapf(ErrSortedness, "tile %s is not contiguous; see unsorted mode", tile)
			}
			log.Error.Printf("tile %s appears again after another tile; its reads are split across groups", tile)
		}
		g.cur = g.add(prefix, y)
		g.prefix = g.prefixes[g.cur]
		g.prevY = y
	} else if g.mode == dupindex.Sorted && y < g.prevY {
		return 0, errors.Wrapf(ErrSortedness, "tile %s: y %d after %d; see region-sorted or unsorted mode",
			strings.TrimPrefix(prefix, "@"), y, g.prevY)
	}
	g.prevY = y
	g.observe(g.cur, y)
	return g.cur, nil
}

func (g *groupAssigner) add(prefix string, y int) int32 {
	prefix = strings.Clone(prefix)
	id := int32(len(g.prefixes))
	g.ids[prefix] = id
	g.prefixes = append(g.prefixes, prefix)
	g.yMin = append(g.yMin, y)
	g.yMax = append(g.yMax, y)
	return id
}

func (g *groupAssigner) observe(id int32, y int) {
	if y < g.yMin[id] {
		g.yMin[id] = y
	}
	if y > g.yMax[id] {
		g.yMax[id] = y
	}
}

// maxSpread returns the largest y range seen within one group.
func (g *groupAssigner) maxSpread() int {
	var spread int
	for i := 1; i < len(g.prefixes); i++ {
		if d := g.yMax[i] - g.yMin[i]; d > spread {
			spread = d
		}
	}
	return spread
}
