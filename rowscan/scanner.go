// Package rowscan finds near-identical reads that lie close together on
// a flowcell, comparing rows of reads in parallel.
//
// Reads must arrive sorted by y within each tile. Reads sharing a tile
// and a y coordinate form a row. When a row is complete it is handed to
// a comparison task that scans it, and every earlier row of the tile
// within the y window, for pairs within the x window whose sequences are
// within an edit distance threshold.
//
// Rows are reference counted by the tasks that scan them. A row that no
// future row can reach is retired; the last task to release a retired
// row returns it to a pool for reuse.
package rowscan

import (
	"context"
	"sort"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/spatialdup/util"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// ErrUnsorted is returned when y decreases within a tile.
var ErrUnsorted = errors.New("reads are not sorted by y within a tile")

// Opts configures a Scanner.
type Opts struct {
	// WinX and WinY define the window. Two reads can be duplicates only
	// if |Δx| < WinX and |Δy| <= WinY.
	WinX, WinY int
	// MaxEdits is the largest edit distance at which two sequences are
	// still duplicates. Zero requires identical sequences.
	MaxEdits int
	// Parallelism bounds the number of comparison tasks in flight.
	Parallelism int
	// OnDuplicate is called once for every read found to have a
	// duplicate. Calls are serialized but come from task goroutines in no
	// particular order.
	OnDuplicate func(name string)
}

// Read is one read to scan. Seq is copied by Add.
type Read struct {
	// Group is the tile the read belongs to. Group ids start at 1.
	Group int32
	X, Y  int
	Seq   []byte
	Name  string
}

// GroupMetrics holds counters for one group.
type GroupMetrics struct {
	Reads        uint64
	ReadsWithDup uint64
}

// Metrics holds the scanner counters.
type Metrics struct {
	Reads uint64
	// ReadsWithDup counts every read that has at least one duplicate,
	// once.
	ReadsWithDup uint64
	// Groups is indexed by group id. Groups[0] is unused.
	Groups []GroupMetrics
	// Tasks is the number of comparison tasks dispatched.
	Tasks uint64
	// ReusedRows is the number of rows served from the pool.
	ReusedRows uint64
}

type point struct {
	x      int
	off, n int // sequence within row.seqs.
	name   string
	dup    bool // guarded by Scanner.dupMu.
}

type row struct {
	group  int32
	y      int
	points []point
	seqs   []byte

	// Guarded by Scanner.mu.
	refs    int
	retired bool
}

func (r *row) seq(p *point) []byte { return r.seqs[p.off : p.off+p.n] }

// Scanner schedules row comparisons. Add and Finish must be called from
// a single goroutine.
type Scanner struct {
	ctx  context.Context
	opts Opts
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
	cur  *row // row being filled.

	mu   sync.Mutex
	rows []*row // rows still reachable by future rows, oldest first.
	pool []*row

	dupMu   sync.Mutex
	metrics Metrics
}

// New creates a scanner. ctx bounds how long Add may block waiting for
// a free task slot; tasks already dispatched always run to completion.
func New(ctx context.Context, opts Opts) *Scanner {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Scanner{
		ctx:  ctx,
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.Parallelism)),
	}
}

// Add adds a read. It blocks while Parallelism tasks are running and the
// read completes a row.
func (s *Scanner) Add(r Read) error {
	if r.Group <= 0 {
		log.Panicf("rowscan: invalid group %d", r.Group)
	}
	if c := s.cur; c != nil && (c.group != r.Group || c.y != r.Y) {
		if c.group == r.Group && r.Y < c.y {
			return errors.Wrapf(ErrUnsorted, "y %d after %d", r.Y, c.y)
		}
		if err := s.closeRow(); err != nil {
			return err
		}
	}
	if s.cur == nil {
		s.cur = s.newRow(r.Group, r.Y)
	}
	c := s.cur
	c.points = append(c.points, point{x: r.X, off: len(c.seqs), n: len(r.Seq), name: r.Name})
	c.seqs = append(c.seqs, r.Seq...)

	s.dupMu.Lock()
	s.metrics.Reads++
	s.group(r.Group).Reads++
	s.dupMu.Unlock()
	return nil
}

// Finish dispatches the last row, waits for every task and returns the
// final counters.
func (s *Scanner) Finish() (Metrics, error) {
	var err error
	if s.cur != nil {
		err = s.closeRow()
	}
	s.wg.Wait()

	s.mu.Lock()
	for _, r := range s.rows {
		r.retired = true
		s.release(r)
	}
	s.rows = nil
	s.mu.Unlock()

	s.dupMu.Lock()
	defer s.dupMu.Unlock()
	m := s.metrics
	m.Groups = append([]GroupMetrics(nil), s.metrics.Groups...)
	log.Debug.Printf("rowscan: %d tasks, %d rows reused, %d pooled", m.Tasks, m.ReusedRows, len(s.pool))
	return m, err
}

func (s *Scanner) newRow(group int32, y int) *row {
	s.mu.Lock()
	defer s.mu.Unlock()
	var r *row
	if n := len(s.pool); n > 0 {
		r = s.pool[n-1]
		s.pool = s.pool[:n-1]
		s.dupMu.Lock()
		s.metrics.ReusedRows++
		s.dupMu.Unlock()
	} else {
		r = &row{}
	}
	r.group, r.y = group, y
	return r
}

// closeRow hands the current row to a comparison task.
func (s *Scanner) closeRow() error {
	r := s.cur
	s.cur = nil
	sort.Slice(r.points, func(i, j int) bool { return r.points[i].x < r.points[j].x })

	s.mu.Lock()
	live := s.rows[:0]
	for _, o := range s.rows {
		if o.group != r.group || r.y-o.y > s.opts.WinY {
			o.retired = true
			if o.refs == 0 {
				s.release(o)
			}
			continue
		}
		live = append(live, o)
	}
	for i := len(live); i < len(s.rows); i++ {
		s.rows[i] = nil
	}
	s.rows = append(live, r)
	scan := append([]*row(nil), s.rows...)
	for _, o := range scan {
		o.refs++
	}
	s.mu.Unlock()

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		s.unref(scan)
		return err
	}
	s.dupMu.Lock()
	s.metrics.Tasks++
	s.dupMu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		s.compare(scan)
		s.unref(scan)
	}()
	return nil
}

func (s *Scanner) unref(rows []*row) {
	s.mu.Lock()
	for _, o := range rows {
		o.refs--
		if o.refs == 0 && o.retired {
			s.release(o)
		}
	}
	s.mu.Unlock()
}

// release clears a retired row that no task references and pools it.
// REQUIRES: s.mu is held.
func (s *Scanner) release(r *row) {
	if r.refs != 0 {
		return
	}
	r.points = r.points[:0]
	r.seqs = r.seqs[:0]
	r.retired = false
	s.pool = append(s.pool, r)
}

// compare checks the last row of scan against every row of scan,
// including itself.
func (s *Scanner) compare(scan []*row) {
	var (
		r     = scan[len(scan)-1]
		lev   util.Levenshtein
		limit = s.opts.MaxEdits + 1
		winX  = s.opts.WinX
	)
	for _, o := range scan {
		start := 0
		for i := range r.points {
			p := &r.points[i]
			for start < len(o.points) && o.points[start].x <= p.x-winX {
				start++
			}
			end := len(o.points)
			if o == r {
				end = i
			}
			for j := start; j < end; j++ {
				q := &o.points[j]
				if q.x >= p.x+winX {
					break
				}
				if lev.Bounded(r.seq(p), o.seq(q), limit) <= s.opts.MaxEdits {
					s.markDup(r, p, o, q)
				}
			}
		}
	}
}

func (s *Scanner) markDup(r *row, p *point, o *row, q *point) {
	s.dupMu.Lock()
	defer s.dupMu.Unlock()
	for _, d := range [...]struct {
		row *row
		pt  *point
	}{{r, p}, {o, q}} {
		if d.pt.dup {
			continue
		}
		d.pt.dup = true
		s.metrics.ReadsWithDup++
		s.group(d.row.group).ReadsWithDup++
		if s.opts.OnDuplicate != nil {
			s.opts.OnDuplicate(d.pt.name)
		}
	}
}

// REQUIRES: s.dupMu is held.
func (s *Scanner) group(id int32) *GroupMetrics {
	for int(id) >= len(s.metrics.Groups) {
		s.metrics.Groups = append(s.metrics.Groups, GroupMetrics{})
	}
	return &s.metrics.Groups[id]
}
