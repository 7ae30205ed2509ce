package dupindex

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/spatialdup/seqkey"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBases = 50

var (
	seqA = strings.Repeat("ACGTTGCA", 6) + "AC"
	seqB = strings.Repeat("TTGACCAG", 6) + "GT"
)

type pair struct{ newName, oldName string }

type harness struct {
	t     *testing.T
	codec *seqkey.Codec
	ix    *Index
	pairs []pair
}

func newHarness(t *testing.T, opts Opts) *harness {
	codec, err := seqkey.NewCodec(testBases, seqkey.Sum)
	require.NoError(t, err)
	h := &harness{t: t, codec: codec}
	if opts.HashBytes == 0 {
		opts.HashBytes = DefaultHashBytes
	}
	if opts.WinX == 0 && opts.WinY == 0 {
		opts.WinX, opts.WinY = 2500, 2500
	}
	if opts.Identify {
		opts.OnPair = func(newName, oldName string) {
			h.pairs = append(h.pairs, pair{newName, oldName})
		}
	}
	h.ix, err = New(codec, opts)
	require.NoError(t, err)
	return h
}

func (h *harness) insert(name string, group int32, x, y int, seq string) bool {
	return h.ix.Insert(Read{
		Group: group,
		X:     x,
		Y:     y,
		Key:   h.codec.Encode(nil, seq),
		Name:  name,
	})
}

func (h *harness) close() {
	require.NoError(h.t, h.ix.Close())
}

func TestNewConfig(t *testing.T) {
	codec, err := seqkey.NewCodec(testBases, seqkey.Sum)
	require.NoError(t, err)
	for _, opts := range []Opts{
		{HashBytes: 0},
		{HashBytes: 3},
		{HashBytes: 1000},
		{HashBytes: 2},
		{HashBytes: 1024, WinX: -1},
		{HashBytes: 1024, Mode: Mode(7)},
	} {
		_, err := New(codec, opts)
		assert.True(t, errors.Cause(err) == ErrConfig, "%+v: %v", opts, err)
	}
	ix, err := New(codec, Opts{HashBytes: 4})
	require.NoError(t, err)
	assert.Len(t, ix.heads, 1)
	require.NoError(t, ix.Close())
}

func TestTwoCloseReads(t *testing.T) {
	for _, identify := range []bool{false, true} {
		h := newHarness(t, Opts{Identify: identify})
		assert.False(t, h.insert("r1", 1, 100, 100, seqA))
		assert.True(t, h.insert("r2", 1, 105, 100, seqA))
		m := h.ix.Metrics()
		assert.EqualValues(t, 2, m.Reads)
		assert.EqualValues(t, 2, m.ReadsWithDup)
		assert.EqualValues(t, 2, m.Groups[1].ReadsWithDup)
		if identify {
			assert.Equal(t, []pair{{"r2", "r1"}}, h.pairs)
		}
		h.close()
	}
}

func TestOutsideXWindow(t *testing.T) {
	h := newHarness(t, Opts{})
	defer h.close()
	assert.False(t, h.insert("r1", 1, 100, 100, seqA))
	assert.False(t, h.insert("r2", 1, 3000, 100, seqA))
	// |Δx| == WinX is outside.
	assert.False(t, h.insert("r3", 1, 5500, 100, seqA))
	assert.EqualValues(t, 0, h.ix.Metrics().ReadsWithDup)
}

func TestDifferentGroups(t *testing.T) {
	for _, mode := range []Mode{Sorted, RegionSorted, Unsorted} {
		h := newHarness(t, Opts{Mode: mode})
		assert.False(t, h.insert("r1", 1, 100, 100, seqA))
		assert.False(t, h.insert("r2", 2, 100, 100, seqA), "mode %v", mode)
		if mode == Unsorted {
			assert.False(t, h.insert("r3", 1, 5000, 100, seqA))
			assert.True(t, h.insert("r4", 2, 100, 100, seqA))
		}
		h.close()
	}
}

func TestDifferentSequence(t *testing.T) {
	h := newHarness(t, Opts{})
	defer h.close()
	assert.False(t, h.insert("r1", 1, 100, 100, seqA))
	assert.False(t, h.insert("r2", 1, 100, 100, seqB))
	n := []byte(seqA)
	n[20] = 'N'
	assert.False(t, h.insert("r3", 1, 100, 100, string(n)))
	assert.True(t, h.insert("r4", 1, 100, 100, string(n)))
}

func TestSortedEviction(t *testing.T) {
	// A single bucket puts every entry on one chain.
	h := newHarness(t, Opts{HashBytes: 4, WinX: 10, WinY: 10})
	defer h.close()
	h.insert("r1", 1, 0, 0, seqA)
	h.insert("r2", 1, 100, 5, seqB)
	assert.Equal(t, 2, h.ix.Len())
	// y=11 is more than WinY past r1 only.
	assert.False(t, h.insert("r3", 1, 0, 11, seqA))
	assert.Equal(t, 2, h.ix.Len())
	assert.EqualValues(t, 1, h.ix.Metrics().Evicted)
	// A new group flushes everything else.
	h.insert("r4", 2, 0, 0, seqB)
	assert.Equal(t, 1, h.ix.Len())
	// Slots are recycled.
	h.insert("r5", 2, 500, 0, seqB)
	assert.Equal(t, 2, h.ix.Len())
	assert.Len(t, h.ix.entries, 3)
}

func TestRegionSortedKeepsOldY(t *testing.T) {
	h := newHarness(t, Opts{HashBytes: 4, WinX: 10, WinY: 10, Mode: RegionSorted})
	defer h.close()
	h.insert("r1", 1, 0, 100, seqA)
	// Far away in y: neither a duplicate nor evicted.
	assert.False(t, h.insert("r2", 1, 0, 0, seqA))
	assert.Equal(t, 2, h.ix.Len())
	// Back within the window of r1, in any order.
	assert.True(t, h.insert("r3", 1, 5, 95, seqA))
	assert.EqualValues(t, 2, h.ix.Metrics().ReadsWithDup)
	h.insert("r4", 2, 0, 0, seqB)
	assert.Equal(t, 1, h.ix.Len())
}

func TestUnsortedNeverEvicts(t *testing.T) {
	h := newHarness(t, Opts{HashBytes: 4, WinX: 10, WinY: 10, Mode: Unsorted})
	defer h.close()
	for i := 0; i < 100; i++ {
		h.insert("r", int32(i%3+1), i*100, i*100, seqA)
	}
	assert.Equal(t, 100, h.ix.Len())
	assert.EqualValues(t, 0, h.ix.Metrics().Evicted)
}

func TestCountingStopsAtFirstMatch(t *testing.T) {
	h := newHarness(t, Opts{HashBytes: 4})
	defer h.close()
	h.insert("r1", 1, 0, 0, seqA)
	h.insert("r2", 1, 3000, 0, seqA)
	// r3 is within the window of both r1 and r2, but the walk stops at r1.
	assert.True(t, h.insert("r3", 1, 1500, 0, seqA))
	assert.EqualValues(t, 2, h.ix.Metrics().ReadsWithDup)
	// r3 was linked ahead of r1.
	head := h.ix.heads[0]
	assert.Equal(t, int32(1500), h.ix.entries[head].x)
	assert.Equal(t, int32(0), h.ix.entries[h.ix.entries[head].next].x)
}

func TestIdentifyReportsEveryPair(t *testing.T) {
	h := newHarness(t, Opts{HashBytes: 4, Identify: true})
	defer h.close()
	h.insert("r1", 1, 0, 0, seqA)
	h.insert("r2", 1, 3000, 0, seqA)
	h.insert("rb", 1, 1500, 0, seqB)
	assert.True(t, h.insert("r3", 1, 1500, 0, seqA))
	assert.Equal(t, []pair{{"r3", "r1"}, {"r3", "r2"}}, h.pairs)
	assert.EqualValues(t, 3, h.ix.Metrics().ReadsWithDup)
	assert.True(t, h.insert("r4", 1, 1500, 10, seqA))
	assert.Len(t, h.pairs, 5)
	assert.EqualValues(t, 4, h.ix.Metrics().ReadsWithDup)
}

// TestSymmetric checks that a duplicate is found whatever the arrival
// order of the two reads, in the modes that accept unordered y.
func TestSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for _, mode := range []Mode{RegionSorted, Unsorted} {
		for i := 0; i < 200; i++ {
			x0, y0 := r.Intn(10000), r.Intn(10000)
			x1, y1 := x0+r.Intn(4999)-2499, y0+r.Intn(5001)-2500
			h := newHarness(t, Opts{Mode: mode, Identify: i%2 == 0})
			h.insert("a", 1, x1, y1, seqA)
			assert.True(t, h.insert("b", 1, x0, y0, seqA))
			h.close()

			h = newHarness(t, Opts{Mode: mode})
			h.insert("b", 1, x0, y0, seqA)
			assert.True(t, h.insert("a", 1, x1, y1, seqA))
			h.close()
		}
	}
}

// TestBruteForce compares identified pairs against an exhaustive scan of
// y-sorted input.
func TestBruteForce(t *testing.T) {
	type read struct {
		name  string
		group int32
		x, y  int
		seq   string
	}
	r := rand.New(rand.NewSource(1))
	seqs := []string{seqA, seqB}
	var reads []read
	y := 0
	for i := 0; i < 2000; i++ {
		y += r.Intn(20)
		reads = append(reads, read{
			name:  string(rune('A'+i%26)) + strings.Repeat("x", i/26),
			group: int32(i/500 + 1),
			x:     r.Intn(5000),
			y:     y,
			seq:   seqs[r.Intn(len(seqs))],
		})
		if i%500 == 499 {
			y = 0
		}
	}
	const win = 200
	var want []pair
	dups := map[string]bool{}
	for i, b := range reads {
		for _, a := range reads[:i] {
			if a.group == b.group && abs(a.x-b.x) < win && abs(a.y-b.y) <= win && a.seq == b.seq {
				want = append(want, pair{b.name, a.name})
				dups[a.name], dups[b.name] = true, true
			}
		}
	}
	require.NotEmpty(t, want)

	h := newHarness(t, Opts{HashBytes: 64, WinX: win, WinY: win, Identify: true})
	defer h.close()
	for _, rd := range reads {
		h.insert(rd.name, rd.group, rd.x, rd.y, rd.seq)
	}
	assert.ElementsMatch(t, want, h.pairs)
	assert.EqualValues(t, len(dups), h.ix.Metrics().ReadsWithDup)
	assert.True(t, h.ix.Len() < len(reads)/2, "live %d", h.ix.Len())

	// The counting variant flags every read that has an earlier partner.
	c := newHarness(t, Opts{HashBytes: 64, WinX: win, WinY: win})
	defer c.close()
	var found int
	for _, rd := range reads {
		if c.insert(rd.name, rd.group, rd.x, rd.y, rd.seq) {
			found++
		}
	}
	later := map[string]bool{}
	for _, p := range want {
		later[p.newName] = true
	}
	assert.Equal(t, len(later), found)
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, Policy{EvictByAge: true, EvictByGroup: true}, PolicyFor(Sorted))
	assert.Equal(t, Policy{EvictByGroup: true}, PolicyFor(RegionSorted))
	assert.Equal(t, Policy{}, PolicyFor(Unsorted))
	assert.Equal(t, "region-sorted", RegionSorted.String())
}

func BenchmarkInsert(b *testing.B) {
	codec, err := seqkey.NewCodec(testBases, seqkey.Sum)
	if err != nil {
		b.Fatal(err)
	}
	ix, err := New(codec, Opts{HashBytes: DefaultHashBytes, WinX: 2500, WinY: 2500})
	if err != nil {
		b.Fatal(err)
	}
	defer ix.Close()
	r := rand.New(rand.NewSource(0))
	keys := make([]seqkey.Key, 1024)
	for i := range keys {
		seq := make([]byte, testBases)
		for j := range seq {
			seq[j] = "ACGT"[r.Intn(4)]
		}
		keys[i] = codec.Encode(nil, string(seq))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Insert(Read{Group: 1, X: r.Intn(30000), Y: i / 16, Key: keys[i%len(keys)]})
	}
}
