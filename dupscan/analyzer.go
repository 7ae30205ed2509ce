// Package dupscan counts and identifies spatial duplicates in FASTQ
// streams. It reads records, assigns them to tiles, and feeds them to
// either the exact hash index (dupindex) or the approximate row scanner
// (rowscan).
package dupscan

import (
	"context"
	"io"
	"math"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/spatialdup/dupindex"
	"github.com/grailbio/spatialdup/encoding/fastq"
	"github.com/grailbio/spatialdup/illumina"
	"github.com/grailbio/spatialdup/rowscan"
	"github.com/grailbio/spatialdup/seqkey"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const batchSize = 256

// Input holds the streams of a run.
type Input struct {
	// R1 is the FASTQ stream of the first (or only) mate.
	R1 io.Reader
	// R2 is the FASTQ stream of the second mate. It is nil for
	// single-end data.
	R2 io.Reader
	// Pairs receives "new\told" lines in identifying mode and one read
	// name per line in approximate mode. It may be nil.
	Pairs io.Writer
}

type record struct {
	r1, r2 fastq.Read
}

// Run reads every record of in and returns the duplicate counters.
// Any error aborts the run.
func Run(ctx context.Context, in Input, opts Opts) (Metrics, error) {
	paired := in.R2 != nil
	if err := opts.Validate(paired); err != nil {
		return Metrics{}, err
	}
	a, err := newAnalyzer(ctx, in, opts, paired)
	if err != nil {
		return Metrics{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []record, opts.QueueLength)
	g.Go(func() error {
		defer close(batches)
		return readRecords(gctx, in, paired, batches)
	})
	g.Go(func() error {
		for batch := range batches {
			for i := range batch {
				if err := a.add(&batch[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	err = g.Wait()
	m, ferr := a.finish()
	if err == nil {
		err = ferr
	}
	if err != nil {
		return Metrics{}, err
	}
	return m, nil
}

// readRecords scans the input into batches until EOF, an error, or
// cancellation. An input without any record is an error.
func readRecords(ctx context.Context, in Input, paired bool, out chan<- []record) error {
	const fields = fastq.ID | fastq.Seq
	var (
		scan    func(*record) bool
		scanErr func() error
	)
	if paired {
		s := fastq.NewPairScanner(in.R1, in.R2, fields)
		scan = func(r *record) bool { return s.Scan(&r.r1, &r.r2) }
		scanErr = s.Err
	} else {
		s := fastq.NewScanner(in.R1, fields)
		scan = func(r *record) bool { return s.Scan(&r.r1) }
		scanErr = s.Err
	}
	send := func(batch []record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var (
		batch = make([]record, 0, batchSize)
		n     int
	)
	for {
		batch = batch[:len(batch)+1]
		if !scan(&batch[len(batch)-1]) {
			batch = batch[:len(batch)-1]
			break
		}
		n++
		if len(batch) == batchSize {
			if err := send(batch); err != nil {
				return err
			}
			batch = make([]record, 0, batchSize)
		}
	}
	if err := scanErr(); err != nil {
		if err == fastq.ErrDiscordant {
			return errors.Wrap(ErrPairMismatch, "R1 and R2 have different numbers of records")
		}
		return errors.Wrap(err, "reading FASTQ")
	}
	if n == 0 {
		return errors.Wrap(fastq.ErrShort, "input has no records")
	}
	if len(batch) > 0 {
		return send(batch)
	}
	return nil
}

// analyzer is the consumer side of Run. It is used by one goroutine,
// except for the row scanner's callbacks.
type analyzer struct {
	opts   Opts
	paired bool
	groups *groupAssigner
	codec  *seqkey.Codec
	index  *dupindex.Index
	rows   *rowscan.Scanner

	key     seqkey.Key
	seq     []byte
	records int
	short   uint64

	mu    sync.Mutex // guards pairs and pairErr for the row scanner.
	pairs *tsv.Writer
	// pairErr is the first error writing pairs.
	pairErr error
}

func newAnalyzer(ctx context.Context, in Input, opts Opts, paired bool) (*analyzer, error) {
	a := &analyzer{
		opts:   opts,
		paired: paired,
		groups: newGroupAssigner(opts.Mode),
	}
	if in.Pairs != nil {
		a.pairs = tsv.NewWriter(in.Pairs)
	}
	if opts.Approximate {
		ropts := rowscan.Opts{
			WinX:        opts.WinX,
			WinY:        opts.WinY,
			MaxEdits:    opts.MaxEdits,
			Parallelism: opts.Parallelism,
		}
		if a.pairs != nil {
			ropts.OnDuplicate = a.writeName
		}
		a.rows = rowscan.New(ctx, ropts)
		return a, nil
	}
	codec, err := seqkey.NewCodec(opts.Bases(paired), opts.Hash)
	if err != nil {
		return nil, err
	}
	iopts := dupindex.Opts{
		HashBytes: opts.HashBytes,
		WinX:      opts.WinX,
		WinY:      opts.WinY,
		Mode:      opts.Mode,
		Identify:  opts.Identify,
	}
	if opts.Identify && a.pairs != nil {
		iopts.OnPair = a.writePair
	}
	if a.index, err = dupindex.New(codec, iopts); err != nil {
		return nil, err
	}
	a.codec = codec
	return a, nil
}

func (a *analyzer) add(r *record) error {
	a.records++
	if a.opts.ProgressInterval > 0 && a.records%a.opts.ProgressInterval == 0 {
		log.Printf("Analysed %9d reads.", a.records)
	}
	c, err := illumina.ParseCoords(r.r1.ID)
	if err != nil {
		return err
	}
	if c.X < math.MinInt32 || c.X > math.MaxInt32 || c.Y < math.MinInt32 || c.Y > math.MaxInt32 {
		return errors.Wrapf(illumina.ErrFormat, "%q: coordinates out of range", r.r1.ID)
	}
	if a.paired {
		if err := checkMates(&r.r1, &r.r2); err != nil {
			return err
		}
	}
	group, err := a.groups.assign(c.Prefix, c.Y)
	if err != nil {
		return err
	}
	start, end := a.opts.Start, a.opts.End
	if len(r.r1.Seq) < end {
		a.short++
		return nil
	}
	if a.rows != nil {
		a.seq = append(a.seq[:0], r.r1.Seq[start:end]...)
		if a.paired {
			a.seq = append(a.seq, r.r2.Seq[start:end]...)
		}
		return a.rows.Add(rowscan.Read{Group: group, X: c.X, Y: c.Y, Seq: a.seq, Name: c.Name})
	}
	if a.paired {
		a.key = a.codec.EncodePair(a.key, r.r1.Seq[start:end], r.r2.Seq[start:end])
	} else {
		a.key = a.codec.Encode(a.key, r.r1.Seq[start:end])
	}
	a.index.Insert(dupindex.Read{Group: group, X: c.X, Y: c.Y, Key: a.key, Name: c.Name})
	return a.pairErr
}

// checkMates verifies that r1 and r2 are two mates of one fragment.
func checkMates(r1, r2 *fastq.Read) error {
	n1, n2 := illumina.ReadName(r1.ID), illumina.ReadName(r2.ID)
	switch {
	case n1 != n2:
		return errors.Wrapf(ErrPairMismatch, "read names %q and %q differ", n1, n2)
	case len(r1.ID) != len(r2.ID):
		return errors.Wrapf(ErrPairMismatch, "%s: header lengths %d and %d differ", n1, len(r1.ID), len(r2.ID))
	case len(r1.Seq) != len(r2.Seq):
		return errors.Wrapf(ErrPairMismatch, "%s: sequence lengths %d and %d differ", n1, len(r1.Seq), len(r2.Seq))
	}
	return nil
}

func (a *analyzer) writePair(newName, oldName string) {
	if a.pairErr != nil {
		return
	}
	a.pairs.WriteString(newName)
	a.pairs.WriteString(oldName)
	if err := a.pairs.EndLine(); err != nil {
		a.pairErr = errors.Wrap(err, "writing pairs")
	}
}

func (a *analyzer) writeName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pairErr != nil {
		return
	}
	a.pairs.WriteString(name)
	if err := a.pairs.EndLine(); err != nil {
		a.pairErr = errors.Wrap(err, "writing duplicate names")
	}
}

// finish drains the matcher, flushes the pair output and assembles the
// metrics. It is called once, after the consumer has stopped.
func (a *analyzer) finish() (Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if a.rows != nil {
		var rm rowscan.Metrics
		rm, err = a.rows.Finish()
		m.Reads, m.ReadsWithDup = rm.Reads, rm.ReadsWithDup
		m.Groups = a.groupMetrics(func(id int32) (uint64, uint64) {
			if int(id) < len(rm.Groups) {
				return rm.Groups[id].Reads, rm.Groups[id].ReadsWithDup
			}
			return 0, 0
		})
	} else {
		im := a.index.Metrics()
		m.Reads, m.ReadsWithDup = im.Reads, im.ReadsWithDup
		m.Groups = a.groupMetrics(func(id int32) (uint64, uint64) {
			if int(id) < len(im.Groups) {
				return im.Groups[id].Reads, im.Groups[id].ReadsWithDup
			}
			return 0, 0
		})
		log.Debug.Printf("dupscan: %d entries live, %d evicted", a.index.Len(), im.Evicted)
		if cerr := a.index.Close(); err == nil {
			err = cerr
		}
	}
	m.ShortReads = a.short
	if a.opts.Mode == dupindex.RegionSorted {
		log.Printf("Largest y spread within a tile: %d", a.groups.maxSpread())
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		err = a.pairErr
	}
	if a.pairs != nil {
		if ferr := a.pairs.Flush(); err == nil && ferr != nil {
			err = errors.Wrap(ferr, "writing pairs")
		}
	}
	return m, err
}

func (a *analyzer) groupMetrics(counts func(id int32) (reads, withDup uint64)) []GroupMetrics {
	groups := make([]GroupMetrics, 0, len(a.groups.prefixes)-1)
	for id := 1; id < len(a.groups.prefixes); id++ {
		g := GroupMetrics{ID: int32(id), Prefix: a.groups.prefixes[id]}
		g.Reads, g.ReadsWithDup = counts(g.ID)
		groups = append(groups, g)
	}
	return groups
}
