package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/spatialdup/dupscan"
	"github.com/grailbio/spatialdup/encoding/fastq"
	"github.com/grailbio/spatialdup/filter"
)

// scanOutputs names the output paths of a scan. An empty summary path
// is standard error; an empty pairs or tileMetrics path is no output.
type scanOutputs struct {
	summary     string
	pairs       string
	tileMetrics string
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func closeAndReport(c io.Closer, err *error) {
	if e := c.Close(); e != nil && *err == nil {
		*err = e
	}
}

func scan(opts dupscan.Opts, argv []string, out scanOutputs) (err error) {
	ctx := context.Background()
	var in dupscan.Input
	r1, err := fastq.Open(ctx, argv[0])
	if err != nil {
		return err
	}
	defer closeAndReport(r1, &err)
	in.R1 = r1
	if len(argv) == 2 {
		var r2 io.ReadCloser
		if r2, err = fastq.Open(ctx, argv[1]); err != nil {
			return err
		}
		defer closeAndReport(r2, &err)
		in.R2 = r2
	}
	var pairs io.WriteCloser
	if out.pairs != "" {
		if pairs, err = fastq.Create(ctx, out.pairs); err != nil {
			return err
		}
		in.Pairs = pairs
	}

	log.Printf("Analysing %s (mode %v, bases [%d, %d), window %dx%d)",
		strings.Join(argv, " "), opts.Mode, opts.Start, opts.End, opts.WinX, opts.WinY)
	m, err := dupscan.Run(ctx, in, opts)
	if pairs != nil {
		closeAndReport(pairs, &err)
	}
	if err != nil {
		return err
	}
	log.Printf("Done: %d reads, %d with a duplicate, %d too short", m.Reads, m.ReadsWithDup, m.ShortReads)

	var summary io.WriteCloser = nopCloser{os.Stderr}
	if out.summary != "" {
		if summary, err = fastq.Create(ctx, out.summary); err != nil {
			return err
		}
	}
	err = dupscan.WriteSummary(summary, m)
	closeAndReport(summary, &err)
	if err != nil {
		return err
	}
	if out.tileMetrics != "" {
		return dupscan.WriteGroupMetricsFile(ctx, out.tileMetrics, m)
	}
	return nil
}

func filterFile(idsPath, inPath, outPath string) (err error) {
	ctx := context.Background()
	ids, err := fastq.Open(ctx, idsPath)
	if err != nil {
		return err
	}
	defer closeAndReport(ids, &err)
	in, err := fastq.Open(ctx, inPath)
	if err != nil {
		return err
	}
	defer closeAndReport(in, &err)
	out, err := fastq.Create(ctx, outPath)
	if err != nil {
		return err
	}
	defer closeAndReport(out, &err)
	stats, err := filter.Run(ids, in, out)
	if err != nil {
		return err
	}
	log.Printf("%s: %d of %d reads removed", inPath, stats.Dropped, stats.Records)
	return nil
}
