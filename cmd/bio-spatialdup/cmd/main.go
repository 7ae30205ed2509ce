package cmd

import (
	"fmt"
	golog "log"
	"runtime"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/spatialdup/dupindex"
	"github.com/grailbio/spatialdup/dupscan"
	"github.com/grailbio/spatialdup/seqkey"
	"v.io/x/lib/cmdline"
)

// scanFlags are the flags shared by count, identify and approx.
type scanFlags struct {
	start, end   *int
	winX, winY   *int
	hashSize     *int
	regionSorted *bool
	unsorted     *bool
	hash         *string
	tileMetrics  *string
	queue        *int
	output       *string
}

func addScanFlags(cmd *cmdline.Command, outputDefault, outputHelp string) *scanFlags {
	d := dupscan.DefaultOpts
	return &scanFlags{
		start:        cmd.Flags.Int("start", d.Start, "First base of each read (0-based) that is compared"),
		end:          cmd.Flags.Int("end", d.End, "End of the compared bases, exclusive. Shorter reads are skipped"),
		winX:         cmd.Flags.Int("winx", d.WinX, "Reads are duplicates only if their x coordinates differ by less than this"),
		winY:         cmd.Flags.Int("winy", d.WinY, "Reads are duplicates only if their y coordinates differ by at most this"),
		hashSize:     cmd.Flags.Int("hash-size", d.HashBytes, "Size of the hash bucket array in bytes; must be a power of two"),
		regionSorted: cmd.Flags.Bool("region-sorted", false, "Tiles are contiguous in the input but reads within a tile are not sorted by y"),
		unsorted:     cmd.Flags.Bool("unsorted", false, "The input is in no particular order. Memory use grows with the input"),
		hash:         cmd.Flags.String("hash", d.Hash.String(), "Bucket hash function: sum, farm, sea or highway"),
		tileMetrics:  cmd.Flags.String("tile-metrics", "", "If set, write per-tile duplicate counts to this path"),
		queue:        cmd.Flags.Int("queue", d.QueueLength, "Number of record batches buffered between the reader and the index"),
		output:       cmd.Flags.String("output", outputDefault, outputHelp),
	}
}

func (f *scanFlags) opts() (dupscan.Opts, error) {
	opts := dupscan.DefaultOpts
	opts.Start, opts.End = *f.start, *f.end
	opts.WinX, opts.WinY = *f.winX, *f.winY
	opts.HashBytes = *f.hashSize
	opts.QueueLength = *f.queue
	switch {
	case *f.regionSorted && *f.unsorted:
		return opts, fmt.Errorf("-region-sorted and -unsorted are mutually exclusive")
	case *f.regionSorted:
		opts.Mode = dupindex.RegionSorted
	case *f.unsorted:
		opts.Mode = dupindex.Unsorted
	}
	var err error
	opts.Hash, err = seqkey.ParseHashKind(*f.hash)
	return opts, err
}

func checkInputs(name string, argv []string) error {
	if len(argv) < 1 || len(argv) > 2 {
		return fmt.Errorf("%s takes an R1 path and an optional R2 path, but got %v", name, argv)
	}
	return nil
}

func newCmdCount() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "count",
		Short:    "Count reads that have a spatial duplicate",
		ArgsName: "r1.fastq [r2.fastq]",
	}
	flags := addScanFlags(cmd, "-", "Summary output path; - is standard output")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if err := checkInputs("count", argv); err != nil {
			return err
		}
		opts, err := flags.opts()
		if err != nil {
			return err
		}
		return scan(opts, argv, scanOutputs{summary: *flags.output, tileMetrics: *flags.tileMetrics})
	})
	return cmd
}

func newCmdIdentify() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "identify",
		Short: "List duplicate pairs",
		Long: `
identify writes one line for every pair of duplicate reads found, with the
name of the later read followed by the name of the earlier one. The lines
are in input order, so they can be fed to the filter command.`,
		ArgsName: "r1.fastq [r2.fastq]",
	}
	flags := addScanFlags(cmd, "", "Summary output path; standard error if empty")
	pairs := cmd.Flags.String("pairs", "-", "Pair output path; - is standard output")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if err := checkInputs("identify", argv); err != nil {
			return err
		}
		opts, err := flags.opts()
		if err != nil {
			return err
		}
		opts.Identify = true
		return scan(opts, argv, scanOutputs{summary: *flags.output, pairs: *pairs, tileMetrics: *flags.tileMetrics})
	})
	return cmd
}

func newCmdApprox() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "approx",
		Short: "Count duplicates allowing sequence differences",
		Long: `
approx compares reads row by row in parallel, and treats two reads as
duplicates if their compared bases are within -max-edits edits of each
other. The input must be sorted by y within each tile.`,
		ArgsName: "r1.fastq [r2.fastq]",
	}
	flags := addScanFlags(cmd, "-", "Summary output path; - is standard output")
	maxEdits := cmd.Flags.Int("max-edits", 0, "Largest edit distance between duplicate sequences")
	parallelism := cmd.Flags.Int("parallelism", runtime.NumCPU(), "Number of rows compared concurrently")
	pairs := cmd.Flags.String("pairs", "", "If set, write the name of every read with a duplicate to this path")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if err := checkInputs("approx", argv); err != nil {
			return err
		}
		opts, err := flags.opts()
		if err != nil {
			return err
		}
		opts.Approximate = true
		opts.MaxEdits = *maxEdits
		opts.Parallelism = *parallelism
		return scan(opts, argv, scanOutputs{summary: *flags.output, pairs: *pairs, tileMetrics: *flags.tileMetrics})
	})
	return cmd
}

func newCmdFilter() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "filter",
		Short: "Remove duplicates listed by identify from a FASTQ file",
		Long: `
filter copies in.fastq to out.fastq, dropping every read named in the first
column of the -ids file. The ids must be in the same order as the reads,
as identify writes them.`,
		ArgsName: "in.fastq out.fastq",
	}
	ids := cmd.Flags.String("ids", "-", "Pair lines written by identify; - is standard input")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("filter takes in.fastq out.fastq, but got %v", argv)
		}
		return filterFile(*ids, argv[0], argv[1])
	})
	return cmd
}

// Run runs the bio-spatialdup command line.
func Run() {
	golog.SetFlags(golog.Ldate | golog.Ltime | golog.Lmicroseconds | golog.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-spatialdup",
			Short:    "Find spatial duplicates in Illumina FASTQ files",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdCount(),
				newCmdIdentify(),
				newCmdApprox(),
				newCmdFilter(),
			},
		})
}
