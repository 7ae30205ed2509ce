package dupscan

import (
	"github.com/grailbio/spatialdup/dupindex"
	"github.com/grailbio/spatialdup/seqkey"
	"github.com/pkg/errors"
)

var (
	// ErrConfig is returned for unusable options, before any input is
	// read.
	ErrConfig = errors.New("invalid configuration")
	// ErrSortedness is returned when the input violates the ordering
	// promised by the mode.
	ErrSortedness = errors.New("input is not sorted as required")
	// ErrPairMismatch is returned when the R1 and R2 streams disagree.
	ErrPairMismatch = errors.New("paired-end inputs do not match")
)

// Opts configures Run.
type Opts struct {
	// Start and End delimit the part of each read, [Start, End), that is
	// compared. In paired-end mode the same range is taken from both
	// mates.
	Start, End int
	// WinX and WinY are the pixel window. Two reads can be duplicates
	// only if |Δx| < WinX and |Δy| <= WinY.
	WinX, WinY int
	// HashBytes is the size of the index bucket array. It must be a power
	// of two.
	HashBytes int
	// Mode is the ordering guarantee of the input.
	Mode dupindex.Mode
	// Hash selects the bucket hash function.
	Hash seqkey.HashKind
	// Identify writes one line per duplicate relationship to the pair
	// output.
	Identify bool

	// Approximate uses the row scanner instead of the hash index, so that
	// sequences within MaxEdits edits are duplicates. It requires Sorted
	// input.
	Approximate bool
	// MaxEdits is the edit distance threshold of the row scanner.
	MaxEdits int
	// Parallelism bounds the row scanner's comparison tasks.
	Parallelism int

	// QueueLength is the number of record batches buffered between the
	// reader and the index.
	QueueLength int
	// ProgressInterval is the number of records between progress log
	// messages. Zero disables them.
	ProgressInterval int
}

// DefaultOpts are the default options.
var DefaultOpts = Opts{
	Start:            10,
	End:              60,
	WinX:             2500,
	WinY:             2500,
	HashBytes:        dupindex.DefaultHashBytes,
	Mode:             dupindex.Sorted,
	Hash:             seqkey.Sum,
	Parallelism:      1,
	QueueLength:      16,
	ProgressInterval: 1000000,
}

// Validate checks the options for a single-end (paired=false) or
// paired-end run.
func (o *Opts) Validate(paired bool) error {
	switch {
	case o.Start < 0:
		return errors.Wrapf(ErrConfig, "negative start %d", o.Start)
	case o.End <= o.Start:
		return errors.Wrapf(ErrConfig, "zero length subsequence [%d, %d)", o.Start, o.End)
	case o.WinX < 0 || o.WinY < 0:
		return errors.Wrapf(ErrConfig, "negative window %dx%d", o.WinX, o.WinY)
	case o.QueueLength < 1:
		return errors.Wrapf(ErrConfig, "queue length %d", o.QueueLength)
	case o.ProgressInterval < 0:
		return errors.Wrapf(ErrConfig, "progress interval %d", o.ProgressInterval)
	case o.Approximate && o.Mode != dupindex.Sorted:
		return errors.Wrapf(ErrConfig, "approximate matching requires sorted input, not %v", o.Mode)
	case o.Approximate && o.Identify:
		return errors.Wrap(ErrConfig, "approximate matching reports reads, not pairs")
	case o.Approximate && (o.MaxEdits < 0 || o.Parallelism < 1):
		return errors.Wrapf(ErrConfig, "max edits %d, parallelism %d", o.MaxEdits, o.Parallelism)
	}
	if n := o.Bases(paired); n > seqkey.MaxBases {
		return errors.Wrapf(seqkey.ErrWidth, "%d bases compared; at most %d (%d per mate) are supported",
			n, seqkey.MaxBases, seqkey.MaxBases/2)
	}
	return nil
}

// Bases returns the number of bases compared per record.
func (o *Opts) Bases(paired bool) int {
	n := o.End - o.Start
	if paired {
		n *= 2
	}
	return n
}
