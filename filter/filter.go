// Package filter removes duplicate records from a FASTQ stream, given the
// pair lines written by an identifying duplicate scan of the same stream.
package filter

import (
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/spatialdup/encoding/fastq"
	"github.com/grailbio/spatialdup/illumina"
	"github.com/pkg/errors"
)

// ErrUnmatched is returned when the FASTQ stream ends before every id has
// been matched, which means the two streams are not in the same order.
var ErrUnmatched = errors.New("duplicate ids not found in FASTQ input")

// Stats counts the records seen by Run.
type Stats struct {
	Records uint64
	Dropped uint64
	Written uint64
}

// idReader yields the first column of each line of a tab-separated
// stream, skipping consecutive repeats. Lines may have one or more
// columns.
type idReader struct {
	r    *tsv.Reader
	last string
	err  error
}

func newIDReader(r io.Reader) *idReader {
	tr := tsv.NewReader(r)
	tr.FieldsPerRecord = -1
	tr.LazyQuotes = true
	tr.ReuseRecord = true
	return &idReader{r: tr}
}

func (r *idReader) next() (string, bool) {
	for r.err == nil {
		row, err := r.r.Reader.Read()
		if err != nil {
			if err != io.EOF {
				r.err = err
			}
			break
		}
		if len(row) == 0 || row[0] == "" || row[0] == r.last {
			continue
		}
		r.last = row[0]
		return r.last, true
	}
	return "", false
}

// Run copies the records of in to out, dropping each record whose name
// is the next pending id. Ids are read from the first tab-separated
// column of ids and must be in the same order as the records they name.
// After the last id every remaining record is copied.
func Run(ids io.Reader, in io.Reader, out io.Writer) (Stats, error) {
	var (
		stats   Stats
		idr     = newIDReader(ids)
		scanner = fastq.NewScanner(in, fastq.All)
		w       = fastq.NewWriter(out)
		read    fastq.Read
	)
	pending, ok := idr.next()
	for scanner.Scan(&read) {
		stats.Records++
		if ok && illumina.ReadName(read.ID) == pending {
			stats.Dropped++
			pending, ok = idr.next()
			continue
		}
		if err := w.Write(&read); err != nil {
			return stats, errors.Wrap(err, "writing FASTQ")
		}
		stats.Written++
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.Wrap(err, "reading FASTQ")
	}
	if err := w.Flush(); err != nil {
		return stats, errors.Wrap(err, "writing FASTQ")
	}
	if err := idr.err; err != nil {
		return stats, errors.Wrap(err, "reading ids")
	}
	if ok {
		return stats, errors.Wrapf(ErrUnmatched, "next id %s", pending)
	}
	return stats, nil
}
