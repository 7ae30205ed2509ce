package dupscan

import (
	"context"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/spatialdup/illumina"
)

// GroupMetrics holds the counters of one tile.
type GroupMetrics struct {
	// ID is the group id assigned to the tile.
	ID int32
	// Prefix is the read name prefix shared by the reads of the tile.
	Prefix       string
	Reads        uint64
	ReadsWithDup uint64
}

// Metrics are the results of a run.
type Metrics struct {
	// Reads is the number of records compared.
	Reads uint64
	// ReadsWithDup is the number of records with at least one
	// duplicate.
	ReadsWithDup uint64
	// ShortReads is the number of records too short to contain the
	// compared subsequence. They are not included in Reads.
	ShortReads uint64
	// Groups holds per-tile counters in order of group id.
	Groups []GroupMetrics
}

// DupRatio returns ReadsWithDup/Reads, or 0 if there are no reads.
func (m *Metrics) DupRatio() float64 {
	return ratio(m.ReadsWithDup, m.Reads)
}

func ratio(n, d uint64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func formatRatio(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

// WriteSummary writes the header line NUM_READS, READS_WITH_DUP,
// DUP_RATIO followed by one line of values.
func WriteSummary(w io.Writer, m Metrics) error {
	out := tsv.NewWriter(w)
	out.WriteString("NUM_READS")
	out.WriteString("READS_WITH_DUP")
	out.WriteString("DUP_RATIO")
	if err := out.EndLine(); err != nil {
		return err
	}
	out.WriteString(formatUint(m.Reads))
	out.WriteString(formatUint(m.ReadsWithDup))
	out.WriteString(formatRatio(m.DupRatio()))
	if err := out.EndLine(); err != nil {
		return err
	}
	return out.Flush()
}

// WriteGroupMetrics writes one line per tile. Lane and tile are decoded
// from the read name prefix when it follows the Illumina convention, and
// are "." otherwise.
func WriteGroupMetrics(w io.Writer, m Metrics) error {
	out := tsv.NewWriter(w)
	out.WriteString("GROUP")
	out.WriteString("PREFIX")
	out.WriteString("LANE")
	out.WriteString("TILE")
	out.WriteString("NUM_READS")
	out.WriteString("READS_WITH_DUP")
	out.WriteString("DUP_RATIO")
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, g := range m.Groups {
		lane, tile := ".", "."
		if loc, err := illumina.TileLocation(g.Prefix); err == nil {
			lane, tile = strconv.Itoa(loc.Lane), strconv.Itoa(loc.TileName)
		} else {
			log.Error.Printf("group %d: no lane and tile: %v", g.ID, err)
		}
		out.WriteString(strconv.Itoa(int(g.ID)))
		out.WriteString(g.Prefix)
		out.WriteString(lane)
		out.WriteString(tile)
		out.WriteString(formatUint(g.Reads))
		out.WriteString(formatUint(g.ReadsWithDup))
		out.WriteString(formatRatio(ratio(g.ReadsWithDup, g.Reads)))
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WriteGroupMetricsFile writes WriteGroupMetrics output to path.
func WriteGroupMetricsFile(ctx context.Context, path string, m Metrics) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "couldn't create metrics file:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = WriteGroupMetrics(out.Writer(ctx), m); err != nil {
		return errors.E(err, "error writing to metrics file:", path)
	}
	return nil
}
