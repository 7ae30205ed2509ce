// Package illumina extracts flowcell positions from Illumina read names.
package illumina

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrFormat is returned when a read header does not carry Illumina
// coordinates.
var ErrFormat = errors.New("header is not a standard Illumina read name")

// CoordField is the number of colons that precede the x coordinate in an
// Illumina read name, e.g. @M00123:54:000000000-A1B2C:1:1101:15589:1331.
const CoordField = 5

// Coords is the position of a read as parsed from its FASTQ header.
type Coords struct {
	// Prefix is the header through the colon preceding x, including the
	// leading '@'. Reads from one tile share a prefix.
	Prefix string
	X, Y   int
	// Name is the header without '@', through the end of y.
	Name string
}

// ParseCoords parses the x and y coordinates of a FASTQ header line. The
// x coordinate follows the fifth colon and must end with a colon; y must
// end with a space or the end of the line.
func ParseCoords(header string) (Coords, error) {
	var c Coords
	if len(header) == 0 || header[0] != '@' {
		return c, errors.Wrapf(ErrFormat, "%q: missing '@'", header)
	}
	start := 0
	for i := 0; i < CoordField; i++ {
		j := strings.IndexByte(header[start:], ':')
		if j < 0 {
			return c, errors.Wrapf(ErrFormat, "%q: expected at least %d ':' separated fields", header, CoordField+2)
		}
		start += j + 1
	}
	xEnd := strings.IndexByte(header[start:], ':')
	if xEnd < 0 {
		return c, errors.Wrapf(ErrFormat, "%q: x coordinate is not followed by ':'", header)
	}
	xEnd += start
	x, err := strconv.Atoi(header[start:xEnd])
	if err != nil {
		return c, errors.Wrapf(ErrFormat, "%q: bad x coordinate", header)
	}
	yEnd := len(header)
	if i := strings.IndexAny(header[xEnd+1:], ": "); i >= 0 {
		yEnd = xEnd + 1 + i
		if header[yEnd] != ' ' {
			return c, errors.Wrapf(ErrFormat, "%q: y coordinate is not followed by a space", header)
		}
	}
	y, err := strconv.Atoi(header[xEnd+1 : yEnd])
	if err != nil {
		return c, errors.Wrapf(ErrFormat, "%q: bad y coordinate", header)
	}
	c.Prefix = header[:start]
	c.X = x
	c.Y = y
	c.Name = header[1:yEnd]
	return c, nil
}

// ReadName returns the header without '@', up to the first space.
func ReadName(header string) string {
	if len(header) > 0 && header[0] == '@' {
		header = header[1:]
	}
	if i := strings.IndexByte(header, ' '); i >= 0 {
		header = header[:i]
	}
	return header
}
