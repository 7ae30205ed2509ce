package illumina

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Location describes a read's physical location on the flow cell. Lane,
// Surface, Swath, Section, and TileNumber together specify which
// flowcell tile the read was found in. TileName is the 4 or 5 digit
// representation of the tile, e.g. 1203 means surface 1, swath 2 and
// tile 3. 12304 means surface 1, swath 2, section 3, and tile 4.
type Location struct {
	Lane       int
	Surface    int
	Swath      int
	Section    int
	TileNumber int
	TileName   int
	X          int
	Y          int
}

// Illumina read names come in 3 varieties: 5, 7, and 8 columns. For 5
// and 7 field read names, the last three fields are tileName, X and Y.
// For 8 field read names, the last four fields are tileName, X, Y, and
// UMI.
var tileField = map[int]int{
	5: 2,
	7: 4,
	8: 4,
}

// ParseLocation decodes an Illumina read name (without the leading '@'
// and without the comment following the first space).
func ParseLocation(name string) (Location, error) {
	var loc Location
	fields := strings.Split(name, ":")
	tileIdx, ok := tileField[len(fields)]
	if !ok {
		return loc, errors.Wrapf(ErrFormat, "%s: expected 5, 7, or 8 fields separated by ':'", name)
	}
	var err error
	parse := func(what string, i int) int {
		if err != nil {
			return 0
		}
		var v int
		if v, err = strconv.Atoi(fields[i]); err != nil {
			err = errors.Wrapf(ErrFormat, "%s: could not convert %s to integer", name, what)
		}
		return v
	}
	loc.Lane = parse("lane", tileIdx-1)
	loc.TileName = parse("tile", tileIdx)
	loc.X = parse("x", tileIdx+1)
	loc.Y = parse("y", tileIdx+2)
	if err != nil {
		return Location{}, err
	}

	switch {
	case loc.TileName > 99999 || loc.TileName < 0:
		return Location{}, errors.Wrapf(ErrFormat, "%s: unexpected tile name %d, expected 4 or 5 digits", name, loc.TileName)
	case loc.TileName > 9999:
		loc.Surface = loc.TileName / 10000
		loc.Swath = (loc.TileName % 10000) / 1000
		loc.Section = (loc.TileName % 1000) / 100
		loc.TileNumber = loc.TileName % 100
	default:
		loc.Surface = loc.TileName / 1000
		loc.Swath = (loc.TileName % 1000) / 100
		loc.TileNumber = loc.TileName % 100
	}
	return loc, nil
}

// TileLocation parses the lane and tile of a coordinate prefix as
// returned in Coords.Prefix. X and Y are left zero.
func TileLocation(prefix string) (Location, error) {
	return ParseLocation(strings.TrimPrefix(prefix, "@") + "0:0")
}
