package illumina

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/pkg/errors"
)

func TestParseCoords(t *testing.T) {
	tests := []struct {
		header string
		want   Coords
	}{
		{
			"@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG",
			Coords{Prefix: "@NB500956:89:HW2FHBGX2:1:11101:", X: 25648, Y: 1069, Name: "NB500956:89:HW2FHBGX2:1:11101:25648:1069"},
		},
		{
			"@M1:2:FC:3:1101:100:105",
			Coords{Prefix: "@M1:2:FC:3:1101:", X: 100, Y: 105, Name: "M1:2:FC:3:1101:100:105"},
		},
		{
			"@A:B:C:D:E:0:0 ",
			Coords{Prefix: "@A:B:C:D:E:", X: 0, Y: 0, Name: "A:B:C:D:E:0:0"},
		},
	}
	for _, test := range tests {
		got, err := ParseCoords(test.header)
		assert.NoError(t, err)
		expect.EQ(t, got, test.want)
	}
}

func TestParseCoordsErrors(t *testing.T) {
	for _, header := range []string{
		"",
		"NB500956:89:HW2FHBGX2:1:11101:25648:1069",
		"@NB500956:89:HW2FHBGX2:1:11101",
		"@NB500956:89:HW2FHBGX2:1:11101:25648",
		"@NB500956:89:HW2FHBGX2:1:11101:25648 1069",
		"@NB500956:89:HW2FHBGX2:1:11101:x:1069",
		"@NB500956:89:HW2FHBGX2:1:11101:25648:y",
		"@NB500956:89:HW2FHBGX2:1:11101:25648:1069:ACGTACGT",
		"@NB500956:89:HW2FHBGX2:1:11101:25648:",
	} {
		_, err := ParseCoords(header)
		expect.True(t, errors.Cause(err) == ErrFormat, "header %q: %v", header, err)
	}
}

func TestReadName(t *testing.T) {
	expect.EQ(t, ReadName("@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG"), "NB500956:89:HW2FHBGX2:1:11101:25648:1069")
	expect.EQ(t, ReadName("@r1"), "r1")
	expect.EQ(t, ReadName("r1 x"), "r1")
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name string
		want Location
	}{
		{"HWUSI:6:73:941:1973", Location{Lane: 6, TileName: 73, TileNumber: 73, X: 941, Y: 1973}},
		{"NB500956:89:HW2FHBGX2:1:11101:25648:1069", Location{Lane: 1, Surface: 1, Swath: 1, Section: 1, TileNumber: 1, TileName: 11101, X: 25648, Y: 1069}},
		{"M1:2:FC:3:1203:10:20:ACGT", Location{Lane: 3, Surface: 1, Swath: 2, TileNumber: 3, TileName: 1203, X: 10, Y: 20}},
	}
	for _, test := range tests {
		got, err := ParseLocation(test.name)
		assert.NoError(t, err)
		expect.EQ(t, got, test.want)
	}
	for _, name := range []string{"a:b", "M1:2:FC:x:1203:10:20", "M1:2:FC:3:123456:10:20"} {
		_, err := ParseLocation(name)
		expect.True(t, errors.Cause(err) == ErrFormat, name)
	}
}

func TestTileLocation(t *testing.T) {
	c, err := ParseCoords("@NB500956:89:HW2FHBGX2:4:21203:25648:1069 1:N:0:ATCACG")
	assert.NoError(t, err)
	loc, err := TileLocation(c.Prefix)
	assert.NoError(t, err)
	expect.EQ(t, loc.Lane, 4)
	expect.EQ(t, loc.TileName, 21203)
	expect.EQ(t, loc.Surface, 2)
}
