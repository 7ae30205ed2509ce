package filter

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(names ...string) string {
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "@%s 1:N:0:ACGT\nACGT\n+\nIIII\n", name)
	}
	return b.String()
}

func TestRun(t *testing.T) {
	tests := []struct {
		name  string
		ids   string
		in    []string
		want  []string
		stats Stats
	}{
		{
			name:  "no ids",
			in:    []string{"a", "b"},
			want:  []string{"a", "b"},
			stats: Stats{Records: 2, Written: 2},
		},
		{
			name:  "pair lines",
			ids:   "b\ta\nd\ta\nd\tb\n",
			in:    []string{"a", "b", "c", "d", "e"},
			want:  []string{"a", "c", "e"},
			stats: Stats{Records: 5, Dropped: 2, Written: 3},
		},
		{
			name:  "single column",
			ids:   "a\n\nc\n",
			in:    []string{"a", "b", "c"},
			want:  []string{"b"},
			stats: Stats{Records: 3, Dropped: 2, Written: 1},
		},
		{
			name:  "ragged columns",
			ids:   "b\ta\tx\nb\ta\nd\n",
			in:    []string{"a", "b", "c", "d"},
			want:  []string{"a", "c"},
			stats: Stats{Records: 4, Dropped: 2, Written: 2},
		},
		{
			name:  "all dropped",
			ids:   "a\nb\n",
			in:    []string{"a", "b"},
			stats: Stats{Records: 2, Dropped: 2},
		},
	}
	for _, test := range tests {
		var out bytes.Buffer
		stats, err := Run(strings.NewReader(test.ids), strings.NewReader(records(test.in...)), &out)
		require.NoError(t, err, test.name)
		assert.Equal(t, records(test.want...), out.String(), test.name)
		assert.Equal(t, test.stats, stats, test.name)
	}
}

func TestUnmatched(t *testing.T) {
	var out bytes.Buffer
	// The ids are out of order with respect to the records.
	_, err := Run(strings.NewReader("c\na\n"), strings.NewReader(records("a", "b", "c")), &out)
	assert.True(t, errors.Cause(err) == ErrUnmatched, "%v", err)
	assert.Equal(t, records("a", "b"), out.String())
}

func TestInvalidFASTQ(t *testing.T) {
	var out bytes.Buffer
	_, err := Run(strings.NewReader(""), strings.NewReader("a\nACGT\n+\nIIII\n"), &out)
	assert.Error(t, err)
}
