package fastq

import (
	"bufio"
	"io"

	"github.com/grailbio/base/errors"
)

// Writer writes FASTQ records through a buffer. Flush must be called
// after the last Write.
type Writer struct {
	w   *bufio.Writer
	n   int
	err error
}

// NewWriter returns a writer to w. If w is already a *bufio.Writer it is
// used directly.
func NewWriter(w io.Writer) *Writer {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriterSize(w, ioBufferSize)
	}
	return &Writer{w: bw}
}

// Write writes r as four lines. Line 3 is "+" when r.Unk is empty. After
// the first error every call returns that error, naming the record
// that failed.
func (w *Writer) Write(r *Read) error {
	if w.err != nil {
		return w.err
	}
	unk := r.Unk
	if unk == "" {
		unk = "+"
	}
	for _, line := range [...]string{r.ID, r.Seq, unk, r.Qual} {
		if _, err := w.w.WriteString(line); err != nil {
			w.err = errors.E(err, "write FASTQ record", r.ID)
			return w.err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			w.err = errors.E(err, "write FASTQ record", r.ID)
			return w.err
		}
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.n }

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.err = errors.E(err, "flush FASTQ output")
	}
	return w.err
}
