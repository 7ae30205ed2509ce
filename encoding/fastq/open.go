package fastq

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// Stdio is the path that Open and Create map to standard input and
// output.
const Stdio = "-"

const ioBufferSize = 1 << 20

var gzipMagic = [2]byte{0x1f, 0x8b}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	once := errors.Once{}
	for _, c := range r.closers {
		once.Set(c())
	}
	return once.Err()
}

// Open opens path for reading. Stdio reads standard input. Gzip
// compressed data is detected from its magic number, whatever the file
// name.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r := &readCloser{}
	var src io.Reader
	if path == Stdio {
		src = os.Stdin
	} else {
		f, err := file.Open(ctx, path)
		if err != nil {
			return nil, errors.E(err, "open", path)
		}
		src = f.Reader(ctx)
		r.closers = append(r.closers, func() error { return f.Close(ctx) })
	}
	br := bufio.NewReaderSize(src, ioBufferSize)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		r.Close() // nolint: errcheck
		return nil, errors.E(err, "read", path)
	}
	if len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			r.Close() // nolint: errcheck
			return nil, errors.E(err, "gzip", path)
		}
		r.Reader = gz
		r.closers = append([]func() error{gz.Close}, r.closers...)
	} else {
		r.Reader = br
	}
	return r, nil
}

type writeCloser struct {
	io.Writer
	closers []func() error
}

func (w *writeCloser) Close() error {
	once := errors.Once{}
	for _, c := range w.closers {
		once.Set(c())
	}
	return once.Err()
}

// Create creates path for writing. Stdio writes to standard output. A
// ".gz" suffix selects gzip compression and ".sz" snappy framing.
// Closing the writer flushes it and closes the file; standard output is
// flushed but left open.
func Create(ctx context.Context, path string) (io.WriteCloser, error) {
	var (
		dst       io.Writer = os.Stdout
		closeFile           = func() error { return nil }
	)
	if path != Stdio {
		f, err := file.Create(ctx, path)
		if err != nil {
			return nil, errors.E(err, "create", path)
		}
		dst = f.Writer(ctx)
		closeFile = func() error { return f.Close(ctx) }
	}
	w := &writeCloser{}
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := gzip.NewWriter(dst)
		w.Writer = gz
		w.closers = append(w.closers, gz.Close)
	case strings.HasSuffix(path, ".sz"):
		sz := snappy.NewBufferedWriter(dst)
		w.Writer = sz
		w.closers = append(w.closers, sz.Close)
	default:
		bw := bufio.NewWriterSize(dst, ioBufferSize)
		w.Writer = bw
		w.closers = append(w.closers, bw.Flush)
	}
	w.closers = append(w.closers, closeFile)
	return w, nil
}
