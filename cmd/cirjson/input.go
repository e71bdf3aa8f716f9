package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// input closes the decompressor before the file under it, once.
type input struct {
	io.Reader
	closers []io.Closer
	once    sync.Once
	err     error
}

func (in *input) Close() error {
	in.once.Do(func() {
		for _, c := range in.closers {
			if err := c.Close(); err != nil && in.err == nil {
				in.err = err
			}
		}
	})
	return in.err
}

type zstdCloser struct {
	dec *zstd.Decoder
}

func (c zstdCloser) Close() error {
	c.dec.Close()
	return nil
}

// openInput opens path, "-" is stdin. Files ending in .zst and .gz are
// decompressed on the fly.
func openInput(path string) (*input, error) {
	var file io.ReadCloser = io.NopCloser(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open input")
		}
		file = f
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "zstd input %s", path)
		}
		return &input{Reader: dec, closers: []io.Closer{zstdCloser{dec: dec}, file}}, nil
	case ".gz":
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "gzip input %s", path)
		}
		return &input{Reader: gz, closers: []io.Closer{gz, file}}, nil
	}
	return &input{Reader: file, closers: []io.Closer{file}}, nil
}

// countingReader counts the decompressed bytes for stats.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
