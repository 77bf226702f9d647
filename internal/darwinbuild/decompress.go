package darwinbuild

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// codec expands a compressed manifest stream.
type codec struct {
	ext  string
	open func(r io.Reader) (io.ReadCloser, error)
}

var codecs = []codec{
	{".gz", func(r io.Reader) (io.ReadCloser, error) {
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gz, nil
	}},
	{".xz", func(r io.Reader) (io.ReadCloser, error) {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	}},
	{".zst", func(r io.Reader) (io.ReadCloser, error) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}},
}

// codecFor returns nil for uncompressed names.
func codecFor(name string) *codec {
	for i := range codecs {
		if strings.HasSuffix(name, codecs[i].ext) {
			return &codecs[i]
		}
	}
	return nil
}

// decodeStream wraps r with the decompressor matching name, if any.
func decodeStream(name string, r io.Reader) (io.ReadCloser, error) {
	c := codecFor(name)
	if c == nil {
		return io.NopCloser(r), nil
	}
	rc, err := c.open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s reader for %s: %w", strings.TrimPrefix(c.ext, "."), name, err)
	}
	return rc, nil
}
