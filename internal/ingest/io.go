package ingest

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
)

func newByteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// writeAtomic writes img as a PNG to path, replacing any existing file only
// once the new content is fully flushed to disk, so a concurrent Stitcher
// never observes a partially written cache file.
func writeAtomic(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tile-*.png.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
