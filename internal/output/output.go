package output

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/tiff"
)

const (
	timestampLayout = "20060102_150405"
	maxFolderTries  = 1000
)

// ImageFilename names the image for a zero-based sample index.
func ImageFilename(index int) string {
	return fmt.Sprintf("nearfield_image_%03d.tiff", index+1)
}

// CreateOutputFolder creates <base>_YYYYMMDD_HHMMSS. If that folder already exists a
// numeric suffix is appended so earlier runs are never overwritten.
func CreateOutputFolder(base string, now time.Time) (string, error) {
	stamp := base + "_" + now.Format(timestampLayout)
	if err := os.MkdirAll(filepath.Dir(stamp), 0o755); err != nil {
		return "", fmt.Errorf("creating output parent: %w", err)
	}

	path := stamp
	for i := 1; i <= maxFolderTries; i++ {
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("creating output folder: %w", err)
		}
		path = fmt.Sprintf("%s_%d", stamp, i)
	}
	return "", fmt.Errorf("creating output folder: %s exists %d times", stamp, maxFolderTries)
}

// TIFFOptions controls image encoding.
type TIFFOptions struct {
	Compress bool
}

// EncodeTIFF writes a 16-bit single-channel TIFF.
func EncodeTIFF(w io.Writer, img *image.Gray16, opts TIFFOptions) error {
	compression := tiff.Uncompressed
	if opts.Compress {
		compression = tiff.Deflate
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: compression})
}

// SaveImage writes img to dir/filename.
func SaveImage(img *image.Gray16, dir, filename string, opts TIFFOptions) (err error) {
	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	if err := EncodeTIFF(f, img, opts); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
