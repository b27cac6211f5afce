package output

import (
	"context"
	"fmt"
	"image"

	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
)

// Store persists images and their parameters into one run folder.
type Store struct {
	Dir    string
	TIFF   TIFFOptions
	Params ParameterLogger
}

// Save writes the image for a sample index and logs its parameters. The image is
// written first so a logged row always refers to an existing file.
func (s *Store) Save(ctx context.Context, index int, img *image.Gray16, ps schema.ParameterSet) (string, error) {
	filename := ImageFilename(index)
	if err := SaveImage(img, s.Dir, filename, s.TIFF); err != nil {
		return "", err
	}
	if s.Params != nil {
		if err := s.Params.LogParameters(ctx, index, filename, ps); err != nil {
			return filename, fmt.Errorf("logging parameters for %s: %w", filename, err)
		}
	}
	return filename, nil
}
