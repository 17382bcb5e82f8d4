// Package diff scores how different two still frames are.
//
// Both frames are downscaled to a fixed width, reduced to 8-bit luminance and
// cropped to their common height. The score is the mean absolute luminance
// difference, computed from the histogram of per-pixel differences, so it
// ranges from 0 (identical) to 255.
package diff

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
)

// DefaultWidth is the width both frames are scaled to before comparison.
const DefaultWidth = 320

// Scorer compares frames at a fixed downscale width.
type Scorer struct {
	Width  uint
	Interp resize.InterpolationFunction
}

// NewScorer returns a Scorer for the given width, falling back to DefaultWidth.
func NewScorer(width int) *Scorer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Scorer{Width: uint(width), Interp: resize.Bicubic}
}

// Score returns the mean absolute luminance difference between the frames
// stored at candidate and reference. It fails with a *DecodeError if either
// file is missing or is not an image.
func (s *Scorer) Score(candidate, reference string) (float64, error) {
	a, err := s.load(candidate)
	if err != nil {
		return 0, err
	}
	b, err := s.load(reference)
	if err != nil {
		return 0, err
	}

	return Mean(Histogram(a, b)), nil
}

// load decodes the image at path and returns its downscaled luminance plane.
func (s *Scorer) load(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("empty image %v", b)}
	}

	return Luminance(s.downscale(img)), nil
}

// downscale resizes img to the scorer width keeping the aspect ratio. The
// height is truncated, never below one row.
func (s *Scorer) downscale(img image.Image) image.Image {
	b := img.Bounds()
	h := uint(float64(b.Dy()) * float64(s.Width) / float64(b.Dx()))
	if h == 0 {
		h = 1
	}
	return resize.Resize(s.Width, h, img, s.Interp)
}

// Luminance converts img to 8-bit grey using the ITU-R 601 luma weights.
func Luminance(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return g
}

// Histogram counts the absolute per-pixel differences between a and b over
// their common area, anchored at the top-left corner.
func Histogram(a, b *image.Gray) [256]int {
	var hist [256]int

	w := min(a.Bounds().Dx(), b.Bounds().Dx())
	h := min(a.Bounds().Dy(), b.Bounds().Dy())
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride:]
		rb := b.Pix[y*b.Stride:]
		for x := 0; x < w; x++ {
			d := int(ra[x]) - int(rb[x])
			if d < 0 {
				d = -d
			}
			hist[d]++
		}
	}

	return hist
}

// Mean returns the histogram-weighted mean difference, 0 for an empty histogram.
func Mean(hist [256]int) float64 {
	var total, sum int
	for v, n := range hist {
		total += n
		sum += v * n
	}
	if total == 0 {
		return 0
	}
	return float64(sum) / float64(total)
}

// DecodeError reports a frame that could not be read as an image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
