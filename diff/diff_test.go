package diff

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type DiffSuite struct {
	dir string
}

var _ = Suite(&DiffSuite{})

func (s *DiffSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
}

func uniform(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func (s *DiffSuite) writeJPEG(c *C, name string, img image.Image) string {
	p := filepath.Join(s.dir, name)
	f, err := os.Create(p)
	c.Assert(err, IsNil)
	defer f.Close()
	c.Assert(jpeg.Encode(f, img, &jpeg.Options{Quality: 95}), IsNil)
	return p
}

func (s *DiffSuite) TestHistogramUniform(c *C) {
	hist := Histogram(uniform(4, 3, 10), uniform(4, 3, 30))
	c.Check(hist[20], Equals, 12)
	c.Check(Mean(hist), Equals, 20.0)
}

func (s *DiffSuite) TestHistogramCropsToCommonArea(c *C) {
	a := uniform(4, 4, 0)
	b := uniform(4, 2, 0)
	b.SetGray(1, 1, color.Gray{Y: 200})

	hist := Histogram(a, b)
	c.Check(hist[0], Equals, 7)
	c.Check(hist[200], Equals, 1)
	c.Check(Mean(hist), Equals, 25.0)
}

func (s *DiffSuite) TestHistogramAbsolute(c *C) {
	c.Check(Mean(Histogram(uniform(2, 2, 90), uniform(2, 2, 40))), Equals, 50.0)
	c.Check(Mean(Histogram(uniform(2, 2, 40), uniform(2, 2, 90))), Equals, 50.0)
}

func (s *DiffSuite) TestMeanEmpty(c *C) {
	var hist [256]int
	c.Check(Mean(hist), Equals, 0.0)
}

func (s *DiffSuite) TestLuminance(c *C) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{255, 255, 255, 255})
	img.Set(1, 0, color.RGBA{0, 0, 0, 255})

	g := Luminance(img)
	c.Check(g.GrayAt(0, 0).Y, Equals, uint8(255))
	c.Check(g.GrayAt(1, 0).Y, Equals, uint8(0))
}

func (s *DiffSuite) TestScoreIdentical(c *C) {
	p := s.writeJPEG(c, "a.jpg", gradient(640, 360))
	score, err := NewScorer(320).Score(p, p)
	c.Assert(err, IsNil)
	c.Check(score, Equals, 0.0)
}

func (s *DiffSuite) TestScoreDifferentScenes(c *C) {
	black := s.writeJPEG(c, "black.jpg", uniform(640, 480, 0))
	white := s.writeJPEG(c, "white.jpg", uniform(640, 480, 255))

	score, err := NewScorer(320).Score(black, white)
	c.Assert(err, IsNil)
	c.Check(score > 240, Equals, true, Commentf("score %f", score))
	c.Check(score <= 255, Equals, true)
}

func (s *DiffSuite) TestScoreDifferentResolutions(c *C) {
	small := s.writeJPEG(c, "small.jpg", uniform(640, 360, 100))
	large := s.writeJPEG(c, "large.jpg", uniform(1920, 1440, 100))

	score, err := NewScorer(320).Score(small, large)
	c.Assert(err, IsNil)
	c.Check(score < 2, Equals, true, Commentf("score %f", score))
}

func (s *DiffSuite) TestScoreMissingReference(c *C) {
	p := s.writeJPEG(c, "a.jpg", uniform(64, 64, 0))
	_, err := NewScorer(0).Score(p, filepath.Join(s.dir, "missing.jpg"))

	var de *DecodeError
	c.Assert(errors.As(err, &de), Equals, true)
	c.Check(de.Path, Equals, filepath.Join(s.dir, "missing.jpg"))
}

func (s *DiffSuite) TestScoreCorruptCandidate(c *C) {
	ref := s.writeJPEG(c, "ref.jpg", uniform(64, 64, 0))
	bad := filepath.Join(s.dir, "bad.jpg")
	c.Assert(ioutil.WriteFile(bad, []byte("\xff\xd8 not really a jpeg"), 0644), IsNil)

	_, err := NewScorer(320).Score(bad, ref)
	var de *DecodeError
	c.Assert(errors.As(err, &de), Equals, true)
	c.Check(de.Path, Equals, bad)
}

func (s *DiffSuite) TestNewScorerDefaultWidth(c *C) {
	c.Check(NewScorer(-1).Width, Equals, uint(DefaultWidth))
}

func (s *DiffSuite) TestDownscaleKeepsOneRow(c *C) {
	img := NewScorer(320).downscale(uniform(10000, 2, 0))
	c.Check(img.Bounds().Dx(), Equals, 320)
	c.Check(img.Bounds().Dy(), Equals, 1)
}

func gradient(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	return g
}
