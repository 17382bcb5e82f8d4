package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io/ioutil"
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/johnpoole/glencoe-curling-camera-capture/diff"
)

// fileAcquirer copies prepared jpeg files into the scratch slot in order.
type fileAcquirer struct {
	frames []string
	next   int
}

func (f *fileAcquirer) Acquire(ctx context.Context, dst string) error {
	b, err := ioutil.ReadFile(f.frames[f.next%len(f.frames)])
	f.next++
	if err != nil {
		return err
	}
	return ioutil.WriteFile(dst, b, 0644)
}

type ScorerSuite struct {
	dir string
}

var _ = Suite(&ScorerSuite{})

func (s *ScorerSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
}

func (s *ScorerSuite) frame(c *C, name string, v uint8) string {
	img := image.NewGray(image.Rect(0, 0, 640, 480))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	// a small marker so that frames are not trivially uniform
	img.SetGray(10, 10, color.Gray{Y: 255 - v})

	p := filepath.Join(s.dir, name)
	f, err := os.Create(p)
	c.Assert(err, IsNil)
	defer f.Close()
	c.Assert(jpeg.Encode(f, img, &jpeg.Options{Quality: 90}), IsNil)
	return p
}

func (s *ScorerSuite) TestLuminanceScoring(c *C) {
	dark := s.frame(c, "dark.jpg", 40)
	darkAgain := s.frame(c, "dark2.jpg", 41)
	bright := s.frame(c, "bright.jpg", 200)

	slots := Slots{
		Scratch:   filepath.Join(s.dir, "temp.jpg"),
		Published: []string{filepath.Join(s.dir, "last.jpg")},
	}
	a := &fileAcquirer{frames: []string{dark, darkAgain, bright}}
	l := New(Config{Slots: slots, Threshold: 5.0}, a, diff.NewScorer(320))

	it := l.RunOnce(context.Background(), false)
	c.Check(it.Reason, Equals, ReasonFirst)

	it = l.RunOnce(context.Background(), false)
	c.Check(it.ScoreErr, IsNil)
	c.Check(it.Qualified, Equals, false, Commentf("score %f", it.Score))

	it = l.RunOnce(context.Background(), false)
	c.Check(it.Qualified, Equals, true, Commentf("score %f", it.Score))
	c.Check(it.Reason, Equals, ReasonChanged)

	want, err := ioutil.ReadFile(bright)
	c.Assert(err, IsNil)
	got, err := ioutil.ReadFile(slots.Published[0])
	c.Assert(err, IsNil)
	c.Check(got, DeepEquals, want)
}

func (s *ScorerSuite) TestCorruptReferenceFailsOpen(c *C) {
	slots := Slots{
		Scratch:   filepath.Join(s.dir, "temp.jpg"),
		Published: []string{filepath.Join(s.dir, "last.jpg")},
	}
	c.Assert(ioutil.WriteFile(slots.Published[0], []byte("truncated"), 0644), IsNil)

	a := &fileAcquirer{frames: []string{s.frame(c, "f.jpg", 90)}}
	l := New(Config{Slots: slots, Threshold: 5.0}, a, diff.NewScorer(320))

	it := l.RunOnce(context.Background(), false)
	c.Check(it.ScoreErr, FitsTypeOf, &diff.DecodeError{})
	c.Check(it.Reason, Equals, ReasonDiffError)

	// the next iteration scores against the now valid reference
	it = l.RunOnce(context.Background(), false)
	c.Check(it.ScoreErr, IsNil)
	c.Check(it.Score, Equals, 0.0)
}
