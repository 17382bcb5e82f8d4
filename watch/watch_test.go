package watch

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"github.com/johnpoole/glencoe-curling-camera-capture/publish"
)

func Test(t *testing.T) { TestingT(t) }

type WatchSuite struct {
	dir string
}

var _ = Suite(&WatchSuite{})

func (s *WatchSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
}

// replace publishes content to dst with a distinct modification time.
func (s *WatchSuite) replace(c *C, dst, content string, mtime time.Time) {
	src := filepath.Join(s.dir, "temp.jpg")
	c.Assert(ioutil.WriteFile(src, []byte(content), 0644), IsNil)
	c.Assert(os.Chtimes(src, mtime, mtime), IsNil)
	c.Assert(publish.File(src, dst), IsNil)
	c.Assert(os.Remove(src), IsNil)
}

func (s *WatchSuite) start(c *C, path string) (chan Change, context.CancelFunc, chan error) {
	changes := make(chan Change, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(path, 10*time.Millisecond).Run(ctx, func(ch Change) { changes <- ch })
	}()
	return changes, cancel, done
}

func next(c *C, changes chan Change) Change {
	select {
	case ch := <-changes:
		return ch
	case <-time.After(3 * time.Second):
		c.Fatal("no change reported")
	}
	return Change{}
}

func (s *WatchSuite) TestReportsReplacements(c *C) {
	dst := filepath.Join(s.dir, "hdmi.jpg")
	changes, cancel, done := s.start(c, dst)
	defer cancel()

	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.replace(c, dst, "first", t0)
	ch := next(c, changes)
	c.Check(ch.Path, Equals, dst)
	c.Check(ch.Size, Equals, int64(5))
	c.Check(ch.ModTime.Equal(t0), Equals, true)

	s.replace(c, dst, "second frame", t0.Add(5*time.Second))
	ch = next(c, changes)
	c.Check(ch.Size, Equals, int64(12))

	cancel()
	select {
	case err := <-done:
		c.Check(err, IsNil)
	case <-time.After(3 * time.Second):
		c.Fatal("watcher did not stop")
	}
}

func (s *WatchSuite) TestReportsExistingFileOnce(c *C) {
	dst := filepath.Join(s.dir, "last.jpg")
	s.replace(c, dst, "existing", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	changes, cancel, _ := s.start(c, dst)
	defer cancel()

	c.Check(next(c, changes).Size, Equals, int64(8))

	// unrelated files in the directory do not count as a change
	c.Assert(ioutil.WriteFile(filepath.Join(s.dir, "other.txt"), []byte("x"), 0644), IsNil)
	select {
	case ch := <-changes:
		c.Fatalf("unexpected change %+v", ch)
	case <-time.After(200 * time.Millisecond):
	}
}

func (s *WatchSuite) TestMissingDirectory(c *C) {
	err := New(filepath.Join(s.dir, "nope", "last.jpg"), time.Millisecond).Run(context.Background(), func(Change) {})
	c.Check(err, NotNil)
}
