// Package watch notices when a published frame is replaced.
//
// The directory holding the frame is polled with radovskyb/watcher; any
// event in it triggers a stat of the frame, and a change is reported only
// when its modification time or size differs from the last one seen. The
// watcher never opens the frame itself.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/brutella/hc/log"
	"github.com/radovskyb/watcher"
)

// Change describes the new state of the watched file.
type Change struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Watcher reports replacements of a single file.
type Watcher struct {
	path     string
	interval time.Duration
	last     Change
}

// New returns a watcher for path polling every interval.
func New(path string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Watcher{path: path, interval: interval}
}

// Run calls fn for the current file, if present, and for every later
// change until ctx is done. fn runs on the calling goroutine.
func (w *Watcher) Run(ctx context.Context, fn func(Change)) error {
	fw := watcher.New()
	fw.SetMaxEvents(1)
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- fw.Start(w.interval)
	}()
	go func() {
		fw.Wait()
		<-ctx.Done()
		fw.Close()
	}()

	w.check(ctx, fn)
	for {
		select {
		case <-fw.Event:
			w.check(ctx, fn)
		case err := <-fw.Error:
			log.Debug.Println("watch:", err)
		case <-fw.Closed:
			return nil
		case err := <-errc:
			if err != nil {
				return err
			}
		}
	}
}

// check compares the file against the last seen state.
func (w *Watcher) check(ctx context.Context, fn func(Change)) {
	if ctx.Err() != nil {
		return
	}

	fi, err := os.Stat(w.path)
	if err != nil {
		return
	}

	c := Change{Path: w.path, ModTime: fi.ModTime(), Size: fi.Size()}
	if c.ModTime.Equal(w.last.ModTime) && c.Size == w.last.Size {
		return
	}
	w.last = c

	fn(c)
}
