package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"time"

	"github.com/brutella/hc/log"
)

// DefaultTimeout bounds a capture when Config.Timeout is unset.
const DefaultTimeout = 15 * time.Second

var Stdout io.Writer = ioutil.Discard
var Stderr io.Writer = ioutil.Discard

// EnableVerboseLogging enables verbose logging of ffmpeg to stdout.
func EnableVerboseLogging() {
	Stdout = os.Stdout
	Stderr = os.Stderr
}

// Grabber captures single frames from the configured video device.
type Grabber struct {
	cfg Config
}

// New returns a new ffmpeg handle to grab frames.
func New(cfg Config) *Grabber {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Grabber{cfg: cfg}
}

// Acquire writes exactly one frame of the video device to dst.
//
// The process is killed when ctx is done or the configured timeout elapses.
// On failure the content of dst is undefined.
func (g *Grabber) Acquire(ctx context.Context, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if err := grab(ctx, g.cfg, dst); err != nil {
		return &AcquireError{Device: g.cfg.VideoFilename, Err: err}
	}

	// ffmpeg may exit cleanly without producing a frame on some v4l2 drivers
	fi, err := os.Stat(dst)
	if err != nil {
		return &AcquireError{Device: g.cfg.VideoFilename, Err: err}
	}
	if fi.Size() == 0 {
		return &AcquireError{Device: g.cfg.VideoFilename, Err: fmt.Errorf("empty frame in %s", dst)}
	}

	log.Debug.Printf("grabbed %d bytes from %s", fi.Size(), g.cfg.VideoFilename)
	return nil
}

// AcquireError reports a failed or timed out capture process.
type AcquireError struct {
	Device string
	Err    error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("capture from %s: %v", e.Device, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}
