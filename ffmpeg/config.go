package ffmpeg

import (
	"fmt"
	"time"
)

// Config contains ffmpeg parameters
type Config struct {
	Binary        string
	InputFormat   string
	VideoFilename string
	Width         int
	Height        int
	Quality       int
	Timeout       time.Duration
}

// videoSize returns the -video_size argument or "" when the resolution is left
// to the device.
func (c Config) videoSize() string {
	if c.Width <= 0 || c.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}
