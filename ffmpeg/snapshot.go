package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/brutella/hc/log"
)

// args returns the ffmpeg command line for a single frame capture into dst.
func args(cfg Config, dst string) []string {
	a := []string{"-hide_banner", "-loglevel", "error"}
	if cfg.InputFormat != "" {
		a = append(a, "-f", cfg.InputFormat)
	}
	if size := cfg.videoSize(); size != "" {
		a = append(a, "-video_size", size)
	}
	a = append(a,
		"-i", cfg.VideoFilename,
		"-frames:v", "1",
		"-q:v", fmt.Sprintf("%d", cfg.Quality),
		"-y", dst)

	return a
}

// grab runs ffmpeg until it exits or ctx kills it.
func grab(ctx context.Context, cfg Config, dst string) error {
	cmd := exec.CommandContext(ctx, cfg.Binary, args(cfg, dst)...)
	cmd.Stdout = Stdout
	cmd.Stderr = Stderr

	log.Debug.Println(cmd)

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("timed out after %s", cfg.Timeout)
	}
	return err
}
