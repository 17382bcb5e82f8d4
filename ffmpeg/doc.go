// Package ffmpeg lets you grab still frames from a video device via ffmpeg.
//
// This package requires the `ffmpeg` command line tool to be installed. Install by running
// - `sudo apt install ffmpeg` on Raspberry Pi OS
// - `sudo port install ffmpeg` on macOS
//
// One Acquire call runs one ffmpeg process which writes exactly one jpeg frame.
package ffmpeg
