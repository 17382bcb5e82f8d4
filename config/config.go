// Package config holds the settings of the capture service. Defaults are
// overlaid by an optional YAML file, which is overlaid by command line flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	ImageDir    string `yaml:"image_dir"`
	ScratchName string `yaml:"scratch_name"`
	LastName    string `yaml:"last_name"`
	DisplayName string `yaml:"display_name"`

	Capture CaptureConfig `yaml:"capture"`
	Diff    DiffConfig    `yaml:"diff"`
	HTTP    HTTPConfig    `yaml:"http"`
	History HistoryConfig `yaml:"history"`
	HomeKit HomeKitConfig `yaml:"homekit"`

	ButtonGPIO      int           `yaml:"button_gpio"`   // -1 disables the trigger button
	StdinTrigger    bool          `yaml:"stdin_trigger"` // a line on stdin forces a capture
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Verbose         bool          `yaml:"verbose"`
	Profile         bool          `yaml:"profile"`
	ProfileAddr     string        `yaml:"profile_addr"`
}

// CaptureConfig contains the frame grabbing settings
type CaptureConfig struct {
	Binary      string        `yaml:"binary"`
	Device      string        `yaml:"device"`
	InputFormat string        `yaml:"input_format"`
	Width       int           `yaml:"width"`  // 0 lets the device negotiate
	Height      int           `yaml:"height"` // 0 lets the device negotiate
	Quality     int           `yaml:"quality"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DiffConfig contains the change detection settings
type DiffConfig struct {
	Width     int     `yaml:"width"`
	Threshold float64 `yaml:"threshold"`
}

// HTTPConfig contains the web service settings
type HTTPConfig struct {
	Addr          string        `yaml:"addr"`
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// HistoryConfig contains the publication history settings
type HistoryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	File       string `yaml:"file"` // relative to ImageDir unless absolute
	MaxEntries int    `yaml:"max_entries"`
}

// HomeKitConfig contains the optional HomeKit accessory settings
type HomeKitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Name        string `yaml:"name"`
	Pin         string `yaml:"pin"`
	StoragePath string `yaml:"storage_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ImageDir:    "images",
		ScratchName: "temp.jpg",
		LastName:    "last.jpg",
		DisplayName: "hdmi.jpg",
		Capture: CaptureConfig{
			Binary:      "ffmpeg",
			Device:      "/dev/video0",
			InputFormat: "video4linux2",
			Width:       1920,
			Height:      1080,
			Quality:     4,
			Interval:    5 * time.Second,
			Timeout:     15 * time.Second,
		},
		Diff: DiffConfig{
			Width:     320,
			Threshold: 5.0,
		},
		HTTP: HTTPConfig{
			Addr:          "0.0.0.0:8080",
			WatchInterval: 500 * time.Millisecond,
		},
		History: HistoryConfig{
			Enabled:    true,
			File:       "history.sqlite",
			MaxEntries: 100,
		},
		HomeKit: HomeKitConfig{
			Name:        "Curling Camera",
			Pin:         "00102003",
			StoragePath: "homekit",
		},
		ButtonGPIO:      -1,
		ShutdownTimeout: 5 * time.Second,
		ProfileAddr:     "localhost:8383",
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// BindFlags registers a flag for every setting, defaulting to the current
// value of c.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ImageDir, "image_dir", c.ImageDir, "directory holding the scratch and published frames")
	fs.StringVar(&c.Capture.Binary, "ffmpeg", c.Capture.Binary, "ffmpeg executable")
	fs.StringVar(&c.Capture.Device, "video_filename", c.Capture.Device, "video input device filename")
	fs.StringVar(&c.Capture.InputFormat, "video_device", c.Capture.InputFormat, "ffmpeg input format of the video device")
	fs.IntVar(&c.Capture.Width, "width", c.Capture.Width, "capture width, 0 to negotiate")
	fs.IntVar(&c.Capture.Height, "height", c.Capture.Height, "capture height, 0 to negotiate")
	fs.IntVar(&c.Capture.Quality, "quality", c.Capture.Quality, "jpeg quality scale (2 best .. 31 worst)")
	fs.DurationVar(&c.Capture.Interval, "interval", c.Capture.Interval, "time between captures")
	fs.DurationVar(&c.Capture.Timeout, "capture_timeout", c.Capture.Timeout, "maximum duration of a capture")
	fs.IntVar(&c.Diff.Width, "diff_width", c.Diff.Width, "width frames are scaled to before comparison")
	fs.Float64Var(&c.Diff.Threshold, "diff_threshold", c.Diff.Threshold, "minimum mean luminance difference to publish a frame")
	fs.StringVar(&c.HTTP.Addr, "backend_addr", c.HTTP.Addr, "address:port of the web service")
	fs.BoolVar(&c.History.Enabled, "history", c.History.Enabled, "record published frames in a sqlite database")
	fs.IntVar(&c.History.MaxEntries, "history_max", c.History.MaxEntries, "number of published frames kept in the history")
	fs.BoolVar(&c.HomeKit.Enabled, "homekit", c.HomeKit.Enabled, "expose the camera as a HomeKit accessory")
	fs.StringVar(&c.HomeKit.Pin, "pin", c.HomeKit.Pin, "pin used to associate the accessory to HomeKit")
	fs.StringVar(&c.HomeKit.StoragePath, "data_dir", c.HomeKit.StoragePath, "path to the HomeKit data directory")
	fs.IntVar(&c.ButtonGPIO, "button_gpio", c.ButtonGPIO, "GPIO number of the capture button, -1 to disable")
	fs.BoolVar(&c.StdinTrigger, "stdin_trigger", c.StdinTrigger, "force a capture for every line read on stdin")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown_timeout", c.ShutdownTimeout, "maximum wait for the capture loop on exit")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "verbose logging")
	fs.BoolVar(&c.Profile, "profile", c.Profile, "enable http pprof")
	fs.StringVar(&c.ProfileAddr, "profile_addr", c.ProfileAddr, "pprof address:port")
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.ImageDir == "" {
		return fmt.Errorf("image_dir must be set")
	}
	if c.Capture.Device == "" {
		return fmt.Errorf("capture.device must be set")
	}
	if c.Capture.Interval <= 0 {
		return fmt.Errorf("capture.interval must be positive, got %s", c.Capture.Interval)
	}
	if c.Capture.Timeout <= 0 {
		return fmt.Errorf("capture.timeout must be positive, got %s", c.Capture.Timeout)
	}
	if c.Capture.Quality < 2 || c.Capture.Quality > 31 {
		return fmt.Errorf("capture.quality must be between 2 and 31, got %d", c.Capture.Quality)
	}
	if c.Diff.Width <= 0 {
		return fmt.Errorf("diff.width must be positive, got %d", c.Diff.Width)
	}
	if c.Diff.Threshold < 0 {
		return fmt.Errorf("diff.threshold must not be negative, got %g", c.Diff.Threshold)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}

	names := map[string]string{}
	for key, name := range map[string]string{"scratch_name": c.ScratchName, "last_name": c.LastName, "display_name": c.DisplayName} {
		if name == "" || filepath.Base(name) != name {
			return fmt.Errorf("%s must be a plain file name, got %q", key, name)
		}
		if other, ok := names[name]; ok {
			return fmt.Errorf("%s and %s must differ, both are %q", other, key, name)
		}
		names[name] = key
	}

	if c.HomeKit.Enabled && len(c.HomeKit.Pin) != 8 {
		return fmt.Errorf("homekit.pin must have 8 digits")
	}
	return nil
}

// ScratchFile returns the path of the scratch slot.
func (c *Config) ScratchFile() string {
	return filepath.Join(c.ImageDir, c.ScratchName)
}

// LastFile returns the path of the canonical published slot.
func (c *Config) LastFile() string {
	return filepath.Join(c.ImageDir, c.LastName)
}

// DisplayFile returns the path of the display mirror slot.
func (c *Config) DisplayFile() string {
	return filepath.Join(c.ImageDir, c.DisplayName)
}

// HistoryFile returns the path of the history database.
func (c *Config) HistoryFile() string {
	if filepath.IsAbs(c.History.File) {
		return c.History.File
	}
	return filepath.Join(c.ImageDir, c.History.File)
}
