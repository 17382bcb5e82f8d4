package config

import (
	"flag"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type ConfigSuite struct{}

var _ = Suite(&ConfigSuite{})

func (s *ConfigSuite) TestDefaultIsValid(c *C) {
	cfg := Default()
	c.Check(cfg.Validate(), IsNil)
	c.Check(cfg.Capture.Interval, Equals, 5*time.Second)
	c.Check(cfg.Diff.Width, Equals, 320)
	c.Check(cfg.Diff.Threshold, Equals, 5.0)
	c.Check(cfg.LastFile(), Equals, filepath.Join("images", "last.jpg"))
	c.Check(cfg.DisplayFile(), Equals, filepath.Join("images", "hdmi.jpg"))
	c.Check(cfg.ScratchFile(), Equals, filepath.Join("images", "temp.jpg"))
	c.Check(cfg.HistoryFile(), Equals, filepath.Join("images", "history.sqlite"))
}

func (s *ConfigSuite) TestLoadOverlaysDefaults(c *C) {
	p := filepath.Join(c.MkDir(), "camera.yaml")
	c.Assert(ioutil.WriteFile(p, []byte(`
image_dir: /var/lib/curlingcam
capture:
  device: /dev/video2
  interval: 10s
diff:
  threshold: 7.5
http:
  addr: ":9090"
`), 0644), IsNil)

	cfg, err := Load(p)
	c.Assert(err, IsNil)
	c.Check(cfg.ImageDir, Equals, "/var/lib/curlingcam")
	c.Check(cfg.Capture.Device, Equals, "/dev/video2")
	c.Check(cfg.Capture.Interval, Equals, 10*time.Second)
	c.Check(cfg.Diff.Threshold, Equals, 7.5)
	c.Check(cfg.HTTP.Addr, Equals, ":9090")
	// untouched settings keep their default
	c.Check(cfg.Capture.Quality, Equals, 4)
	c.Check(cfg.Diff.Width, Equals, 320)
}

func (s *ConfigSuite) TestLoadEmptyPath(c *C) {
	cfg, err := Load("")
	c.Assert(err, IsNil)
	c.Check(cfg, DeepEquals, Default())
}

func (s *ConfigSuite) TestLoadErrors(c *C) {
	_, err := Load(filepath.Join(c.MkDir(), "missing.yaml"))
	c.Check(err, ErrorMatches, "failed to read config file: .*")

	p := filepath.Join(c.MkDir(), "bad.yaml")
	c.Assert(ioutil.WriteFile(p, []byte("capture: [unterminated"), 0644), IsNil)
	_, err = Load(p)
	c.Check(err, ErrorMatches, "failed to parse config file: .*")
}

func (s *ConfigSuite) TestFlagsOverride(c *C) {
	cfg := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)

	c.Assert(fs.Parse([]string{"-interval", "2s", "-diff_threshold", "3", "-backend_addr", "127.0.0.1:8081", "-width", "0"}), IsNil)
	c.Check(cfg.Capture.Interval, Equals, 2*time.Second)
	c.Check(cfg.Diff.Threshold, Equals, 3.0)
	c.Check(cfg.HTTP.Addr, Equals, "127.0.0.1:8081")
	c.Check(cfg.Capture.Width, Equals, 0)
	c.Check(cfg.Validate(), IsNil)
}

func (s *ConfigSuite) TestValidate(c *C) {
	cases := []struct {
		mutate func(*Config)
		err    string
	}{
		{func(c *Config) { c.Capture.Interval = 0 }, "capture.interval must be positive.*"},
		{func(c *Config) { c.Capture.Timeout = -time.Second }, "capture.timeout must be positive.*"},
		{func(c *Config) { c.Capture.Quality = 40 }, "capture.quality must be between 2 and 31.*"},
		{func(c *Config) { c.Diff.Width = 0 }, "diff.width must be positive.*"},
		{func(c *Config) { c.Diff.Threshold = -1 }, "diff.threshold must not be negative.*"},
		{func(c *Config) { c.ImageDir = "" }, "image_dir must be set"},
		{func(c *Config) { c.ScratchName = "last.jpg" }, ".*must differ.*"},
		{func(c *Config) { c.DisplayName = "sub/hdmi.jpg" }, "display_name must be a plain file name.*"},
		{func(c *Config) { c.HomeKit.Enabled = true; c.HomeKit.Pin = "123" }, "homekit.pin must have 8 digits"},
	}

	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		c.Check(cfg.Validate(), ErrorMatches, tc.err)
	}
}

func (s *ConfigSuite) TestAbsoluteHistoryFile(c *C) {
	cfg := Default()
	cfg.History.File = "/var/db/history.sqlite"
	c.Check(cfg.HistoryFile(), Equals, "/var/db/history.sqlite")
}
