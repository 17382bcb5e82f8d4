package main

import (
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type MainSuite struct{}

var _ = Suite(&MainSuite{})

func (s *MainSuite) TestConfigPath(c *C) {
	c.Check(configPath(nil), Equals, "")
	c.Check(configPath([]string{"-verbose", "-interval", "3s"}), Equals, "")
	c.Check(configPath([]string{"-config", "cam.yaml"}), Equals, "cam.yaml")
	c.Check(configPath([]string{"--config=/etc/cam.yaml", "-verbose"}), Equals, "/etc/cam.yaml")
	c.Check(configPath([]string{"-verbose", "-config"}), Equals, "")
}
