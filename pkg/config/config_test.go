package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) TestLoadDefaults() {
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(Default(false), cfg)
	s.Equal("worker", cfg.Role())
}

func (s *ConfigTestSuite) TestLoadFromEnv() {
	s.T().Setenv("SHMX_HOST", "true")
	s.T().Setenv("SHMX_SEGMENT_NAME", "/seg_env")
	s.T().Setenv("SHMX_SIGNAL_TIMEOUT", "2s")
	s.T().Setenv("SHMX_REQUEST", "hello")

	cfg, err := Load()
	s.Require().NoError(err)
	s.True(cfg.Host)
	s.Equal("/seg_env", cfg.SegmentName)
	s.Equal(2*time.Second, cfg.SignalTimeout)
	s.Equal("hello", cfg.Request)
}

func (s *ConfigTestSuite) TestLoadRejectsInvalid() {
	s.T().Setenv("SHMX_HOST_QUEUE", "no_slash")
	_, err := Load()
	s.Require().Error(err)
}

func (s *ConfigTestSuite) TestValidate() {
	cfg := Default(true)
	s.Require().NoError(cfg.Validate())

	cases := []func(c *Config){
		func(c *Config) { c.SegmentName = "" },
		func(c *Config) { c.SegmentName = "/a/b" },
		func(c *Config) { c.WorkerQueue = c.HostQueue },
		func(c *Config) { c.Request = "" },
		func(c *Config) { c.ResponseMarker = "" },
		func(c *Config) { c.SignalTimeout = -time.Second },
		func(c *Config) { c.LogLevel = "loud" },
	}
	for i, mutate := range cases {
		c := Default(true)
		mutate(c)
		s.Error(c.Validate(), "case %d", i)
	}
}

func (s *ConfigTestSuite) TestQueuesByRole() {
	host := Default(true)
	worker := host.Peer()

	s.False(worker.Host)
	s.Equal(DefaultHostQueue, host.InboundQueue())
	s.Equal(DefaultWorkerQueue, host.OutboundQueue())
	s.Equal(host.OutboundQueue(), worker.InboundQueue())
	s.Equal(host.InboundQueue(), worker.OutboundQueue())
	s.True(host.Host, "Peer must not modify the receiver")
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
