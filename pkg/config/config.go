// Package config loads the settings shared by the host and worker roles.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/srediag/shm-exchange/internal/logging"
	internalshm "github.com/srediag/shm-exchange/internal/shm"
)

// EnvPrefix prefixes every environment variable, e.g. SHMX_SEGMENT_NAME.
const EnvPrefix = "SHMX"

const (
	DefaultSegmentName    = "/sm_services"
	DefaultHostQueue      = "/mq_queue_host"
	DefaultWorkerQueue    = "/mq_queue_worker"
	DefaultRequest        = "payload of task-1"
	DefaultResponseMarker = "processed"
)

// Config holds the exchange settings. Host selects the role; SegmentName
// and both queue names must be identical on the two sides.
type Config struct {
	Host           bool          `envconfig:"HOST" default:"false"`
	SegmentName    string        `envconfig:"SEGMENT_NAME" default:"/sm_services"`
	HostQueue      string        `envconfig:"HOST_QUEUE" default:"/mq_queue_host"`
	WorkerQueue    string        `envconfig:"WORKER_QUEUE" default:"/mq_queue_worker"`
	Request        string        `envconfig:"REQUEST" default:"payload of task-1"`
	ResponseMarker string        `envconfig:"RESPONSE_MARKER" default:"processed"`
	SignalTimeout  time.Duration `envconfig:"SIGNAL_TIMEOUT" default:"0s"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool          `envconfig:"LOG_DEV" default:"false"`
	AdminAddr      string        `envconfig:"ADMIN_ADDR"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration for the given role.
func Default(host bool) *Config {
	return &Config{
		Host:           host,
		SegmentName:    DefaultSegmentName,
		HostQueue:      DefaultHostQueue,
		WorkerQueue:    DefaultWorkerQueue,
		Request:        DefaultRequest,
		ResponseMarker: DefaultResponseMarker,
		LogLevel:       "info",
	}
}

// Validate checks the shared names and the payload settings.
func (c *Config) Validate() error {
	var errs []error
	for field, name := range map[string]string{
		"segment name": c.SegmentName,
		"host queue":   c.HostQueue,
		"worker queue": c.WorkerQueue,
	} {
		if err := internalshm.ValidateName(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	if c.HostQueue == c.WorkerQueue {
		errs = append(errs, errors.New("host and worker queues must differ"))
	}
	if c.Request == "" {
		errs = append(errs, errors.New("request payload is empty"))
	}
	if c.ResponseMarker == "" {
		errs = append(errs, errors.New("response marker is empty"))
	}
	if c.SignalTimeout < 0 {
		errs = append(errs, fmt.Errorf("negative signal timeout %s", c.SignalTimeout))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Role names the configured role.
func (c *Config) Role() string {
	if c.Host {
		return "host"
	}
	return "worker"
}

// InboundQueue is the queue this role receives on.
func (c *Config) InboundQueue() string {
	if c.Host {
		return c.HostQueue
	}
	return c.WorkerQueue
}

// OutboundQueue is the queue this role sends on.
func (c *Config) OutboundQueue() string {
	if c.Host {
		return c.WorkerQueue
	}
	return c.HostQueue
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:       c.LogLevel,
		Development: c.LogDevelopment,
	}
}

// Peer returns a copy of c configured for the opposite role.
func (c *Config) Peer() *Config {
	p := *c
	p.Host = !c.Host
	return &p
}
