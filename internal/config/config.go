package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for an msock example binary (msock-server or
// msock-client): where to listen or dial, how big the per-channel buffers
// are, and the ambient concerns (logging, monitoring, maintenance).
type Config struct {
	Listen      ListenInfo      `yaml:"listen"`
	Dial        DialInfo        `yaml:"dial"`
	Channels    ChannelInfo     `yaml:"channels"`
	Throttle    ThrottleInfo    `yaml:"throttle"`
	Monitor     MonitorInfo     `yaml:"monitor"`
	Maintenance MaintenanceInfo `yaml:"maintenance"`
	Logging     LoggingInfo     `yaml:"logging"`
}

// ListenInfo is the address an msock-server binds to.
type ListenInfo struct {
	Address string `yaml:"address"` // e.g. "tcp://0.0.0.0:9443" or "unix:///run/msock.sock"
}

// DialInfo is the address an msock-client connects to.
type DialInfo struct {
	Address string `yaml:"address"`
}

// ChannelInfo configures the per-channel ring buffers every Connection
// created by this binary uses.
type ChannelInfo struct {
	BufferSize    string `yaml:"buffer_size"` // e.g. "64kb", "4mb"
	BufferSizeRaw int64  `yaml:"-"`
	MaxFrameSize  string `yaml:"max_frame_size"` // e.g. "16mb"
	MaxFrameRaw   int64  `yaml:"-"`
	Compression   string `yaml:"compression"` // "", "gzip", "zstd"
}

// ThrottleInfo caps outbound bandwidth per channel when set.
type ThrottleInfo struct {
	BytesPerSec string `yaml:"bytes_per_sec"` // e.g. "10mb", empty disables
	BytesRaw    int64  `yaml:"-"`
}

// MonitorInfo configures periodic system-stats sampling.
type MonitorInfo struct {
	Interval time.Duration `yaml:"interval"` // 0 selects the monitor's 15s default
}

// MaintenanceInfo configures the cron-scheduled housekeeping job.
type MaintenanceInfo struct {
	Schedule string `yaml:"schedule"` // standard 5-field cron expression, empty disables
}

// LoggingInfo configures the process-wide logger.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Channels.BufferSize == "" {
		c.Channels.BufferSize = "4kb"
	}
	bufSize, err := ParseByteSize(c.Channels.BufferSize)
	if err != nil {
		return fmt.Errorf("channels.buffer_size: %w", err)
	}
	c.Channels.BufferSizeRaw = bufSize

	if c.Channels.MaxFrameSize == "" {
		c.Channels.MaxFrameSize = "16mb"
	}
	maxFrame, err := ParseByteSize(c.Channels.MaxFrameSize)
	if err != nil {
		return fmt.Errorf("channels.max_frame_size: %w", err)
	}
	c.Channels.MaxFrameRaw = maxFrame

	switch c.Channels.Compression {
	case "", "gzip", "zstd":
	default:
		return fmt.Errorf("channels.compression must be one of \"\", \"gzip\", \"zstd\", got %q", c.Channels.Compression)
	}

	if c.Throttle.BytesPerSec != "" {
		bps, err := ParseByteSize(c.Throttle.BytesPerSec)
		if err != nil {
			return fmt.Errorf("throttle.bytes_per_sec: %w", err)
		}
		c.Throttle.BytesRaw = bps
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

// ParseByteSize converts human-readable sizes like "256mb" or "1gb" into a
// byte count. Recognized suffixes are "gb", "mb", "kb", and "b"; a bare
// number is treated as bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return num, nil
}
