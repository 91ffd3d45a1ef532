// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the daemon's stderr/syslog mirroring.
// Lines written through the standard log package (parser warnings,
// reconciler, firewall and inventory messages) go to stderr and, when
// the daemon has syslog configured, to a remote syslog collector too.
package logging

import (
	"fmt"
	"log/syslog"
)

// SyslogConfig configures forwarding of daemon log lines to a remote
// syslog collector. Disabled by default.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility int // syslog facility number, e.g. 1 = user-level
}

// DefaultSyslogConfig returns the disabled, defaulted configuration.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "pvefw",
		Facility: 1,
	}
}

// SyslogWriter forwards log lines to a remote syslog collector.
type SyslogWriter struct {
	w *syslog.Writer
}

// NewSyslogWriter dials the configured syslog collector. Missing
// fields are defaulted the same way DefaultSyslogConfig defaults them.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "pvefw"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	w, err := syslog.Dial(cfg.Protocol, addr, syslog.Priority(cfg.Facility<<3|int(syslog.LOG_INFO)), cfg.Tag)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog collector %s: %w", addr, err)
	}
	return &SyslogWriter{w: w}, nil
}

// Write implements io.Writer, forwarding each write as an info-level
// syslog message.
func (s *SyslogWriter) Write(p []byte) (int, error) {
	if err := s.w.Info(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Warning forwards a warning-level message (per-line parse warnings).
func (s *SyslogWriter) Warning(msg string) error {
	return s.w.Warning(msg)
}

// Err forwards an error-level message (lock timeouts, apply failures).
func (s *SyslogWriter) Err(msg string) error {
	return s.w.Err(msg)
}

// Close closes the underlying connection.
func (s *SyslogWriter) Close() error {
	return s.w.Close()
}
