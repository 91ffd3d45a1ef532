// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package daemonconfig decodes the daemon-level HCL configuration file
// (distinct from the per-VM/host/group rule DSL parsed by
// internal/firewall): rule-directory paths, the advisory lock file, the
// reconciliation cycle interval, and the syslog sink, per SPEC_FULL.md's
// daemon configuration component.
package daemonconfig

import (
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
	"go.pvefw.dev/pvefw/internal/logging"
)

// Config is the top-level daemon configuration, decoded from a single
// HCL file (conventionally /etc/pve/firewall/pvefw.hcl).
type Config struct {
	VMDir        string `hcl:"vm_dir,optional"`
	ClusterDir   string `hcl:"cluster_dir,optional"`
	NodeDir      string `hcl:"node_dir,optional"`
	LockFile     string `hcl:"lock_file,optional"`
	CycleSeconds int    `hcl:"cycle_seconds,optional"`

	Syslog *Syslog `hcl:"syslog,block"`
	CtlAPI *CtlAPI `hcl:"ctlapi,block"`
}

// Syslog mirrors the fields logging.SyslogConfig exposes for HCL
// decoding; ToLoggingConfig converts it.
type Syslog struct {
	Enabled  bool   `hcl:"enabled,optional"`
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	Protocol string `hcl:"protocol,optional"`
	Tag      string `hcl:"tag,optional"`
	Facility int    `hcl:"facility,optional"`
}

// CtlAPI configures the local control-socket HTTP server.
type CtlAPI struct {
	Enabled bool   `hcl:"enabled,optional"`
	Listen  string `hcl:"listen,optional"`
}

// Default returns the configuration used when no HCL file is present,
// matching pve-firewall's conventional on-disk layout.
func Default() *Config {
	return &Config{
		VMDir:        "/etc/pve/firewall",
		ClusterDir:   "/etc/pve/firewall",
		NodeDir:      "/etc/pve/nodes",
		LockFile:     "/var/lock/pvefw.lck",
		CycleSeconds: 10,
		Syslog: &Syslog{
			Enabled:  false,
			Port:     514,
			Protocol: "udp",
			Tag:      "pvefw",
			Facility: 1,
		},
		CtlAPI: &CtlAPI{
			Enabled: true,
			Listen:  "127.0.0.1:8899",
		},
	}
}

// Load decodes path into a Config, filling in Default() for any block
// the file omits entirely.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindConfig, "decoding daemon config")
	}
	if cfg.Syslog == nil {
		cfg.Syslog = Default().Syslog
	}
	if cfg.CtlAPI == nil {
		cfg.CtlAPI = Default().CtlAPI
	}
	return cfg, nil
}

// CycleInterval returns the configured reconciliation interval as a
// time.Duration, defaulting to 10s for a non-positive value.
func (c *Config) CycleInterval() time.Duration {
	if c.CycleSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CycleSeconds) * time.Second
}

// ToLoggingConfig converts the decoded syslog block into the
// internal/logging package's config type.
func (c *Config) ToLoggingConfig() logging.SyslogConfig {
	s := c.Syslog
	if s == nil {
		s = Default().Syslog
	}
	return logging.SyslogConfig{
		Enabled:  s.Enabled,
		Host:     s.Host,
		Port:     s.Port,
		Protocol: s.Protocol,
		Tag:      s.Tag,
		Facility: s.Facility,
	}
}
