package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/docker/go-units"

	"luna-vmm/pkg/defaults"
	"luna-vmm/pkg/log"
	"luna-vmm/pkg/models"
)

// Config represents the daemon configuration, populated from flags,
// environment variables and the optional config file.
type Config struct {
	// Logging contains the logging related config.
	Logging log.Config

	// StateRootDir is the root directory for runtime state: the extracted
	// image, per-instance definitions, pid files and the history database.
	StateRootDir string
	// ImageSourcePath is the bundled compressed disk image the provisioner
	// extracts from.
	ImageSourcePath string

	// Tier biases the resource allocation: light, medium or heavy.
	Tier string
	// MemoryOverride, when set, replaces the planned memory allocation. A
	// human readable size such as "2GiB".
	MemoryOverride string

	// PortRangeStart and PortRangeEnd bound the host ports considered for
	// guest forwarding, inclusive.
	PortRangeStart int
	PortRangeEnd   int

	// MaxInstances caps the number of simultaneously live VM instances.
	MaxInstances int
	// RetryBudget caps the full pipeline restarts per instance.
	RetryBudget int

	// HealthInterval is the period between readiness probes.
	HealthInterval time.Duration
	// HealthMaxWait bounds the whole readiness wait.
	HealthMaxWait time.Duration
	// StopGracePeriod bounds a graceful VM shutdown before force kill.
	StopGracePeriod time.Duration

	// Hypervisor binaries. An empty value disables the backend.
	QEMUBin         string
	VBoxManageBin   string
	VBoxHeadlessBin string
	PowerShellBin   string
	VfkitBin        string

	// MetricsEndpoint is the listen address for the Prometheus metrics
	// server. Empty disables it.
	MetricsEndpoint string
}

// ImagePath is where the extracted VM disk image lives.
func (c *Config) ImagePath() string {
	return filepath.Join(c.StateRootDir, defaults.ImageFile)
}

// HistoryDBPath is the instance history database location.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.StateRootDir, defaults.HistoryDBFile)
}

// WorkloadTier validates and converts the configured tier.
func (c *Config) WorkloadTier() (models.WorkloadTier, error) {
	switch models.WorkloadTier(c.Tier) {
	case models.TierLight, models.TierMedium, models.TierHeavy:
		return models.WorkloadTier(c.Tier), nil
	default:
		return "", fmt.Errorf("unknown workload tier %q", c.Tier)
	}
}

// MemoryOverrideMB parses the memory override. Zero means no override.
func (c *Config) MemoryOverrideMB() (int64, error) {
	if c.MemoryOverride == "" {
		return 0, nil
	}

	bytes, err := units.RAMInBytes(c.MemoryOverride)
	if err != nil {
		return 0, fmt.Errorf("parsing memory override %q: %w", c.MemoryOverride, err)
	}

	return bytes / units.MiB, nil
}
