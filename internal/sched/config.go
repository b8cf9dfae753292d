package sched

import (
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"

	"edfoverlay/internal/kernel"
	"edfoverlay/internal/observability"
)

const (
	DefaultChannelCapacity  = 10
	DefaultRegistryCapacity = 10
)

// Config mirrors config.yml
type Config struct {
	TickMS             int                     `yaml:"tick_ms"`              // 1 (by default)
	ChannelCapacity    int                     `yaml:"channel_capacity"`     // 10
	RegistryCapacity   int                     `yaml:"registry_capacity"`    // 10
	SendTimeoutTicks   int                     `yaml:"send_timeout_ticks"`   // 50
	MaxPriorities      int                     `yaml:"max_priorities"`       // 7, never below 4
	FatalUnknownDelete bool                    `yaml:"fatal_unknown_delete"` // true
	Log                observability.LogConfig `yaml:"log"`
}

// DefaultConfig is used when no config file is found.
func DefaultConfig() Config {
	return Config{
		TickMS:             1,
		ChannelCapacity:    DefaultChannelCapacity,
		RegistryCapacity:   DefaultRegistryCapacity,
		SendTimeoutTicks:   50,
		MaxPriorities:      7,
		FatalUnknownDelete: true,
		Log:                observability.DefaultLogConfig(),
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
func Load(path string) Config {
	cfg := DefaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	if cfg.TickMS <= 0 {
		cfg.TickMS = 1
	}
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = DefaultChannelCapacity
	}
	if cfg.RegistryCapacity <= 0 {
		cfg.RegistryCapacity = DefaultRegistryCapacity
	}
	if cfg.SendTimeoutTicks < 0 {
		cfg.SendTimeoutTicks = 0
	}
	if cfg.MaxPriorities < 4 {
		cfg.MaxPriorities = 4
	}

	return cfg
}

// Tick is the wall-clock length of one kernel tick.
func (c Config) Tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// SendTimeout is how long a worker waits for room on the lifecycle channel.
func (c Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutTicks) * c.Tick()
}

// The priority ladder, top down: the scheduler, freshly spawned tasks (so
// they announce themselves before tiered work runs), then the two tiers.

func (c Config) SchedulerPriority() kernel.Priority { return kernel.Priority(c.MaxPriorities - 1) }
func (c Config) NewTaskPriority() kernel.Priority   { return kernel.Priority(c.MaxPriorities - 2) }
func (c Config) UrgentPriority() kernel.Priority    { return kernel.Priority(c.MaxPriorities - 3) }
func (c Config) WaitingPriority() kernel.Priority   { return kernel.Priority(c.MaxPriorities - 4) }

// TierPriority maps a tier onto its kernel priority.
func (c Config) TierPriority(t Tier) kernel.Priority {
	if t == TierUrgent {
		return c.UrgentPriority()
	}
	return c.WaitingPriority()
}
