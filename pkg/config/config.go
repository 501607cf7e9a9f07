// Package config holds quartz's policy-agnostic startup options.
// cmd/quartz populates a Config from cobra flags; nothing here depends on
// cobra itself, so the scheduling core stays testable without a CLI.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the policy-agnostic configuration a quartz core starts from.
type Config struct {
	// RDLConf is the topology definition file path; empty means fall back
	// to the hardware-inventory store.
	RDLConf string
	// RDLResource is the root resource URI. Defaults to "default".
	RDLResource string
	// SchedOnce disables release-on-Complete/Cancelled.
	SchedOnce bool
	// FailOnError holds the fail-on-error option. cmd/quartz's serve does
	// not consult it: an unreadable or unparsable rdl-conf always aborts
	// startup, and no RDL-versus-inventory check or fallback is made.
	FailOnError bool
	// Verbosity is the log verbosity level; higher is noisier.
	Verbosity int
	// Plugin names the policy to load at startup; PluginOpts is passed to
	// its Parse.
	Plugin     string
	PluginOpts string
	// QueueDepth and DelaySched are sched-params.
	QueueDepth int
	DelaySched bool
	// ReserveDepth is a backfill-family option; 0 means
	// "policy default".
	ReserveDepth int
	// RDLTopology is the topology policy's extra option.
	RDLTopology string
}

// Default returns the configuration quartz starts from absent any flags.
func Default() Config {
	return Config{
		RDLResource: "default",
		Plugin:      "fcfs",
		QueueDepth:  1024,
	}
}

// ParseSchedParams parses the comma-separated "queue-depth=N,delay-sched=bool"
// value of sched-params into c.
func (c *Config) ParseSchedParams(s string) error {
	if s == "" {
		return nil
	}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("config: sched-params entry %q missing '='", kv)
		}
		switch key {
		case "queue-depth":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("config: sched-params queue-depth: %w", err)
			}
			c.QueueDepth = n
		case "delay-sched":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("config: sched-params delay-sched: %w", err)
			}
			c.DelaySched = b
		default:
			return fmt.Errorf("config: unknown sched-params key %q", key)
		}
	}
	return nil
}

// Validate reports whether c is internally consistent enough to start a
// core from.
func (c *Config) Validate() error {
	if c.QueueDepth < 1 {
		return fmt.Errorf("config: queue-depth must be >= 1, got %d", c.QueueDepth)
	}
	if c.Plugin == "" {
		return fmt.Errorf("config: plugin must be set")
	}
	if c.RDLResource == "" {
		return fmt.Errorf("config: rdl-resource must be set")
	}
	return nil
}
