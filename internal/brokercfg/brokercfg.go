// Package brokercfg parses the broker's startup configuration from argv and
// the environment: parse once at startup into a plain struct, pass it
// down, no globals.
package brokercfg

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultEndpoint = "tcp://*:5570"
	traceFileName   = "broker_trace.txt"

	envEndpoint = "FNCS_BROKER"
	envTrace    = "FNCS_TRACE"
)

// Config is the broker's fully-resolved startup configuration.
type Config struct {
	// ExpectedMembers is N, the number of simulators the broker waits for
	// before releasing the startup barrier.
	ExpectedMembers int

	// RealtimeInterval is the wall-clock pacing tick; zero disables pacing.
	RealtimeInterval time.Duration

	// Endpoint is the router socket bind address.
	Endpoint string

	// TraceEnabled and TraceFile govern the optional publish trace log.
	TraceEnabled bool
	TraceFile    string
}

// Parse builds a Config from the command line (`broker N [realtime_interval]`)
// and the FNCS_BROKER / FNCS_TRACE environment variables.
func Parse(args []string) (Config, error) {
	cfg := Config{
		Endpoint:  envOr(envEndpoint, defaultEndpoint),
		TraceFile: traceFileName,
	}

	if len(args) < 1 {
		return Config{}, fmt.Errorf("brokercfg: missing required argument: N")
	}
	if len(args) > 2 {
		return Config{}, fmt.Errorf("brokercfg: too many arguments, want `N [realtime_interval]`")
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return Config{}, fmt.Errorf("brokercfg: N must be an integer: %w", err)
	}
	if n <= 0 {
		return Config{}, fmt.Errorf("brokercfg: N must be >= 1, got %d", n)
	}
	cfg.ExpectedMembers = n

	if len(args) == 2 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return Config{}, fmt.Errorf("brokercfg: realtime_interval: %w", err)
		}
		cfg.RealtimeInterval = d
	}

	cfg.TraceEnabled = isTruthy(os.Getenv(envTrace))

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// isTruthy reports an env var as enabled if its first character is Y/y/T/t.
func isTruthy(v string) bool {
	if v == "" {
		return false
	}
	switch v[0] {
	case 'Y', 'y', 'T', 't':
		return true
	default:
		return false
	}
}
