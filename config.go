package rvideo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls a Server's listener and per-connection behavior.
// The zero value is not directly usable for BindAddr/AckTimeout; use
// DefaultServerConfig to get sane defaults and override fields from there.
type ServerConfig struct {
	// BindAddr is a listen address such as ":9999". Server.Serve does not
	// read it; Serve listens on the address passed to it.
	BindAddr string `yaml:"bind_addr"`

	// MaxClients bounds concurrently accepted connections across the whole
	// server, admitted via internal/admission. The reference behavior
	// documented in spec.md has no cap beyond OS limits; rvideo gives
	// operators an explicit one instead, defaulting to 16 to match the
	// original implementation's default.
	MaxClients int `yaml:"max_clients"`

	// AckTimeout bounds how long a connection waits for a client's ACK
	// byte after writing a frame before it is closed with ErrTimeout.
	// This is spec.md §9's open question, resolved as a configuration
	// value rather than a hard-coded constant.
	AckTimeout time.Duration `yaml:"ack_timeout"`

	// HandshakeTimeout bounds GREETINGS write, STREAM-SELECT read, and
	// STREAM-INFO write during connection setup.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// IdleTakeInterval bounds how long a connection's slot wait blocks
	// before looping back to re-check for shutdown/deregistration. Idle
	// is not itself fatal; see spec.md §4.5.
	IdleTakeInterval time.Duration `yaml:"idle_take_interval"`
}

// DefaultServerConfig returns the configuration rvideo's package-level
// convenience functions (CreateStream, Serve) use.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		BindAddr:         ":9999",
		MaxClients:       16,
		AckTimeout:       5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		IdleTakeInterval: 5 * time.Second,
	}
}

// LoadServerConfig reads and parses a YAML ServerConfig file, starting
// from DefaultServerConfig so an operator's file only needs to override
// the fields it cares about.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, newError("LoadServerConfig", ErrIO, fmt.Errorf("reading %s: %w", path, err))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, newError("LoadServerConfig", ErrProtocolViolation, fmt.Errorf("parsing %s: %w", path, err))
	}
	return cfg, nil
}
