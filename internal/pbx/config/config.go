// Package config loads PBX server configuration from flags and environment
// variables.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// DefaultMaxExtensions is the registry capacity used when -extensions is
// not given.
const DefaultMaxExtensions = 1024

// Config holds the PBX server's effective configuration.
type Config struct {
	Port          int    // required: TCP port to listen on for TU clients
	BindAddr      string // address to bind the client listener
	MaxExtensions int    // registry capacity N
	LogLevel      string // debug, info, warn, error
	AdminAddr     string // bind address for the admin monitor; "" disables it
}

// Load parses flags and applies environment variable overrides. It returns
// an error if the required -p flag is missing or invalid; callers should
// treat that as an argument error (non-zero exit).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("pbx", flag.ContinueOnError)

	cfg := &Config{
		BindAddr:      "0.0.0.0",
		MaxExtensions: DefaultMaxExtensions,
		LogLevel:      "info",
	}

	var port int
	fs.IntVar(&port, "p", 0, "TCP port to listen on (required)")
	fs.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "address to bind the client listener")
	fs.IntVar(&cfg.MaxExtensions, "extensions", cfg.MaxExtensions, "registry capacity (max simultaneous extensions)")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.AdminAddr, "admin", "", "bind address for the read-only admin monitor (empty disables it)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if v := os.Getenv("PBX_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PBX_PORT: %w", err)
		}
		port = p
	}
	if v := os.Getenv("PBX_BIND"); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv("PBX_MAX_EXTENSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PBX_MAX_EXTENSIONS: %w", err)
		}
		cfg.MaxExtensions = n
	}
	if v := os.Getenv("PBX_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PBX_ADMIN_ADDR"); v != "" {
		cfg.AdminAddr = v
	}

	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("missing or invalid required -p <port>")
	}
	cfg.Port = port

	if cfg.MaxExtensions <= 0 {
		return nil, fmt.Errorf("-extensions must be positive, got %d", cfg.MaxExtensions)
	}

	return cfg, nil
}
