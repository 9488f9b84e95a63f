// Package config loads simbridge daemon configuration from TOML.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Listen modes for the endpoint registration boundary.
const (
	ListenUnix = "unix"
	ListenTCP  = "tcp"
)

// Config is the daemon runtime configuration.
type Config struct {
	// Name is the endpoint name the channel is registered under.
	Name string
	// Emulator names the external emulator executable this channel
	// fronts. Stored and surfaced in status; never interpreted.
	Emulator string
	// Listen selects the registration mode: unix socket or TCP.
	Listen string
	// SocketDir hosts <name>.sock in unix mode.
	SocketDir string
	// Addr is the TCP listen address in tcp mode.
	Addr string
	// CorsOrigins is the allowed origin list; empty disables CORS.
	CorsOrigins []string
	// AdminToken guards POST /admin/release; empty closes the surface.
	AdminToken string
}

// fileConfig is the config.toml key mapping.
type fileConfig struct {
	Name        string   `toml:"name"`
	Emulator    string   `toml:"emulator"`
	Listen      string   `toml:"listen"`
	SocketDir   string   `toml:"socket_dir"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	AdminToken  string   `toml:"admin_token"`
}

// Default returns the baseline configuration before file overlay.
func Default() Config {
	return Config{
		Name:      "simbridge0",
		Emulator:  "opentpu-emulator-latest",
		Listen:    ListenUnix,
		SocketDir: "/run/simbridge",
		Addr:      ":9470",
	}
}

// Load overlays config.toml at path onto the defaults and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("emulator") {
		cfg.Emulator = strings.TrimSpace(raw.Emulator)
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.ToLower(strings.TrimSpace(raw.Listen))
	}
	if meta.IsDefined("socket_dir") {
		cfg.SocketDir = strings.TrimSpace(raw.SocketDir)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the daemon relies on at startup.
func Validate(cfg Config) error {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return fmt.Errorf("config missing name")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("config name %q is not path-safe", cfg.Name)
	}
	if strings.TrimSpace(cfg.Emulator) == "" {
		return fmt.Errorf("config missing emulator")
	}
	switch cfg.Listen {
	case ListenUnix:
		if strings.TrimSpace(cfg.SocketDir) == "" {
			return fmt.Errorf("config socket_dir required for unix listen")
		}
	case ListenTCP:
		if strings.TrimSpace(cfg.Addr) == "" {
			return fmt.Errorf("config addr required for tcp listen")
		}
	default:
		return fmt.Errorf("config listen %q (expected %s or %s)", cfg.Listen, ListenUnix, ListenTCP)
	}
	return nil
}
