package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	vybiumzklisp "github.com/vybium/vybium-zklisp/pkg/vybium-zklisp"
)

// manifestConfig mirrors the zklisp.toml layout. Every section is
// optional; absent values fall back to the built-in defaults.
type manifestConfig struct {
	Limits limitsConfig `toml:"limits"`
	Proof  proofConfig  `toml:"proof"`
}

type limitsConfig struct {
	MaxSteps    int `toml:"max-steps"`
	MaxEnvDepth int `toml:"max-env-depth"`
}

type proofConfig struct {
	SecurityLevel int `toml:"security-level"`
}

// findManifest walks upward from startDir looking for zklisp.toml.
func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "zklisp.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadConfig resolves the effective configuration: built-in defaults,
// overlaid with zklisp.toml when one is found (or explicitly given).
func loadConfig(explicitPath string) (*vybiumzklisp.Config, error) {
	cfg := vybiumzklisp.DefaultConfig()

	path := explicitPath
	if path == "" {
		found, ok, err := findManifest(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			return cfg, nil
		}
		path = found
	}

	var manifest manifestConfig
	meta, err := toml.DecodeFile(path, &manifest)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("limits", "max-steps") {
		cfg = cfg.WithMaxSteps(manifest.Limits.MaxSteps)
	}
	if meta.IsDefined("limits", "max-env-depth") {
		cfg = cfg.WithMaxEnvDepth(manifest.Limits.MaxEnvDepth)
	}
	if meta.IsDefined("proof", "security-level") {
		cfg = cfg.WithSecurityLevel(manifest.Proof.SecurityLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
