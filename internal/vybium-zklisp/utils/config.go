// Package utils holds the shared configuration for evaluation and
// proving. The hash arity set declared here is the single source of
// truth for both the evaluator's content addressing and the circuit's
// in-circuit hashing; any disagreement is a fatal configuration error,
// not something detectable at proof time.
package utils

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Config carries the build-time parameters of the language core.
type Config struct {
	// FieldModulus is the characteristic of the scalar field. It must
	// equal field.P; the knob exists so a mismatch between a persisted
	// store and the linked field implementation is caught on startup.
	FieldModulus uint64

	// HashArities is the fixed content-addressing arity set.
	HashArities []int

	// MaxSteps is the default step budget for evaluation and proving.
	MaxSteps int

	// MaxEnvDepth bounds the environment chain length the circuit's
	// lookup gadget unrolls to. Evaluation of programs whose lexical
	// depth exceeds this cannot be proven.
	MaxEnvDepth int

	// SecurityLevel in bits, forwarded to the proof transcript.
	SecurityLevel int
}

// DefaultConfig returns the canonical configuration.
func DefaultConfig() *Config {
	return &Config{
		FieldModulus:  field.P,
		HashArities:   []int{4, 6, 8},
		MaxSteps:      100000,
		MaxEnvDepth:   16,
		SecurityLevel: 128,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.FieldModulus != field.P {
		return fmt.Errorf("field modulus mismatch: config has %d, linked field has %d", c.FieldModulus, field.P)
	}

	if len(c.HashArities) == 0 {
		return fmt.Errorf("hash arity set must not be empty")
	}
	want := map[int]bool{4: false, 6: false, 8: false}
	for _, a := range c.HashArities {
		if _, ok := want[a]; !ok {
			return fmt.Errorf("unsupported hash arity %d (fixed arities are 4, 6, 8)", a)
		}
		want[a] = true
	}
	for a, seen := range want {
		if !seen {
			return fmt.Errorf("hash arity %d missing from configuration", a)
		}
	}

	if c.MaxSteps <= 0 {
		return fmt.Errorf("step budget must be positive, got %d", c.MaxSteps)
	}

	if c.MaxEnvDepth <= 0 {
		return fmt.Errorf("max environment depth must be positive, got %d", c.MaxEnvDepth)
	}

	if c.SecurityLevel != 128 && c.SecurityLevel != 256 {
		return fmt.Errorf("security level must be 128 or 256, got %d", c.SecurityLevel)
	}

	return nil
}

// WithMaxSteps sets the default step budget.
func (c *Config) WithMaxSteps(n int) *Config {
	c.MaxSteps = n
	return c
}

// WithMaxEnvDepth sets the circuit lookup unroll bound.
func (c *Config) WithMaxEnvDepth(n int) *Config {
	c.MaxEnvDepth = n
	return c
}

// WithSecurityLevel sets the transcript security level.
func (c *Config) WithSecurityLevel(bits int) *Config {
	c.SecurityLevel = bits
	return c
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	arities := make([]int, len(c.HashArities))
	copy(arities, c.HashArities)
	return &Config{
		FieldModulus:  c.FieldModulus,
		HashArities:   arities,
		MaxSteps:      c.MaxSteps,
		MaxEnvDepth:   c.MaxEnvDepth,
		SecurityLevel: c.SecurityLevel,
	}
}
