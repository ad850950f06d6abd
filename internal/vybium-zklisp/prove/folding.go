package prove

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/circuit"
)

// Accumulator is a running relaxed instance of the fixed step-circuit
// shape. Folding a strict per-step instance into it at a transcript
// challenge keeps the accumulator satisfiable exactly when both inputs
// were, so one final satisfaction check covers every folded step.
type Accumulator struct {
	Z []field.Element
	E []field.Element
}

// NewAccumulator starts the accumulator from the first strict
// instance: its error vector is zero and its relaxation scalar is one.
func NewAccumulator(sys *circuit.System, z []field.Element) (*Accumulator, error) {
	if err := sys.Satisfied(z); err != nil {
		return nil, fmt.Errorf("first instance is not strictly satisfied: %w", err)
	}
	acc := &Accumulator{
		Z: append([]field.Element(nil), z...),
		E: make([]field.Element, len(sys.Constraints)),
	}
	for i := range acc.E {
		acc.E[i] = field.Zero
	}
	return acc, nil
}

// Fold absorbs one strict instance at challenge r:
//
//	Z' = Z + r*z
//	E' = E + r*T(Z, z)
//
// where T is the bilinear cross term of the two assignments. The
// incoming instance's own error vector is zero, so the r^2 term
// vanishes.
func (a *Accumulator) Fold(sys *circuit.System, z []field.Element, r field.Element) error {
	if len(z) != len(a.Z) {
		return fmt.Errorf("instance size %d does not match accumulator size %d", len(z), len(a.Z))
	}

	t, err := sys.CrossTerm(a.Z, z)
	if err != nil {
		return fmt.Errorf("failed to compute cross term: %w", err)
	}

	for i := range a.Z {
		a.Z[i] = a.Z[i].Add(r.Mul(z[i]))
	}
	for i := range a.E {
		a.E[i] = a.E[i].Add(r.Mul(t[i]))
	}
	return nil
}

// Satisfied checks the accumulated relaxed relation.
func (a *Accumulator) Satisfied(sys *circuit.System) error {
	return sys.SatisfiedRelaxed(a.Z, a.E)
}
