// Package circuit arithmetizes one evaluator step as a rank-1
// constraint system. The synthesized system has a fixed topology for
// every step, which is what makes the per-step instances foldable into
// a single accumulated claim.
package circuit

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

var (
	// ErrUnsatisfied reports a constraint whose product side and
	// linear side disagree under the given assignment.
	ErrUnsatisfied = errors.New("constraint not satisfied")

	// ErrAssignmentSize reports an assignment vector that does not
	// match the system's variable count.
	ErrAssignmentSize = errors.New("assignment size does not match variable count")
)

// Term is one (coefficient, variable) pair of a sparse linear
// combination.
type Term struct {
	Var   int
	Coeff field.Element
}

// LC is a sparse linear combination over the assignment vector.
type LC []Term

// Constraint is a single rank-1 constraint <A,z> * <B,z> = <C,z>.
type Constraint struct {
	A LC
	B LC
	C LC
}

// System is a complete constraint system. Variable 0 is the constant
// one in a strict instance and the relaxation scalar u in a relaxed
// one; public inputs occupy variables 1..NumPublic.
type System struct {
	Constraints []Constraint
	NumVars     int
	NumPublic   int
}

// ShapeEqual reports whether two systems have identical dimensions.
// Folding is only defined between instances of the same shape; the
// synthesizer produces one fixed shape, so a mismatch means the caller
// mixed systems from different synthesizers.
func (sys *System) ShapeEqual(other *System) bool {
	return sys.NumVars == other.NumVars &&
		sys.NumPublic == other.NumPublic &&
		len(sys.Constraints) == len(other.Constraints)
}

// Eval evaluates a linear combination under an assignment.
func (lc LC) Eval(z []field.Element) field.Element {
	acc := field.Zero
	for _, t := range lc {
		acc = acc.Add(t.Coeff.Mul(z[t.Var]))
	}
	return acc
}

// Satisfied checks a strict instance: z[0] must be one and every
// constraint must hold with a zero error vector.
func (sys *System) Satisfied(z []field.Element) error {
	if len(z) != sys.NumVars {
		return fmt.Errorf("%w: got %d, want %d", ErrAssignmentSize, len(z), sys.NumVars)
	}
	if !z[0].Equal(field.One) {
		return fmt.Errorf("strict instance requires z[0] = 1")
	}
	return sys.SatisfiedRelaxed(z, nil)
}

// SatisfiedRelaxed checks the relaxed relation Az o Bz = u*Cz + E,
// where u = z[0] and a nil E means the zero vector.
func (sys *System) SatisfiedRelaxed(z, e []field.Element) error {
	if len(z) != sys.NumVars {
		return fmt.Errorf("%w: got %d, want %d", ErrAssignmentSize, len(z), sys.NumVars)
	}
	if e != nil && len(e) != len(sys.Constraints) {
		return fmt.Errorf("error vector has %d entries, want %d", len(e), len(sys.Constraints))
	}

	u := z[0]
	for i, c := range sys.Constraints {
		left := c.A.Eval(z).Mul(c.B.Eval(z))
		right := u.Mul(c.C.Eval(z))
		if e != nil {
			right = right.Add(e[i])
		}
		if !left.Equal(right) {
			return fmt.Errorf("%w: constraint %d", ErrUnsatisfied, i)
		}
	}
	return nil
}

// CrossTerm computes the folding cross term
//
//	T_i = <A,z1><B,z2> + <A,z2><B,z1> - u1<C,z2> - u2<C,z1>
//
// which absorbs the bilinear interference of folding two assignments
// into the accumulated error vector.
func (sys *System) CrossTerm(z1, z2 []field.Element) ([]field.Element, error) {
	if len(z1) != sys.NumVars || len(z2) != sys.NumVars {
		return nil, ErrAssignmentSize
	}

	u1, u2 := z1[0], z2[0]
	t := make([]field.Element, len(sys.Constraints))
	for i, c := range sys.Constraints {
		a1, a2 := c.A.Eval(z1), c.A.Eval(z2)
		b1, b2 := c.B.Eval(z1), c.B.Eval(z2)
		c1, c2 := c.C.Eval(z1), c.C.Eval(z2)

		t[i] = a1.Mul(b2).Add(a2.Mul(b1)).Sub(u1.Mul(c2)).Sub(u2.Mul(c1))
	}
	return t, nil
}

// PublicInputs extracts the public segment of an assignment.
func (sys *System) PublicInputs(z []field.Element) ([]field.Element, error) {
	if len(z) != sys.NumVars {
		return nil, ErrAssignmentSize
	}
	out := make([]field.Element, sys.NumPublic)
	copy(out, z[1:1+sys.NumPublic])
	return out, nil
}
