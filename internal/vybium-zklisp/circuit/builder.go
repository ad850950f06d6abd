package circuit

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Var is an index into the assignment vector.
type Var int

// OneVar is the constant-one variable of every strict instance.
const OneVar Var = 0

// Builder constructs a constraint system and its satisfying assignment
// together. Synthesis code allocates a variable by providing its
// value, so a finished build carries both the shape (the System) and
// the witness for the concrete step it was built from.
//
// The synthesis path must not branch on witness values; every gate is
// emitted unconditionally and data-dependent behavior is expressed
// through selector variables. That discipline is what keeps the shape
// identical across steps.
type Builder struct {
	sys        *System
	assignment []field.Element
	sealed     bool
}

// NewBuilder starts a build with the given number of public inputs.
// Public variables must be allocated, in order, before anything else.
func NewBuilder(numPublic int) *Builder {
	return &Builder{
		sys:        &System{NumVars: 1, NumPublic: numPublic},
		assignment: []field.Element{field.One},
	}
}

// AllocPublic allocates the next public input variable.
func (b *Builder) AllocPublic(v field.Element) (Var, error) {
	next := b.sys.NumVars
	if next > b.sys.NumPublic {
		return 0, fmt.Errorf("public variable allocated after witness variables")
	}
	return b.alloc(v), nil
}

// Alloc allocates a witness variable with the given value.
func (b *Builder) Alloc(v field.Element) Var {
	return b.alloc(v)
}

func (b *Builder) alloc(v field.Element) Var {
	idx := Var(b.sys.NumVars)
	b.sys.NumVars++
	b.assignment = append(b.assignment, v)
	return idx
}

// Value returns the assigned value of a variable.
func (b *Builder) Value(v Var) field.Element {
	return b.assignment[v]
}

// Constant returns a linear combination equal to a constant.
func Constant(c field.Element) LC {
	return LC{{Var: int(OneVar), Coeff: c}}
}

// Single returns the linear combination consisting of one variable.
func Single(v Var) LC {
	return LC{{Var: int(v), Coeff: field.One}}
}

// Sum returns the linear combination a + b.
func Sum(a, b LC) LC {
	out := make(LC, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// Scale multiplies every coefficient of a linear combination.
func Scale(c field.Element, lc LC) LC {
	out := make(LC, len(lc))
	for i, t := range lc {
		out[i] = Term{Var: t.Var, Coeff: c.Mul(t.Coeff)}
	}
	return out
}

// Neg returns the additive inverse of a linear combination.
func Neg(lc LC) LC {
	return Scale(field.Zero.Sub(field.One), lc)
}

// evalLC evaluates a linear combination against the current assignment.
func (b *Builder) evalLC(lc LC) field.Element {
	return lc.Eval(b.assignment)
}

// addConstraint records <A,z>*<B,z> = <C,z>.
func (b *Builder) addConstraint(a, bb, c LC) {
	b.sys.Constraints = append(b.sys.Constraints, Constraint{A: a, B: bb, C: c})
}

// Mul allocates the product of two linear combinations and constrains
// it.
func (b *Builder) Mul(x, y LC) Var {
	v := b.alloc(b.evalLC(x).Mul(b.evalLC(y)))
	b.addConstraint(x, y, Single(v))
	return v
}

// AssertEq constrains two linear combinations to be equal.
func (b *Builder) AssertEq(x, y LC) {
	b.addConstraint(x, Constant(field.One), y)
}

// AssertEqIf constrains x = y only when the selector is one:
// sel * (x - y) = 0. A zero selector disables the check.
func (b *Builder) AssertEqIf(sel Var, x, y LC) {
	b.addConstraint(Single(sel), Sum(x, Neg(y)), Constant(field.Zero))
}

// AssertBoolean constrains v to zero or one.
func (b *Builder) AssertBoolean(v Var) {
	b.addConstraint(Single(v), Sum(Single(v), Constant(field.Zero.Sub(field.One))), Constant(field.Zero))
}

// IsZero allocates a boolean that is one exactly when the linear
// combination evaluates to zero. Uses the standard inverse trick:
// out = 1 - x*inv, x*out = 0.
func (b *Builder) IsZero(x LC) Var {
	xv := b.evalLC(x)

	var invVal field.Element
	if xv.IsZero() {
		invVal = field.Zero
	} else {
		invVal = xv.Inverse()
	}
	inv := b.alloc(invVal)

	var outVal field.Element
	if xv.IsZero() {
		outVal = field.One
	} else {
		outVal = field.Zero
	}
	out := b.alloc(outVal)

	// out = 1 - x*inv
	b.addConstraint(x, Single(inv), Sum(Constant(field.One), Neg(Single(out))))
	// x * out = 0
	b.addConstraint(x, Single(out), Constant(field.Zero))
	return out
}

// IsEqual allocates a boolean that is one exactly when x = y.
func (b *Builder) IsEqual(x, y LC) Var {
	return b.IsZero(Sum(x, Neg(y)))
}

// Select allocates sel ? x : y, assuming sel is boolean:
// out = y + sel*(x - y).
func (b *Builder) Select(sel Var, x, y LC) Var {
	d := b.Mul(Single(sel), Sum(x, Neg(y)))
	outVal := b.evalLC(y).Add(b.Value(d))
	out := b.alloc(outVal)
	b.AssertEq(Sum(y, Single(d)), Single(out))
	return out
}

// Snapshot allocates a variable constrained to equal a linear
// combination, collapsing it to a single wire.
func (b *Builder) Snapshot(lc LC) Var {
	v := b.alloc(b.evalLC(lc))
	b.AssertEq(lc, Single(v))
	return v
}

// Build finalizes the system and returns it with its assignment. The
// builder must not be used afterwards.
func (b *Builder) Build() (*System, []field.Element, error) {
	if b.sealed {
		return nil, nil, fmt.Errorf("builder already finalized")
	}
	b.sealed = true

	if err := b.sys.Satisfied(b.assignment); err != nil {
		return nil, nil, fmt.Errorf("synthesis produced an unsatisfied system: %w", err)
	}
	return b.sys, b.assignment, nil
}
