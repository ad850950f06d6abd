package circuit

import (
	"errors"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestBuilderMul(t *testing.T) {
	b := NewBuilder(0)
	x := b.Alloc(field.New(6))
	y := b.Alloc(field.New(7))
	z := b.Mul(Single(x), Single(y))

	if !b.Value(z).Equal(field.New(42)) {
		t.Errorf("product = %v, want 42", b.Value(z))
	}

	sys, assignment, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sys.Satisfied(assignment); err != nil {
		t.Errorf("Satisfied: %v", err)
	}
}

func TestBuilderTamperedAssignmentFails(t *testing.T) {
	b := NewBuilder(0)
	x := b.Alloc(field.New(3))
	b.Mul(Single(x), Single(x))

	sys, assignment, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tampered := make([]field.Element, len(assignment))
	copy(tampered, assignment)
	tampered[len(tampered)-1] = tampered[len(tampered)-1].Add(field.One)

	if err := sys.Satisfied(tampered); !errors.Is(err, ErrUnsatisfied) {
		t.Errorf("tampered assignment returned %v, want ErrUnsatisfied", err)
	}
}

func TestBuilderIsZero(t *testing.T) {
	tests := []struct {
		value field.Element
		want  field.Element
	}{
		{field.Zero, field.One},
		{field.New(5), field.Zero},
	}
	for _, tc := range tests {
		b := NewBuilder(0)
		x := b.Alloc(tc.value)
		out := b.IsZero(Single(x))
		if !b.Value(out).Equal(tc.want) {
			t.Errorf("IsZero(%v) = %v, want %v", tc.value, b.Value(out), tc.want)
		}
		sys, assignment, err := b.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := sys.Satisfied(assignment); err != nil {
			t.Errorf("IsZero(%v) system unsatisfied: %v", tc.value, err)
		}
	}
}

func TestBuilderSelect(t *testing.T) {
	for _, sel := range []field.Element{field.Zero, field.One} {
		b := NewBuilder(0)
		s := b.Alloc(sel)
		b.AssertBoolean(s)
		x := b.Alloc(field.New(10))
		y := b.Alloc(field.New(20))
		out := b.Select(s, Single(x), Single(y))

		want := field.New(20)
		if sel.Equal(field.One) {
			want = field.New(10)
		}
		if !b.Value(out).Equal(want) {
			t.Errorf("Select(%v) = %v, want %v", sel, b.Value(out), want)
		}
		sys, assignment, err := b.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := sys.Satisfied(assignment); err != nil {
			t.Errorf("Select system unsatisfied: %v", err)
		}
	}
}

func TestAssertEqIfGating(t *testing.T) {
	// With the selector off, unequal values must still satisfy.
	b := NewBuilder(0)
	sel := b.Alloc(field.Zero)
	x := b.Alloc(field.New(1))
	y := b.Alloc(field.New(2))
	b.AssertEqIf(sel, Single(x), Single(y))

	sys, assignment, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sys.Satisfied(assignment); err != nil {
		t.Errorf("gated-off equality rejected: %v", err)
	}

	// With the selector on, unequal values must fail.
	b2 := NewBuilder(0)
	sel2 := b2.Alloc(field.One)
	x2 := b2.Alloc(field.New(1))
	y2 := b2.Alloc(field.New(2))
	b2.AssertEqIf(sel2, Single(x2), Single(y2))

	if _, _, err := b2.Build(); err == nil {
		t.Error("gated-on inequality accepted at build time")
	}
}

func TestPublicAfterWitnessRejected(t *testing.T) {
	b := NewBuilder(1)
	b.Alloc(field.New(1))
	if _, err := b.AllocPublic(field.New(2)); err == nil {
		t.Error("public variable accepted after witness allocation")
	}
}

// buildToySystem returns a small system with one public input:
// pub = x * x + 3.
func buildToySystem(t *testing.T, x field.Element) (*System, []field.Element) {
	t.Helper()
	square := x.Mul(x)
	pubVal := square.Add(field.New(3))

	b := NewBuilder(1)
	pub, err := b.AllocPublic(pubVal)
	if err != nil {
		t.Fatalf("AllocPublic: %v", err)
	}
	xv := b.Alloc(x)
	sq := b.Mul(Single(xv), Single(xv))
	b.AssertEq(Sum(Single(sq), Constant(field.New(3))), Single(pub))

	sys, assignment, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return sys, assignment
}

func TestFoldingAlgebra(t *testing.T) {
	sys, z1 := buildToySystem(t, field.New(4))
	sys2, z2 := buildToySystem(t, field.New(11))
	if !sys.ShapeEqual(sys2) {
		t.Fatal("identical synthesis produced different shapes")
	}

	// Fold the two strict instances at a challenge r: the folded
	// assignment satisfies the relaxed relation with E = r*T.
	r := field.New(12345)
	tVec, err := sys.CrossTerm(z1, z2)
	if err != nil {
		t.Fatalf("CrossTerm: %v", err)
	}

	folded := make([]field.Element, len(z1))
	for i := range z1 {
		folded[i] = z1[i].Add(r.Mul(z2[i]))
	}
	e := make([]field.Element, len(tVec))
	for i := range tVec {
		e[i] = r.Mul(tVec[i])
	}

	if err := sys.SatisfiedRelaxed(folded, e); err != nil {
		t.Errorf("folded instance unsatisfied: %v", err)
	}

	// Tampering with the folded error vector must break it.
	e[0] = e[0].Add(field.One)
	if err := sys.SatisfiedRelaxed(folded, e); err == nil {
		t.Error("tampered error vector still satisfied")
	}
}

func TestRelaxedRejectsWrongSizes(t *testing.T) {
	sys, z := buildToySystem(t, field.New(2))
	if err := sys.Satisfied(z[:len(z)-1]); !errors.Is(err, ErrAssignmentSize) {
		t.Errorf("short assignment returned %v", err)
	}
	if err := sys.SatisfiedRelaxed(z, make([]field.Element, len(sys.Constraints)+1)); err == nil {
		t.Error("oversized error vector accepted")
	}
}
