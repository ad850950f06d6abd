package core

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestNewHasherRejectsBadWidth(t *testing.T) {
	for _, width := range []int{0, 1, 13, -3} {
		if _, err := NewHasher(width); err == nil {
			t.Errorf("NewHasher(%d) succeeded, want error", width)
		}
	}
}

func TestSumIsDeterministic(t *testing.T) {
	h1, err := NewHasher(5)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	h2, err := NewHasher(5)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	inputs := []field.Element{field.New(1), field.New(2), field.New(3), field.New(4)}
	d1, err := h1.Sum(inputs)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	d2, err := h2.Sum(inputs)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}

	if !d1.Equal(d2) {
		t.Errorf("independent hashers disagree: %s != %s", d1.String(), d2.String())
	}
}

func TestSumArityMismatch(t *testing.T) {
	h, err := NewHasher(5)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if _, err := h.Sum([]field.Element{field.One}); err == nil {
		t.Error("Sum with wrong arity succeeded, want error")
	}
}

func TestSumDependsOnEveryInput(t *testing.T) {
	h, err := NewHasher(5)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	base := []field.Element{field.New(10), field.New(20), field.New(30), field.New(40)}
	ref, err := h.Sum(base)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}

	for i := range base {
		mutated := make([]field.Element, len(base))
		copy(mutated, base)
		mutated[i] = mutated[i].Add(field.One)
		d, err := h.Sum(mutated)
		if err != nil {
			t.Fatalf("Sum: %v", err)
		}
		if d.Equal(ref) {
			t.Errorf("changing input %d did not change the digest", i)
		}
	}
}

func TestAritiesAreDomainSeparated(t *testing.T) {
	hs, err := NewHasherSet()
	if err != nil {
		t.Fatalf("NewHasherSet: %v", err)
	}

	in4 := []field.Element{field.One, field.Zero, field.Zero, field.Zero}
	in6 := []field.Element{field.One, field.Zero, field.Zero, field.Zero, field.Zero, field.Zero}

	d4, err := hs.H4.Sum(in4)
	if err != nil {
		t.Fatalf("H4.Sum: %v", err)
	}
	d6, err := hs.H6.Sum(in6)
	if err != nil {
		t.Fatalf("H6.Sum: %v", err)
	}

	if d4.Equal(d6) {
		t.Error("arity-4 and arity-6 digests of zero-padded input collide")
	}
}

func TestPermuteDoesNotAliasInput(t *testing.T) {
	h, err := NewHasher(5)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	state := []field.Element{field.One, field.New(2), field.New(3), field.New(4), field.New(5)}
	saved := make([]field.Element, len(state))
	copy(saved, state)

	h.Permute(state)
	for i := range state {
		if !state[i].Equal(saved[i]) {
			t.Fatalf("Permute mutated its input at index %d", i)
		}
	}
}

func TestHashString(t *testing.T) {
	hs, err := NewHasherSet()
	if err != nil {
		t.Fatalf("NewHasherSet: %v", err)
	}

	a, err := hs.HashString("countdown")
	if err != nil {
		t.Fatalf("HashString: %v", err)
	}
	b, err := hs.HashString("countdown")
	if err != nil {
		t.Fatalf("HashString: %v", err)
	}
	c, err := hs.HashString("countdowN")
	if err != nil {
		t.Fatalf("HashString: %v", err)
	}

	if !a.Equal(b) {
		t.Error("equal strings hash differently")
	}
	if a.Equal(c) {
		t.Error("distinct strings collide")
	}

	// A one-rune string must not collide with the empty string.
	empty, err := hs.HashString("")
	if err != nil {
		t.Fatalf("HashString: %v", err)
	}
	one, err := hs.HashString("a")
	if err != nil {
		t.Fatalf("HashString: %v", err)
	}
	if empty.Equal(one) {
		t.Error("empty and one-rune strings collide")
	}
}

func TestByArity(t *testing.T) {
	hs, err := NewHasherSet()
	if err != nil {
		t.Fatalf("NewHasherSet: %v", err)
	}

	for _, arity := range []int{4, 6, 8} {
		h, err := hs.ByArity(arity)
		if err != nil {
			t.Errorf("ByArity(%d): %v", arity, err)
			continue
		}
		if h.Arity() != arity {
			t.Errorf("ByArity(%d).Arity() = %d", arity, h.Arity())
		}
	}
	if _, err := hs.ByArity(5); err == nil {
		t.Error("ByArity(5) succeeded, want error")
	}
}
