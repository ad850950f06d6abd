package vybiumzklisp

import (
	"context"
	"errors"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestMembershipProofRoundTrip(t *testing.T) {
	s := newTestSession(t)

	expr, err := s.Load("(cons 1 (cons 2 nil))")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Evaluate(context.Background(), expr); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	proof, err := s.ProveMembership(expr)
	if err != nil {
		t.Fatalf("ProveMembership: %v", err)
	}
	ok, err := VerifyMembership(proof)
	if err != nil {
		t.Fatalf("VerifyMembership: %v", err)
	}
	if !ok {
		t.Error("valid membership proof rejected")
	}
}

func TestMembershipProofRejectsTampering(t *testing.T) {
	s := newTestSession(t)

	expr, err := s.Load("(quote (a b c))")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	proof, err := s.ProveMembership(expr)
	if err != nil {
		t.Fatalf("ProveMembership: %v", err)
	}

	t.Run("tampered leaf", func(t *testing.T) {
		mutated := *proof
		mutated.Leaf = mutated.Leaf.Add(field.One)
		if ok, _ := VerifyMembership(&mutated); ok {
			t.Error("accepted a tampered leaf")
		}
	})
	t.Run("tampered root", func(t *testing.T) {
		mutated := *proof
		mutated.Root = mutated.Root.Add(field.One)
		if ok, _ := VerifyMembership(&mutated); ok {
			t.Error("accepted a tampered root")
		}
	})
}

func TestMembershipProofForeignPointer(t *testing.T) {
	s := newTestSession(t)
	other := newTestSession(t)

	foreign, err := other.Load("(cons 7 8)")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// The pair was interned in the other session only; resolving it
	// here must fail.
	_, err = s.ProveMembership(foreign)
	var lerr *LangError
	if !errors.As(err, &lerr) || lerr.Code != ErrStoreNotFound {
		t.Errorf("ProveMembership returned %v, want ErrStoreNotFound", err)
	}
}
