package integration_test

import (
	"context"
	"errors"
	"testing"

	vybiumzklisp "github.com/vybium/vybium-zklisp/pkg/vybium-zklisp"
)

const countdownSource = `
	(letrec ((countdown (lambda (n)
	                      (if (= n 0)
	                          (quote done)
	                          (countdown (- n 1))))))
	  (countdown 12))`

// Test03_RecursionProof proves a tail-recursive program and checks
// that two independent sessions agree on every public quantity: same
// source must give the same digests, the same step count, and proofs
// that verify under each other's claims.
//
// Related example: examples/03_recursive_countdown/main.go
func Test03_RecursionProof(t *testing.T) {
	t.Log("=== Test 03: Tail Recursion -> Cross-Session Determinism ===")

	prove := func() (*vybiumzklisp.Result, *vybiumzklisp.Proof) {
		session, err := vybiumzklisp.NewSession(vybiumzklisp.DefaultConfig(), nil)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		expr, err := session.Load(countdownSource)
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		res, proof, err := session.Prove(context.Background(), expr)
		if err != nil {
			t.Fatalf("Prove failed: %v", err)
		}
		return res, proof
	}

	t.Log("Step 1: Proving in two independent sessions...")
	res1, proof1 := prove()
	res2, proof2 := prove()
	t.Logf("  Session A: %s in %d steps", res1.Rendered, res1.Steps)
	t.Logf("  Session B: %s in %d steps", res2.Rendered, res2.Steps)

	t.Log("Step 2: Comparing public quantities...")
	if res1.Steps != res2.Steps {
		t.Errorf("Step counts differ: %d vs %d", res1.Steps, res2.Steps)
	}
	if !res1.InitialDigest.Equal(res2.InitialDigest) || !res1.FinalDigest.Equal(res2.FinalDigest) {
		t.Error("State digests differ between sessions")
	}

	t.Log("Step 3: Cross-verifying proofs...")
	ok, err := vybiumzklisp.Verify(nil, res2.InitialDigest, res2.FinalDigest, res2.Steps, proof1)
	if err != nil {
		t.Fatalf("Verifier failed: %v", err)
	}
	if !ok {
		t.Error("Session A's proof rejected under session B's claim")
	}
	ok, err = vybiumzklisp.Verify(nil, res1.InitialDigest, res1.FinalDigest, res1.Steps, proof2)
	if err != nil {
		t.Fatalf("Verifier failed: %v", err)
	}
	if !ok {
		t.Error("Session B's proof rejected under session A's claim")
	}
	t.Log("  ✓ Proofs interchangeable across sessions")
}

// Test03_StepBudgetRefusesProof checks that a program exceeding the
// step budget cannot be proven: the prover reports the budget error
// and a partial result rather than folding a truncated trace.
func Test03_StepBudgetRefusesProof(t *testing.T) {
	cfg := vybiumzklisp.DefaultConfig().WithMaxSteps(25)
	session, err := vybiumzklisp.NewSession(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	expr, err := session.Load(countdownSource)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}

	partial, _, err := session.Prove(context.Background(), expr)
	var lerr *vybiumzklisp.LangError
	if !errors.As(err, &lerr) || lerr.Code != vybiumzklisp.ErrStepBudgetExceeded {
		t.Fatalf("Prove returned %v, want ErrStepBudgetExceeded", err)
	}
	if partial == nil || partial.Outcome != vybiumzklisp.OutcomeBudgetExceeded {
		t.Error("no partial result reported alongside the budget error")
	}
	if partial != nil && partial.Steps != 25 {
		t.Errorf("partial result covers %d steps, want the full budget of 25", partial.Steps)
	}
}
