package integration_test

import (
	"context"
	"testing"

	vybiumzklisp "github.com/vybium/vybium-zklisp/pkg/vybium-zklisp"
)

// Test02_ErrorSentinelProof checks that a program terminating on an
// error sentinel is a first-class, provable evaluation: the sentinel
// is the result, and the proof over the trace verifies like any other.
func Test02_ErrorSentinelProof(t *testing.T) {
	t.Log("=== Test 02: Error Sentinel -> Provable Result ===")

	session, err := vybiumzklisp.NewSession(vybiumzklisp.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	cases := []struct {
		source   string
		sentinel string
	}{
		{"(/ 1 0)", "arithmetic-domain-error"},
		{"(+ 1 (quote a))", "arithmetic-domain-error"},
		{"undefined-variable", "unbound-variable-error"},
		{"(car 5)", "malformed-expression-error"},
		{"((lambda (x) x) 1 2)", "arity-mismatch-error"},
		{"(1 2 3)", "not-a-function-error"},
	}

	for _, tc := range cases {
		t.Run(tc.source, func(t *testing.T) {
			expr, err := session.Load(tc.source)
			if err != nil {
				t.Fatalf("Failed to read: %v", err)
			}

			result, proof, err := session.Prove(context.Background(), expr)
			if err != nil {
				t.Fatalf("Prove failed: an error sentinel is a value, not a host error: %v", err)
			}
			if result.Sentinel != tc.sentinel {
				t.Errorf("Sentinel = %q, want %q", result.Sentinel, tc.sentinel)
			}

			ok, err := vybiumzklisp.Verify(nil, result.InitialDigest, result.FinalDigest,
				result.Steps, proof)
			if err != nil {
				t.Fatalf("Verifier failed: %v", err)
			}
			if !ok {
				t.Error("Proof of an error-terminated evaluation rejected")
			}
			t.Logf("  ✓ %q proves and verifies with sentinel %s", tc.source, result.Sentinel)
		})
	}
}
