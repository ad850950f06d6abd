// Package vybiumzklisp provides a provable symbolic-expression
// language: programs evaluate on a deterministic step machine over a
// content-addressed store, and every run can be compiled into a single
// folded proof that the evaluation happened exactly as claimed.
//
// # Features
//
// - Hash-consed, content-addressed store with Poseidon digests
// - Deterministic small-step evaluator with first-class continuations
// - Proper tail calls, so unbounded iteration runs in bounded space
// - In-band error sentinels that evaluate and prove like any value
// - Per-step arithmetization into a fixed-shape constraint system
// - Folding accumulation: one satisfaction check covers every step
// - Merkle membership proofs over a snapshot of the store
//
// # Quick Start
//
// Evaluating and proving an expression:
//
//	session, err := vybiumzklisp.NewSession(vybiumzklisp.DefaultConfig(), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	expr, err := session.Load("(let ((x 6)) (* x 7))")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, proof, err := session.Prove(context.Background(), expr)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Rendered) // 42
//
// Verifying needs only the claim and the proof, never the program:
//
//	ok, err := vybiumzklisp.Verify(nil, result.InitialDigest,
//		result.FinalDigest, result.Steps, proof)
package vybiumzklisp
