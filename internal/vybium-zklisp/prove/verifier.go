package prove

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/circuit"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/utils"
)

// Verifier checks folded proofs against a claim without re-running any
// evaluation step. It synthesizes its own reference copy of the step
// circuit; the synthesis path is input-independent, so the reference
// matrices are identical to the ones the prover folded over.
type Verifier struct {
	cfg *utils.Config
	sys *circuit.System
}

// NewVerifier builds a verifier for the given configuration. The
// configuration's environment depth bound must match the prover's,
// because it fixes the step-circuit shape.
func NewVerifier(cfg *utils.Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid verifier config: %w", err)
	}
	sys, err := referenceSystem(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build reference circuit: %w", err)
	}
	return &Verifier{cfg: cfg, sys: sys}, nil
}

// referenceSystem synthesizes the canonical step-circuit shape from
// the terminal no-op transition over a throwaway store.
func referenceSystem(cfg *utils.Config) (*circuit.System, error) {
	s, err := store.NewStore()
	if err != nil {
		return nil, err
	}
	terminal, err := s.InternCont(store.TagContTerminal,
		[4]store.Pointer{store.NilPointer, store.NilPointer, store.NilPointer, store.NilPointer})
	if err != nil {
		return nil, err
	}
	st := store.State{Expr: store.NilPointer, Env: store.NilPointer, Cont: terminal}

	synth, err := circuit.NewSynthesizer(s.Hashers(), cfg.MaxEnvDepth)
	if err != nil {
		return nil, err
	}
	sys, _, err := synth.SynthesizeStep(s, st, st)
	return sys, err
}

// Verify checks that the proof attests exactly the stated claim:
// evaluation from the initial digest to the final digest in the given
// number of steps.
func (v *Verifier) Verify(initialDigest, finalDigest field.Element, steps int, proof *Proof) bool {
	return v.verify(initialDigest, finalDigest, steps, proof) == nil
}

// VerifyWithReason is Verify with a diagnostic for the first check
// that failed.
func (v *Verifier) VerifyWithReason(initialDigest, finalDigest field.Element, steps int, proof *Proof) error {
	return v.verify(initialDigest, finalDigest, steps, proof)
}

func (v *Verifier) verify(initialDigest, finalDigest field.Element, steps int, proof *Proof) error {
	if proof == nil {
		return fmt.Errorf("nil proof")
	}
	if steps < 1 {
		return fmt.Errorf("claimed step count %d is not positive", steps)
	}
	c := proof.Claim
	if c.Steps != steps || !c.InitialDigest.Equal(initialDigest) || !c.FinalDigest.Equal(finalDigest) {
		return fmt.Errorf("proof was produced for a different claim: %s", c)
	}
	if len(proof.StepDigests) != steps+1 {
		return fmt.Errorf("digest chain has %d entries, want %d", len(proof.StepDigests), steps+1)
	}
	if !proof.StepDigests[0].Equal(initialDigest) {
		return fmt.Errorf("digest chain does not start at the initial digest")
	}
	if !proof.StepDigests[steps].Equal(finalDigest) {
		return fmt.Errorf("digest chain does not end at the final digest")
	}
	if len(proof.StepZ) != steps {
		return fmt.Errorf("proof carries %d step instances, want %d", len(proof.StepZ), steps)
	}
	if len(proof.AccZ) != v.sys.NumVars {
		return fmt.Errorf("accumulator assignment has %d variables, want %d", len(proof.AccZ), v.sys.NumVars)
	}
	if len(proof.AccE) != len(v.sys.Constraints) {
		return fmt.Errorf("accumulator error vector has %d entries, want %d", len(proof.AccE), len(v.sys.Constraints))
	}

	// Every step instance must be a strict assignment of the step
	// circuit with its public inputs pinned to consecutive digests of
	// the chain. Instances past the first are not satisfaction-checked
	// one by one: a non-strict instance folded at a transcript
	// challenge leaves an untracked quadratic residue in the error
	// vector, so the final relaxed check rejects it.
	for i, z := range proof.StepZ {
		if len(z) != v.sys.NumVars {
			return fmt.Errorf("step %d instance has %d variables, want %d", i, len(z), v.sys.NumVars)
		}
		if !z[0].Equal(field.One) {
			return fmt.Errorf("step %d instance is not strict", i)
		}
		if !z[1].Equal(proof.StepDigests[i]) || !z[2].Equal(proof.StepDigests[i+1]) {
			return fmt.Errorf("step %d instance does not bind its digest pair", i)
		}
	}

	// Replay the prover's transcript, which commits to the claim, the
	// digest chain and every instance, then re-fold the instances with
	// the re-derived challenges. The proof's accumulator must be
	// exactly the one this folding produces.
	t := NewTranscript(transcriptLabel)
	c.bind(t)
	t.AbsorbBytes("inst", commitAssignment(proof.StepZ[0]))

	acc, err := NewAccumulator(v.sys, proof.StepZ[0])
	if err != nil {
		return fmt.Errorf("step 0 instance rejected: %w", err)
	}
	for i := 1; i < steps; i++ {
		t.Absorb("step", proof.StepDigests[i], proof.StepDigests[i+1])
		t.AbsorbBytes("inst", commitAssignment(proof.StepZ[i]))
		r := t.Challenge("r")
		if err := acc.Fold(v.sys, proof.StepZ[i], r); err != nil {
			return fmt.Errorf("re-folding step %d: %w", i, err)
		}
	}

	for i := range acc.Z {
		if !acc.Z[i].Equal(proof.AccZ[i]) {
			return fmt.Errorf("accumulator assignment does not match the re-folded instances")
		}
	}
	for i := range acc.E {
		if !acc.E[i].Equal(proof.AccE[i]) {
			return fmt.Errorf("accumulator error vector does not match the re-folded instances")
		}
	}

	if err := v.sys.SatisfiedRelaxed(acc.Z, acc.E); err != nil {
		return fmt.Errorf("accumulated instance is not satisfied: %w", err)
	}
	return nil
}
