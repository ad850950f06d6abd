package prove

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/circuit"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/lang"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/utils"
)

// transcriptLabel domain-separates this folding scheme from any other
// transcript user.
const transcriptLabel = "zklisp.fold.v1"

var (
	// ErrStepBudget reports that evaluation did not terminate within
	// the configured step budget. The partial trace is not proved;
	// the caller must raise the budget or accept incompleteness.
	ErrStepBudget = errors.New("step budget exceeded before termination")

	// ErrEnvDepth reports a symbol lookup deeper than the configured
	// environment bound, which the fixed-shape circuit cannot cover.
	ErrEnvDepth = errors.New("environment lookup exceeds configured depth bound")
)

// Prover evaluates an expression and produces a folded proof of the
// whole trace.
type Prover struct {
	store  *store.Store
	cfg    *utils.Config
	eval   *lang.Evaluator
	synth  *circuit.Synthesizer
	logger *slog.Logger
}

// NewProver creates a prover over a store. The logger may be nil.
func NewProver(s *store.Store, cfg *utils.Config, logger *slog.Logger) (*Prover, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prover config: %w", err)
	}
	eval, err := lang.NewEvaluator(s, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluator: %w", err)
	}
	synth, err := circuit.NewSynthesizer(s.Hashers(), cfg.MaxEnvDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesizer: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Prover{
		store:  s,
		cfg:    cfg,
		eval:   eval,
		synth:  synth,
		logger: logger,
	}, nil
}

// Evaluator exposes the prover's evaluator, which shares its store and
// configuration.
func (p *Prover) Evaluator() *lang.Evaluator {
	return p.eval
}

// Prove evaluates the expression to termination and proves the trace.
// It returns the evaluation result alongside the proof; a result whose
// value is an error sentinel is still proved, because "evaluation
// deterministically reached this error" is itself the attested claim.
func (p *Prover) Prove(ctx context.Context, expr store.Pointer) (*lang.Result, *Proof, error) {
	res, err := p.eval.Evaluate(ctx, expr)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluation failed: %w", err)
	}
	if res.Outcome == lang.OutcomeBudgetExceeded {
		return res, nil, fmt.Errorf("%w: %d steps", ErrStepBudget, res.Steps)
	}
	if res.MaxLookupDepth >= p.cfg.MaxEnvDepth {
		return res, nil, fmt.Errorf("%w: depth %d, bound %d", ErrEnvDepth, res.MaxLookupDepth, p.cfg.MaxEnvDepth)
	}

	proof, err := p.ProveTrace(ctx, res.Trace)
	if err != nil {
		return res, nil, err
	}
	return res, proof, nil
}

// ProveTrace folds an already-recorded trace into a proof.
func (p *Prover) ProveTrace(ctx context.Context, trace []store.State) (*Proof, error) {
	steps := len(trace) - 1
	if steps < 1 {
		return nil, fmt.Errorf("trace has %d states, need at least 2", len(trace))
	}

	digests := make([]field.Element, len(trace))
	for i, st := range trace {
		d, err := p.store.HashState(st)
		if err != nil {
			return nil, fmt.Errorf("failed to digest state %d: %w", i, err)
		}
		digests[i] = d
	}

	p.logger.Info("synthesizing step instances", "steps", steps)
	systems := make([]*circuit.System, steps)
	assignments := make([][]field.Element, steps)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < steps; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sys, z, err := p.synth.SynthesizeStep(p.store, trace[i], trace[i+1])
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			systems[i] = sys
			assignments[i] = z
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	for i := 1; i < steps; i++ {
		if !systems[i].ShapeEqual(systems[0]) {
			return nil, fmt.Errorf("step %d synthesized a different circuit shape", i)
		}
	}

	claim := Claim{InitialDigest: digests[0], FinalDigest: digests[steps], Steps: steps}
	t := NewTranscript(transcriptLabel)
	claim.bind(t)
	t.AbsorbBytes("inst", commitAssignment(assignments[0]))

	acc, err := NewAccumulator(systems[0], assignments[0])
	if err != nil {
		return nil, err
	}
	for i := 1; i < steps; i++ {
		t.Absorb("step", digests[i], digests[i+1])
		t.AbsorbBytes("inst", commitAssignment(assignments[i]))
		r := t.Challenge("r")
		if err := acc.Fold(systems[0], assignments[i], r); err != nil {
			return nil, fmt.Errorf("folding step %d: %w", i, err)
		}
		if i%1000 == 0 {
			p.logger.Info("folding progress", "folded", i, "total", steps)
		}
	}

	if err := acc.Satisfied(systems[0]); err != nil {
		return nil, fmt.Errorf("accumulator self-check failed: %w", err)
	}
	p.logger.Info("proof complete", "steps", steps,
		"constraints", len(systems[0].Constraints), "variables", systems[0].NumVars)

	return &Proof{
		Claim:       claim,
		StepDigests: digests,
		StepZ:       assignments,
		AccZ:        acc.Z,
		AccE:        acc.E,
	}, nil
}
