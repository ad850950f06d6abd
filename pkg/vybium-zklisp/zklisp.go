package vybiumzklisp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/lang"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/parse"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/prove"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/utils"
)

// Config is the public configuration surface.
type Config = utils.Config

// DefaultConfig returns the canonical configuration.
func DefaultConfig() *Config {
	return utils.DefaultConfig()
}

// Pointer is a content-addressed reference into a session's store.
type Pointer = store.Pointer

// Proof is a folded proof of one complete evaluation.
type Proof = prove.Proof

// Claim is the public statement a proof attests to.
type Claim = prove.Claim

// Outcome classifies how an evaluation ended.
type Outcome = lang.Outcome

const (
	OutcomeCompleted      = lang.OutcomeCompleted
	OutcomeBudgetExceeded = lang.OutcomeBudgetExceeded
)

// Result is the outcome of one evaluation run.
type Result struct {
	// Outcome says whether the run terminated or ran out of budget.
	// A budget-exceeded result has no value, only the partial trace's
	// step count, emissions and digest span.
	Outcome Outcome

	// Value is the final value. When Sentinel is non-empty the value
	// is the error sentinel the evaluation deterministically reached.
	Value    Pointer
	Rendered string
	Sentinel string

	Steps   int
	Emitted []Pointer

	// InitialDigest and FinalDigest are the state digests that appear
	// as the public inputs of a proof over this run.
	InitialDigest field.Element
	FinalDigest   field.Element
}

// Session owns a store and everything layered over it: reader,
// evaluator, prover. Pointers returned by one session are only
// meaningful within that session.
type Session struct {
	store  *store.Store
	cfg    *Config
	prover *prove.Prover
}

// NewSession creates a session. The logger may be nil.
func NewSession(cfg *Config, logger *slog.Logger) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(ErrInvalidConfig, "configuration rejected", err)
	}
	s, err := store.NewStore()
	if err != nil {
		return nil, newError(ErrInvalidConfig, "failed to initialize store", err)
	}
	prover, err := prove.NewProver(s, cfg, logger)
	if err != nil {
		return nil, newError(ErrInvalidConfig, "failed to initialize prover", err)
	}
	return &Session{store: s, cfg: cfg, prover: prover}, nil
}

// Load reads one expression of source text into the session's store.
func (s *Session) Load(source string) (Pointer, error) {
	expr, err := parse.ReadOne(s.store, source)
	if err != nil {
		return Pointer{}, newError(ErrParse, "failed to read expression", err)
	}
	return expr, nil
}

// Render prints a store value back as source syntax.
func (s *Session) Render(p Pointer) (string, error) {
	text, err := parse.Print(s.store, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", newError(ErrStoreNotFound, "pointer does not belong to this session", err)
		}
		return "", newError(ErrUnknown, "failed to render value", err)
	}
	return text, nil
}

// Evaluate runs an expression to termination or to the step budget.
// When the budget runs out it returns the partial result alongside an
// ErrStepBudgetExceeded error, so callers can see how far the run got.
func (s *Session) Evaluate(ctx context.Context, expr Pointer) (*Result, error) {
	res, err := s.prover.Evaluator().Evaluate(ctx, expr)
	if err != nil {
		return nil, s.classifyEvalError(err)
	}
	if res.Outcome == lang.OutcomeBudgetExceeded {
		partial, perr := s.partialResult(res)
		if perr != nil {
			return nil, perr
		}
		return partial, newError(ErrStepBudgetExceeded, "evaluation did not terminate within the step budget", nil)
	}
	return s.buildResult(res)
}

// Prove evaluates an expression and produces a proof of the full
// trace. An evaluation that terminates on an error sentinel is still
// proved; only host-level failures return an error.
func (s *Session) Prove(ctx context.Context, expr Pointer) (*Result, *Proof, error) {
	res, proof, err := s.prover.Prove(ctx, expr)
	switch {
	case errors.Is(err, prove.ErrStepBudget):
		partial, perr := s.partialResult(res)
		if perr != nil {
			return nil, nil, perr
		}
		return partial, nil, newError(ErrStepBudgetExceeded, "evaluation did not terminate within the step budget", err)
	case errors.Is(err, prove.ErrEnvDepth):
		return nil, nil, newError(ErrEnvDepthExceeded, "environment depth exceeds the provable bound", err)
	case err != nil:
		return nil, nil, newError(ErrProofGeneration, "failed to produce proof", err)
	}
	result, err := s.buildResult(res)
	if err != nil {
		return nil, nil, err
	}
	return result, proof, nil
}

// Verify checks a proof against a claim. It never re-runs evaluation.
func Verify(cfg *Config, initialDigest, finalDigest field.Element, steps int, proof *Proof) (bool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	v, err := prove.NewVerifier(cfg)
	if err != nil {
		return false, newError(ErrInvalidConfig, "configuration rejected", err)
	}
	return v.Verify(initialDigest, finalDigest, steps, proof), nil
}

// VerifyWithReason is Verify with a diagnostic for rejected proofs.
func VerifyWithReason(cfg *Config, initialDigest, finalDigest field.Element, steps int, proof *Proof) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	v, err := prove.NewVerifier(cfg)
	if err != nil {
		return newError(ErrInvalidConfig, "configuration rejected", err)
	}
	if err := v.VerifyWithReason(initialDigest, finalDigest, steps, proof); err != nil {
		return newError(ErrProofVerification, "proof rejected", err)
	}
	return nil
}

func (s *Session) buildResult(res *lang.Result) (*Result, error) {
	rendered, err := parse.Print(s.store, res.Value)
	if err != nil {
		return nil, newError(ErrUnknown, "failed to render result", err)
	}

	out := &Result{
		Outcome:  res.Outcome,
		Value:    res.Value,
		Rendered: rendered,
		Steps:    res.Steps,
		Emitted:  res.Emitted,
	}
	if code, erred := res.Erred(s.store); erred {
		out.Sentinel = code.String()
	}
	if err := s.digestSpan(res, out); err != nil {
		return nil, err
	}
	return out, nil
}

// partialResult reports what a budget-exceeded run did accomplish.
// There is no final value to render; the digest span covers the
// recorded partial trace.
func (s *Session) partialResult(res *lang.Result) (*Result, error) {
	out := &Result{
		Outcome: res.Outcome,
		Steps:   res.Steps,
		Emitted: res.Emitted,
	}
	if err := s.digestSpan(res, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) digestSpan(res *lang.Result, out *Result) error {
	initial, err := s.store.HashState(res.Trace[0])
	if err != nil {
		return newError(ErrUnknown, "failed to digest initial state", err)
	}
	final, err := s.store.HashState(res.Trace[len(res.Trace)-1])
	if err != nil {
		return newError(ErrUnknown, "failed to digest final state", err)
	}
	out.InitialDigest = initial
	out.FinalDigest = final
	return nil
}

func (s *Session) classifyEvalError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrStoreNotFound, "pointer does not belong to this session", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return newError(ErrEvaluation, "evaluation failed", err)
}
