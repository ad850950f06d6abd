package lang

import (
	"context"
	"fmt"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/utils"
)

// Outcome classifies how an evaluation run ended.
type Outcome int

const (
	// OutcomeCompleted means the machine reached a terminal triple.
	// The final value may still be an error sentinel; that is a
	// completed evaluation whose deterministic result is the error.
	OutcomeCompleted Outcome = iota

	// OutcomeBudgetExceeded means the step budget ran out before a
	// terminal triple was reached.
	OutcomeBudgetExceeded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeBudgetExceeded:
		return "step-budget-exceeded"
	default:
		return "unknown"
	}
}

// Result is the outcome of driving the step function to quiescence.
type Result struct {
	Outcome Outcome

	// Value is the final value with any terminal thunk unwrapped.
	// Only meaningful when Outcome is OutcomeCompleted.
	Value store.Pointer

	// Steps is the number of transitions taken.
	Steps int

	// Trace holds every triple the run passed through, Steps+1 of
	// them, first the initial triple and last the final one.
	Trace []store.State

	// Emitted collects the values passed to emit, in evaluation
	// order.
	Emitted []store.Pointer

	// MaxLookupDepth is the deepest environment frame any symbol
	// lookup reached across the whole run.
	MaxLookupDepth int
}

// Erred reports whether a completed run terminated on an error
// sentinel, and which one.
func (r *Result) Erred(s *store.Store) (store.SentinelCode, bool) {
	if r.Outcome != OutcomeCompleted || r.Value.Tag != store.TagErr {
		return 0, false
	}
	sent, err := s.ResolveSentinel(r.Value)
	if err != nil {
		return 0, false
	}
	return sent.Code, true
}

// Evaluator drives the step function over a store.
type Evaluator struct {
	store     *store.Store
	cfg       *utils.Config
	sym       *symbols
	ground    store.Pointer
	outermost store.Pointer
}

// NewEvaluator prepares an evaluator over the given store. The ground
// environment binds the truth symbol t to itself; everything else
// comes from the program under evaluation.
func NewEvaluator(s *store.Store, cfg *utils.Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}
	sym, err := internSymbols(s)
	if err != nil {
		return nil, fmt.Errorf("failed to intern reserved symbols: %w", err)
	}
	ground, err := s.EnvExtend(store.NilPointer, sym.T, sym.T)
	if err != nil {
		return nil, fmt.Errorf("failed to build ground environment: %w", err)
	}
	outermost, err := internBare(s, store.TagContOutermost)
	if err != nil {
		return nil, fmt.Errorf("failed to intern root continuation: %w", err)
	}
	return &Evaluator{store: s, cfg: cfg, sym: sym, ground: ground, outermost: outermost}, nil
}

// Store returns the store this evaluator interns into.
func (e *Evaluator) Store() *store.Store {
	return e.store
}

// InitialState builds the starting triple for an expression.
func (e *Evaluator) InitialState(expr store.Pointer) store.State {
	return store.State{Expr: expr, Env: e.ground, Cont: e.outermost}
}

// Step advances a single triple once.
func (e *Evaluator) Step(st store.State) (store.State, Effects, error) {
	return Step(e.store, e.sym, st)
}

// Evaluate runs an expression to its terminal triple or to the
// configured step budget, recording the full trace.
func (e *Evaluator) Evaluate(ctx context.Context, expr store.Pointer) (*Result, error) {
	state := e.InitialState(expr)
	res := &Result{Trace: []store.State{state}}

	for res.Steps < e.cfg.MaxSteps {
		if state.Cont.Tag == store.TagContTerminal {
			break
		}
		if res.Steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		next, effects, err := e.Step(state)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", res.Steps, err)
		}
		state = next
		res.Steps++
		res.Trace = append(res.Trace, state)
		res.Emitted = append(res.Emitted, effects.Emitted...)
		if effects.LookupDepth > res.MaxLookupDepth {
			res.MaxLookupDepth = effects.LookupDepth
		}
	}

	if state.Cont.Tag != store.TagContTerminal {
		res.Outcome = OutcomeBudgetExceeded
		return res, nil
	}

	value, err := e.unwrap(state.Expr)
	if err != nil {
		return nil, err
	}
	res.Outcome = OutcomeCompleted
	res.Value = value
	return res, nil
}

// unwrap strips the shielding thunk off a terminal expression.
func (e *Evaluator) unwrap(p store.Pointer) (store.Pointer, error) {
	if p.Tag != store.TagThunk {
		return p, nil
	}
	thunk, err := e.store.ResolveThunk(p)
	if err != nil {
		return store.Pointer{}, err
	}
	return thunk.Value, nil
}

// TruthValue returns the interned t symbol, the canonical truthy
// result of the comparison operators.
func (e *Evaluator) TruthValue() store.Pointer {
	return e.sym.T
}
