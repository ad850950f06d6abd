package lang

import (
	"context"
	"fmt"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/parse"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/utils"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	s, err := store.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	e, err := NewEvaluator(s, utils.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func mustEval(t *testing.T, e *Evaluator, source string) *Result {
	t.Helper()
	expr, err := parse.ReadOne(e.Store(), source)
	if err != nil {
		t.Fatalf("ReadOne(%q): %v", source, err)
	}
	res, err := e.Evaluate(context.Background(), expr)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", source, err)
	}
	return res
}

func TestEvaluateNumericForms(t *testing.T) {
	tests := []struct {
		source string
		want   uint64
	}{
		{"7", 7},
		{"(+ 1 2)", 3},
		{"(- 10 4)", 6},
		{"(* 6 7)", 42},
		{"(/ 6 3)", 2},
		{"(+ (* 2 3) (- 8 4))", 10},
		{"(let ((x 5)) (* x x))", 25},
		{"(let ((x 1) (y 2)) (+ x y))", 3},
		{"(let ((x 1)) (let ((x 2)) x))", 2},
		{"(if nil 1 2)", 2},
		{"(if 0 1 2)", 1},
		{"(if (= 3 3) 10 20)", 10},
		{"(if (< 2 3) 1 0)", 1},
		{"(if (> 2 3) 1 0)", 0},
		{"((lambda (x) (* x x)) 9)", 81},
		{"((lambda (x y) (- x y)) 9 4)", 5},
		{"((lambda () 7))", 7},
		{"(car (cons 1 2))", 1},
		{"(cdr (cons 1 2))", 2},
		{"(emit (+ 1 2))", 3},
		{"(letrec ((f (lambda (n) (if (= n 0) 0 (f (- n 1)))))) (f 5))", 0},
	}
	for _, tc := range tests {
		t.Run(tc.source, func(t *testing.T) {
			e := newTestEvaluator(t)
			res := mustEval(t, e, tc.source)
			if res.Outcome != OutcomeCompleted {
				t.Fatalf("outcome = %s", res.Outcome)
			}
			want := store.NumPointer(field.New(tc.want))
			if !res.Value.Equal(want) {
				t.Errorf("value = %s, want %s", res.Value, want)
			}
		})
	}
}

func TestEvaluateTruthValues(t *testing.T) {
	tests := []struct {
		source string
		truthy bool
	}{
		{"t", true},
		{"(= 1 1)", true},
		{"(= 1 2)", false},
		{"(eq (quote a) (quote a))", true},
		{"(eq (quote a) (quote b))", false},
		{"(eq (quote (1 2)) (quote (1 2)))", true},
		{"(atom 1)", true},
		{"(atom nil)", true},
		{"(atom (cons 1 2))", false},
	}
	for _, tc := range tests {
		t.Run(tc.source, func(t *testing.T) {
			e := newTestEvaluator(t)
			res := mustEval(t, e, tc.source)
			if res.Outcome != OutcomeCompleted {
				t.Fatalf("outcome = %s", res.Outcome)
			}
			if tc.truthy {
				if !res.Value.Equal(e.TruthValue()) {
					t.Errorf("value = %s, want t", res.Value)
				}
			} else if !res.Value.IsNil() {
				t.Errorf("value = %s, want nil", res.Value)
			}
		})
	}
}

func TestEvaluateQuote(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, "'(1 2)")
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	want, err := parse.ReadOne(e.Store(), "(1 2)")
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if !res.Value.Equal(want) {
		t.Errorf("quoted list = %s, want %s", res.Value, want)
	}
}

func TestCarCdrOfNil(t *testing.T) {
	e := newTestEvaluator(t)
	for _, src := range []string{"(car nil)", "(cdr nil)"} {
		res := mustEval(t, e, src)
		if res.Outcome != OutcomeCompleted || !res.Value.IsNil() {
			t.Errorf("%s = %s (%s), want nil", src, res.Value, res.Outcome)
		}
	}
}

func TestEvaluateErrorSentinels(t *testing.T) {
	tests := []struct {
		source string
		want   store.SentinelCode
	}{
		{"foo", store.SentinelUnboundVariable},
		{"(1 2)", store.SentinelNotAFunction},
		{"((lambda (x y) x) 1)", store.SentinelArityMismatch},
		{"((lambda (x) x) 1 2)", store.SentinelArityMismatch},
		{"(/ 1 0)", store.SentinelArithmeticDomain},
		{"(+ 1 (quote a))", store.SentinelArithmeticDomain},
		{"(* nil 2)", store.SentinelArithmeticDomain},
		{"(= 1 (quote a))", store.SentinelMalformedExpression},
		{"(< (quote a) 2)", store.SentinelMalformedExpression},
		{"(> 1 nil)", store.SentinelMalformedExpression},
		{"(car 5)", store.SentinelMalformedExpression},
		{"(if 1)", store.SentinelMalformedExpression},
		{"(lambda (1) 2)", store.SentinelMalformedExpression},
		{"(let ((1 2)) 3)", store.SentinelMalformedExpression},
		{"(quote)", store.SentinelMalformedExpression},
	}
	for _, tc := range tests {
		t.Run(tc.source, func(t *testing.T) {
			e := newTestEvaluator(t)
			res := mustEval(t, e, tc.source)
			if res.Outcome != OutcomeCompleted {
				t.Fatalf("outcome = %s", res.Outcome)
			}
			code, ok := res.Erred(e.Store())
			if !ok {
				t.Fatalf("value = %s, want an error sentinel", res.Value)
			}
			if code != tc.want {
				t.Errorf("sentinel = %s, want %s", code, tc.want)
			}
		})
	}
}

func TestErrorPropagatesThroughFrames(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, "(+ 1 (* 2 (/ 3 0)))")
	code, ok := res.Erred(e.Store())
	if !ok || code != store.SentinelArithmeticDomain {
		t.Errorf("deep error = (%s, %t), want arithmetic-domain-error", code, ok)
	}
}

func TestErrorInBindingKillsBody(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, "(let ((x (/ 1 0))) 42)")
	if _, ok := res.Erred(e.Store()); !ok {
		t.Errorf("binding error did not surface, value = %s", res.Value)
	}
}

func TestLexicalCapture(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, "(let ((x 1)) (let ((f (lambda (y) (+ x y)))) (let ((x 100)) (f 10))))")
	want := store.NumPointer(field.New(11))
	if !res.Value.Equal(want) {
		t.Errorf("closure result = %s, want %s (lexical capture)", res.Value, want)
	}
}

func TestEmitCollectsInOrder(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, "(+ (emit 1) (+ (emit 2) (emit 3)))")
	if len(res.Emitted) != 3 {
		t.Fatalf("emitted %d values, want 3", len(res.Emitted))
	}
	for i, want := range []uint64{1, 2, 3} {
		if !res.Emitted[i].Equal(store.NumPointer(field.New(want))) {
			t.Errorf("emitted[%d] = %s, want %d", i, res.Emitted[i], want)
		}
	}
}

const countdownSource = "(letrec ((f (lambda (n) (if (= n 0) 0 (f (- n 1)))))) (f 1000))"

func TestCountdownFitsStepBudget(t *testing.T) {
	s, err := store.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := utils.DefaultConfig().WithMaxSteps(10000)
	e, err := NewEvaluator(s, cfg)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	expr, err := parse.ReadOne(s, countdownSource)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	res, err := e.Evaluate(context.Background(), expr)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s after %d steps", res.Outcome, res.Steps)
	}
	if !res.Value.Equal(store.NumPointer(field.Zero)) {
		t.Errorf("countdown value = %s, want 0", res.Value)
	}
	t.Logf("countdown(1000) took %d steps", res.Steps)
}

func TestStepBudgetExceeded(t *testing.T) {
	s, err := store.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := utils.DefaultConfig().WithMaxSteps(50)
	e, err := NewEvaluator(s, cfg)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	expr, err := parse.ReadOne(s, countdownSource)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	res, err := e.Evaluate(context.Background(), expr)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Outcome != OutcomeBudgetExceeded {
		t.Errorf("outcome = %s, want step-budget-exceeded", res.Outcome)
	}
	if res.Steps != 50 {
		t.Errorf("took %d steps under a budget of 50", res.Steps)
	}
}

// contDepth walks a continuation chain to its root.
func contDepth(t *testing.T, s *store.Store, k store.Pointer) int {
	t.Helper()
	depth := 0
	for {
		switch k.Tag {
		case store.TagContOutermost, store.TagContTerminal, store.TagContDummy:
			return depth
		}
		frame, err := s.ResolveCont(k)
		if err != nil {
			t.Fatalf("ResolveCont: %v", err)
		}
		slot, err := nextSlot(frame.Tag)
		if err != nil {
			t.Fatalf("nextSlot: %v", err)
		}
		k = frame.Slots[slot]
		depth++
	}
}

func TestTailCallsKeepContinuationBounded(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, countdownSource)
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s", res.Outcome)
	}

	max := 0
	for _, st := range res.Trace {
		if d := contDepth(t, e.Store(), st.Cont); d > max {
			max = d
		}
	}
	// The loop body nests a comparison inside a branch inside a call;
	// the chain must stay at that fixed shallow depth for all 1000
	// iterations.
	if max > 4 {
		t.Errorf("continuation chain reached depth %d on a tail-recursive loop", max)
	}
}

func TestStepIsIdempotentAtTerminal(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, "(+ 1 2)")

	final := res.Trace[len(res.Trace)-1]
	again, effects, err := e.Step(final)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !again.Equal(final) {
		t.Error("stepping a terminal triple changed it")
	}
	if effects.FramesUsed != 0 || len(effects.Emitted) != 0 {
		t.Error("stepping a terminal triple had effects")
	}
}

func TestStepIsDeterministic(t *testing.T) {
	e := newTestEvaluator(t)
	expr, err := parse.ReadOne(e.Store(), countdownSource)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}

	first, err := e.Evaluate(context.Background(), expr)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	second, err := e.Evaluate(context.Background(), expr)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if first.Steps != second.Steps {
		t.Fatalf("step counts differ: %d vs %d", first.Steps, second.Steps)
	}
	for i := range first.Trace {
		if !first.Trace[i].Equal(second.Trace[i]) {
			t.Fatalf("traces diverge at step %d", i)
		}
	}
}

func TestTraceDigestsChainDeterministically(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, "(let ((x 5)) (* x x))")

	var digests []field.Element
	for _, st := range res.Trace {
		d, err := e.Store().HashState(st)
		if err != nil {
			t.Fatalf("HashState: %v", err)
		}
		digests = append(digests, d)
	}
	// Consecutive states must differ until the terminal fixpoint.
	for i := 1; i < len(digests); i++ {
		if digests[i].Equal(digests[i-1]) {
			t.Errorf("states %d and %d share a digest before termination", i-1, i)
		}
	}
}

func TestFrameBudgetNeverExceeded(t *testing.T) {
	e := newTestEvaluator(t)
	expr, err := parse.ReadOne(e.Store(), countdownSource)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}

	state := e.InitialState(expr)
	for i := 0; i < 10000; i++ {
		if state.Cont.Tag == store.TagContTerminal {
			return
		}
		next, effects, err := e.Step(state)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if effects.FramesUsed > frameBudget {
			t.Fatalf("step %d consumed %d frames", i, effects.FramesUsed)
		}
		state = next
	}
	t.Fatal("countdown did not terminate")
}

func TestContextCancellation(t *testing.T) {
	e := newTestEvaluator(t)
	expr, err := parse.ReadOne(e.Store(), countdownSource)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Evaluate(ctx, expr); err == nil {
		t.Error("evaluation ignored a cancelled context")
	}
}

func TestDeepRecursionKeepsLookupShallow(t *testing.T) {
	e := newTestEvaluator(t)
	res := mustEval(t, e, countdownSource)
	if res.MaxLookupDepth >= utils.DefaultConfig().MaxEnvDepth {
		t.Errorf("lookup depth %d reached the configured bound", res.MaxLookupDepth)
	}
}

func ExampleEvaluator() {
	s, _ := store.NewStore()
	e, _ := NewEvaluator(s, utils.DefaultConfig())
	expr, _ := parse.ReadOne(s, "(let ((x 6)) (* x 7))")
	res, _ := e.Evaluate(context.Background(), expr)
	text, _ := parse.Print(s, res.Value)
	fmt.Println(text)
	// Output: 42
}
