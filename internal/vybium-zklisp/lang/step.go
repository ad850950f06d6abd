package lang

import (
	"fmt"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
)

// frameBudget is the number of continuation frames one step may
// consume. The arithmetized step contains exactly this many gated
// frame blocks, so the evaluator must never consume more; when a value
// still has frames to traverse after the budget is spent, the step
// parks it and the next step resumes.
const frameBudget = 2

// Effects reports what a single step did beyond producing the next
// triple. LookupDepth is the deepest environment frame a symbol lookup
// touched, which the prover checks against the configured bound.
type Effects struct {
	Emitted     []store.Pointer
	LookupDepth int
	FramesUsed  int
}

// stepper carries the per-step scratch state of one transition.
type stepper struct {
	s   *store.Store
	sym *symbols
	env store.Pointer

	budget  int
	effects Effects
}

// Step advances one evaluation triple. It is a pure function of the
// triple and the store contents: it interns new objects but never
// rewrites existing ones, and applying it to a terminal triple returns
// the triple unchanged.
//
// The returned error reports host-level failures only (a pointer that
// does not resolve); every language-level failure flows through the
// triple as an error-sentinel value.
func Step(s *store.Store, sym *symbols, st store.State) (store.State, Effects, error) {
	if st.Cont.Tag == store.TagContTerminal {
		return st, Effects{}, nil
	}

	r := &stepper{s: s, sym: sym, env: st.Env, budget: frameBudget}
	next, err := r.dispatch(st)
	if err != nil {
		return store.State{}, Effects{}, err
	}
	r.effects.FramesUsed = frameBudget - r.budget
	return next, r.effects, nil
}

func (r *stepper) dispatch(st store.State) (store.State, error) {
	switch st.Expr.Tag {
	case store.TagThunk:
		thunk, err := r.s.ResolveThunk(st.Expr)
		if err != nil {
			return store.State{}, err
		}
		return r.ret(thunk.Cont, thunk.Value)

	case store.TagNil, store.TagNum, store.TagStr, store.TagFun, store.TagErr:
		return r.ret(st.Cont, st.Expr)

	case store.TagSym:
		return r.lookupSym(st)

	case store.TagCons:
		return r.dispatchForm(st)

	default:
		return store.State{}, fmt.Errorf("cannot evaluate expression with tag %s", st.Expr.Tag)
	}
}

func (r *stepper) lookupSym(st store.State) (store.State, error) {
	val, depth, found, err := r.s.EnvLookup(st.Env, st.Expr)
	if err != nil {
		return store.State{}, err
	}
	if depth > r.effects.LookupDepth {
		r.effects.LookupDepth = depth
	}
	if !found {
		return r.retSentinel(st.Cont, store.SentinelUnboundVariable)
	}
	return r.ret(st.Cont, val)
}

// dispatchForm handles a compound expression: special forms, built-in
// operators, and general application. Dispatch pushes frames but never
// consumes any, so a step always has its full frame budget available
// for the values it produces.
func (r *stepper) dispatchForm(st store.State) (store.State, error) {
	form, err := r.s.ResolveCons(st.Expr)
	if err != nil {
		return store.State{}, err
	}
	head, args := form.Car, form.Cdr

	switch {
	case head.Equal(r.sym.Quote):
		return r.formQuote(st, args)
	case head.Equal(r.sym.Lambda):
		return r.formLambda(st, args)
	case head.Equal(r.sym.If):
		return r.formIf(st, args)
	case head.Equal(r.sym.Let):
		return r.formBind(st, args, store.TagContBind)
	case head.Equal(r.sym.Letrec):
		return r.formBind(st, args, store.TagContBindRec)
	case head.Tag == store.TagSym && r.sym.isUnop(head):
		return r.formUnop(st, head, args)
	case head.Tag == store.TagSym && r.sym.isBinop(head):
		return r.formBinop(st, head, args)
	default:
		return r.formApply(st, head, args)
	}
}

func (r *stepper) formQuote(st store.State, args store.Pointer) (store.State, error) {
	quoted, rest, ok, err := r.splitOne(args)
	if err != nil {
		return store.State{}, err
	}
	if !ok || !rest.IsNil() {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	return r.ret(st.Cont, quoted)
}

func (r *stepper) formLambda(st store.State, args store.Pointer) (store.State, error) {
	elems, err := r.argList(args, 2)
	if err != nil {
		return store.State{}, err
	}
	if elems == nil {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	params, body := elems[0], elems[1]
	if !r.wellFormedParams(params) {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	fn, err := r.s.InternFun(params, body, st.Env)
	if err != nil {
		return store.State{}, err
	}
	return r.ret(st.Cont, fn)
}

func (r *stepper) formIf(st store.State, args store.Pointer) (store.State, error) {
	elems, err := r.s.ListToSlice(args, 4)
	if err != nil {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	if len(elems) < 2 || len(elems) > 3 {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	els := store.NilPointer
	if len(elems) == 3 {
		els = elems[2]
	}
	k, err := internBranch(r.s, elems[1], els, st.Env, st.Cont)
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: elems[0], Env: st.Env, Cont: k}, nil
}

// formBind desugars a multi-binding let into a chain of single-binding
// frames: the stored body of the first frame is the residual let over
// the remaining bindings.
func (r *stepper) formBind(st store.State, args store.Pointer, tag store.Tag) (store.State, error) {
	elems, err := r.argList(args, 2)
	if err != nil {
		return store.State{}, err
	}
	if elems == nil {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	bindings, body := elems[0], elems[1]

	if bindings.IsNil() {
		return store.State{Expr: body, Env: st.Env, Cont: st.Cont}, nil
	}
	first, restBindings, ok, err := r.splitOne(bindings)
	if err != nil {
		return store.State{}, err
	}
	if !ok {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	pair, err := r.argList(first, 2)
	if err != nil {
		return store.State{}, err
	}
	if pair == nil || pair[0].Tag != store.TagSym {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	sym, valExpr := pair[0], pair[1]

	residual := body
	if !restBindings.IsNil() {
		keyword := r.sym.Let
		if tag == store.TagContBindRec {
			keyword = r.sym.Letrec
		}
		residual, err = r.s.InternList([]store.Pointer{keyword, restBindings, body})
		if err != nil {
			return store.State{}, err
		}
	}

	k, err := internBind(r.s, tag, sym, residual, st.Env, st.Cont)
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: valExpr, Env: st.Env, Cont: k}, nil
}

func (r *stepper) formUnop(st store.State, op, args store.Pointer) (store.State, error) {
	arg, rest, ok, err := r.splitOne(args)
	if err != nil {
		return store.State{}, err
	}
	if !ok || !rest.IsNil() {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	k, err := internUnop(r.s, op, st.Cont)
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: arg, Env: st.Env, Cont: k}, nil
}

func (r *stepper) formBinop(st store.State, op, args store.Pointer) (store.State, error) {
	elems, err := r.argList(args, 2)
	if err != nil {
		return store.State{}, err
	}
	if elems == nil {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	k, err := internBinop(r.s, op, elems[1], st.Env, st.Cont)
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: elems[0], Env: st.Env, Cont: k}, nil
}

func (r *stepper) formApply(st store.State, head, args store.Pointer) (store.State, error) {
	if err := r.checkProperList(args); err != nil {
		return r.retSentinel(st.Cont, store.SentinelMalformedExpression)
	}
	k, err := internEvalOperator(r.s, args, st.Env, st.Cont)
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: head, Env: st.Env, Cont: k}, nil
}

// ret returns a computed value to a continuation, consuming frames
// until the value comes to rest or the step's frame budget runs out.
func (r *stepper) ret(k, v store.Pointer) (store.State, error) {
	switch k.Tag {
	case store.TagContOutermost, store.TagContTerminal:
		return r.finish(k, v)
	case store.TagContDummy:
		return store.State{}, fmt.Errorf("value returned to a dummy continuation")
	}

	if r.budget == 0 {
		return r.park(k, v)
	}
	r.budget--

	frame, err := r.s.ResolveCont(k)
	if err != nil {
		return store.State{}, err
	}

	if v.Tag == store.TagErr {
		slot, err := nextSlot(frame.Tag)
		if err != nil {
			return store.State{}, err
		}
		return r.ret(frame.Slots[slot], v)
	}

	switch frame.Tag {
	case store.TagContEvalOperator:
		return r.consumeEvalOperator(frame, v)
	case store.TagContEvalOperand:
		return r.consumeEvalOperand(frame, v)
	case store.TagContApplyFunction:
		return r.consumeApplyFunction(frame, v)
	case store.TagContBind, store.TagContBindRec:
		return r.consumeBind(frame, v)
	case store.TagContBranch:
		return r.consumeBranch(frame, v)
	case store.TagContUnop:
		return r.consumeUnop(frame, v)
	case store.TagContBinop:
		return r.consumeBinop(frame, v)
	case store.TagContBinop2:
		return r.consumeBinop2(frame, v)
	default:
		return store.State{}, fmt.Errorf("cannot consume continuation tag %s", frame.Tag)
	}
}

func (r *stepper) retSentinel(k store.Pointer, code store.SentinelCode) (store.State, error) {
	sent, err := r.s.InternSentinel(code)
	if err != nil {
		return store.State{}, err
	}
	return r.ret(k, sent)
}

// finish ends the computation: the chain root has been reached. Values
// that the dispatcher would otherwise re-evaluate are wrapped in a
// thunk so the terminal expression is inert.
func (r *stepper) finish(k, v store.Pointer) (store.State, error) {
	v, err := r.shieldValue(v, k)
	if err != nil {
		return store.State{}, err
	}
	terminal, err := internBare(r.s, store.TagContTerminal)
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: v, Env: r.env, Cont: terminal}, nil
}

// park suspends a value mid-return when the frame budget is exhausted.
// The next step resumes delivery to k.
func (r *stepper) park(k, v store.Pointer) (store.State, error) {
	v, err := r.shieldValue(v, k)
	if err != nil {
		return store.State{}, err
	}
	if v.Tag == store.TagThunk {
		dummy, err := internBare(r.s, store.TagContDummy)
		if err != nil {
			return store.State{}, err
		}
		return store.State{Expr: v, Env: r.env, Cont: dummy}, nil
	}
	return store.State{Expr: v, Env: r.env, Cont: k}, nil
}

// shieldValue wraps symbol, pair and thunk values in a fresh thunk
// carrying the continuation they were bound for, so placing them in
// expression position cannot trigger re-evaluation.
func (r *stepper) shieldValue(v, k store.Pointer) (store.Pointer, error) {
	switch v.Tag {
	case store.TagSym, store.TagCons, store.TagThunk:
		return r.s.InternThunk(v, k)
	default:
		return v, nil
	}
}

func (r *stepper) consumeEvalOperator(frame store.ContFrame, fn store.Pointer) (store.State, error) {
	args, env, next := frame.Slots[0], frame.Slots[1], frame.Slots[2]

	if args.IsNil() {
		return r.apply(fn, nil, next)
	}
	acc, err := r.s.InternCons(fn, store.NilPointer)
	if err != nil {
		return store.State{}, err
	}
	return r.evalNextOperand(args, acc, env, next)
}

func (r *stepper) consumeEvalOperand(frame store.ContFrame, v store.Pointer) (store.State, error) {
	pending, acc, env, next := frame.Slots[0], frame.Slots[1], frame.Slots[2], frame.Slots[3]

	acc, err := r.s.InternCons(v, acc)
	if err != nil {
		return store.State{}, err
	}
	return r.evalNextOperand(pending, acc, env, next)
}

// evalNextOperand schedules evaluation of the head of pending. The
// frame for the final operand is apply-function, whose consumption
// performs the call.
func (r *stepper) evalNextOperand(pending, acc, env, next store.Pointer) (store.State, error) {
	cell, err := r.s.ResolveCons(pending)
	if err != nil {
		return store.State{}, err
	}

	var k store.Pointer
	if cell.Cdr.IsNil() {
		k, err = internApplyFunction(r.s, acc, next)
	} else {
		k, err = internEvalOperand(r.s, cell.Cdr, acc, env, next)
	}
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: cell.Car, Env: env, Cont: k}, nil
}

func (r *stepper) consumeApplyFunction(frame store.ContFrame, v store.Pointer) (store.State, error) {
	acc, next := frame.Slots[0], frame.Slots[1]

	full, err := r.s.InternCons(v, acc)
	if err != nil {
		return store.State{}, err
	}
	ordered, err := r.s.ReverseList(full)
	if err != nil {
		return store.State{}, err
	}
	elems, err := r.s.ListToSlice(ordered, maxCallArity+1)
	if err != nil {
		return r.retSentinel(next, store.SentinelArityMismatch)
	}
	return r.apply(elems[0], elems[1:], next)
}

// maxCallArity bounds the argument count of a single application so
// the per-step work stays fixed-shape. The step circuit unrolls its
// application block to exactly this many argument positions.
const maxCallArity = 4

// apply performs the call: bind parameters, enter the body in tail
// position with the caller's continuation.
func (r *stepper) apply(fn store.Pointer, args []store.Pointer, next store.Pointer) (store.State, error) {
	if fn.Tag != store.TagFun {
		return r.retSentinel(next, store.SentinelNotAFunction)
	}
	fun, err := r.s.ResolveFun(fn)
	if err != nil {
		return store.State{}, err
	}
	params, err := r.s.ListToSlice(fun.Params, maxCallArity)
	if err != nil {
		return store.State{}, err
	}
	if len(params) != len(args) {
		return r.retSentinel(next, store.SentinelArityMismatch)
	}

	env := fun.Env
	for i, param := range params {
		env, err = r.s.EnvExtend(env, param, args[i])
		if err != nil {
			return store.State{}, err
		}
	}
	return store.State{Expr: fun.Body, Env: env, Cont: next}, nil
}

func (r *stepper) consumeBind(frame store.ContFrame, v store.Pointer) (store.State, error) {
	sym, body, env, next := frame.Slots[0], frame.Slots[1], frame.Slots[2], frame.Slots[3]

	var err error
	if frame.Tag == store.TagContBindRec {
		env, err = r.s.EnvExtendRec(env, sym, v)
	} else {
		env, err = r.s.EnvExtend(env, sym, v)
	}
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: body, Env: env, Cont: next}, nil
}

func (r *stepper) consumeBranch(frame store.ContFrame, v store.Pointer) (store.State, error) {
	then, els, env, next := frame.Slots[0], frame.Slots[1], frame.Slots[2], frame.Slots[3]

	chosen := then
	if v.IsNil() {
		chosen = els
	}
	return store.State{Expr: chosen, Env: env, Cont: next}, nil
}

func (r *stepper) consumeUnop(frame store.ContFrame, v store.Pointer) (store.State, error) {
	op, next := frame.Slots[0], frame.Slots[1]

	switch {
	case op.Equal(r.sym.Car):
		if v.IsNil() {
			return r.ret(next, store.NilPointer)
		}
		if v.Tag != store.TagCons {
			return r.retSentinel(next, store.SentinelMalformedExpression)
		}
		car, err := r.s.Car(v)
		if err != nil {
			return store.State{}, err
		}
		return r.ret(next, car)

	case op.Equal(r.sym.Cdr):
		if v.IsNil() {
			return r.ret(next, store.NilPointer)
		}
		if v.Tag != store.TagCons {
			return r.retSentinel(next, store.SentinelMalformedExpression)
		}
		cdr, err := r.s.Cdr(v)
		if err != nil {
			return store.State{}, err
		}
		return r.ret(next, cdr)

	case op.Equal(r.sym.Atom):
		return r.ret(next, r.sym.bool(v.Tag != store.TagCons))

	case op.Equal(r.sym.Emit):
		r.effects.Emitted = append(r.effects.Emitted, v)
		return r.ret(next, v)

	default:
		return store.State{}, fmt.Errorf("unknown unary operator %s", op)
	}
}

func (r *stepper) consumeBinop(frame store.ContFrame, v store.Pointer) (store.State, error) {
	op, right, env, next := frame.Slots[0], frame.Slots[1], frame.Slots[2], frame.Slots[3]

	k, err := internBinop2(r.s, op, v, next)
	if err != nil {
		return store.State{}, err
	}
	return store.State{Expr: right, Env: env, Cont: k}, nil
}

func (r *stepper) consumeBinop2(frame store.ContFrame, v store.Pointer) (store.State, error) {
	op, left, next := frame.Slots[0], frame.Slots[1], frame.Slots[2]

	switch {
	case op.Equal(r.sym.Cons):
		pair, err := r.s.InternCons(left, v)
		if err != nil {
			return store.State{}, err
		}
		return r.ret(next, pair)

	case op.Equal(r.sym.Eq):
		return r.ret(next, r.sym.bool(left.Equal(v)))
	}

	// Remaining operators take numbers. A comparison applied to
	// anything else is a malformed expression; arithmetic on anything
	// else is a domain error.
	if left.Tag != store.TagNum || v.Tag != store.TagNum {
		if op.Equal(r.sym.NumEq) || op.Equal(r.sym.Lt) || op.Equal(r.sym.Gt) {
			return r.retSentinel(next, store.SentinelMalformedExpression)
		}
		return r.retSentinel(next, store.SentinelArithmeticDomain)
	}
	a, b := left.Digest, v.Digest

	switch {
	case op.Equal(r.sym.Add):
		return r.ret(next, store.NumPointer(a.Add(b)))
	case op.Equal(r.sym.Sub):
		return r.ret(next, store.NumPointer(a.Sub(b)))
	case op.Equal(r.sym.Mul):
		return r.ret(next, store.NumPointer(a.Mul(b)))
	case op.Equal(r.sym.Div):
		if b.IsZero() {
			return r.retSentinel(next, store.SentinelArithmeticDomain)
		}
		return r.ret(next, store.NumPointer(a.Mul(b.Inverse())))
	case op.Equal(r.sym.NumEq):
		return r.ret(next, r.sym.bool(a.Equal(b)))
	case op.Equal(r.sym.Lt):
		return r.ret(next, r.sym.bool(a.Value() < b.Value()))
	case op.Equal(r.sym.Gt):
		return r.ret(next, r.sym.bool(a.Value() > b.Value()))
	default:
		return store.State{}, fmt.Errorf("unknown binary operator %s", op)
	}
}

// splitOne splits a list into its head and tail; ok is false for nil
// or non-pair input.
func (r *stepper) splitOne(p store.Pointer) (store.Pointer, store.Pointer, bool, error) {
	if p.Tag != store.TagCons {
		return store.Pointer{}, store.Pointer{}, false, nil
	}
	c, err := r.s.ResolveCons(p)
	if err != nil {
		return store.Pointer{}, store.Pointer{}, false, err
	}
	return c.Car, c.Cdr, true, nil
}

// argList extracts an exact-length proper argument list, or nil when
// the shape is wrong.
func (r *stepper) argList(p store.Pointer, n int) ([]store.Pointer, error) {
	elems, err := r.s.ListToSlice(p, n+1)
	if err != nil {
		return nil, nil
	}
	if len(elems) != n {
		return nil, nil
	}
	return elems, nil
}

func (r *stepper) checkProperList(p store.Pointer) error {
	_, err := r.s.ListToSlice(p, maxCallArity)
	return err
}

// wellFormedParams requires a proper list of distinct symbols.
func (r *stepper) wellFormedParams(params store.Pointer) bool {
	elems, err := r.s.ListToSlice(params, maxCallArity)
	if err != nil {
		return false
	}
	seen := make(map[store.Pointer]struct{}, len(elems))
	for _, p := range elems {
		if p.Tag != store.TagSym {
			return false
		}
		if _, dup := seen[p]; dup {
			return false
		}
		seen[p] = struct{}{}
	}
	return true
}
