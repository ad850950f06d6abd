package circuit

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/core"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
)

// The transition gadget arithmetizes one evaluator step. Control flow
// becomes boolean selectors derived from the pre-state tags; every
// store access becomes a Poseidon preimage opening gated on the
// selector that needs it; and every reduction rule contributes one
// successor candidate. Exactly one candidate fires per step and pins
// the post triple, so an assignment can only satisfy the system if the
// post state is the one the evaluator would compute.
//
// The layout mirrors lang.Step: a dispatch block on the expression
// tag, then two frame-consumption levels (the evaluator's frame
// budget), then the park block for values still in flight, with
// root-continuation deliveries funneled into a shared finish block.
// Witness values are read from the store only when the gating selector
// is live; constraints are emitted unconditionally, which keeps the
// shape identical across steps.

// gp is a symbolic pointer: the (tag, digest) pair as linear
// combinations.
type gp struct {
	tag LC
	dig LC
}

// candidate is one potential successor triple, live when sel is one.
type candidate struct {
	sel  LC
	next [3]gp
}

// delivery is a value on its way to a continuation.
type delivery struct {
	sel LC
	v   gp
	k   gp
}

// applyCall is one site that performs a function application: the
// callee, a one-hot argument count gated by the site selector, the
// arguments in call order, and the continuation of the call.
type applyCall struct {
	sel  LC
	fn   gp
	argc [5]LC
	args [4]gp
	next gp
}

// stepCtx threads the builder, the witness store and the synthesizer
// constants through the transition gadget.
type stepCtx struct {
	b  *Builder
	s  *store.Store
	sy *Synthesizer

	preE gp
	preV gp
	preK gp

	candidates []candidate
	finishes   []delivery
}

func (c *stepCtx) addCandidate(sel LC, expr, env, cont gp) {
	c.candidates = append(c.candidates, candidate{sel: sel, next: [3]gp{expr, env, cont}})
}

// transition emits the whole step relation and pins the post triple to
// the unique live candidate.
func (c *stepCtx) transition(exprSel, contSel []Var, postVars stateVars) {
	selTerm := Single(contSel[indexOfTag(store.ContTags, store.TagContTerminal)])
	c.addCandidate(selTerm, c.preE, c.preV, c.preK)
	notTerm := lcNot(selTerm)

	d1 := c.dispatch(exprSel, notTerm)
	d2 := c.deliverLevel(d1)
	d3 := c.deliverLevel(d2)
	c.parkLevel(d3)
	c.finishLevel()

	post := [3]gp{
		{Single(postVars.fields[0]), Single(postVars.fields[1])},
		{Single(postVars.fields[2]), Single(postVars.fields[3])},
		{Single(postVars.fields[4]), Single(postVars.fields[5])},
	}
	sum := LC{}
	for _, cd := range c.candidates {
		sum = Sum(sum, cd.sel)
		for i := range post {
			c.assertPtrEqIf(cd.sel, post[i], cd.next[i])
		}
	}
	c.b.AssertEq(sum, Constant(field.One))
}

// dispatch handles the pre expression: self-evaluating values, thunk
// resumption, symbol lookup and compound forms. It returns the value
// deliveries headed for the first consumption level.
func (c *stepCtx) dispatch(exprSel []Var, notTerm LC) []delivery {
	sel := func(t store.Tag) LC {
		return c.and(notTerm, Single(exprSel[indexOfTag(store.ExprTags, t)]))
	}

	var out []delivery

	// Self-evaluating expressions deliver themselves.
	valueAny := LC{}
	for _, t := range []store.Tag{store.TagNil, store.TagNum, store.TagStr, store.TagFun, store.TagErr} {
		valueAny = Sum(valueAny, Single(exprSel[indexOfTag(store.ExprTags, t)]))
	}
	out = append(out, delivery{c.and(notTerm, valueAny), c.preE, c.preK})

	// A thunk resumes the continuation it captured.
	thunkSel := sel(store.TagThunk)
	tv, tk := c.openThunk(thunkSel, c.preE)
	out = append(out, delivery{thunkSel, tv, tk})

	// Symbols resolve through the environment chain.
	symSel := sel(store.TagSym)
	found, val, unbound := c.lookup(symSel)
	out = append(out, delivery{found, val, c.preK})
	out = append(out, delivery{unbound, c.constP(c.sy.wk.unbound), c.preK})

	out = append(out, c.dispatchForm(sel(store.TagCons))...)
	return out
}

// dispatchForm handles a compound expression: special forms, built-in
// operator pushes, and general application.
func (c *stepCtx) dispatchForm(act LC) []delivery {
	wk := &c.sy.wk
	head, args := c.openCons(act, c.preE)
	ch := c.openList(act, args)

	is := func(p store.Pointer) LC { return c.eqPtr(head, c.constP(p)) }
	eqQuote, eqLambda, eqIf := is(wk.quote), is(wk.lambda), is(wk.ifSym)
	eqLet, eqLetrec := is(wk.letSym), is(wk.letrecSym)
	unopAny := Sum(Sum(is(wk.car), is(wk.cdr)), Sum(is(wk.atom), is(wk.emit)))
	binopAny := Sum(
		Sum(Sum(is(wk.cons), is(wk.add)), Sum(is(wk.sub), is(wk.mul))),
		Sum(Sum(is(wk.div), is(wk.numEq)), Sum(Sum(is(wk.lt), is(wk.gt)), is(wk.eq))),
	)
	reserved := Sum(
		Sum(Sum(eqQuote, eqLambda), Sum(eqIf, eqLet)),
		Sum(eqLetrec, Sum(unopAny, binopAny)),
	)
	malformed := c.constP(wk.malformed)

	var out []delivery

	// quote returns its single argument unevaluated.
	qSel := c.and(act, eqQuote)
	out = append(out,
		delivery{c.and(qSel, ch.count[1]), ch.elems[0], c.preK},
		delivery{c.and(qSel, lcNot(ch.count[1])), malformed, c.preK},
	)

	// lambda closes over the current environment after checking the
	// parameter list: a proper list of distinct symbols.
	lamSel := c.and(act, eqLambda)
	{
		twoArgs := ch.count[2]
		params, body := ch.elems[0], ch.elems[1]
		pch := c.openList(c.and(lamSel, twoArgs), params)
		bad := Constant(field.Zero)
		for i := 0; i < maxParams; i++ {
			bad = c.or(bad, c.and(pch.live[i], lcNot(c.isTag(pch.elems[i], store.TagSym))))
			for j := 0; j < i; j++ {
				bad = c.or(bad, c.and(pch.live[i], c.eqPtr(pch.elems[j], pch.elems[i])))
			}
		}
		wf := c.and(pch.proper, lcNot(bad))
		fnDig := c.digest(c.sy.hashers.H6, []LC{
			params.tag, params.dig, body.tag, body.dig, c.preV.tag, c.preV.dig,
		})
		good := c.and(twoArgs, wf)
		out = append(out,
			delivery{c.and(lamSel, good), gp{Constant(store.TagFun.Field()), fnDig}, c.preK},
			delivery{c.and(lamSel, lcNot(good)), malformed, c.preK},
		)
	}

	// if pushes a branch frame over the condition.
	ifSel := c.and(act, eqIf)
	{
		okLen := Sum(ch.count[2], ch.count[3])
		els := c.selPtr(ch.count[3], ch.elems[2], c.nilP())
		brK := c.contPtr(store.TagContBranch, ch.elems[1], els, c.preV, c.preK)
		c.addCandidate(c.and(ifSel, okLen), ch.elems[0], c.preV, brK)
		out = append(out, delivery{c.and(ifSel, lcNot(okLen)), malformed, c.preK})
	}

	// let and letrec push a bind frame over the first binding's value
	// expression; the frame body is the residual form over the
	// remaining bindings.
	bindSel := c.and(act, Sum(eqLet, eqLetrec))
	{
		twoArgs := ch.count[2]
		bindings, body := ch.elems[0], ch.elems[1]
		noBindings := c.isNilPtr(bindings)
		c.addCandidate(c.and(bindSel, twoArgs, noBindings), body, c.preV, c.preK)

		walk := c.and(bindSel, twoArgs, c.isTag(bindings, store.TagCons))
		first, restB := c.openCons(walk, bindings)
		firstCons := c.isTag(first, store.TagCons)
		w2 := c.and(walk, firstCons)
		bSym, bRest := c.openCons(w2, first)
		restCons := c.isTag(bRest, store.TagCons)
		valExpr, tail := c.openCons(c.and(w2, restCons), bRest)
		shape := c.and(firstCons, restCons, c.isNilPtr(tail), c.isTag(bSym, store.TagSym))

		restNil := c.isNilPtr(restB)
		kw := c.selPtr(eqLetrec, c.constP(wk.letrecSym), c.constP(wk.letSym))
		tailCell := c.consPtr(body, c.nilP())
		midCell := c.consPtr(restB, tailCell)
		residual := c.selPtr(restNil, body, c.consPtr(kw, midCell))

		frameTag := c.selectLC(eqLetrec,
			Constant(store.TagContBindRec.Field()), Constant(store.TagContBind.Field()))
		bindK := c.contPtrTag(frameTag, bSym, residual, c.preV, c.preK)
		c.addCandidate(c.and(walk, shape), valExpr, c.preV, bindK)

		wfBind := c.and(twoArgs, c.or(noBindings, c.and(c.isTag(bindings, store.TagCons), shape)))
		out = append(out, delivery{c.and(bindSel, lcNot(wfBind)), malformed, c.preK})
	}

	// Unary operator: evaluate the argument under a unop frame.
	uSel := c.and(act, unopAny)
	uK := c.contPtr(store.TagContUnop, head, c.preK, c.nilP(), c.nilP())
	c.addCandidate(c.and(uSel, ch.count[1]), ch.elems[0], c.preV, uK)
	out = append(out, delivery{c.and(uSel, lcNot(ch.count[1])), malformed, c.preK})

	// Binary operator: evaluate the left operand under a binop frame.
	oSel := c.and(act, binopAny)
	oK := c.contPtr(store.TagContBinop, head, ch.elems[1], c.preV, c.preK)
	c.addCandidate(c.and(oSel, ch.count[2]), ch.elems[0], c.preV, oK)
	out = append(out, delivery{c.and(oSel, lcNot(ch.count[2])), malformed, c.preK})

	// Anything else is a call: evaluate the operator first.
	aSel := c.and(act, lcNot(reserved))
	aK := c.contPtr(store.TagContEvalOperator, args, c.preV, c.preK, c.nilP())
	c.addCandidate(c.and(aSel, ch.proper), head, c.preV, aK)
	out = append(out, delivery{c.and(aSel, lcNot(ch.proper)), malformed, c.preK})

	return out
}

// lookup unrolls the environment walk to the configured depth bound.
// It returns the found selector with the resolved value, and the
// unbound selector. Recursive-frame hits re-close function values over
// their frame, exactly as store.EnvLookup does.
func (c *stepCtx) lookup(act LC) (LC, gp, LC) {
	cur := c.preV
	alive := act
	found := LC{}
	unbound := LC{}
	foundRec := LC{}
	var valCases, cellCases []muxCase

	for d := 0; d < c.sy.envDepth; d++ {
		atNil := c.isNilPtr(cur)
		unbound = Sum(unbound, c.and(alive, atNil))
		walking := c.and(alive, lcNot(atNil))

		binding, rest := c.openCons(walking, cur)
		bKey, bVal := c.openCons(walking, binding)
		isPlain := c.isTag(bKey, store.TagSym)
		isRec := c.isTag(bKey, store.TagCons)
		c.b.AssertEq(c.and(walking, lcNot(Sum(isPlain, isRec))), Constant(field.Zero))
		rKey, rVal := c.openCons(c.and(walking, isRec), bKey)

		hitPlain := c.and(walking, c.eqPtr(bKey, c.preE))
		hitRec := c.and(walking, c.eqPtr(rKey, c.preE))
		found = Sum(found, Sum(hitPlain, hitRec))
		foundRec = Sum(foundRec, hitRec)
		valCases = append(valCases, muxCase{hitPlain, bVal}, muxCase{hitRec, rVal})
		cellCases = append(cellCases, muxCase{hitRec, binding})

		alive = c.and(walking, lcNot(Sum(hitPlain, hitRec)))
		cur = rest
	}
	// Within the depth bound the walk always resolves one way or the
	// other; the prover refuses traces that exceed the bound.
	c.b.AssertEq(Sum(found, unbound), act)

	raw := c.pick(valCases...)
	cell := c.pick(cellCases...)
	reSel := c.and(foundRec, c.isTag(raw, store.TagFun))
	fp, fb, fe := c.openFun(reSel, raw)
	closed := c.consPtr(cell, fe)
	reclosedDig := c.digest(c.sy.hashers.H6, []LC{
		fp.tag, fp.dig, fb.tag, fb.dig, closed.tag, closed.dig,
	})
	val := c.selPtr(reSel, gp{Constant(store.TagFun.Field()), reclosedDig}, raw)
	return found, val, unbound
}

// deliverLevel receives the deliveries of one level: root
// continuations finish, everything else consumes its frame. The
// returned deliveries feed the next level.
func (c *stepCtx) deliverLevel(sites []delivery) []delivery {
	act, v, k := c.muxDeliveries(sites)

	rootK := Sum(c.isTag(k, store.TagContOutermost), c.isTag(k, store.TagContTerminal))
	c.finishes = append(c.finishes, delivery{c.and(act, rootK), v, k})

	// A dummy continuation never receives a value.
	dummyK := c.isTag(k, store.TagContDummy)
	c.b.AssertEq(c.and(act, dummyK), Constant(field.Zero))

	consume := c.and(act, lcNot(Sum(rootK, dummyK)))
	out, calls := c.consumeFrame(consume, v, k)
	return append(out, c.applyBlock(calls)...)
}

// consumeFrame opens the continuation frame and applies the
// per-variant consumption rule. Sentinel values pop the frame instead.
func (c *stepCtx) consumeFrame(consume LC, v, k gp) ([]delivery, []applyCall) {
	wk := &c.sy.wk
	sl := c.openCont(consume, k)

	tags := []store.Tag{
		store.TagContEvalOperator, store.TagContEvalOperand, store.TagContApplyFunction,
		store.TagContBind, store.TagContBindRec, store.TagContBranch,
		store.TagContUnop, store.TagContBinop, store.TagContBinop2,
	}
	fsel := make(map[store.Tag]LC, len(tags))
	total := LC{}
	for _, t := range tags {
		s := c.and(consume, Single(c.b.IsEqual(k.tag, Constant(t.Field()))))
		fsel[t] = s
		total = Sum(total, s)
	}
	// A consumed continuation must be one of the consumable variants.
	c.b.AssertEq(total, consume)

	var out []delivery
	var calls []applyCall

	// Error sentinels pop the frame straight to its saved continuation.
	errV := c.isTag(v, store.TagErr)
	popTo := c.pick(
		muxCase{fsel[store.TagContEvalOperator], sl[2]},
		muxCase{fsel[store.TagContEvalOperand], sl[3]},
		muxCase{fsel[store.TagContApplyFunction], sl[1]},
		muxCase{fsel[store.TagContBind], sl[3]},
		muxCase{fsel[store.TagContBindRec], sl[3]},
		muxCase{fsel[store.TagContBranch], sl[3]},
		muxCase{fsel[store.TagContUnop], sl[1]},
		muxCase{fsel[store.TagContBinop], sl[3]},
		muxCase{fsel[store.TagContBinop2], sl[2]},
	)
	out = append(out, delivery{c.and(consume, errV), v, popTo})

	noErr := lcNot(errV)
	g := func(t store.Tag) LC { return c.and(fsel[t], noErr) }

	// eval-operator: the operator value arrived; start on the operands
	// or call immediately when there are none.
	{
		sel := g(store.TagContEvalOperator)
		args, env, next := sl[0], sl[1], sl[2]
		argsNil := c.isNilPtr(args)
		calls = append(calls, applyCall{
			sel:  c.and(sel, argsNil),
			fn:   v,
			argc: c.argcOnly0(c.and(sel, argsNil)),
			args: [4]gp{c.nilP(), c.nilP(), c.nilP(), c.nilP()},
			next: next,
		})
		walk := c.and(sel, lcNot(argsNil))
		acc := c.consPtr(v, c.nilP())
		first, rest := c.openCons(walk, args)
		afK := c.contPtr(store.TagContApplyFunction, acc, next, c.nilP(), c.nilP())
		eoK := c.contPtr(store.TagContEvalOperand, rest, acc, env, next)
		c.addCandidate(walk, first, env, c.selPtr(c.isNilPtr(rest), afK, eoK))
	}

	// eval-operand: push the value onto the accumulator and schedule
	// the next operand.
	{
		sel := g(store.TagContEvalOperand)
		pending, acc, env, next := sl[0], sl[1], sl[2], sl[3]
		acc2 := c.consPtr(v, acc)
		first, rest := c.openCons(sel, pending)
		afK := c.contPtr(store.TagContApplyFunction, acc2, next, c.nilP(), c.nilP())
		eoK := c.contPtr(store.TagContEvalOperand, rest, acc2, env, next)
		c.addCandidate(sel, first, env, c.selPtr(c.isNilPtr(rest), afK, eoK))
	}

	// apply-function: the last operand arrived; unpack the reversed
	// accumulator and perform the call.
	{
		sel := g(store.TagContApplyFunction)
		acc, next := sl[0], sl[1]
		ch := c.openList(sel, acc)
		out = append(out, delivery{c.and(sel, lcNot(ch.proper)), c.constP(wk.arity), next})
		ok := c.and(sel, ch.proper)
		fn := c.pick(
			muxCase{ch.count[0], v},
			muxCase{ch.count[1], ch.elems[0]},
			muxCase{ch.count[2], ch.elems[1]},
			muxCase{ch.count[3], ch.elems[2]},
			muxCase{ch.count[4], ch.elems[3]},
		)
		args := [4]gp{
			c.pick(muxCase{ch.count[1], v}, muxCase{ch.count[2], ch.elems[0]},
				muxCase{ch.count[3], ch.elems[1]}, muxCase{ch.count[4], ch.elems[2]}),
			c.pick(muxCase{ch.count[2], v}, muxCase{ch.count[3], ch.elems[0]},
				muxCase{ch.count[4], ch.elems[1]}),
			c.pick(muxCase{ch.count[3], v}, muxCase{ch.count[4], ch.elems[0]}),
			c.pick(muxCase{ch.count[4], v}),
		}
		var argc [5]LC
		for j := range argc {
			argc[j] = c.and(ok, ch.count[j])
		}
		calls = append(calls, applyCall{sel: ok, fn: fn, argc: argc, args: args, next: next})
	}

	// bind / bind-rec: extend the frame's environment and enter the
	// body.
	{
		sel := Sum(g(store.TagContBind), g(store.TagContBindRec))
		sym, body, env, next := sl[0], sl[1], sl[2], sl[3]
		binding := c.consPtr(sym, v)
		plainEnv := c.consPtr(binding, env)
		recEnv := c.consPtr(c.consPtr(binding, c.nilP()), env)
		isRec := Single(c.b.IsEqual(k.tag, Constant(store.TagContBindRec.Field())))
		c.addCandidate(sel, body, c.selPtr(isRec, recEnv, plainEnv), next)
	}

	// branch: pick the arm on the single falsy value.
	{
		sel := g(store.TagContBranch)
		c.addCandidate(sel, c.selPtr(c.isNilPtr(v), sl[1], sl[0]), sl[2], sl[3])
	}

	// unop: apply the unary operator to the value.
	{
		sel := g(store.TagContUnop)
		op, next := sl[0], sl[1]
		isCar := c.eqPtr(op, c.constP(wk.car))
		isCdr := c.eqPtr(op, c.constP(wk.cdr))
		isAtom := c.eqPtr(op, c.constP(wk.atom))
		isEmit := c.eqPtr(op, c.constP(wk.emit))
		c.b.AssertEq(c.and(sel, lcNot(Sum(Sum(isCar, isCdr), Sum(isAtom, isEmit)))), Constant(field.Zero))

		vNil := c.isNilPtr(v)
		vCons := c.isTag(v, store.TagCons)
		vOther := lcNot(Sum(vNil, vCons))
		vcar, vcdr := c.openCons(c.and(sel, Sum(isCar, isCdr), vCons), v)
		malformed := c.constP(wk.malformed)
		outVal := c.pick(
			muxCase{c.and(isCar, vNil), c.nilP()},
			muxCase{c.and(isCar, vCons), vcar},
			muxCase{c.and(isCar, vOther), malformed},
			muxCase{c.and(isCdr, vNil), c.nilP()},
			muxCase{c.and(isCdr, vCons), vcdr},
			muxCase{c.and(isCdr, vOther), malformed},
			muxCase{c.and(isAtom, lcNot(vCons)), c.constP(wk.truth)},
			muxCase{c.and(isAtom, vCons), c.nilP()},
			muxCase{isEmit, v},
		)
		out = append(out, delivery{sel, outVal, next})
	}

	// binop: the left operand arrived; evaluate the right one under a
	// binop2 frame holding the left value.
	{
		sel := g(store.TagContBinop)
		b2K := c.contPtr(store.TagContBinop2, sl[0], v, sl[3], c.nilP())
		c.addCandidate(sel, sl[1], sl[2], b2K)
	}

	out = append(out, c.binop2(g(store.TagContBinop2), v, sl))
	return out, calls
}

// binop2 applies a binary operator to the stored left value and the
// just-arrived right value.
func (c *stepCtx) binop2(sel LC, v gp, sl [4]gp) delivery {
	wk := &c.sy.wk
	op, left, next := sl[0], sl[1], sl[2]

	is := func(p store.Pointer) LC { return c.eqPtr(op, c.constP(p)) }
	opCons, opEq := is(wk.cons), is(wk.eq)
	opAdd, opSub, opMul, opDiv := is(wk.add), is(wk.sub), is(wk.mul), is(wk.div)
	opNumEq, opLt, opGt := is(wk.numEq), is(wk.lt), is(wk.gt)
	c.b.AssertEq(c.and(sel, lcNot(Sum(
		Sum(Sum(opCons, opEq), Sum(opAdd, opSub)),
		Sum(Sum(opMul, opDiv), Sum(Sum(opNumEq, opLt), opGt)),
	))), Constant(field.Zero))

	pair := c.consPtr(left, v)
	eqOut := c.boolP(c.eqPtr(left, v))

	bothNum := c.and(c.isTag(left, store.TagNum), c.isTag(v, store.TagNum))
	a, bb := left.dig, v.dig

	added := Sum(a, bb)
	subbed := Sum(a, Neg(bb))
	mulled := Single(c.b.Mul(a, bb))

	// Division allocates the quotient and constrains q*b = a, gated on
	// an actual numeric division with a nonzero divisor.
	bZero := Single(c.b.IsZero(bb))
	av, bv := c.b.evalLC(a), c.b.evalLC(bb)
	var qVal field.Element
	if !bv.IsZero() {
		qVal = av.Mul(bv.Inverse())
	}
	q := c.b.Alloc(qVal)
	qb := c.b.Mul(Single(q), bb)
	c.assertEqIf(c.and(sel, opDiv, bothNum, lcNot(bZero)), Single(qb), a)

	aBits := c.bits64(a)
	bBits := c.bits64(bb)
	ltOut, gtOut := c.compare64(aBits, bBits)
	numEqOut := Single(c.b.IsEqual(a, bb))

	arith := Sum(Sum(opAdd, opSub), Sum(opMul, opDiv))
	cmp := Sum(Sum(opNumEq, opLt), opGt)
	notNum := lcNot(bothNum)
	outVal := c.pick(
		muxCase{opCons, pair},
		muxCase{opEq, eqOut},
		muxCase{c.and(arith, notNum), c.constP(wk.arith)},
		muxCase{c.and(cmp, notNum), c.constP(wk.malformed)},
		muxCase{c.and(opAdd, bothNum), c.numP(added)},
		muxCase{c.and(opSub, bothNum), c.numP(subbed)},
		muxCase{c.and(opMul, bothNum), c.numP(mulled)},
		muxCase{c.and(opDiv, bothNum, lcNot(bZero)), c.numP(Single(q))},
		muxCase{c.and(opDiv, bothNum, bZero), c.constP(wk.arith)},
		muxCase{c.and(opNumEq, bothNum), c.boolP(numEqOut)},
		muxCase{c.and(opLt, bothNum), c.boolP(ltOut)},
		muxCase{c.and(opGt, bothNum), c.boolP(gtOut)},
	)
	return delivery{sel, outVal, next}
}

// applyBlock performs the function application for every call site of
// one level. The sites are mutually exclusive, so a single shared
// instance serves them all.
func (c *stepCtx) applyBlock(calls []applyCall) []delivery {
	wk := &c.sy.wk

	act := LC{}
	var argc [5]LC
	for j := range argc {
		argc[j] = LC{}
	}
	var fnCases, nextCases []muxCase
	var argCases [4][]muxCase
	for _, call := range calls {
		act = Sum(act, call.sel)
		for j := range argc {
			argc[j] = Sum(argc[j], call.argc[j])
		}
		fnCases = append(fnCases, muxCase{call.sel, call.fn})
		nextCases = append(nextCases, muxCase{call.sel, call.next})
		for i := range argCases {
			argCases[i] = append(argCases[i], muxCase{call.sel, call.args[i]})
		}
	}
	fn := c.pick(fnCases...)
	next := c.pick(nextCases...)
	var args [4]gp
	for i := range args {
		args[i] = c.pick(argCases[i]...)
	}

	var out []delivery
	isFun := c.isTag(fn, store.TagFun)
	out = append(out, delivery{c.and(act, lcNot(isFun)), c.constP(wk.notFun), next})

	funSel := c.and(act, isFun)
	params, body, env := c.openFun(funSel, fn)
	ch := c.openList(funSel, params)
	// Interned functions always carry well-formed parameter lists.
	c.b.AssertEq(c.and(funSel, lcNot(ch.proper)), Constant(field.Zero))

	match := LC{}
	for j := range argc {
		match = Sum(match, Single(c.b.Mul(ch.count[j], argc[j])))
	}
	out = append(out, delivery{c.and(funSel, lcNot(match)), c.constP(wk.arity), next})

	ok := c.and(funSel, match)
	envAcc := env
	for i := 0; i < maxParams; i++ {
		use := LC{}
		for j := i + 1; j < len(argc); j++ {
			use = Sum(use, argc[j])
		}
		extended := c.consPtr(c.consPtr(ch.elems[i], args[i]), envAcc)
		envAcc = c.selPtr(use, extended, envAcc)
	}
	c.addCandidate(ok, body, envAcc, next)
	return out
}

// parkLevel handles deliveries that outlive the frame budget: root
// continuations still finish, everything else is suspended for the
// next step to resume.
func (c *stepCtx) parkLevel(sites []delivery) {
	act, v, k := c.muxDeliveries(sites)

	rootK := Sum(c.isTag(k, store.TagContOutermost), c.isTag(k, store.TagContTerminal))
	c.finishes = append(c.finishes, delivery{c.and(act, rootK), v, k})
	dummyK := c.isTag(k, store.TagContDummy)
	c.b.AssertEq(c.and(act, dummyK), Constant(field.Zero))

	park := c.and(act, lcNot(Sum(rootK, dummyK)))
	shield := c.shieldable(v)
	thunk := gp{Constant(store.TagThunk.Field()), c.digest4(v, k)}
	c.addCandidate(c.and(park, shield), thunk, c.preV, c.constP(c.sy.wk.dummyBare))
	c.addCandidate(c.and(park, lcNot(shield)), v, c.preV, k)
}

// finishLevel ends the computation for every root-continuation
// delivery: the value is shielded if re-evaluating it would not be a
// no-op, and the continuation becomes terminal.
func (c *stepCtx) finishLevel() {
	act, v, k := c.muxDeliveries(c.finishes)
	shield := c.shieldable(v)
	thunk := gp{Constant(store.TagThunk.Field()), c.digest4(v, k)}
	term := c.constP(c.sy.wk.terminalBare)
	c.addCandidate(c.and(act, shield), thunk, c.preV, term)
	c.addCandidate(c.and(act, lcNot(shield)), v, c.preV, term)
}

func (c *stepCtx) shieldable(v gp) LC {
	return Sum(
		Sum(c.isTag(v, store.TagSym), c.isTag(v, store.TagCons)),
		c.isTag(v, store.TagThunk),
	)
}

// maxParams matches the evaluator's call-arity bound; the application
// and list gadgets unroll to exactly this many positions.
const maxParams = 4

// listChain is the gated opening of up to maxParams cells of a proper
// list: elems[i] is the i-th element, live[i] whether cell i exists,
// count[j] the one-hot "exactly j elements", proper their sum.
type listChain struct {
	elems  [maxParams]gp
	live   [maxParams]LC
	count  [maxParams + 1]LC
	proper LC
}

func (c *stepCtx) openList(sel LC, list gp) listChain {
	var ch listChain
	ch.count[0] = c.isNilPtr(list)
	cur := list
	for i := 0; i < maxParams; i++ {
		isCons := c.isTag(cur, store.TagCons)
		if i == 0 {
			ch.live[i] = isCons
		} else {
			ch.live[i] = c.and(ch.live[i-1], isCons)
		}
		car, cdr := c.openCons(c.and(sel, ch.live[i]), cur)
		ch.elems[i] = car
		ch.count[i+1] = c.and(ch.live[i], c.isNilPtr(cdr))
		cur = cdr
	}
	ch.proper = LC{}
	for _, cnt := range ch.count {
		ch.proper = Sum(ch.proper, cnt)
	}
	return ch
}

// muxDeliveries folds disjoint delivery sites into one activity
// selector with the muxed value and continuation.
func (c *stepCtx) muxDeliveries(sites []delivery) (LC, gp, gp) {
	act := LC{}
	var vCases, kCases []muxCase
	for _, d := range sites {
		act = Sum(act, d.sel)
		vCases = append(vCases, muxCase{d.sel, d.v})
		kCases = append(kCases, muxCase{d.sel, d.k})
	}
	return act, c.pick(vCases...), c.pick(kCases...)
}

// Preimage openings. Each opening allocates the children and binds
// them to the parent digest only under its selector; the witness side
// reads the store only when the selector is live, so a dead opening is
// free of semantic meaning and of store lookups.

func (c *stepCtx) openCons(sel LC, p gp) (gp, gp) {
	car, cdr := store.NilPointer, store.NilPointer
	if c.live(sel) {
		if cell, err := c.s.ResolveCons(c.ptrOf(p)); err == nil {
			car, cdr = cell.Car, cell.Cdr
		}
	}
	carP, cdrP := c.allocP(car), c.allocP(cdr)
	c.assertEqIf(sel, p.tag, Constant(store.TagCons.Field()))
	c.assertEqIf(sel, c.digest4(carP, cdrP), p.dig)
	return carP, cdrP
}

func (c *stepCtx) openThunk(sel LC, p gp) (gp, gp) {
	val, cont := store.NilPointer, store.NilPointer
	if c.live(sel) {
		if th, err := c.s.ResolveThunk(c.ptrOf(p)); err == nil {
			val, cont = th.Value, th.Cont
		}
	}
	vP, kP := c.allocP(val), c.allocP(cont)
	c.assertEqIf(sel, p.tag, Constant(store.TagThunk.Field()))
	c.assertEqIf(sel, c.digest4(vP, kP), p.dig)
	return vP, kP
}

func (c *stepCtx) openFun(sel LC, p gp) (gp, gp, gp) {
	params, body, env := store.NilPointer, store.NilPointer, store.NilPointer
	if c.live(sel) {
		if fun, err := c.s.ResolveFun(c.ptrOf(p)); err == nil {
			params, body, env = fun.Params, fun.Body, fun.Env
		}
	}
	pP, bP, eP := c.allocP(params), c.allocP(body), c.allocP(env)
	c.assertEqIf(sel, p.tag, Constant(store.TagFun.Field()))
	c.assertEqIf(sel, c.digest(c.sy.hashers.H6, []LC{
		pP.tag, pP.dig, bP.tag, bP.dig, eP.tag, eP.dig,
	}), p.dig)
	return pP, bP, eP
}

// openCont binds the four slots to the frame digest. The frame tag is
// constrained by the caller's variant selectors, not here.
func (c *stepCtx) openCont(sel LC, k gp) [4]gp {
	slots := [4]store.Pointer{store.NilPointer, store.NilPointer, store.NilPointer, store.NilPointer}
	if c.live(sel) {
		if fr, err := c.s.ResolveCont(c.ptrOf(k)); err == nil {
			slots = fr.Slots
		}
	}
	var out [4]gp
	ins := make([]LC, 0, 8)
	for i, slot := range slots {
		out[i] = c.allocP(slot)
		ins = append(ins, out[i].tag, out[i].dig)
	}
	c.assertEqIf(sel, c.digest(c.sy.hashers.H8, ins), k.dig)
	return out
}

// Symbolic pointer construction.

func (c *stepCtx) nilP() gp {
	return gp{Constant(field.Zero), Constant(field.Zero)}
}

func (c *stepCtx) numP(x LC) gp {
	return gp{Constant(store.TagNum.Field()), x}
}

func (c *stepCtx) constP(p store.Pointer) gp {
	f := p.Fields()
	return gp{Constant(f[0]), Constant(f[1])}
}

func (c *stepCtx) allocP(p store.Pointer) gp {
	f := p.Fields()
	return gp{Single(c.b.Alloc(f[0])), Single(c.b.Alloc(f[1]))}
}

func (c *stepCtx) boolP(sel LC) gp {
	return c.selPtr(sel, c.constP(c.sy.wk.truth), c.nilP())
}

func (c *stepCtx) consPtr(car, cdr gp) gp {
	return gp{Constant(store.TagCons.Field()), c.digest4(car, cdr)}
}

func (c *stepCtx) contPtr(tag store.Tag, s0, s1, s2, s3 gp) gp {
	return c.contPtrTag(Constant(tag.Field()), s0, s1, s2, s3)
}

func (c *stepCtx) contPtrTag(tag LC, s0, s1, s2, s3 gp) gp {
	return gp{tag, c.digest(c.sy.hashers.H8, []LC{
		s0.tag, s0.dig, s1.tag, s1.dig, s2.tag, s2.dig, s3.tag, s3.dig,
	})}
}

func (c *stepCtx) digest4(x, y gp) LC {
	return c.digest(c.sy.hashers.H4, []LC{x.tag, x.dig, y.tag, y.dig})
}

func (c *stepCtx) digest(h *core.Hasher, inputs []LC) LC {
	out, err := SumGadget(c.b, h, inputs)
	if err != nil {
		// Arities are fixed at every call site.
		panic(err)
	}
	return out
}

// Boolean algebra over selector linear combinations. Inputs must be
// boolean-valued; sums of mutually exclusive booleans qualify.

func (c *stepCtx) and(xs ...LC) LC {
	out := xs[0]
	for _, x := range xs[1:] {
		out = Single(c.b.Mul(out, x))
	}
	return out
}

func (c *stepCtx) or(x, y LC) LC {
	return Sum(Sum(x, y), Neg(Single(c.b.Mul(x, y))))
}

func lcNot(x LC) LC {
	return Sum(Constant(field.One), Neg(x))
}

func (c *stepCtx) isTag(p gp, t store.Tag) LC {
	return Single(c.b.IsEqual(p.tag, Constant(t.Field())))
}

func (c *stepCtx) eqPtr(a, b gp) LC {
	return c.and(Single(c.b.IsEqual(a.tag, b.tag)), Single(c.b.IsEqual(a.dig, b.dig)))
}

func (c *stepCtx) isNilPtr(p gp) LC {
	return c.eqPtr(p, c.nilP())
}

// selectLC computes sel ? x : y without allocating the output.
func (c *stepCtx) selectLC(sel, x, y LC) LC {
	d := c.b.Mul(sel, Sum(x, Neg(y)))
	return Sum(y, Single(d))
}

func (c *stepCtx) selPtr(sel LC, x, y gp) gp {
	return gp{c.selectLC(sel, x.tag, y.tag), c.selectLC(sel, x.dig, y.dig)}
}

// muxCase pairs a selector with a pointer value.
type muxCase struct {
	sel LC
	val gp
}

// pick sums sel*val over disjoint one-hot cases.
func (c *stepCtx) pick(cases ...muxCase) gp {
	tag, dig := LC{}, LC{}
	for _, mc := range cases {
		tag = Sum(tag, Single(c.b.Mul(mc.sel, mc.val.tag)))
		dig = Sum(dig, Single(c.b.Mul(mc.sel, mc.val.dig)))
	}
	return gp{tag, dig}
}

func (c *stepCtx) argcOnly0(sel LC) [5]LC {
	z := Constant(field.Zero)
	return [5]LC{sel, z, z, z, z}
}

func (c *stepCtx) assertEqIf(sel LC, x, y LC) {
	c.b.addConstraint(sel, Sum(x, Neg(y)), Constant(field.Zero))
}

func (c *stepCtx) assertPtrEqIf(sel LC, a, b gp) {
	c.assertEqIf(sel, a.tag, b.tag)
	c.assertEqIf(sel, a.dig, b.dig)
}

// live reads the witness value of a selector.
func (c *stepCtx) live(sel LC) bool {
	return !c.b.evalLC(sel).IsZero()
}

func (c *stepCtx) ptrOf(p gp) store.Pointer {
	return store.Pointer{Tag: store.Tag(c.b.evalLC(p.tag).Value()), Digest: c.b.evalLC(p.dig)}
}

// bits64 decomposes a linear combination into 64 boolean wires,
// little-endian, rejecting the non-canonical representatives of values
// at or above the field characteristic.
func (c *stepCtx) bits64(x LC) []LC {
	v := c.b.evalLC(x).Value()
	bits := make([]LC, 64)
	recomb := LC{}
	for i := 0; i < 64; i++ {
		bit := c.b.Alloc(field.New((v >> uint(i)) & 1))
		c.b.AssertBoolean(bit)
		bits[i] = Single(bit)
		recomb = Sum(recomb, Scale(field.New(uint64(1)<<uint(i)), bits[i]))
	}
	c.b.AssertEq(recomb, x)

	// p = 2^64 - 2^32 + 1: a 64-bit word is non-canonical exactly when
	// its high 32 bits are all ones and its low 32 bits are nonzero.
	hi, lo := LC{}, LC{}
	for i := 0; i < 32; i++ {
		lo = Sum(lo, Scale(field.New(uint64(1)<<uint(i)), bits[i]))
		hi = Sum(hi, bits[32+i])
	}
	hiOnes := Single(c.b.IsEqual(hi, Constant(field.New(32))))
	loZero := Single(c.b.IsZero(lo))
	c.b.AssertEq(c.and(hiOnes, lcNot(loZero)), Constant(field.Zero))
	return bits
}

// compare64 compares two canonical bit decompositions most significant
// bit first, yielding both strict orderings.
func (c *stepCtx) compare64(a, b []LC) (lt, gt LC) {
	eq := Constant(field.One)
	lt, gt = LC{}, LC{}
	for i := 63; i >= 0; i-- {
		both := Single(c.b.Mul(a[i], b[i]))
		aOnly := Sum(a[i], Neg(both))
		bOnly := Sum(b[i], Neg(both))
		lt = Sum(lt, Single(c.b.Mul(eq, bOnly)))
		gt = Sum(gt, Single(c.b.Mul(eq, aOnly)))
		eq = Single(c.b.Mul(eq, Sum(Constant(field.One), Neg(Sum(aOnly, bOnly)))))
	}
	return lt, gt
}
