package circuit

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/core"
	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
)

// NumPublicInputs is the public interface of one step instance: the
// digest of the triple before the step and the digest after it.
const NumPublicInputs = 2

// Synthesizer turns one evaluator transition into a satisfied
// constraint system. It shares the hashers of the store it synthesizes
// from, so the in-circuit digests and the native digests cannot drift
// apart.
type Synthesizer struct {
	hashers  *core.HasherSet
	envDepth int
	wk       wellKnown
}

// wellKnown holds the pointers the transition gadget compares against
// as constants: reserved words, operator symbols, error sentinels and
// the bare continuations. All are pure functions of the hasher set.
type wellKnown struct {
	quote, lambda, ifSym, letSym, letrecSym, truth store.Pointer
	car, cdr, atom, emit                           store.Pointer
	cons, add, sub, mul, div, numEq, lt, gt, eq    store.Pointer

	unbound, notFun, arity, malformed, arith store.Pointer

	terminalBare, outermostBare, dummyBare store.Pointer
}

// NewSynthesizer creates a synthesizer over a hasher set. maxEnvDepth
// is the number of environment frames the in-circuit symbol lookup
// unrolls; it must match the bound the prover enforces on traces.
func NewSynthesizer(hashers *core.HasherSet, maxEnvDepth int) (*Synthesizer, error) {
	if maxEnvDepth < 1 {
		return nil, fmt.Errorf("environment depth bound %d is not positive", maxEnvDepth)
	}
	wk, err := buildWellKnown(hashers)
	if err != nil {
		return nil, fmt.Errorf("failed to derive circuit constants: %w", err)
	}
	return &Synthesizer{hashers: hashers, envDepth: maxEnvDepth, wk: wk}, nil
}

func buildWellKnown(h *core.HasherSet) (wellKnown, error) {
	var wk wellKnown

	for _, entry := range []struct {
		name string
		dst  *store.Pointer
	}{
		{"quote", &wk.quote}, {"lambda", &wk.lambda}, {"if", &wk.ifSym},
		{"let", &wk.letSym}, {"letrec", &wk.letrecSym}, {"t", &wk.truth},
		{"car", &wk.car}, {"cdr", &wk.cdr}, {"atom", &wk.atom}, {"emit", &wk.emit},
		{"cons", &wk.cons}, {"+", &wk.add}, {"-", &wk.sub}, {"*", &wk.mul},
		{"/", &wk.div}, {"=", &wk.numEq}, {"<", &wk.lt}, {">", &wk.gt}, {"eq", &wk.eq},
	} {
		digest, err := h.HashString(entry.name)
		if err != nil {
			return wellKnown{}, fmt.Errorf("failed to hash symbol %q: %w", entry.name, err)
		}
		*entry.dst = store.Pointer{Tag: store.TagSym, Digest: digest}
	}

	for _, entry := range []struct {
		code store.SentinelCode
		dst  *store.Pointer
	}{
		{store.SentinelUnboundVariable, &wk.unbound},
		{store.SentinelNotAFunction, &wk.notFun},
		{store.SentinelArityMismatch, &wk.arity},
		{store.SentinelMalformedExpression, &wk.malformed},
		{store.SentinelArithmeticDomain, &wk.arith},
	} {
		digest, err := h.H4.Sum([]field.Element{
			field.New(uint64(entry.code)), field.Zero, field.Zero, field.Zero,
		})
		if err != nil {
			return wellKnown{}, fmt.Errorf("failed to hash sentinel %s: %w", entry.code, err)
		}
		*entry.dst = store.Pointer{Tag: store.TagErr, Digest: digest}
	}

	bare, err := h.H8.Sum(make([]field.Element, 8))
	if err != nil {
		return wellKnown{}, fmt.Errorf("failed to hash bare continuation: %w", err)
	}
	wk.terminalBare = store.Pointer{Tag: store.TagContTerminal, Digest: bare}
	wk.outermostBare = store.Pointer{Tag: store.TagContOutermost, Digest: bare}
	wk.dummyBare = store.Pointer{Tag: store.TagContDummy, Digest: bare}
	return wk, nil
}

// stateVars is the allocated flattening of one evaluation triple:
// (tag, digest) for each of expression, environment, continuation.
type stateVars struct {
	fields [6]Var
}

func (sv stateVars) lcs() []LC {
	out := make([]LC, 6)
	for i, v := range sv.fields {
		out[i] = Single(v)
	}
	return out
}

// SynthesizeStep builds the constraint system for the transition from
// pre to post, together with its satisfying assignment. The synthesis
// path is input-independent, so every call yields a system of the same
// shape; only the assignment differs.
//
// The instance binds:
//   - public input 0 to the Poseidon digest of the pre triple,
//   - public input 1 to the digest of the post triple,
//   - both pre tag fields to their closed tag sets (one-hot), and
//   - the post triple to the successor the transition gadget computes
//     from the pre triple, covering every reduction rule of the
//     evaluator.
func (sy *Synthesizer) SynthesizeStep(s *store.Store, pre, post store.State) (*System, []field.Element, error) {
	digestPre, err := s.HashState(pre)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to digest pre state: %w", err)
	}
	digestPost, err := s.HashState(post)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to digest post state: %w", err)
	}

	b := NewBuilder(NumPublicInputs)
	pubPre, err := b.AllocPublic(digestPre)
	if err != nil {
		return nil, nil, err
	}
	pubPost, err := b.AllocPublic(digestPost)
	if err != nil {
		return nil, nil, err
	}

	preVars := sy.allocState(b, pre)
	postVars := sy.allocState(b, post)

	// Digest binding: the public inputs commit to the full triples.
	preDigestLC, err := SumGadget(b, sy.hashers.H6, preVars.lcs())
	if err != nil {
		return nil, nil, err
	}
	b.AssertEq(preDigestLC, Single(pubPre))

	postDigestLC, err := SumGadget(b, sy.hashers.H6, postVars.lcs())
	if err != nil {
		return nil, nil, err
	}
	b.AssertEq(postDigestLC, Single(pubPost))

	// Closed tag sets.
	exprSel := sy.oneHot(b, Single(preVars.fields[0]), store.ExprTags)
	contSel := sy.oneHot(b, Single(preVars.fields[4]), store.ContTags)

	c := &stepCtx{
		b:    b,
		s:    s,
		sy:   sy,
		preE: gp{Single(preVars.fields[0]), Single(preVars.fields[1])},
		preV: gp{Single(preVars.fields[2]), Single(preVars.fields[3])},
		preK: gp{Single(preVars.fields[4]), Single(preVars.fields[5])},
	}
	c.transition(exprSel, contSel, postVars)

	return b.Build()
}

func (sy *Synthesizer) allocState(b *Builder, st store.State) stateVars {
	e, v, k := st.Expr.Fields(), st.Env.Fields(), st.Cont.Fields()
	return stateVars{fields: [6]Var{
		b.Alloc(e[0]), b.Alloc(e[1]),
		b.Alloc(v[0]), b.Alloc(v[1]),
		b.Alloc(k[0]), b.Alloc(k[1]),
	}}
}

// oneHot allocates one boolean selector per tag, each set exactly when
// the tag field equals that tag, and constrains the selectors to sum
// to one so the field is forced into the closed set.
func (sy *Synthesizer) oneHot(b *Builder, tagLC LC, tags []store.Tag) []Var {
	sels := make([]Var, len(tags))
	sum := LC{}
	for i, tag := range tags {
		sel := b.IsEqual(tagLC, Constant(tag.Field()))
		sels[i] = sel
		sum = Sum(sum, Single(sel))
	}
	b.AssertEq(sum, Constant(field.One))
	return sels
}

func indexOfTag(tags []store.Tag, tag store.Tag) int {
	for i, t := range tags {
		if t == tag {
			return i
		}
	}
	// Tag sets are fixed at compile time; a miss is a programming
	// error caught by the circuit tests.
	panic(fmt.Sprintf("tag %s not in tag set", tag))
}
