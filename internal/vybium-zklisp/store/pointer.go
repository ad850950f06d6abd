package store

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Pointer is the universal reference: a type tag plus the Poseidon
// digest of the referenced content. Pointers are immutable values and
// two pointers are the same object exactly when they are equal.
//
// Numbers are immediate: a TagNum pointer carries the numeric value in
// its digest and has no store entry.
type Pointer struct {
	Tag    Tag
	Digest field.Element
}

// NilPointer is the canonical nil, the single falsy value. Its digest
// is zero so zero-padded continuation slots read back as nil.
var NilPointer = Pointer{Tag: TagNil, Digest: field.Zero}

// NumPointer wraps a field element as an immediate numeric value.
func NumPointer(v field.Element) Pointer {
	return Pointer{Tag: TagNum, Digest: v}
}

// Equal reports pointer identity, which under hash-consing is also
// structural equality of the referenced objects.
func (p Pointer) Equal(q Pointer) bool {
	return p.Tag == q.Tag && p.Digest.Equal(q.Digest)
}

// IsNil reports whether p is the canonical nil.
func (p Pointer) IsNil() bool {
	return p.Equal(NilPointer)
}

// IsValue reports whether p is fully reduced: anything but a bare
// symbol or a cons form, which still require evaluation.
func (p Pointer) IsValue() bool {
	switch p.Tag {
	case TagNil, TagNum, TagStr, TagFun, TagErr, TagThunk:
		return true
	default:
		return false
	}
}

// Fields returns the (tag, digest) pair as two field elements, the
// pointer's fixed-width hash preimage contribution.
func (p Pointer) Fields() [2]field.Element {
	return [2]field.Element{p.Tag.Field(), p.Digest}
}

// String renders the pointer for diagnostics.
func (p Pointer) String() string {
	if p.Tag == TagNum {
		return fmt.Sprintf("num(%s)", p.Digest.String())
	}
	return fmt.Sprintf("%s(%s)", p.Tag.String(), p.Digest.String())
}

// Cons is a stored pair.
type Cons struct {
	Car Pointer
	Cdr Pointer
}

// Fun is a stored closure: a parameter list, a body expression and the
// captured environment.
type Fun struct {
	Params Pointer
	Body   Pointer
	Env    Pointer
}

// Thunk is a suspended return: a value paired with the continuation it
// was on its way to. Forcing a thunk resumes that continuation.
type Thunk struct {
	Value Pointer
	Cont  Pointer
}

// Sentinel is a stored evaluation error value.
type Sentinel struct {
	Code SentinelCode
}

// ContFrame is a stored continuation frame. Slots holds the variant's
// payload pointers in a fixed order, padded with nil; their meaning is
// defined per variant by the lang package.
type ContFrame struct {
	Tag   Tag
	Slots [4]Pointer
}

// State is an evaluation triple. It is the unit the evaluator steps and
// the unit the circuit digests for its public inputs.
type State struct {
	Expr Pointer
	Env  Pointer
	Cont Pointer
}

// Equal reports component-wise pointer equality.
func (s State) Equal(o State) bool {
	return s.Expr.Equal(o.Expr) && s.Env.Equal(o.Env) && s.Cont.Equal(o.Cont)
}
