// Package store implements the content-addressed, hash-consed memory
// every expression, value, environment and continuation lives in. A
// pointer is a (tag, digest) pair; structurally equal objects always
// intern to the same pointer, and the store only ever grows.
package store

import "github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

// Tag is the fixed-width discriminant of a pointer. Expression tags and
// continuation tags share one space so the circuit can multiplex over a
// single closed set.
type Tag uint64

// Expression tags. TagNil is deliberately zero: the all-zero pointer is
// the canonical nil, which doubles as the padding value in fixed-width
// hash preimages.
const (
	TagNil Tag = iota
	TagCons
	TagSym
	TagStr
	TagNum
	TagFun
	TagThunk
	TagErr
)

// Continuation tags. Chains are built from these frames and rooted at
// TagContOutermost; a state whose continuation is TagContTerminal is
// fully reduced and stepping it is a no-op.
const (
	TagContTerminal Tag = iota + 16
	TagContOutermost
	TagContDummy
	TagContEvalOperator
	TagContEvalOperand
	TagContApplyFunction
	TagContBind
	TagContBindRec
	TagContBranch
	TagContUnop
	TagContBinop
	TagContBinop2
)

// ExprTags lists every expression tag, in circuit mux order.
var ExprTags = []Tag{TagNil, TagCons, TagSym, TagStr, TagNum, TagFun, TagThunk, TagErr}

// ContTags lists every continuation tag, in circuit mux order.
var ContTags = []Tag{
	TagContTerminal, TagContOutermost, TagContDummy,
	TagContEvalOperator, TagContEvalOperand, TagContApplyFunction,
	TagContBind, TagContBindRec, TagContBranch,
	TagContUnop, TagContBinop, TagContBinop2,
}

// IsContTag reports whether t names a continuation variant.
func (t Tag) IsContTag() bool {
	return t >= TagContTerminal && t <= TagContBinop2
}

// Field returns the tag as a field element, the form it takes inside
// hash preimages and circuit wires.
func (t Tag) Field() field.Element {
	return field.New(uint64(t))
}

// String returns the tag name for diagnostics.
func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagCons:
		return "cons"
	case TagSym:
		return "sym"
	case TagStr:
		return "str"
	case TagNum:
		return "num"
	case TagFun:
		return "fun"
	case TagThunk:
		return "thunk"
	case TagErr:
		return "err"
	case TagContTerminal:
		return "cont-terminal"
	case TagContOutermost:
		return "cont-outermost"
	case TagContDummy:
		return "cont-dummy"
	case TagContEvalOperator:
		return "cont-eval-operator"
	case TagContEvalOperand:
		return "cont-eval-operand"
	case TagContApplyFunction:
		return "cont-apply-function"
	case TagContBind:
		return "cont-bind"
	case TagContBindRec:
		return "cont-bind-rec"
	case TagContBranch:
		return "cont-branch"
	case TagContUnop:
		return "cont-unop"
	case TagContBinop:
		return "cont-binop"
	case TagContBinop2:
		return "cont-binop2"
	default:
		return "invalid"
	}
}

// SentinelCode identifies an in-band evaluation error. Sentinels are
// ordinary store values with tag TagErr; they flow through the same
// reduction rules as successful results because the arithmetized step
// cannot unwind.
type SentinelCode uint64

const (
	SentinelUnboundVariable SentinelCode = iota + 1
	SentinelNotAFunction
	SentinelArityMismatch
	SentinelMalformedExpression
	SentinelArithmeticDomain
)

// String returns the sentinel name as printed by the REPL surface.
func (c SentinelCode) String() string {
	switch c {
	case SentinelUnboundVariable:
		return "unbound-variable-error"
	case SentinelNotAFunction:
		return "not-a-function-error"
	case SentinelArityMismatch:
		return "arity-mismatch-error"
	case SentinelMalformedExpression:
		return "malformed-expression-error"
	case SentinelArithmeticDomain:
		return "arithmetic-domain-error"
	default:
		return "unknown-error"
	}
}
