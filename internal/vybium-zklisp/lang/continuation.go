package lang

import (
	"fmt"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
)

// Continuation frames are interned store objects with four pointer
// slots, padded with nil. Slot layout per variant:
//
//	outermost, terminal, dummy:  (no payload)
//	eval-operator:   [unevaled-args, env, next]
//	eval-operand:    [pending-args, evaluated-reversed, env, next]
//	apply-function:  [evaluated-reversed, next]
//	bind, bind-rec:  [symbol, body, env, next]
//	branch:          [then, else, env, next]
//	unop:            [operator, next]
//	binop:           [operator, right-expr, env, next]
//	binop2:          [operator, left-value, next]
//
// In eval-operand and apply-function, evaluated-reversed is the list of
// already-computed values in reverse order, with the operator value
// deepest; the final application reverses it once.
//
// A dummy continuation appears only as the continuation of a state
// whose expression is a thunk; the thunk itself carries the real
// continuation to resume.

func internBare(s *store.Store, tag store.Tag) (store.Pointer, error) {
	return s.InternCont(tag, [4]store.Pointer{store.NilPointer, store.NilPointer, store.NilPointer, store.NilPointer})
}

func internEvalOperator(s *store.Store, args, env, next store.Pointer) (store.Pointer, error) {
	return s.InternCont(store.TagContEvalOperator, [4]store.Pointer{args, env, next, store.NilPointer})
}

func internEvalOperand(s *store.Store, pending, acc, env, next store.Pointer) (store.Pointer, error) {
	return s.InternCont(store.TagContEvalOperand, [4]store.Pointer{pending, acc, env, next})
}

func internApplyFunction(s *store.Store, acc, next store.Pointer) (store.Pointer, error) {
	return s.InternCont(store.TagContApplyFunction, [4]store.Pointer{acc, next, store.NilPointer, store.NilPointer})
}

func internBind(s *store.Store, tag store.Tag, sym, body, env, next store.Pointer) (store.Pointer, error) {
	return s.InternCont(tag, [4]store.Pointer{sym, body, env, next})
}

func internBranch(s *store.Store, then, els, env, next store.Pointer) (store.Pointer, error) {
	return s.InternCont(store.TagContBranch, [4]store.Pointer{then, els, env, next})
}

func internUnop(s *store.Store, op, next store.Pointer) (store.Pointer, error) {
	return s.InternCont(store.TagContUnop, [4]store.Pointer{op, next, store.NilPointer, store.NilPointer})
}

func internBinop(s *store.Store, op, right, env, next store.Pointer) (store.Pointer, error) {
	return s.InternCont(store.TagContBinop, [4]store.Pointer{op, right, env, next})
}

func internBinop2(s *store.Store, op, left, next store.Pointer) (store.Pointer, error) {
	return s.InternCont(store.TagContBinop2, [4]store.Pointer{op, left, next, store.NilPointer})
}

// nextSlot returns the position of the saved continuation in a frame's
// slot array. Error sentinels propagate by returning straight to this
// slot, popping the frame.
func nextSlot(tag store.Tag) (int, error) {
	switch tag {
	case store.TagContEvalOperator:
		return 2, nil
	case store.TagContEvalOperand:
		return 3, nil
	case store.TagContApplyFunction:
		return 1, nil
	case store.TagContBind, store.TagContBindRec:
		return 3, nil
	case store.TagContBranch:
		return 3, nil
	case store.TagContUnop:
		return 1, nil
	case store.TagContBinop:
		return 3, nil
	case store.TagContBinop2:
		return 2, nil
	default:
		return 0, fmt.Errorf("continuation tag %s has no saved continuation", tag)
	}
}
