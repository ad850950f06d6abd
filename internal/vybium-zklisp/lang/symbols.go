// Package lang implements the small-step evaluator: a deterministic
// state machine over (expression, environment, continuation) triples.
// Every transition is a total function of the current triple and the
// store, shaped so a single step stays within a fixed circuit topology.
package lang

import (
	"fmt"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
)

// symbols caches the interned pointers of every reserved word and
// built-in operator so dispatch is pointer comparison, not string
// resolution.
type symbols struct {
	Quote  store.Pointer
	Lambda store.Pointer
	If     store.Pointer
	Let    store.Pointer
	Letrec store.Pointer
	T      store.Pointer

	// Unary operators.
	Car  store.Pointer
	Cdr  store.Pointer
	Atom store.Pointer
	Emit store.Pointer

	// Binary operators.
	Cons  store.Pointer
	Add   store.Pointer
	Sub   store.Pointer
	Mul   store.Pointer
	Div   store.Pointer
	NumEq store.Pointer
	Lt    store.Pointer
	Gt    store.Pointer
	Eq    store.Pointer
}

func internSymbols(s *store.Store) (*symbols, error) {
	sym := &symbols{}
	for _, entry := range []struct {
		name string
		dst  *store.Pointer
	}{
		{"quote", &sym.Quote},
		{"lambda", &sym.Lambda},
		{"if", &sym.If},
		{"let", &sym.Let},
		{"letrec", &sym.Letrec},
		{"t", &sym.T},
		{"car", &sym.Car},
		{"cdr", &sym.Cdr},
		{"atom", &sym.Atom},
		{"emit", &sym.Emit},
		{"cons", &sym.Cons},
		{"+", &sym.Add},
		{"-", &sym.Sub},
		{"*", &sym.Mul},
		{"/", &sym.Div},
		{"=", &sym.NumEq},
		{"<", &sym.Lt},
		{">", &sym.Gt},
		{"eq", &sym.Eq},
	} {
		p, err := s.InternSymbol(entry.name)
		if err != nil {
			return nil, fmt.Errorf("failed to intern %q: %w", entry.name, err)
		}
		*entry.dst = p
	}
	return sym, nil
}

// isUnop reports whether head names a unary operator.
func (y *symbols) isUnop(head store.Pointer) bool {
	return head.Equal(y.Car) || head.Equal(y.Cdr) || head.Equal(y.Atom) || head.Equal(y.Emit)
}

// isBinop reports whether head names a binary operator.
func (y *symbols) isBinop(head store.Pointer) bool {
	switch {
	case head.Equal(y.Cons), head.Equal(y.Add), head.Equal(y.Sub), head.Equal(y.Mul),
		head.Equal(y.Div), head.Equal(y.NumEq), head.Equal(y.Lt), head.Equal(y.Gt),
		head.Equal(y.Eq):
		return true
	}
	return false
}

// bool returns the language-level truth value for a host boolean.
func (y *symbols) bool(b bool) store.Pointer {
	if b {
		return y.T
	}
	return store.NilPointer
}
