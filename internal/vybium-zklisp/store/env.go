package store

import "fmt"

// Environments are store-resident association lists: nil, or a cons
// whose car is a binding and whose cdr is the enclosing environment.
// A plain binding is (sym . val). A recursive binding, produced by
// letrec, is the one-element list ((sym . val)); the extra cons is the
// marker that lookups through it must re-close functions over the
// recursive frame, which is how mutual self-reference works without
// ever mutating an interned object.

// EnvExtend pushes a plain binding onto an environment.
func (s *Store) EnvExtend(env, sym, val Pointer) (Pointer, error) {
	binding, err := s.InternCons(sym, val)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to intern binding: %w", err)
	}
	extended, err := s.InternCons(binding, env)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to extend environment: %w", err)
	}
	return extended, nil
}

// EnvExtendRec pushes a recursive binding onto an environment.
func (s *Store) EnvExtendRec(env, sym, val Pointer) (Pointer, error) {
	inner, err := s.InternCons(sym, val)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to intern recursive binding: %w", err)
	}
	cell, err := s.InternCons(inner, NilPointer)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to intern recursive cell: %w", err)
	}
	extended, err := s.InternCons(cell, env)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to extend environment: %w", err)
	}
	return extended, nil
}

// EnvLookup resolves a symbol through the environment chain. It
// returns the bound value, the zero-based depth of the frame that
// held it, and whether it was found at all. On a miss the depth is
// the length of the chain that was walked, so callers bounding
// lookup work see the full cost of the miss as well.
//
// A hit on a recursive binding whose value is a function returns the
// function re-closed over the recursive frame, so the function's body
// can resolve the binding again. The re-closed function is interned
// like any other value and hash-conses to the same pointer on every
// lookup.
func (s *Store) EnvLookup(env, sym Pointer) (Pointer, int, bool, error) {
	depth := 0
	for !env.IsNil() {
		frame, err := s.ResolveCons(env)
		if err != nil {
			return Pointer{}, 0, false, fmt.Errorf("broken environment chain: %w", err)
		}

		binding, err := s.ResolveCons(frame.Car)
		if err != nil {
			return Pointer{}, 0, false, fmt.Errorf("broken environment binding: %w", err)
		}

		switch binding.Car.Tag {
		case TagSym:
			if binding.Car.Equal(sym) {
				return binding.Cdr, depth, true, nil
			}
		case TagCons:
			inner, err := s.ResolveCons(binding.Car)
			if err != nil {
				return Pointer{}, 0, false, fmt.Errorf("broken recursive binding: %w", err)
			}
			if inner.Car.Equal(sym) {
				val, err := s.recloseIfFun(frame.Car, inner.Cdr)
				if err != nil {
					return Pointer{}, 0, false, err
				}
				return val, depth, true, nil
			}
		default:
			return Pointer{}, 0, false, fmt.Errorf("environment binding has tag %s", binding.Car.Tag)
		}

		env = frame.Cdr
		depth++
	}
	return Pointer{}, depth, false, nil
}

// recloseIfFun extends a function's captured environment with the
// recursive cell it was looked up through. Non-function values pass
// through unchanged.
func (s *Store) recloseIfFun(cell, val Pointer) (Pointer, error) {
	if val.Tag != TagFun {
		return val, nil
	}
	fun, err := s.ResolveFun(val)
	if err != nil {
		return Pointer{}, err
	}
	closedEnv, err := s.InternCons(cell, fun.Env)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to re-close recursive function: %w", err)
	}
	reclosed, err := s.InternFun(fun.Params, fun.Body, closedEnv)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to intern re-closed function: %w", err)
	}
	return reclosed, nil
}
