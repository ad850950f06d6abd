package store

import "fmt"

// Car returns the head of a pair. Following the language semantics,
// car of nil is nil; any other tag is the caller's error.
func (s *Store) Car(p Pointer) (Pointer, error) {
	if p.IsNil() {
		return NilPointer, nil
	}
	c, err := s.ResolveCons(p)
	if err != nil {
		return Pointer{}, err
	}
	return c.Car, nil
}

// Cdr returns the tail of a pair; cdr of nil is nil.
func (s *Store) Cdr(p Pointer) (Pointer, error) {
	if p.IsNil() {
		return NilPointer, nil
	}
	c, err := s.ResolveCons(p)
	if err != nil {
		return Pointer{}, err
	}
	return c.Cdr, nil
}

// InternList interns a proper list from the given elements.
func (s *Store) InternList(elems []Pointer) (Pointer, error) {
	acc := NilPointer
	for i := len(elems) - 1; i >= 0; i-- {
		next, err := s.InternCons(elems[i], acc)
		if err != nil {
			return Pointer{}, err
		}
		acc = next
	}
	return acc, nil
}

// ListToSlice walks a proper list into a slice. The limit guards
// against cyclic or degenerate structures reaching this host-level
// helper; store-resident lists built by the evaluator are always
// finite.
func (s *Store) ListToSlice(p Pointer, limit int) ([]Pointer, error) {
	var out []Pointer
	for !p.IsNil() {
		if len(out) >= limit {
			return nil, fmt.Errorf("list longer than limit %d", limit)
		}
		c, err := s.ResolveCons(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c.Car)
		p = c.Cdr
	}
	return out, nil
}

// ListLength returns the length of a proper list.
func (s *Store) ListLength(p Pointer) (int, error) {
	n := 0
	for !p.IsNil() {
		c, err := s.ResolveCons(p)
		if err != nil {
			return 0, err
		}
		n++
		p = c.Cdr
	}
	return n, nil
}

// ReverseList interns the reversal of a proper list.
func (s *Store) ReverseList(p Pointer) (Pointer, error) {
	acc := NilPointer
	for !p.IsNil() {
		c, err := s.ResolveCons(p)
		if err != nil {
			return Pointer{}, err
		}
		next, err := s.InternCons(c.Car, acc)
		if err != nil {
			return Pointer{}, err
		}
		acc = next
		p = c.Cdr
	}
	return acc, nil
}
