package store

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestEnvLookupPlain(t *testing.T) {
	s := newTestStore(t)

	x, err := s.InternSymbol("x")
	if err != nil {
		t.Fatalf("InternSymbol: %v", err)
	}
	y, err := s.InternSymbol("y")
	if err != nil {
		t.Fatalf("InternSymbol: %v", err)
	}

	env, err := s.EnvExtend(NilPointer, x, NumPointer(field.New(1)))
	if err != nil {
		t.Fatalf("EnvExtend: %v", err)
	}
	env, err = s.EnvExtend(env, y, NumPointer(field.New(2)))
	if err != nil {
		t.Fatalf("EnvExtend: %v", err)
	}

	val, depth, found, err := s.EnvLookup(env, x)
	if err != nil {
		t.Fatalf("EnvLookup: %v", err)
	}
	if !found {
		t.Fatal("x not found")
	}
	if !val.Equal(NumPointer(field.New(1))) {
		t.Errorf("x = %s, want num(1)", val)
	}
	if depth != 1 {
		t.Errorf("depth of x = %d, want 1", depth)
	}

	val, depth, found, err = s.EnvLookup(env, y)
	if err != nil {
		t.Fatalf("EnvLookup: %v", err)
	}
	if !found || !val.Equal(NumPointer(field.New(2))) || depth != 0 {
		t.Errorf("y lookup = (%s, %d, %t)", val, depth, found)
	}
}

func TestEnvLookupShadowing(t *testing.T) {
	s := newTestStore(t)

	x, err := s.InternSymbol("x")
	if err != nil {
		t.Fatalf("InternSymbol: %v", err)
	}

	env, err := s.EnvExtend(NilPointer, x, NumPointer(field.New(1)))
	if err != nil {
		t.Fatalf("EnvExtend: %v", err)
	}
	env, err = s.EnvExtend(env, x, NumPointer(field.New(2)))
	if err != nil {
		t.Fatalf("EnvExtend: %v", err)
	}

	val, depth, found, err := s.EnvLookup(env, x)
	if err != nil {
		t.Fatalf("EnvLookup: %v", err)
	}
	if !found || depth != 0 {
		t.Fatalf("shadowed lookup = (found %t, depth %d)", found, depth)
	}
	if !val.Equal(NumPointer(field.New(2))) {
		t.Errorf("inner binding did not shadow: got %s", val)
	}
}

func TestEnvLookupMiss(t *testing.T) {
	s := newTestStore(t)

	x, err := s.InternSymbol("x")
	if err != nil {
		t.Fatalf("InternSymbol: %v", err)
	}
	missing, err := s.InternSymbol("missing")
	if err != nil {
		t.Fatalf("InternSymbol: %v", err)
	}

	env, err := s.EnvExtend(NilPointer, x, NumPointer(field.New(1)))
	if err != nil {
		t.Fatalf("EnvExtend: %v", err)
	}

	_, _, found, err := s.EnvLookup(env, missing)
	if err != nil {
		t.Fatalf("EnvLookup: %v", err)
	}
	if found {
		t.Error("lookup of an unbound symbol reported found")
	}

	_, _, found, err = s.EnvLookup(NilPointer, x)
	if err != nil {
		t.Fatalf("EnvLookup in empty env: %v", err)
	}
	if found {
		t.Error("lookup in the empty environment reported found")
	}
}

func TestEnvLookupRecursiveReclosesFunction(t *testing.T) {
	s := newTestStore(t)

	f, err := s.InternSymbol("f")
	if err != nil {
		t.Fatalf("InternSymbol: %v", err)
	}
	n, err := s.InternSymbol("n")
	if err != nil {
		t.Fatalf("InternSymbol: %v", err)
	}
	params, err := s.InternList([]Pointer{n})
	if err != nil {
		t.Fatalf("InternList: %v", err)
	}

	// Body (f n): only its shape matters here.
	body, err := s.InternList([]Pointer{f, n})
	if err != nil {
		t.Fatalf("InternList: %v", err)
	}
	fun, err := s.InternFun(params, body, NilPointer)
	if err != nil {
		t.Fatalf("InternFun: %v", err)
	}

	env, err := s.EnvExtendRec(NilPointer, f, fun)
	if err != nil {
		t.Fatalf("EnvExtendRec: %v", err)
	}

	got, _, found, err := s.EnvLookup(env, f)
	if err != nil {
		t.Fatalf("EnvLookup: %v", err)
	}
	if !found {
		t.Fatal("recursive binding not found")
	}
	if got.Equal(fun) {
		t.Fatal("recursive lookup returned the original closure, not a re-closed one")
	}

	reclosed, err := s.ResolveFun(got)
	if err != nil {
		t.Fatalf("ResolveFun: %v", err)
	}
	if !reclosed.Params.Equal(params) || !reclosed.Body.Equal(body) {
		t.Error("re-closing changed the function's code")
	}

	// The re-closed environment must resolve f again, to the same
	// re-closed function: lookup through the recursive frame is a
	// fixpoint under hash-consing.
	again, _, found, err := s.EnvLookup(reclosed.Env, f)
	if err != nil {
		t.Fatalf("EnvLookup through re-closed env: %v", err)
	}
	if !found {
		t.Fatal("f unbound in its own re-closed environment")
	}
	if !again.Equal(got) {
		t.Errorf("re-closing is not stable: %s vs %s", again, got)
	}
}

func TestEnvLookupRecursiveNonFunction(t *testing.T) {
	s := newTestStore(t)

	k, err := s.InternSymbol("k")
	if err != nil {
		t.Fatalf("InternSymbol: %v", err)
	}
	env, err := s.EnvExtendRec(NilPointer, k, NumPointer(field.New(9)))
	if err != nil {
		t.Fatalf("EnvExtendRec: %v", err)
	}

	val, _, found, err := s.EnvLookup(env, k)
	if err != nil {
		t.Fatalf("EnvLookup: %v", err)
	}
	if !found || !val.Equal(NumPointer(field.New(9))) {
		t.Errorf("recursive non-function binding = (%s, %t)", val, found)
	}
}

func TestListHelpers(t *testing.T) {
	s := newTestStore(t)

	elems := []Pointer{
		NumPointer(field.New(1)),
		NumPointer(field.New(2)),
		NumPointer(field.New(3)),
	}
	list, err := s.InternList(elems)
	if err != nil {
		t.Fatalf("InternList: %v", err)
	}

	got, err := s.ListToSlice(list, 10)
	if err != nil {
		t.Fatalf("ListToSlice: %v", err)
	}
	if len(got) != len(elems) {
		t.Fatalf("round-trip length = %d, want %d", len(got), len(elems))
	}
	for i := range elems {
		if !got[i].Equal(elems[i]) {
			t.Errorf("element %d = %s, want %s", i, got[i], elems[i])
		}
	}

	n, err := s.ListLength(list)
	if err != nil {
		t.Fatalf("ListLength: %v", err)
	}
	if n != 3 {
		t.Errorf("ListLength = %d, want 3", n)
	}

	if _, err := s.ListToSlice(list, 2); err == nil {
		t.Error("ListToSlice ignored its limit")
	}

	rev, err := s.ReverseList(list)
	if err != nil {
		t.Fatalf("ReverseList: %v", err)
	}
	revElems, err := s.ListToSlice(rev, 10)
	if err != nil {
		t.Fatalf("ListToSlice: %v", err)
	}
	for i := range elems {
		if !revElems[i].Equal(elems[len(elems)-1-i]) {
			t.Errorf("reversed element %d = %s", i, revElems[i])
		}
	}

	// car/cdr of nil are nil.
	car, err := s.Car(NilPointer)
	if err != nil {
		t.Fatalf("Car(nil): %v", err)
	}
	cdr, err := s.Cdr(NilPointer)
	if err != nil {
		t.Fatalf("Cdr(nil): %v", err)
	}
	if !car.IsNil() || !cdr.IsNil() {
		t.Error("car or cdr of nil is not nil")
	}
}
