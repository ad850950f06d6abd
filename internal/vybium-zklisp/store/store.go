package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/core"
)

// ErrNotFound is returned when a pointer is resolved against a store
// that never interned it. This indicates cross-store misuse or a bug in
// the caller, never a recoverable evaluation condition.
var ErrNotFound = errors.New("pointer not found in store")

// Store is the process-scoped hash-consing service. Interning is the
// only mutation; it is idempotent and safe under concurrency, and a
// digest is never rebound to different content. Resolution is a pure
// read and safe for any number of concurrent readers.
type Store struct {
	hashers *core.HasherSet

	mu        sync.RWMutex
	conses    map[field.Element]Cons
	funs      map[field.Element]Fun
	thunks    map[field.Element]Thunk
	sentinels map[field.Element]Sentinel
	conts     map[field.Element]ContFrame
	symbols   map[field.Element]string
	strings   map[field.Element]string

	// leaves is the append-only Merkle leaf sequence, one leaf per
	// distinct interned object, in interning order.
	leaves  []field.Element
	leafPos map[Pointer]int
}

// NewStore creates an empty store with the fixed hash arity set.
func NewStore() (*Store, error) {
	hashers, err := core.NewHasherSet()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hashers: %w", err)
	}
	return &Store{
		hashers:   hashers,
		conses:    make(map[field.Element]Cons),
		funs:      make(map[field.Element]Fun),
		thunks:    make(map[field.Element]Thunk),
		sentinels: make(map[field.Element]Sentinel),
		conts:     make(map[field.Element]ContFrame),
		symbols:   make(map[field.Element]string),
		strings:   make(map[field.Element]string),
		leafPos:   make(map[Pointer]int),
	}, nil
}

// Hashers exposes the content-addressing hashers so the circuit can
// build gadgets with identical parameters.
func (s *Store) Hashers() *core.HasherSet {
	return s.hashers
}

// Count returns the number of distinct interned objects.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leaves)
}

// record inserts content for ptr unless the digest is already bound.
// Must be called with the write lock held. The insert callback stores
// the object in its tag partition.
func (s *Store) record(ptr Pointer, exists bool, insert func()) {
	if exists {
		return
	}
	insert()
	leaf := s.leafDigestLocked(ptr)
	s.leafPos[ptr] = len(s.leaves)
	s.leaves = append(s.leaves, leaf)
}

func (s *Store) leafDigestLocked(p Pointer) field.Element {
	// Leaf hashing cannot fail: the arity is fixed at 4.
	leaf, err := s.hashers.H4.Sum([]field.Element{p.Tag.Field(), p.Digest, field.Zero, field.Zero})
	if err != nil {
		panic(fmt.Sprintf("leaf digest: %v", err))
	}
	return leaf
}

// LeafDigest returns the Merkle leaf for a pointer, H4(tag, digest, 0, 0).
func (s *Store) LeafDigest(p Pointer) field.Element {
	return s.leafDigestLocked(p)
}

// InternCons interns a pair and returns its canonical pointer.
func (s *Store) InternCons(car, cdr Pointer) (Pointer, error) {
	cf, df := car.Fields(), cdr.Fields()
	digest, err := s.hashers.H4.Sum([]field.Element{cf[0], cf[1], df[0], df[1]})
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to hash cons: %w", err)
	}
	ptr := Pointer{Tag: TagCons, Digest: digest}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.conses[digest]
	s.record(ptr, exists, func() { s.conses[digest] = Cons{Car: car, Cdr: cdr} })
	return ptr, nil
}

// InternFun interns a closure.
func (s *Store) InternFun(params, body, env Pointer) (Pointer, error) {
	pf, bf, ef := params.Fields(), body.Fields(), env.Fields()
	digest, err := s.hashers.H6.Sum([]field.Element{pf[0], pf[1], bf[0], bf[1], ef[0], ef[1]})
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to hash fun: %w", err)
	}
	ptr := Pointer{Tag: TagFun, Digest: digest}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.funs[digest]
	s.record(ptr, exists, func() { s.funs[digest] = Fun{Params: params, Body: body, Env: env} })
	return ptr, nil
}

// InternThunk interns a suspended return.
func (s *Store) InternThunk(value, cont Pointer) (Pointer, error) {
	vf, kf := value.Fields(), cont.Fields()
	digest, err := s.hashers.H4.Sum([]field.Element{vf[0], vf[1], kf[0], kf[1]})
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to hash thunk: %w", err)
	}
	ptr := Pointer{Tag: TagThunk, Digest: digest}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.thunks[digest]
	s.record(ptr, exists, func() { s.thunks[digest] = Thunk{Value: value, Cont: cont} })
	return ptr, nil
}

// InternSentinel interns an in-band error value.
func (s *Store) InternSentinel(code SentinelCode) (Pointer, error) {
	digest, err := s.hashers.H4.Sum([]field.Element{field.New(uint64(code)), field.Zero, field.Zero, field.Zero})
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to hash sentinel: %w", err)
	}
	ptr := Pointer{Tag: TagErr, Digest: digest}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.sentinels[digest]
	s.record(ptr, exists, func() { s.sentinels[digest] = Sentinel{Code: code} })
	return ptr, nil
}

// InternSymbol interns a symbol by name.
func (s *Store) InternSymbol(name string) (Pointer, error) {
	digest, err := s.hashers.HashString(name)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to hash symbol %q: %w", name, err)
	}
	ptr := Pointer{Tag: TagSym, Digest: digest}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.symbols[digest]
	s.record(ptr, exists, func() { s.symbols[digest] = name })
	return ptr, nil
}

// InternString interns a string value.
func (s *Store) InternString(value string) (Pointer, error) {
	digest, err := s.hashers.HashString(value)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to hash string: %w", err)
	}
	ptr := Pointer{Tag: TagStr, Digest: digest}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.strings[digest]
	s.record(ptr, exists, func() { s.strings[digest] = value })
	return ptr, nil
}

// InternCont interns a continuation frame. The tag must be one of the
// continuation tags; unused slots should be NilPointer.
func (s *Store) InternCont(tag Tag, slots [4]Pointer) (Pointer, error) {
	if !tag.IsContTag() {
		return Pointer{}, fmt.Errorf("tag %s is not a continuation tag", tag)
	}

	preimage := make([]field.Element, 0, 8)
	for _, slot := range slots {
		f := slot.Fields()
		preimage = append(preimage, f[0], f[1])
	}
	digest, err := s.hashers.H8.Sum(preimage)
	if err != nil {
		return Pointer{}, fmt.Errorf("failed to hash continuation: %w", err)
	}
	ptr := Pointer{Tag: tag, Digest: digest}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.conts[digest]
	s.record(ptr, exists, func() { s.conts[digest] = ContFrame{Tag: tag, Slots: slots} })
	return ptr, nil
}

// ResolveCons resolves a pair pointer.
func (s *Store) ResolveCons(p Pointer) (Cons, error) {
	if p.Tag != TagCons {
		return Cons{}, fmt.Errorf("resolve cons: pointer has tag %s", p.Tag)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conses[p.Digest]
	if !ok {
		return Cons{}, fmt.Errorf("resolve cons %s: %w", p, ErrNotFound)
	}
	return c, nil
}

// ResolveFun resolves a closure pointer.
func (s *Store) ResolveFun(p Pointer) (Fun, error) {
	if p.Tag != TagFun {
		return Fun{}, fmt.Errorf("resolve fun: pointer has tag %s", p.Tag)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.funs[p.Digest]
	if !ok {
		return Fun{}, fmt.Errorf("resolve fun %s: %w", p, ErrNotFound)
	}
	return f, nil
}

// ResolveThunk resolves a thunk pointer.
func (s *Store) ResolveThunk(p Pointer) (Thunk, error) {
	if p.Tag != TagThunk {
		return Thunk{}, fmt.Errorf("resolve thunk: pointer has tag %s", p.Tag)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.thunks[p.Digest]
	if !ok {
		return Thunk{}, fmt.Errorf("resolve thunk %s: %w", p, ErrNotFound)
	}
	return t, nil
}

// ResolveSentinel resolves an error-sentinel pointer.
func (s *Store) ResolveSentinel(p Pointer) (Sentinel, error) {
	if p.Tag != TagErr {
		return Sentinel{}, fmt.Errorf("resolve sentinel: pointer has tag %s", p.Tag)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sentinels[p.Digest]
	if !ok {
		return Sentinel{}, fmt.Errorf("resolve sentinel %s: %w", p, ErrNotFound)
	}
	return e, nil
}

// ResolveSymbol resolves a symbol pointer to its name.
func (s *Store) ResolveSymbol(p Pointer) (string, error) {
	if p.Tag != TagSym {
		return "", fmt.Errorf("resolve symbol: pointer has tag %s", p.Tag)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.symbols[p.Digest]
	if !ok {
		return "", fmt.Errorf("resolve symbol %s: %w", p, ErrNotFound)
	}
	return name, nil
}

// ResolveString resolves a string pointer.
func (s *Store) ResolveString(p Pointer) (string, error) {
	if p.Tag != TagStr {
		return "", fmt.Errorf("resolve string: pointer has tag %s", p.Tag)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.strings[p.Digest]
	if !ok {
		return "", fmt.Errorf("resolve string %s: %w", p, ErrNotFound)
	}
	return v, nil
}

// ResolveCont resolves a continuation frame pointer.
func (s *Store) ResolveCont(p Pointer) (ContFrame, error) {
	if !p.Tag.IsContTag() {
		return ContFrame{}, fmt.Errorf("resolve cont: pointer has tag %s", p.Tag)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.conts[p.Digest]
	if !ok {
		return ContFrame{}, fmt.Errorf("resolve cont %s: %w", p, ErrNotFound)
	}
	return k, nil
}

// HashState digests an evaluation triple. This is the value that
// appears as a public input of the step circuit.
func (s *Store) HashState(st State) (field.Element, error) {
	ef, vf, kf := st.Expr.Fields(), st.Env.Fields(), st.Cont.Fields()
	digest, err := s.hashers.H6.Sum([]field.Element{ef[0], ef[1], vf[0], vf[1], kf[0], kf[1]})
	if err != nil {
		return field.Zero, fmt.Errorf("failed to hash state: %w", err)
	}
	return digest, nil
}

// BuildIndex snapshots the current leaf sequence into a Merkle index.
// The store may keep growing afterwards; proofs are generated against
// the index built once the trace is complete, by which point every
// object any step touched has been interned.
func (s *Store) BuildIndex() (*core.MerkleIndex, error) {
	s.mu.RLock()
	leaves := make([]field.Element, len(s.leaves))
	copy(leaves, s.leaves)
	s.mu.RUnlock()

	if len(leaves) == 0 {
		// An index over an empty store still needs one leaf.
		leaves = []field.Element{field.Zero}
	}

	idx, err := core.NewMerkleIndex(s.hashers.H4, leaves)
	if err != nil {
		return nil, fmt.Errorf("failed to build store index: %w", err)
	}
	return idx, nil
}

// LeafIndex returns the Merkle leaf position of an interned pointer.
func (s *Store) LeafIndex(p Pointer) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.leafPos[p]
	return i, ok
}
