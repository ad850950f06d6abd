// Package core provides the circuit-friendly cryptographic primitives
// shared by the native evaluator and the arithmetization layer: the
// Poseidon permutation used for content addressing and the Merkle index
// used for store membership proofs.
package core

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Poseidon round structure for the 64-bit prime field. The counts are
// shared between the native hasher and the in-circuit gadget; changing
// them invalidates every digest ever produced.
const (
	RoundsFull    = 8
	RoundsPartial = 22
	SboxPower     = 5
)

// Hasher is a fixed-width Poseidon permutation over field.Element.
//
// Content addressing uses one Hasher per arity (see HasherSet). The
// capacity is always a single element, so a Hasher of width t digests
// exactly t-1 input elements. Round constants come from a Grain LFSR
// seeded with the permutation parameters and the MDS matrix is a Cauchy
// matrix, both fully determined by (width, field.P).
type Hasher struct {
	width          int
	roundConstants [][]field.Element
	mds            [][]field.Element
}

// NewHasher creates a Poseidon hasher of the given permutation width.
// Width must be between 2 and 12; content addressing uses widths 5, 7
// and 9 (arities 4, 6 and 8).
func NewHasher(width int) (*Hasher, error) {
	if width < 2 || width > 12 {
		return nil, fmt.Errorf("unsupported poseidon width %d (want 2..12)", width)
	}

	mds, err := cauchyMatrix(width)
	if err != nil {
		return nil, fmt.Errorf("failed to build MDS matrix: %w", err)
	}

	return &Hasher{
		width:          width,
		roundConstants: grainRoundConstants(width),
		mds:            mds,
	}, nil
}

// Width returns the permutation width t.
func (h *Hasher) Width() int {
	return h.width
}

// Arity returns the number of input elements a single call to Sum
// digests (t minus one capacity element).
func (h *Hasher) Arity() int {
	return h.width - 1
}

// RoundConstant returns the additive constant for the given round and
// state position. Exposed for the circuit gadget.
func (h *Hasher) RoundConstant(round, i int) field.Element {
	return h.roundConstants[round][i]
}

// MDS returns the matrix entry at (i, j). Exposed for the circuit gadget.
func (h *Hasher) MDS(i, j int) field.Element {
	return h.mds[i][j]
}

// Sum digests exactly Arity() input elements into one field element.
// The capacity element is initialized with the arity as a domain
// separator so that, for example, a 4-ary and an 8-ary digest of
// zero-padded input can never collide.
func (h *Hasher) Sum(inputs []field.Element) (field.Element, error) {
	if len(inputs) != h.Arity() {
		return field.Zero, fmt.Errorf("poseidon arity mismatch: got %d inputs, want %d", len(inputs), h.Arity())
	}

	state := make([]field.Element, h.width)
	state[0] = field.New(uint64(h.Arity()))
	copy(state[1:], inputs)

	state = h.Permute(state)
	return state[0], nil
}

// Permute applies the full Poseidon permutation to a state of Width()
// elements. The input slice is not modified.
func (h *Hasher) Permute(state []field.Element) []field.Element {
	s := make([]field.Element, len(state))
	copy(s, state)

	round := 0
	for r := 0; r < RoundsFull/2; r++ {
		s = h.fullRound(s, round)
		round++
	}
	for r := 0; r < RoundsPartial; r++ {
		s = h.partialRound(s, round)
		round++
	}
	for r := 0; r < RoundsFull/2; r++ {
		s = h.fullRound(s, round)
		round++
	}

	return s
}

func (h *Hasher) fullRound(state []field.Element, round int) []field.Element {
	for i := range state {
		state[i] = sbox(state[i].Add(h.roundConstants[round][i]))
	}
	return h.applyMDS(state)
}

func (h *Hasher) partialRound(state []field.Element, round int) []field.Element {
	for i := range state {
		state[i] = state[i].Add(h.roundConstants[round][i])
	}
	state[0] = sbox(state[0])
	return h.applyMDS(state)
}

func (h *Hasher) applyMDS(state []field.Element) []field.Element {
	out := make([]field.Element, h.width)
	for i := 0; i < h.width; i++ {
		acc := field.Zero
		for j := 0; j < h.width; j++ {
			acc = acc.Add(state[j].Mul(h.mds[i][j]))
		}
		out[i] = acc
	}
	return out
}

// sbox computes x^5, the S-box for prime fields with gcd(5, p-1) = 1.
func sbox(x field.Element) field.Element {
	x2 := x.Mul(x)
	x4 := x2.Mul(x2)
	return x4.Mul(x)
}

// cauchyMatrix builds the width x width MDS matrix M[i][j] = 1/(x_i + y_j)
// with x_i = i+1 and y_j = width+j+1, so all denominators are distinct
// and non-zero.
func cauchyMatrix(width int) ([][]field.Element, error) {
	m := make([][]field.Element, width)
	for i := 0; i < width; i++ {
		m[i] = make([]field.Element, width)
		for j := 0; j < width; j++ {
			denom := field.New(uint64(i + 1)).Add(field.New(uint64(width + j + 1)))
			if denom.IsZero() {
				return nil, fmt.Errorf("degenerate Cauchy denominator at (%d, %d)", i, j)
			}
			m[i][j] = denom.Inverse()
		}
	}
	return m, nil
}

// grainLFSR is the 80-bit Grain stream used to derive round constants.
// The seeding layout follows the Poseidon reference specification: field
// type, S-box exponent, field size, width and round counts, with the
// tail filled with ones and the first 160 output bits discarded.
type grainLFSR struct {
	state [80]bool
}

func newGrainLFSR(width int) *grainLFSR {
	g := &grainLFSR{}

	g.state[0] = true
	g.state[1] = true
	for i := 0; i < 4; i++ {
		g.state[2+i] = (SboxPower>>i)&1 == 1
	}
	for i := 0; i < 12; i++ {
		g.state[6+i] = (64>>i)&1 == 1
	}
	for i := 0; i < 12; i++ {
		g.state[18+i] = (width>>i)&1 == 1
	}
	for i := 0; i < 10; i++ {
		g.state[30+i] = (RoundsFull>>i)&1 == 1
	}
	for i := 0; i < 10; i++ {
		g.state[40+i] = (RoundsPartial>>i)&1 == 1
	}
	for i := 50; i < 80; i++ {
		g.state[i] = true
	}

	for i := 0; i < 160; i++ {
		g.update()
	}
	return g
}

func (g *grainLFSR) update() bool {
	bit := g.state[62] != g.state[51] != g.state[38] != g.state[23] != g.state[13] != g.state[0]
	copy(g.state[:79], g.state[1:])
	g.state[79] = bit
	return bit
}

// sampleBit implements rejection sampling in bit pairs: a pair starting
// with 1 yields its second bit, a pair starting with 0 is discarded.
func (g *grainLFSR) sampleBit() bool {
	for {
		bit1 := g.state[0]
		g.update()
		bit2 := g.state[0]
		g.update()
		if bit1 {
			return bit2
		}
	}
}

// nextElement samples 64 bits and reduces them into the field.
func (g *grainLFSR) nextElement() field.Element {
	var v uint64
	for i := 0; i < 64; i++ {
		if g.sampleBit() {
			v |= 1 << i
		}
	}
	return field.New(v % field.P)
}

func grainRoundConstants(width int) [][]field.Element {
	g := newGrainLFSR(width)
	total := RoundsFull + RoundsPartial
	constants := make([][]field.Element, total)
	for round := 0; round < total; round++ {
		constants[round] = make([]field.Element, width)
		for i := 0; i < width; i++ {
			constants[round][i] = g.nextElement()
		}
	}
	return constants
}

// HasherSet bundles the fixed content-addressing arities. Every store
// object is digested with exactly one of these, selected by its shape:
// pairs and small payloads use arity 4, functions and evaluation states
// arity 6, continuation frames arity 8.
type HasherSet struct {
	H4 *Hasher
	H6 *Hasher
	H8 *Hasher
}

// NewHasherSet constructs the three fixed-arity hashers.
func NewHasherSet() (*HasherSet, error) {
	h4, err := NewHasher(5)
	if err != nil {
		return nil, err
	}
	h6, err := NewHasher(7)
	if err != nil {
		return nil, err
	}
	h8, err := NewHasher(9)
	if err != nil {
		return nil, err
	}
	return &HasherSet{H4: h4, H6: h6, H8: h8}, nil
}

// ByArity returns the hasher for the given arity, or an error for an
// arity outside the fixed set.
func (hs *HasherSet) ByArity(arity int) (*Hasher, error) {
	switch arity {
	case 4:
		return hs.H4, nil
	case 6:
		return hs.H6, nil
	case 8:
		return hs.H8, nil
	default:
		return nil, fmt.Errorf("no hasher for arity %d (fixed arities are 4, 6, 8)", arity)
	}
}

// HashString folds a string into a single digest by chaining arity-4
// compressions: the accumulator starts at H4(len, 0, 0, 0) and absorbs
// one code point per compression. The result depends only on the string
// content, never on interning order.
func (hs *HasherSet) HashString(s string) (field.Element, error) {
	runes := []rune(s)
	acc, err := hs.H4.Sum([]field.Element{field.New(uint64(len(runes))), field.Zero, field.Zero, field.Zero})
	if err != nil {
		return field.Zero, err
	}
	for _, r := range runes {
		acc, err = hs.H4.Sum([]field.Element{acc, field.New(uint64(r)), field.Zero, field.Zero})
		if err != nil {
			return field.Zero, err
		}
	}
	return acc, nil
}
