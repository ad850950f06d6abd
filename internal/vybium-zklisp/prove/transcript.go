// Package prove orchestrates proofs of evaluation: it drives the
// evaluator, arithmetizes every transition, folds the per-step
// instances into one accumulated claim, and checks such claims without
// re-running any evaluation step.
package prove

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Transcript is a Fiat-Shamir channel. Both sides absorb the same
// public data in the same order, so the challenges the prover folded
// with are exactly the ones the verifier re-derives.
type Transcript struct {
	state []byte
}

// NewTranscript starts a transcript under a domain-separation label.
func NewTranscript(label string) *Transcript {
	t := &Transcript{state: []byte{0}}
	t.absorbBytes([]byte(label))
	return t
}

// Absorb mixes labeled field elements into the transcript state.
func (t *Transcript) Absorb(label string, elems ...field.Element) {
	t.absorbBytes([]byte(label))
	buf := make([]byte, 8)
	for _, e := range elems {
		binary.LittleEndian.PutUint64(buf, e.Value())
		t.absorbBytes(buf)
	}
}

// AbsorbInt mixes a labeled integer into the transcript state.
func (t *Transcript) AbsorbInt(label string, v int) {
	t.absorbBytes([]byte(label))
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	t.absorbBytes(buf)
}

// AbsorbBytes mixes a labeled opaque byte string into the transcript
// state.
func (t *Transcript) AbsorbBytes(label string, data []byte) {
	t.absorbBytes([]byte(label))
	t.absorbBytes(data)
}

// Challenge squeezes a labeled field element out of the current state.
func (t *Transcript) Challenge(label string) field.Element {
	t.absorbBytes([]byte(label))
	h := sha3.Sum256(t.state)
	t.state = h[:]
	return field.New(binary.LittleEndian.Uint64(h[:8]) % field.P)
}

func (t *Transcript) absorbBytes(data []byte) {
	h := sha3.Sum256(append(t.state, data...))
	t.state = h[:]
}

// commitAssignment hashes a full step assignment down to one
// absorbable commitment, so every folding challenge depends on the
// exact instances under it.
func commitAssignment(z []field.Element) []byte {
	buf := make([]byte, 8*len(z))
	for i, e := range z {
		binary.LittleEndian.PutUint64(buf[8*i:], e.Value())
	}
	h := sha3.Sum256(buf)
	return h[:]
}
