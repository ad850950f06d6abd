package prove

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Claim is the public statement a proof attests to: evaluation started
// at the triple with InitialDigest, took Steps deterministic
// transitions, and ended at the triple with FinalDigest.
type Claim struct {
	InitialDigest field.Element
	FinalDigest   field.Element
	Steps         int
}

func (c Claim) String() string {
	return fmt.Sprintf("claim{%s -> %s in %d steps}", c.InitialDigest, c.FinalDigest, c.Steps)
}

// bind mixes the claim into a transcript.
func (c Claim) bind(t *Transcript) {
	t.Absorb("claim", c.InitialDigest, c.FinalDigest)
	t.AbsorbInt("steps", c.Steps)
}

// Proof carries everything the verifier needs beyond the claim: the
// per-step state digest chain, the per-step instance assignments, and
// the folded accumulator. The verifier re-derives every folding
// challenge from the chain and the instance commitments, re-folds the
// step assignments itself, and accepts only if its own accumulator
// matches the one in the proof, so a forged accumulator cannot stand
// in for the steps it claims to cover.
type Proof struct {
	Claim Claim

	// StepDigests is the state digest chain d_0..d_N, where d_i is
	// the digest of the triple before step i.
	StepDigests []field.Element

	// StepZ holds the satisfying assignment of every step instance,
	// public inputs pinned to consecutive chain digests.
	StepZ [][]field.Element

	// AccZ and AccE are the folded relaxed assignment and error
	// vector over the fixed step-circuit shape.
	AccZ []field.Element
	AccE []field.Element
}

// proofWire is the serialized layout. Field elements travel as their
// canonical uint64 values.
type proofWire struct {
	Version       uint32     `msgpack:"version"`
	InitialDigest uint64     `msgpack:"initial"`
	FinalDigest   uint64     `msgpack:"final"`
	Steps         int        `msgpack:"steps"`
	StepDigests   []uint64   `msgpack:"chain"`
	StepZ         [][]uint64 `msgpack:"step_z"`
	AccZ          []uint64   `msgpack:"acc_z"`
	AccE          []uint64   `msgpack:"acc_e"`
}

const proofWireVersion = 2

// MarshalBinary encodes the proof for storage or transport.
func (p *Proof) MarshalBinary() ([]byte, error) {
	w := proofWire{
		Version:       proofWireVersion,
		InitialDigest: p.Claim.InitialDigest.Value(),
		FinalDigest:   p.Claim.FinalDigest.Value(),
		Steps:         p.Claim.Steps,
		StepDigests:   elementsToWire(p.StepDigests),
		StepZ:         make([][]uint64, len(p.StepZ)),
		AccZ:          elementsToWire(p.AccZ),
		AccE:          elementsToWire(p.AccE),
	}
	for i, z := range p.StepZ {
		w.StepZ[i] = elementsToWire(z)
	}
	data, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof: %w", err)
	}
	return data, nil
}

// UnmarshalBinary decodes a proof produced by MarshalBinary.
func (p *Proof) UnmarshalBinary(data []byte) error {
	var w proofWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to decode proof: %w", err)
	}
	if w.Version != proofWireVersion {
		return fmt.Errorf("unsupported proof version %d", w.Version)
	}
	p.Claim = Claim{
		InitialDigest: field.New(w.InitialDigest),
		FinalDigest:   field.New(w.FinalDigest),
		Steps:         w.Steps,
	}
	p.StepDigests = elementsFromWire(w.StepDigests)
	p.StepZ = make([][]field.Element, len(w.StepZ))
	for i, z := range w.StepZ {
		p.StepZ[i] = elementsFromWire(z)
	}
	p.AccZ = elementsFromWire(w.AccZ)
	p.AccE = elementsFromWire(w.AccE)
	return nil
}

func elementsToWire(elems []field.Element) []uint64 {
	out := make([]uint64, len(elems))
	for i, e := range elems {
		out[i] = e.Value()
	}
	return out
}

func elementsFromWire(vals []uint64) []field.Element {
	out := make([]field.Element, len(vals))
	for i, v := range vals {
		out[i] = field.New(v)
	}
	return out
}
