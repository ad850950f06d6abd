package vybiumzklisp

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/core"
)

// PathNode is one sibling on a Merkle authentication path.
type PathNode = core.PathNode

// MembershipProof attests that a value was interned in the store whose
// Merkle root it names. The root commits to a snapshot of the whole
// store; anyone holding the root can check the proof without the
// store itself.
type MembershipProof struct {
	Root field.Element
	Leaf field.Element
	Path []PathNode
}

// ProveMembership builds a membership proof for a pointer against the
// current snapshot of the session's store.
func (s *Session) ProveMembership(p Pointer) (*MembershipProof, error) {
	i, ok := s.store.LeafIndex(p)
	if !ok {
		return nil, newError(ErrStoreNotFound, "pointer does not belong to this session", nil)
	}
	idx, err := s.store.BuildIndex()
	if err != nil {
		return nil, newError(ErrUnknown, "failed to index store", err)
	}
	path, err := idx.Path(i)
	if err != nil {
		return nil, newError(ErrUnknown, "failed to build authentication path", err)
	}
	return &MembershipProof{
		Root: idx.Root(),
		Leaf: s.store.LeafDigest(p),
		Path: path,
	}, nil
}

// VerifyMembership checks a membership proof against its own root. It
// needs no session; the hash parameters are fixed for the language.
func VerifyMembership(proof *MembershipProof) (bool, error) {
	if proof == nil {
		return false, newError(ErrProofVerification, "nil membership proof", nil)
	}
	hashers, err := core.NewHasherSet()
	if err != nil {
		return false, newError(ErrUnknown, "failed to initialize hashers", err)
	}
	ok, err := core.VerifyPath(hashers.H4, proof.Root, proof.Leaf, proof.Path)
	if err != nil {
		return false, newError(ErrProofVerification, "malformed membership proof", err)
	}
	return ok, nil
}
