package core

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// MerkleIndex is a Poseidon Merkle tree over single-element digests.
// The store builds one over its interned objects so that the circuit
// can prove membership of every resolved object against a single root.
//
// Inner nodes are H4(left, right, 0, 0); the leaf layer is used as-is
// (leaves are already Poseidon digests). Leaf count is padded to the
// next power of two with zero digests.
type MerkleIndex struct {
	hasher *Hasher
	levels [][]field.Element
}

// PathNode is one sibling on a Merkle authentication path.
type PathNode struct {
	Sibling field.Element
	// Right is true when the sibling sits to the right of the path.
	Right bool
}

// NewMerkleIndex builds the tree over the given leaves.
func NewMerkleIndex(hasher *Hasher, leaves []field.Element) (*MerkleIndex, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cannot build Merkle index over zero leaves")
	}

	padded := make([]field.Element, nextPow2(len(leaves)))
	copy(padded, leaves)
	for i := len(leaves); i < len(padded); i++ {
		padded[i] = field.Zero
	}

	levels := [][]field.Element{padded}
	current := padded
	for len(current) > 1 {
		next := make([]field.Element, len(current)/2)
		for i := 0; i < len(next); i++ {
			parent, err := hasher.Sum([]field.Element{current[2*i], current[2*i+1], field.Zero, field.Zero})
			if err != nil {
				return nil, fmt.Errorf("failed to hash Merkle level: %w", err)
			}
			next[i] = parent
		}
		levels = append(levels, next)
		current = next
	}

	return &MerkleIndex{hasher: hasher, levels: levels}, nil
}

// Root returns the Merkle root.
func (m *MerkleIndex) Root() field.Element {
	top := m.levels[len(m.levels)-1]
	return top[0]
}

// Depth returns the number of path nodes in every authentication path.
func (m *MerkleIndex) Depth() int {
	return len(m.levels) - 1
}

// LeafCount returns the padded leaf count.
func (m *MerkleIndex) LeafCount() int {
	return len(m.levels[0])
}

// Path returns the authentication path for the leaf at index i.
func (m *MerkleIndex) Path(i int) ([]PathNode, error) {
	if i < 0 || i >= len(m.levels[0]) {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", i, len(m.levels[0]))
	}

	path := make([]PathNode, 0, m.Depth())
	idx := i
	for level := 0; level < len(m.levels)-1; level++ {
		if idx%2 == 0 {
			path = append(path, PathNode{Sibling: m.levels[level][idx+1], Right: true})
		} else {
			path = append(path, PathNode{Sibling: m.levels[level][idx-1], Right: false})
		}
		idx /= 2
	}
	return path, nil
}

// VerifyPath recomputes the root from a leaf and its authentication
// path and compares it to the expected root.
func VerifyPath(hasher *Hasher, root, leaf field.Element, path []PathNode) (bool, error) {
	acc := leaf
	for _, node := range path {
		var inputs []field.Element
		if node.Right {
			inputs = []field.Element{acc, node.Sibling, field.Zero, field.Zero}
		} else {
			inputs = []field.Element{node.Sibling, acc, field.Zero, field.Zero}
		}
		parent, err := hasher.Sum(inputs)
		if err != nil {
			return false, err
		}
		acc = parent
	}
	return acc.Equal(root), nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
