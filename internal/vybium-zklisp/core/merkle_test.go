package core

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func buildTestIndex(t *testing.T, n int) (*Hasher, *MerkleIndex, []field.Element) {
	t.Helper()
	h, err := NewHasher(5)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	leaves := make([]field.Element, n)
	for i := range leaves {
		leaves[i] = field.New(uint64(1000 + i))
	}
	idx, err := NewMerkleIndex(h, leaves)
	if err != nil {
		t.Fatalf("NewMerkleIndex: %v", err)
	}
	return h, idx, leaves
}

func TestMerklePathsVerify(t *testing.T) {
	h, idx, leaves := buildTestIndex(t, 11)

	for i, leaf := range leaves {
		path, err := idx.Path(i)
		if err != nil {
			t.Fatalf("Path(%d): %v", i, err)
		}
		ok, err := VerifyPath(h, idx.Root(), leaf, path)
		if err != nil {
			t.Fatalf("VerifyPath(%d): %v", i, err)
		}
		if !ok {
			t.Errorf("valid path for leaf %d rejected", i)
		}
	}
}

func TestMerkleRejectsWrongLeaf(t *testing.T) {
	h, idx, leaves := buildTestIndex(t, 8)

	path, err := idx.Path(3)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	ok, err := VerifyPath(h, idx.Root(), leaves[4], path)
	if err != nil {
		t.Fatalf("VerifyPath: %v", err)
	}
	if ok {
		t.Error("path for leaf 3 verified against leaf 4")
	}
}

func TestMerkleRejectsTamperedPath(t *testing.T) {
	h, idx, leaves := buildTestIndex(t, 8)

	path, err := idx.Path(0)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	path[1].Sibling = path[1].Sibling.Add(field.One)
	ok, err := VerifyPath(h, idx.Root(), leaves[0], path)
	if err != nil {
		t.Fatalf("VerifyPath: %v", err)
	}
	if ok {
		t.Error("tampered path verified")
	}
}

func TestMerklePadsToPowerOfTwo(t *testing.T) {
	_, idx, _ := buildTestIndex(t, 5)
	if idx.LeafCount() != 8 {
		t.Errorf("LeafCount() = %d, want 8", idx.LeafCount())
	}
	if idx.Depth() != 3 {
		t.Errorf("Depth() = %d, want 3", idx.Depth())
	}
}

func TestMerkleEmptyLeaves(t *testing.T) {
	h, err := NewHasher(5)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if _, err := NewMerkleIndex(h, nil); err == nil {
		t.Error("NewMerkleIndex with no leaves succeeded, want error")
	}
}
