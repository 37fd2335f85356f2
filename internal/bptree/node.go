// Package bptree implements the "B+tree table" of spec §4.1: an ordered map
// over a caller-supplied comparator, built on top of internal/record's
// blob store, with duplicate-key support via a threshold-switched
// representation (spec §4.1, §4.3, §9).
//
// The tree itself is held in memory as a classic order-N B+tree (internal
// nodes hold separator keys and child pointers, leaves hold keys and value
// sets and are linked for ordered iteration); the whole structure is
// snapshotted to a single blob through internal/record.RecordManager on
// Sync, the same whole-structure-serialize pattern the teacher uses for its
// radix tree cache (internal/storage/radix/cache.go's SaveCache/LoadCache).
// Spec §9 explicitly leaves duplicate-key and node representation to the
// implementer so long as multimap semantics and the duplicate-limit knob
// are preserved; this is the representation chosen here.
package bptree

// Comparator orders keys. Must impose a total order; CompareBytes below is
// the default used when a Table is opened with a nil Comparator.
type Comparator func(a, b []byte) int

// CompareBytes is the default lexicographic byte comparator.
func CompareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Tuning constants for the in-memory node fanout. Unrelated to
// duplicateLimit, which governs the per-key value-set representation.
const (
	order        = 64 // max children per internal node
	leafCapacity = 128 // max distinct keys per leaf
	minLeafKeys  = leafCapacity / 4
	minInternalKeys = (order - 1) / 4
)

// node is a B+tree node. Internal nodes carry len(keys)+1 children; leaves
// carry one valueSet per key and are threaded via next/prev for ordered
// cursor iteration.
type node struct {
	leaf     bool
	keys     [][]byte
	children []*node    // internal only
	values   []*valueSet // leaf only, parallel to keys
	next     *node       // leaf only
	prev     *node       // leaf only
}

func newLeaf() *node {
	return &node{leaf: true}
}

func newInternal() *node {
	return &node{leaf: false}
}

func (n *node) isFull() bool {
	if n.leaf {
		return len(n.keys) >= leafCapacity
	}
	return len(n.keys) >= order-1
}

func (n *node) isUnderflow() bool {
	if n.leaf {
		return len(n.keys) < minLeafKeys
	}
	return len(n.keys) < minInternalKeys
}

// findKeyIndex returns the position key occupies or should be inserted at.
func (n *node) findKeyIndex(key []byte, cmp Comparator) (int, bool) {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		c := cmp(n.keys[mid], key)
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

// childForKey returns the child that should contain key. Internal only.
func (n *node) childForKey(key []byte, cmp Comparator) *node {
	idx, found := n.findKeyIndex(key, cmp)
	if found {
		// A separator is the first key of the child to its right.
		idx++
	}
	if idx < len(n.children) {
		return n.children[idx]
	}
	return n.children[len(n.children)-1]
}

func (n *node) insertLeafAt(idx int, key []byte, vs *valueSet) {
	n.keys = append(n.keys, nil)
	copy(n.keys[idx+1:], n.keys[idx:])
	n.keys[idx] = key

	n.values = append(n.values, nil)
	copy(n.values[idx+1:], n.values[idx:])
	n.values[idx] = vs
}

func (n *node) removeLeafAt(idx int) {
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
	n.values = append(n.values[:idx], n.values[idx+1:]...)
}

// insertInternalAt inserts separator key with its right child.
func (n *node) insertInternalAt(idx int, key []byte, rightChild *node) {
	n.keys = append(n.keys, nil)
	copy(n.keys[idx+1:], n.keys[idx:])
	n.keys[idx] = key

	n.children = append(n.children, nil)
	copy(n.children[idx+2:], n.children[idx+1:])
	n.children[idx+1] = rightChild
}
