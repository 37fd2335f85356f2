package bptree

import (
	"sync"

	"tlog.app/go/errors"
)

// Table is the ordered multimap `key -> {id}` described by spec §4.1/§4.3:
// the B+tree table that both the master table and every index (forward and
// reverse) are built from.
type Table struct {
	mu             sync.RWMutex
	cmp            Comparator
	duplicateLimit int
	root           *node
	count          int // total (key,id) pairs
}

// DefaultDuplicateLimit matches spec §6's stated default for user indices.
const DefaultDuplicateLimit = 512

// NewTable creates an empty table. A nil comparator defaults to
// lexicographic byte order; duplicateLimit <= 0 defaults to
// DefaultDuplicateLimit.
func NewTable(cmp Comparator, duplicateLimit int) *Table {
	if cmp == nil {
		cmp = CompareBytes
	}
	if duplicateLimit <= 0 {
		duplicateLimit = DefaultDuplicateLimit
	}
	root := newLeaf()
	return &Table{cmp: cmp, duplicateLimit: duplicateLimit, root: root}
}

// ErrEmptyKey is returned by any operation given a zero-length key.
var ErrEmptyKey = errors.New("bptree: empty key")

// Add inserts (key, id), returning false if the pair already existed
// (idempotent, per spec §4.3 "add(key, id) ... idempotent for the same
// (key, id) pair").
func (t *Table) Add(key []byte, id uint64) (bool, error) {
	if len(key) == 0 {
		return false, ErrEmptyKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(key, t.cmp)
	if found {
		added := leaf.values[idx].add(id, t.duplicateLimit)
		if added {
			t.count++
		}
		return added, nil
	}

	leaf.insertLeafAt(idx, cloneKey(key), newValueSet(id))
	t.count++

	if leaf.isFull() {
		t.splitLeaf(leaf)
	}
	return true, nil
}

// Remove deletes (key, id). Returns false if the pair was not present.
func (t *Table) Remove(key []byte, id uint64) (bool, error) {
	if len(key) == 0 {
		return false, ErrEmptyKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(key, t.cmp)
	if !found {
		return false, nil
	}
	removed := leaf.values[idx].remove(id, t.duplicateLimit)
	if !removed {
		return false, nil
	}
	t.count--
	if leaf.values[idx].count() == 0 {
		leaf.removeLeafAt(idx)
	}
	return true, nil
}

// RemoveKey deletes every id associated with key. Used by Index.Drop(id) on
// the reverse table and by the coordinator's per-attribute index cleanup.
func (t *Table) RemoveKey(key []byte) (int, error) {
	if len(key) == 0 {
		return 0, ErrEmptyKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(key, t.cmp)
	if !found {
		return 0, nil
	}
	n := leaf.values[idx].count()
	leaf.removeLeafAt(idx)
	t.count -= n
	return n, nil
}

// Has reports whether (key, id) is present.
func (t *Table) Has(key []byte, id uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(key, t.cmp)
	if !found {
		return false
	}
	return leaf.values[idx].has(id)
}

// Least returns the smallest id stored for key (spec §4.3
// "forwardLookup(key) -> id | null (returns one; for multimap, the
// least)").
func (t *Table) Least(key []byte) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(key, t.cmp)
	if !found {
		return 0, false
	}
	return leaf.values[idx].least()
}

// All returns every id stored for key, in ascending order.
func (t *Table) All(key []byte) []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(key, t.cmp)
	if !found {
		return nil
	}
	return leaf.values[idx].all()
}

// KeyCount returns the number of ids stored for key.
func (t *Table) KeyCount(key []byte) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(key, t.cmp)
	if !found {
		return 0
	}
	return leaf.values[idx].count()
}

// Count returns the total number of (key, id) pairs in the table.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// findLeaf descends from root to the leaf that should contain key.
func (t *Table) findLeaf(key []byte) *node {
	n := t.root
	for !n.leaf {
		n = n.childForKey(key, t.cmp)
	}
	return n
}

// splitLeaf splits an overfull leaf, promoting the new leaf's first key.
func (t *Table) splitLeaf(leaf *node) {
	mid := (len(leaf.keys) + 1) / 2

	right := newLeaf()
	right.keys = append([][]byte{}, leaf.keys[mid:]...)
	right.values = append([]*valueSet{}, leaf.values[mid:]...)
	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]

	right.next = leaf.next
	right.prev = leaf
	if leaf.next != nil {
		leaf.next.prev = right
	}
	leaf.next = right

	promoted := right.keys[0]
	t.insertIntoParent(leaf, promoted, right)
}

// insertIntoParent walks up from child (whose separator key promotedKey now
// needs a home) inserting into the owning internal node, splitting that in
// turn if needed. Since nodes here are plain pointers rather than a
// root-to-leaf path captured up front, the parent is found by re-descending
// from the root guided by the same key that routed to child originally.
func (t *Table) insertIntoParent(left *node, key []byte, right *node) {
	path := t.pathTo(key, left)
	if len(path) == 0 {
		newRoot := newInternal()
		newRoot.keys = [][]byte{key}
		newRoot.children = []*node{left, right}
		t.root = newRoot
		return
	}

	parent := path[len(path)-1]
	idx, _ := parent.findKeyIndex(key, t.cmp)
	parent.insertInternalAt(idx, key, right)

	if parent.isFull() {
		t.splitInternal(path)
	}
}

// splitInternal splits a full internal node, propagating the middle key.
func (t *Table) splitInternal(path []*node) {
	n := path[len(path)-1]
	mid := len(n.keys) / 2
	promoted := n.keys[mid]

	right := newInternal()
	right.keys = append([][]byte{}, n.keys[mid+1:]...)
	right.children = append([]*node{}, n.children[mid+1:]...)

	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]

	if len(path) == 1 {
		newRoot := newInternal()
		newRoot.keys = [][]byte{promoted}
		newRoot.children = []*node{n, right}
		t.root = newRoot
		return
	}

	grandParent := path[len(path)-2]
	idx, _ := grandParent.findKeyIndex(promoted, t.cmp)
	grandParent.insertInternalAt(idx, promoted, right)
	if grandParent.isFull() {
		t.splitInternal(path[:len(path)-1])
	}
}

// pathTo descends from root to the internal node whose children slice
// currently contains target, using key to guide the descent (target was
// reached from root using key before the split that is calling this).
func (t *Table) pathTo(key []byte, target *node) []*node {
	if t.root == target {
		return nil
	}
	var path []*node
	n := t.root
	for {
		path = append(path, n)
		next := n.childForKey(key, t.cmp)
		if next == target {
			return path
		}
		n = next
	}
}

func cloneKey(key []byte) []byte {
	out := make([]byte, len(key))
	copy(out, key)
	return out
}

// firstLeaf returns the leftmost leaf, for full-table iteration.
func (t *Table) firstLeaf() *node {
	n := t.root
	for !n.leaf {
		if len(n.children) == 0 {
			return nil
		}
		n = n.children[0]
	}
	return n
}
