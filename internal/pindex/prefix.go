package pindex

import (
	"sync"

	art "github.com/plar/go-adaptive-radix-tree"
)

// PrefixTree accelerates the subtree-scoped operations spec §4.4 needs
// (listing every entry of a subtree, finding every alias nested under a
// moved entry) with an adaptive radix tree keyed on normalized DN
// bytes, instead of falling back to a full index walk for every prefix
// query. It holds no authoritative state: every entry also lives in the
// ndn/alias Index it mirrors, and the tree is rebuilt from there on
// Store.load, so it is never itself persisted.
type PrefixTree struct {
	mu   sync.RWMutex
	tree art.Tree
}

// NewPrefixTree returns an empty PrefixTree.
func NewPrefixTree() *PrefixTree {
	return &PrefixTree{tree: art.New()}
}

// Insert records that normDN maps to id.
func (p *PrefixTree) Insert(normDN []byte, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tree.Insert(normDN, id)
}

// Delete removes normDN from the tree.
func (p *PrefixTree) Delete(normDN []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tree.Delete(normDN)
}

// WithPrefix returns the ids of every entry whose normalized DN starts
// with prefix, in key order. Used for "every alias/descendant under this
// DN" queries, which a bptree.Table forward walk would otherwise have to
// answer by scanning past every key lexically >= prefix looking for a
// mismatch.
func (p *PrefixTree) WithPrefix(prefix []byte) []uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ids []uint64
	p.tree.ForEachPrefix(art.Key(prefix), func(node art.Node) bool {
		if node.Kind() != art.Leaf {
			return true
		}
		ids = append(ids, node.Value().(uint64))
		return true
	})
	return ids
}

// Size returns the number of entries in the tree.
func (p *PrefixTree) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree.Size()
}

// RebuildFromIndex builds a new tree from every (key, id) pair an Index
// currently holds, inserting each key exactly as the Index stores it (no
// DN reversal). Store.load does not call it; it rebuilds its trees with
// its own helpers.
func RebuildFromIndex(idx *Index) *PrefixTree {
	p := NewPrefixTree()
	c := idx.Cursor()
	for ok := c.First(); ok; ok = c.Next() {
		p.tree.Insert(art.Key(c.Key()), c.ID())
	}
	return p
}
