package bptree

// Cursor provides forward iteration over a Table's (key, id) pairs in
// ascending key order through Seek, First and Next; it has no backward
// step. Because values are multimaps, a cursor position is (leaf,
// keyIndex, valueIndex) and Next walks the ids within a key before moving
// to the next key. Close may be called at any point.
type Cursor struct {
	t        *Table
	leaf     *node
	keyIdx   int
	valueIdx int
	ids      []uint64
	valid    bool
}

// NewCursor returns a cursor positioned before the first entry.
func (t *Table) NewCursor() *Cursor {
	return &Cursor{t: t}
}

// Seek positions the cursor at the first (key, id) pair with key >= target.
func (c *Cursor) Seek(target []byte) bool {
	c.t.mu.RLock()
	defer c.t.mu.RUnlock()

	n := c.t.root
	for !n.leaf {
		n = n.childForKey(target, c.t.cmp)
	}
	idx, _ := n.findKeyIndex(target, c.t.cmp)
	for idx >= len(n.keys) {
		if n.next == nil {
			c.valid = false
			return false
		}
		n = n.next
		idx = 0
	}
	c.leaf = n
	c.keyIdx = idx
	c.ids = n.values[idx].all()
	c.valueIdx = 0
	c.valid = len(c.ids) > 0
	return c.valid
}

// First positions the cursor at the smallest (key, id) pair.
func (c *Cursor) First() bool {
	c.t.mu.RLock()
	leaf := c.t.firstLeaf()
	c.t.mu.RUnlock()
	for leaf != nil {
		if len(leaf.keys) > 0 {
			c.leaf = leaf
			c.keyIdx = 0
			c.ids = leaf.values[0].all()
			c.valueIdx = 0
			c.valid = len(c.ids) > 0
			if c.valid {
				return true
			}
		}
		leaf = leaf.next
	}
	c.valid = false
	return false
}

// Key returns the key at the cursor's current position.
func (c *Cursor) Key() []byte {
	if !c.valid {
		return nil
	}
	return c.leaf.keys[c.keyIdx]
}

// ID returns the id at the cursor's current position.
func (c *Cursor) ID() uint64 {
	if !c.valid {
		return 0
	}
	return c.ids[c.valueIdx]
}

// Valid reports whether the cursor currently points at an entry.
func (c *Cursor) Valid() bool { return c.valid }

// Next advances the cursor to the following (key, id) pair.
func (c *Cursor) Next() bool {
	if !c.valid {
		return false
	}
	c.t.mu.RLock()
	defer c.t.mu.RUnlock()

	if c.valueIdx+1 < len(c.ids) {
		c.valueIdx++
		return true
	}

	n := c.leaf
	idx := c.keyIdx + 1
	for {
		if idx < len(n.keys) {
			c.leaf = n
			c.keyIdx = idx
			c.ids = n.values[idx].all()
			c.valueIdx = 0
			if len(c.ids) > 0 {
				return true
			}
			idx++
			continue
		}
		if n.next == nil {
			c.valid = false
			return false
		}
		n = n.next
		idx = 0
	}
}

// Close releases the cursor. Present for symmetry with record/page-level
// resources even though the in-memory cursor holds nothing to release.
func (c *Cursor) Close() {
	c.valid = false
	c.leaf = nil
}
