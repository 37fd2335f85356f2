// Package pindex implements the Index abstraction of spec §4.3: a
// forward table (attribute value -> {id}) paired with a reverse table
// (id -> {attribute value}), used both for the store's system indices
// (normalized/user DN, attribute presence) and for configurable
// per-attribute user indices. It is built directly on internal/bptree's
// Table, the same B+tree table spec §4.1 describes, plus a small
// id-keyed string multimap for the reverse direction (bptree's Table
// only stores uint64 values, which fits forward lookups but not a
// reverse map back to arbitrary attribute-value bytes).
package pindex

import (
	"sync"

	"tlog.app/go/errors"

	"github.com/oba-ldap/partition/internal/bptree"
	"github.com/oba-ldap/partition/internal/record"
)

// Index pairs a forward value->{id} table with a reverse id->{value}
// multimap, matching spec §4.3's add/drop/forwardLookup/reverseLookup
// contract. Safe for concurrent use.
type Index struct {
	mu             sync.RWMutex
	forward        *bptree.Table
	reverse        *stringMultimap
	duplicateLimit int
}

// New creates an empty Index. A duplicateLimit <= 0 uses
// bptree.DefaultDuplicateLimit.
func New(cmp bptree.Comparator, duplicateLimit int) *Index {
	return &Index{
		forward:        bptree.NewTable(cmp, duplicateLimit),
		reverse:        newStringMultimap(),
		duplicateLimit: duplicateLimit,
	}
}

// Add records that id carries attribute value key. Idempotent.
func (idx *Index) Add(key []byte, id uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, err := idx.forward.Add(key, id); err != nil {
		return err
	}
	idx.reverse.add(id, key)
	return nil
}

// Drop removes the (key, id) pair.
func (idx *Index) Drop(key []byte, id uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, err := idx.forward.Remove(key, id); err != nil {
		return err
	}
	idx.reverse.remove(id, key)
	return nil
}

// DropID removes every value id is indexed under (spec §4.4's
// "deleting an entry drops it from every index it appears in").
func (idx *Index) DropID(id uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	values := idx.reverse.all(id)
	for _, v := range values {
		if _, err := idx.forward.Remove(v, id); err != nil {
			return err
		}
	}
	idx.reverse.clear(id)
	return nil
}

// ForwardLookup returns every id indexed under key.
func (idx *Index) ForwardLookup(key []byte) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.forward.All(key)
}

// ForwardLookupOne returns one id indexed under key (the least), matching
// spec §4.3's single-valued forwardLookup contract for ndn/updn/alias.
func (idx *Index) ForwardLookupOne(key []byte) (uint64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.forward.Least(key)
}

// HasValue reports whether (key, id) is indexed.
func (idx *Index) HasValue(key []byte, id uint64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.forward.Has(key, id)
}

// ReverseLookup returns every value id is indexed under.
func (idx *Index) ReverseLookup(id uint64) [][]byte {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.reverse.all(id)
}

// Count returns the total number of (key, id) pairs.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.forward.Count()
}

// Cursor returns a forward cursor over (value, id) pairs in key order,
// used to rebuild prefix trees from an index's contents.
func (idx *Index) Cursor() *bptree.Cursor {
	return idx.forward.NewCursor()
}

// Manifest is the pair of RecIDs persisted for an Index: forward table
// snapshot and reverse multimap snapshot.
type Manifest struct {
	Forward record.RecID
	Reverse record.RecID
}

// ErrNotPersisted names the condition of an index with no record manager.
// Sync always takes a manager and does not return it.
var ErrNotPersisted = errors.New("pindex: index has no record manager")

// Sync snapshots both tables through rm, reusing prev's RecIDs when
// present (so the index keeps the same blob identity across saves).
func (idx *Index) Sync(rm *record.RecordManager, prev Manifest) (Manifest, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	fwdID, err := bptree.SaveTo(idx.forward, rm, prev.Forward)
	if err != nil {
		return Manifest{}, err
	}
	revBlob := idx.reverse.snapshot()
	var revID record.RecID
	if prev.Reverse == 0 {
		revID, err = rm.Insert(revBlob)
	} else {
		revID = prev.Reverse
		err = rm.Update(prev.Reverse, revBlob)
	}
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{Forward: fwdID, Reverse: revID}, nil
}

// Load rebuilds an Index from a previously-Sync'd Manifest.
func Load(rm *record.RecordManager, m Manifest, cmp bptree.Comparator, duplicateLimit int) (*Index, error) {
	fwd, err := bptree.LoadFrom(rm, m.Forward, cmp, duplicateLimit)
	if err != nil {
		return nil, err
	}
	revBlob, err := rm.Fetch(m.Reverse)
	if err != nil {
		return nil, err
	}
	rev, err := restoreStringMultimap(revBlob)
	if err != nil {
		return nil, err
	}
	return &Index{forward: fwd, reverse: rev, duplicateLimit: duplicateLimit}, nil
}
