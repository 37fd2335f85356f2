package bptree

import "github.com/google/btree"

// valueSet holds the set of record ids a single key maps to. Below
// duplicateLimit it is a sorted inline array; crossing the threshold
// promotes it to a nested google/btree.BTreeG, matching spec §4.1/§4.3's
// "inline sorted array vs. secondary nested B+tree" requirement. Crossing
// back below the threshold on removal demotes it again (spec §4.1: "crossing
// the threshold in either direction must be atomic with respect to the
// containing leaf write" — both directions mutate the cell under the same
// tree-wide write lock held by Table.Add/Table.Remove).
type valueSet struct {
	inline []uint64
	nested *btree.BTreeG[uint64]
}

func uint64Less(a, b uint64) bool { return a < b }

func newValueSet(id uint64) *valueSet {
	return &valueSet{inline: []uint64{id}}
}

func (vs *valueSet) count() int {
	if vs.nested != nil {
		return vs.nested.Len()
	}
	return len(vs.inline)
}

func (vs *valueSet) has(id uint64) bool {
	if vs.nested != nil {
		return vs.nested.Has(id)
	}
	for _, v := range vs.inline {
		if v == id {
			return true
		}
	}
	return false
}

func (vs *valueSet) least() (uint64, bool) {
	if vs.nested != nil {
		if vs.nested.Len() == 0 {
			return 0, false
		}
		min, _ := vs.nested.Min()
		return min, true
	}
	if len(vs.inline) == 0 {
		return 0, false
	}
	least := vs.inline[0]
	for _, v := range vs.inline[1:] {
		if v < least {
			least = v
		}
	}
	return least, true
}

func (vs *valueSet) all() []uint64 {
	if vs.nested == nil {
		out := make([]uint64, len(vs.inline))
		copy(out, vs.inline)
		return out
	}
	out := make([]uint64, 0, vs.nested.Len())
	vs.nested.Ascend(func(v uint64) bool {
		out = append(out, v)
		return true
	})
	return out
}

// add inserts id, promoting to the nested representation if the set now
// exceeds duplicateLimit. Returns true if id was newly added.
func (vs *valueSet) add(id uint64, duplicateLimit int) bool {
	if vs.has(id) {
		return false
	}
	if vs.nested != nil {
		vs.nested.ReplaceOrInsert(id)
		return true
	}
	vs.inline = insertSorted(vs.inline, id)
	if len(vs.inline) > duplicateLimit {
		vs.promote()
	}
	return true
}

// remove deletes id, demoting back to inline once the set shrinks to the
// threshold. Returns true if id was present.
func (vs *valueSet) remove(id uint64, duplicateLimit int) bool {
	if vs.nested != nil {
		if _, ok := vs.nested.Delete(id); !ok {
			return false
		}
		if vs.nested.Len() <= duplicateLimit {
			vs.demote()
		}
		return true
	}
	idx := -1
	for i, v := range vs.inline {
		if v == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	vs.inline = append(vs.inline[:idx], vs.inline[idx+1:]...)
	return true
}

func (vs *valueSet) promote() {
	t := btree.NewG[uint64](32, uint64Less)
	for _, v := range vs.inline {
		t.ReplaceOrInsert(v)
	}
	vs.nested = t
	vs.inline = nil
}

func (vs *valueSet) demote() {
	vs.inline = vs.all()
	vs.nested = nil
}

func insertSorted(s []uint64, v uint64) []uint64 {
	i := 0
	for i < len(s) && s[i] < v {
		i++
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
