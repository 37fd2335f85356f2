package pindex

import (
	"github.com/oba-ldap/partition/internal/bptree"
	"github.com/oba-ldap/partition/internal/record"
)

// Relation is an id<->id multimap, used for the purely-numeric system
// indices of spec §4.4: hierarchy (parent id -> {child id}), alias
// (alias id -> target id, reverse target id -> {alias id}), and the
// oneAlias/subAlias scope indices (ancestor id -> {target id}). Unlike
// Index, neither side needs arbitrary attribute-value bytes, so both
// directions are plain internal/bptree.Tables keyed by the 8-byte
// big-endian encoding of an id.
type Relation struct {
	forward *bptree.Table
	reverse *bptree.Table
}

// NewRelation creates an empty id<->id Relation.
func NewRelation(duplicateLimit int) *Relation {
	return &Relation{
		forward: bptree.NewTable(bptree.CompareBytes, duplicateLimit),
		reverse: bptree.NewTable(bptree.CompareBytes, duplicateLimit),
	}
}

// IDKey encodes id as an 8-byte big-endian key, the canonical key
// encoding used everywhere ids are compared as bptree keys (so that
// ascending key order matches ascending numeric order).
func IDKey(id uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(id)
		id >>= 8
	}
	return b
}

// Add records fromID -> toID in the forward direction and toID -> fromID
// in the reverse direction.
func (r *Relation) Add(fromID, toID uint64) error {
	if _, err := r.forward.Add(IDKey(fromID), toID); err != nil {
		return err
	}
	if _, err := r.reverse.Add(IDKey(toID), fromID); err != nil {
		return err
	}
	return nil
}

// Drop removes the fromID -> toID pair in both directions.
func (r *Relation) Drop(fromID, toID uint64) error {
	if _, err := r.forward.Remove(IDKey(fromID), toID); err != nil {
		return err
	}
	if _, err := r.reverse.Remove(IDKey(toID), fromID); err != nil {
		return err
	}
	return nil
}

// Forward returns every toID reachable from fromID.
func (r *Relation) Forward(fromID uint64) []uint64 {
	return r.forward.All(IDKey(fromID))
}

// ForwardOne returns the single toID for fromID, for relations that are
// single-valued in the forward direction (e.g. alias -> target).
func (r *Relation) ForwardOne(fromID uint64) (uint64, bool) {
	return r.forward.Least(IDKey(fromID))
}

// Reverse returns every fromID that reaches toID.
func (r *Relation) Reverse(toID uint64) []uint64 {
	return r.reverse.All(IDKey(toID))
}

// DropAllFrom removes every pair with the given fromID (e.g. dropping an
// entry's children list when it is deleted, or its alias/scope entries).
func (r *Relation) DropAllFrom(fromID uint64) error {
	for _, toID := range r.Forward(fromID) {
		if _, err := r.reverse.Remove(IDKey(toID), fromID); err != nil {
			return err
		}
	}
	_, err := r.forward.RemoveKey(IDKey(fromID))
	return err
}

// DropAllTo removes every pair with the given toID (e.g. dropping every
// alias that pointed at a target being deleted).
func (r *Relation) DropAllTo(toID uint64) error {
	for _, fromID := range r.Reverse(toID) {
		if _, err := r.forward.Remove(IDKey(fromID), toID); err != nil {
			return err
		}
	}
	_, err := r.reverse.RemoveKey(IDKey(toID))
	return err
}

// Count returns the total number of (fromID, toID) pairs.
func (r *Relation) Count() int {
	return r.forward.Count()
}

// ForwardKeys returns every distinct fromID with at least one forward
// entry, in ascending order. Used to rebuild the DN-keyed PrefixTree that
// mirrors the alias relation after Store.load, since that tree is never
// itself persisted.
func (r *Relation) ForwardKeys() []uint64 {
	var ids []uint64
	c := r.forward.NewCursor()
	for ok := c.First(); ok; ok = c.Next() {
		id := decodeIDKey(c.Key())
		if len(ids) == 0 || ids[len(ids)-1] != id {
			ids = append(ids, id)
		}
	}
	return ids
}

func decodeIDKey(b []byte) uint64 {
	var id uint64
	for _, x := range b {
		id = id<<8 | uint64(x)
	}
	return id
}

type RelationManifest struct {
	Forward record.RecID
	Reverse record.RecID
}

// Sync snapshots both directions through rm.
func (r *Relation) Sync(rm *record.RecordManager, prev RelationManifest) (RelationManifest, error) {
	fwdID, err := bptree.SaveTo(r.forward, rm, prev.Forward)
	if err != nil {
		return RelationManifest{}, err
	}
	revID, err := bptree.SaveTo(r.reverse, rm, prev.Reverse)
	if err != nil {
		return RelationManifest{}, err
	}
	return RelationManifest{Forward: fwdID, Reverse: revID}, nil
}

// LoadRelation rebuilds a Relation from a previously-Sync'd manifest.
func LoadRelation(rm *record.RecordManager, m RelationManifest, duplicateLimit int) (*Relation, error) {
	fwd, err := bptree.LoadFrom(rm, m.Forward, bptree.CompareBytes, duplicateLimit)
	if err != nil {
		return nil, err
	}
	rev, err := bptree.LoadFrom(rm, m.Reverse, bptree.CompareBytes, duplicateLimit)
	if err != nil {
		return nil, err
	}
	return &Relation{forward: fwd, reverse: rev}, nil
}
