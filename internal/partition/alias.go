package partition

import (
	"github.com/oba-ldap/partition/internal/dn"
)

// aliasedObjectNameAttr is the attribute an alias entry carries its target
// DN in, per RFC 4512's alias object class.
const aliasedObjectNameAttr = "aliasedObjectName"

// entryUUIDAttr is the operational attribute Add synthesizes a value for
// on the context entry when the caller didn't supply one.
const entryUUIDAttr = "entryUUID"

func isAliasEntry(e *Entry) bool {
	return e.Has(aliasedObjectNameAttr)
}

func aliasTargetRaw(e *Entry) (string, bool) {
	values := e.Get(aliasedObjectNameAttr)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// ancestorIDs returns the ids of every proper ancestor of d, nearest
// first, stopping before the partition's suffix (spec §4.4's subtree
// alias scope index is keyed on ancestors strictly between an alias and
// the suffix; the one-level scope index is keyed on parent(d) directly,
// which may be the suffix itself, so it does not use this list).
func (s *Store) ancestorIDs(d dn.DN) ([]uint64, error) {
	var ids []uint64
	cur := d
	for {
		cur = cur.Parent()
		if cur.IsEmpty() || cur.Equal(s.cfg.Suffix) {
			break
		}
		id, ok := s.lookupID(cur)
		if !ok {
			return nil, ErrNoSuchParent
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// immediateParentID returns the id of d's immediate parent. Unlike
// ancestorIDs, the result may legitimately be the partition suffix
// itself: spec §4.5 step 8 keys the one-level alias scope index on
// parent(aliasDn) with no suffix exclusion.
func (s *Store) immediateParentID(d dn.DN) (uint64, error) {
	parent := d.Parent()
	if parent.IsEmpty() {
		parent = s.cfg.Suffix
	}
	id, ok := s.lookupID(parent)
	if !ok {
		return 0, ErrNoSuchParent
	}
	return id, nil
}

// resolveAliasTarget validates and resolves the target of an alias whose
// own normalized DN is aliasDN, enforcing spec §4.4's alias invariants:
// no external target, no self-target, no cycle (target is an ancestor of
// the alias), no chain (target is itself an alias), and the target must
// exist.
func (s *Store) resolveAliasTarget(aliasDN dn.DN, rawTarget string) (uint64, error) {
	targetDN, err := s.ParseDN(rawTarget)
	if err != nil {
		return 0, err
	}
	if !targetDN.IsDescendantOf(s.cfg.Suffix) && !targetDN.Equal(s.cfg.Suffix) {
		return 0, ErrAliasExternal
	}
	if targetDN.Equal(aliasDN) {
		return 0, ErrAliasToSelf
	}
	if aliasDN.IsDescendantOf(targetDN) {
		return 0, ErrAliasCycle
	}
	targetID, ok := s.lookupID(targetDN)
	if !ok {
		return 0, ErrAliasTargetMissing
	}
	if _, isAlias := s.alias.ForwardOne(targetID); isAlias {
		return 0, ErrAliasChain
	}
	return targetID, nil
}

// addAliasIndices wires aliasID -> targetID into the alias relation and
// the one-level/subtree scope indices for every ancestor of aliasDN.
// Per spec §4.5 steps 9-10, both scope indices are conditional: oneAlias
// only gets (parent(aliasDn), targetId) when targetId is not a sibling of
// the alias, and subAlias only gets (ancestorId, targetId) for ancestors
// that targetId is not itself a descendant of. Skipping the condition
// would make subAlias claim scope over a target that's nested under the
// very ancestor being indexed, or oneAlias claim scope over an alias's
// own sibling.
func (s *Store) addAliasIndices(aliasID uint64, aliasDN dn.DN, targetID uint64) error {
	if err := s.alias.Add(aliasID, targetID); err != nil {
		return err
	}

	targetDNStr, ok := s.normDnOf(targetID)
	if !ok {
		return ErrIndexInconsistent
	}
	targetDN, err := s.ParseDN(targetDNStr)
	if err != nil {
		return err
	}

	parentID, err := s.immediateParentID(aliasDN)
	if err != nil {
		return err
	}
	if !targetDN.Parent().Equal(aliasDN.Parent()) {
		if err := s.oneAlias.Add(parentID, targetID); err != nil {
			return err
		}
	}

	ancestors, err := s.ancestorIDs(aliasDN)
	if err != nil {
		return err
	}
	anc := aliasDN.Parent()
	for _, ancID := range ancestors {
		if !targetDN.IsDescendantOf(anc) {
			if err := s.subAlias.Add(ancID, targetID); err != nil {
				return err
			}
		}
		anc = anc.Parent()
	}

	s.aliasPrefix.Insert([]byte(aliasDN.ReversedNormString()), aliasID)
	return nil
}

// dropAliasIndices removes aliasID's alias relation and scope index
// entries for its current ancestor chain aliasDN. The scope index drops
// are unconditional (Relation.Drop is a no-op on a tuple that was never
// added, mirroring addAliasIndices' conditions without re-deriving them)
// but still must target the same keys addAliasIndices used: the true
// immediate parent for oneAlias (suffix included) and the suffix-excluding
// ancestor chain for subAlias.
func (s *Store) dropAliasIndices(aliasID uint64, aliasDN dn.DN) error {
	targetID, ok := s.alias.ForwardOne(aliasID)
	if !ok {
		return nil
	}
	s.aliasPrefix.Delete([]byte(aliasDN.ReversedNormString()))

	parentID, err := s.immediateParentID(aliasDN)
	if err != nil {
		return err
	}
	if err := s.oneAlias.Drop(parentID, targetID); err != nil {
		return err
	}

	ancestors, err := s.ancestorIDs(aliasDN)
	if err != nil {
		return err
	}
	for _, anc := range ancestors {
		if err := s.subAlias.Drop(anc, targetID); err != nil {
			return err
		}
	}
	return s.alias.Drop(aliasID, targetID)
}

// movedAlias carries an alias's id and target across the
// dropMovedAliasIndices/readdAliasIndices pairing, since dropAliasIndices
// removes the alias relation entry itself (not just the scope indices),
// so the target can't be re-looked-up by id afterward.
type movedAlias struct {
	aliasID  uint64
	targetID uint64
}

// dropMovedAliasIndices drops and the caller is expected to re-add the
// alias relation and scope index entries for every alias nested beneath
// oldRootDN (rootID included), ahead of a move that changes
// rootID's ancestor chain (and therefore every nested alias's ancestor
// chain too). Rather than walking rootID's whole subtree checking each id
// against the alias relation, it asks aliasPrefix directly for every
// alias forward key under oldRootDN: a single ancestor-prefix scan
// instead of an O(subtree size) walk.
func (s *Store) dropMovedAliasIndices(oldRootDN dn.DN) ([]movedAlias, error) {
	var moved []movedAlias
	prefix := []byte(oldRootDN.ReversedNormString())
	for _, id := range s.aliasPrefix.WithPrefix(prefix) {
		aliasDN, ok := s.normDnOf(id)
		if !ok {
			return nil, ErrIndexInconsistent
		}
		parsed, perr := s.ParseDN(aliasDN)
		if perr != nil {
			return nil, perr
		}
		if !parsed.Equal(oldRootDN) && !parsed.IsDescendantOf(oldRootDN) {
			// Byte-prefix match on a sibling DN with an overlapping
			// textual prefix (e.g. "dc=com" vs "dc=commerce"); the
			// radix scan over-approximates, RDN containment doesn't.
			continue
		}
		targetID, ok := s.alias.ForwardOne(id)
		if !ok {
			return nil, ErrIndexInconsistent
		}
		if err := s.dropAliasIndices(id, parsed); err != nil {
			return nil, err
		}
		moved = append(moved, movedAlias{aliasID: id, targetID: targetID})
	}
	return moved, nil
}

// readdAliasIndices restores the alias relation and scope indices for
// each entry in moved using its (now updated) ancestor chain, completing
// the pairing with dropMovedAliasIndices.
func (s *Store) readdAliasIndices(moved []movedAlias) error {
	for _, m := range moved {
		normDN, ok := s.normDnOf(m.aliasID)
		if !ok {
			return ErrIndexInconsistent
		}
		parsed, err := s.ParseDN(normDN)
		if err != nil {
			return err
		}
		if err := s.addAliasIndices(m.aliasID, parsed, m.targetID); err != nil {
			return err
		}
	}
	return nil
}
