package partition

import (
	"strings"

	"github.com/oba-ldap/partition/internal/dn"
)

// rewriteSubtreeDN updates the ndn/updn indices for rootID and every
// descendant after rootID's DN changes from oldRootDN to newRootDN
// (rename keeps the parent and changes the RDN; move changes the parent
// and keeps the RDN; either way every id below rootID keeps its relative
// position but has the trailing oldRootDN part of its leaf-first DN
// string replaced by newRootDN).
// subtreeIDs must have been captured by collectSubtree before rootID's
// own ndn/updn entries are touched, and isMove controls whether the
// alias scope indices are dropped and rebuilt around the new ancestor
// chain.
func (s *Store) rewriteSubtreeDN(subtreeIDs []uint64, oldRootDN, newRootDN dn.DN, isMove bool) error {
	var moved []movedAlias
	var err error
	if isMove {
		if moved, err = s.dropMovedAliasIndices(oldRootDN); err != nil {
			return err
		}
	}

	oldPrefix := oldRootDN.NormString()
	oldUserPrefix := oldRootDN.UserString()

	for _, id := range subtreeIDs {
		oldNorm, ok := s.normDnOf(id)
		if !ok {
			return ErrIndexInconsistent
		}
		oldUser, ok := s.dnOf(id)
		if !ok {
			return ErrIndexInconsistent
		}

		newNorm := strings.TrimSuffix(oldNorm, oldPrefix) + newRootDN.NormString()
		newUser := strings.TrimSuffix(oldUser, oldUserPrefix) + newRootDN.UserString()

		if err := s.dropDNIndices(oldNorm, oldUser, id); err != nil {
			return err
		}
		if err := s.ndn.Add([]byte(newNorm), id); err != nil {
			return err
		}
		if err := s.updn.Add([]byte(newUser), id); err != nil {
			return err
		}
		s.dnPrefix.Insert([]byte(dn.ReverseComponents(newNorm)), id)
		// Aliases still in the alias relation (not dropped ahead of a move)
		// are re-keyed in aliasPrefix under their new DN.
		if _, isAlias := s.alias.ForwardOne(id); isAlias {
			s.aliasPrefix.Delete([]byte(dn.ReverseComponents(oldNorm)))
			s.aliasPrefix.Insert([]byte(dn.ReverseComponents(newNorm)), id)
		}
	}

	if isMove {
		if err := s.readdAliasIndices(moved); err != nil {
			return err
		}
	}
	return nil
}

// collectSubtree returns rootID and every descendant id beneath it,
// breadth-first. Callers that are about to mutate the hierarchy (rename,
// move, delete) must capture this list before mutating, since walking the
// hierarchy relation while it changes underfoot would invalidate the
// traversal (the same reason the original JDBM store captures its child
// id list up front before recursing).
func (s *Store) collectSubtree(rootID uint64) []uint64 {
	ids := []uint64{rootID}
	queue := []uint64{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children := s.hierarchy.Forward(id)
		ids = append(ids, children...)
		queue = append(queue, children...)
	}
	return ids
}
