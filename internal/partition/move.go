package partition

// Move relocates the entry at userDN to be a child of newParentDN,
// keeping its RDN, per spec §4.4. Every descendant's ndn/updn entries are
// rewritten, and alias scope indices for the moved node and any aliases
// nested beneath it are recomputed against their new ancestor chain.
func (s *Store) Move(userDN, newParentDN string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	oldDN, err := s.ParseDN(userDN)
	if err != nil {
		return err
	}
	id, ok := s.lookupID(oldDN)
	if !ok {
		return ErrNoSuchObject
	}

	newParent, err := s.ParseDN(newParentDN)
	if err != nil {
		return err
	}
	newParentID, ok := s.lookupID(newParent)
	if !ok && !newParent.Equal(s.cfg.Suffix) {
		return ErrNoSuchParent
	}
	if !ok {
		newParentID = 0
	}

	newDN := oldDN.WithNewParent(newParent)
	if _, exists := s.lookupID(newDN); exists {
		return ErrEntryAlreadyExists
	}
	if newDN.IsDescendantOf(oldDN) || newDN.Equal(oldDN) {
		return ErrHierarchyCycle
	}

	oldParentID, err := s.parentID(oldDN)
	if err != nil {
		return err
	}

	subtreeIDs := s.collectSubtree(id)

	if err := s.hierarchy.Drop(oldParentID, id); err != nil {
		return err
	}
	if err := s.hierarchy.Add(newParentID, id); err != nil {
		return err
	}

	return s.rewriteSubtreeDN(subtreeIDs, oldDN, newDN, true)
}
