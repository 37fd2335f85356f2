package partition

// Delete removes the leaf entry named by userDN, per spec §4.4. Entries
// with children cannot be deleted directly (ErrNotLeaf) — the caller
// must delete the subtree bottom-up, matching LDAP delete semantics.
func (s *Store) Delete(userDN string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	d, err := s.ParseDN(userDN)
	if err != nil {
		return err
	}
	id, ok := s.lookupID(d)
	if !ok {
		return ErrNoSuchObject
	}
	if len(s.hierarchy.Forward(id)) > 0 {
		return ErrNotLeaf
	}

	entry, err := s.getEntryLocked(id)
	if err != nil {
		return err
	}

	if isAliasEntry(entry) {
		if err := s.dropAliasIndices(id, d); err != nil {
			return err
		}
	}
	if err := s.deindexEntryAttributes(id, entry); err != nil {
		return err
	}
	parentID, err := s.parentID(d)
	if err != nil {
		return err
	}
	if err := s.hierarchy.Drop(parentID, id); err != nil {
		return err
	}
	if err := s.dropDNIndices(d.NormString(), d.UserString(), id); err != nil {
		return err
	}
	return s.deleteEntryLocked(id)
}
