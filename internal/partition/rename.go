package partition

import "github.com/oba-ldap/partition/internal/dn"

// Rename changes the entry at userDN's RDN without moving it to a new
// parent, per spec §4.4. The old naming attribute value is removed from
// the entry's attributes and the new one is added, matching LDAP's
// default deleteOldRDN=true ModifyDN behavior.
func (s *Store) Rename(userDN, newRDNType, newRDNValue string) error {
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

	normType, normValue := s.normalizer()(newRDNType, newRDNValue)
	newRDN := dn.RDN{Type: newRDNType, Value: newRDNValue, NormType: normType, NormValue: normValue}
	newDN := oldDN.WithNewRDN(newRDN)

	if _, exists := s.lookupID(newDN); exists {
		return ErrEntryAlreadyExists
	}

	entry, err := s.getEntryLocked(id)
	if err != nil {
		return err
	}
	wasAlias := isAliasEntry(entry)
	if wasAlias {
		if err := s.dropAliasIndices(id, oldDN); err != nil {
			return err
		}
	}
	if err := s.deindexEntryAttributes(id, entry); err != nil {
		return err
	}

	oldRDN := oldDN.RDNAt0()
	var oldValues []string
	for _, v := range entry.Get(oldRDN.Type) {
		if s.normalizedValue(oldRDN.Type, v) == oldRDN.NormValue {
			oldValues = append(oldValues, v)
		}
	}
	if len(oldValues) > 0 {
		entry.Remove(oldRDN.Type, oldValues...)
	}
	entry.Add(newRDNType, newRDNValue)

	subtreeIDs := s.collectSubtree(id)
	if err := s.rewriteSubtreeDN(subtreeIDs, oldDN, newDN, false); err != nil {
		return err
	}

	if err := s.putEntryLocked(id, entry); err != nil {
		return err
	}
	if err := s.indexEntryAttributes(id, entry); err != nil {
		return err
	}
	if isAliasEntry(entry) {
		return s.addAlias(id, newDN, entry)
	}
	return nil
}
