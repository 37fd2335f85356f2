package partition

import (
	"github.com/google/uuid"

	"github.com/oba-ldap/partition/internal/dn"
)

// Add creates a new entry at userDN with the given attributes, maintaining
// every system and user index (spec §4.4's add operation). userDN must
// name either the partition's suffix (the context entry, added exactly
// once) or a child of an already-existing entry.
func (s *Store) Add(userDN string, entry *Entry) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	d, err := s.ParseDN(userDN)
	if err != nil {
		return 0, err
	}
	if !d.Equal(s.cfg.Suffix) && !d.IsDescendantOf(s.cfg.Suffix) {
		return 0, ErrAliasExternal
	}
	if _, exists := s.lookupID(d); exists {
		return 0, ErrEntryAlreadyExists
	}

	parentID, err := s.parentID(d)
	if err != nil {
		return 0, err
	}

	if d.Equal(s.cfg.Suffix) && !entry.Has(entryUUIDAttr) {
		entry.Put(entryUUIDAttr, uuid.New().String())
	}

	// An alias target is validated before anything is written.
	var aliasTargetID uint64
	if isAliasEntry(entry) {
		raw, _ := aliasTargetRaw(entry)
		if aliasTargetID, err = s.resolveAliasTarget(d, raw); err != nil {
			return 0, err
		}
	}

	id := s.pages.NextRecordID()

	if err := s.putEntryLocked(id, entry); err != nil {
		return 0, err
	}
	if err := s.addDNIndices(d, id); err != nil {
		return 0, err
	}
	if err := s.hierarchy.Add(parentID, id); err != nil {
		return 0, err
	}
	if err := s.indexEntryAttributes(id, entry); err != nil {
		return 0, err
	}

	if isAliasEntry(entry) {
		if err := s.addAliasIndices(id, d, aliasTargetID); err != nil {
			return 0, err
		}
	}

	return id, nil
}

func (s *Store) addAlias(id uint64, d dn.DN, entry *Entry) error {
	raw, _ := aliasTargetRaw(entry)
	targetID, err := s.resolveAliasTarget(d, raw)
	if err != nil {
		return err
	}
	return s.addAliasIndices(id, d, targetID)
}
