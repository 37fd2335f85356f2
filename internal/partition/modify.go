package partition

// ModOp identifies one of the three modification operations spec §4.4
// defines: ADD appends values (creating the attribute if absent), REMOVE
// deletes named values (or the whole attribute if none are named), and
// REPLACE overwrites the attribute's value set wholesale.
type ModOp int

const (
	ModAdd ModOp = iota
	ModRemove
	ModReplace
)

// Mod is one attribute-level change within a Modify call.
type Mod struct {
	Op     ModOp
	Type   string
	Values []string
}

// Modify applies mods to the entry at userDN, re-indexing only the
// attributes that actually changed (presence index, user indices, and —
// if aliasedObjectName changes — the alias indices).
func (s *Store) Modify(userDN string, mods []Mod) error {
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
	entry, err := s.getEntryLocked(id)
	if err != nil {
		return err
	}

	wasAlias := isAliasEntry(entry)
	if wasAlias {
		if err := s.dropAliasIndices(id, d); err != nil {
			return err
		}
	}

	for _, m := range mods {
		before := entry.Get(m.Type)
		if len(before) > 0 {
			if err := s.presence.Drop([]byte(s.attrKey(m.Type)), id); err != nil {
				return err
			}
			for _, v := range before {
				if idx, ok := s.userIndices[s.attrKey(m.Type)]; ok {
					if err := idx.Drop([]byte(s.normalizedValue(m.Type, v)), id); err != nil {
						return err
					}
				}
			}
		}

		switch m.Op {
		case ModAdd:
			entry.Add(m.Type, m.Values...)
		case ModRemove:
			entry.Remove(m.Type, m.Values...)
		case ModReplace:
			if len(m.Values) == 0 {
				entry.Remove(m.Type)
			} else {
				entry.Put(m.Type, m.Values...)
			}
		default:
			return ErrUnknownModification
		}

		after := entry.Get(m.Type)
		if len(after) > 0 {
			if err := s.presence.Add([]byte(s.attrKey(m.Type)), id); err != nil {
				return err
			}
			if idx, ok := s.userIndices[s.attrKey(m.Type)]; ok {
				for _, v := range after {
					if err := idx.Add([]byte(s.normalizedValue(m.Type, v)), id); err != nil {
						return err
					}
				}
			}
		}
	}

	if err := s.putEntryLocked(id, entry); err != nil {
		return err
	}

	if isAliasEntry(entry) {
		if err := s.addAlias(id, d, entry); err != nil {
			return err
		}
	}

	return nil
}
