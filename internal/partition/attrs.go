package partition

// attrKey resolves attrType to the key user indices and the presence
// index are keyed by: its schema OID when a schema.Resolver is bound,
// falling back to the lowercased attribute name otherwise.
func (s *Store) attrKey(attrType string) string {
	if s.schema != nil {
		if oid, ok := s.schema.ResolveOID(attrType); ok {
			return oid
		}
	}
	return normalizeAttrName(attrType)
}

func (s *Store) normalizedValue(attrType, value string) string {
	if s.schema != nil {
		return s.schema.NormalizeValue(attrType, value)
	}
	_, v := dnDefaultNormalize(attrType, value)
	return v
}

func dnDefaultNormalize(attrType, value string) (string, string) {
	return normalizeAttrName(attrType), normalizeAttrName(value)
}

// indexEntryAttributes adds id to the presence index for every attribute
// it carries, and to any configured user index whose attribute is present.
func (s *Store) indexEntryAttributes(id uint64, e *Entry) error {
	for _, a := range e.Attributes {
		key := s.attrKey(a.Type)
		if err := s.presence.Add([]byte(key), id); err != nil {
			return err
		}
		idx, ok := s.userIndices[key]
		if !ok {
			continue
		}
		for _, v := range a.Values {
			if err := idx.Add([]byte(s.normalizedValue(a.Type, v)), id); err != nil {
				return err
			}
		}
	}
	return nil
}

// deindexEntryAttributes is indexEntryAttributes's inverse, used by
// Delete and by Modify before re-indexing an attribute's new values.
func (s *Store) deindexEntryAttributes(id uint64, e *Entry) error {
	for _, a := range e.Attributes {
		key := s.attrKey(a.Type)
		if err := s.presence.Drop([]byte(key), id); err != nil {
			return err
		}
		idx, ok := s.userIndices[key]
		if !ok {
			continue
		}
		for _, v := range a.Values {
			if err := idx.Drop([]byte(s.normalizedValue(a.Type, v)), id); err != nil {
				return err
			}
		}
	}
	return nil
}
