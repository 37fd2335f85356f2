package partition

import "fmt"

// Lookup returns the entry stored at userDN.
func (s *Store) Lookup(userDN string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	d, err := s.ParseDN(userDN)
	if err != nil {
		return nil, err
	}
	id, ok := s.lookupID(d)
	if !ok {
		return nil, ErrNoSuchObject
	}
	return s.getEntryLocked(id)
}

// Children returns the user DNs of userDN's direct children.
func (s *Store) Children(userDN string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	d, err := s.ParseDN(userDN)
	if err != nil {
		return nil, err
	}
	id, ok := s.lookupID(d)
	if !ok {
		if !d.Equal(s.cfg.Suffix) {
			return nil, ErrNoSuchObject
		}
	}
	var out []string
	for _, childID := range s.hierarchy.Forward(id) {
		if childDN, ok := s.dnOf(childID); ok {
			out = append(out, childDN)
		}
	}
	return out, nil
}

// Subtree returns the user DNs of userDN and every entry beneath it,
// using the dnPrefix accelerator rather than a hierarchy walk: an
// ancestor-prefix radix scan instead of one bptree lookup per level of
// fan-out.
func (s *Store) Subtree(userDN string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	d, err := s.ParseDN(userDN)
	if err != nil {
		return nil, err
	}
	if _, ok := s.lookupID(d); !ok && !d.Equal(s.cfg.Suffix) {
		return nil, ErrNoSuchObject
	}
	var out []string
	for _, id := range s.dnPrefix.WithPrefix([]byte(d.ReversedNormString())) {
		normDN, ok := s.normDnOf(id)
		if !ok {
			continue
		}
		parsed, err := s.ParseDN(normDN)
		if err != nil || (!parsed.Equal(d) && !parsed.IsDescendantOf(d)) {
			continue
		}
		if userDN, ok := s.dnOf(id); ok {
			out = append(out, userDN)
		}
	}
	return out, nil
}

// getIndices returns a debug snapshot of every index entry touching id,
// keyed the way the original store's debugging dump names things:
// _nDn, _upDn, _parent, _existance[<oid>], _child.
func (s *Store) getIndices(id uint64) map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string)
	if v, ok := s.normDnOf(id); ok {
		out["_nDn"] = []string{v}
	}
	if v, ok := s.dnOf(id); ok {
		out["_upDn"] = []string{v}
	}
	if parents := s.hierarchy.Reverse(id); len(parents) > 0 {
		out["_parent"] = []string{fmt.Sprint(parents[0])}
	}
	if children := s.hierarchy.Forward(id); len(children) > 0 {
		childStrs := make([]string, len(children))
		for i, c := range children {
			childStrs[i] = fmt.Sprint(c)
		}
		out["_child"] = childStrs
	}
	for _, oid := range s.presence.ReverseLookup(id) {
		out[fmt.Sprintf("_existance[%s]", oid)] = []string{"true"}
	}
	return out
}

// IndexNames returns the names/OIDs of every configured user index, for
// the diagnostic CLI's index-listing command.
func (s *Store) IndexNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.userIndices))
	for name := range s.userIndices {
		names = append(names, name)
	}
	return names
}

// IndexStats reports the number of (value, id) pairs in one configured
// user index, or ErrIndexNotFound if name isn't indexed.
func (s *Store) IndexStats(name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.userIndices[name]
	if !ok {
		return 0, ErrIndexNotFound
	}
	return idx.Count(), nil
}
