package partition

import (
	"github.com/oba-ldap/partition/internal/dn"
)

// normalizer returns the dn.Normalizer this store parses DNs with: schema
// attribute-value normalization when a schema.Resolver was bound, plain
// lowercasing otherwise (spec §3's normalizerMapping collaborator,
// degraded gracefully when the caller hasn't wired a schema).
func (s *Store) normalizer() dn.Normalizer {
	if s.schema == nil {
		return dn.DefaultNormalizer
	}
	return func(attrType, value string) (string, string) {
		normType, _ := dn.DefaultNormalizer(attrType, "")
		normValue := s.schema.NormalizeValue(attrType, value)
		return normType, normValue
	}
}

// ParseDN parses and normalizes raw using this store's schema-aware
// normalizer.
func (s *Store) ParseDN(raw string) (dn.DN, error) {
	return dn.Parse(raw, s.normalizer())
}

// lookupID returns the internal id stored for the normalized DN d, which
// must be the partition's suffix or a strict descendant of it.
func (s *Store) lookupID(d dn.DN) (uint64, bool) {
	return s.ndn.ForwardLookupOne([]byte(d.NormString()))
}

// parentID returns the internal id of d's parent, using the reserved
// sentinel id 0 for the partition's suffix (which has no real parent
// entry of its own, mirroring the original store's root-id convention).
func (s *Store) parentID(d dn.DN) (uint64, error) {
	if d.Equal(s.cfg.Suffix) {
		return 0, nil
	}
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

// dnOf reconstructs the user-provided DN stored for id by reverse lookup
// on the updn index. id 0 (the sentinel above the suffix) has no DN.
func (s *Store) dnOf(id uint64) (string, bool) {
	values := s.updn.ReverseLookup(id)
	if len(values) == 0 {
		return "", false
	}
	return string(values[0]), true
}

// normDnOf reconstructs the normalized DN string stored for id.
func (s *Store) normDnOf(id uint64) (string, bool) {
	values := s.ndn.ReverseLookup(id)
	if len(values) == 0 {
		return "", false
	}
	return string(values[0]), true
}

// addDNIndices records d's normalized and user-provided forms for id in
// ndn/updn and keeps dnPrefix's ancestor-prefix accelerator in sync.
func (s *Store) addDNIndices(d dn.DN, id uint64) error {
	if err := s.ndn.Add([]byte(d.NormString()), id); err != nil {
		return err
	}
	if err := s.updn.Add([]byte(d.UserString()), id); err != nil {
		return err
	}
	s.dnPrefix.Insert([]byte(d.ReversedNormString()), id)
	return nil
}

// dropDNIndices removes id's ndn/updn entries for its current normalized
// and user-provided DN strings (as raw byte strings rather than a parsed
// dn.DN, since subtree rewrites compute these by prefix-replacement) and
// keeps dnPrefix in sync.
func (s *Store) dropDNIndices(normDN, userDN string, id uint64) error {
	if err := s.ndn.Drop([]byte(normDN), id); err != nil {
		return err
	}
	if err := s.updn.Drop([]byte(userDN), id); err != nil {
		return err
	}
	s.dnPrefix.Delete([]byte(dn.ReverseComponents(normDN)))
	return nil
}
