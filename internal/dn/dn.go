// Package dn implements the distinguished-name parsing and normalization
// collaborator described by spec §3/§7: the store coordinator treats DN
// handling as pluggable (a schema-aware caller may supply attribute-type
// normalizers), but ships a default implementation grounded on the
// teacher's internal/storage/radix package (dn.go's ParseDN/NormalizeDN/
// IsDescendantOf family), generalized from a single fixed normalization
// rule to the Normalizer hook spec §3 calls for.
package dn

import (
	"strings"

	"tlog.app/go/errors"
)

// RDN is one relative-distinguished-name component: attribute type plus
// value, in both user-provided and normalized form.
type RDN struct {
	Type        string
	Value       string
	NormType    string
	NormValue   string
}

// DN is a parsed distinguished name, most-specific RDN first (index 0),
// matching the teacher's radix.ParseDN ordering.
type DN struct {
	rdns []RDN
}

// Normalizer maps an attribute type name and its value to normalized form.
// Parse's default (DefaultNormalizer) trims and lowercases both;
// a schema-aware caller (internal/schema) supplies the real per-attribute
// normalization the way spec §3's "normalizerMapping" collaborator does.
type Normalizer func(attrType, value string) (normType, normValue string)

// DefaultNormalizer trims surrounding whitespace from the attribute type and
// the value and lowercases both; inner whitespace is kept as is, and there
// is no schema-specific folding.
func DefaultNormalizer(attrType, value string) (string, string) {
	return strings.ToLower(strings.TrimSpace(attrType)), strings.ToLower(strings.TrimSpace(value))
}

// Errors returned by Parse.
var (
	ErrEmptyDN       = errors.New("dn: empty component")
	ErrMalformedRDN  = errors.New("dn: malformed RDN, expected type=value")
)

// Parse splits a DN string on unescaped commas and each RDN on its first
// unescaped '=', normalizing every component with norm. A nil norm defaults
// to DefaultNormalizer.
func Parse(raw string, norm Normalizer) (DN, error) {
	if norm == nil {
		norm = DefaultNormalizer
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DN{}, nil
	}

	parts := splitUnescaped(raw, ',')
	rdns := make([]RDN, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return DN{}, ErrEmptyDN
		}
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			return DN{}, errors.Wrap(ErrMalformedRDN, "%q", part)
		}
		typ := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		normType, normValue := norm(typ, val)
		rdns = append(rdns, RDN{Type: typ, Value: val, NormType: normType, NormValue: normValue})
	}
	return DN{rdns: rdns}, nil
}

// splitUnescaped splits s on sep, honoring a leading backslash as an escape
// for the following character.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			cur.WriteByte(c)
			escaped = true
		case c == sep:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

// Size returns the number of RDN components.
func (d DN) Size() int { return len(d.rdns) }

// IsEmpty reports whether d has no components (the root/suffix sentinel).
func (d DN) IsEmpty() bool { return len(d.rdns) == 0 }

// Get returns the RDN at position i (0 = most specific).
func (d DN) Get(i int) RDN { return d.rdns[i] }

// GetPrefix returns the DN made of d's n least-specific (suffix-side) RDNs,
// matching radix.DN's GetPrefix: the ancestor n levels up from the suffix.
func (d DN) GetPrefix(n int) DN {
	if n <= 0 {
		return DN{}
	}
	if n >= len(d.rdns) {
		return d
	}
	start := len(d.rdns) - n
	return DN{rdns: d.rdns[start:]}
}

// Parent returns d's immediate parent (d without its most specific RDN),
// or the empty DN if d has at most one RDN.
func (d DN) Parent() DN {
	if len(d.rdns) <= 1 {
		return DN{}
	}
	return DN{rdns: d.rdns[1:]}
}

// RDNAt0 returns d's most specific RDN (the local name component).
func (d DN) RDNAt0() RDN {
	return d.rdns[0]
}

// NormString renders the DN's normalized form, comma-joined, most specific
// first, matching the string stored in the ndn system index.
func (d DN) NormString() string {
	var b strings.Builder
	for i, r := range d.rdns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.NormType)
		b.WriteByte('=')
		b.WriteString(r.NormValue)
	}
	return b.String()
}

// UserString renders the DN's user-provided form, comma-joined, matching
// the string stored in the updn system index.
func (d DN) UserString() string {
	var b strings.Builder
	for i, r := range d.rdns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.Type)
		b.WriteByte('=')
		b.WriteString(r.Value)
	}
	return b.String()
}

// ReversedNormString renders the normalized form root-first instead of
// NormString's leaf-first order, so that an ancestor's encoding is a
// literal byte-prefix of every descendant's encoding. Used as the key
// internal/pindex.PrefixTree indexes DNs under, since ancestor-prefix
// queries are exactly what a radix tree answers efficiently.
func (d DN) ReversedNormString() string {
	var b strings.Builder
	for i := len(d.rdns) - 1; i >= 0; i-- {
		if i != len(d.rdns)-1 {
			b.WriteByte(',')
		}
		b.WriteString(d.rdns[i].NormType)
		b.WriteByte('=')
		b.WriteString(d.rdns[i].NormValue)
	}
	return b.String()
}

// ReverseComponents flips a comma-joined, leaf-first normalized DN string
// (as NormString renders it) into root-first order, for callers that only
// have the rendered string in hand (e.g. after a prefix-replace rewrite)
// rather than a parsed DN.
func ReverseComponents(normString string) string {
	parts := splitUnescaped(normString, ',')
	out := make([]string, len(parts))
	for i, p := range parts {
		out[len(parts)-1-i] = p
	}
	return strings.Join(out, ",")
}

// IsDescendantOf reports whether d is a (strict or non-strict) descendant
// of ancestor: every RDN of ancestor, normalized, appears as a suffix of
// d's RDN list in the same order.
func (d DN) IsDescendantOf(ancestor DN) bool {
	if len(ancestor.rdns) > len(d.rdns) {
		return false
	}
	offset := len(d.rdns) - len(ancestor.rdns)
	for i, r := range ancestor.rdns {
		dr := d.rdns[offset+i]
		if dr.NormType != r.NormType || dr.NormValue != r.NormValue {
			return false
		}
	}
	return true
}

// IsDirectChildOf reports whether d is exactly one RDN below parent.
func (d DN) IsDirectChildOf(parent DN) bool {
	return len(d.rdns) == len(parent.rdns)+1 && d.IsDescendantOf(parent)
}

// Equal compares two DNs by normalized form.
func (d DN) Equal(other DN) bool {
	if len(d.rdns) != len(other.rdns) {
		return false
	}
	for i := range d.rdns {
		if d.rdns[i].NormType != other.rdns[i].NormType || d.rdns[i].NormValue != other.rdns[i].NormValue {
			return false
		}
	}
	return true
}

// WithNewParent rebuilds d by replacing its ancestor chain: d's own
// leading RDN (its local name, possibly itself just renamed by caller
// before this call) is kept and reattached under newParent. Used by the
// store coordinator's rename/move DN rewrite (spec §4.4's "rename"/"move").
func (d DN) WithNewParent(newParent DN) DN {
	rdns := make([]RDN, 0, 1+len(newParent.rdns))
	rdns = append(rdns, d.rdns[0])
	rdns = append(rdns, newParent.rdns...)
	return DN{rdns: rdns}
}

// WithNewRDN returns a copy of d with its most specific RDN replaced,
// keeping the rest of the ancestor chain (used by rename without a move).
func (d DN) WithNewRDN(rdn RDN) DN {
	rdns := make([]RDN, len(d.rdns))
	copy(rdns, d.rdns)
	rdns[0] = rdn
	return DN{rdns: rdns}
}
