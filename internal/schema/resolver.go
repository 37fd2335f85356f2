package schema

import "strings"

// Resolver is the small collaborator contract the store coordinator
// (internal/partition) needs from a schema: resolve an attribute name or
// alias to its canonical OID, look up its AttributeType, and obtain a DN
// normalizer function keyed by attribute type (spec §3/§7's
// resolveOid/lookupAttributeType/normalizerMapping).
type Resolver interface {
	ResolveOID(nameOrOID string) (string, bool)
	LookupAttributeType(nameOrOID string) (*AttributeType, bool)
	NormalizeValue(nameOrOID, value string) string
}

// schemaResolver adapts a *Schema to Resolver.
type schemaResolver struct {
	schema *Schema
}

// NewResolver wraps s as a Resolver.
func NewResolver(s *Schema) Resolver {
	return &schemaResolver{schema: s}
}

func (r *schemaResolver) ResolveOID(nameOrOID string) (string, bool) {
	at := r.schema.GetAttributeType(nameOrOID)
	if at == nil {
		return "", false
	}
	return at.OID, true
}

func (r *schemaResolver) LookupAttributeType(nameOrOID string) (*AttributeType, bool) {
	at := r.schema.GetAttributeType(nameOrOID)
	if at == nil {
		return nil, false
	}
	return at, true
}

// NormalizeValue lowercases and trims whitespace by default; attribute
// types whose equality matching rule is a case-exact rule are left as-is.
// This mirrors the narrow normalizerMapping spec §3 calls for without
// pulling in a full matching-rule engine, which is out of this store's
// scope (attribute value comparison/search is a higher LDAP layer's job).
func (r *schemaResolver) NormalizeValue(nameOrOID, value string) string {
	at := r.schema.GetAttributeType(nameOrOID)
	trimmed := strings.TrimSpace(value)
	if at != nil && isCaseExact(at.Equality) {
		return trimmed
	}
	return strings.ToLower(trimmed)
}

func isCaseExact(equalityRule string) bool {
	return strings.Contains(strings.ToLower(equalityRule), "exact")
}
