package partition

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/partition/internal/dn"
	"github.com/oba-ldap/partition/internal/schema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	suffix, err := dn.Parse("dc=example,dc=com", nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "partition.prec")
	s, err := Open(Config{Path: path, Suffix: suffix}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addContextEntry(t *testing.T, s *Store) uint64 {
	t.Helper()
	id, err := s.Add("dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	return id
}

func TestOpenCreatesAndReopensStore(t *testing.T) {
	suffix, err := dn.Parse("dc=example,dc=com", nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "partition.prec")

	s, err := Open(Config{Path: path, Suffix: suffix}, nil, nil)
	require.NoError(t, err)
	id := addContextEntry(t, s)
	require.NoError(t, s.Close())

	reopened, err := Open(Config{Path: path, Suffix: suffix}, nil, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Lookup("dc=example,dc=com")
	require.NoError(t, err)
	assert.NotNil(t, got)

	entry, err := reopened.getEntryLocked(id)
	require.NoError(t, err)
	assert.True(t, entry.Has(entryUUIDAttr), "entryUUID synthesized on the context entry must survive reload")
}

func TestInstanceIDIsFreshPerOpen(t *testing.T) {
	suffix, err := dn.Parse("dc=example,dc=com", nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "partition.prec")

	s1, err := Open(Config{Path: path, Suffix: suffix}, nil, nil)
	require.NoError(t, err)
	id1 := s1.InstanceID()
	require.NoError(t, s1.Close())

	s2, err := Open(Config{Path: path, Suffix: suffix}, nil, nil)
	require.NoError(t, err)
	defer s2.Close()
	id2 := s2.InstanceID()

	assert.NotEmpty(t, id1)
	assert.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2)
}

func TestAddRequiresSuffixOrDescendant(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Add("dc=other", &Entry{})
	assert.ErrorIs(t, err, ErrAliasExternal)
}

func TestAddRejectsDuplicateAndMissingParent(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)

	_, err := s.Add("dc=example,dc=com", &Entry{})
	assert.ErrorIs(t, err, ErrEntryAlreadyExists)

	_, err = s.Add("cn=alice,ou=missing,dc=example,dc=com", &Entry{})
	assert.ErrorIs(t, err, ErrNoSuchParent)
}

func TestAddAndLookupChild(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)

	_, err := s.Add("ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	entry := &Entry{}
	entry.Put("cn", "Alice")
	entry.Put("sn", "Smith")
	id, err := s.Add("cn=alice,ou=people,dc=example,dc=com", entry)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := s.Lookup("cn=alice,ou=people,dc=example,dc=com")
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith"}, got.Get("sn"))
}

func TestChildrenAndSubtree(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=alice,ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=bob,ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	children, err := s.Children("dc=example,dc=com")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ou=people,dc=example,dc=com"}, children)

	subtree, err := s.Subtree("dc=example,dc=com")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"dc=example,dc=com",
		"ou=people,dc=example,dc=com",
		"cn=alice,ou=people,dc=example,dc=com",
		"cn=bob,ou=people,dc=example,dc=com",
	}, subtree)
}

func TestSubtreeDoesNotLeakSiblingWithOverlappingPrefix(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=eng,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("ou=engineering,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	subtree, err := s.Subtree("ou=eng,dc=example,dc=com")
	require.NoError(t, err)
	assert.Equal(t, []string{"ou=eng,dc=example,dc=com"}, subtree)
}

func TestDeleteRejectsNonLeafAndRemovesLeaf(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=alice,ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	err = s.Delete("ou=people,dc=example,dc=com")
	assert.ErrorIs(t, err, ErrNotLeaf)

	require.NoError(t, s.Delete("cn=alice,ou=people,dc=example,dc=com"))
	_, err = s.Lookup("cn=alice,ou=people,dc=example,dc=com")
	assert.ErrorIs(t, err, ErrNoSuchObject)

	require.NoError(t, s.Delete("ou=people,dc=example,dc=com"))
}

func TestModifyAddRemoveReplace(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	entry := &Entry{}
	entry.Put("cn", "Alice")
	_, err := s.Add("cn=alice,dc=example,dc=com", entry)
	require.NoError(t, err)

	require.NoError(t, s.Modify("cn=alice,dc=example,dc=com", []Mod{
		{Op: ModAdd, Type: "mail", Values: []string{"alice@example.com"}},
	}))
	got, err := s.Lookup("cn=alice,dc=example,dc=com")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, got.Get("mail"))

	require.NoError(t, s.Modify("cn=alice,dc=example,dc=com", []Mod{
		{Op: ModReplace, Type: "mail", Values: []string{"alicia@example.com"}},
	}))
	got, _ = s.Lookup("cn=alice,dc=example,dc=com")
	assert.Equal(t, []string{"alicia@example.com"}, got.Get("mail"))

	require.NoError(t, s.Modify("cn=alice,dc=example,dc=com", []Mod{
		{Op: ModRemove, Type: "mail"},
	}))
	got, _ = s.Lookup("cn=alice,dc=example,dc=com")
	assert.Empty(t, got.Get("mail"))
}

func TestRenameUpdatesDNAndAttributes(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	entry := &Entry{}
	entry.Put("cn", "Alice")
	_, err := s.Add("cn=alice,dc=example,dc=com", entry)
	require.NoError(t, err)

	require.NoError(t, s.Rename("cn=alice,dc=example,dc=com", "cn", "alicia"))

	_, err = s.Lookup("cn=alice,dc=example,dc=com")
	assert.ErrorIs(t, err, ErrNoSuchObject)

	got, err := s.Lookup("cn=alicia,dc=example,dc=com")
	require.NoError(t, err)
	assert.Equal(t, []string{"alicia"}, got.Get("cn"))
}

func TestRenameRecursesIntoDescendants(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=a,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=x,ou=a,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	require.NoError(t, s.Rename("ou=a,dc=example,dc=com", "ou", "b"))

	_, err = s.Lookup("cn=x,ou=a,dc=example,dc=com")
	assert.ErrorIs(t, err, ErrNoSuchObject)

	_, err = s.Lookup("cn=x,ou=b,dc=example,dc=com")
	assert.NoError(t, err, "descendant must be reachable under the renamed ancestor's new DN")
}

func TestRenameRejectsCollision(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("cn=alice,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=bob,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	err = s.Rename("cn=alice,dc=example,dc=com", "cn", "bob")
	assert.ErrorIs(t, err, ErrEntryAlreadyExists)
}

func TestMoveRewritesSubtreeAndRejectsCycles(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("ou=staff,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=alice,ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	require.NoError(t, s.Move("cn=alice,ou=people,dc=example,dc=com", "ou=staff,dc=example,dc=com"))

	_, err = s.Lookup("cn=alice,ou=people,dc=example,dc=com")
	assert.ErrorIs(t, err, ErrNoSuchObject)
	_, err = s.Lookup("cn=alice,ou=staff,dc=example,dc=com")
	assert.NoError(t, err)

	err = s.Move("ou=people,dc=example,dc=com", "ou=people,dc=example,dc=com")
	assert.Error(t, err)

	err = s.Move("dc=example,dc=com", "ou=staff,dc=example,dc=com")
	assert.ErrorIs(t, err, ErrHierarchyCycle)
}

func TestMoveRecomputesAliasScopeAgainstNewAncestorChain(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("ou=staff,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=real,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	aliasEntry := &Entry{}
	aliasEntry.Put(aliasedObjectNameAttr, "cn=real,dc=example,dc=com")
	aliasID, err := s.Add("cn=alias,ou=people,dc=example,dc=com", aliasEntry)
	require.NoError(t, err)

	targetID, ok := s.lookupID(mustParseDN(t, s, "cn=real,dc=example,dc=com"))
	require.True(t, ok)
	peopleID := mustAncestorID(t, s, "ou=people,dc=example,dc=com")
	assert.Contains(t, s.subAlias.Forward(peopleID), targetID, "alias's original parent must carry its subtree scope entry")
	assert.Contains(t, s.oneAlias.Forward(peopleID), targetID, "alias's immediate parent must carry its one-level scope entry")

	require.NoError(t, s.Move("cn=alias,ou=people,dc=example,dc=com", "ou=staff,dc=example,dc=com"))

	assert.NotContains(t, s.subAlias.Forward(peopleID), targetID, "the alias's old ancestor must no longer carry its scope entry after the move")

	staffID := mustAncestorID(t, s, "ou=staff,dc=example,dc=com")
	assert.Contains(t, s.subAlias.Forward(staffID), targetID, "the alias's new ancestor must carry its scope entry after the move")

	stillThere, ok := s.alias.ForwardOne(aliasID)
	require.True(t, ok)
	assert.Equal(t, targetID, stillThere, "the alias relation itself must survive the move")

	moved, err := s.Lookup("cn=alias,ou=staff,dc=example,dc=com")
	require.NoError(t, err)
	assert.Equal(t, "cn=real,dc=example,dc=com", moved.Get(aliasedObjectNameAttr)[0])
}

func TestAliasScopeIndicesSkipSiblingTargetForOneAlias(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=real,ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	aliasEntry := &Entry{}
	aliasEntry.Put(aliasedObjectNameAttr, "cn=real,ou=people,dc=example,dc=com")
	_, err = s.Add("cn=alias,ou=people,dc=example,dc=com", aliasEntry)
	require.NoError(t, err)

	targetID, ok := s.lookupID(mustParseDN(t, s, "cn=real,ou=people,dc=example,dc=com"))
	require.True(t, ok)
	peopleID := mustAncestorID(t, s, "ou=people,dc=example,dc=com")
	assert.NotContains(t, s.oneAlias.Forward(peopleID), targetID, "a target that is a sibling of its alias must not gain a one-level scope entry")
}

func TestAliasScopeIndicesSkipAncestorTargetForSubAlias(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("ou=sub,ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)
	_, err = s.Add("cn=real,ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	aliasEntry := &Entry{}
	aliasEntry.Put(aliasedObjectNameAttr, "cn=real,ou=people,dc=example,dc=com")
	_, err = s.Add("cn=alias,ou=sub,ou=people,dc=example,dc=com", aliasEntry)
	require.NoError(t, err)

	targetID, ok := s.lookupID(mustParseDN(t, s, "cn=real,ou=people,dc=example,dc=com"))
	require.True(t, ok)
	subID := mustAncestorID(t, s, "ou=sub,ou=people,dc=example,dc=com")
	peopleID := mustAncestorID(t, s, "ou=people,dc=example,dc=com")

	assert.Contains(t, s.subAlias.Forward(subID), targetID, "an ancestor the target is not nested under must still carry a subtree scope entry")
	assert.NotContains(t, s.subAlias.Forward(peopleID), targetID, "an ancestor the target is itself nested under must not carry a subtree scope entry")
}

func mustParseDN(t *testing.T, s *Store, raw string) dn.DN {
	t.Helper()
	d, err := s.ParseDN(raw)
	require.NoError(t, err)
	return d
}

func mustAncestorID(t *testing.T, s *Store, raw string) uint64 {
	t.Helper()
	id, ok := s.lookupID(mustParseDN(t, s, raw))
	require.True(t, ok)
	return id
}

func TestAliasResolutionRejectsExternalSelfChainAndCycle(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("cn=real,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	external := &Entry{}
	external.Put(aliasedObjectNameAttr, "dc=other")
	_, err = s.Add("cn=external,dc=example,dc=com", external)
	assert.ErrorIs(t, err, ErrAliasExternal)

	self := &Entry{}
	self.Put(aliasedObjectNameAttr, "cn=self,dc=example,dc=com")
	_, err = s.Add("cn=self,dc=example,dc=com", self)
	assert.ErrorIs(t, err, ErrAliasToSelf)

	missing := &Entry{}
	missing.Put(aliasedObjectNameAttr, "cn=ghost,dc=example,dc=com")
	_, err = s.Add("cn=dangling,dc=example,dc=com", missing)
	assert.ErrorIs(t, err, ErrAliasTargetMissing)

	firstAlias := &Entry{}
	firstAlias.Put(aliasedObjectNameAttr, "cn=real,dc=example,dc=com")
	_, err = s.Add("cn=alias1,dc=example,dc=com", firstAlias)
	require.NoError(t, err)

	chained := &Entry{}
	chained.Put(aliasedObjectNameAttr, "cn=alias1,dc=example,dc=com")
	_, err = s.Add("cn=alias2,dc=example,dc=com", chained)
	assert.ErrorIs(t, err, ErrAliasChain)
}

func TestAliasCycleRejectsTargetingAnAncestor(t *testing.T) {
	s := openTestStore(t)
	addContextEntry(t, s)
	_, err := s.Add("ou=people,dc=example,dc=com", &Entry{})
	require.NoError(t, err)

	cyclic := &Entry{}
	cyclic.Put(aliasedObjectNameAttr, "dc=example,dc=com")
	_, err = s.Add("cn=loop,ou=people,dc=example,dc=com", cyclic)
	assert.ErrorIs(t, err, ErrAliasCycle)
}

func TestIndexNamesAndStatsReflectConfiguredAttrs(t *testing.T) {
	suffix, err := dn.Parse("dc=example,dc=com", nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "partition.prec")
	s, err := Open(Config{Path: path, Suffix: suffix, IndexedAttrs: []string{"cn"}}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	entry := &Entry{}
	entry.Put("cn", "alice")
	_, err = s.Add("dc=example,dc=com", entry)
	require.NoError(t, err)

	assert.Contains(t, s.IndexNames(), "cn")
	count, err := s.IndexStats("cn")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.IndexStats("nonexistent")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestBoundSchemaResolverKeysIndexByOIDAndNormalizesValues(t *testing.T) {
	sch := schema.NewSchema()
	cn := schema.NewAttributeType("2.5.4.3", "cn")
	cn.SetMatchingRules("caseIgnoreMatch", "", "")
	sch.AddAttributeType(cn)
	resolver := schema.NewResolver(sch)

	suffix, err := dn.Parse("dc=example,dc=com", nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "partition.prec")
	s, err := Open(Config{Path: path, Suffix: suffix, IndexedAttrs: []string{"cn"}}, resolver, nil)
	require.NoError(t, err)
	defer s.Close()

	entry := &Entry{}
	entry.Put("cn", "Alice")
	_, err = s.Add("dc=example,dc=com", entry)
	require.NoError(t, err)

	assert.Contains(t, s.IndexNames(), "2.5.4.3", "a bound resolver must key the index by OID, not the bare attribute name")
	assert.NotContains(t, s.IndexNames(), "cn")

	upper := &Entry{}
	upper.Put("cn", "ALICE")
	_, err = s.Add("cn=dup,dc=example,dc=com", upper)
	require.NoError(t, err)

	idx, ok := s.userIndices["2.5.4.3"]
	require.True(t, ok)
	assert.Len(t, idx.ForwardLookup([]byte("alice")), 2, "caseIgnoreMatch normalization must fold both spellings to the same key")
}
