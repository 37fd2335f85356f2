package pindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/partition/internal/record"
)

func TestRelationAddAndLookupBothDirections(t *testing.T) {
	r := NewRelation(4)
	require.NoError(t, r.Add(1, 10))
	require.NoError(t, r.Add(1, 11))
	require.NoError(t, r.Add(2, 10))

	assert.ElementsMatch(t, []uint64{10, 11}, r.Forward(1))
	assert.ElementsMatch(t, []uint64{1, 2}, r.Reverse(10))
}

func TestRelationDropRemovesBothDirections(t *testing.T) {
	r := NewRelation(4)
	require.NoError(t, r.Add(1, 10))
	require.NoError(t, r.Drop(1, 10))

	assert.Empty(t, r.Forward(1))
	assert.Empty(t, r.Reverse(10))
}

func TestRelationForwardOneIsSingleValued(t *testing.T) {
	r := NewRelation(4)
	require.NoError(t, r.Add(5, 99))
	target, ok := r.ForwardOne(5)
	require.True(t, ok)
	assert.Equal(t, uint64(99), target)

	_, ok = r.ForwardOne(6)
	assert.False(t, ok)
}

func TestRelationDropAllFromAndDropAllTo(t *testing.T) {
	r := NewRelation(4)
	require.NoError(t, r.Add(1, 100))
	require.NoError(t, r.Add(1, 101))
	require.NoError(t, r.Add(2, 100))

	require.NoError(t, r.DropAllFrom(1))
	assert.Empty(t, r.Forward(1))
	assert.Equal(t, []uint64{2}, r.Reverse(100))
	assert.Empty(t, r.Reverse(101))

	require.NoError(t, r.Add(1, 100))
	require.NoError(t, r.DropAllTo(100))
	assert.Empty(t, r.Reverse(100))
	assert.Empty(t, r.Forward(1))
	assert.Empty(t, r.Forward(2))
}

func TestRelationForwardKeysAreAscendingAndDistinct(t *testing.T) {
	r := NewRelation(4)
	require.NoError(t, r.Add(5, 1))
	require.NoError(t, r.Add(5, 2))
	require.NoError(t, r.Add(3, 1))
	require.NoError(t, r.Add(9, 1))

	assert.Equal(t, []uint64{3, 5, 9}, r.ForwardKeys())
}

func TestRelationSyncAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := NewRelation(4)
	require.NoError(t, r.Add(1, 10))
	require.NoError(t, r.Add(2, 10))

	mgr, err := record.Open(filepath.Join(dir, "rel.prec"), record.Options{})
	require.NoError(t, err)
	defer mgr.Close()
	rm := record.NewRecordManager(mgr)

	manifest, err := r.Sync(rm, RelationManifest{})
	require.NoError(t, err)
	require.NoError(t, rm.Commit())

	loaded, err := LoadRelation(rm, manifest, 4)
	require.NoError(t, err)

	assert.ElementsMatch(t, r.Forward(1), loaded.Forward(1))
	assert.ElementsMatch(t, r.Reverse(10), loaded.Reverse(10))
}
