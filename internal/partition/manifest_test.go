package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/partition/internal/pindex"
	"github.com/oba-ldap/partition/internal/record"
)

func TestRootManifestEncodeDecodeRoundTrip(t *testing.T) {
	m := &rootManifest{
		Master:      record.RecID(7),
		NextEntryID: 42,
		NDN:         pindex.Manifest{Forward: 1, Reverse: 2},
		UPDN:        pindex.Manifest{Forward: 3, Reverse: 4},
		Hierarchy:   pindex.RelationManifest{Forward: 5, Reverse: 6},
		Presence:    pindex.Manifest{Forward: 7, Reverse: 8},
		Alias:       pindex.RelationManifest{Forward: 9, Reverse: 10},
		OneAlias:    pindex.RelationManifest{Forward: 11, Reverse: 12},
		SubAlias:    pindex.RelationManifest{Forward: 13, Reverse: 14},
		UserIndices: map[string]pindex.Manifest{
			"cn": {Forward: 15, Reverse: 16},
			"sn": {Forward: 17, Reverse: 18},
		},
	}

	blob := m.encode()
	decoded, err := decodeRootManifest(blob)
	require.NoError(t, err)

	assert.Equal(t, m.Master, decoded.Master)
	assert.Equal(t, m.NextEntryID, decoded.NextEntryID)
	assert.Equal(t, m.NDN, decoded.NDN)
	assert.Equal(t, m.UPDN, decoded.UPDN)
	assert.Equal(t, m.Hierarchy, decoded.Hierarchy)
	assert.Equal(t, m.Presence, decoded.Presence)
	assert.Equal(t, m.Alias, decoded.Alias)
	assert.Equal(t, m.OneAlias, decoded.OneAlias)
	assert.Equal(t, m.SubAlias, decoded.SubAlias)
	assert.Equal(t, m.UserIndices, decoded.UserIndices)
}

func TestDecodeRootManifestRejectsTruncatedData(t *testing.T) {
	_, err := decodeRootManifest([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptManifest)
}
