package bptree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSeededTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable(CompareBytes, 4)
	for i := 0; i < 50; i++ {
		_, err := tbl.Add(key(fmt.Sprintf("k-%03d", i)), uint64(i))
		require.NoError(t, err)
	}
	_, err := tbl.Add(key("k-010"), 999)
	require.NoError(t, err)
	return tbl
}

func TestCursorFirstAndNextVisitEveryEntry(t *testing.T) {
	tbl := buildSeededTable(t)

	c := tbl.NewCursor()
	require.True(t, c.First())

	var keys []string
	var count int
	for c.Valid() {
		keys = append(keys, string(c.Key()))
		count++
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, 51, count, "cursor must visit every (key, id) pair, including duplicates within a key")

	for i := 1; i < len(keys); i++ {
		assert.LessOrEqual(t, keys[i-1], keys[i], "cursor must advance in ascending key order")
	}
}

func TestCursorSeekPositionsAtOrAfterTarget(t *testing.T) {
	tbl := buildSeededTable(t)

	c := tbl.NewCursor()
	require.True(t, c.Seek(key("k-025")))
	assert.Equal(t, "k-025", string(c.Key()))

	c2 := tbl.NewCursor()
	require.True(t, c2.Seek(key("k-025a")))
	assert.Equal(t, "k-026", string(c2.Key()), "seek of a key between two entries lands on the next key")
}

func TestCursorWalksDuplicateIDsWithinAKey(t *testing.T) {
	tbl := buildSeededTable(t)

	c := tbl.NewCursor()
	require.True(t, c.Seek(key("k-010")))
	assert.Equal(t, "k-010", string(c.Key()))
	first := c.ID()
	require.True(t, c.Next())
	assert.Equal(t, "k-010", string(c.Key()), "Next within a duplicate key must stay on the same key")
	second := c.ID()
	assert.NotEqual(t, first, second)
}

func TestCursorSeekPastEndIsInvalid(t *testing.T) {
	tbl := buildSeededTable(t)
	c := tbl.NewCursor()
	assert.False(t, c.Seek(key("zzz")))
	assert.False(t, c.Valid())
}
