package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPutGetHasCaseInsensitive(t *testing.T) {
	e := &Entry{}
	e.Put("CN", "Alice")
	assert.True(t, e.Has("cn"))
	assert.Equal(t, []string{"Alice"}, e.Get("cn"))

	e.Put("cn", "Bob")
	assert.Equal(t, []string{"Bob"}, e.Get("cn"), "Put replaces rather than appends")
}

func TestEntryAddAppends(t *testing.T) {
	e := &Entry{}
	e.Add("mail", "a@example.com")
	e.Add("mail", "b@example.com")
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, e.Get("mail"))
}

func TestEntryRemoveWholeAttributeAndNamedValues(t *testing.T) {
	e := &Entry{}
	e.Add("mail", "a@example.com", "b@example.com")

	e.Remove("mail", "a@example.com")
	assert.Equal(t, []string{"b@example.com"}, e.Get("mail"))

	e.Remove("mail")
	assert.False(t, e.Has("mail"))
}

func TestEntryRemoveAllNamedValuesDropsAttribute(t *testing.T) {
	e := &Entry{}
	e.Add("mail", "a@example.com")
	e.Remove("mail", "a@example.com")
	assert.False(t, e.Has("mail"))
}

func TestEntryCloneIsDeep(t *testing.T) {
	e := &Entry{}
	e.Add("mail", "a@example.com")
	clone := e.Clone()
	clone.Add("mail", "b@example.com")

	assert.Equal(t, []string{"a@example.com"}, e.Get("mail"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, clone.Get("mail"))
}

func TestEncodeDecodeEntryRoundTrip(t *testing.T) {
	e := &Entry{}
	e.Put("cn", "Alice")
	e.Put("mail", "a@example.com", "b@example.com")

	blob := encodeEntry(e)
	decoded, err := decodeEntry(blob)
	require.NoError(t, err)

	assert.Equal(t, e.Get("cn"), decoded.Get("cn"))
	assert.Equal(t, e.Get("mail"), decoded.Get("mail"))
}

func TestDecodeEntryRejectsCorruptData(t *testing.T) {
	_, err := decodeEntry([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptEntry)
}
