package bptree

import (
	"tlog.app/go/errors"

	"github.com/oba-ldap/partition/internal/record"
)

// Snapshot serializes the table's full (key, {ids}) contents to a single
// blob, in ascending key order, by walking the leaf linked list. This is
// the whole-structure-serialize approach grounded on the teacher's
// internal/storage/radix/cache.go SaveCache (see node.go's package doc):
// rather than pickle internal node pointers, the tree is rebuilt on load by
// re-inserting the leaves' entries, which also has the useful side effect
// of repacking the tree densely.
func (t *Table) Snapshot() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	buf := make([]byte, 4, 256)
	entryCount := 0

	for leaf := t.firstLeaf(); leaf != nil; leaf = leaf.next {
		for i, key := range leaf.keys {
			ids := leaf.values[i].all()
			buf = appendUint32(buf, uint32(len(key)))
			buf = append(buf, key...)
			buf = appendUint32(buf, uint32(len(ids)))
			for _, id := range ids {
				buf = appendUint64(buf, id)
			}
			entryCount++
		}
	}

	putUint32(buf[0:4], uint32(entryCount))
	return buf
}

// ErrCorruptSnapshot is returned by NewTableFromSnapshot (and so by
// LoadFrom) when the blob is truncated or malformed.
var ErrCorruptSnapshot = errors.New("bptree: corrupt snapshot")

// NewTableFromSnapshot rebuilds a Table from a blob produced by Snapshot.
func NewTableFromSnapshot(data []byte, cmp Comparator, duplicateLimit int) (*Table, error) {
	t := NewTable(cmp, duplicateLimit)
	if len(data) < 4 {
		return nil, errors.Wrap(ErrCorruptSnapshot, "header")
	}
	entryCount, rest := readUint32(data[0:4]), data[4:]

	for i := uint32(0); i < entryCount; i++ {
		keyLen, ok := takeUint32(&rest)
		if !ok {
			return nil, errors.Wrap(ErrCorruptSnapshot, "key length")
		}
		if uint32(len(rest)) < keyLen {
			return nil, errors.Wrap(ErrCorruptSnapshot, "key body")
		}
		key := rest[:keyLen]
		rest = rest[keyLen:]

		idCount, ok := takeUint32(&rest)
		if !ok {
			return nil, errors.Wrap(ErrCorruptSnapshot, "id count")
		}
		for j := uint32(0); j < idCount; j++ {
			id, ok := takeUint64(&rest)
			if !ok {
				return nil, errors.Wrap(ErrCorruptSnapshot, "id body")
			}
			if _, err := t.Add(key, id); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// SaveTo snapshots t and writes it through rm, either updating an existing
// blob at id or inserting a fresh one when id is zero.
func SaveTo(t *Table, rm *record.RecordManager, id record.RecID) (record.RecID, error) {
	blob := t.Snapshot()
	if id == 0 {
		return rm.Insert(blob)
	}
	if err := rm.Update(id, blob); err != nil {
		return 0, err
	}
	return id, nil
}

// LoadFrom fetches the blob at id through rm and rebuilds a Table from it.
func LoadFrom(rm *record.RecordManager, id record.RecID, cmp Comparator, duplicateLimit int) (*Table, error) {
	blob, err := rm.Fetch(id)
	if err != nil {
		return nil, err
	}
	return NewTableFromSnapshot(blob, cmp, duplicateLimit)
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func takeUint32(rest *[]byte) (uint32, bool) {
	if len(*rest) < 4 {
		return 0, false
	}
	v := readUint32((*rest)[:4])
	*rest = (*rest)[4:]
	return v, true
}

func takeUint64(rest *[]byte) (uint64, bool) {
	if len(*rest) < 8 {
		return 0, false
	}
	b := (*rest)[:8]
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	*rest = (*rest)[8:]
	return v, true
}
