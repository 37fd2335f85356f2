package pindex

import (
	"sync"

	"tlog.app/go/errors"
)

// stringMultimap is an in-memory id -> {value} multimap, used as the
// reverse side of an Index: bptree.Table's leaves only carry uint64
// payloads, so the value side of the reverse direction (arbitrary
// attribute-value bytes) is kept here instead, whole-snapshotted to a
// single blob the same way internal/bptree snapshots its tree.
type stringMultimap struct {
	mu     sync.RWMutex
	values map[uint64][][]byte
}

func newStringMultimap() *stringMultimap {
	return &stringMultimap{values: make(map[uint64][][]byte)}
}

func (m *stringMultimap) add(id uint64, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.values[id] {
		if bytesEqual(v, value) {
			return
		}
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.values[id] = append(m.values[id], cp)
}

func (m *stringMultimap) remove(id uint64, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.values[id]
	for i, v := range list {
		if bytesEqual(v, value) {
			m.values[id] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(m.values[id]) == 0 {
		delete(m.values, id)
	}
}

func (m *stringMultimap) all(id uint64) [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.values[id]
	out := make([][]byte, len(src))
	copy(out, src)
	return out
}

func (m *stringMultimap) clear(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, id)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// snapshot serializes the whole multimap to a blob: entryCount, then for
// each id: id, valueCount, then each length-prefixed value.
func (m *stringMultimap) snapshot() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buf := make([]byte, 4, 256)
	entryCount := uint32(0)
	for id, values := range m.values {
		buf = appendU64(buf, id)
		buf = appendU32(buf, uint32(len(values)))
		for _, v := range values {
			buf = appendU32(buf, uint32(len(v)))
			buf = append(buf, v...)
		}
		entryCount++
	}
	putU32(buf[0:4], entryCount)
	return buf
}

// ErrCorruptMultimap is returned by restoreStringMultimap on a malformed
// blob.
var ErrCorruptMultimap = errors.New("pindex: corrupt reverse index snapshot")

func restoreStringMultimap(data []byte) (*stringMultimap, error) {
	m := newStringMultimap()
	if len(data) < 4 {
		return nil, errors.Wrap(ErrCorruptMultimap, "header")
	}
	entryCount := readU32(data[0:4])
	rest := data[4:]

	for i := uint32(0); i < entryCount; i++ {
		id, ok := takeU64(&rest)
		if !ok {
			return nil, errors.Wrap(ErrCorruptMultimap, "id")
		}
		valueCount, ok := takeU32(&rest)
		if !ok {
			return nil, errors.Wrap(ErrCorruptMultimap, "value count")
		}
		for j := uint32(0); j < valueCount; j++ {
			length, ok := takeU32(&rest)
			if !ok {
				return nil, errors.Wrap(ErrCorruptMultimap, "value length")
			}
			if uint32(len(rest)) < length {
				return nil, errors.Wrap(ErrCorruptMultimap, "value body")
			}
			m.add(id, rest[:length])
			rest = rest[length:]
		}
	}
	return m, nil
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func readU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func takeU32(rest *[]byte) (uint32, bool) {
	if len(*rest) < 4 {
		return 0, false
	}
	v := readU32((*rest)[:4])
	*rest = (*rest)[4:]
	return v, true
}

func takeU64(rest *[]byte) (uint64, bool) {
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
