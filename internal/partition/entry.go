package partition

import (
	"tlog.app/go/errors"
)

// Attribute is one ordered, possibly multi-valued attribute as stored in
// an Entry, keeping the user-provided attribute name the way it was
// supplied (spec §3's entries as "ordered multi-valued attribute bags").
type Attribute struct {
	Type   string
	Values []string
}

// Entry is one directory entry: its distinguished name and attribute bag.
// The DN itself is derived from the ndn/updn indices and the entry's own
// rdn attribute at lookup time; Entry only carries the attribute payload
// that is actually stored in the master table.
type Entry struct {
	Attributes []Attribute
}

// Get returns the values of attrType (case-insensitively matched against
// the stored type names), or nil if absent.
func (e *Entry) Get(attrType string) []string {
	for _, a := range e.Attributes {
		if equalFold(a.Type, attrType) {
			return a.Values
		}
	}
	return nil
}

// Has reports whether attrType is present with at least one value.
func (e *Entry) Has(attrType string) bool {
	return len(e.Get(attrType)) > 0
}

// Put replaces attrType's values wholesale, appending a new attribute if
// it was not already present.
func (e *Entry) Put(attrType string, values ...string) {
	for i, a := range e.Attributes {
		if equalFold(a.Type, attrType) {
			e.Attributes[i].Values = values
			return
		}
	}
	e.Attributes = append(e.Attributes, Attribute{Type: attrType, Values: values})
}

// Add appends values to attrType, creating it if absent.
func (e *Entry) Add(attrType string, values ...string) {
	for i, a := range e.Attributes {
		if equalFold(a.Type, attrType) {
			e.Attributes[i].Values = append(e.Attributes[i].Values, values...)
			return
		}
	}
	e.Attributes = append(e.Attributes, Attribute{Type: attrType, Values: values})
}

// Remove deletes either the whole attribute (no values given) or just the
// named values from it, dropping the attribute entirely if it ends up
// empty. Mirrors the REMOVE modification op of spec §4.4.
func (e *Entry) Remove(attrType string, values ...string) {
	for i, a := range e.Attributes {
		if !equalFold(a.Type, attrType) {
			continue
		}
		if len(values) == 0 {
			e.Attributes = append(e.Attributes[:i], e.Attributes[i+1:]...)
			return
		}
		kept := a.Values[:0:0]
		for _, v := range a.Values {
			drop := false
			for _, rm := range values {
				if v == rm {
					drop = true
					break
				}
			}
			if !drop {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			e.Attributes = append(e.Attributes[:i], e.Attributes[i+1:]...)
		} else {
			e.Attributes[i].Values = kept
		}
		return
	}
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	out := &Entry{Attributes: make([]Attribute, len(e.Attributes))}
	for i, a := range e.Attributes {
		vals := make([]string, len(a.Values))
		copy(vals, a.Values)
		out.Attributes[i] = Attribute{Type: a.Type, Values: vals}
	}
	return out
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// ErrCorruptEntry is returned by decodeEntry on a malformed blob.
var ErrCorruptEntry = errors.New("partition: corrupt entry record")

// encodeEntry serializes e to the byte format stored in the master table's
// record manager: attribute count, then for each attribute its type and
// value list, all length-prefixed.
func encodeEntry(e *Entry) []byte {
	buf := make([]byte, 4, 256)
	putU32(buf[0:4], uint32(len(e.Attributes)))
	for _, a := range e.Attributes {
		buf = appendString(buf, a.Type)
		buf = appendU32(buf, uint32(len(a.Values)))
		for _, v := range a.Values {
			buf = appendString(buf, v)
		}
	}
	return buf
}

func decodeEntry(data []byte) (*Entry, error) {
	if len(data) < 4 {
		return nil, errors.Wrap(ErrCorruptEntry, "header")
	}
	attrCount := readU32(data[0:4])
	rest := data[4:]

	e := &Entry{Attributes: make([]Attribute, 0, attrCount)}
	for i := uint32(0); i < attrCount; i++ {
		typ, ok := takeString(&rest)
		if !ok {
			return nil, errors.Wrap(ErrCorruptEntry, "attribute type")
		}
		valueCount, ok := takeU32(&rest)
		if !ok {
			return nil, errors.Wrap(ErrCorruptEntry, "value count")
		}
		values := make([]string, 0, valueCount)
		for j := uint32(0); j < valueCount; j++ {
			v, ok := takeString(&rest)
			if !ok {
				return nil, errors.Wrap(ErrCorruptEntry, "value")
			}
			values = append(values, v)
		}
		e.Attributes = append(e.Attributes, Attribute{Type: typ, Values: values})
	}
	return e, nil
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func takeString(rest *[]byte) (string, bool) {
	n, ok := takeU32(rest)
	if !ok {
		return "", false
	}
	if uint32(len(*rest)) < n {
		return "", false
	}
	s := string((*rest)[:n])
	*rest = (*rest)[n:]
	return s, true
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
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
