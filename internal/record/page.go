// Package record implements the partition's record manager: a page-level
// persistent key-to-byte-blob store with an LRU page cache and
// explicit commit. It is the lowest layer of the storage stack described by
// the store coordinator in internal/partition.
package record

import (
	"encoding/binary"
	"hash/crc32"

	"tlog.app/go/errors"
)

// PageSize is the size in bytes of every page in a record file.
const PageSize = 4096

// PageHeaderSize is the size of the fixed header at the start of every page.
const PageHeaderSize = 16

// PageType distinguishes how a page's data area is interpreted.
type PageType uint8

const (
	// PageTypeFree marks an unused page sitting on the free list.
	PageTypeFree PageType = iota
	// PageTypeRecord marks the head page of a variable-length record blob.
	PageTypeRecord
	// PageTypeOverflow marks a continuation page chained off a record's head
	// page when the blob does not fit in a single page.
	PageTypeOverflow
)

func (pt PageType) String() string {
	switch pt {
	case PageTypeFree:
		return "Free"
	case PageTypeRecord:
		return "Record"
	case PageTypeOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// PageFlag holds boolean bits about a page.
type PageFlag uint8

const (
	// PageFlagDirty marks a page modified since it was last written.
	PageFlagDirty PageFlag = 1 << iota
)

// PageID identifies a page within a record file. PageID 0 is the file
// header and is never a valid record/data page.
type PageID uint64

// PageHeader is the first PageHeaderSize bytes of every page.
type PageHeader struct {
	PageID    PageID
	PageType  PageType
	Flags     PageFlag
	ItemCount uint16 // number of page ids stored on a free-list page
	FreeSpace uint16
	Checksum  uint16
}

// Page-level errors.
var (
	ErrInvalidPageSize = errors.New("record: invalid page buffer size")
	ErrInvalidChecksum = errors.New("record: page checksum mismatch")
)

// NewPageHeader builds a header for a freshly allocated page.
func NewPageHeader(id PageID, pt PageType) *PageHeader {
	return &PageHeader{
		PageID:    id,
		PageType:  pt,
		FreeSpace: PageSize - PageHeaderSize,
	}
}

func (h *PageHeader) serializeInto(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.PageID))
	buf[8] = byte(h.PageType)
	buf[9] = byte(h.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], h.ItemCount)
	binary.LittleEndian.PutUint16(buf[12:14], h.FreeSpace)
	binary.LittleEndian.PutUint16(buf[14:16], h.Checksum)
}

func (h *PageHeader) deserializeFrom(buf []byte) {
	h.PageID = PageID(binary.LittleEndian.Uint64(buf[0:8]))
	h.PageType = PageType(buf[8])
	h.Flags = PageFlag(buf[9])
	h.ItemCount = binary.LittleEndian.Uint16(buf[10:12])
	h.FreeSpace = binary.LittleEndian.Uint16(buf[12:14])
	h.Checksum = binary.LittleEndian.Uint16(buf[14:16])
}

// Page is a complete on-disk page: fixed header plus a PageSize-PageHeaderSize
// data area.
type Page struct {
	Header PageHeader
	Data   []byte
}

// NewPage allocates a zeroed page of the given type.
func NewPage(id PageID, pt PageType) *Page {
	return &Page{
		Header: *NewPageHeader(id, pt),
		Data:   make([]byte, PageSize-PageHeaderSize),
	}
}

// Serialize renders the page to a PageSize-byte buffer, stamping a fresh
// checksum over the data area.
func (p *Page) Serialize() []byte {
	buf := make([]byte, PageSize)
	p.Header.Checksum = p.checksum()
	p.Header.serializeInto(buf[:PageHeaderSize])
	copy(buf[PageHeaderSize:], p.Data)
	return buf
}

// Deserialize reads a page from a PageSize-byte buffer and validates its
// checksum.
func (p *Page) Deserialize(buf []byte) error {
	if len(buf) < PageSize {
		return ErrInvalidPageSize
	}
	p.Header.deserializeFrom(buf[:PageHeaderSize])
	if p.Data == nil || len(p.Data) < PageSize-PageHeaderSize {
		p.Data = make([]byte, PageSize-PageHeaderSize)
	}
	copy(p.Data, buf[PageHeaderSize:PageSize])
	if p.Header.Checksum != p.checksum() {
		return errors.Wrap(ErrInvalidChecksum, "page %d", p.Header.PageID)
	}
	return nil
}

func (p *Page) checksum() uint16 {
	return uint16(crc32.ChecksumIEEE(p.Data) & 0xFFFF)
}

// dataPayloadSize is the number of bytes of a record blob that a record head
// page can hold directly: the data area minus the overflow-chain pointer and
// the total-length field.
const dataPayloadSize = PageSize - PageHeaderSize - 8 - 4

// overflowPayloadSize is the number of bytes of a record blob that a single
// overflow page can hold: the data area minus its own chain pointer.
const overflowPayloadSize = PageSize - PageHeaderSize - 8

func nextPageID(p *Page) PageID {
	return PageID(binary.LittleEndian.Uint64(p.Data[0:8]))
}

func setNextPageID(p *Page, next PageID) {
	binary.LittleEndian.PutUint64(p.Data[0:8], uint64(next))
}

func totalLength(p *Page) uint32 {
	return binary.LittleEndian.Uint32(p.Data[8:12])
}

func setTotalLength(p *Page, n uint32) {
	binary.LittleEndian.PutUint32(p.Data[8:12], n)
}
