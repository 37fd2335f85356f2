package record

import (
	"encoding/binary"
	"hash/crc32"

	"tlog.app/go/errors"
)

// FileHeaderSize is the size of the file header, which occupies page 0.
const FileHeaderSize = PageSize

var fileMagic = [4]byte{'P', 'R', 'E', 'C'}

// CurrentVersion is the file format version written by this package.
const CurrentVersion uint32 = 1

// File header errors.
var (
	ErrInvalidMagic       = errors.New("record: not a partition record file")
	ErrUnsupportedVersion = errors.New("record: unsupported file format version")
	ErrHeaderChecksum     = errors.New("record: file header checksum mismatch")
)

// fileHeader is the first page of a record file: magic, version, page
// count, free-list head, next-record-id counter, a root manifest pointer,
// and a checksum.
type fileHeader struct {
	Magic        [4]byte
	Version      uint32
	TotalPages   uint64
	FreeListHead PageID
	NextRecordID uint64 // property sidecar: monotonically increasing id allocator
	RootManifest PageID // head page of the store coordinator's root manifest blob, 0 until first Sync
	Checksum     uint32
}

func newFileHeader() *fileHeader {
	return &fileHeader{
		Magic:      fileMagic,
		Version:    CurrentVersion,
		TotalPages: 1,
	}
}

func (h *fileHeader) serialize() []byte {
	buf := make([]byte, FileHeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint64(buf[8:16], h.TotalPages)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.FreeListHead))
	binary.LittleEndian.PutUint64(buf[24:32], h.NextRecordID)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.RootManifest))
	h.Checksum = crc32.ChecksumIEEE(buf[0:40])
	binary.LittleEndian.PutUint32(buf[40:44], h.Checksum)
	return buf
}

func (h *fileHeader) deserialize(buf []byte) error {
	copy(h.Magic[:], buf[0:4])
	if h.Magic != fileMagic {
		return ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	if h.Version == 0 || h.Version > CurrentVersion {
		return ErrUnsupportedVersion
	}
	h.TotalPages = binary.LittleEndian.Uint64(buf[8:16])
	h.FreeListHead = PageID(binary.LittleEndian.Uint64(buf[16:24]))
	h.NextRecordID = binary.LittleEndian.Uint64(buf[24:32])
	h.RootManifest = PageID(binary.LittleEndian.Uint64(buf[32:40]))
	h.Checksum = binary.LittleEndian.Uint32(buf[40:44])
	if h.Checksum != crc32.ChecksumIEEE(buf[0:40]) {
		return ErrHeaderChecksum
	}
	return nil
}
