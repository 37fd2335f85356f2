package record

import (
	"io"
	"os"
	"sync"

	"tlog.app/go/errors"
)

// Options configures a Manager.
type Options struct {
	// CacheSize is the number of pages kept resident in the LRU page cache
	// (spec §6 "cacheSize", default 10000).
	CacheSize int
	// SyncOnWrite commits to disk after every WritePage/FreePage instead of
	// leaving durability to an explicit Sync call (spec §4.1, §6).
	SyncOnWrite bool
	// ReadOnly opens the file without allowing mutation.
	ReadOnly bool
}

// DefaultCacheSize matches spec §6's stated default for the record manager's
// page cache.
const DefaultCacheSize = 10000

func (o Options) withDefaults() Options {
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	return o
}

// Manager is the page-level record manager described in spec §4.1: a single
// file of fixed-size pages with a free list, an LRU page cache, and explicit
// commit. It is deliberately simpler than the teacher's storage.PageManager
// — no WAL, no MVCC — because spec §4.1/§5 disables multi-statement
// transactions and asks for sync-on-write or explicit sync as the only
// durability mechanism, matching the JDBM original's
// recman.disableTransactions() posture.
type Manager struct {
	mu          sync.RWMutex
	file        *os.File
	path        string
	header      *fileHeader
	freeList    *freeList
	cache       *pageCache
	readOnly    bool
	syncOnWrite bool
	closed      bool
}

// Manager errors.
var (
	ErrClosed        = errors.New("record: manager is closed")
	ErrReadOnly      = errors.New("record: manager is read-only")
	ErrInvalidPageID = errors.New("record: invalid page id")
	ErrPageOutOfRange = errors.New("record: page id out of range")
)

// Open opens or creates a record file at path.
func Open(path string, opts Options) (*Manager, error) {
	opts = opts.withDefaults()

	m := &Manager{
		path:        path,
		freeList:    newFreeList(),
		cache:       newPageCache(opts.CacheSize),
		readOnly:    opts.ReadOnly,
		syncOnWrite: opts.SyncOnWrite,
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil

	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	} else if !exists {
		flags |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "record: open %s", path)
	}
	m.file = f

	if exists {
		if err := m.loadExisting(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := m.initNew(); err != nil {
			f.Close()
			os.Remove(path)
			return nil, err
		}
	}

	return m, nil
}

func (m *Manager) loadExisting() error {
	buf := make([]byte, FileHeaderSize)
	if _, err := m.file.ReadAt(buf, 0); err != nil {
		return errors.Wrap(err, "record: read header")
	}
	h := &fileHeader{}
	if err := h.deserialize(buf); err != nil {
		return err
	}
	m.header = h

	ids, err := m.readFreeListChain(h.FreeListHead)
	if err != nil {
		return err
	}
	m.freeList.load(ids)
	return nil
}

func (m *Manager) readFreeListChain(head PageID) ([]PageID, error) {
	var ids []PageID
	cur := head
	for cur != 0 {
		page, err := m.readPageRaw(cur)
		if err != nil {
			return nil, err
		}
		n := int(page.Header.ItemCount)
		for i := 0; i < n; i++ {
			off := 8 + i*8
			ids = append(ids, PageID(leUint64(page.Data[off:off+8])))
		}
		cur = nextPageID(page)
	}
	return ids, nil
}

func (m *Manager) initNew() error {
	m.header = newFileHeader()
	if err := m.writeHeaderLocked(); err != nil {
		return err
	}
	if err := m.file.Truncate(PageSize); err != nil {
		return errors.Wrap(err, "record: truncate")
	}
	return m.file.Sync()
}

func (m *Manager) writeHeaderLocked() error {
	_, err := m.file.WriteAt(m.header.serialize(), 0)
	return err
}

// AllocatePage reserves a fresh page, reusing a freed one when available.
func (m *Manager) AllocatePage(pt PageType) (PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if m.readOnly {
		return 0, ErrReadOnly
	}

	if id, ok := m.freeList.pop(); ok {
		page := NewPage(id, pt)
		if err := m.writePageLocked(page); err != nil {
			m.freeList.push(id)
			return 0, err
		}
		return id, nil
	}

	id := PageID(m.header.TotalPages)
	m.header.TotalPages++
	if err := m.file.Truncate(int64(m.header.TotalPages) * PageSize); err != nil {
		return 0, errors.Wrap(err, "record: grow file")
	}
	page := NewPage(id, pt)
	if err := m.writePageLocked(page); err != nil {
		return 0, err
	}
	return id, nil
}

// FreePage returns a page to the free list.
func (m *Manager) FreePage(id PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	if id == 0 {
		return ErrInvalidPageID
	}
	page := NewPage(id, PageTypeFree)
	if err := m.writePageLocked(page); err != nil {
		return err
	}
	m.cache.remove(id)
	m.freeList.push(id)
	return nil
}

// ReadPage returns a page, consulting the LRU cache first.
func (m *Manager) ReadPage(id PageID) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if cached, ok := m.cache.get(id); ok {
		return cached, nil
	}
	page, err := m.readPageRaw(id)
	if err != nil {
		return nil, err
	}
	m.cachePutLocked(page)
	return page, nil
}

func (m *Manager) readPageRaw(id PageID) (*Page, error) {
	if id == 0 {
		return nil, ErrInvalidPageID
	}
	if uint64(id) >= m.header.TotalPages {
		return nil, ErrPageOutOfRange
	}
	buf := make([]byte, PageSize)
	if _, err := m.file.ReadAt(buf, int64(id)*PageSize); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "record: read page %d", id)
	}
	page := &Page{}
	if err := page.Deserialize(buf); err != nil {
		return nil, err
	}
	return page, nil
}

// WritePage writes a page straight through to the file and caches it with
// its dirty flag cleared.
func (m *Manager) WritePage(page *Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	return m.writePageLocked(page)
}

func (m *Manager) writePageLocked(page *Page) error {
	if uint64(page.Header.PageID) >= m.header.TotalPages {
		return ErrPageOutOfRange
	}
	buf := page.Serialize()
	if _, err := m.file.WriteAt(buf, int64(page.Header.PageID)*PageSize); err != nil {
		return errors.Wrap(err, "record: write page %d", page.Header.PageID)
	}
	page.Header.Flags &^= PageFlagDirty
	m.cachePutLocked(page)
	if m.syncOnWrite {
		return m.file.Sync()
	}
	return nil
}

func (m *Manager) cachePutLocked(page *Page) {
	evicted, had := m.cache.put(page)
	_ = evicted
	_ = had // pages are write-through, nothing further to flush on eviction
}

// Sync flushes the free list and header and fsyncs the underlying file.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return m.file.Sync()
	}
	if err := m.persistFreeListLocked(); err != nil {
		return err
	}
	if err := m.writeHeaderLocked(); err != nil {
		return err
	}
	return m.file.Sync()
}

func (m *Manager) persistFreeListLocked() error {
	free := m.freeList.all()
	if len(free) == 0 {
		m.header.FreeListHead = 0
		return nil
	}

	const perPage = (PageSize - PageHeaderSize - 8) / 8
	numPages := (len(free) + perPage - 1) / perPage

	base := m.header.TotalPages
	m.header.TotalPages += uint64(numPages)
	if err := m.file.Truncate(int64(m.header.TotalPages) * PageSize); err != nil {
		return errors.Wrap(err, "record: grow for free list")
	}

	var prev PageID
	for i := numPages - 1; i >= 0; i-- {
		id := PageID(base) + PageID(i)
		page := NewPage(id, PageTypeFree)
		start := i * perPage
		end := start + perPage
		if end > len(free) {
			end = len(free)
		}
		for j, pageID := range free[start:end] {
			off := 8 + j*8
			putLeUint64(page.Data[off:off+8], uint64(pageID))
		}
		page.Header.ItemCount = uint16(end - start)
		setNextPageID(page, prev)
		if err := m.writePageLocked(page); err != nil {
			return err
		}
		prev = id
	}
	m.header.FreeListHead = prev
	return nil
}

// Close flushes and closes the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	if !m.readOnly {
		if err := m.persistFreeListLocked(); err != nil {
			m.file.Close()
			return err
		}
		if err := m.writeHeaderLocked(); err != nil {
			m.file.Close()
			return err
		}
		if err := m.file.Sync(); err != nil {
			m.file.Close()
			return err
		}
	}
	return m.file.Close()
}

// NextRecordID atomically allocates the next record id from the header's
// persisted counter (backs the master table's id allocator, spec §4.2).
func (m *Manager) NextRecordID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.header.NextRecordID++
	return m.header.NextRecordID
}

// CurrentRecordID reports the last allocated id without advancing it.
func (m *Manager) CurrentRecordID() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.header.NextRecordID
}

// RootManifest returns the head page id of the store coordinator's root
// manifest blob, or 0 if none has been written yet.
func (m *Manager) RootManifest() RecID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return RecID(m.header.RootManifest)
}

// SetRootManifest records id as the store coordinator's root manifest
// location. Persisted on the next Sync/Close.
func (m *Manager) SetRootManifest(id RecID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.header.RootManifest = PageID(id)
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLeUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
