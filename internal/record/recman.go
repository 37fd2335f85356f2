package record

import "tlog.app/go/errors"

// RecID identifies a variable-length blob stored by a RecordManager. It is
// the id of the blob's head page and is stable across Update calls; once
// Delete frees that page, a later Insert may hand out the same RecID.
type RecID uint64

// RecordManager layers variable-length blob storage on top of a page
// Manager via a head-page-plus-overflow-chain encoding: the head page
// carries the blob's total length and as much payload as fits, chaining to
// overflow pages for the remainder. This is the "record manager" of spec
// §4.1/§2. The store coordinator's master table keeps each entry's RecID
// as its value and fetches the entry blob through this layer; B+tree
// tables (internal/bptree) are stored through it as whole snapshots.
type RecordManager struct {
	pages *Manager
}

// NewRecordManager wraps an already-open page Manager.
func NewRecordManager(pages *Manager) *RecordManager {
	return &RecordManager{pages: pages}
}

// Insert stores blob and returns a fresh RecID.
func (rm *RecordManager) Insert(blob []byte) (RecID, error) {
	headID, err := rm.pages.AllocatePage(PageTypeRecord)
	if err != nil {
		return 0, err
	}
	head := NewPage(headID, PageTypeRecord)
	if err := rm.writeChain(head, blob, 0); err != nil {
		return 0, err
	}
	return RecID(headID), nil
}

// Fetch returns the blob stored under id.
func (rm *RecordManager) Fetch(id RecID) ([]byte, error) {
	head, err := rm.pages.ReadPage(PageID(id))
	if err != nil {
		return nil, err
	}
	total := totalLength(head)
	out := make([]byte, 0, total)

	headPayload := head.Data[12:]
	n := int(total)
	if n > len(headPayload) {
		n = len(headPayload)
	}
	out = append(out, headPayload[:n]...)

	cur := nextPageID(head)
	for cur != 0 && len(out) < int(total) {
		page, err := rm.pages.ReadPage(cur)
		if err != nil {
			return nil, err
		}
		payload := page.Data[8:]
		remaining := int(total) - len(out)
		if remaining > len(payload) {
			remaining = len(payload)
		}
		out = append(out, payload[:remaining]...)
		cur = nextPageID(page)
	}

	if len(out) != int(total) {
		return nil, errors.Wrap(ErrTruncatedRecord, "recid %d", id)
	}
	return out, nil
}

// ErrTruncatedRecord is returned when a record's overflow chain ends before
// its declared length is satisfied — an on-disk consistency failure.
var ErrTruncatedRecord = errors.New("record: truncated overflow chain")

// Update rewrites the blob stored under id, keeping the same RecID. Old
// overflow pages are freed and a new chain is built for the new content.
func (rm *RecordManager) Update(id RecID, blob []byte) error {
	head, err := rm.pages.ReadPage(PageID(id))
	if err != nil {
		return err
	}
	oldOverflow := nextPageID(head)
	if err := rm.freeChainFrom(oldOverflow); err != nil {
		return err
	}
	head.Header.PageType = PageTypeRecord
	return rm.writeChain(head, blob, 0)
}

// Delete frees the head page and every overflow page in its chain.
func (rm *RecordManager) Delete(id RecID) error {
	head, err := rm.pages.ReadPage(PageID(id))
	if err != nil {
		return err
	}
	overflow := nextPageID(head)
	if err := rm.freeChainFrom(overflow); err != nil {
		return err
	}
	return rm.pages.FreePage(PageID(id))
}

// Commit flushes pending pages to disk (spec §4.1's `commit()`).
func (rm *RecordManager) Commit() error {
	return rm.pages.Sync()
}

func (rm *RecordManager) writeChain(head *Page, blob []byte, _ int) error {
	setTotalLength(head, uint32(len(blob)))

	headPayload := head.Data[12:]
	n := copy(headPayload, blob)
	for i := n; i < len(headPayload); i++ {
		headPayload[i] = 0
	}
	remaining := blob[n:]

	var prevID PageID
	var firstOverflow PageID
	var prevPage *Page

	for len(remaining) > 0 {
		id, err := rm.pages.AllocatePage(PageTypeOverflow)
		if err != nil {
			return err
		}
		page := NewPage(id, PageTypeOverflow)
		payload := page.Data[8:]
		n := copy(payload, remaining)
		for i := n; i < len(payload); i++ {
			payload[i] = 0
		}
		remaining = remaining[n:]

		if prevPage == nil {
			firstOverflow = id
		} else {
			setNextPageID(prevPage, id)
			if err := rm.pages.WritePage(prevPage); err != nil {
				return err
			}
		}
		prevPage = page
		prevID = id
	}

	if prevPage != nil {
		setNextPageID(prevPage, 0)
		if err := rm.pages.WritePage(prevPage); err != nil {
			return err
		}
	}
	_ = prevID

	setNextPageID(head, firstOverflow)
	return rm.pages.WritePage(head)
}

func (rm *RecordManager) freeChainFrom(first PageID) error {
	cur := first
	for cur != 0 {
		page, err := rm.pages.ReadPage(cur)
		if err != nil {
			return err
		}
		next := nextPageID(page)
		if err := rm.pages.FreePage(cur); err != nil {
			return err
		}
		cur = next
	}
	return nil
}
