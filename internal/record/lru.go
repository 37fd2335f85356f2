package record

import "container/list"

// pageCache is a fixed-capacity LRU cache of decoded pages, fronting the
// record manager's page I/O the way spec §4.1 describes ("a cache in front
// of it keeps the most-recently-used pages resident up to a configured
// count"). Grounded on the teacher's storage.LRUCache, generalized to cache
// the page itself rather than just track eviction order.
type pageCache struct {
	capacity int
	list     *list.List
	elems    map[PageID]*list.Element
}

type cacheEntry struct {
	id   PageID
	page *Page
}

func newPageCache(capacity int) *pageCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &pageCache{
		capacity: capacity,
		list:     list.New(),
		elems:    make(map[PageID]*list.Element),
	}
}

func (c *pageCache) get(id PageID) (*Page, bool) {
	elem, ok := c.elems[id]
	if !ok {
		return nil, false
	}
	c.list.MoveToFront(elem)
	return elem.Value.(*cacheEntry).page, true
}

// put inserts or refreshes a page, returning an evicted page id when the
// cache was at capacity. The caller must flush the evicted page if dirty
// before discarding it.
func (c *pageCache) put(p *Page) (evicted PageID, hadEviction bool) {
	if elem, ok := c.elems[p.Header.PageID]; ok {
		elem.Value.(*cacheEntry).page = p
		c.list.MoveToFront(elem)
		return 0, false
	}

	elem := c.list.PushFront(&cacheEntry{id: p.Header.PageID, page: p})
	c.elems[p.Header.PageID] = elem

	if c.list.Len() > c.capacity {
		back := c.list.Back()
		entry := back.Value.(*cacheEntry)
		c.list.Remove(back)
		delete(c.elems, entry.id)
		return entry.id, true
	}
	return 0, false
}

func (c *pageCache) remove(id PageID) {
	if elem, ok := c.elems[id]; ok {
		c.list.Remove(elem)
		delete(c.elems, id)
	}
}

// dirtyPages returns every cached page still marked dirty.
func (c *pageCache) dirtyPages() []*Page {
	var out []*Page
	for elem := c.list.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*cacheEntry)
		if entry.page.Header.Flags&PageFlagDirty != 0 {
			out = append(out, entry.page)
		}
	}
	return out
}
