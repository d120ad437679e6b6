package storage

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"sync"
)

// Pager reads and writes pages from/to the backing file by pageId,
// allocates new pages, and maintains the file-level metadata page. It
// owns the single file handle for the shard's lifetime.
//
// Go has no separate "construct without I/O, then init() does I/O" split
// the way an async constructor would: Open below performs both steps —
// validating an existing file synchronously, or writing a fresh metadata
// page for a new one — in a single call, which is the idiomatic Go shape
// for what would otherwise be a constructor+async-init pair.
type Pager struct {
	mu   sync.RWMutex
	file StorageFile
	path string

	pageSize   int
	totalPages uint32
	meta       *metadata

	cache *lruCache
}

// Open opens or creates the shard file at path. If the file is non-empty
// its page 0 is read and validated (magic, version, checksum); a mismatch
// returns ErrInvalidShardFile and the pager is unusable. If the file is
// empty, a fresh metadata page is written using pageSize (or
// DefaultPageSize if 0).
func Open(path string, pageSize int) (*Pager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("dplyshard: open shard file: %w", err)
	}
	p, err := open(file, path, pageSize)
	if err != nil {
		file.Close()
		return nil, err
	}
	return p, nil
}

// OpenMemory creates a pager entirely in memory, with no backing file.
// Useful for tests and for embedding the engine where persistence is not
// required.
func OpenMemory(pageSize int) (*Pager, error) {
	return open(NewMemFile(), ":memory:", pageSize)
}

func open(file StorageFile, path string, pageSize int) (*Pager, error) {
	p := &Pager{
		file:  file,
		path:  path,
		cache: newLRUCache(1024),
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("dplyshard: stat shard file: %w", err)
	}

	if info.Size() == 0 {
		if pageSize == 0 {
			pageSize = DefaultPageSize
		}
		if err := validatePageSize(pageSize); err != nil {
			return nil, err
		}
		p.pageSize = pageSize
		p.meta = newMetadata(pageSize)
		if err := p.writeFreshMetaPage(); err != nil {
			return nil, err
		}
		return p, nil
	}

	if err := p.loadExisting(info.Size()); err != nil {
		return nil, err
	}
	return p, nil
}

func validatePageSize(pageSize int) error {
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return fmt.Errorf("dplyshard: pageSize %d out of range [%d,%d]: %w", pageSize, MinPageSize, MaxPageSize, ErrInvalidShardFile)
	}
	if bits.OnesCount(uint(pageSize)) != 1 {
		return fmt.Errorf("dplyshard: pageSize %d is not a power of two: %w", pageSize, ErrInvalidShardFile)
	}
	return nil
}

// loadExisting validates and loads an existing shard file's page 0.
func (p *Pager) loadExisting(fileSize int64) error {
	probeLen := MinPageSize
	if fileSize < int64(probeLen) {
		return ErrInvalidShardFile
	}
	probe := make([]byte, probeLen)
	if _, err := p.file.ReadAt(probe, 0); err != nil {
		return fmt.Errorf("dplyshard: read shard header: %w", err)
	}
	pageSize := int(getU32(probe, HeaderSize+metaOffPageSize))
	if err := validatePageSize(pageSize); err != nil {
		return err
	}
	if fileSize%int64(pageSize) != 0 {
		return ErrInvalidShardFile
	}

	buf := make([]byte, pageSize)
	n, err := p.file.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return fmt.Errorf("dplyshard: read metadata page: %w", err)
	}
	if n < pageSize {
		return ErrInvalidShardFile
	}

	page0 := &Page{Buf: buf}
	if page0.Type() != PageTypeMetadata {
		return ErrInvalidShardFile
	}
	if !page0.verifyChecksum() {
		return ErrInvalidShardFile
	}
	meta, err := decodeMetadata(page0)
	if err != nil {
		if errors.Is(err, ErrUnsupportedVersion) {
			return fmt.Errorf("%w: %w", ErrInvalidShardFile, err)
		}
		return ErrInvalidShardFile
	}

	p.pageSize = pageSize
	p.meta = meta
	p.totalPages = uint32(fileSize / int64(pageSize))
	p.cache.put(0, buf)
	return nil
}

func (p *Pager) writeFreshMetaPage() error {
	page := NewPage(p.pageSize, 0, PageTypeMetadata)
	p.meta.encode(page)
	p.totalPages = 0
	if _, err := p.appendPage(page); err != nil {
		return err
	}
	return nil
}

// PageSize returns the shard's fixed page size.
func (p *Pager) PageSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pageSize
}

// Close flushes the metadata page, syncs, and closes the underlying file.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.flushMetaLocked(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("dplyshard: sync shard file: %w", err)
	}
	return p.file.Close()
}

// ReadPage reads pageId from the cache or the backing file, verifying its
// checksum. pageId 0 (metadata) failing checksum surfaces
// ErrInvalidShardFile since the whole shard is then unusable; any other
// page surfaces ErrCorruptPage.
func (p *Pager) ReadPage(pageID uint32) (*Page, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.readPageLocked(pageID)
}

func (p *Pager) readPageLocked(pageID uint32) (*Page, error) {
	if pageID >= p.totalPages {
		return nil, fmt.Errorf("dplyshard: page %d out of range (total=%d)", pageID, p.totalPages)
	}
	if data, ok := p.cache.get(pageID); ok {
		return &Page{Buf: data}, nil
	}

	buf := make([]byte, p.pageSize)
	n, err := p.file.ReadAt(buf, int64(pageID)*int64(p.pageSize))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("dplyshard: read page %d: %w", pageID, err)
	}
	if n < p.pageSize {
		return nil, fmt.Errorf("dplyshard: short read on page %d: %w", pageID, ErrCorruptPage)
	}

	page := &Page{Buf: buf}
	if page.ID() != pageID {
		return nil, fmt.Errorf("dplyshard: page %d has mismatched id %d: %w", pageID, page.ID(), ErrCorruptPage)
	}
	if !page.verifyChecksum() {
		if pageID == 0 {
			return nil, ErrInvalidShardFile
		}
		return nil, ErrCorruptPage
	}
	p.cache.put(pageID, buf)
	return page, nil
}

// WritePage recomputes the checksum over [21, pageSize) and writes the
// entire page at offset pageId*pageSize.
func (p *Pager) WritePage(page *Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writePageLocked(page)
}

func (p *Pager) writePageLocked(page *Page) error {
	pid := page.ID()
	if pid >= p.totalPages {
		return fmt.Errorf("dplyshard: page %d out of range (total=%d)", pid, p.totalPages)
	}
	page.recomputeChecksum()
	if _, err := p.file.WriteAt(page.Buf, int64(pid)*int64(p.pageSize)); err != nil {
		return fmt.Errorf("dplyshard: write page %d: %w", pid, err)
	}
	p.cache.put(pid, page.Buf)
	return nil
}

// appendPage extends the file by exactly one page, writes it, and
// accounts for it in totalPages. Callers must already hold p.mu.
func (p *Pager) appendPage(page *Page) (uint32, error) {
	pid := p.totalPages
	page.SetID(pid)
	p.totalPages++
	page.recomputeChecksum()
	if _, err := p.file.WriteAt(page.Buf, int64(pid)*int64(p.pageSize)); err != nil {
		p.totalPages--
		return 0, fmt.Errorf("dplyshard: append page %d: %w", pid, err)
	}
	p.cache.put(pid, page.Buf)
	return pid, nil
}

// AllocatePage returns a fresh, zeroed page of the given type: reused
// from the metadata free list if one is available, else appended to the
// end of the file.
func (p *Pager) AllocatePage(ptype PageType) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocatePageLocked(ptype)
}

func (p *Pager) allocatePageLocked(ptype PageType) (*Page, error) {
	if p.meta.freeListHead != NoPage {
		reused, err := p.readPageLocked(p.meta.freeListHead)
		if err != nil {
			return nil, err
		}
		freeID := reused.ID()
		p.meta.freeListHead = reused.NextID()
		page := NewPage(p.pageSize, freeID, ptype)
		if err := p.writePageLocked(page); err != nil {
			return nil, err
		}
		if err := p.flushMetaLocked(); err != nil {
			return nil, err
		}
		return page, nil
	}

	page := NewPage(p.pageSize, 0, ptype)
	if _, err := p.appendPage(page); err != nil {
		return nil, err
	}
	return page, nil
}

// FreePage links pageID onto the metadata free list. The core never calls
// this today (rows are only ever flagged deleted, whole pages are never
// reclaimed), but AllocatePage's contract depends on it existing so a
// future compaction pass has somewhere to put freed pages.
func (p *Pager) FreePage(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	page, err := p.readPageLocked(pageID)
	if err != nil {
		return err
	}
	page.SetNextID(p.meta.freeListHead)
	if err := p.writePageLocked(page); err != nil {
		return err
	}
	p.meta.freeListHead = pageID
	return p.flushMetaLocked()
}

// NextPK allocates and persists the next primary key: strictly increasing
// from 1, with the metadata's nextPkCounter always greater than every
// persisted pk.
func (p *Pager) NextPK() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pk := p.meta.nextPK
	p.meta.nextPK++
	if err := p.flushMetaLocked(); err != nil {
		p.meta.nextPK = pk
		return 0, err
	}
	return pk, nil
}

// CurrentInsertPageID returns the page the insert placement policy is
// currently appending to, or NoPage if no data page exists yet.
func (p *Pager) CurrentInsertPageID() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.currentInsertPage
}

// SetCurrentInsertPageID persists the new target page for future inserts.
// The first call (when no data page chain exists yet) also records
// firstDataPage, the head FirstDataPageID scans from.
func (p *Pager) SetCurrentInsertPageID(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta.currentInsertPage = pageID
	if p.meta.firstDataPage == NoPage {
		p.meta.firstDataPage = pageID
	}
	return p.flushMetaLocked()
}

// FirstDataPageID returns the head of the data-page chain, or NoPage if no
// data page has been allocated yet.
func (p *Pager) FirstDataPageID() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.firstDataPage
}

func (p *Pager) flushMetaLocked() error {
	page, err := p.readPageLocked(0)
	if err != nil {
		return err
	}
	p.meta.encode(page)
	return p.writePageLocked(page)
}

// ForEachDataPage walks the singly-linked chain of data pages starting at
// startID, calling fn on each until it returns false or the chain ends
// (sentinel NoPage). Used by Shard's pk→RID cache rebuild at Open.
func (p *Pager) ForEachDataPage(startID uint32, fn func(*Page) (cont bool, err error)) error {
	id := startID
	for id != NoPage {
		page, err := p.ReadPage(id)
		if err != nil {
			return err
		}
		cont, err := fn(page)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		id = page.NextID()
	}
	return nil
}
