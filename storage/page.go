package storage

// DefaultPageSize is used when a shard is opened without an explicit
// pageSize.
const DefaultPageSize = 8192

// MinPageSize and MaxPageSize bound the configurable page size; it must
// also be a power of two.
const (
	MinPageSize = 256
	MaxPageSize = 65536
)

// PageType identifies the role of a page.
type PageType byte

const (
	PageTypeMetadata PageType = 1
	PageTypeBitmap   PageType = 2
	PageTypeIndex    PageType = 3
	PageTypeData     PageType = 4
	PageTypeOverflow PageType = 5
)

// Common 100-byte page header:
//
//	[0]     pageType   1 byte
//	[1-4]   pageId     4 bytes
//	[5-8]   nextPageId 4 bytes (sentinel NoPage = none)
//	[9-12]  insertedRowCount 4 bytes (data pages only)
//	[13-16] remainingCapacity 4 bytes
//	[17-20] checksum   4 bytes, CRC32 over [21, pageSize)
//	[21-99] reserved, zero-filled
const (
	HeaderSize = 100

	offPageType          = 0
	offPageID            = 1
	offNextPageID        = 5
	offInsertedRowCount  = 9
	offRemainingCapacity = 13
	offChecksum          = 17
	offReserved          = 21
)

// NoPage is the sentinel used for "no next page" / "no overflow chain".
const NoPage uint32 = 0xFFFFFFFF

// Page wraps a single fixed-size (per-shard) page buffer and provides
// header/body accessors. It carries no pageSize field of its own — every
// page in a shard shares the pageSize recorded once in the metadata page,
// and Buf's length is always exactly that size.
type Page struct {
	Buf []byte
}

// NewPage allocates a zeroed page of the given size and pre-populates its
// header the way Pager.AllocatePage promises: pageId, pageType, no next
// page, and remainingCapacity set to the full body.
func NewPage(pageSize int, pageID uint32, ptype PageType) *Page {
	p := &Page{Buf: make([]byte, pageSize)}
	p.Buf[offPageType] = byte(ptype)
	putU32(p.Buf, offPageID, pageID)
	putU32(p.Buf, offNextPageID, NoPage)
	putU32(p.Buf, offRemainingCapacity, uint32(pageSize-HeaderSize))
	return p
}

func (p *Page) Type() PageType      { return PageType(p.Buf[offPageType]) }
func (p *Page) SetType(t PageType)  { p.Buf[offPageType] = byte(t) }
func (p *Page) ID() uint32          { return getU32(p.Buf, offPageID) }
func (p *Page) SetID(id uint32)     { putU32(p.Buf, offPageID, id) }
func (p *Page) NextID() uint32      { return getU32(p.Buf, offNextPageID) }
func (p *Page) SetNextID(id uint32) { putU32(p.Buf, offNextPageID, id) }

func (p *Page) InsertedRowCount() int { return int(getU32(p.Buf, offInsertedRowCount)) }
func (p *Page) setInsertedRowCount(n int) {
	putU32(p.Buf, offInsertedRowCount, uint32(n))
}

func (p *Page) RemainingCapacity() int { return int(getU32(p.Buf, offRemainingCapacity)) }
func (p *Page) setRemainingCapacity(n int) {
	putU32(p.Buf, offRemainingCapacity, uint32(n))
}

func (p *Page) Checksum() uint32 { return getU32(p.Buf, offChecksum) }

// recomputeChecksum recalculates and stores the CRC32 over [21, pageSize).
func (p *Page) recomputeChecksum() {
	putU32(p.Buf, offChecksum, checksum(p.Buf[offReserved:]))
}

// verifyChecksum reports whether the stored checksum matches the body.
func (p *Page) verifyChecksum() bool {
	return p.Checksum() == checksum(p.Buf[offReserved:])
}

// Body returns the page bytes after the common header.
func (p *Page) Body() []byte { return p.Buf[HeaderSize:] }

// pageSize returns this page's total size.
func (p *Page) pageSize() int { return len(p.Buf) }
