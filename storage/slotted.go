package storage

import "fmt"

// Row header (9 bytes), immediately followed by the row body:
//
//	[0]   flag: bit0=deleted, bit2=overflow
//	[1-2] bodySize (<=65535; full logical size when overflow)
//	[3-8] pk (6 bytes)
const (
	rowHeaderSize  = 9
	rowOffFlag     = 0
	rowOffBodySize = 1
	rowOffPK       = 3

	flagBitDeleted    = 0
	flagBitCompressed = 1
	flagBitOverflow   = 2

	slotSize = 2

	// MaxRowBodySize is the largest bodySize a row header can represent.
	MaxRowBodySize = 65535

	// overflowPointerSize is the fixed body length of an overflow row:
	// the 4-byte pageId of the first overflow page.
	overflowPointerSize = 4
)

// Row is a decoded slotted-page row.
type Row struct {
	PK         uint64
	Deleted    bool
	Overflow   bool
	Compressed bool
	// BodySize is the full logical payload size: for a non-overflow row
	// this equals len(Body); for an overflow row it is the reassembled
	// chain's total length while Body holds only the 4-byte first
	// overflow pageId.
	BodySize int
	Body     []byte
}

// rowsEndOffset derives where the next row's bytes would be appended,
// from the page's bookkeeping fields (remainingCapacity tracks
// (body_end - rows_end) - (slot_count * 2)), rather than storing rows_end
// separately.
func rowsEndOffset(p *Page) int {
	slotCount := p.InsertedRowCount()
	return p.pageSize() - slotCount*slotSize - p.RemainingCapacity()
}

func slotOffset(p *Page, slotIndex int) int {
	return p.pageSize() - slotSize - slotSize*slotIndex
}

// InsertRow appends a row (header + body) after the last existing row,
// prepends a slot pointing at it, and updates bookkeeping. It returns
// false without mutating the page if there is not enough
// remainingCapacity.
//
// For a non-overflow row, body is the full payload and logicalSize must
// equal len(body). For an overflow row, body is just the 4-byte first
// overflow pageId and logicalSize is the full reassembled payload length
// the bodySize header field records.
func InsertRow(p *Page, pk uint64, body []byte, logicalSize int, overflow bool) (slotIndex int, ok bool) {
	need := rowHeaderSize + len(body) + slotSize
	if p.RemainingCapacity() < need {
		return -1, false
	}

	rowOff := rowsEndOffset(p)
	buf := p.Buf

	var flag byte
	flag = setBit(flag, flagBitOverflow, overflow)
	buf[rowOff+rowOffFlag] = flag
	putU16(buf, rowOff+rowOffBodySize, uint16(logicalSize))
	putU48(buf, rowOff+rowOffPK, pk)
	copy(buf[rowOff+rowHeaderSize:], body)

	slotCount := p.InsertedRowCount()
	putU16(buf, slotOffset(p, slotCount), uint16(rowOff))

	p.setInsertedRowCount(slotCount + 1)
	p.setRemainingCapacity(p.RemainingCapacity() - need)
	return slotCount, true
}

// ReadRow reads the row addressed by slotIndex.
func ReadRow(p *Page, slotIndex int) (Row, bool) {
	if slotIndex < 0 || slotIndex >= p.InsertedRowCount() {
		return Row{}, false
	}
	off := slotOffset(p, slotIndex)
	if off < HeaderSize || off+slotSize > p.pageSize() {
		return Row{}, false
	}
	rowOff := int(getU16(p.Buf, off))
	if rowOff < HeaderSize || rowOff+rowHeaderSize > p.pageSize() {
		return Row{}, false
	}

	flag := p.Buf[rowOff+rowOffFlag]
	bodySize := int(getU16(p.Buf, rowOff+rowOffBodySize))
	pk := getU48(p.Buf, rowOff+rowOffPK)
	overflow := getBit(flag, flagBitOverflow)

	storedLen := bodySize
	if overflow {
		storedLen = overflowPointerSize
	}
	if rowOff+rowHeaderSize+storedLen > p.pageSize() {
		return Row{}, false
	}
	body := make([]byte, storedLen)
	copy(body, p.Buf[rowOff+rowHeaderSize:rowOff+rowHeaderSize+storedLen])

	return Row{
		PK:         pk,
		Deleted:    getBit(flag, flagBitDeleted),
		Overflow:   overflow,
		Compressed: getBit(flag, flagBitCompressed),
		BodySize:   bodySize,
		Body:       body,
	}, true
}

// setRowCompressed sets the compressed bit of the row at slotIndex. It is
// set right after InsertRow places the row, once the caller (row.go) has
// decided whether the body it wrote was snappy-compressed.
func setRowCompressed(p *Page, slotIndex int, compressed bool) bool {
	if slotIndex < 0 || slotIndex >= p.InsertedRowCount() {
		return false
	}
	off := slotOffset(p, slotIndex)
	rowOff := int(getU16(p.Buf, off))
	p.Buf[rowOff+rowOffFlag] = setBit(p.Buf[rowOff+rowOffFlag], flagBitCompressed, compressed)
	return true
}

// DeleteRow sets the deleted bit of the row at slotIndex in place. Space
// is never reclaimed by the core.
func DeleteRow(p *Page, slotIndex int) bool {
	if slotIndex < 0 || slotIndex >= p.InsertedRowCount() {
		return false
	}
	off := slotOffset(p, slotIndex)
	rowOff := int(getU16(p.Buf, off))
	p.Buf[rowOff+rowOffFlag] = setBit(p.Buf[rowOff+rowOffFlag], flagBitDeleted, true)
	return true
}

// RID is a 6-byte physical record identifier: slotIndex (2 bytes) +
// pageId (4 bytes).
type RID struct {
	SlotIndex int
	PageID    uint32
}

func (r RID) String() string {
	return fmt.Sprintf("RID(page=%d,slot=%d)", r.PageID, r.SlotIndex)
}
