package storage

import (
	"fmt"

	"github.com/klauspost/compress/snappy"
)

// compressBody snappy-compresses data and returns it only if compression
// actually shrank it.
func compressBody(data []byte) (body []byte, compressed bool) {
	enc := snappy.Encode(nil, data)
	if len(enc) < len(data) {
		return enc, true
	}
	return data, false
}

func decompressBody(body []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return body, nil
	}
	dec, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("dplyshard: snappy decode: %w", err)
	}
	return dec, nil
}

// PutRecord writes pk/data into page, snappy-compressing the body first
// when that shrinks it, and routing through an overflow chain when the
// (possibly compressed) body does not fit in page's remaining capacity.
// It returns the slot the row landed in.
func PutRecord(pager *Pager, page *Page, pk uint64, data []byte) (int, error) {
	body, compressed := compressBody(data)

	if need := rowHeaderSize + len(body) + slotSize; len(body) <= MaxRowBodySize && need <= page.RemainingCapacity() {
		slot, ok := InsertRow(page, pk, body, len(body), false)
		if !ok {
			return -1, fmt.Errorf("dplyshard: insert row on page %d: %w", page.ID(), ErrRowTooLarge)
		}
		if compressed {
			setRowCompressed(page, slot, true)
		}
		return slot, nil
	}

	// bodySize is a 2-byte header field even for an overflow row (it holds
	// the reassembled chain's total length), so the stored payload is
	// capped at MaxRowBodySize regardless of how many overflow pages it
	// would otherwise span.
	if len(body) > MaxRowBodySize {
		return -1, fmt.Errorf("dplyshard: stored record is %d bytes, exceeds %d: %w", len(body), MaxRowBodySize, ErrRowTooLarge)
	}

	firstOverflowID, err := WriteOverflowChain(pager, body)
	if err != nil {
		return -1, err
	}
	pointer := make([]byte, overflowPointerSize)
	putU32(pointer, 0, firstOverflowID)

	need := rowHeaderSize + overflowPointerSize + slotSize
	if need > page.RemainingCapacity() {
		return -1, fmt.Errorf("dplyshard: page %d has no room for an overflow pointer: %w", page.ID(), ErrRowTooLarge)
	}
	slot, ok := InsertRow(page, pk, pointer, len(body), true)
	if !ok {
		return -1, fmt.Errorf("dplyshard: insert overflow row on page %d: %w", page.ID(), ErrRowTooLarge)
	}
	if compressed {
		setRowCompressed(page, slot, true)
	}
	return slot, nil
}

// GetRecord reads the row at slotIndex, reassembling its overflow chain
// and reversing compression as needed. ok is false if slotIndex does not
// address a row.
func GetRecord(pager *Pager, page *Page, slotIndex int) (data []byte, deleted bool, ok bool, err error) {
	row, found := ReadRow(page, slotIndex)
	if !found {
		return nil, false, false, nil
	}

	stored := row.Body
	if row.Overflow {
		firstID := getU32(row.Body, 0)
		stored, err = ReadOverflowChain(pager, firstID, row.BodySize)
		if err != nil {
			return nil, row.Deleted, true, err
		}
	}

	decoded, err := decompressBody(stored, row.Compressed)
	if err != nil {
		return nil, row.Deleted, true, err
	}
	return decoded, row.Deleted, true, nil
}
