package storage

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
)

func TestPutGetRecordInline(t *testing.T) {
	pager, err := OpenMemory(4096)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pager.Close()

	page, err := pager.AllocatePage(PageTypeData)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	slot, err := PutRecord(pager, page, 1, []byte("small record"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	data, deleted, ok, err := GetRecord(pager, page, slot)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if deleted {
		t.Error("fresh record should not be deleted")
	}
	if string(data) != "small record" {
		t.Errorf("expected %q, got %q", "small record", data)
	}
}

func TestPutGetRecordCompressible(t *testing.T) {
	pager, err := OpenMemory(4096)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pager.Close()

	page, err := pager.AllocatePage(PageTypeData)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	original := []byte(strings.Repeat("aaaaaaaaaa", 200))
	slot, err := PutRecord(pager, page, 1, original)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	row, ok := ReadRow(page, slot)
	if !ok {
		t.Fatal("read row failed")
	}
	if !row.Compressed {
		t.Error("highly repetitive data should have been compressed")
	}
	if len(row.Body) >= len(original) {
		t.Error("compressed body should be smaller than the original")
	}

	data, _, ok, err := GetRecord(pager, page, slot)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(data, original) {
		t.Error("decompressed data does not match original")
	}
}

func TestPutGetRecordOverflow(t *testing.T) {
	pager, err := OpenMemory(256)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pager.Close()

	page, err := pager.AllocatePage(PageTypeData)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// Random-looking bytes so snappy cannot shrink them below the inline
	// threshold, forcing the overflow path, spanning several pages worth
	// of data (pageSize=256, several times over to exercise a long chain).
	original := make([]byte, 256*7)
	rand.New(rand.NewSource(1)).Read(original)

	slot, err := PutRecord(pager, page, 1, original)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	row, ok := ReadRow(page, slot)
	if !ok {
		t.Fatal("read row failed")
	}
	if !row.Overflow {
		t.Fatal("large record should have used the overflow chain")
	}

	data, _, ok, err := GetRecord(pager, page, slot)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(data, original) {
		t.Error("reassembled overflow data does not match original")
	}
}

func TestPutRecordDeletedIsStillReadable(t *testing.T) {
	pager, err := OpenMemory(4096)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pager.Close()

	page, err := pager.AllocatePage(PageTypeData)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	slot, err := PutRecord(pager, page, 1, []byte("to be deleted"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	DeleteRow(page, slot)

	data, deleted, ok, err := GetRecord(pager, page, slot)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !deleted {
		t.Error("record should be flagged deleted")
	}
	if string(data) != "to be deleted" {
		t.Error("deleted record bytes should still round-trip")
	}
}
