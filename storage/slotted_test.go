package storage

import "testing"

func TestInsertReadRowRoundTrip(t *testing.T) {
	p := NewPage(4096, 1, PageTypeData)

	slot, ok := InsertRow(p, 42, []byte("hello world"), len("hello world"), false)
	if !ok {
		t.Fatal("insert should have succeeded")
	}
	if slot != 0 {
		t.Errorf("expected slot 0, got %d", slot)
	}

	row, ok := ReadRow(p, slot)
	if !ok {
		t.Fatal("read should have succeeded")
	}
	if row.PK != 42 {
		t.Errorf("expected pk 42, got %d", row.PK)
	}
	if string(row.Body) != "hello world" {
		t.Errorf("expected body %q, got %q", "hello world", row.Body)
	}
	if row.Deleted || row.Overflow {
		t.Error("fresh row should be neither deleted nor overflow")
	}
}

func TestInsertMultipleRowsPreservesOrder(t *testing.T) {
	p := NewPage(4096, 1, PageTypeData)

	bodies := []string{"aaa", "bb", "cccccc"}
	for i, b := range bodies {
		slot, ok := InsertRow(p, uint64(i+1), []byte(b), len(b), false)
		if !ok || slot != i {
			t.Fatalf("insert %d: slot=%d ok=%v", i, slot, ok)
		}
	}

	if p.InsertedRowCount() != len(bodies) {
		t.Fatalf("expected %d rows, got %d", len(bodies), p.InsertedRowCount())
	}
	for i, b := range bodies {
		row, ok := ReadRow(p, i)
		if !ok {
			t.Fatalf("read %d failed", i)
		}
		if string(row.Body) != b {
			t.Errorf("row %d: expected %q, got %q", i, b, row.Body)
		}
	}
}

func TestInsertRowRejectsWhenFull(t *testing.T) {
	p := NewPage(256, 1, PageTypeData)

	inserted := 0
	for {
		_, ok := InsertRow(p, uint64(inserted+1), make([]byte, 20), 20, false)
		if !ok {
			break
		}
		inserted++
		if inserted > 1000 {
			t.Fatal("insert never reported full")
		}
	}
	if inserted == 0 {
		t.Fatal("expected at least one row to fit in a 256-byte page")
	}
}

func TestDeleteRowSetsFlagOnly(t *testing.T) {
	p := NewPage(4096, 1, PageTypeData)
	before := p.RemainingCapacity()

	slot, _ := InsertRow(p, 1, []byte("abc"), 3, false)
	if !DeleteRow(p, slot) {
		t.Fatal("delete should succeed")
	}

	row, ok := ReadRow(p, slot)
	if !ok {
		t.Fatal("row should still be readable after delete")
	}
	if !row.Deleted {
		t.Error("row should be flagged deleted")
	}
	if string(row.Body) != "abc" {
		t.Error("delete must not remove the body bytes")
	}
	if p.RemainingCapacity() >= before {
		t.Error("remainingCapacity must not grow back on delete (no space reclamation)")
	}
}

func TestReadRowOutOfRangeSlot(t *testing.T) {
	p := NewPage(4096, 1, PageTypeData)
	InsertRow(p, 1, []byte("abc"), 3, false)

	if _, ok := ReadRow(p, 1); ok {
		t.Error("slot 1 does not exist yet")
	}
	if _, ok := ReadRow(p, -1); ok {
		t.Error("negative slot must be rejected")
	}
}

func TestInsertOverflowRowStoresPointerOnly(t *testing.T) {
	p := NewPage(4096, 1, PageTypeData)
	pointer := make([]byte, overflowPointerSize)
	putU32(pointer, 0, 7)

	slot, ok := InsertRow(p, 5, pointer, 999, true)
	if !ok {
		t.Fatal("insert should succeed")
	}
	row, ok := ReadRow(p, slot)
	if !ok {
		t.Fatal("read should succeed")
	}
	if !row.Overflow {
		t.Error("row should be flagged overflow")
	}
	if len(row.Body) != overflowPointerSize {
		t.Errorf("expected body len %d, got %d", overflowPointerSize, len(row.Body))
	}
	if getU32(row.Body, 0) != 7 {
		t.Error("overflow pointer not preserved")
	}
}
