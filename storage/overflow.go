package storage

import "fmt"

// chunkSize returns how many raw bytes a single overflow page can hold:
// the page body past the common header, with no further bookkeeping. The
// page's insertedRowCount field is repurposed to mean "bytes stored in
// this page" since an overflow page holds one chunk, not slotted rows.
func chunkSize(pageSize int) int {
	return pageSize - HeaderSize
}

// WriteOverflowChain splits data across a freshly allocated chain of
// PageTypeOverflow pages linked by nextPageId and returns the id of the
// first page (N = ceil(L / (pageSize - HeaderSize)) pages are allocated).
func WriteOverflowChain(pager *Pager, data []byte) (uint32, error) {
	chunk := chunkSize(pager.PageSize())
	n := len(data)
	numPages := (n + chunk - 1) / chunk
	if numPages == 0 {
		numPages = 1
	}

	pages := make([]*Page, numPages)
	for i := range pages {
		page, err := pager.AllocatePage(PageTypeOverflow)
		if err != nil {
			return 0, fmt.Errorf("dplyshard: allocate overflow page %d/%d: %w", i+1, numPages, err)
		}
		pages[i] = page
	}

	for i, page := range pages {
		start := i * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		copy(page.Body(), data[start:end])
		page.setInsertedRowCount(end - start)
		if i+1 < numPages {
			page.SetNextID(pages[i+1].ID())
		}
		if err := pager.WritePage(page); err != nil {
			return 0, fmt.Errorf("dplyshard: write overflow page %d/%d: %w", i+1, numPages, err)
		}
	}

	return pages[0].ID(), nil
}

// ReadOverflowChain walks the chain starting at firstPageID, reassembling
// exactly totalLen bytes. A short chain or length mismatch means the
// page data is corrupt.
func ReadOverflowChain(pager *Pager, firstPageID uint32, totalLen int) ([]byte, error) {
	out := make([]byte, 0, totalLen)
	id := firstPageID
	for id != NoPage && len(out) < totalLen {
		page, err := pager.ReadPage(id)
		if err != nil {
			return nil, fmt.Errorf("dplyshard: read overflow page %d: %w", id, err)
		}
		if page.Type() != PageTypeOverflow {
			return nil, fmt.Errorf("dplyshard: page %d is not an overflow page: %w", id, ErrCorruptPage)
		}
		n := page.InsertedRowCount()
		out = append(out, page.Body()[:n]...)
		id = page.NextID()
	}
	if len(out) != totalLen {
		return nil, fmt.Errorf("dplyshard: overflow chain for page %d yielded %d bytes, want %d: %w", firstPageID, len(out), totalLen, ErrCorruptPage)
	}
	return out, nil
}
