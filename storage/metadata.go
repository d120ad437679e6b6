package storage

import "fmt"

// Metadata page (pageId = 0, pageType = Metadata). Layout starting at body
// offset 0 (i.e. file offset HeaderSize):
//
//	[0-3]   magic "DPLY"
//	[4-5]   format version
//	[6-9]   pageSize
//	[10-13] freeListHead   (NoPage = empty free list)
//	[14-19] nextPkCounter  (6 bytes)
//	[20-23] rootIndexPageId (0 = none; reserved for a future secondary
//	                         index format, the core never writes a
//	                         non-zero value here)
//	[24-27] currentInsertPageId (the page the insert placement policy is
//	                             currently appending to; NoPage before the
//	                             first data page exists)
//	[28-31] firstDataPageId (head of the data-page chain, for the pk→RID
//	                         rebuild scan at Open; NoPage before the first
//	                         data page exists)
const (
	metaOffMagic      = 0
	metaOffVersion    = 4
	metaOffPageSize   = 6
	metaOffFreeList   = 10
	metaOffNextPK     = 14
	metaOffRootIndex  = 20
	metaOffCurrentIns = 24
	metaOffFirstData  = 28
	metaSize          = 32
)

var magicBytes = [4]byte{'D', 'P', 'L', 'Y'}

const formatVersion uint16 = 1

type metadata struct {
	pageSize          int
	freeListHead      uint32
	nextPK            uint64
	rootIndexPageID   uint32
	currentInsertPage uint32
	firstDataPage     uint32
}

func newMetadata(pageSize int) *metadata {
	return &metadata{
		pageSize:          pageSize,
		freeListHead:      NoPage,
		nextPK:            1,
		rootIndexPageID:   0,
		currentInsertPage: NoPage,
		firstDataPage:     NoPage,
	}
}

func (m *metadata) encode(p *Page) {
	body := p.Body()
	copy(body[metaOffMagic:metaOffMagic+4], magicBytes[:])
	putU16(body, metaOffVersion, formatVersion)
	putU32(body, metaOffPageSize, uint32(m.pageSize))
	putU32(body, metaOffFreeList, m.freeListHead)
	putU48(body, metaOffNextPK, m.nextPK)
	putU32(body, metaOffRootIndex, m.rootIndexPageID)
	putU32(body, metaOffCurrentIns, m.currentInsertPage)
	putU32(body, metaOffFirstData, m.firstDataPage)
}

func decodeMetadata(p *Page) (*metadata, error) {
	body := p.Body()
	if len(body) < metaSize {
		return nil, fmt.Errorf("dplyshard: metadata page too small: %w", ErrInvalidShardFile)
	}
	var magic [4]byte
	copy(magic[:], body[metaOffMagic:metaOffMagic+4])
	if magic != magicBytes {
		return nil, ErrInvalidShardFile
	}
	version := getU16(body, metaOffVersion)
	if version != formatVersion {
		return nil, ErrUnsupportedVersion
	}
	m := &metadata{
		pageSize:          int(getU32(body, metaOffPageSize)),
		freeListHead:      getU32(body, metaOffFreeList),
		nextPK:            getU48(body, metaOffNextPK),
		rootIndexPageID:   getU32(body, metaOffRootIndex),
		currentInsertPage: getU32(body, metaOffCurrentIns),
		firstDataPage:     getU32(body, metaOffFirstData),
	}
	return m, nil
}
