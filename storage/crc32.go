package storage

import "hash/crc32"

// checksum computes the IEEE 802.3 CRC32 (polynomial 0xEDB88320) over b,
// used to validate every page and the metadata page on read.
func checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
