package storage

import "errors"

// Error kinds surfaced by the pager and slotted-page layer.
var (
	// ErrInvalidShardFile is returned by Open when the file exists but its
	// magic, version, or page-0 checksum do not validate. The shard is not
	// usable after this error.
	ErrInvalidShardFile = errors.New("dplyshard: invalid shard file")

	// ErrCorruptPage is returned when a non-metadata page's checksum does
	// not match its contents. The shard stays open; only the operation
	// that touched the page fails.
	ErrCorruptPage = errors.New("dplyshard: corrupt page")

	// ErrNotFound means the row does not exist (or is not visible). insert
	// of a new row never returns it; select maps it to a nil/zero result,
	// delete surfaces it directly.
	ErrNotFound = errors.New("dplyshard: not found")

	// ErrWriteConflict is returned when two active transactions attempt to
	// delete the same pk.
	ErrWriteConflict = errors.New("dplyshard: write conflict")

	// ErrRowTooLarge is returned when a row body exceeds 65535 bytes.
	ErrRowTooLarge = errors.New("dplyshard: row too large")

	// ErrTransactionClosed is returned by any operation issued against a
	// transaction that already committed or rolled back.
	ErrTransactionClosed = errors.New("dplyshard: transaction closed")

	// ErrUnsupportedVersion is returned when the metadata page's format
	// version is not the one this implementation writes. Open wraps it
	// together with ErrInvalidShardFile, so errors.Is matches either.
	ErrUnsupportedVersion = errors.New("dplyshard: unsupported format version")
)
