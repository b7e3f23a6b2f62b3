package boltstore

import (
	"encoding/binary"

	"github.com/kochj23/webmush/pkg/gamedb"
)

// Bucket name constants for bbolt storage.
var (
	bucketMeta      = []byte("meta")
	bucketObjects   = []byte("objects")
	bucketPlayers   = []byte("players")
	bucketDestroyed = []byte("destroyed")
)

// Meta key constants.
var (
	keyVersion = []byte("version")
	keyNextRef = []byte("nextref")
)

// FormatVersion is bumped when the stored object encoding changes.
const FormatVersion = 1

// refToKey converts a DBRef to an 8-byte big-endian key. Offset by a
// large constant so negative refs (Nothing, etc.) sort correctly.
func refToKey(ref gamedb.DBRef) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(int64(ref)+1<<32))
	return buf
}

// keyToRef converts an 8-byte big-endian key back to a DBRef.
func keyToRef(b []byte) gamedb.DBRef {
	v := binary.BigEndian.Uint64(b)
	return gamedb.DBRef(int64(v) - 1<<32)
}

// intToKey converts an int to an 8-byte big-endian key.
func intToKey(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// keyToInt converts an 8-byte big-endian key back to an int.
func keyToInt(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}
