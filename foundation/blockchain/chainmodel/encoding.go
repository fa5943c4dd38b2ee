// Package chainmodel defines the wire and in-memory representation of
// everything that gets hashed, signed, or persisted: blocks, headers,
// transactions, outputs, and the canonical byte encodings that make every
// node agree bit-exactly on a txid or block hash.
package chainmodel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
)

// ErrTruncated is returned by any Decode function when the input ends
// before a declared length is satisfied.
var ErrTruncated = errors.New("chainmodel: truncated input")

// ErrTrailingBytes is returned when a Decode function consumes a well
// formed value but bytes remain afterward. Unknown trailing bytes are a
// parse error rather than silently ignored.
var ErrTrailingBytes = errors.New("chainmodel: unexpected trailing bytes")

// putUint32 writes v as 4 big-endian bytes into b.
func putUint32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

// getUint32 reads 4 big-endian bytes from the front of b as a uint32.
func getUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// putUint64 writes v as 8 big-endian bytes into b.
func putUint64(b []byte, v uint64) {
	binary.BigEndian.PutUint64(b, v)
}

// getUint64 reads 8 big-endian bytes from the front of b as a uint64.
func getUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// putVarint appends the unsigned LEB128 encoding of v to buf.
func putVarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// readVarint decodes an unsigned LEB128 value from the front of b,
// returning the value and the number of bytes consumed.
func readVarint(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, ErrTruncated
	}
	return v, n, nil
}

// putBytes writes a varint length prefix followed by the bytes themselves.
func putBytes(buf *bytes.Buffer, b []byte) {
	putVarint(buf, uint64(len(b)))
	buf.Write(b)
}

// readBytes reads a varint-length-prefixed byte string from the front of
// b, returning the value and the number of bytes consumed.
func readBytes(b []byte) ([]byte, int, error) {
	length, n, err := readVarint(b)
	if err != nil {
		return nil, 0, err
	}

	if uint64(len(b)-n) < length {
		return nil, 0, ErrTruncated
	}

	start := n
	end := n + int(length)
	return b[start:end], end, nil
}

// Metadata is the free-form string map carried by a transaction, encoding
// kind-specific data such as a certificate blob. Keys are sorted before
// encoding so that two semantically identical maps always produce
// identical bytes — required for txid determinism.
type Metadata map[string]string

// Encode appends the canonical encoding of m to buf:
// varint(len(keys)) ‖ (varint(len(key)) ‖ key ‖ varint(len(value)) ‖ value)*
// with keys in lexicographic order.
func (m Metadata) Encode(buf *bytes.Buffer) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	putVarint(buf, uint64(len(keys)))
	for _, k := range keys {
		putBytes(buf, []byte(k))
		putBytes(buf, []byte(m[k]))
	}
}

// DecodeMetadata parses a Metadata map from the front of b, returning the
// value and the number of bytes consumed.
func DecodeMetadata(b []byte) (Metadata, int, error) {
	count, n, err := readVarint(b)
	if err != nil {
		return nil, 0, err
	}
	offset := n

	md := make(Metadata, count)
	for i := uint64(0); i < count; i++ {
		key, n, err := readBytes(b[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n

		value, n, err := readBytes(b[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n

		md[string(key)] = string(value)
	}

	return md, offset, nil
}
