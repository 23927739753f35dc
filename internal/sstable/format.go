// Copyright 2025 the lsmdb Authors.

// Package sstable implements the on-disk sorted table: the external
// collaborator responsible for persisting one level file as a sequence of
// prefix-compressed data blocks, an index block, an optional Bloom filter
// block, and a fixed-size footer.
package sstable

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/DataDog/zstd"
	"github.com/golang/snappy"
)

// Compression identifies the per-block compression codec. It is encoded as
// a single byte in every block's trailer, so a table's blocks may in
// principle mix codecs across format versions; this package always writes
// one codec per table.
type Compression uint8

const (
	NoCompression Compression = 0
	SnappyCompression Compression = 1
	ZstdCompression Compression = 2
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case ZstdCompression:
		return "zstd"
	default:
		return "unknown"
	}
}

func compressBlock(c Compression, data []byte) []byte {
	switch c {
	case SnappyCompression:
		return snappy.Encode(nil, data)
	case ZstdCompression:
		out, err := zstd.Compress(nil, data)
		if err != nil {
			// zstd.Compress only errors on a misconfigured level; our fixed
			// default level never triggers this, so fall back rather than
			// propagate a should-never-happen error through the write path.
			return data
		}
		return out
	default:
		return data
	}
}

func decompressBlock(c Compression, data []byte) ([]byte, error) {
	switch c {
	case SnappyCompression:
		return snappy.Decode(nil, data)
	case ZstdCompression:
		return zstd.Decompress(nil, data)
	default:
		return data, nil
	}
}

// blockTrailerLen is the per-block trailer: one compression-type byte
// followed by a 4-byte little-endian xxhash64-truncated-to-32-bits
// checksum, computed over the compressed block bytes plus the type byte.
const blockTrailerLen = 5

func appendBlockTrailer(buf []byte, compressed []byte, c Compression) []byte {
	n := len(buf)
	buf = append(buf, compressed...)
	buf = append(buf, byte(c))
	checksum := uint32(xxhash.Sum64(buf[n:]))
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], checksum)
	return append(buf, trailer[:]...)
}

var ErrChecksumMismatch = errors.New("lsmdb/sstable: block checksum mismatch")

// readBlock validates and decompresses the raw bytes of one block (as
// addressed by a BlockHandle, trailer included).
func readBlock(raw []byte) ([]byte, error) {
	if len(raw) < blockTrailerLen {
		return nil, errors.New("lsmdb/sstable: truncated block")
	}
	data := raw[:len(raw)-4]
	wantChecksum := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	gotChecksum := uint32(xxhash.Sum64(data))
	if gotChecksum != wantChecksum {
		return nil, ErrChecksumMismatch
	}
	c := Compression(data[len(data)-1])
	return decompressBlock(c, data[:len(data)-1])
}

// BlockHandle is a pointer to a block within the table file.
type BlockHandle struct {
	Offset, Length uint64
}

func (h BlockHandle) encode(buf []byte) []byte {
	buf = binary.AppendUvarint(buf, h.Offset)
	buf = binary.AppendUvarint(buf, h.Length)
	return buf
}

func decodeBlockHandle(buf []byte) (BlockHandle, []byte, error) {
	off, n := binary.Uvarint(buf)
	if n <= 0 {
		return BlockHandle{}, nil, errors.New("lsmdb/sstable: corrupt block handle")
	}
	buf = buf[n:]
	length, n := binary.Uvarint(buf)
	if n <= 0 {
		return BlockHandle{}, nil, errors.New("lsmdb/sstable: corrupt block handle")
	}
	buf = buf[n:]
	return BlockHandle{Offset: off, Length: length}, buf, nil
}

// footerLen is a fixed-size trailer: two BlockHandles (each padded to 20
// bytes, more than enough for two varint-encoded uint64s), a compression
// byte, a format version byte, and an 8-byte magic number.
const (
	footerLen          = 50
	handleMaxEncodeLen = 20
	formatVersion      = 1
)

// magic is the last 8 bytes of every table; Reader rejects any file whose
// tail doesn't match it, the same guard spec.md requires for MANIFEST/
// CURRENT parsing.
var magic = [8]byte{0x57, 0xfb, 0x80, 0x8b, 0x24, 0x75, 0x47, 0xdb}

type footer struct {
	metaindexHandle BlockHandle // filter block; zero-valued when no filter
	indexHandle     BlockHandle
	compression     Compression
}

func (f footer) encode() []byte {
	buf := make([]byte, 0, footerLen)
	start := len(buf)
	buf = f.metaindexHandle.encode(buf)
	buf = padTo(buf, start+handleMaxEncodeLen)
	start = len(buf)
	buf = f.indexHandle.encode(buf)
	buf = padTo(buf, start+handleMaxEncodeLen)
	buf = append(buf, byte(f.compression))
	buf = append(buf, byte(formatVersion))
	buf = append(buf, magic[:]...)
	return buf
}

func padTo(buf []byte, n int) []byte {
	for len(buf) < n {
		buf = append(buf, 0)
	}
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) != footerLen {
		return footer{}, errors.New("lsmdb/sstable: corrupt footer length")
	}
	if [8]byte(buf[footerLen-8:]) != magic {
		return footer{}, errors.New("lsmdb/sstable: not an sstable file (bad magic)")
	}
	meta, _, err := decodeBlockHandle(buf[:handleMaxEncodeLen])
	if err != nil {
		return footer{}, err
	}
	index, _, err := decodeBlockHandle(buf[handleMaxEncodeLen : 2*handleMaxEncodeLen])
	if err != nil {
		return footer{}, err
	}
	return footer{
		metaindexHandle: meta,
		indexHandle:     index,
		compression:     Compression(buf[2*handleMaxEncodeLen]),
	}, nil
}
