// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package record reads and writes sequences of records to the write-ahead
// log and the manifest. Each record is a stream of bytes that completes
// before the next record starts.
//
// When reading, call Next to obtain an io.Reader for the next record. Next
// returns io.EOF when there are no more records. It is valid to call Next
// without reading the current record to exhaustion.
//
// When writing, call Next to obtain an io.Writer for the next record.
// Calling Next finishes the current record. Call Close to finish the final
// record.
//
// Neither Readers nor Writers are safe to use concurrently.
//
// The wire format: the stream is divided into 32 KiB blocks, and each block
// holds a number of tightly packed chunks. Chunks cannot cross block
// boundaries: a block's unused tail is zero-filled, and a record that
// doesn't fit spills its remainder into a chunk in the next block. A record
// maps to one or more chunks:
//
//	+----------+-----------+-----------+--- ... ---+
//	| CRC (4B) | Size (2B) | Type (1B) | Payload    |
//	+----------+-----------+-----------+--- ... ---+
//
// CRC is crc32c (Castagnoli) computed over the type byte and the payload.
// Size is the payload length. Type is one of Full, First, Middle, or Last: a
// multi-chunk record has exactly one First chunk, zero or more Middle
// chunks, and one Last chunk; a record that fits in one chunk is Full.
package record

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cockroachdb/errors"
)

// crc32c is the Castagnoli polynomial, the specific checksum algorithm the
// on-disk format requires — not a pluggable concern, so there is no
// ecosystem checksum library to wire in its place.
var crc32c = crc32.MakeTable(crc32.Castagnoli)

const (
	fullChunkType   = 1
	firstChunkType  = 2
	middleChunkType = 3
	lastChunkType   = 4
)

const (
	blockSize  = 32 * 1024
	headerSize = 7 // crc(4) + size(2) + type(1)
)

// ErrZeroedChunk names a chunk whose header is all zero, the expected shape
// of unwritten, pre-allocated tail bytes rather than corruption. Reader does
// not return it: it skips a zeroed tail and reports io.EOF.
// IsInvalidRecord still recognizes it.
var ErrZeroedChunk = errors.New("lsmdb/record: zeroed chunk")

// ErrInvalidChunk is returned when a chunk's header or checksum is invalid
// in a way that zero padding cannot explain.
var ErrInvalidChunk = errors.New("lsmdb/record: invalid chunk")

// IsInvalidRecord reports whether err indicates a malformed tail of the log
// rather than a genuine I/O failure; callers recovering a WAL treat it like
// io.EOF unless running in paranoid mode.
func IsInvalidRecord(err error) bool {
	return errors.Is(err, ErrZeroedChunk) || errors.Is(err, ErrInvalidChunk) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Reader reads a sequence of records from an underlying io.Reader.
type Reader struct {
	r          io.Reader
	seq        int
	begin, end int
	n          int
	last       bool
	err        error
	buf        [blockSize]byte
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) nextChunk(wantFirst bool) error {
	for {
		if r.end+headerSize <= r.n {
			checksum := binary.LittleEndian.Uint32(r.buf[r.end+0 : r.end+4])
			length := binary.LittleEndian.Uint16(r.buf[r.end+4 : r.end+6])
			chunkType := r.buf[r.end+6]

			if checksum == 0 && length == 0 && chunkType == 0 {
				// Zeroed tail: either log pre-allocation or the logical end
				// of a log written without knowing its final size.
				for i := r.end; i < r.n; i++ {
					if r.buf[i] != 0 {
						return ErrInvalidChunk
					}
				}
				r.end = r.n
				continue
			}
			if chunkType < fullChunkType || chunkType > lastChunkType {
				return ErrInvalidChunk
			}

			begin := r.end + headerSize
			end := begin + int(length)
			if end > r.n {
				return ErrInvalidChunk
			}
			if checksum != crc32.Checksum(r.buf[r.end+6:end], crc32c) {
				return ErrInvalidChunk
			}
			r.begin, r.end = begin, end
			if wantFirst && chunkType != fullChunkType && chunkType != firstChunkType {
				r.end = end
				continue
			}
			r.last = chunkType == fullChunkType || chunkType == lastChunkType
			return nil
		}
		if r.n < blockSize && r.n > 0 {
			return io.EOF
		}
		n, err := io.ReadFull(r.r, r.buf[:])
		if err != nil && err != io.ErrUnexpectedEOF {
			return err
		}
		r.begin, r.end, r.n = 0, 0, n
		if n == 0 {
			return io.EOF
		}
	}
}

// Next returns a reader for the next record, or io.EOF if there are none
// left. The returned reader is invalidated by the next call to Next.
func (r *Reader) Next() (io.Reader, error) {
	r.seq++
	if r.err != nil {
		return nil, r.err
	}
	r.begin = r.end
	r.err = r.nextChunk(true)
	if r.err != nil {
		return nil, r.err
	}
	return singleReader{r, r.seq}, nil
}

type singleReader struct {
	r   *Reader
	seq int
}

func (x singleReader) Read(p []byte) (int, error) {
	r := x.r
	if r.seq != x.seq {
		return 0, errors.New("lsmdb/record: stale reader")
	}
	if r.err != nil {
		return 0, r.err
	}
	for r.begin == r.end {
		if r.last {
			return 0, io.EOF
		}
		r.err = r.nextChunk(false)
		if r.err != nil {
			return 0, r.err
		}
	}
	n := copy(p, r.buf[r.begin:r.end])
	r.begin += n
	return n, nil
}

// flusher is the subset of *bufio.Writer that Flush relies on, so Writer can
// flush an underlying buffered file without importing bufio itself.
type flusher interface {
	Flush() error
}

// Writer writes a sequence of records to an underlying io.Writer.
type Writer struct {
	w       io.Writer
	f       flusher
	seq     int
	i, j    int
	written int
	first   bool
	pending bool
	err     error
	buf     [blockSize]byte
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	f, _ := w.(flusher)
	return &Writer{w: w, f: f}
}

func (w *Writer) fillHeader(last bool) {
	if w.i+headerSize > w.j || w.j > blockSize {
		panic("lsmdb/record: bad writer state")
	}
	switch {
	case last && w.first:
		w.buf[w.i+6] = fullChunkType
	case last:
		w.buf[w.i+6] = lastChunkType
	case w.first:
		w.buf[w.i+6] = firstChunkType
	default:
		w.buf[w.i+6] = middleChunkType
	}
	binary.LittleEndian.PutUint32(w.buf[w.i+0:w.i+4], crc32.Checksum(w.buf[w.i+6:w.j], crc32c))
	binary.LittleEndian.PutUint16(w.buf[w.i+4:w.i+6], uint16(w.j-w.i-headerSize))
}

func (w *Writer) writeBlock() {
	_, w.err = w.w.Write(w.buf[w.written:])
	w.i = 0
	w.j = headerSize
	w.written = 0
}

func (w *Writer) writePending() {
	if w.err != nil {
		return
	}
	if w.pending {
		w.fillHeader(true)
		w.pending = false
	}
	_, w.err = w.w.Write(w.buf[w.written:w.j])
	w.written = w.j
}

// Close finishes the current record and marks the Writer closed; subsequent
// calls return an error.
func (w *Writer) Close() error {
	w.writePending()
	if w.err != nil {
		return w.err
	}
	w.err = errors.New("lsmdb/record: closed Writer")
	return nil
}

// Flush finishes the current record, writes it out, and flushes the
// underlying writer if it supports Flush. Callers sync the file themselves
// after Flush when durability is required.
func (w *Writer) Flush() error {
	w.writePending()
	if w.err != nil {
		return w.err
	}
	if w.f != nil {
		w.err = w.f.Flush()
	}
	return w.err
}

// Next finishes the current record (if any) and returns a writer for the
// next one. The returned writer is invalidated by the next call to Next,
// Flush, or Close.
func (w *Writer) Next() (io.Writer, error) {
	w.seq++
	if w.err != nil {
		return nil, w.err
	}
	if w.pending {
		w.fillHeader(true)
	}
	w.i = w.j
	w.j = w.j + headerSize
	if w.j > blockSize {
		clear(w.buf[w.i:])
		w.writeBlock()
		if w.err != nil {
			return nil, w.err
		}
	}
	w.first = true
	w.pending = true
	return singleWriter{w, w.seq}, nil
}

// WriteRecord writes a complete record in one call.
func (w *Writer) WriteRecord(p []byte) error {
	rec, err := w.Next()
	if err != nil {
		return err
	}
	if _, err := rec.Write(p); err != nil {
		return err
	}
	w.writePending()
	return w.err
}

type singleWriter struct {
	w   *Writer
	seq int
}

func (x singleWriter) Write(p []byte) (int, error) {
	w := x.w
	if w.seq != x.seq {
		return 0, errors.New("lsmdb/record: stale writer")
	}
	if w.err != nil {
		return 0, w.err
	}
	n0 := len(p)
	for len(p) > 0 {
		if w.j == blockSize {
			w.fillHeader(false)
			w.writeBlock()
			if w.err != nil {
				return 0, w.err
			}
			w.first = false
		}
		n := copy(w.buf[w.j:], p)
		w.j += n
		p = p[n:]
	}
	return n0, nil
}
