// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/tillwork/lsmdb/internal/base"
)

// versionEdit tags, matching the teacher's leveldb/version_edit.go wire
// format: each edit is a sequence of (tag, payload) pairs.
const (
	tagComparator     = 1
	tagLogNumber      = 2
	tagNextFileNumber = 3
	tagLastSequence   = 4
	tagCompactPointer = 5
	tagDeletedFile    = 6
	tagNewFile        = 7
	tagPrevLogNumber  = 9
)

// versionEdit describes a batch of changes to a version: files added,
// files removed, and updates to the VersionSet's bookkeeping counters. It
// is the unit of logging in the manifest.
type versionEdit struct {
	comparatorName string
	hasComparator  bool

	logNumber      fileNum
	hasLogNumber   bool
	prevLogNumber  fileNum
	hasPrevLogNum  bool
	nextFileNumber fileNum
	hasNextFileNum bool
	lastSequence   base.SeqNum
	hasLastSeq     bool

	compactPointers []struct {
		level int
		key   base.InternalKey
	}
	deletedFiles map[deletedFileEntry]bool
	newFiles     []newFileEntry
}

type deletedFileEntry struct {
	level int
	num   fileNum
}

type newFileEntry struct {
	level int
	meta  *fileMetaData
}

func (e *versionEdit) addFile(level int, meta *fileMetaData) {
	e.newFiles = append(e.newFiles, newFileEntry{level: level, meta: meta})
}

func (e *versionEdit) deleteFile(level int, num fileNum) {
	if e.deletedFiles == nil {
		e.deletedFiles = make(map[deletedFileEntry]bool)
	}
	e.deletedFiles[deletedFileEntry{level: level, num: num}] = true
}

func (e *versionEdit) setCompactPointer(level int, key base.InternalKey) {
	e.compactPointers = append(e.compactPointers, struct {
		level int
		key   base.InternalKey
	}{level, key})
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putVarstr(buf *bytes.Buffer, s []byte) {
	putUvarint(buf, uint64(len(s)))
	buf.Write(s)
}

func putInternalKey(buf *bytes.Buffer, k base.InternalKey) {
	putVarstr(buf, k.EncodeAppend(nil))
}

// encode serializes the edit using the same tagged-varint scheme as
// leveldb's VersionEdit::EncodeTo.
func (e *versionEdit) encode() []byte {
	var buf bytes.Buffer
	if e.hasComparator {
		putUvarint(&buf, tagComparator)
		putVarstr(&buf, []byte(e.comparatorName))
	}
	if e.hasLogNumber {
		putUvarint(&buf, tagLogNumber)
		putUvarint(&buf, uint64(e.logNumber))
	}
	if e.hasPrevLogNum {
		putUvarint(&buf, tagPrevLogNumber)
		putUvarint(&buf, uint64(e.prevLogNumber))
	}
	if e.hasNextFileNum {
		putUvarint(&buf, tagNextFileNumber)
		putUvarint(&buf, uint64(e.nextFileNumber))
	}
	if e.hasLastSeq {
		putUvarint(&buf, tagLastSequence)
		putUvarint(&buf, uint64(e.lastSequence))
	}
	for _, cp := range e.compactPointers {
		putUvarint(&buf, tagCompactPointer)
		putUvarint(&buf, uint64(cp.level))
		putInternalKey(&buf, cp.key)
	}
	for d := range e.deletedFiles {
		putUvarint(&buf, tagDeletedFile)
		putUvarint(&buf, uint64(d.level))
		putUvarint(&buf, uint64(d.num))
	}
	for _, nf := range e.newFiles {
		putUvarint(&buf, tagNewFile)
		putUvarint(&buf, uint64(nf.level))
		putUvarint(&buf, uint64(nf.meta.num))
		putUvarint(&buf, nf.meta.size)
		putInternalKey(&buf, nf.meta.smallest)
		putInternalKey(&buf, nf.meta.largest)
	}
	return buf.Bytes()
}

type editDecoder struct {
	data []byte
}

func (d *editDecoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.data)
	if n <= 0 {
		return 0, errors.New("lsmdb: corrupt manifest record: bad varint")
	}
	d.data = d.data[n:]
	return v, nil
}

func (d *editDecoder) varstr() ([]byte, error) {
	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	if uint64(len(d.data)) < n {
		return nil, errors.New("lsmdb: corrupt manifest record: truncated string")
	}
	s := d.data[:n]
	d.data = d.data[n:]
	return s, nil
}

func (d *editDecoder) internalKey() (base.InternalKey, error) {
	s, err := d.varstr()
	if err != nil {
		return base.InternalKey{}, err
	}
	return base.DecodeInternalKey(s)
}

// decodeVersionEdit parses one manifest record written by encode.
func decodeVersionEdit(data []byte) (*versionEdit, error) {
	e := &versionEdit{}
	d := &editDecoder{data: data}
	for len(d.data) > 0 {
		tag, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagComparator:
			s, err := d.varstr()
			if err != nil {
				return nil, err
			}
			e.comparatorName = string(s)
			e.hasComparator = true
		case tagLogNumber:
			v, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			e.logNumber = fileNum(v)
			e.hasLogNumber = true
		case tagPrevLogNumber:
			v, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			e.prevLogNumber = fileNum(v)
			e.hasPrevLogNum = true
		case tagNextFileNumber:
			v, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			e.nextFileNumber = fileNum(v)
			e.hasNextFileNum = true
		case tagLastSequence:
			v, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			e.lastSequence = base.SeqNum(v)
			e.hasLastSeq = true
		case tagCompactPointer:
			level, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			key, err := d.internalKey()
			if err != nil {
				return nil, err
			}
			e.setCompactPointer(int(level), key)
		case tagDeletedFile:
			level, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			num, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			e.deleteFile(int(level), fileNum(num))
		case tagNewFile:
			level, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			num, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			size, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			smallest, err := d.internalKey()
			if err != nil {
				return nil, err
			}
			largest, err := d.internalKey()
			if err != nil {
				return nil, err
			}
			e.addFile(int(level), &fileMetaData{
				num:          fileNum(num),
				size:         size,
				smallest:     smallest,
				largest:      largest,
				allowedSeeks: allowedSeeksForSize(size),
			})
		default:
			return nil, errors.Newf("lsmdb: corrupt manifest record: unknown tag %d", tag)
		}
	}
	return e, nil
}
