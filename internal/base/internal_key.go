// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// SeqNum is a sequence number assigned to every mutation as it is committed.
// It defines the global order of all mutations in the database. Sequence
// numbers are stored in the high 56 bits of an internal key's trailer, so the
// maximum representable value is 2^56-1.
type SeqNum uint64

// SeqNumMax is the largest sequence number that can be packed into an
// internal key's trailer. Encoders must reject writes that would assign a
// sequence number beyond this.
const SeqNumMax SeqNum = 1<<56 - 1

// InternalKeyKind is the kind tag packed into the low 8 bits of an internal
// key's trailer. These values are part of the on-disk format and must not be
// renumbered.
type InternalKeyKind uint8

const (
	// InternalKeyKindDelete marks a tombstone: the user key is deleted as of
	// this entry's sequence number. It carries no value.
	InternalKeyKindDelete InternalKeyKind = 0
	// InternalKeyKindSet associates the user key with a value as of this
	// entry's sequence number.
	InternalKeyKindSet InternalKeyKind = 1

	// InternalKeyKindMax is the largest valid kind, also used as the kind of
	// a LookupKey so that it sorts no later than every real entry for the
	// same user key and sequence number (it compares equal to a Set entry).
	InternalKeyKindMax = InternalKeyKindSet
)

func (k InternalKeyKind) String() string {
	switch k {
	case InternalKeyKindDelete:
		return "DEL"
	case InternalKeyKindSet:
		return "SET"
	default:
		return "UNKNOWN"
	}
}

// trailerLen is the number of bytes the (seq, kind) trailer occupies at the
// end of an encoded internal key.
const trailerLen = 8

// InternalKeyTrailer packs a sequence number and a kind into a single
// 64-bit value: the sequence number occupies the high 56 bits, the kind tag
// the low 8 bits.
type InternalKeyTrailer uint64

// MakeTrailer packs seq and kind into a single 64-bit trailer.
func MakeTrailer(seq SeqNum, kind InternalKeyKind) InternalKeyTrailer {
	return InternalKeyTrailer(uint64(seq)<<8 | uint64(kind))
}

// SeqNum extracts the sequence number from a trailer.
func (t InternalKeyTrailer) SeqNum() SeqNum { return SeqNum(t >> 8) }

// Kind extracts the kind tag from a trailer.
func (t InternalKeyTrailer) Kind() InternalKeyKind { return InternalKeyKind(t) }

// InternalKey is a user key paired with a trailer. It decomposes the wire
// encoding `user_key ‖ u64_little_endian(trailer)` into its two logical
// parts; use Encode/DecodeInternalKey to cross the wire-format boundary.
type InternalKey struct {
	UserKey []byte
	Trailer InternalKeyTrailer
}

// MakeInternalKey builds an InternalKey from its logical parts.
func MakeInternalKey(userKey []byte, seq SeqNum, kind InternalKeyKind) InternalKey {
	return InternalKey{UserKey: userKey, Trailer: MakeTrailer(seq, kind)}
}

// SeqNum returns the key's sequence number.
func (k InternalKey) SeqNum() SeqNum { return k.Trailer.SeqNum() }

// Kind returns the key's kind tag.
func (k InternalKey) Kind() InternalKeyKind { return k.Trailer.Kind() }

// Size returns the length of the encoded form of k.
func (k InternalKey) Size() int { return len(k.UserKey) + trailerLen }

// Encode writes the wire form of k (user_key ‖ trailer, little-endian) into
// buf, which must be at least k.Size() bytes long, and returns the number of
// bytes written.
func (k InternalKey) Encode(buf []byte) int {
	n := copy(buf, k.UserKey)
	binary.LittleEndian.PutUint64(buf[n:], uint64(k.Trailer))
	return n + trailerLen
}

// EncodeAppend appends the wire form of k to dst and returns the result.
func (k InternalKey) EncodeAppend(dst []byte) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, k.Size())...)
	k.Encode(dst[n:])
	return dst
}

// Clone returns a deep copy of k.
func (k InternalKey) Clone() InternalKey {
	if k.UserKey == nil {
		return k
	}
	u := make([]byte, len(k.UserKey))
	copy(u, k.UserKey)
	return InternalKey{UserKey: u, Trailer: k.Trailer}
}

// ErrCorruptInternalKey is returned when an encoded internal key is too
// short to contain a trailer, or its kind tag is not a recognized value.
var ErrCorruptInternalKey = errors.New("lsmdb: corrupt internal key")

// DecodeInternalKey parses the wire form produced by Encode. It does not
// copy: the returned key's UserKey aliases buf.
func DecodeInternalKey(buf []byte) (InternalKey, error) {
	if len(buf) < trailerLen {
		return InternalKey{}, ErrCorruptInternalKey
	}
	n := len(buf) - trailerLen
	trailer := InternalKeyTrailer(binary.LittleEndian.Uint64(buf[n:]))
	if trailer.Kind() > InternalKeyKindMax {
		return InternalKey{}, ErrCorruptInternalKey
	}
	return InternalKey{UserKey: buf[:n:n], Trailer: trailer}, nil
}

// InternalCompare orders internal keys: ascending by user key under ucmp,
// then descending by sequence number, then descending by kind. This means
// that for a fixed user key, a forward scan visits the newest version
// first.
func InternalCompare(ucmp Compare, a, b InternalKey) int {
	if c := ucmp(a.UserKey, b.UserKey); c != 0 {
		return c
	}
	if a.Trailer > b.Trailer {
		return -1
	}
	if a.Trailer < b.Trailer {
		return +1
	}
	return 0
}

// InternalCompareEncoded is InternalCompare operating directly on the
// encoded wire form of two internal keys, avoiding a decode on the hot
// path used by the skip list and sstable block comparisons.
func InternalCompareEncoded(ucmp Compare, a, b []byte) int {
	ak, bk := a[:len(a)-trailerLen], b[:len(b)-trailerLen]
	if c := ucmp(ak, bk); c != 0 {
		return c
	}
	at := binary.LittleEndian.Uint64(a[len(a)-trailerLen:])
	bt := binary.LittleEndian.Uint64(b[len(b)-trailerLen:])
	if at > bt {
		return -1
	}
	if at < bt {
		return +1
	}
	return 0
}

// LookupKey returns the internal key used to seek to the first entry for
// userKey whose sequence number is <= seq: it uses the maximum kind tag so
// it sorts no later than any real entry sharing the same user key and
// sequence number.
func LookupKey(userKey []byte, seq SeqNum) InternalKey {
	return MakeInternalKey(userKey, seq, InternalKeyKindMax)
}
