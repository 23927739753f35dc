// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"github.com/cockroachdb/errors"
	"github.com/tillwork/lsmdb/internal/base"
)

// ErrNotFound is returned by Get when the key doesn't exist, or exists
// only as a tombstone.
var ErrNotFound = base.ErrNotFound

// ErrClosed reports use of a closed DB. DB methods do not check for a prior
// Close, so none of them returns it.
var ErrClosed = base.ErrClosed

// ErrInvalidArgument marks a caller error such as a malformed option. No
// function in this package returns it.
var ErrInvalidArgument = errors.New("lsmdb: invalid argument")

// IsCorruption reports whether err is, or wraps, a *base.CorruptionError.
// The sstable, record and internal-key decoders report corruption with
// their own sentinel errors (such as sstable.ErrChecksumMismatch), which
// it does not recognize.
func IsCorruption(err error) bool {
	var c *base.CorruptionError
	return errors.As(err, &c)
}
