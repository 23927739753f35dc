// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrNotFound is returned by Get when the requested key does not exist, or
// exists only as a tombstone.
var ErrNotFound = errors.New("lsmdb: not found")

// ErrClosed reports use of a closed DB. DB methods do not check for a prior
// Close, so none of them returns it.
var ErrClosed = errors.New("lsmdb: closed")

// CorruptionError marks an error as indicating on-disk corruption, as
// opposed to a transient I/O failure. Callers can test for it with
// errors.As or errors.HasType against *CorruptionError.
type CorruptionError struct {
	msg string
}

// NewCorruptionError wraps msg as a *CorruptionError.
func NewCorruptionError(msg string) error {
	return &CorruptionError{msg: msg}
}

func (e *CorruptionError) Error() string { return "lsmdb: corruption: " + e.msg }
