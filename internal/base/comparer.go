// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base holds the types shared by every layer of the storage engine:
// the user-key comparator, the internal-key encoding, and the small set of
// sentinel errors that cross package boundaries.
package base

import "bytes"

// Compare returns -1, 0, or +1 depending on whether a is less than, equal
// to, or greater than b. A Compare implementation must be a total order.
type Compare func(a, b []byte) int

// Comparer bundles a Compare function with the name that gets persisted into
// the manifest. Reopening a database with a different Comparer.Name is
// rejected: stored keys are only well-ordered with respect to the
// comparator that wrote them.
type Comparer struct {
	Compare Compare
	Name    string
}

// DefaultComparer orders keys lexicographically by unsigned byte value, the
// same ordering bytes.Compare implements.
var DefaultComparer = &Comparer{
	Compare: bytes.Compare,
	Name:    "leveldb.BytewiseComparator",
}
