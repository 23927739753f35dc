// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package vfs is the environment/filesystem abstraction the storage engine
// is built against: file open/create/remove/rename, directory listing, and
// advisory locking. Default is the os-backed implementation; MemFS backs
// tests that need a hermetic, in-memory filesystem.
package vfs

import (
	"io"
	"os"
)

// File is a readable, writable sequence of bytes, typically an *os.File
// but substitutable with an in-memory implementation in tests.
type File interface {
	io.Closer
	io.Reader
	io.ReaderAt
	io.Writer
	Stat() (os.FileInfo, error)
	Sync() error
}

// FS is a namespace of files and directories. Paths are filepath-style
// names, separated however the underlying OS expects.
type FS interface {
	// Create creates the named file for writing, truncating it if it
	// already exists.
	Create(name string) (File, error)
	// Open opens the named file for reading.
	Open(name string) (File, error)
	// OpenDir opens the named directory so its contents can be fsynced
	// after a rename, as POSIX durability requires.
	OpenDir(name string) (File, error)
	// Remove removes the named file or directory.
	Remove(name string) error
	// Rename renames oldname to newname, overwriting newname if it exists.
	Rename(oldname, newname string) error
	// MkdirAll creates dir and any necessary parents; it is a no-op if dir
	// already exists.
	MkdirAll(dir string, perm os.FileMode) error
	// Lock acquires an exclusive advisory lock on name, creating it if
	// necessary. Close the returned io.Closer to release the lock.
	Lock(name string) (io.Closer, error)
	// List returns the names of dir's immediate children.
	List(dir string) ([]string, error)
	// Stat returns file metadata for name.
	Stat(name string) (os.FileInfo, error)
	// PathJoin joins elem into a single path.
	PathJoin(elem ...string) string
	// PathBase returns the last path element of path.
	PathBase(path string) string
}

// Default is the os-backed FS.
var Default FS = diskFS{}
