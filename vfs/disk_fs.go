// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

type diskFS struct{}

func (diskFS) Create(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (diskFS) Open(name string) (File, error) {
	return os.OpenFile(name, os.O_RDONLY, 0)
}

func (diskFS) OpenDir(name string) (File, error) {
	return os.Open(name)
}

func (diskFS) Remove(name string) error {
	return os.Remove(name)
}

func (diskFS) Rename(oldname, newname string) error {
	return os.Rename(oldname, newname)
}

func (diskFS) MkdirAll(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}

func (diskFS) List(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func (diskFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (diskFS) PathJoin(elem ...string) string { return filepath.Join(elem...) }
func (diskFS) PathBase(path string) string    { return filepath.Base(path) }

// fileLock is the io.Closer returned by Lock; closing it releases the
// flock(2) advisory lock and closes the underlying descriptor.
type fileLock struct {
	f *os.File
}

func (l *fileLock) Close() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		return err
	}
	return l.f.Close()
}

// Lock acquires an exclusive, non-blocking flock(2) lock on name, creating
// it if necessary. A process that dies holding the lock has it released by
// the kernel automatically, which is exactly the recoverability spec.md's
// LOCK file requires.
func (diskFS) Lock(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "lsmdb: lock %s held by another process", name)
	}
	return &fileLock{f: f}, nil
}
