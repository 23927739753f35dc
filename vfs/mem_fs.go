// Copyright 2025 the lsmdb Authors.

package vfs

import (
	"bytes"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// MemFS is an in-memory FS for hermetic tests: no real file descriptors,
// no real directory tree, just a flat map from cleaned path to file
// contents.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFileData
	locks map[string]bool
}

type memFileData struct {
	mu   sync.Mutex
	data []byte
}

// NewMemFS returns an empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string]*memFileData),
		locks: make(map[string]bool),
	}
}

func clean(name string) string { return path.Clean(filepathToSlash(name)) }

func filepathToSlash(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' {
			out[i] = '/'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}

func (fs *MemFS) Create(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d := &memFileData{}
	fs.files[clean(name)] = d
	return &memFile{name: clean(name), fs: fs, d: d}, nil
}

func (fs *MemFS) Open(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.files[clean(name)]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return &memFile{name: clean(name), fs: fs, d: d}, nil
}

func (fs *MemFS) OpenDir(name string) (File, error) {
	return &memFile{name: clean(name), fs: fs, d: &memFileData{}}, nil
}

func (fs *MemFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[clean(name)]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	delete(fs.files, clean(name))
	return nil
}

func (fs *MemFS) Rename(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.files[clean(oldname)]
	if !ok {
		return &os.PathError{Op: "rename", Path: oldname, Err: os.ErrNotExist}
	}
	delete(fs.files, clean(oldname))
	fs.files[clean(newname)] = d
	return nil
}

func (fs *MemFS) MkdirAll(dir string, perm os.FileMode) error { return nil }

func (fs *MemFS) Lock(name string) (io.Closer, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.locks[clean(name)] {
		return nil, errors.Newf("lsmdb: lock %s already held", name)
	}
	if _, ok := fs.files[clean(name)]; !ok {
		fs.files[clean(name)] = &memFileData{}
	}
	fs.locks[clean(name)] = true
	return &memLock{fs: fs, name: clean(name)}, nil
}

type memLock struct {
	fs   *MemFS
	name string
}

func (l *memLock) Close() error {
	l.fs.mu.Lock()
	defer l.fs.mu.Unlock()
	delete(l.fs.locks, l.name)
	return nil
}

func (fs *MemFS) List(dir string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := clean(dir)
	if prefix != "/" {
		prefix += "/"
	}
	var names []string
	for name := range fs.files {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			rest := name[len(prefix):]
			if !bytes.ContainsRune([]byte(rest), '/') {
				names = append(names, rest)
			}
		}
	}
	return names, nil
}

func (fs *MemFS) Stat(name string) (os.FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, ok := fs.files[clean(name)]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return memFileInfo{name: path.Base(clean(name)), size: int64(len(d.data))}, nil
}

func (fs *MemFS) PathJoin(elem ...string) string { return path.Join(elem...) }
func (fs *MemFS) PathBase(p string) string       { return path.Base(p) }

type memFileInfo struct {
	name string
	size int64
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() os.FileMode  { return 0644 }
func (fi memFileInfo) ModTime() time.Time { return time.Time{} }
func (fi memFileInfo) IsDir() bool        { return false }
func (fi memFileInfo) Sys() any           { return nil }

type memFile struct {
	name   string
	fs     *MemFS
	d      *memFileData
	offset int64
	closed bool
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}

func (f *memFile) Read(p []byte) (int, error) {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	if f.offset >= int64(len(f.d.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.d.data[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	if off > int64(len(f.d.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	end := f.offset + int64(len(p))
	if end > int64(len(f.d.data)) {
		grown := make([]byte, end)
		copy(grown, f.d.data)
		f.d.data = grown
	}
	copy(f.d.data[f.offset:end], p)
	f.offset = end
	return len(p), nil
}

func (f *memFile) Stat() (os.FileInfo, error) {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	return memFileInfo{name: path.Base(f.name), size: int64(len(f.d.data))}, nil
}

func (f *memFile) Sync() error { return nil }
