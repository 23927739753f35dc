// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"io"
	"sync"

	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/record"
	"github.com/tillwork/lsmdb/vfs"
)

// DB is an open key-value store. A single mutex serializes every mutation
// to the write queue, the active memtable pointer, and the version set;
// readers take a short-lived reference to the current memtable/version
// instead of holding the mutex for the duration of a Get.
type DB struct {
	dirname string
	opts    *Options
	fs      vfs.FS

	mu          sync.Mutex
	writerCond  sync.Cond

	mem  *memTable
	imm  *memTable // memtable being flushed, or nil

	log      *record.Writer
	logFile  vfs.File
	logNum   fileNum

	versions  *versionSet
	tableCache *tableCache
	snapshots snapshotList

	writeQueue []*writer

	pendingOutputs map[fileNum]bool

	bgCompactionScheduled bool
	bgError               error
	closed                bool

	fileLock io.Closer
}

// Put stores value under key, as of the next sequence number.
func (db *DB) Put(key, value []byte, opts *WriteOptions) error {
	b := NewBatch()
	b.Set(key, value)
	return db.write(b, opts)
}

// Delete removes key, recording a tombstone as of the next sequence number.
func (db *DB) Delete(key []byte, opts *WriteOptions) error {
	b := NewBatch()
	b.Delete(key)
	return db.write(b, opts)
}

// Write atomically applies every operation in b.
func (db *DB) Write(b *Batch, opts *WriteOptions) error {
	return db.write(b, opts)
}

// Get returns the value associated with key, or ErrNotFound.
func (db *DB) Get(key []byte, opts *ReadOptions) ([]byte, error) {
	if opts == nil {
		opts = DefaultReadOptions()
	}
	db.mu.Lock()
	var seq base.SeqNum
	if opts.Snapshot != nil {
		seq = opts.Snapshot.seq
	} else {
		seq = db.versions.lastSequence
	}
	mem := db.mem
	imm := db.imm
	v := db.versions.current
	v.ref()
	db.mu.Unlock()

	defer func() {
		db.mu.Lock()
		v.unref()
		db.mu.Unlock()
	}()

	if val, found, deleted := mem.get(key, seq); found || deleted {
		if deleted {
			return nil, base.ErrNotFound
		}
		return val, nil
	}
	if imm != nil {
		if val, found, deleted := imm.get(key, seq); found || deleted {
			if deleted {
				return nil, base.ErrNotFound
			}
			return val, nil
		}
	}

	lookup := base.LookupKey(key, seq)
	val, found, err, charged, chargedLevel := v.get(db.tableCache, lookup)
	if err != nil {
		return nil, err
	}

	if charged != nil {
		db.mu.Lock()
		if v.updateStats(charged, chargedLevel) {
			db.maybeScheduleCompactionLocked()
		}
		db.mu.Unlock()
	}

	if !found {
		return nil, base.ErrNotFound
	}
	return val, nil
}

// makeRoomForWrite ensures there is room in the active memtable for the
// writer currently leading the group commit, flushing to an immutable
// memtable (and beyond, to a new WAL) when the active one is full. force
// triggers a flush even if there's room, used by CompactRange and empty
// no-op batches that still want to wait out a prior flush. Must be called
// with db.mu held; it may unlock and relock while waiting.
func (db *DB) makeRoomForWrite(force bool) error {
	for {
		if db.bgError != nil {
			return db.bgError
		}
		if len(db.versions.current.files[0]) >= l0StopWritesTrigger {
			db.writerCond.Wait()
			continue
		}
		if !force && db.mem.ApproximateMemoryUsage() <= uint64(db.opts.WriteBufferSize) {
			break
		}
		if db.imm != nil {
			// A flush is already in flight; wait for it to finish before
			// rotating again.
			db.writerCond.Wait()
			continue
		}

		newLogNum := db.versions.newFileNumber()
		logFile, err := db.fs.Create(makeFilename(db.fs, db.dirname, fileTypeLog, newLogNum))
		if err != nil {
			return err
		}
		if db.log != nil {
			db.log.Close()
			db.logFile.Close()
		}
		db.log = record.NewWriter(logFile)
		db.logFile = logFile
		db.logNum = newLogNum

		db.imm = db.mem
		db.mem = newMemTable(db.opts.Comparer)
		force = false
		db.maybeScheduleCompactionLocked()
	}
	return nil
}

// Close shuts down the database, waiting for any in-flight background
// compaction to finish.
func (db *DB) Close() error {
	db.mu.Lock()
	db.closed = true
	for db.bgCompactionScheduled {
		db.writerCond.Wait()
	}
	db.mu.Unlock()

	if db.log != nil {
		db.log.Close()
	}
	if db.logFile != nil {
		db.logFile.Close()
	}
	if db.versions.manifestFile != nil {
		db.versions.manifestFile.Close()
	}
	if db.fileLock != nil {
		db.fileLock.Close()
	}
	return db.bgError
}

// GetProperty returns a diagnostic string for a property name in the style
// of "lsmdb.num-files-at-level<N>" and "lsmdb.stats", mirroring leveldb's
// DB::GetProperty surface.
func (db *DB) GetProperty(name string) (string, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch {
	case name == "lsmdb.stats":
		return db.statsLocked(), true
	case len(name) > len("lsmdb.num-files-at-level") && name[:len("lsmdb.num-files-at-level")] == "lsmdb.num-files-at-level":
		level := parseLevelSuffix(name[len("lsmdb.num-files-at-level"):])
		if level < 0 || level >= numLevels {
			return "", false
		}
		return itoa(uint64(len(db.versions.current.files[level]))), true
	}
	return "", false
}

func parseLevelSuffix(s string) int {
	if s == "" {
		return -1
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func (db *DB) statsLocked() string {
	var out string
	for level := 0; level < numLevels; level++ {
		files := db.versions.current.files[level]
		if len(files) == 0 {
			continue
		}
		out += "level " + itoa(uint64(level)) + ": " + itoa(uint64(len(files))) + " files, " +
			itoa(totalFileSize(files)) + " bytes\n"
	}
	return out
}

// GetApproximateSizes returns, for each [begin, end] range, an estimate of
// the file bytes lsmdb would need to scan to read that range.
func (db *DB) GetApproximateSizes(ranges [][2][]byte) []uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	cmp := db.opts.Comparer.Compare
	v := db.versions.current
	sizes := make([]uint64, len(ranges))
	for i, r := range ranges {
		for level := 0; level < numLevels; level++ {
			for _, f := range v.files[level] {
				if f.overlapsUserKeyRange(cmp, r[0], r[1]) {
					sizes[i] += f.size
				}
			}
		}
	}
	return sizes
}
