// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"github.com/cockroachdb/errors"
)

// Open opens (and, if CreateIfMissing, creates) the database at dirname.
func Open(dirname string, opts *Options) (*DB, error) {
	opts = opts.EnsureDefaults()
	fs := opts.FS

	if err := fs.MkdirAll(dirname, 0755); err != nil {
		return nil, err
	}

	lock, err := fs.Lock(makeFilename(fs, dirname, fileTypeLock, 0))
	if err != nil {
		return nil, errors.Wrap(err, "lsmdb: acquiring LOCK")
	}

	db := &DB{
		dirname:        dirname,
		opts:           opts,
		fs:             fs,
		pendingOutputs: make(map[fileNum]bool),
		fileLock:       lock,
	}
	db.writerCond.L = &db.mu

	vs := newVersionSet(dirname, opts)
	db.versions = vs

	currentName := makeFilename(fs, dirname, fileTypeCurrent, 0)
	_, statErr := fs.Stat(currentName)
	dbExists := statErr == nil

	if !dbExists {
		if !opts.CreateIfMissing {
			lock.Close()
			return nil, errors.Newf("lsmdb: database %q does not exist", dirname)
		}
		if err := createNewDB(vs, opts); err != nil {
			lock.Close()
			return nil, err
		}
	} else if opts.ErrorIfExists {
		lock.Close()
		return nil, errors.Newf("lsmdb: database %q already exists", dirname)
	}

	saveManifest, err := vs.recover()
	if err != nil {
		lock.Close()
		return nil, err
	}

	db.tableCache = newTableCache(fs, dirname, opts)
	db.snapshots.init()
	db.mem = newMemTable(opts.Comparer)

	if err := db.replayLogFiles(saveManifest); err != nil {
		lock.Close()
		return nil, err
	}

	if saveManifest {
		edit := &versionEdit{}
		if err := vs.logAndApply(edit, &db.mu); err != nil {
			lock.Close()
			return nil, err
		}
	}

	db.mu.Lock()
	if err := db.removeObsoleteFiles(); err != nil {
		db.opts.Logger.Errorf("lsmdb: removing obsolete files: %v", err)
	}
	db.maybeScheduleCompactionLocked()
	db.mu.Unlock()

	return db, nil
}

// createNewDB bootstraps a brand new database: a manifest containing a
// single baseline edit (comparator name, empty file set, initial counters)
// and a CURRENT file pointing at it.
func createNewDB(vs *versionSet, opts *Options) error {
	edit := &versionEdit{
		comparatorName: opts.Comparer.Name,
		hasComparator:  true,
		nextFileNumber: 2,
		hasNextFileNum: true,
		lastSequence:   0,
		hasLastSeq:     true,
	}
	if err := vs.createManifest(edit); err != nil {
		return err
	}
	return setCurrentFile(vs.fs, vs.dirname, vs.manifestFileNum)
}
