// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"container/heap"

	"golang.org/x/sync/errgroup"

	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/sstable"
)

// maybeScheduleCompactionLocked starts a background compaction goroutine
// if one isn't already running and there's work to do: an immutable
// memtable waiting to flush, or a version whose compaction score/
// seek-miss counter calls for a merge. Must be called with db.mu held.
func (db *DB) maybeScheduleCompactionLocked() {
	if db.bgCompactionScheduled || db.closed || db.bgError != nil {
		return
	}
	if db.imm == nil && db.versions.current.compactionScore < 1 && db.versions.current.fileToCompact == nil {
		return
	}
	db.bgCompactionScheduled = true
	go db.backgroundCompaction()
}

func (db *DB) backgroundCompaction() {
	db.mu.Lock()
	defer func() {
		db.bgCompactionScheduled = false
		db.maybeScheduleCompactionLocked()
		db.writerCond.Broadcast()
		db.mu.Unlock()
	}()

	if db.closed {
		return
	}

	if db.imm != nil {
		if err := db.compactMemTableLocked(); err != nil {
			db.bgError = err
			return
		}
		db.maybeScheduleCompactionLocked()
		return
	}

	c := db.versions.pickCompaction()
	if c == nil {
		return
	}

	if c.isTrivialMove(db.opts) {
		f := c.inputs[0][0]
		c.edit.deleteFile(c.level, f.num)
		c.edit.addFile(c.level+1, f)
		if err := db.versions.logAndApply(c.edit, &db.mu); err != nil {
			db.bgError = err
			return
		}
		db.maybeScheduleCompactionLocked()
		return
	}

	if err := db.doCompactionWork(c); err != nil {
		db.bgError = err
		return
	}
	if err := db.removeObsoleteFiles(); err != nil {
		db.opts.Logger.Errorf("lsmdb: removing obsolete files: %v", err)
	}
	db.maybeScheduleCompactionLocked()
}

// compactMemTableLocked flushes db.imm to a new level-0 (or deeper) table
// and installs the resulting version edit. Must be called with db.mu held.
func (db *DB) compactMemTableLocked() error {
	imm := db.imm
	edit := &versionEdit{}

	db.mu.Unlock()
	err := db.flushMemTableToLevel(imm, edit)
	db.mu.Lock()

	if err != nil {
		return err
	}
	edit.prevLogNumber = 0
	edit.hasPrevLogNum = true
	if err := db.versions.logAndApply(edit, &db.mu); err != nil {
		return err
	}
	db.imm = nil
	return nil
}

// flushMemTableToLevel writes mem's contents to a new sorted table and
// records it into edit at the level Version.pickLevelForMemTableOutput
// chooses. Called without db.mu held: file I/O is the expensive part and
// doesn't need the lock, matching leveldb's BuildTable/WriteLevel0Table
// split.
func (db *DB) flushMemTableToLevel(mem *memTable, edit *versionEdit) error {
	it := newMemTableIterator(mem)
	it.SeekToFirst()
	if !it.Valid() {
		return nil
	}

	num := db.versions.newFileNumber()
	name := makeFilename(db.fs, db.dirname, fileTypeTable, num)
	f, err := db.fs.Create(name)
	if err != nil {
		return err
	}

	wtr := sstable.NewWriter(f, db.opts.writerOptions())
	var smallest, largest base.InternalKey
	first := true
	for it.Valid() {
		ikey, err := base.DecodeInternalKey(it.Key())
		if err != nil {
			f.Close()
			return err
		}
		if first {
			smallest = ikey.Clone()
			first = false
		}
		largest = ikey.Clone()
		if err := wtr.Add(it.Key(), it.Value()); err != nil {
			f.Close()
			return err
		}
		it.Next()
	}
	if err := wtr.Finish(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	meta := &fileMetaData{
		num:          num,
		size:         wtr.EstimatedSize(),
		smallest:     smallest,
		largest:      largest,
		allowedSeeks: allowedSeeksForSize(wtr.EstimatedSize()),
	}
	level := db.versions.current.pickLevelForMemTableOutput(db.opts.Comparer.Compare, smallest.UserKey, largest.UserKey)
	edit.addFile(level, meta)
	return nil
}

// allowedSeeksForSize mirrors leveldb's seek-compaction budget: one
// allowed seek-miss per 16 KiB of file size, floor 100, so small files
// don't trigger a compaction after a single unlucky probe.
func allowedSeeksForSize(size uint64) int64 {
	seeks := int64(size / (16 * 1024))
	if seeks < 100 {
		seeks = 100
	}
	return seeks
}

// doCompactionWork merges c's input files (plus the current memtable's
// writes are unaffected; only on-disk tables participate) and writes the
// result to one or more new tables at c.level+1, splitting outputs at
// MaxFileSize and at grandparent boundaries via shouldStopBefore. Obsolete
// entries are dropped per the same rules leveldb's DoCompactionWork
// applies: a key's older versions are dropped once no live snapshot can
// see them, and a tombstone is dropped once no deeper level could still
// hold a value it needs to shadow.
//
// Must be called with db.mu held; returns with db.mu held. The merge
// itself runs with the lock released, matching compactMemTableLocked, so
// Get/Write/NewIter aren't blocked for the duration of the disk I/O. The
// lock is retaken briefly to allocate each output file's number, and
// again before installing the resulting version edit.
func (db *DB) doCompactionWork(c *compaction) error {
	cmp := db.opts.Comparer.Compare
	smallestSnapshot := db.snapshots.oldest(db.versions.lastSequence)

	db.mu.Unlock()
	err := db.mergeCompactionInputs(c, cmp, smallestSnapshot)
	db.mu.Lock()
	if err != nil {
		return err
	}

	return db.versions.logAndApply(c.edit, &db.mu)
}

// mergeCompactionInputs does the actual k-way merge and sstable writing for
// c, with db.mu released throughout except for the brief newFileNumber
// calls. Called by doCompactionWork.
func (db *DB) mergeCompactionInputs(c *compaction, cmp base.Compare, smallestSnapshot base.SeqNum) error {
	h := &mergedIterHeap{cmp: cmp}
	var closers []func()
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	for _, level := range [2]int{0, 1} {
		for _, f := range c.inputs[level] {
			it, closer, err := db.tableCache.newIterator(f.num, f.size)
			if err != nil {
				return err
			}
			closers = append(closers, closer)
			it.SeekToFirst()
			if it.Valid() {
				h.items = append(h.items, &mergedIterItem{it: it, level: level})
			}
		}
	}
	heap.Init(h)

	state := newCompactionState(c)
	baseCursor := newBaseLevelCursor(c.inputVersion, cmp, c.level)

	var wtr *sstable.Writer
	var outFile interface {
		Close() error
		Sync() error
	}
	var curSmallest, curLargest base.InternalKey
	var haveCur bool

	finishOutput := func() error {
		if wtr == nil {
			return nil
		}
		if err := wtr.Finish(); err != nil {
			return err
		}
		if err := outFile.Sync(); err != nil {
			return err
		}
		if err := outFile.Close(); err != nil {
			return err
		}
		wtr = nil
		return nil
	}

	var lastUserKey []byte
	var haveLastUserKey bool
	var lastUserKeySeenAtOrBelowSnapshot bool

	for h.Len() > 0 {
		item := h.items[0]
		ikeyBuf := append([]byte(nil), item.it.Key()...)
		value := append([]byte(nil), item.it.Value()...)
		ikey, err := base.DecodeInternalKey(ikeyBuf)
		if err != nil {
			return err
		}

		item.it.Next()
		if item.it.Valid() {
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}

		drop := false
		if haveLastUserKey && bytesUserKeyEqual(lastUserKey, ikey.UserKey) {
			if lastUserKeySeenAtOrBelowSnapshot {
				drop = true
			}
		} else {
			lastUserKey = append(lastUserKey[:0], ikey.UserKey...)
			haveLastUserKey = true
			lastUserKeySeenAtOrBelowSnapshot = false
		}

		if !drop {
			if ikey.SeqNum() <= smallestSnapshot {
				lastUserKeySeenAtOrBelowSnapshot = true
				if ikey.Kind() == base.InternalKeyKindDelete && baseCursor.isBaseLevelForKey(ikey.UserKey) {
					drop = true
				}
			}
		}

		if drop {
			continue
		}

		if wtr != nil && state.shouldStopBefore(cmp, ikey, db.opts.MaxFileSize) {
			if err := finishOutput(); err != nil {
				return err
			}
		}

		if wtr == nil {
			db.mu.Lock()
			num := db.versions.newFileNumber()
			db.mu.Unlock()
			name := makeFilename(db.fs, db.dirname, fileTypeTable, num)
			f, err := db.fs.Create(name)
			if err != nil {
				return err
			}
			wtr = sstable.NewWriter(f, db.opts.writerOptions())
			outFile = f
			haveCur = false
			c.edit.addFile(c.level+1, &fileMetaData{num: num})
		}

		if !haveCur {
			curSmallest = ikey.Clone()
			haveCur = true
		}
		curLargest = ikey.Clone()

		if err := wtr.Add(ikeyBuf, value); err != nil {
			return err
		}

		if int64(wtr.EstimatedSize()) >= db.opts.MaxFileSize {
			meta := c.edit.newFiles[len(c.edit.newFiles)-1].meta
			meta.smallest = curSmallest
			meta.largest = curLargest
			meta.size = wtr.EstimatedSize()
			meta.allowedSeeks = allowedSeeksForSize(meta.size)
			if err := finishOutput(); err != nil {
				return err
			}
		}
	}

	if wtr != nil {
		meta := c.edit.newFiles[len(c.edit.newFiles)-1].meta
		meta.smallest = curSmallest
		meta.largest = curLargest
		meta.size = wtr.EstimatedSize()
		meta.allowedSeeks = allowedSeeksForSize(meta.size)
		if err := finishOutput(); err != nil {
			return err
		}
	}

	for _, f := range c.inputs[0] {
		c.edit.deleteFile(c.level, f.num)
	}
	for _, f := range c.inputs[1] {
		c.edit.deleteFile(c.level+1, f.num)
	}

	return nil
}

func bytesUserKeyEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// removeObsoleteFiles deletes tables, logs, and manifests that no version
// or pending output references any longer.
//
// Must be called with db.mu held; returns with db.mu held. The directory
// listing and deletions run with the lock released, matching spec's
// remove_obsolete_files suspension point; the deletions themselves fan out
// through an errgroup since they're independent of one another.
func (db *DB) removeObsoleteFiles() error {
	live := make(map[fileNum]bool)
	for level := 0; level < numLevels; level++ {
		for _, f := range db.versions.current.files[level] {
			live[f.num] = true
		}
	}
	for num := range db.pendingOutputs {
		live[num] = true
	}
	logNumber := db.versions.logNumber
	logNum := db.logNum
	manifestFileNum := db.versions.manifestFileNum

	db.mu.Unlock()
	err := db.removeObsoleteFilesUnlocked(live, logNumber, logNum, manifestFileNum)
	db.mu.Lock()
	return err
}

func (db *DB) removeObsoleteFilesUnlocked(live map[fileNum]bool, logNumber, logNum, manifestFileNum fileNum) error {
	names, err := db.fs.List(db.dirname)
	if err != nil {
		return err
	}

	var toRemove []string
	for _, name := range names {
		ft, num, ok := parseFilename(db.fs, name)
		if !ok {
			continue
		}
		var keep bool
		switch ft {
		case fileTypeLog:
			keep = num >= logNumber || num == logNum
		case fileTypeManifest:
			keep = num >= manifestFileNum
		case fileTypeTable:
			keep = live[num]
		case fileTypeCurrent, fileTypeLock, fileTypeInfoLog, fileTypeOldInfoLog, fileTypeTemp:
			keep = true
		}
		if !keep {
			toRemove = append(toRemove, name)
			if ft == fileTypeTable {
				db.tableCache.evict(num)
			}
		}
	}

	var g errgroup.Group
	for _, name := range toRemove {
		path := db.fs.PathJoin(db.dirname, name)
		g.Go(func() error {
			return db.fs.Remove(path)
		})
	}
	return g.Wait()
}

// CompactRange forces compaction of the key range [begin, end] (nil bounds
// are unbounded) down through every level that overlaps it.
func (db *DB) CompactRange(begin, end []byte) error {
	db.mu.Lock()
	if err := db.makeRoomForWrite(true); err != nil {
		db.mu.Unlock()
		return err
	}
	for db.imm != nil {
		db.writerCond.Wait()
	}
	db.mu.Unlock()

	cmp := db.opts.Comparer.Compare
	for level := 0; level < numLevels-1; level++ {
		db.mu.Lock()
		v := db.versions.current
		if !v.overlapsLevel(cmp, level, begin, end) {
			db.mu.Unlock()
			continue
		}
		inputs0 := v.getOverlappingInputs(cmp, level, begin, end)
		c := &compaction{level: level, inputVersion: v}
		c.inputs[0] = inputs0
		db.versions.setupOtherInputs(c)

		if c.isTrivialMove(db.opts) {
			f := c.inputs[0][0]
			c.edit.deleteFile(c.level, f.num)
			c.edit.addFile(c.level+1, f)
			err := db.versions.logAndApply(c.edit, &db.mu)
			db.mu.Unlock()
			if err != nil {
				return err
			}
			continue
		}

		// doCompactionWork expects db.mu held on entry and returns with it
		// held again, releasing it itself for the merge and manifest write.
		err := db.doCompactionWork(c)
		db.mu.Unlock()
		if err != nil {
			return err
		}
	}

	db.mu.Lock()
	err := db.removeObsoleteFiles()
	db.mu.Unlock()
	return err
}
