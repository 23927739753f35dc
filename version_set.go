// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"io"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/record"
	"github.com/tillwork/lsmdb/vfs"
)

// versionSet owns the chain of versions, the manifest log that durably
// records changes between them, and the counters (file numbers, last
// sequence number) that every version edit threads through.
type versionSet struct {
	dirname string
	fs      vfs.FS
	opts    *Options
	cmp     base.Compare

	current *version

	nextFileNumber  fileNum
	manifestFileNum fileNum
	logNumber       fileNum
	prevLogNumber   fileNum
	lastSequence    base.SeqNum

	manifestFile   vfs.File
	manifestWriter *record.Writer

	compactPointers [numLevels]base.InternalKey
	hasCompactPtr   [numLevels]bool
}

func newVersionSet(dirname string, opts *Options) *versionSet {
	vs := &versionSet{
		dirname:        dirname,
		fs:             opts.FS,
		opts:           opts,
		cmp:            opts.Comparer.Compare,
		nextFileNumber: 2,
	}
	vs.current = newVersion(vs)
	return vs
}

func (vs *versionSet) newFileNumber() fileNum {
	n := vs.nextFileNumber
	vs.nextFileNumber++
	return n
}

// markFileNumberUsed ensures the allocator never hands out a number at or
// below num again, used while replaying the manifest during recovery.
func (vs *versionSet) markFileNumberUsed(num fileNum) {
	if vs.nextFileNumber <= num {
		vs.nextFileNumber = num + 1
	}
}

// logAndApply applies edit to vs.current to produce a new version, appends
// the edit to the manifest, and installs the new version as current. mu is
// held by the caller across the in-memory mutation but is dropped while the
// manifest write and CURRENT update perform I/O, matching the teacher's
// VersionSet::LogAndApply contract.
func (vs *versionSet) logAndApply(edit *versionEdit, mu *sync.Mutex) error {
	if edit.hasLogNumber {
		if edit.logNumber < vs.logNumber || edit.logNumber >= vs.nextFileNumber {
			return errors.New("lsmdb: invalid log number in version edit")
		}
	} else {
		edit.logNumber = vs.logNumber
		edit.hasLogNumber = true
	}
	if !edit.hasPrevLogNum {
		edit.prevLogNumber = vs.prevLogNumber
		edit.hasPrevLogNum = true
	}
	edit.nextFileNumber = vs.nextFileNumber
	edit.hasNextFileNum = true
	edit.lastSequence = vs.lastSequence
	edit.hasLastSeq = true

	v := newVersion(vs)
	b := newBuilder(vs)
	b.apply(edit)
	b.saveTo(v)
	vs.finalize(v)

	needsSnapshot := vs.manifestWriter == nil
	var baseline *versionEdit
	if needsSnapshot {
		baseline = vs.snapshotEdit()
	}

	mu.Unlock()
	var err error
	if needsSnapshot {
		err = vs.createManifest(baseline)
	}
	if err == nil {
		err = vs.manifestWriter.WriteRecord(edit.encode())
		if err == nil {
			err = vs.manifestFile.Sync()
		}
	}
	if err == nil && needsSnapshot {
		err = setCurrentFile(vs.fs, vs.dirname, vs.manifestFileNum)
	}
	mu.Lock()

	if err != nil {
		return err
	}

	vs.current = v
	vs.logNumber = edit.logNumber
	vs.prevLogNumber = edit.prevLogNumber
	return nil
}

// snapshotEdit captures the full current state as a single edit, used to
// seed a freshly created manifest so it doesn't depend on a manifest that
// no longer exists.
func (vs *versionSet) snapshotEdit() *versionEdit {
	e := &versionEdit{comparatorName: vs.opts.Comparer.Name, hasComparator: true}
	for level := 0; level < numLevels; level++ {
		for _, f := range vs.current.files[level] {
			e.addFile(level, f)
		}
	}
	return e
}

func (vs *versionSet) createManifest(baseline *versionEdit) error {
	num := vs.newFileNumber()
	name := makeFilename(vs.fs, vs.dirname, fileTypeManifest, num)
	f, err := vs.fs.Create(name)
	if err != nil {
		return err
	}
	w := record.NewWriter(f)
	if err := w.WriteRecord(baseline.encode()); err != nil {
		f.Close()
		return err
	}
	if vs.manifestFile != nil {
		vs.manifestFile.Close()
	}
	vs.manifestFile = f
	vs.manifestWriter = w
	vs.manifestFileNum = num
	return nil
}

// recover replays CURRENT's manifest to rebuild the latest version and the
// VersionSet's counters. saveManifest reports whether the recovered
// manifest is larger than MaxFileSize (or could not be stat'ed), in which
// case the caller writes a fresh one right away; either way the recovered
// manifest is never reopened for append.
func (vs *versionSet) recover() (saveManifest bool, err error) {
	currentName := makeFilename(vs.fs, vs.dirname, fileTypeCurrent, 0)
	data, err := readFileFully(vs.fs, currentName)
	if err != nil {
		return false, err
	}
	manifestBase := trimNewline(data)
	manifestName := vs.fs.PathJoin(vs.dirname, manifestBase)

	f, err := vs.fs.Open(manifestName)
	if err != nil {
		return false, err
	}
	defer f.Close()

	b := newBuilder(vs)
	r := record.NewReader(f)
	var haveLastSeq, haveLogNum, haveNextFile, haveComparator bool
	var logNum, prevLogNum, nextFileNum fileNum
	var lastSeq base.SeqNum

	for {
		rec, rerr := r.Next()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || record.IsInvalidRecord(rerr) {
				break
			}
			return false, rerr
		}
		payload, rerr := readAll(rec)
		if rerr != nil {
			return false, rerr
		}
		edit, derr := decodeVersionEdit(payload)
		if derr != nil {
			return false, derr
		}
		if edit.hasComparator {
			if edit.comparatorName != vs.opts.Comparer.Name {
				return false, errors.Newf("lsmdb: database was created with comparator %q, opened with %q",
					edit.comparatorName, vs.opts.Comparer.Name)
			}
			haveComparator = true
		}
		if edit.hasLogNumber {
			logNum = edit.logNumber
			haveLogNum = true
		}
		if edit.hasPrevLogNum {
			prevLogNum = edit.prevLogNumber
		}
		if edit.hasNextFileNum {
			nextFileNum = edit.nextFileNumber
			haveNextFile = true
		}
		if edit.hasLastSeq {
			lastSeq = edit.lastSequence
			haveLastSeq = true
		}
		b.apply(edit)
	}
	if !haveNextFile {
		return false, errors.New("lsmdb: manifest missing next-file-number record")
	}
	if !haveLastSeq {
		return false, errors.New("lsmdb: manifest missing last-sequence record")
	}
	if !haveLogNum {
		logNum = 0
	}
	_ = haveComparator

	v := newVersion(vs)
	b.saveTo(v)
	vs.finalize(v)
	vs.current = v
	vs.logNumber = logNum
	vs.prevLogNumber = prevLogNum
	vs.lastSequence = lastSeq
	vs.markFileNumberUsed(nextFileNum - 1)
	vs.nextFileNumber = nextFileNum

	_, manifestNum, ok := parseFilename(vs.fs, manifestBase)
	if ok {
		vs.markFileNumberUsed(manifestNum)
	}

	info, serr := f.Stat()
	saveManifest = serr != nil || info.Size() > int64(vs.opts.MaxFileSize)
	// vs.manifestWriter stays nil either way: the next LogAndApply call
	// snapshots the recovered state into a fresh manifest rather than
	// reopening the recovered one for append.
	return saveManifest, nil
}

func trimNewline(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return string(b)
}

func readFileFully(fs vfs.FS, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readAll(f)
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

// maxBytesForLevel mirrors leveldb's exponential per-level size budget:
// level 1 targets 10 MiB, and each deeper level targets ten times its
// parent.
func maxBytesForLevel(level int) float64 {
	result := 10.0 * 1048576.0
	for level > 1 {
		result *= 10
		level--
	}
	return result
}

func totalFileSize(files []*fileMetaData) uint64 {
	var total uint64
	for _, f := range files {
		total += f.size
	}
	return total
}

const l0CompactionTrigger = 4
const l0SlowdownWritesTrigger = 8
const l0StopWritesTrigger = 12

// finalize computes each version's compaction score, the same metric the
// teacher's VersionSet::Finalize uses: level 0 scores on file count (since
// a seek must touch every overlapping L0 file), deeper levels score on
// total bytes relative to their budget.
func (vs *versionSet) finalize(v *version) {
	bestLevel := -1
	bestScore := -1.0
	for level := 0; level < numLevels-1; level++ {
		var score float64
		if level == 0 {
			score = float64(len(v.files[0])) / float64(l0CompactionTrigger)
		} else {
			score = float64(totalFileSize(v.files[level])) / maxBytesForLevel(level)
		}
		if score > bestScore {
			bestScore = score
			bestLevel = level
		}
	}
	v.compactionLevel = bestLevel
	v.compactionScore = bestScore
}

// compaction describes one merge job: the input files at level and
// level+1, and the wider grandparent range used to bound output file size.
type compaction struct {
	level        int
	inputs       [2][]*fileMetaData
	grandparents []*fileMetaData
	edit         *versionEdit
	inputVersion *version
}

// pickCompaction chooses the next compaction, preferring a size-triggered
// compaction (from Finalize's score) over a seek-triggered one queued by a
// prior Version::get miss.
func (vs *versionSet) pickCompaction() *compaction {
	v := vs.current
	sizeCompaction := v.compactionScore >= 1
	seekCompaction := v.fileToCompact != nil

	var c *compaction
	if sizeCompaction {
		level := v.compactionLevel
		c = &compaction{level: level, inputVersion: v}
		for _, f := range v.files[level] {
			if !vs.hasCompactPtr[level] || base.InternalCompare(vs.cmp, f.largest, vs.compactPointers[level]) > 0 {
				c.inputs[0] = []*fileMetaData{f}
				break
			}
		}
		if len(c.inputs[0]) == 0 && len(v.files[level]) > 0 {
			c.inputs[0] = []*fileMetaData{v.files[level][0]}
		}
	} else if seekCompaction {
		c = &compaction{level: v.fileToCompactLevel, inputVersion: v}
		c.inputs[0] = []*fileMetaData{v.fileToCompact}
	} else {
		return nil
	}

	if c.level == 0 {
		smallest, largest := filesKeyRange(vs.cmp, c.inputs[0])
		c.inputs[0] = v.getOverlappingInputs(vs.cmp, 0, smallest, largest)
	}

	vs.setupOtherInputs(c)
	return c
}

func filesKeyRange(cmp base.Compare, files []*fileMetaData) (smallest, largest []byte) {
	for i, f := range files {
		if i == 0 || cmp(f.smallest.UserKey, smallest) < 0 {
			smallest = f.smallest.UserKey
		}
		if i == 0 || cmp(f.largest.UserKey, largest) > 0 {
			largest = f.largest.UserKey
		}
	}
	return smallest, largest
}

// largestInternalKey returns the largest internal key among files, which
// must be non-empty.
func largestInternalKey(cmp base.Compare, files []*fileMetaData) base.InternalKey {
	largest := files[0].largest
	for _, f := range files[1:] {
		if base.InternalCompare(cmp, f.largest, largest) > 0 {
			largest = f.largest
		}
	}
	return largest
}

// findSmallestBoundaryFile returns the file in levelFiles with the smallest
// internal key that is both greater than largest and shares largest's user
// key, or nil if there is no such file.
func findSmallestBoundaryFile(cmp base.Compare, levelFiles []*fileMetaData, largest base.InternalKey) *fileMetaData {
	var smallest *fileMetaData
	for _, f := range levelFiles {
		if base.InternalCompare(cmp, f.smallest, largest) > 0 &&
			cmp(f.smallest.UserKey, largest.UserKey) == 0 {
			if smallest == nil || base.InternalCompare(cmp, f.smallest, smallest.smallest) < 0 {
				smallest = f
			}
		}
	}
	return smallest
}

// addBoundaryInputs extends compactionFiles with every file in levelFiles
// that shares a user key with the running largest key of compactionFiles
// but sorts after it, repeating until no such file remains. Two files at
// the same level can share a user key at a split boundary; compacting one
// without the other would leave a Get free to read the uncompacted file's
// stale version of that key once the compacted file stops covering it.
func addBoundaryInputs(cmp base.Compare, levelFiles []*fileMetaData, compactionFiles []*fileMetaData) []*fileMetaData {
	if len(compactionFiles) == 0 {
		return compactionFiles
	}
	largest := largestInternalKey(cmp, compactionFiles)
	for {
		f := findSmallestBoundaryFile(cmp, levelFiles, largest)
		if f == nil {
			return compactionFiles
		}
		compactionFiles = append(compactionFiles, f)
		largest = f.largest
	}
}

// setupOtherInputs computes the level+1 participants for c.inputs[0] and
// opportunistically widens inputs[0] at level 0 when doing so doesn't pull
// in any new level+1 file, matching leveldb's VersionSet::SetupOtherInputs.
// At every step it extends the input set with addBoundaryInputs so a
// compaction never splits two files that share a boundary user key.
func (vs *versionSet) setupOtherInputs(c *compaction) {
	v := c.inputVersion

	c.inputs[0] = addBoundaryInputs(vs.cmp, v.files[c.level], c.inputs[0])
	smallest, largest := filesKeyRange(vs.cmp, c.inputs[0])
	c.inputs[1] = v.getOverlappingInputs(vs.cmp, c.level+1, smallest, largest)
	c.inputs[1] = addBoundaryInputs(vs.cmp, v.files[c.level+1], c.inputs[1])

	allSmallest, allLargest := filesKeyRange(vs.cmp, append(append([]*fileMetaData{}, c.inputs[0]...), c.inputs[1]...))

	if len(c.inputs[1]) > 0 {
		expanded0 := v.getOverlappingInputs(vs.cmp, c.level, allSmallest, allLargest)
		expanded0 = addBoundaryInputs(vs.cmp, v.files[c.level], expanded0)
		if len(expanded0) > len(c.inputs[0]) {
			newSmallest, newLargest := filesKeyRange(vs.cmp, expanded0)
			expanded1 := v.getOverlappingInputs(vs.cmp, c.level+1, newSmallest, newLargest)
			expanded1 = addBoundaryInputs(vs.cmp, v.files[c.level+1], expanded1)
			if len(expanded1) == len(c.inputs[1]) {
				c.inputs[0] = expanded0
				c.inputs[1] = expanded1
				allSmallest, allLargest = filesKeyRange(vs.cmp, append(append([]*fileMetaData{}, c.inputs[0]...), c.inputs[1]...))
			}
		}
	}

	if c.level+2 < numLevels {
		c.grandparents = v.getOverlappingInputs(vs.cmp, c.level+2, allSmallest, allLargest)
	}

	c.edit = &versionEdit{}
	vs.compactPointers[c.level] = base.MakeInternalKey(allLargest, base.SeqNumMax, base.InternalKeyKindMax)
	vs.hasCompactPtr[c.level] = true
	c.edit.setCompactPointer(c.level, vs.compactPointers[c.level])
}

// isTrivialMove reports whether c can be satisfied by simply renaming the
// single input file into level+1, skipping the merge entirely: exactly one
// input file, no level+1 files to merge with, and limited grandparent
// overlap so the shortcut doesn't create an oversized future compaction.
func (c *compaction) isTrivialMove(opts *Options) bool {
	return len(c.inputs[0]) == 1 && len(c.inputs[1]) == 0 &&
		totalFileSize(c.grandparents) <= uint64(10*opts.MaxFileSize)
}

// builder accumulates added/deleted files from a sequence of version edits
// before materializing them into a new version's per-level file lists, the
// same two-phase approach as leveldb's VersionSet::Builder.
type builder struct {
	vs      *versionSet
	base    *version
	added   [numLevels]map[fileNum]*fileMetaData
	deleted [numLevels]map[fileNum]bool
}

func newBuilder(vs *versionSet) *builder {
	b := &builder{vs: vs, base: vs.current}
	for i := range b.added {
		b.added[i] = make(map[fileNum]*fileMetaData)
		b.deleted[i] = make(map[fileNum]bool)
	}
	return b
}

func (b *builder) apply(e *versionEdit) {
	for _, cp := range e.compactPointers {
		b.vs.compactPointers[cp.level] = cp.key
		b.vs.hasCompactPtr[cp.level] = true
	}
	for d := range e.deletedFiles {
		b.deleted[d.level][d.num] = true
	}
	for _, nf := range e.newFiles {
		delete(b.deleted[nf.level], nf.meta.num)
		b.added[nf.level][nf.meta.num] = nf.meta
	}
}

func (b *builder) saveTo(v *version) {
	for level := 0; level < numLevels; level++ {
		var files []*fileMetaData
		for _, f := range b.base.files[level] {
			if !b.deleted[level][f.num] && b.added[level][f.num] == nil {
				files = append(files, f)
			}
		}
		for _, f := range b.added[level] {
			files = append(files, f)
		}
		if level == 0 {
			sort.Slice(files, func(i, j int) bool { return files[i].num < files[j].num })
		} else {
			sort.Slice(files, func(i, j int) bool {
				return base.InternalCompare(b.vs.cmp, files[i].smallest, files[j].smallest) < 0
			})
		}
		v.files[level] = files
	}
}
