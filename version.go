// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"sort"

	"github.com/tillwork/lsmdb/internal/base"
)

const numLevels = 7

// fileMetaData describes one sorted table file tracked by a Version.
type fileMetaData struct {
	num          fileNum
	size         uint64
	smallest     base.InternalKey
	largest      base.InternalKey
	allowedSeeks int64 // decremented on a seek miss; triggers seek-compaction at 0
}

// overlapsUserKeyRange reports whether the file's key range intersects
// [begin, end]; nil bounds mean unbounded.
func (f *fileMetaData) overlapsUserKeyRange(cmp base.Compare, begin, end []byte) bool {
	if end != nil && cmp(f.smallest.UserKey, end) > 0 {
		return false
	}
	if begin != nil && cmp(f.largest.UserKey, begin) < 0 {
		return false
	}
	return true
}

// version is an immutable snapshot of the on-disk file set: which sstables
// exist at each level and their key ranges. Readers and iterators pin a
// version so compactions never invalidate files out from under them.
type version struct {
	refs   int
	files  [numLevels][]*fileMetaData
	vs     *versionSet

	compactionScore float64
	compactionLevel int

	// fileToCompact is the seek-compaction candidate queued by a prior
	// Version::get call whose allowedSeeks reached zero.
	fileToCompact      *fileMetaData
	fileToCompactLevel int
}

func newVersion(vs *versionSet) *version {
	return &version{vs: vs}
}

func (v *version) ref() { v.refs++ }

func (v *version) unref() {
	v.refs--
}

// get implements Version::get: scan the candidate files for userKey
// newest-first, consulting the table cache, and return the first definite
// answer.
func (v *version) get(tc *tableCache, lookup base.InternalKey) (value []byte, found bool, err error, charged *fileMetaData, chargedLevel int) {
	cmp := v.vs.opts.Comparer.Compare
	userKey := lookup.UserKey

	var candidates []*fileMetaData
	var levels []int

	// Level 0: every overlapping file, newest (highest file number) first.
	l0 := append([]*fileMetaData(nil), v.files[0]...)
	sort.Slice(l0, func(i, j int) bool { return l0[i].num > l0[j].num })
	for _, f := range l0 {
		if f.overlapsUserKeyRange(cmp, userKey, userKey) {
			candidates = append(candidates, f)
			levels = append(levels, 0)
		}
	}

	for level := 1; level < numLevels; level++ {
		files := v.files[level]
		idx := sort.Search(len(files), func(i int) bool {
			return base.InternalCompare(cmp, files[i].largest, lookup) >= 0
		})
		if idx < len(files) && cmp(files[idx].smallest.UserKey, userKey) <= 0 {
			candidates = append(candidates, files[idx])
			levels = append(levels, level)
		}
	}

	seeksCharged := false
	for i, f := range candidates {
		val, kind, ferr := tc.get(f.num, f.size, userKey, lookup.EncodeAppend(nil))
		if !seeksCharged && i == 0 && len(candidates) > 1 {
			charged, chargedLevel = f, levels[i]
			seeksCharged = true
		}
		if ferr != nil {
			if ferr == base.ErrNotFound {
				continue
			}
			return nil, false, ferr, charged, chargedLevel
		}
		if kind == base.InternalKeyKindDelete {
			return nil, false, nil, charged, chargedLevel
		}
		return val, true, nil, charged, chargedLevel
	}
	return nil, false, nil, charged, chargedLevel
}

// updateStats decrements the charged file's allowedSeeks and reports
// whether a seek-compaction should now be scheduled.
func (v *version) updateStats(f *fileMetaData, level int) bool {
	if f == nil {
		return false
	}
	f.allowedSeeks--
	if f.allowedSeeks <= 0 && v.fileToCompact == nil {
		v.fileToCompact = f
		v.fileToCompactLevel = level
		return true
	}
	return false
}

// pickLevelForMemTableOutput chooses the deepest level a freshly flushed
// level-0 file can land in directly, up to kMaxMemCompactLevel, without
// overlapping existing files there or creating excessive future overlap.
func (v *version) pickLevelForMemTableOutput(cmp base.Compare, smallest, largest []byte) int {
	const maxMemCompactLevel = 2
	level := 0
	if v.overlapsLevel(cmp, 0, smallest, largest) {
		return 0
	}
	for level < maxMemCompactLevel {
		if v.overlapsLevel(cmp, level+1, smallest, largest) {
			break
		}
		if level+2 < numLevels {
			overlapBytes := v.overlapBytes(cmp, level+2, smallest, largest)
			if overlapBytes > 10*uint64(v.vs.opts.MaxFileSize) {
				break
			}
		}
		level++
	}
	return level
}

func (v *version) overlapsLevel(cmp base.Compare, level int, smallest, largest []byte) bool {
	for _, f := range v.files[level] {
		if f.overlapsUserKeyRange(cmp, smallest, largest) {
			return true
		}
	}
	return false
}

func (v *version) overlapBytes(cmp base.Compare, level int, smallest, largest []byte) uint64 {
	var total uint64
	for _, f := range v.files[level] {
		if f.overlapsUserKeyRange(cmp, smallest, largest) {
			total += f.size
		}
	}
	return total
}

// getOverlappingInputs returns files at level overlapping [begin, end]. At
// level 0, including a file that extends the range widens the search until
// it stabilizes, since level-0 files can overlap each other arbitrarily.
func (v *version) getOverlappingInputs(cmp base.Compare, level int, begin, end []byte) []*fileMetaData {
	var out []*fileMetaData
	b, e := begin, end
restart:
	out = out[:0]
	for _, f := range v.files[level] {
		if !f.overlapsUserKeyRange(cmp, b, e) {
			continue
		}
		out = append(out, f)
		if level == 0 {
			widened := false
			if b != nil && cmp(f.smallest.UserKey, b) < 0 {
				b = f.smallest.UserKey
				widened = true
			}
			if e != nil && cmp(f.largest.UserKey, e) > 0 {
				e = f.largest.UserKey
				widened = true
			}
			if widened {
				goto restart
			}
		}
	}
	return out
}
