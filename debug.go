// Copyright 2025 the lsmdb Authors.

package lsmdb

// DebugManifestRows returns one [level, file, size, smallest, largest] row
// per table in the current version, for the cmd/lsmdb manifest command.
func (db *DB) DebugManifestRows() [][]string {
	db.mu.Lock()
	defer db.mu.Unlock()

	var rows [][]string
	for level := 0; level < numLevels; level++ {
		for _, f := range db.versions.current.files[level] {
			rows = append(rows, []string{
				itoa(uint64(level)),
				itoa(uint64(f.num)),
				itoa(f.size),
				string(f.smallest.UserKey),
				string(f.largest.UserKey),
			})
		}
	}
	return rows
}

// DebugLevelFileCounts returns the number of files at each level of the
// current version, for the cmd/lsmdb stats command's graph.
func (db *DB) DebugLevelFileCounts() []int {
	db.mu.Lock()
	defer db.mu.Unlock()

	counts := make([]int, numLevels)
	for level := 0; level < numLevels; level++ {
		counts[level] = len(db.versions.current.files[level])
	}
	return counts
}
