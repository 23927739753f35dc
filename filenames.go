// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tillwork/lsmdb/vfs"
)

type fileType int

const (
	fileTypeLog fileType = iota
	fileTypeLock
	fileTypeTable
	fileTypeManifest
	fileTypeCurrent
	fileTypeTemp
	fileTypeOldInfoLog
	fileTypeInfoLog
)

// fileNum is a file's unique, strictly increasing identifier, allocated by
// the VersionSet.
type fileNum uint64

func makeFilename(fs vfs.FS, dirname string, ft fileType, num fileNum) string {
	switch ft {
	case fileTypeLog:
		return fs.PathJoin(dirname, fmt.Sprintf("%06d.log", num))
	case fileTypeLock:
		return fs.PathJoin(dirname, "LOCK")
	case fileTypeTable:
		return fs.PathJoin(dirname, fmt.Sprintf("%06d.ldb", num))
	case fileTypeManifest:
		return fs.PathJoin(dirname, fmt.Sprintf("MANIFEST-%06d", num))
	case fileTypeCurrent:
		return fs.PathJoin(dirname, "CURRENT")
	case fileTypeTemp:
		return fs.PathJoin(dirname, fmt.Sprintf("%06d.dbtmp", num))
	case fileTypeInfoLog:
		return fs.PathJoin(dirname, "LOG")
	case fileTypeOldInfoLog:
		return fs.PathJoin(dirname, "LOG.old")
	}
	panic("lsmdb: unknown file type")
}

// legacyTableFilename is the legacy ".sst" suffix the table cache falls
// back to when a ".ldb" file isn't found, matching older databases written
// before the rename.
func legacyTableFilename(fs vfs.FS, dirname string, num fileNum) string {
	return fs.PathJoin(dirname, fmt.Sprintf("%06d.sst", num))
}

// parseFilename extracts the file type and number encoded in filename (the
// base name, not a full path), reporting ok=false for names that don't
// match any known pattern (e.g. a stray file left by another process).
func parseFilename(fs vfs.FS, filename string) (ft fileType, num fileNum, ok bool) {
	name := fs.PathBase(filename)
	switch {
	case name == "CURRENT":
		return fileTypeCurrent, 0, true
	case name == "LOCK":
		return fileTypeLock, 0, true
	case name == "LOG":
		return fileTypeInfoLog, 0, true
	case name == "LOG.old":
		return fileTypeOldInfoLog, 0, true
	case strings.HasPrefix(name, "MANIFEST-"):
		n, err := strconv.ParseUint(strings.TrimPrefix(name, "MANIFEST-"), 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeManifest, fileNum(n), true
	case strings.HasSuffix(name, ".log"):
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".log"), 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeLog, fileNum(n), true
	case strings.HasSuffix(name, ".ldb"), strings.HasSuffix(name, ".sst"):
		trimmed := strings.TrimSuffix(strings.TrimSuffix(name, ".ldb"), ".sst")
		n, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeTable, fileNum(n), true
	case strings.HasSuffix(name, ".dbtmp"):
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".dbtmp"), 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeTemp, fileNum(n), true
	}
	return 0, 0, false
}

// setCurrentFile atomically updates CURRENT to point at the manifest
// numbered num: write a temp file, then rename over CURRENT so a crash
// mid-write never leaves CURRENT pointing at a manifest that doesn't
// parse.
func setCurrentFile(fs vfs.FS, dirname string, num fileNum) error {
	tmpName := makeFilename(fs, dirname, fileTypeTemp, num)
	fs.Remove(tmpName)
	f, err := fs.Create(tmpName)
	if err != nil {
		return err
	}
	manifestBase := fs.PathBase(makeFilename(fs, dirname, fileTypeManifest, num))
	if _, err := f.Write([]byte(manifestBase + "\n")); err != nil {
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
	return fs.Rename(tmpName, makeFilename(fs, dirname, fileTypeCurrent, 0))
}
