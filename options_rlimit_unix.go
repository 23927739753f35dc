// Copyright 2025 the lsmdb Authors.

//go:build unix

package lsmdb

import "golang.org/x/sys/unix"

// clampMaxOpenFilesToRlimit bounds want to 20% of the process's
// RLIMIT_NOFILE, leaving the rest of the budget for WAL/manifest/LOCK
// descriptors and whatever else the process has open. Returns want
// unchanged if the limit can't be read.
func clampMaxOpenFilesToRlimit(want int) int {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return want
	}
	budget := int(rlimit.Cur / 5)
	if budget < 1 {
		budget = 1
	}
	if budget < want {
		return budget
	}
	return want
}
