// Copyright 2025 the lsmdb Authors.

package lsmdb

import "github.com/tillwork/lsmdb/internal/cache"

// Cache is the entry point to the block-cache implementation so callers
// can build one cache and share it across multiple open databases via
// Options.BlockCache, matching the teacher's shared-cache model.
type Cache = cache.Cache

// NewCache returns a Cache sized for roughly bytesCapacity worth of
// sstable blocks, given Options.BlockSize as the expected block size.
func NewCache(bytesCapacity int64, blockSize int) *Cache {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	entries := int(bytesCapacity) / blockSize
	if entries < 16 {
		entries = 16
	}
	return cache.New(entries)
}
