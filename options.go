// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/cache"
	"github.com/tillwork/lsmdb/internal/sstable"
	"github.com/tillwork/lsmdb/vfs"
)

const (
	minWriteBufferSize = 64 << 10
	maxWriteBufferSize = 1 << 30
	defaultWriteBufferSize = 4 << 20

	minFileSize     = 1 << 20
	maxFileSize     = 1 << 30
	defaultFileSize = 2 << 20

	minBlockSize     = 1 << 10
	maxBlockSize     = 4 << 20
	defaultBlockSize = 4 << 10

	defaultBlockRestartInterval = 16
	defaultMaxOpenFiles         = 1000
	reservedOpenFiles           = 10
	defaultBlockCacheBytes      = 8 << 20
	defaultFilterBitsPerKey     = 10
)

// Options configures an open database. The zero value is not directly
// usable; call EnsureDefaults (Open does this automatically) before
// reading any field.
type Options struct {
	// CreateIfMissing causes Open to create the database if name doesn't
	// already hold one.
	CreateIfMissing bool
	// ErrorIfExists causes Open to fail if the database already exists.
	ErrorIfExists bool
	// ParanoidChecks escalates recoverable read errors (a torn WAL tail, a
	// corrupt sstable block) to hard failures instead of silently stopping
	// at the last good record.
	ParanoidChecks bool

	// FS is the filesystem/env collaborator. Defaults to vfs.Default.
	FS vfs.FS
	// Logger receives human-readable diagnostic lines, mirroring the
	// info_log/LOG file collaborator.
	Logger Logger

	// Comparer orders user keys. Defaults to byte-wise lexicographic
	// order. Reopening a database with a different Comparer.Name is
	// rejected.
	Comparer *base.Comparer

	// WriteBufferSize is the memtable size, in bytes, that triggers a
	// rotation to an immutable memtable and a background flush. Clipped to
	// [64 KiB, 1 GiB].
	WriteBufferSize int
	// MaxOpenFiles bounds the table cache; TableCache capacity is
	// MaxOpenFiles minus a 10-file reserve.
	MaxOpenFiles int
	// BlockCacheSize is the byte budget for the block cache, translated to
	// an entry-count LRU capacity internally. Sstable reads do not consult
	// the block cache.
	BlockCacheSize int64
	// BlockCache, if non-nil, overrides the cache constructed from
	// BlockCacheSize, letting callers share one cache across multiple
	// open databases.
	BlockCache *cache.Cache

	// BlockSize is the target uncompressed size of one sstable data block.
	// Clipped to [1 KiB, 4 MiB].
	BlockSize int
	// BlockRestartInterval is the number of entries between full-key
	// restart points in a data block.
	BlockRestartInterval int
	// MaxFileSize is the target size of one level file before the
	// compaction output is split into the next file. Clipped to
	// [1 MiB, 1 GiB].
	MaxFileSize int64
	// Compression selects the per-block codec used when writing sstables.
	Compression sstable.Compression
	// FilterBitsPerKey is the number of Bloom filter bits per key written
	// into each table's filter block. 0 selects the default of 10; a
	// negative value disables filters.
	FilterBitsPerKey int

	// ReuseLogs is accepted but not honored: Open always starts a fresh WAL
	// after replaying the old ones.
	ReuseLogs bool

	// ReadSampleBytes is a read-sampling period in bytes, mirroring
	// LevelDB's `kReadBytesPeriod`. EnsureDefaults sets it to 1 MiB, but no
	// read path samples keys, so nothing else reads it.
	ReadSampleBytes int64
}

// WriteOptions configures a single write.
type WriteOptions struct {
	// Sync forces a WAL fsync before the write returns.
	Sync bool
}

// ReadOptions configures a single read or iterator.
type ReadOptions struct {
	// Snapshot pins the read to the sequence number captured by
	// GetSnapshot. A nil Snapshot reads as of the most recent write.
	Snapshot *Snapshot
	// VerifyChecksums forces every sstable block touched by this read to
	// have its checksum validated, even outside ParanoidChecks mode.
	VerifyChecksums bool
	// FillCache is not consulted: sstable reads do not use the block
	// cache.
	FillCache bool
}

// DefaultWriteOptions returns the zero-value WriteOptions (no sync).
func DefaultWriteOptions() *WriteOptions { return &WriteOptions{} }

// DefaultReadOptions returns ReadOptions with FillCache enabled.
func DefaultReadOptions() *ReadOptions { return &ReadOptions{FillCache: true} }

// EnsureDefaults fills in unset fields and clips out-of-range numeric
// options to the bounds spec.md's resource model requires. It returns a
// copy; the receiver is left untouched if nil.
func (o *Options) EnsureDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.FS == nil {
		out.FS = vfs.Default
	}
	if out.Logger == nil {
		out.Logger = defaultLogger{}
	}
	if out.Comparer == nil {
		out.Comparer = base.DefaultComparer
	}
	out.WriteBufferSize = clamp(out.WriteBufferSize, minWriteBufferSize, maxWriteBufferSize, defaultWriteBufferSize)
	if out.MaxOpenFiles <= 0 {
		out.MaxOpenFiles = defaultMaxOpenFiles
	}
	out.MaxOpenFiles = clampMaxOpenFilesToRlimit(out.MaxOpenFiles)
	if out.BlockCacheSize <= 0 {
		out.BlockCacheSize = defaultBlockCacheBytes
	}
	out.BlockSize = clamp(out.BlockSize, minBlockSize, maxBlockSize, defaultBlockSize)
	if out.BlockRestartInterval <= 0 {
		out.BlockRestartInterval = defaultBlockRestartInterval
	}
	out.MaxFileSize = int64(clamp(int(out.MaxFileSize), minFileSize, maxFileSize, defaultFileSize))
	if out.FilterBitsPerKey == 0 {
		out.FilterBitsPerKey = defaultFilterBitsPerKey
	}
	if out.ReadSampleBytes <= 0 {
		out.ReadSampleBytes = 1 << 20
	}
	if out.BlockCache == nil {
		// A block is rarely larger than BlockSize once compressed away,
		// but cache capacity here is an entry count, not a byte budget; an
		// average block is assumed to occupy about BlockSize bytes.
		entries := int(out.BlockCacheSize) / out.BlockSize
		if entries < 16 {
			entries = 16
		}
		out.BlockCache = cache.New(entries)
	}
	return &out
}

func clamp(v, lo, hi, def int) int {
	if v <= 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// tableCacheCapacity is MaxOpenFiles minus the reserve spec.md's resource
// model sets aside for the WAL, manifest, and LOCK file descriptors.
func (o *Options) tableCacheCapacity() int {
	n := o.MaxOpenFiles - reservedOpenFiles
	if n < 1 {
		n = 1
	}
	return n
}

func (o *Options) writerOptions() sstable.WriterOptions {
	return sstable.WriterOptions{
		Comparer:             o.Comparer,
		BlockSize:            o.BlockSize,
		BlockRestartInterval: o.BlockRestartInterval,
		Compression:          o.Compression,
		FilterBitsPerKey:      o.FilterBitsPerKey,
	}
}
