// Copyright 2025 the lsmdb Authors.

package record

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	var got []string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(rec)
		require.NoError(t, err)
		got = append(got, string(b))
	}
	return got
}

func TestWriteReadRoundTripSmallRecords(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	want := []string{"", "a", "hello world", strings.Repeat("x", 100)}
	for _, s := range want {
		require.NoError(t, w.WriteRecord([]byte(s)))
	}
	require.NoError(t, w.Close())

	require.Equal(t, want, readAll(t, &buf))
}

func TestWriteReadRoundTripRecordSpanningBlocks(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	big := strings.Repeat("y", blockSize*3+17)
	require.NoError(t, w.WriteRecord([]byte(big)))
	require.NoError(t, w.WriteRecord([]byte("tail")))
	require.NoError(t, w.Close())

	got := readAll(t, &buf)
	require.Equal(t, []string{big, "tail"}, got)
}

func TestReaderDetectsCorruptChecksum(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRecord([]byte("hello")))
	require.NoError(t, w.Close())

	corrupt := buf.Bytes()
	corrupt[0] ^= 0xff // flip a bit in the CRC

	r := NewReader(bytes.NewReader(corrupt))
	_, err := r.Next()
	require.ErrorIs(t, err, ErrInvalidChunk)
	require.True(t, IsInvalidRecord(err))
}

func TestReaderToleratesZeroedTail(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRecord([]byte("hello")))
	require.NoError(t, w.Close())

	padded := append(buf.Bytes(), make([]byte, blockSize)...)

	r := NewReader(bytes.NewReader(padded))
	rec, err := r.Next()
	require.NoError(t, err)
	b, err := io.ReadAll(rec)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestWriterNextInvalidatesPreviousRecordWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	first, err := w.Next()
	require.NoError(t, err)
	_, err = w.Next()
	require.NoError(t, err)

	_, err = first.Write([]byte("stale"))
	require.Error(t, err)
}
