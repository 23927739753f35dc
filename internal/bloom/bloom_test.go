// Copyright 2025 the lsmdb Authors.

package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterMayContainAllInsertedKeys(t *testing.T) {
	var keys [][]byte
	for i := 0; i < 500; i++ {
		keys = append(keys, []byte(fmt.Sprintf("key-%04d", i)))
	}
	f := NewFilter(nil, keys, 10)
	for _, k := range keys {
		require.True(t, f.MayContain(k))
	}
}

func TestFilterFalsePositiveRateIsBounded(t *testing.T) {
	var keys [][]byte
	for i := 0; i < 1000; i++ {
		keys = append(keys, []byte(fmt.Sprintf("present-%d", i)))
	}
	f := NewFilter(nil, keys, 10)

	fp := 0
	n := 10000
	for i := 0; i < n; i++ {
		if f.MayContain([]byte(fmt.Sprintf("absent-%d", i))) {
			fp++
		}
	}
	// At 10 bits/key the false positive rate should be roughly 1%; allow
	// generous headroom so the test isn't flaky.
	require.Less(t, fp, n/10)
}

func TestEmptyFilterNeverMatches(t *testing.T) {
	f := NewFilter(nil, nil, 10)
	require.False(t, f.MayContain([]byte("anything")))
}

func TestFilterReusesBufferWhenCapacitySuffices(t *testing.T) {
	buf := make([]byte, 0, 256)
	keys := [][]byte{[]byte("a"), []byte("b")}
	f := NewFilter(buf, keys, 10)
	require.True(t, f.MayContain([]byte("a")))
}
