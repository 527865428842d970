package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chainEntry struct {
	Next  Offset
	Value uint32
}

func TestIterateAllWalksEveryBucket(t *testing.T) {
	a := New(0)
	ht, err := NewHashTable(a, 4)
	require.NoError(t, err)

	values := []uint32{10, 11, 12, 13, 14}
	for i, v := range values {
		off, err := PutValue(a, chainEntry{Value: v})
		require.NoError(t, err)
		require.NoError(t, ht.Insert(off, uint64(i)))
	}

	it := ht.IterateAll()
	seen := map[uint32]bool{}
	for {
		off, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		e, err := GetValue[chainEntry](a, off)
		require.NoError(t, err)
		seen[e.Value] = true
	}
	for _, v := range values {
		assert.True(t, seen[v], "expected to see value %d", v)
	}
	assert.Len(t, seen, len(values))
}
