package arena

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternDedupAndCaseInsensitiveLookup(t *testing.T) {
	a := New(1024)
	p, err := NewStringPool(a, 8)
	require.NoError(t, err)

	off1, found, err := p.Intern("Scripts/Common.shader", true)
	require.NoError(t, err)
	assert.False(t, found)

	off2, found, err := p.Intern("SCRIPTS/COMMON.SHADER", true)
	require.NoError(t, err)
	assert.True(t, found, "case-insensitive lookup should find the first-seen entry")
	assert.Equal(t, off1, off2)

	s, err := p.String(off1)
	require.NoError(t, err)
	assert.Equal(t, "Scripts/Common.shader", s, "canonical stored form preserves first-seen case")
}

func TestInternLookupOnlyNoCreate(t *testing.T) {
	a := New(1024)
	p, err := NewStringPool(a, 8)
	require.NoError(t, err)

	off, found, err := p.Intern("missing", false)
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, off.IsNull())
}

func TestHashTableChaining(t *testing.T) {
	a := New(1024)
	ht, err := NewHashTable(a, 1) // force everything into one bucket: pure chain
	require.NoError(t, err)

	var offs []Offset
	for i := 0; i < 5; i++ {
		off, err := a.Allocate(8)
		require.NoError(t, err)
		offs = append(offs, off)
		require.NoError(t, ht.Insert(off, uint64(42)))
	}

	it, err := ht.Iterate(42)
	require.NoError(t, err)
	var seen []Offset
	for {
		off, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen = append(seen, off)
	}
	require.Len(t, seen, 5)
	// Insert pushes onto the head of the chain, so iteration order is LIFO.
	for i, off := range offs {
		assert.Equal(t, off, seen[len(offs)-1-i])
	}
	assert.EqualValues(t, 5, ht.Utilization())
}

func TestHashTableExportImport(t *testing.T) {
	a := New(1024)
	ht, err := NewHashTable(a, 4)
	require.NoError(t, err)
	off, err := a.Allocate(8)
	require.NoError(t, err)
	require.NoError(t, ht.Insert(off, 7))

	var buf bytes.Buffer
	require.NoError(t, ht.Export(&buf))

	ht2, err := ImportHashTable(a, &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 4, ht2.BucketCount())
	assert.EqualValues(t, 1, ht2.Utilization())

	it, err := ht2.Iterate(7)
	require.NoError(t, err)
	got, ok, err := it.Next()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, off, got)
}
