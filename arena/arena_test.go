package arena

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateResolveRoundTrip(t *testing.T) {
	a := New(64) // tiny buckets to exercise bucket-boundary logic
	off, err := a.Allocate(8)
	require.NoError(t, err)
	buf, err := a.Resolve(off, 8, false)
	require.NoError(t, err)
	copy(buf, []byte("12345678"))

	buf2, err := a.Resolve(off, 8, false)
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(buf2))
}

func TestResolveBounds(t *testing.T) {
	a := New(64)
	off, err := a.Allocate(8)
	require.NoError(t, err)

	_, err = a.Resolve(Offset(999999), 8, false)
	assert.ErrorIs(t, err, ErrCorruption)

	_, err = a.Resolve(Null, 8, false)
	assert.ErrorIs(t, err, ErrCorruption)

	got, err := a.Resolve(Null, 8, true)
	assert.NoError(t, err)
	assert.Nil(t, got)

	// in-bounds resolve after a valid allocation must always succeed
	_, err = a.Resolve(off, 8, false)
	assert.NoError(t, err)
}

func TestAllocateSpansBuckets(t *testing.T) {
	a := New(16)
	var offs []Offset
	for i := 0; i < 8; i++ {
		off, err := a.Allocate(8)
		require.NoError(t, err)
		offs = append(offs, off)
		buf, err := a.Resolve(off, 8, false)
		require.NoError(t, err)
		buf[0] = byte(i)
	}
	assert.True(t, a.BucketCount() > 1, "expected allocations to spill into multiple buckets")
	for i, off := range offs {
		buf, err := a.Resolve(off, 8, false)
		require.NoError(t, err)
		assert.Equal(t, byte(i), buf[0])
	}
}

func TestAllocateExhausted(t *testing.T) {
	a := New(16)
	_, err := a.Allocate(32)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestExportImportRoundTrip(t *testing.T) {
	a := New(32)
	off1, err := a.PutBytes([]byte("hello"))
	require.NoError(t, err)
	off2, err := a.PutBytes([]byte("world!!"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.Export(&buf))

	b := New(32)
	require.NoError(t, b.Import(&buf))

	got1, err := b.GetBytes(off1, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got1))

	got2, err := b.GetBytes(off2, 7)
	require.NoError(t, err)
	assert.Equal(t, "world!!", string(got2))
}

func TestImportRejectsOversizedBucket(t *testing.T) {
	a := New(64)
	_, err := a.PutBytes([]byte("0123456789012345678901234567"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, a.Export(&buf))

	// Import into an arena configured with a smaller bucket size: the
	// recorded fill now exceeds capacity, a structural mismatch.
	b := New(16)
	err = b.Import(&buf)
	assert.ErrorIs(t, err, ErrCorruption)
}
