package vfscache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGetHits(t *testing.T) {
	c, err := New(1024)
	require.NoError(t, err)

	id := Identity{Offset: 1, Size: 4, MTimeUnix: 100}
	_, err = c.Put(id, []byte("abcd"))
	require.NoError(t, err)

	en, ok, err := c.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abcd"), en.Data())
}

func TestGetMissesOnDifferentIdentity(t *testing.T) {
	c, err := New(1024)
	require.NoError(t, err)
	_, err = c.Put(Identity{Offset: 1, Size: 4, MTimeUnix: 100}, []byte("abcd"))
	require.NoError(t, err)

	_, ok, err := c.Get(Identity{Offset: 1, Size: 4, MTimeUnix: 101})
	require.NoError(t, err)
	assert.False(t, ok, "a changed mtime must not hit a stale entry")
}

func TestAllocateRejectsFileOverOneThirdOfCapacity(t *testing.T) {
	c, err := New(300)
	require.NoError(t, err)
	_, err = c.Allocate(101, Identity{Offset: 1, Size: 101})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestAllocateEvictsUnlockedEntriesInItsPath(t *testing.T) {
	c, err := New(32)
	require.NoError(t, err)

	first, err := c.Allocate(10, Identity{Offset: 1, Size: 10})
	require.NoError(t, err)
	copy(first.Data(), []byte("0123456789"))

	// Fill the rest of the buffer so the next allocation has to wrap back
	// over the first entry's space.
	_, err = c.Allocate(10, Identity{Offset: 3, Size: 10})
	require.NoError(t, err)
	_, err = c.Allocate(10, Identity{Offset: 4, Size: 10})
	require.NoError(t, err)
	second, err := c.Allocate(10, Identity{Offset: 2, Size: 10})
	require.NoError(t, err)
	copy(second.Data(), []byte("9876543210"))

	_, ok, err := c.Get(Identity{Offset: 1, Size: 10})
	require.NoError(t, err)
	assert.False(t, ok, "first entry should have been evicted to make room")
}

func TestLockedEntrySurvivesAllocationPressure(t *testing.T) {
	c, err := New(32)
	require.NoError(t, err)

	locked, err := c.Allocate(10, Identity{Offset: 1, Size: 10})
	require.NoError(t, err)
	locked.Lock()
	defer locked.Unlock()

	// Fill the rest of the buffer with locked entries so the next
	// allocation must wrap back over the locked region; with no other
	// unlocked space available, that must fail rather than clobber it.
	second, err := c.Allocate(10, Identity{Offset: 2, Size: 10})
	require.NoError(t, err)
	second.Lock()
	defer second.Unlock()
	third, err := c.Allocate(10, Identity{Offset: 3, Size: 10})
	require.NoError(t, err)
	third.Lock()
	defer third.Unlock()
	_, err = c.Allocate(10, Identity{Offset: 4, Size: 10})
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestAdvanceStagePromotesStaleHitToFreshCopy(t *testing.T) {
	c, err := New(1024)
	require.NoError(t, err)
	id := Identity{Offset: 1, Size: 4, MTimeUnix: 100}
	_, err = c.Put(id, []byte("abcd"))
	require.NoError(t, err)

	c.AdvanceStage()

	en, ok, err := c.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abcd"), en.Data())
}
