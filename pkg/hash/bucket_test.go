package hash

import (
	"os"
	"testing"

	"reefdb/pkg/pager"

	"github.com/stretchr/testify/require"
)

// tempDbFile creates a temp file for a test's pager, removed on cleanup.
func tempDbFile(t *testing.T) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "*.db")
	require.NoError(t, err)
	_ = tmpfile.Close()
	t.Cleanup(func() {
		_ = os.Remove(tmpfile.Name())
	})
	return tmpfile.Name()
}

// setupBucket creates a pager and a fresh, unlatched bucket on it.
func setupBucket(t *testing.T) (*pager.Pager, *HashBucket) {
	t.Parallel()
	p, err := pager.New(tempDbFile(t))
	require.NoError(t, err)
	bucket, err := newHashBucket(p, pager.NO_LOCK)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.PutPage(bucket.page)
		_ = p.Close()
	})
	return p, bucket
}

func TestHashBucket(t *testing.T) {
	t.Run("PutGet", testBucketPutGet)
	t.Run("InsertProbes", testBucketInsertProbes)
	t.Run("InsertWrapsAround", testBucketInsertWrapsAround)
	t.Run("InsertFullBucket", testBucketInsertFullBucket)
	t.Run("TombstoneReuse", testBucketTombstoneReuse)
	t.Run("RemoveMatchesExactly", testBucketRemoveMatchesExactly)
	t.Run("ForceRemove", testBucketForceRemove)
	t.Run("SentinelReinit", testBucketSentinelReinit)
}

// Checks slot-level put and get, and that a live slot rejects a second put.
func testBucketPutGet(t *testing.T) {
	_, bucket := setupBucket(t)
	require.True(t, bucket.Put(5, 7, 700))
	require.True(t, bucket.IsOccupied(5))
	require.True(t, bucket.IsReadable(5))

	e, ok := bucket.Get(5)
	require.True(t, ok)
	require.EqualValues(t, 7, e.Key)
	require.EqualValues(t, 700, e.Value)

	require.False(t, bucket.Put(5, 8, 800), "put into a live slot should fail")
	_, ok = bucket.Get(4)
	require.False(t, ok, "empty slot should hold no entry")
}

// Checks that insert walks forward from its start slot past live entries.
func testBucketInsertProbes(t *testing.T) {
	_, bucket := setupBucket(t)
	require.True(t, bucket.Insert(1, 100, 10))
	require.True(t, bucket.Insert(2, 200, 10))
	require.True(t, bucket.Insert(3, 300, 10))

	for slot, want := range map[int64]int64{10: 1, 11: 2, 12: 3} {
		e, ok := bucket.Get(slot)
		require.True(t, ok)
		require.Equal(t, want, e.Key)
	}
}

// Checks that probing wraps from the last slot back to slot 0.
func testBucketInsertWrapsAround(t *testing.T) {
	_, bucket := setupBucket(t)
	last := MAX_BUCKET_SIZE - 1
	require.True(t, bucket.Put(last, 1, 100))
	require.True(t, bucket.Insert(2, 200, last))

	e, ok := bucket.Get(0)
	require.True(t, ok)
	require.EqualValues(t, 2, e.Key)
}

// Fills every slot and checks that one more insert reports a full bucket.
func testBucketInsertFullBucket(t *testing.T) {
	_, bucket := setupBucket(t)
	for i := int64(0); i < MAX_BUCKET_SIZE; i++ {
		require.True(t, bucket.Insert(i, i, 0))
	}
	require.EqualValues(t, MAX_BUCKET_SIZE, bucket.NumReadable())
	require.False(t, bucket.Insert(-1, -1, 17), "insert into a full bucket should fail")
}

// Checks that a tombstoned slot stays occupied, terminates no probe chain,
// and is reused by the next insert that reaches it.
func testBucketTombstoneReuse(t *testing.T) {
	_, bucket := setupBucket(t)
	require.True(t, bucket.Insert(1, 100, 20))
	require.True(t, bucket.Insert(2, 200, 20))
	bucket.Remove(20, 1, 100)

	require.True(t, bucket.IsOccupied(20), "occupied bit is sticky")
	require.False(t, bucket.IsReadable(20))
	_, ok := bucket.Get(21)
	require.True(t, ok, "entry past the tombstone must remain reachable")

	require.True(t, bucket.Insert(3, 300, 20))
	e, ok := bucket.Get(20)
	require.True(t, ok)
	require.EqualValues(t, 3, e.Key, "tombstone should be reused by the next insert")
}

// Checks that remove only fires on an exact (key, value) match.
func testBucketRemoveMatchesExactly(t *testing.T) {
	_, bucket := setupBucket(t)
	require.True(t, bucket.Put(9, 7, 700))
	bucket.Remove(9, 7, 701)
	require.True(t, bucket.IsReadable(9), "mismatched value should not remove")
	bucket.Remove(9, 8, 700)
	require.True(t, bucket.IsReadable(9), "mismatched key should not remove")
	bucket.Remove(9, 7, 700)
	require.False(t, bucket.IsReadable(9))
}

// Checks that force remove clears a slot regardless of contents.
func testBucketForceRemove(t *testing.T) {
	_, bucket := setupBucket(t)
	require.True(t, bucket.Put(3, 7, 700))
	bucket.ForceRemove(3)
	require.False(t, bucket.IsReadable(3))
	bucket.ForceRemove(4) // no-op on an empty slot
	require.False(t, bucket.IsReadable(4))
}

// Corrupts the page id sentinel and checks that the next view of the page
// treats it as zero-initialized.
func testBucketSentinelReinit(t *testing.T) {
	_, bucket := setupBucket(t)
	require.True(t, bucket.Insert(1, 100, 0))
	require.True(t, bucket.Insert(2, 200, 0))

	bogus := make([]byte, BUCKET_PAGE_ID_SIZE)
	bogus[0] = 0xFF
	bucket.page.Update(bogus, BUCKET_PAGE_ID_OFFSET, BUCKET_PAGE_ID_SIZE)

	reloaded := pageToBucket(bucket.page)
	require.EqualValues(t, 0, reloaded.NumReadable(), "mismatched sentinel should clear the bucket")
	require.False(t, reloaded.IsOccupied(0))
	require.Equal(t, reloaded.page.GetPageNum(), reloaded.storedPageNum(), "reinit should restamp the sentinel")
}
