package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashers(t *testing.T) {
	t.Run("Deterministic", testHasherDeterministic)
	t.Run("SeedChangesDigest", testSeedChangesDigest)
	t.Run("PrefixBounds", testPrefixBounds)
	t.Run("LocalIndexBounds", testLocalIndexBounds)
}

func testHasherDeterministic(t *testing.T) {
	t.Parallel()
	require.Equal(t, HashKey(42, 7), HashKey(42, 7))
	require.Equal(t, MurmurHashKey(42, 7), MurmurHashKey(42, 7))
}

func testSeedChangesDigest(t *testing.T) {
	t.Parallel()
	require.NotEqual(t, HashKey(42, 1), HashKey(42, 2),
		"distinct seeds should spread the same key differently")
}

func testPrefixBounds(t *testing.T) {
	t.Parallel()
	for depth := int64(1); depth <= MAX_GLOBAL_DEPTH; depth++ {
		for key := int64(0); key < 1000; key++ {
			slot := Hasher(key, 99, depth)
			require.GreaterOrEqual(t, slot, int64(0))
			require.Less(t, slot, int64(1)<<depth)
		}
	}
}

func testLocalIndexBounds(t *testing.T) {
	t.Parallel()
	for key := int64(0); key < 1000; key++ {
		index := LocalIndex(HashKey(key, 99), 3)
		require.GreaterOrEqual(t, index, int64(0))
		require.Less(t, index, MAX_BUCKET_SIZE)
	}
}
