package hash

import (
	"testing"

	"reefdb/pkg/pager"

	"github.com/stretchr/testify/require"
)

// setupDirectory creates a pager and a formatted directory on its first page.
func setupDirectory(t *testing.T) *HashDirectory {
	t.Parallel()
	p, err := pager.New(tempDbFile(t))
	require.NoError(t, err)
	page, err := p.GetNewPage()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.PutPage(page)
		_ = p.Close()
	})
	directory := &HashDirectory{page: page}
	directory.format()
	return directory
}

func TestHashDirectory(t *testing.T) {
	t.Run("Accessors", testDirectoryAccessors)
	t.Run("Extend", testDirectoryExtend)
	t.Run("ExtendTwice", testDirectoryExtendTwice)
	t.Run("SentinelReinit", testDirectorySentinelReinit)
}

// Round-trips every directory field through the page image.
func testDirectoryAccessors(t *testing.T) {
	directory := setupDirectory(t)
	directory.setSeed(-12345)
	directory.setGlobalDepth(3)
	directory.setLocalDepth(5, 2)
	directory.setBucketPN(5, 70000) // wider than one byte

	require.EqualValues(t, -12345, directory.GetSeed())
	require.EqualValues(t, 3, directory.GetGlobalDepth())
	require.EqualValues(t, 8, directory.Size())
	require.EqualValues(t, 2, directory.GetLocalDepth(5))
	require.EqualValues(t, 70000, directory.GetBucketPN(5))
	require.EqualValues(t, 0, directory.GetLSN(), "lsn is reserved and stays zero")
}

// Checks that extending copies every active slot up by the old size.
func testDirectoryExtend(t *testing.T) {
	directory := setupDirectory(t)
	directory.setGlobalDepth(1)
	directory.setBucketPN(0, 11)
	directory.setBucketPN(1, 12)
	directory.setLocalDepth(0, 1)
	directory.setLocalDepth(1, 1)

	directory.extend()

	require.EqualValues(t, 2, directory.GetGlobalDepth())
	require.EqualValues(t, 11, directory.GetBucketPN(0))
	require.EqualValues(t, 12, directory.GetBucketPN(1))
	require.EqualValues(t, 11, directory.GetBucketPN(2), "slot 0 should alias into slot 2")
	require.EqualValues(t, 12, directory.GetBucketPN(3), "slot 1 should alias into slot 3")
	for slot := int64(0); slot < 4; slot++ {
		require.EqualValues(t, 1, directory.GetLocalDepth(slot))
	}
}

// Extends twice and spot-checks the aliasing pattern at depth 3.
func testDirectoryExtendTwice(t *testing.T) {
	directory := setupDirectory(t)
	directory.setGlobalDepth(1)
	directory.setBucketPN(0, 11)
	directory.setBucketPN(1, 12)
	directory.setLocalDepth(0, 1)
	directory.setLocalDepth(1, 1)

	directory.extend()
	directory.extend()

	require.EqualValues(t, 3, directory.GetGlobalDepth())
	for slot := int64(0); slot < 8; slot++ {
		want := int64(11)
		if slot%2 == 1 {
			want = 12
		}
		require.EqualValues(t, want, directory.GetBucketPN(slot),
			"bucket aliases must agree in the low local-depth bits")
	}
}

// Corrupts the sentinel and checks that the page is treated as uninitialized.
func testDirectorySentinelReinit(t *testing.T) {
	directory := setupDirectory(t)
	directory.setGlobalDepth(2)
	directory.setBucketPN(0, 11)

	bogus := make([]byte, DIR_PAGE_ID_SIZE)
	bogus[0] = 0xFF
	directory.page.Update(bogus, DIR_PAGE_ID_OFFSET, DIR_PAGE_ID_SIZE)

	reloaded := pageToDirectory(directory.page)
	require.EqualValues(t, 0, reloaded.GetGlobalDepth(), "mismatched sentinel should clear the directory")
	require.EqualValues(t, 0, reloaded.GetBucketPN(0))
}
