package pager_test

import (
	"bytes"
	"os"
	"testing"
	"time"

	"reefdb/pkg/config"
	"reefdb/pkg/pager"

	"github.com/stretchr/testify/require"
)

// getTempDbFile creates a temp file for a test's pager to back itself with,
// removing it when the test finishes.
func getTempDbFile(t *testing.T) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "*.db")
	require.NoError(t, err)
	// os.CreateTemp opens the file; the pager wants to open it itself.
	_ = tmpfile.Close()
	t.Cleanup(func() {
		_ = os.Remove(tmpfile.Name())
	})
	return tmpfile.Name()
}

// setupPager creates a new pager and checks for creation errors.
func setupPager(t *testing.T) *pager.Pager {
	t.Parallel()
	p, err := pager.New(getTempDbFile(t))
	require.NoError(t, err, "Failed to create a new pager")
	t.Cleanup(func() {
		// Don't check close error since we are only concerned with resource cleanup
		_ = p.Close()
	})
	return p
}

// getNewPage wraps a call to Pager.GetNewPage() with error checking.
// If deferPut is true, queues the page to be put when the test ends.
func getNewPage(t *testing.T, p *pager.Pager, deferPut bool) *pager.Page {
	page, err := p.GetNewPage()
	require.NoError(t, err, "Error getting new page")
	if deferPut {
		t.Cleanup(func() {
			_ = p.PutPage(page)
		})
	}
	return page
}

// getPage wraps a call to Pager.GetPage(pagenum) with error checking.
// If deferPut is true, queues the page to be put when the test ends.
func getPage(t *testing.T, p *pager.Pager, pagenum int64, deferPut bool) *pager.Page {
	page, err := p.GetPage(pagenum)
	require.NoError(t, err, "Error getting existing page %d", pagenum)
	if deferPut {
		t.Cleanup(func() {
			_ = p.PutPage(page)
		})
	}
	return page
}

// closeAndReopen closes a pager then reopens it with the same database file,
// failing the test if any errors are returned
func closeAndReopen(t *testing.T, p *pager.Pager) {
	require.NoError(t, p.Close(), "Failed to close pager")
	require.NoError(t, p.Open(p.GetFileName()), "Failed to reopen pager")
}

func TestPager(t *testing.T) {
	t.Run("NewPager", testNewPager)
	t.Run("GetNewPage", testGetNewPage)
	t.Run("GetPagePagenumber", testGetPagePagenumber)
	t.Run("NegativePagenumber", testNegativePagenumber)
	t.Run("MaxGetNewPages", testMaxGetNewPages)
	t.Run("FlushOnePage", testFlushOnePage)
	t.Run("TooManyPuts", testTooManyPuts)
	t.Run("PincountsOnClose", testPincountsOnClose)
	t.Run("GetExistingChangedPage", testGetExistingChangedPage)
	t.Run("FreePageReuse", testFreePageReuse)
	t.Run("FreePagePinned", testFreePagePinned)
	t.Run("LatchedHelpers", testLatchedHelpers)
	t.Run("NewPageIsZeroed", testNewPageIsZeroed)
}

// Sets up a new pager and then closes it, checking that no errors
// happen along the way.
func testNewPager(t *testing.T) {
	_ = setupPager(t)
}

// Checks that the first call to GetNewPage returns a dirty page with
// the right pager and page number of 0.
func testGetNewPage(t *testing.T) {
	p := setupPager(t)
	page := getNewPage(t, p, true)
	require.Same(t, p, page.GetPager(), "New page has bad pager field")
	require.EqualValues(t, 0, page.GetPageNum())
	require.True(t, page.IsDirty(), "Expected new page to be dirty")
}

// Calls GetNewPage twice and tries to retrieve pagenum 1,
// checking that the pages returned have the correct pagenum.
func testGetPagePagenumber(t *testing.T) {
	p := setupPager(t)
	p1 := getNewPage(t, p, true)
	p2 := getNewPage(t, p, true)
	p3 := getPage(t, p, 1, true)
	require.EqualValues(t, 0, p1.GetPageNum())
	require.EqualValues(t, 1, p2.GetPageNum())
	require.EqualValues(t, 1, p3.GetPageNum())
}

// Checks that GetPage with a negative pagenum returns an error.
func testNegativePagenumber(t *testing.T) {
	p := setupPager(t)
	_, err := p.GetPage(-1)
	require.Error(t, err, "Expected GetPage to return an error upon negative pagenumber request")
}

// Fills up the active pages in the cache, and then checks that getting
// more unique pages when the cache is filled does not work.
func testMaxGetNewPages(t *testing.T) {
	p := setupPager(t)
	for i := 0; i < config.MaxPagesInBuffer; i++ {
		_ = getNewPage(t, p, true)
	}
	page, err := p.GetNewPage()
	if err == nil {
		_ = p.PutPage(page)
		t.Fatal("Should have returned an error for running out of pages")
	}
}

// Gets a new page, writes to it, flushes it, and closes the pager.
// Upon reopening the pager and getting the same page, the data should
// be consistently updated in the page.
func testFlushOnePage(t *testing.T) {
	p := setupPager(t)
	page := getNewPage(t, p, false)
	data := []byte("hello")
	page.Update(data, 0, int64(len(data)))
	_ = p.PutPage(page)

	p.FlushPage(page)
	closeAndReopen(t, p)

	page = getPage(t, p, 0, true)
	require.True(t, bytes.Equal(page.GetData()[:len(data)], data), "Data not flushed properly")
}

// Tests that PutPage works once, and that a second put on the same
// reference errors because the pincount would go negative.
func testTooManyPuts(t *testing.T) {
	p := setupPager(t)
	page := getNewPage(t, p, false)
	require.NoError(t, p.PutPage(page), "Initial put page shouldn't fail")
	require.Error(t, p.PutPage(page), "PutPage should fail because pincount < 0")
}

// Tests that upon closing a pager with pages still pinned, an error
// is returned from Close.
func testPincountsOnClose(t *testing.T) {
	p := setupPager(t)
	_ = getNewPage(t, p, false)
	require.Error(t, p.Close(), "Did not receive expected error about pages still being pinned on close")
}

// Writes data to a newly created page without flushing.
// Then makes sure that GetPage returns the same page with the new data
// (testing that the page is retrieved from the buffer and not disk).
func testGetExistingChangedPage(t *testing.T) {
	p := setupPager(t)
	p1 := getNewPage(t, p, true)
	data := []byte("test data")
	p1.Update(data, 0, int64(len(data)))
	p2 := getPage(t, p, 0, true)
	require.Same(t, p1, p2, "Pages returned are not the same")
	require.True(t, bytes.Equal(p2.GetData()[:len(data)], data), "Data not retained in buffer cache")
}

// Frees a page and checks that its number is recycled by the next
// allocation instead of growing the file, and that the freed page can
// no longer be pinned in the meantime.
func testFreePageReuse(t *testing.T) {
	p := setupPager(t)
	p0 := getNewPage(t, p, false)
	// Keep a second page live so the file has two pages.
	getNewPage(t, p, true)
	require.NoError(t, p.PutPage(p0))
	require.NoError(t, p.FreePage(0))

	_, err := p.GetPage(0)
	require.ErrorIs(t, err, pager.ErrInvalidPagenum, "freed page should not be pinnable")
	require.EqualValues(t, 0, p.GetFreePN())

	reused := getNewPage(t, p, true)
	require.EqualValues(t, 0, reused.GetPageNum(), "allocation should recycle the freed pagenum")
	require.EqualValues(t, 2, p.GetFreePN(), "file should not have grown")
}

// Checks that a pinned page cannot be freed.
func testFreePagePinned(t *testing.T) {
	p := setupPager(t)
	_ = getNewPage(t, p, true)
	require.Error(t, p.FreePage(0), "freeing a pinned page should fail")
}

// Exercises GetNewPageLatched and GetAndLockPage, making sure the latches
// are actually held by probing with a second latch attempt.
func testLatchedHelpers(t *testing.T) {
	p := setupPager(t)
	page, err := p.GetNewPageLatched(pager.WRITE_LOCK)
	require.NoError(t, err)
	acquired := make(chan struct{})
	go func() {
		page.RLock()
		page.RUnlock()
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("read latch acquired while write latch held")
	case <-time.After(10 * time.Millisecond):
	}
	page.Unlock(pager.WRITE_LOCK)
	<-acquired
	require.NoError(t, p.PutPage(page))

	again, err := p.GetAndLockPage(page.GetPageNum(), pager.READ_LOCK)
	require.NoError(t, err)
	again.Unlock(pager.READ_LOCK)
	require.NoError(t, p.PutPage(again))
}

// Checks that a page allocated under a freed page number comes back
// zero-filled rather than with the data last written under that number.
func testNewPageIsZeroed(t *testing.T) {
	p := setupPager(t)
	page := getNewPage(t, p, false)
	data := []byte("leftover bytes")
	page.Update(data, 0, int64(len(data)))
	require.NoError(t, p.PutPage(page))
	require.NoError(t, p.FreePage(0))

	reused := getNewPage(t, p, true)
	require.EqualValues(t, 0, reused.GetPageNum())
	require.True(t, bytes.Equal(reused.GetData()[:len(data)], make([]byte, len(data))),
		"recycled page should be zero-filled")
}
