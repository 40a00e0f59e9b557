package hash

import (
	"encoding/binary"
	"fmt"
	"io"

	"reefdb/pkg/entry"
	"reefdb/pkg/pager"
)

// HashBucket is a view over one pinned bucket page. The page's bytes are the
// bucket: a page id sentinel, an occupied bitmap, a readable bitmap, and
// MAX_BUCKET_SIZE fixed-width entry slots. The occupied bit is sticky (set
// on first write, never cleared) so probe chains can terminate at a slot
// that was never written; the readable bit is cleared on delete, leaving a
// reusable tombstone.
type HashBucket struct {
	page *pager.Page // The pinned page containing the bucket's data
}

// newHashBucket constructs a new, empty HashBucket using a new page from the
// specified pager, latched in the requested mode.
// The new page must be unlatched and put by the caller of this method.
func newHashBucket(pgr *pager.Pager, lock pager.LockType) (*HashBucket, error) {
	newPage, err := pgr.GetNewPageLatched(lock)
	if err != nil {
		return nil, err
	}
	bucket := &HashBucket{page: newPage}
	bucket.format()
	return bucket, nil
}

// pageToBucket converts the given pinned page into a HashBucket.
// If the page id sentinel does not match the pinned page, the image is
// treated as uninitialized and reformatted.
func pageToBucket(page *pager.Page) *HashBucket {
	bucket := &HashBucket{page: page}
	if bucket.storedPageNum() != page.GetPageNum() {
		bucket.format()
	}
	return bucket
}

// Get a bucket's page.
func (bucket *HashBucket) GetPage() *pager.Page {
	return bucket.page
}

// Get returns the entry at the given slot if it is live.
func (bucket *HashBucket) Get(index int64) (entry.Entry, bool) {
	if !bucket.IsReadable(index) {
		return entry.Entry{}, false
	}
	return bucket.getEntry(index), true
}

// Put stores (key, value) at the given slot if it is not currently live.
// The slot's occupied bit is set and stays set. Returns false if the slot
// already holds a live entry.
func (bucket *HashBucket) Put(index int64, key int64, value int64) bool {
	if bucket.IsReadable(index) {
		return false
	}
	bucket.setOccupied(index)
	bucket.setReadable(index)
	bucket.modifyEntry(index, entry.New(key, value))
	return true
}

// Insert stores (key, value) in the first free slot of the probe chain
// beginning at start. Tombstoned slots count as free and are reused.
// Returns false if a full wrap-around finds no free slot.
func (bucket *HashBucket) Insert(key int64, value int64, start int64) bool {
	for step := int64(0); step < MAX_BUCKET_SIZE; step++ {
		index := (start + step) % MAX_BUCKET_SIZE
		if bucket.Put(index, key, value) {
			return true
		}
	}
	return false
}

// Remove tombstones the slot if it holds a live entry equal to (key, value).
// The occupied bit is left set so probe chains through this slot survive.
func (bucket *HashBucket) Remove(index int64, key int64, value int64) {
	if !bucket.IsReadable(index) {
		return
	}
	if e := bucket.getEntry(index); e.Key == key && e.Value == value {
		bucket.clearReadable(index)
	}
}

// ForceRemove tombstones the slot unconditionally.
func (bucket *HashBucket) ForceRemove(index int64) {
	bucket.clearReadable(index)
}

// IsOccupied reports whether the slot has ever held an entry.
func (bucket *HashBucket) IsOccupied(index int64) bool {
	b := bucket.page.GetData()[OCCUPIED_OFFSET+index/8]
	return b&(1<<uint(index%8)) != 0
}

// IsReadable reports whether the slot currently holds a live entry.
func (bucket *HashBucket) IsReadable(index int64) bool {
	b := bucket.page.GetData()[READABLE_OFFSET+index/8]
	return b&(1<<uint(index%8)) != 0
}

// NumReadable returns the number of live entries in the bucket.
func (bucket *HashBucket) NumReadable() int64 {
	count := int64(0)
	for i := int64(0); i < MAX_BUCKET_SIZE; i++ {
		if bucket.IsReadable(i) {
			count++
		}
	}
	return count
}

// Select returns all live entries within this bucket.
func (bucket *HashBucket) Select() []entry.Entry {
	ret := make([]entry.Entry, 0)
	for i := int64(0); i < MAX_BUCKET_SIZE; i++ {
		if e, ok := bucket.Get(i); ok {
			ret = append(ret, e)
		}
	}
	return ret
}

// Print writes a string-representation of this bucket and it's entries to the specified writer.
func (bucket *HashBucket) Print(w io.Writer) {
	io.WriteString(w, fmt.Sprintf("bucket page: %d, live entries: %d\n", bucket.page.GetPageNum(), bucket.NumReadable()))
	io.WriteString(w, "entries:")
	for i := int64(0); i < MAX_BUCKET_SIZE; i++ {
		if e, ok := bucket.Get(i); ok {
			e.Print(w)
		}
	}
	io.WriteString(w, "\n")
}

// Grab a write latch on the bucket's page.
func (bucket *HashBucket) WLock() {
	bucket.page.WLock()
}

// Release a write latch on the bucket's page.
func (bucket *HashBucket) WUnlock() {
	bucket.page.WUnlock()
}

// Grab a read latch on the bucket's page.
func (bucket *HashBucket) RLock() {
	bucket.page.RLock()
}

// Release a read latch on the bucket's page.
func (bucket *HashBucket) RUnlock() {
	bucket.page.RUnlock()
}

/////////////////////////////////////////////////////////////////////////////
///////////////////// HashBucket Helper Functions ///////////////////////////
/////////////////////////////////////////////////////////////////////////////

// storedPageNum reads the page id sentinel at the head of the bucket image.
func (bucket *HashBucket) storedPageNum() int64 {
	data := bucket.page.GetData()
	return int64(binary.LittleEndian.Uint64(data[BUCKET_PAGE_ID_OFFSET : BUCKET_PAGE_ID_OFFSET+BUCKET_PAGE_ID_SIZE]))
}

// format clears the header and both bitmaps and stamps the page id sentinel.
// Slot bytes need no clearing; a slot is meaningless until its bits are set.
func (bucket *HashBucket) format() {
	header := make([]byte, BUCKET_DATA_OFFSET)
	binary.LittleEndian.PutUint64(header[BUCKET_PAGE_ID_OFFSET:], uint64(bucket.page.GetPageNum()))
	bucket.page.Update(header, 0, BUCKET_DATA_OFFSET)
}

// setOccupied sets the slot's sticky occupied bit.
func (bucket *HashBucket) setOccupied(index int64) {
	pos := OCCUPIED_OFFSET + index/8
	b := bucket.page.GetData()[pos] | (1 << uint(index%8))
	bucket.page.Update([]byte{b}, pos, 1)
}

// setReadable marks the slot as holding a live entry.
func (bucket *HashBucket) setReadable(index int64) {
	pos := READABLE_OFFSET + index/8
	b := bucket.page.GetData()[pos] | (1 << uint(index%8))
	bucket.page.Update([]byte{b}, pos, 1)
}

// clearReadable tombstones the slot.
func (bucket *HashBucket) clearReadable(index int64) {
	pos := READABLE_OFFSET + index/8
	b := bucket.page.GetData()[pos] &^ (1 << uint(index%8))
	bucket.page.Update([]byte{b}, pos, 1)
}

// entryPos gets the byte-position of the entry with the given slot index.
func entryPos(index int64) int64 {
	return BUCKET_DATA_OFFSET + index*ENTRYSIZE
}

// modifyEntry writes the given entry into the bucket's page at the given slot.
func (bucket *HashBucket) modifyEntry(index int64, entry entry.Entry) {
	newdata := entry.Marshal()
	offsetPos := entryPos(index)
	bucket.page.Update(newdata, offsetPos, ENTRYSIZE)
}

// getEntry returns the entry at the given slot.
func (bucket *HashBucket) getEntry(index int64) entry.Entry {
	startPos := entryPos(index)
	return entry.UnmarshalEntry(bucket.page.GetData()[startPos : startPos+ENTRYSIZE])
}
