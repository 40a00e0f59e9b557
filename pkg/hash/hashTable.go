package hash

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"reefdb/pkg/pager"
)

// Error for when the directory has reached its maximum depth and a split
// would need to double it again.
var ErrDirectoryFull = errors.New("hash directory is at maximum depth")

// Error for reopening a page that does not hold an initialized directory.
var ErrNotADirectory = errors.New("page does not hold an initialized hash directory")

// A HashTable is a disk-backed index that uses extendible hashing for quick
// lookups. The directory page stays pinned for the table's lifetime; bucket
// pages are pinned and latched per operation.
//
// Latch discipline: the table latch is taken shared for Get and Remove and
// exclusive for Put; bucket page latches are taken shared for reading and
// exclusive for mutation. Acquisition order is always table latch, then the
// routed bucket's latch, then latches on freshly allocated pages. Directory
// mutations happen only under the exclusive table latch.
type HashTable struct {
	directory *HashDirectory // The pinned directory page, held for the table's lifetime
	pager     *pager.Pager   // The pager associated with the Hash Table
	rwlock    sync.RWMutex   // Latch on the Hash Table
}

// NewHashTable creates a fresh table: it allocates the directory page and,
// under the directory page's exclusive latch, seeds it with two empty
// buckets at global depth 1.
func NewHashTable(pgr *pager.Pager, seed int64) (*HashTable, error) {
	dirPage, err := pgr.GetNewPageLatched(pager.WRITE_LOCK)
	if err != nil {
		return nil, err
	}
	defer dirPage.WUnlock()
	directory := &HashDirectory{page: dirPage}
	directory.format()
	directory.setSeed(seed)

	for slot := int64(0); slot < 2; slot++ {
		bucket, err := newHashBucket(pgr, pager.WRITE_LOCK)
		if err != nil {
			pgr.PutPage(dirPage)
			return nil, err
		}
		directory.setBucketPN(slot, bucket.page.GetPageNum())
		directory.setLocalDepth(slot, 1)
		bucket.WUnlock()
		pgr.PutPage(bucket.page)
	}
	directory.setGlobalDepth(1)
	return &HashTable{directory: directory, pager: pgr}, nil
}

// InitHashTable reopens a table from an existing directory page.
func InitHashTable(pgr *pager.Pager, directoryPN int64) (*HashTable, error) {
	dirPage, err := pgr.GetPage(directoryPN)
	if err != nil {
		return nil, err
	}
	directory := pageToDirectory(dirPage)
	depth := directory.GetGlobalDepth()
	if depth < 1 || depth > MAX_GLOBAL_DEPTH {
		pgr.PutPage(dirPage)
		return nil, ErrNotADirectory
	}
	return &HashTable{directory: directory, pager: pgr}, nil
}

// GetDepth returns the table's global depth.
func (table *HashTable) GetDepth() int64 {
	return table.directory.GetGlobalDepth()
}

// GetSeed returns the table's hash seed.
func (table *HashTable) GetSeed() int64 {
	return table.directory.GetSeed()
}

// Get pager.
func (table *HashTable) GetPager() *pager.Pager {
	return table.pager
}

// GetDirectory returns the table's directory view.
func (table *HashTable) GetDirectory() *HashDirectory {
	return table.directory
}

// GetBuckets returns the page numbers of all active directory slots.
// Aliased slots repeat their shared bucket's page number.
func (table *HashTable) GetBuckets() []int64 {
	size := table.directory.Size()
	buckets := make([]int64, size)
	for i := int64(0); i < size; i++ {
		buckets[i] = table.directory.GetBucketPN(i)
	}
	return buckets
}

// Get appends to the result every live value stored under the given key.
// Keys that route to a different bucket cannot collide here, so scanning
// the routed bucket's probe chain is complete.
func (table *HashTable) Get(key int64) ([]int64, error) {
	table.RLock()
	defer table.RUnlock()
	hash := HashKey(key, table.GetSeed())
	slot := Prefix(hash, table.GetDepth())
	bucket, err := table.GetAndLockBucket(slot, pager.READ_LOCK)
	if err != nil {
		return nil, err
	}
	defer table.pager.PutPage(bucket.page)
	defer bucket.RUnlock()

	values := make([]int64, 0)
	start := LocalIndex(hash, table.directory.GetLocalDepth(slot))
	for step := int64(0); step < MAX_BUCKET_SIZE; step++ {
		index := (start + step) % MAX_BUCKET_SIZE
		if !bucket.IsOccupied(index) {
			break
		}
		if e, ok := bucket.Get(index); ok && e.Key == key {
			values = append(values, e.Value)
		}
	}
	return values, nil
}

// Put inserts a key / value pair into the Hash Table; duplicate keys are
// kept. It returns true once the pair is stored. A full bucket is split
// (doubling the directory when the bucket's local depth has caught up with
// the global depth) and the insert retried; false comes back only with an
// error that stopped the retry, such as ErrDirectoryFull.
func (table *HashTable) Put(key int64, value int64) (bool, error) {
	table.WLock()
	defer table.WUnlock()
	hash := HashKey(key, table.GetSeed())
	for {
		depth := table.GetDepth()
		slot := Prefix(hash, depth)
		bucket, err := table.GetAndLockBucket(slot, pager.WRITE_LOCK)
		if err != nil {
			return false, err
		}
		if bucket.Insert(key, value, LocalIndex(hash, table.directory.GetLocalDepth(slot))) {
			bucket.WUnlock()
			table.pager.PutPage(bucket.page)
			return true, nil
		}
		// The bucket is full: split it, then retry the insert. The retry
		// routes through the updated directory and may split again if the
		// entries co-locate in one child.
		oldPN := bucket.page.GetPageNum()
		splitErr := table.split(bucket, slot)
		bucket.WUnlock()
		table.pager.PutPage(bucket.page)
		if splitErr != nil {
			return false, splitErr
		}
		if err := table.pager.FreePage(oldPN); err != nil {
			return false, err
		}
	}
}

// split replaces the full bucket routed at the given slot with two fresh
// buckets, one for each value of the entries' next hash bit, and rewires
// every aliased directory slot. Both fresh pages are allocated and latched
// before any directory byte changes, so an allocation failure surfaces with
// the directory untouched. The caller holds the table latch exclusively and
// the old bucket's latch, and frees the old page after the split returns.
func (table *HashTable) split(bucket *HashBucket, slot int64) error {
	directory := table.directory
	localDepth := directory.GetLocalDepth(slot)
	if localDepth == directory.GetGlobalDepth() && directory.GetGlobalDepth() >= MAX_GLOBAL_DEPTH {
		return ErrDirectoryFull
	}

	// Stage: allocate both children before touching the directory.
	replacement, err := newHashBucket(table.pager, pager.WRITE_LOCK)
	if err != nil {
		return err
	}
	mirror, err := newHashBucket(table.pager, pager.WRITE_LOCK)
	if err != nil {
		replacementPN := replacement.page.GetPageNum()
		replacement.WUnlock()
		table.pager.PutPage(replacement.page)
		table.pager.FreePage(replacementPN)
		return err
	}
	defer func() {
		mirror.WUnlock()
		table.pager.PutPage(mirror.page)
		replacement.WUnlock()
		table.pager.PutPage(replacement.page)
	}()

	// Commit: double the directory if the splitting bucket's depth has
	// caught up, then point every alias of the old bucket at a child.
	// Slots whose bit localDepth is clear keep the replacement; slots with
	// the bit set take the mirror.
	if localDepth == directory.GetGlobalDepth() {
		directory.extend()
	}
	newDepth := localDepth + 1
	replacementPN := replacement.page.GetPageNum()
	mirrorPN := mirror.page.GetPageNum()
	canonical := slot % (int64(1) << localDepth)
	for i := canonical; i < directory.Size(); i += int64(1) << localDepth {
		if (i>>localDepth)&1 == 1 {
			directory.setBucketPN(i, mirrorPN)
		} else {
			directory.setBucketPN(i, replacementPN)
		}
		directory.setLocalDepth(i, newDepth)
	}

	// Rehash the old bucket's live entries across the two children by their
	// next hash bit. Each child receives at most as many entries as the old
	// bucket held, so insertion cannot fail on a fresh page.
	seed := table.GetSeed()
	for index := int64(0); index < MAX_BUCKET_SIZE; index++ {
		e, ok := bucket.Get(index)
		if !ok {
			continue
		}
		entryHash := HashKey(e.Key, seed)
		target := replacement
		if (entryHash>>uint64(localDepth))&1 == 1 {
			target = mirror
		}
		if !target.Insert(e.Key, e.Value, LocalIndex(entryHash, newDepth)) {
			return fmt.Errorf("bucket page %d overflowed while rehashing a split", target.page.GetPageNum())
		}
	}
	return nil
}

// Remove tombstones every live (key, value) match along the key's probe
// chain, so duplicates of the exact pair all go in one call. Removing a
// missing pair is a no-op; buckets are never merged.
func (table *HashTable) Remove(key int64, value int64) error {
	table.RLock()
	defer table.RUnlock()
	hash := HashKey(key, table.GetSeed())
	slot := Prefix(hash, table.GetDepth())
	bucket, err := table.GetAndLockBucket(slot, pager.WRITE_LOCK)
	if err != nil {
		return err
	}
	defer table.pager.PutPage(bucket.page)
	defer bucket.WUnlock()

	start := LocalIndex(hash, table.directory.GetLocalDepth(slot))
	for step := int64(0); step < MAX_BUCKET_SIZE; step++ {
		index := (start + step) % MAX_BUCKET_SIZE
		if !bucket.IsOccupied(index) {
			break
		}
		bucket.Remove(index, key, value)
	}
	return nil
}

// Close releases the table's pin on the directory page without freeing any
// on-disk state. The table must not be used afterwards.
func (table *HashTable) Close() error {
	return table.pager.PutPage(table.directory.page)
}

// Destroy frees every referenced bucket page and then the directory page
// itself. The table latch is released even if individual frees fail; the
// first failure is reported after the walk completes.
func (table *HashTable) Destroy() error {
	table.WLock()
	defer table.WUnlock()
	var firstErr error
	freed := make(map[int64]bool)
	for i := int64(0); i < table.directory.Size(); i++ {
		pn := table.directory.GetBucketPN(i)
		if pn == 0 || freed[pn] {
			continue
		}
		freed[pn] = true
		if err := table.pager.FreePage(pn); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	directoryPN := table.directory.page.GetPageNum()
	if err := table.pager.PutPage(table.directory.page); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := table.pager.FreePage(directoryPN); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Print writes a string representation of this entire table (including it's buckets) to the specified writer.
func (table *HashTable) Print(w io.Writer) {
	table.RLock()
	defer table.RUnlock()
	io.WriteString(w, "====\n")
	io.WriteString(w, fmt.Sprintf("global depth: %d\n", table.GetDepth()))
	for i := int64(0); i < table.directory.Size(); i++ {
		io.WriteString(w, fmt.Sprintf("====\nslot %d (local depth %d)\n", i, table.directory.GetLocalDepth(i)))
		bucket, err := table.GetAndLockBucket(i, pager.READ_LOCK)
		if err != nil {
			continue
		}
		bucket.Print(w)
		bucket.RUnlock()
		table.pager.PutPage(bucket.page)
	}
	io.WriteString(w, "====\n")
}

// PrintPN prints out the bucket stored on a specific page.
func (table *HashTable) PrintPN(pn int, w io.Writer) {
	table.RLock()
	defer table.RUnlock()
	bucket, err := table.GetAndLockBucketByPN(int64(pn), pager.READ_LOCK)
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	bucket.Print(w)
	bucket.RUnlock()
	table.pager.PutPage(bucket.page)
}

// Grab a write latch on the hash table index
func (table *HashTable) WLock() {
	table.rwlock.Lock()
}

// Release a write latch on the hash table index
func (table *HashTable) WUnlock() {
	table.rwlock.Unlock()
}

// Grab a read latch on the hash table index
func (table *HashTable) RLock() {
	table.rwlock.RLock()
}

// Release a read latch on the hash table index
func (table *HashTable) RUnlock() {
	table.rwlock.RUnlock()
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////// HashTable Helper Functions ///////////////////////
/////////////////////////////////////////////////////////////////////////////

// GetBucketByPN pins the bucket stored on the given page, without latching.
func (table *HashTable) GetBucketByPN(pn int64) (*HashBucket, error) {
	page, err := table.pager.GetPage(pn)
	if err != nil {
		return nil, err
	}
	return pageToBucket(page), nil
}

// GetAndLockBucketByPN pins the bucket stored on the given page and acquires
// the requested latch on it.
func (table *HashTable) GetAndLockBucketByPN(pn int64, lock pager.LockType) (*HashBucket, error) {
	page, err := table.pager.GetAndLockPage(pn, lock)
	if err != nil {
		return nil, err
	}
	return pageToBucket(page), nil
}

// GetBucket pins the bucket routed at the given directory slot, without latching.
func (table *HashTable) GetBucket(slot int64) (*HashBucket, error) {
	return table.GetBucketByPN(table.directory.GetBucketPN(slot))
}

// GetAndLockBucket pins the bucket routed at the given directory slot and
// acquires the requested latch on it.
func (table *HashTable) GetAndLockBucket(slot int64, lock pager.LockType) (*HashBucket, error) {
	return table.GetAndLockBucketByPN(table.directory.GetBucketPN(slot), lock)
}
