package hash

import (
	"fmt"

	"reefdb/pkg/pager"

	"github.com/bits-and-blooms/bitset"
)

// Verify checks the table's structural invariants under a read latch:
//
//  1. every live entry is stored in the bucket its hash routes to
//  2. slots share a bucket page exactly when they agree in the bucket's
//     low localDepth bits, and aliases agree on that depth
//  3. within a bucket, a readable slot is always occupied
//  4. every local depth is between 1 and the global depth, which is capped
//  5. every active slot references a bucket page
//
// The first violation found is returned as an error.
func Verify(table *HashTable) error {
	table.RLock()
	defer table.RUnlock()

	directory := table.directory
	depth := directory.GetGlobalDepth()
	if depth < 1 || depth > MAX_GLOBAL_DEPTH {
		return fmt.Errorf("global depth %d out of range", depth)
	}

	size := directory.Size()
	seed := directory.GetSeed()
	checked := bitset.New(uint(size))
	for slot := int64(0); slot < size; slot++ {
		localDepth := directory.GetLocalDepth(slot)
		pn := directory.GetBucketPN(slot)
		if pn == 0 {
			return fmt.Errorf("slot %d references no bucket", slot)
		}
		if localDepth < 1 || localDepth > depth {
			return fmt.Errorf("slot %d local depth %d out of range (global %d)", slot, localDepth, depth)
		}

		// All aliases of this bucket agree in the low localDepth bits; any
		// slot that shares the page must be such an alias, and vice versa.
		canonical := slot % (int64(1) << localDepth)
		for other := int64(0); other < size; other++ {
			sameBucket := directory.GetBucketPN(other) == pn
			sameAlias := other%(int64(1)<<localDepth) == canonical
			if sameBucket != sameAlias {
				return fmt.Errorf("slots %d and %d disagree on bucket page %d", slot, other, pn)
			}
			if sameBucket && directory.GetLocalDepth(other) != localDepth {
				return fmt.Errorf("aliases %d and %d of page %d disagree on local depth", slot, other, pn)
			}
		}

		if checked.Test(uint(canonical)) {
			continue
		}
		checked.Set(uint(canonical))

		bucket, err := table.GetAndLockBucketByPN(pn, pager.READ_LOCK)
		if err != nil {
			return err
		}
		for index := int64(0); index < MAX_BUCKET_SIZE; index++ {
			if bucket.IsReadable(index) && !bucket.IsOccupied(index) {
				bucket.RUnlock()
				table.pager.PutPage(bucket.page)
				return fmt.Errorf("page %d slot %d readable but not occupied", pn, index)
			}
			e, ok := bucket.Get(index)
			if !ok {
				continue
			}
			routed := Prefix(HashKey(e.Key, seed), depth)
			if directory.GetBucketPN(routed) != pn {
				bucket.RUnlock()
				table.pager.PutPage(bucket.page)
				return fmt.Errorf("entry (%d, %d) on page %d routes to page %d",
					e.Key, e.Value, pn, directory.GetBucketPN(routed))
			}
		}
		bucket.RUnlock()
		table.pager.PutPage(bucket.page)
	}
	return nil
}

// IsHash reports whether the index's table satisfies all structural invariants.
func IsHash(index *HashIndex) (bool, error) {
	if err := Verify(index.GetTable()); err != nil {
		return false, err
	}
	return true, nil
}
