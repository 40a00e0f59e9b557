package hash

import (
	"reefdb/pkg/entry"
	"reefdb/pkg/pager"
)

/////////////////////////////////////////////////////////////////////////////
////////////////////////// Low-level Constants //////////////////////////////
/////////////////////////////////////////////////////////////////////////////

const PAGESIZE int64 = pager.Pagesize

// The directory always lives on the first page of the table's file.
const DIRECTORY_PN int64 = 0

// Bucket page layout. A bucket page starts with an 8-byte page id sentinel,
// followed by the occupied and readable bitmaps, followed by the slot array.
const BUCKET_PAGE_ID_OFFSET int64 = 0
const BUCKET_PAGE_ID_SIZE int64 = 8
const BUCKET_HEADER_SIZE int64 = BUCKET_PAGE_ID_SIZE
const ENTRYSIZE int64 = entry.Size

// MAX_BUCKET_SIZE is the number of slots in one bucket page. Each slot costs
// ENTRYSIZE bytes plus one bit in each of the two bitmaps; the formula packs
// as many slots as fit in the page body after the header. This constant is a
// layout contract: it must be stable for a given entry size and page size.
const MAX_BUCKET_SIZE int64 = 4 * (PAGESIZE - BUCKET_HEADER_SIZE) / (4*ENTRYSIZE + 1)

const BITMAP_SIZE int64 = (MAX_BUCKET_SIZE + 7) / 8
const OCCUPIED_OFFSET int64 = BUCKET_HEADER_SIZE
const READABLE_OFFSET int64 = OCCUPIED_OFFSET + BITMAP_SIZE
const BUCKET_DATA_OFFSET int64 = READABLE_OFFSET + BITMAP_SIZE

// Directory page layout. The directory holds the table's identity, the hash
// seed, the global depth, and DIRECTORY_SIZE (local depth, bucket page id)
// slot pairs. Bucket page ids are stored 4 bytes wide on the page so that
// all 512 slots fit; page 0 is always the directory, so 0 doubles as the
// "no bucket" sentinel.
const DIR_PAGE_ID_OFFSET int64 = 0
const DIR_PAGE_ID_SIZE int64 = 8
const DIR_LSN_OFFSET int64 = DIR_PAGE_ID_OFFSET + DIR_PAGE_ID_SIZE
const DIR_LSN_SIZE int64 = 8
const DIR_GLOBAL_DEPTH_OFFSET int64 = DIR_LSN_OFFSET + DIR_LSN_SIZE
const DIR_GLOBAL_DEPTH_SIZE int64 = 8
const DIR_SEED_OFFSET int64 = DIR_GLOBAL_DEPTH_OFFSET + DIR_GLOBAL_DEPTH_SIZE
const DIR_SEED_SIZE int64 = 8
const DIR_LOCAL_DEPTHS_OFFSET int64 = DIR_SEED_OFFSET + DIR_SEED_SIZE
const DIR_BUCKET_PNS_OFFSET int64 = DIR_LOCAL_DEPTHS_OFFSET + DIRECTORY_SIZE
const DIR_BUCKET_PN_SIZE int64 = 4
const DIR_HEADER_SIZE int64 = DIR_BUCKET_PNS_OFFSET + DIRECTORY_SIZE*DIR_BUCKET_PN_SIZE

// DIRECTORY_SIZE bounds the directory at 2^MAX_GLOBAL_DEPTH slots.
const DIRECTORY_SIZE int64 = 512
const MAX_GLOBAL_DEPTH int64 = 9
