package hash

import (
	"encoding/binary"

	"reefdb/pkg/pager"
)

// HashDirectory is a view over the pinned directory page. The page holds the
// table's identity, a reserved log sequence number, the hash seed, the
// global depth, and one (local depth, bucket page id) pair per slot. The
// active portion of the slot arrays is the first 2^globalDepth entries.
type HashDirectory struct {
	page *pager.Page // The pinned page containing the directory's data
}

// pageToDirectory converts the given pinned page into a HashDirectory.
// If the page id sentinel does not match the pinned page, the image is
// treated as uninitialized and reformatted; the caller is responsible for
// seeding a reformatted directory before use.
func pageToDirectory(page *pager.Page) *HashDirectory {
	directory := &HashDirectory{page: page}
	if directory.storedPageNum() != page.GetPageNum() {
		directory.format()
	}
	return directory
}

// Get the directory's page.
func (directory *HashDirectory) GetPage() *pager.Page {
	return directory.page
}

// GetGlobalDepth returns the number of hash bits used to index the directory.
func (directory *HashDirectory) GetGlobalDepth() int64 {
	return directory.getInt64(DIR_GLOBAL_DEPTH_OFFSET)
}

// Size returns the number of active directory slots, 2^globalDepth.
func (directory *HashDirectory) Size() int64 {
	return int64(1) << directory.GetGlobalDepth()
}

// GetSeed returns the table's hash seed.
func (directory *HashDirectory) GetSeed() int64 {
	return directory.getInt64(DIR_SEED_OFFSET)
}

// GetLSN returns the directory's log sequence number. The field is reserved;
// nothing in the table advances it.
func (directory *HashDirectory) GetLSN() int64 {
	return directory.getInt64(DIR_LSN_OFFSET)
}

// GetLocalDepth returns the local depth of the bucket at the given slot.
func (directory *HashDirectory) GetLocalDepth(slot int64) int64 {
	return int64(directory.page.GetData()[DIR_LOCAL_DEPTHS_OFFSET+slot])
}

// GetBucketPN returns the page number of the bucket at the given slot.
func (directory *HashDirectory) GetBucketPN(slot int64) int64 {
	pos := DIR_BUCKET_PNS_OFFSET + slot*DIR_BUCKET_PN_SIZE
	return int64(binary.LittleEndian.Uint32(directory.page.GetData()[pos : pos+DIR_BUCKET_PN_SIZE]))
}

/////////////////////////////////////////////////////////////////////////////
//////////////////// HashDirectory Helper Functions /////////////////////////
/////////////////////////////////////////////////////////////////////////////

// storedPageNum reads the page id sentinel at the head of the directory image.
func (directory *HashDirectory) storedPageNum() int64 {
	data := directory.page.GetData()
	return int64(binary.LittleEndian.Uint64(data[DIR_PAGE_ID_OFFSET : DIR_PAGE_ID_OFFSET+DIR_PAGE_ID_SIZE]))
}

// format clears the directory image and stamps the page id sentinel.
// Global depth is left at zero; a formatted directory is not yet a table.
func (directory *HashDirectory) format() {
	header := make([]byte, DIR_HEADER_SIZE)
	binary.LittleEndian.PutUint64(header[DIR_PAGE_ID_OFFSET:], uint64(directory.page.GetPageNum()))
	directory.page.Update(header, 0, DIR_HEADER_SIZE)
}

// setGlobalDepth writes the directory's global depth.
func (directory *HashDirectory) setGlobalDepth(depth int64) {
	directory.putInt64(DIR_GLOBAL_DEPTH_OFFSET, depth)
}

// setSeed writes the table's hash seed.
func (directory *HashDirectory) setSeed(seed int64) {
	directory.putInt64(DIR_SEED_OFFSET, seed)
}

// setLocalDepth writes the local depth of the bucket at the given slot.
func (directory *HashDirectory) setLocalDepth(slot int64, depth int64) {
	directory.page.Update([]byte{byte(depth)}, DIR_LOCAL_DEPTHS_OFFSET+slot, 1)
}

// setBucketPN writes the page number of the bucket at the given slot.
func (directory *HashDirectory) setBucketPN(slot int64, pagenum int64) {
	buf := make([]byte, DIR_BUCKET_PN_SIZE)
	binary.LittleEndian.PutUint32(buf, uint32(pagenum))
	directory.page.Update(buf, DIR_BUCKET_PNS_OFFSET+slot*DIR_BUCKET_PN_SIZE, DIR_BUCKET_PN_SIZE)
}

// extend doubles the active directory in place by copying every slot s into
// slot s + 2^globalDepth, then increments the global depth. A bucket of
// local depth L keeps being referenced by all slots agreeing with it in the
// low L bits, so every directory invariant is preserved.
// The caller must hold the table latch exclusively.
func (directory *HashDirectory) extend() {
	size := directory.Size()
	for s := int64(0); s < size; s++ {
		directory.setBucketPN(s+size, directory.GetBucketPN(s))
		directory.setLocalDepth(s+size, directory.GetLocalDepth(s))
	}
	directory.setGlobalDepth(directory.GetGlobalDepth() + 1)
}

// getInt64 reads a fixed-width field from the directory header.
func (directory *HashDirectory) getInt64(offset int64) int64 {
	return int64(binary.LittleEndian.Uint64(directory.page.GetData()[offset : offset+8]))
}

// putInt64 writes a fixed-width field into the directory header.
func (directory *HashDirectory) putInt64(offset int64, value int64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	directory.page.Update(buf, offset, 8)
}
