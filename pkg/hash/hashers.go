package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// digest hashes a key with the given hasher function, mixing in the
// per-table seed so distinct tables spread the same keys differently.
func digest(hasher func(b []byte) uint64, key int64, seed int64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(key))
	return hasher(buf[:])
}

// HashKey returns the seeded xxHash digest of the given key.
func HashKey(key int64, seed int64) uint64 {
	return digest(xxhash.Sum64, key, seed)
}

// MurmurHashKey returns the seeded MurmurHash3 digest of the given key.
func MurmurHashKey(key int64, seed int64) uint64 {
	return digest(murmur3.Sum64, key, seed)
}

// Prefix returns the low `depth` bits of a digest; used as a directory index.
func Prefix(hash uint64, depth int64) int64 {
	return int64(hash & uint64((int64(1)<<depth)-1))
}

// LocalIndex returns the starting probe slot inside a bucket. It draws on
// hash bits above the given depth so entries that share a bucket do not
// pile up on the same slot. The table passes the bucket's local depth, which
// changes only when the bucket is split and its entries rehashed, so an
// entry's start slot stays fixed while the directory doubles around it.
func LocalIndex(hash uint64, depth int64) int64 {
	return int64(((hash >> uint64(depth)) & 0xFFFF) % uint64(MAX_BUCKET_SIZE))
}

// Hasher returns the directory slot for a key at the given depth.
func Hasher(key int64, seed int64, depth int64) int64 {
	return Prefix(HashKey(key, seed), depth)
}
