package entry

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Entry is a key-value pair that represents one slot's worth of data in a
// hash bucket. Keys and values are fixed-width so that an entry always
// occupies exactly Size bytes on a page.
type Entry struct {
	Key   int64
	Value int64
}

// Size is the number of bytes an entry occupies when marshalled.
const Size int64 = 16

// New constructs and returns a new Entry with the specified key and value.
func New(key int64, value int64) Entry {
	return Entry{key, value}
}

// Marshal serializes a given entry into a fixed-width byte array.
func (entry Entry) Marshal() []byte {
	newdata := make([]byte, Size)
	binary.LittleEndian.PutUint64(newdata[:8], uint64(entry.Key))
	binary.LittleEndian.PutUint64(newdata[8:], uint64(entry.Value))
	return newdata
}

// UnmarshalEntry deserializes a byte array into an entry.
func UnmarshalEntry(data []byte) Entry {
	k := int64(binary.LittleEndian.Uint64(data[:8]))
	v := int64(binary.LittleEndian.Uint64(data[8:Size]))
	return Entry{Key: k, Value: v}
}

// Print writes the entry to the specified writer in the following format: (<key>, <value>),
func (entry Entry) Print(w io.Writer) {
	fmt.Fprintf(w, "(%d, %d), ", entry.Key, entry.Value)
}
