package hash

import (
	"encoding/binary"
	"io"
	"path/filepath"

	"reefdb/pkg/pager"

	"github.com/google/uuid"
)

// HashIndex binds a HashTable to its backing file.
type HashIndex struct {
	table *HashTable   // The HashTable
	pager *pager.Pager // The pager backing this index / HashTable
}

// OpenTable opens the hash index stored in the given file, creating a fresh
// table (with a random seed) if the file is empty. The directory always
// lives on the file's first page.
func OpenTable(filename string) (*HashIndex, error) {
	// Create a pager for the table.
	pgr, err := pager.New(filename)
	if err != nil {
		return nil, err
	}
	var table *HashTable
	if pgr.GetNumPages() == 0 {
		table, err = NewHashTable(pgr, randomSeed())
	} else {
		table, err = InitHashTable(pgr, DIRECTORY_PN)
	}
	if err != nil {
		pgr.Close()
		return nil, err
	}
	return &HashIndex{table: table, pager: pgr}, nil
}

// randomSeed derives a fresh per-table hash seed.
func randomSeed() int64 {
	id := uuid.New()
	return int64(binary.LittleEndian.Uint64(id[:8]))
}

// GetName returns the base file name of the file backing this index's pager.
func (index *HashIndex) GetName() string {
	return filepath.Base(index.pager.GetFileName())
}

// GetPager returns the pager backing this index
func (index *HashIndex) GetPager() *pager.Pager {
	return index.pager
}

// Get table.
func (index *HashIndex) GetTable() *HashTable {
	return index.table
}

// Close releases the table's directory pin and closes the pager, flushing
// all dirty pages.
func (index *HashIndex) Close() error {
	if err := index.table.Close(); err != nil {
		return err
	}
	return index.pager.Close()
}

// Find returns all values stored under the given key.
func (index *HashIndex) Find(key int64) ([]int64, error) {
	return index.table.Get(key)
}

// Insert the given key / value pair.
func (index *HashIndex) Insert(key int64, value int64) (bool, error) {
	return index.table.Put(key, value)
}

// Delete the given key / value pair.
func (index *HashIndex) Delete(key int64, value int64) error {
	return index.table.Remove(key, value)
}

// Print all elements.
func (index *HashIndex) Print(w io.Writer) {
	index.table.Print(w)
}

// Print the bucket stored on a specific page.
func (index *HashIndex) PrintPN(pn int, w io.Writer) {
	index.table.PrintPN(pn, w)
}
