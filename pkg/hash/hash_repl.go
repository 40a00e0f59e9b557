package hash

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"reefdb/pkg/repl"

	"github.com/otiai10/copy"
)

// HashTableRepl creates a REPL exposing the hash index's operations.
func HashTableRepl(index *HashIndex) *repl.REPL {
	r := repl.NewRepl()

	r.AddCommand("find", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleFind(index, payload)
	}, "Find all values stored under a key. usage: find <key>")

	r.AddCommand("insert", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleInsert(index, payload)
	}, "Insert a key-value pair. usage: insert <key> <value>")

	r.AddCommand("delete", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleDelete(index, payload)
	}, "Delete a key-value pair. usage: delete <key> <value>")

	r.AddCommand("print", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandlePrint(index, payload)
	}, "Print the directory and all buckets, or one bucket page. usage: print [<page_num>]")

	r.AddCommand("verify", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleVerify(index, payload)
	}, "Check the table's structural invariants. usage: verify")

	r.AddCommand("backup", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleBackup(index, payload)
	}, "Flush and snapshot the database file. usage: backup")

	return r
}

// Function to find all values stored under a key.
func HandleFind(index *HashIndex, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: find <key>
	if len(fields) != 2 {
		return "", errors.New("usage: find <key>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", err
	}
	values, err := index.Find(key)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return fmt.Sprintf("no entries for key %d", key), nil
	}
	w := new(strings.Builder)
	for _, v := range values {
		fmt.Fprintf(w, "(%d, %d)\n", key, v)
	}
	return w.String(), nil
}

// Function to insert a key-value pair.
func HandleInsert(index *HashIndex, payload string) (err error) {
	fields := strings.Fields(payload)
	// Usage: insert <key> <value>
	if len(fields) != 3 {
		return errors.New("usage: insert <key> <value>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return err
	}
	inserted, err := index.Insert(key, value)
	if err != nil {
		return err
	}
	if !inserted {
		return errors.New("insert failed: table is full")
	}
	return nil
}

// Function to delete a key-value pair.
func HandleDelete(index *HashIndex, payload string) (err error) {
	fields := strings.Fields(payload)
	// Usage: delete <key> <value>
	if len(fields) != 3 {
		return errors.New("usage: delete <key> <value>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return err
	}
	return index.Delete(key, value)
}

// Function to print the table or a single bucket page.
func HandlePrint(index *HashIndex, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	w := new(strings.Builder)
	switch len(fields) {
	// Usage: print
	case 1:
		index.Print(w)
	// Usage: print <page_num>
	case 2:
		var pn int
		if pn, err = strconv.Atoi(fields[1]); err != nil {
			return "", err
		}
		index.PrintPN(pn, w)
	default:
		return "", errors.New("usage: print [<page_num>]")
	}
	return w.String(), nil
}

// Function to check the table's structural invariants.
func HandleVerify(index *HashIndex, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: verify
	if len(fields) != 1 {
		return "", errors.New("usage: verify")
	}
	if err = Verify(index.GetTable()); err != nil {
		return "", err
	}
	return "ok", nil
}

// Function to flush all pages and snapshot the database file.
func HandleBackup(index *HashIndex, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: backup
	if len(fields) != 1 {
		return "", errors.New("usage: backup")
	}
	pgr := index.GetPager()
	// Quiesce writers so the copied file is a consistent image.
	pgr.LockAllPages()
	pgr.FlushAllPages()
	dst := fmt.Sprintf("%s.bak.%d", pgr.GetFileName(), time.Now().Unix())
	err = copy.Copy(pgr.GetFileName(), dst)
	pgr.UnlockAllPages()
	if err != nil {
		return "", err
	}
	return "backed up to " + dst, nil
}
