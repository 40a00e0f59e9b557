package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reefdb/pkg/hash"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var STARTUP = 100 * time.Millisecond
var MAX_DELAY int64 = 10

// Listens for SIGINT or SIGTERM and closes the index.
func setupCloseHandler(index *hash.HashIndex) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		index.Close()
		os.Exit(0)
	}()
}

// Get delay jitter.
func jitter() time.Duration {
	return time.Duration(rand.Int63n(MAX_DELAY)+1) * time.Millisecond
}

// Parse workload
func parseWorkload(path string) ([]string, error) {
	// Open the file.
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	// Scan through all lines.
	var workload []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		workload = append(workload, scanner.Text())
	}
	return workload, scanner.Err()
}

// generateWorkload builds a random insert/find/delete mix.
func generateWorkload(nOps int) []string {
	workload := make([]string, 0, nOps)
	for i := 0; i < nOps; i++ {
		key := rand.Int63n(int64(nOps))
		switch rand.Intn(4) {
		case 0:
			workload = append(workload, fmt.Sprintf("find %d", key))
		case 1:
			workload = append(workload, fmt.Sprintf("delete %d %d", key, key))
		default:
			workload = append(workload, fmt.Sprintf("insert %d %d", key, key))
		}
	}
	return workload
}

// Handle a slice of the workload, interleaved across n workers.
func handleWorkload(c chan string, workload []string, idx int, n int) error {
	for i := idx; i < len(workload); i += n {
		time.Sleep(jitter())
		c <- workload[i]
	}
	return nil
}

// Start the stress driver.
func main() {
	// Set up flags.
	var dbFlag = flag.String("db", "data/stress.db", "DB file")
	var workloadFlag = flag.String("workload", "", "workload file (generated randomly if omitted)")
	var opsFlag = flag.Int("ops", 1000, "number of generated operations (ignored with -workload)")
	var nFlag = flag.Int("n", 1, "number of threads to run (default: 1)")
	var verifyFlag = flag.Bool("verify", false, "enable to verify the index structure at the end of the workload")
	flag.Parse()
	// Clean up old db resources and open the index.
	os.Remove(*dbFlag)
	index, err := hash.OpenTable(*dbFlag)
	if err != nil {
		panic(err)
	}
	// Setup close conditions.
	defer index.Close()
	setupCloseHandler(index)
	// Run REPL.
	r := hash.HashTableRepl(index)
	c := make(chan string)
	go r.RunChan(c, uuid.New(), "")
	// Some time to wake up...
	time.Sleep(STARTUP)
	// Parse or generate the workload.
	var workload []string
	if *workloadFlag != "" {
		workload, err = parseWorkload(*workloadFlag)
		if err != nil {
			fmt.Println(err)
			return
		}
	} else {
		workload = generateWorkload(*opsFlag)
	}
	// Fan the workload out across the workers.
	var eg errgroup.Group
	for i := 0; i < *nFlag; i++ {
		idx := i
		eg.Go(func() error {
			return handleWorkload(c, workload, idx, *nFlag)
		})
	}
	if err := eg.Wait(); err != nil {
		fmt.Println(err)
	}
	close(c)
	// Verify the structure of the index.
	if *verifyFlag {
		if ok, err := hash.IsHash(index); !ok {
			fmt.Println("verification failed:", err)
			return
		}
		fmt.Println("verification passed")
	}
}
