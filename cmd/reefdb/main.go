package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"reefdb/pkg/config"
	"reefdb/pkg/hash"
	"reefdb/pkg/pager"
	"reefdb/pkg/repl"

	"github.com/google/uuid"
)

// Default port 8335 (BEES).
const DEFAULT_PORT int = 8335

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

// Start listening for connections at port `port`.
func startServer(r *repl.REPL, prompt string, port int) {
	// Handle a connection by running the repl on it.
	handleConn := func(c net.Conn) {
		clientId := uuid.New()
		defer c.Close()
		r.Run(clientId, prompt, c, c)
	}
	// Start listening for new connections.
	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%v server started listening on localhost:%v\n", config.DBName,
		listener.Addr().(*net.TCPAddr).Port)
	// Handle each connection.
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Print(err)
			continue
		}
		go handleConn(conn)
	}
}

// Start the database.
func main() {
	// Set up flags.
	var promptFlag = flag.Bool("c", true, "use prompt?")
	var dbFlag = flag.String("db", "data/reefdb.db", "DB file")
	var pagerFlag = flag.Bool("pager", false, "run the standalone pager REPL instead of the hash index")
	var serverFlag = flag.Bool("server", false, "serve the REPL over TCP")
	var portFlag = flag.Int("p", DEFAULT_PORT, "port number")
	flag.Parse()

	prompt := config.GetPrompt(*promptFlag)
	repls := make([]*repl.REPL, 0)

	if *pagerFlag {
		pRepl, err := pager.PagerRepl()
		if err != nil {
			fmt.Println(err)
			return
		}
		repls = append(repls, pRepl)
	} else {
		// Open the index.
		index, err := hash.OpenTable(*dbFlag)
		if err != nil {
			panic(err)
		}
		defer index.Close()
		setupCloseHandler(index)
		hRepl := hash.HashTableRepl(index)
		hRepl.SetHistoryPath(filepath.Join(filepath.Dir(*dbFlag), config.HistoryFileName))
		repls = append(repls, hRepl)
	}

	// Combine the REPLs.
	r, err := repl.CombineRepls(repls)
	if err != nil {
		fmt.Println(err)
		return
	}

	// Start server if requested, else run locally.
	if *serverFlag {
		startServer(r, prompt, *portFlag)
	} else {
		r.Run(uuid.New(), prompt, os.Stdin, os.Stdout)
	}
}
