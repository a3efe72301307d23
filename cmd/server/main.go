// Command server is the webserv entrypoint: server <config_path>, per
// spec.md §6. There is no clean-shutdown path — the process runs the
// event loop until a fatal error, exiting 1 on any startup or runtime
// failure.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/eventloop"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: server <config_path>")
		os.Exit(1)
	}

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: cannot open config %q: %v\n", os.Args[1], err)
		os.Exit(1)
	}

	servers, err := config.Load(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}

	signal.Ignore(syscall.SIGPIPE)

	mux, err := eventloop.New(servers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}

	if err := mux.Run(); err != nil {
		log.Printf("server: fatal: %v", err)
		os.Exit(1)
	}
}
