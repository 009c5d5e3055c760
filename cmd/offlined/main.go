// Command offlined serves an application origin cache-first so it keeps
// working offline.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/offlinekit/config"
	"github.com/jonwraymond/offlinekit/internal/cmd/offlined"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := offlined.Run(ctx, cfg); err != nil {
		log.Fatalf("offlined: %v", err)
	}
}
