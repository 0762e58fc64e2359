package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/authsession/internal/server"
	"github.com/dmitrijs2005/authsession/internal/server/config"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code. Run logs its own failures through the
// app logger; only a logger that could not be built goes to stderr.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.NewApp(config.LoadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "authsession-server: %v\n", err)
		return 1
	}

	if err := app.Run(ctx); err != nil {
		return 1
	}
	return 0
}
