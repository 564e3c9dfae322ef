package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/waabox/graphctl/internal/console"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		console.New(os.Stdout, os.Stderr).Failure(err)
		stop()
		os.Exit(1)
	}
}
