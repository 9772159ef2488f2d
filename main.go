package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/edaschema/edaschema/cmd"
	"github.com/edaschema/edaschema/internal/app"
	"github.com/edaschema/edaschema/internal/buildinfo"
)

// set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(buildinfo.NewContext(version, buildDate))
	defer a.Shutdown()

	rootCmd, err := cmd.RootCommand(a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating command: %v\n", err)
		return 1
	}
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
