// Command coachkb builds and queries a coaching knowledge base.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/coachkb/internal/adapters/driving/cli"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A .env file is optional.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetFactory(newFactory())

	if err := cli.Execute(ctx); err != nil {
		logger.Debug("command failed: %v", err)
		stop()
		os.Exit(1)
	}
}
