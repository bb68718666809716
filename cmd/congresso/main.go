package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// embeddedConfig is the default application configuration bundled into the binary.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	logger.Sync()
	os.Exit(code)
}
