package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/miloc/internal/mediactl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mediactl.NewRootCmd(mediactl.OpenEnv).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
