package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/miloc/internal/server"
	"github.com/dmitrijs2005/miloc/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	app.Run(ctx)
}
