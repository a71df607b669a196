// Package server wires configuration, storage, the key vault and the
// services into the HTTP API and the gRPC health server, and runs them until
// a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/miloc/internal/cryptox"
	"github.com/dmitrijs2005/miloc/internal/logging"
	"github.com/dmitrijs2005/miloc/internal/server/config"
	"github.com/dmitrijs2005/miloc/internal/server/httpapi"
	"github.com/dmitrijs2005/miloc/internal/server/keyvault"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/miloc/internal/server/services"
	"github.com/dmitrijs2005/miloc/internal/server/storage"

	gs "github.com/dmitrijs2005/miloc/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	health *gs.HealthServer
}

// openDB is a seam for tests.
var openDB = repomanager.Open

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	h := logging.NewHandler(os.Stdout, c.LogFormat, logging.ParseLevel(c.LogLevel))
	logger := logging.NewSlogLogger(slog.New(h))

	codec, err := cryptox.NewCodec(cryptox.Version(c.CipherVersion))
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}

	store, err := storage.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return newApp(c, logger, db, rm, store, codec), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager,
	store storage.BlobStore, codec *cryptox.Codec) *App {

	vault := keyvault.New(rm.Users(db), logger)
	us := services.NewUserService(db, rm, c, logger)
	ms := services.NewMediaService(db, rm, store, vault, codec, c.MaxUploadBytes, logger)

	gate := httpapi.NewAccessGate(c.GateAllowPrefixes, c.GateBlockPrefixes)

	app := &App{
		config: c,
		logger: logger,
		db:     db,
		http:   httpapi.NewServer(c.EndpointAddrHTTP, logger, us, ms, gate, c.MaxUploadBytes),
	}
	if c.EndpointAddrGRPC != "" {
		app.health = gs.NewHealthServer(c.EndpointAddrGRPC, logger, db, 0)
	}
	return app
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a signal arrives or ctx is cancelled, then closes the
// database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "closing database", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
