// Package httpapi is the REST surface of the media server: accounts, upload
// and listing under /api, and the protected stream endpoint that is the only
// way a stored file reaches a client.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/miloc/internal/logging"
	"github.com/dmitrijs2005/miloc/internal/server/models"
	"github.com/dmitrijs2005/miloc/internal/server/services"
	"github.com/gorilla/mux"
)

// Accounts is the part of services.UserService the API uses.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	UserIDFromAccessToken(token string) (string, error)
}

// Media is the part of services.MediaService the API uses.
type Media interface {
	Upload(ctx context.Context, ownerID string, req services.UploadRequest) (*models.MediaAsset, error)
	Open(ctx context.Context, requesterID, storagePath string) (*models.MediaAsset, []byte, error)
	List(ctx context.Context, ownerID string) ([]*models.MediaAsset, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type Server struct {
	address        string
	accounts       Accounts
	media          Media
	gate           *AccessGate
	maxUploadBytes int64
	logger         logging.Logger
	handler        http.Handler
}

func NewServer(address string, l logging.Logger, accounts Accounts, media Media, gate *AccessGate, maxUploadBytes int64) *Server {
	s := &Server{
		address:        address,
		accounts:       accounts,
		media:          media,
		gate:           gate,
		maxUploadBytes: maxUploadBytes,
		logger:         l.With("module", "http_server"),
	}
	s.handler = Chain(s.routes(), s.Interceptors()...)
	return s
}

// Interceptors returns the ordered request interceptors that run before
// routing.
func (s *Server) Interceptors() []Interceptor {
	return []Interceptor{
		Recover(s.logger),
		RequestLog(s.logger),
		SecurityHeaders,
		s.gate.Intercept,
	}
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	api.HandleFunc("/progress/", s.requireUser(s.handleListAssets)).Methods(http.MethodGet)
	api.HandleFunc("/progress/create", s.requireUser(s.handleUpload)).Methods(http.MethodPost)
	api.HandleFunc("/progress/{id}", s.requireUser(s.handleDeleteAsset)).Methods(http.MethodDelete)

	r.HandleFunc("/media/protected/{path:.+}", s.requireUser(s.handleStream)).Methods(http.MethodGet, http.MethodHead)

	// Subrouters do not inherit these from r.
	for _, m := range []*mux.Router{r, api} {
		m.NotFoundHandler = http.HandlerFunc(notFound)
		m.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
}

// ServeHTTP makes Server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
