package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/MJE43/daihinmin-arena/internal/logx"
)

// HTTPServer owns the listening socket for Routes.
type HTTPServer struct {
	addr       string
	handler    http.Handler
	httpServer *http.Server
	errc       chan error
	logger     *logx.Logger
}

// NewHTTPServer prepares a server for addr, e.g. "127.0.0.1:8077".
// Server-level errors go to logger.
func NewHTTPServer(addr string, handler http.Handler, logger *logx.Logger) *HTTPServer {
	if logger == nil {
		logger = logx.Discard()
	}
	return &HTTPServer{addr: addr, handler: handler, errc: make(chan error, 1), logger: logger}
}

// Start binds the socket and serves in a goroutine. It returns once the
// socket is bound.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		ErrorLog:          s.logger.Std(),
	}
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.errc <- err
	}()
	return nil
}

// Addr is the bound address once started.
func (s *HTTPServer) Addr() string { return s.addr }

// Done delivers the serve loop's terminal error, nil after Shutdown.
func (s *HTTPServer) Done() <-chan error { return s.errc }

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
