// Package healthprobe serves a minimal liveness endpoint on HEALTH_PORT,
// separate from the dashboard API surface, for infra liveness checks that
// should not depend on the catalog or chain being reachable.
package healthprobe

import (
	"context"
	"net/http"
	"time"
)

// Server answers every request on its configured address with 200 OK as
// long as the process is alive. It carries no chain or catalog state.
type Server struct {
	addr string
}

// New builds a probe server bound to addr (e.g. ":3000").
func New(addr string) *Server {
	return &Server{addr: addr}
}

// Run starts the probe's HTTP listener and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
