package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tbxark/formfiller/internal/log"
)

// Serve runs srv on ln until ctx is cancelled, then shuts it down within
// shutdownTimeout. It returns nil after a clean shutdown.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	logger := log.WithComponent("server")
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str(log.FieldEvent, "server.listening").Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Str(log.FieldEvent, "server.shutdown").Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
