package tasks

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
)

// Listen opens a TCP listener that accepts at most maxConns connections at
// once. Further clients wait in the kernel backlog until a handler
// finishes. maxConns <= 0 means unbounded.
func Listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

// Serve returns a task that serves srv on ln and shuts it down gracefully
// once ctx is done. Each accepted connection is handled on its own
// goroutine by net/http.
func Serve(srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) Task {
	return func(ctx context.Context) error {
		errc := make(chan error, 1)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		log.Println("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		<-errc
		return ctx.Err()
	}
}
