package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// acceptBackoff keeps a worker from spinning on a persistent accept error.
const acceptBackoff = 50 * time.Millisecond

// Handler serves one connection to completion. The connection is closed
// after Handler returns.
type Handler func(conn net.Conn)

// Listen binds a TCP listener on addr.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Serve runs a fixed pool of workers sharing ln. Each worker accepts one
// connection, runs handler on it synchronously, closes it and only then
// accepts again, so at most `workers` connections are served at once and the
// rest wait in the kernel's accept backlog.
//
// Cancelling ctx closes ln. Workers blocked in Accept return; workers in the
// middle of a connection finish it first. Serve returns once every worker has
// exited.
func Serve(ctx context.Context, ln net.Listener, workers int, handler Handler) error {
	g, ctx := errgroup.WithContext(ctx)

	// When ctx is cancelled, close listener
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for id := range workers {
		g.Go(func() error {
			return acceptLoop(ctx, id, ln, handler)
		})
	}

	return g.Wait()
}

func acceptLoop(ctx context.Context, id int, ln net.Listener, handler Handler) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// When ln.Close() is called, Accept() returns an error.
			// This is how we break out of the loop cleanly.
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			log.Warn().Err(err).Int("worker", id).Msg("error accepting connection")
			time.Sleep(acceptBackoff)
			continue
		}

		serveConn(id, conn, handler)
	}
}

// serveConn isolates one connection: a panic in handler is logged and the
// worker goes back to accepting.
func serveConn(id int, conn net.Conn, handler Handler) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int("worker", id).
				Str("remote", conn.RemoteAddr().String()).
				Interface("panic", r).
				Msg("connection handler panicked")
		}
	}()

	handler(conn)
}
