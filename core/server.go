package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/0xRadioAc7iv/go-rmp/internal/config"
	"github.com/0xRadioAc7iv/go-rmp/internal/guard"
	"github.com/0xRadioAc7iv/go-rmp/internal/hash"
	"github.com/0xRadioAc7iv/go-rmp/internal/lock"
	"github.com/0xRadioAc7iv/go-rmp/internal/metrics"
	"github.com/0xRadioAc7iv/go-rmp/internal/protocol"
	"github.com/0xRadioAc7iv/go-rmp/internal/server"
	"github.com/0xRadioAc7iv/go-rmp/internal/store"
	"github.com/0xRadioAc7iv/go-rmp/internal/validate"
)

// Server owns a root directory of buckets and serves the record protocol
// on a TCP listener with a fixed pool of workers.
type Server struct {
	lockHandle   *lock.Handle
	store        *store.Store
	guard        *guard.Guard
	dispatcher   *Dispatcher
	listener     net.Listener
	serverCancel context.CancelFunc
	serveDone    chan error
	metricsSrv   *http.Server
	stopOnce     sync.Once

	RootDir     string
	ListenAddr  string // host:port; ":0" picks a free port
	Workers     int
	MaxBodySize uint32 // 0 means protocol.DefaultMaxBodySize
	IOTimeout   time.Duration
	MetricsAddr string                 // empty disables the /metrics endpoint
	Schema      validate.Schema        // nil Required means the default; empty requires nothing
	Metrics     *metrics.ServerMetrics // nil registers on a private registry
}

// NewServer builds a Server from a validated config.
func NewServer(cfg *config.ServerConfig) *Server {
	return &Server{
		RootDir:     cfg.RootDir,
		ListenAddr:  fmt.Sprintf(":%d", cfg.Port),
		Workers:     cfg.Workers,
		MaxBodySize: cfg.MaxBodySize,
		IOTimeout:   cfg.IOTimeout,
		MetricsAddr: cfg.MetricsAddr,
		Schema:      cfg.Schema(),
	}
}

// Start locks the root directory, opens the bucket store, binds the listener
// and starts the worker pool. It returns once the server is accepting.
func (s *Server) Start() error {
	if s.Workers < config.MinWorkers {
		s.Workers = config.DefaultWorkers()
	}
	if s.Schema.Required == nil {
		s.Schema = validate.DefaultSchema()
	}
	if s.MaxBodySize == 0 {
		s.MaxBodySize = protocol.DefaultMaxBodySize
	}
	if s.Metrics == nil {
		s.Metrics = metrics.InitServerMetrics(prometheus.NewRegistry())
	}

	if err := os.MkdirAll(s.RootDir, RootDirPerm); err != nil {
		return fmt.Errorf("create root directory: %w", err)
	}

	lh, err := lock.LockDirectory(s.RootDir)
	if err != nil {
		return err
	}
	s.lockHandle = lh

	st, err := store.New(s.RootDir)
	if err != nil {
		s.releaseLock()
		return fmt.Errorf("open bucket store: %w", err)
	}
	s.store = st

	s.guard = guard.New()
	s.dispatcher = NewDispatcher(s.store, s.guard, s.Schema)
	s.dispatcher.OnLockWait(func(d time.Duration) {
		s.Metrics.LockWait.Observe(d.Seconds())
		s.Metrics.LockSlots.Set(float64(s.guard.Len()))
	})

	ln, err := server.Listen(s.ListenAddr)
	if err != nil {
		s.releaseLock()
		return fmt.Errorf("listen on %s: %w", s.ListenAddr, err)
	}
	s.listener = ln

	if s.MetricsAddr != "" {
		if err := s.startMetrics(); err != nil {
			ln.Close()
			s.releaseLock()
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.serverCancel = cancel
	s.serveDone = make(chan error, 1)
	s.Metrics.Workers.Set(float64(s.Workers))

	go func() {
		s.serveDone <- server.Serve(ctx, ln, s.Workers, s.handleConn)
	}()

	log.Info().
		Str("addr", ln.Addr().String()).
		Str("root", s.RootDir).
		Int("workers", s.Workers).
		Msg("record server started")

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Store exposes the bucket store, mainly for inspection in tests.
func (s *Server) Store() *store.Store {
	return s.store
}

// Stop closes the listener, waits for in-flight requests to finish and
// releases the root directory. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.serverCancel != nil {
			s.serverCancel()
			if err := <-s.serveDone; err != nil {
				log.Error().Err(err).Msg("worker pool stopped with error")
			}
		}

		if s.metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), MetricsShutdownTimeout)
			if err := s.metricsSrv.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("metrics server shutdown")
			}
			cancel()
		}

		s.releaseLock()
		log.Info().Msg("record server stopped")
	})
}

func (s *Server) releaseLock() {
	if s.lockHandle == nil {
		return
	}
	if err := s.lockHandle.Release(); err != nil {
		log.Warn().Err(err).Msg("releasing root directory lock")
	}
	s.lockHandle = nil
}

func (s *Server) startMetrics() error {
	ln, err := net.Listen("tcp", s.MetricsAddr)
	if err != nil {
		return fmt.Errorf("listen metrics on %s: %w", s.MetricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	s.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("metrics endpoint listening")
	return nil
}

// handleConn serves exactly one request on conn. The worker pool closes
// conn afterwards.
func (s *Server) handleConn(conn net.Conn) {
	logger := log.With().
		Str("request_id", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	s.Metrics.BusyWorkers.Inc()
	defer s.Metrics.BusyWorkers.Dec()

	if s.IOTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.IOTimeout))
	}

	req, err := protocol.DecodeRequest(conn, s.MaxBodySize)
	if err != nil {
		s.handleDecodeError(conn, logger, err)
		return
	}

	start := time.Now()
	resp := s.dispatcher.Dispatch(req)
	s.Metrics.LockSlots.Set(float64(s.guard.Len()))
	s.reply(conn, logger, resp)

	label := commandLabel(req.Command)
	s.Metrics.Requests.WithLabelValues(label, resp.Status.String()).Inc()
	s.Metrics.RequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	s.logOutcome(logger, req, resp, time.Since(start))
}

func (s *Server) handleDecodeError(conn net.Conn, logger zerolog.Logger, err error) {
	var pe *protocol.ProtocolError
	isBody := errors.As(err, &pe) && pe.Op == protocol.OpBody

	if !isBody {
		if errors.Is(err, io.EOF) {
			logger.Debug().Msg("client disconnected before sending a request")
			return
		}
		s.Metrics.ProtocolErrors.WithLabelValues("header").Inc()
		logger.Warn().Err(err).Msg("unreadable request header, closing connection")
		return
	}

	// The header was fine, so the client is still owed an answer.
	s.Metrics.ProtocolErrors.WithLabelValues("body").Inc()
	logger.Warn().Err(err).Msg("malformed request body")
	s.reply(conn, logger, errorResponse(err))
}

func (s *Server) logOutcome(logger zerolog.Logger, req *protocol.Request, resp Response, took time.Duration) {
	var ev *zerolog.Event
	if IsFault(resp.Err) {
		s.Metrics.StorageErrors.Inc()
		ev = logger.Error().Err(resp.Err)
	} else {
		ev = logger.Debug()
		if resp.Err != nil {
			ev = ev.Str("reason", resp.Err.Error())
		}
	}

	if resp.Key != "" {
		ev = ev.Str("bucket", hash.Name(resp.Key))
	}

	ev.Str("command", req.Command.String()).
		Str("status", resp.Status.String()).
		Dur("duration", took).
		Msg("request handled")
}

func (s *Server) reply(conn net.Conn, logger zerolog.Logger, resp Response) {
	if err := protocol.WriteResponse(conn, resp.Status, resp.Body); err != nil {
		logger.Debug().Err(err).Msg("client disconnected before the response was written")
	}
}

func commandLabel(cmd protocol.Command) string {
	if !cmd.Valid() {
		return unknownCommandLabel
	}
	return cmd.String()
}
