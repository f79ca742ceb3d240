package apihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"videostream/internal/domain"
	"videostream/internal/metrics"
	"videostream/internal/usecase"
)

type MediaService interface {
	ListMedia(ctx context.Context) ([]domain.MediaRecord, error)
	OpenMedia(ctx context.Context, id domain.MediaID) (usecase.MediaContent, error)
	ResolveRange(header string, totalSize int64) (domain.ByteRange, error)
	Rescan(ctx context.Context) (int, error)
}

const defaultIdleTimeout = 30 * time.Second

// Server owns the media listener and a fixed pool of workers draining one
// shared ready queue. A session enters the queue only once its connection
// has inbound bytes, so a worker never parks on an idle client.
type Server struct {
	media       MediaService
	logger      *slog.Logger
	tracer      trace.Tracer
	idleTimeout time.Duration
	acceptRate  float64
	acceptBurst int

	running   atomic.Bool
	lifecycle sync.Mutex // serializes Start and Stop

	mu         sync.Mutex
	listener   net.Listener
	cancel     context.CancelFunc
	workers    *errgroup.Group
	ready      chan *session
	acceptDone chan struct{}
	sessions   map[*session]struct{}
	waiters    sync.WaitGroup
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdleTimeout bounds how long a connection may sit without sending a
// request. Zero disables the limit.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d >= 0 {
			s.idleTimeout = d
		}
	}
}

// WithAcceptRate paces the accept loop. A non-positive rate leaves it
// unlimited.
func WithAcceptRate(perSecond float64, burst int) ServerOption {
	return func(s *Server) {
		s.acceptRate = perSecond
		s.acceptBurst = burst
	}
}

func WithTracer(tracer trace.Tracer) ServerOption {
	return func(s *Server) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func NewServer(media MediaService, opts ...ServerOption) *Server {
	s := &Server{
		media:       media,
		logger:      slog.Default(),
		tracer:      otel.Tracer("videostream/apihttp"),
		idleTimeout: defaultIdleTimeout,
		sessions:    make(map[*session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds host:port and launches workerCount workers (NumCPU when not
// positive). Calling Start on a running server logs a warning and returns nil.
func (s *Server) Start(host string, port int, workerCount int) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("server already running")
		return nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &errgroup.Group{}
	ready := make(chan *session, workerCount*4)
	acceptDone := make(chan struct{})

	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.workers = g
	s.ready = ready
	s.acceptDone = acceptDone
	s.mu.Unlock()

	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			s.worker(ctx, ready)
			return nil
		})
	}

	var limiter *rate.Limiter
	if s.acceptRate > 0 {
		burst := s.acceptBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.acceptRate), burst)
	}
	go func() {
		defer close(acceptDone)
		s.acceptLoop(ctx, ln, ready, limiter)
	}()

	s.logger.Info("media server started",
		slog.String("addr", ln.Addr().String()),
		slog.Int("workers", workerCount),
	)
	return nil
}

// Stop closes the listener, wakes idle sessions, lets in-flight responses
// finish and joins every worker. It is a no-op when the server is stopped.
func (s *Server) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	ln, cancel, g, ready, acceptDone := s.listener, s.cancel, s.workers, s.ready, s.acceptDone
	s.mu.Unlock()

	_ = ln.Close()
	cancel()
	<-acceptDone

	s.mu.Lock()
	past := time.Now().Add(-time.Second)
	for sess := range s.sessions {
		_ = sess.conn.SetReadDeadline(past)
	}
	s.mu.Unlock()

	_ = g.Wait()
	s.waiters.Wait()

drain:
	for {
		select {
		case sess := <-ready:
			s.closeSession(sess)
		default:
			break drain
		}
	}

	s.mu.Lock()
	leftover := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		leftover = append(leftover, sess)
	}
	s.listener = nil
	s.mu.Unlock()
	for _, sess := range leftover {
		s.closeSession(sess)
	}

	s.logger.Info("media server stopped")
}

func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Addr returns the bound listener address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || !s.running.Load() {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, ready chan<- *session, limiter *rate.Limiter) {
	var backoff time.Duration
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.logger.Warn("accept failed",
				slog.String("error", err.Error()),
				slog.Duration("retryIn", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		backoff = 0

		sess := newSession(conn)
		sess.in.touch = func() { s.armIdleDeadline(sess) }
		if !s.track(sess) {
			sess.close()
			return
		}
		metrics.ConnectionsTotal.Inc()
		metrics.ActiveConnections.Inc()
		s.logger.Debug("connection accepted",
			slog.String("sessionId", sess.id),
			slog.String("clientIP", clientIP(sess.remote)),
		)
		s.awaitReadable(ctx, sess, ready)
	}
}

func (s *Server) worker(ctx context.Context, ready chan *session) {
	for {
		select {
		case <-ctx.Done():
			return
		case sess := <-ready:
			s.serve(ctx, sess, ready)
		}
	}
}

// serve runs one request cycle for sess on the calling worker, then either
// hands the session back to a readiness waiter or closes it.
func (s *Server) serve(ctx context.Context, sess *session, ready chan<- *session) {
	metrics.WorkersBusy.Inc()
	defer metrics.WorkersBusy.Dec()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.SessionErrorsTotal.WithLabelValues("panic").Inc()
			s.logger.Error("panic recovered",
				slog.Any("error", rec),
				slog.String("sessionId", sess.id),
				slog.String("state", sess.state.String()),
				slog.String("stack", string(debug.Stack())),
			)
			s.closeSession(sess)
		}
	}()

	s.cycle(ctx, sess)
	if sess.state == stateReading && s.running.Load() {
		s.awaitReadable(ctx, sess, ready)
		return
	}
	s.closeSession(sess)
}

// awaitReadable parks sess outside the worker pool until it has inbound
// bytes, then enqueues it. Idle and broken connections are closed here.
func (s *Server) awaitReadable(ctx context.Context, sess *session, ready chan<- *session) {
	s.waiters.Add(1)
	go func() {
		defer s.waiters.Done()

		if !s.armIdleDeadline(sess) {
			s.closeSession(sess)
			return
		}
		sess.in.limit(headerReadLimit)
		if _, err := sess.br.Peek(1); err != nil {
			s.idleFailed(sess, err)
			s.closeSession(sess)
			return
		}

		select {
		case ready <- sess:
		case <-ctx.Done():
			s.closeSession(sess)
		}
	}()
}

// armIdleDeadline sets the idle read deadline unless shutdown has begun.
// It runs before a session waits for input and again after every read that
// returns bytes, so the limit counts from the last successful read. Holding
// mu orders it against the wake-up deadline Stop applies.
func (s *Server) armIdleDeadline(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	var deadline time.Time
	if s.idleTimeout > 0 {
		deadline = time.Now().Add(s.idleTimeout)
	}
	_ = sess.conn.SetReadDeadline(deadline)
	return true
}

func (s *Server) idleFailed(sess *session, err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Debug("client closed connection",
			slog.String("sessionId", sess.id),
			slog.Int("requests", sess.requests),
		)
	case !s.running.Load():
		s.logger.Debug("idle session closed by shutdown", slog.String("sessionId", sess.id))
	case errors.Is(err, os.ErrDeadlineExceeded):
		metrics.SessionErrorsTotal.WithLabelValues("idle").Inc()
		s.logger.Warn("idle timeout exceeded",
			slog.String("sessionId", sess.id),
			slog.String("clientIP", clientIP(sess.remote)),
			slog.Duration("idleTimeout", s.idleTimeout),
		)
	default:
		metrics.SessionErrorsTotal.WithLabelValues("read").Inc()
		s.logger.Warn("connection read failed",
			slog.String("sessionId", sess.id),
			slog.String("clientIP", clientIP(sess.remote)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) track(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.sessions[sess] = struct{}{}
	return true
}

// closeSession releases sess exactly once.
func (s *Server) closeSession(sess *session) {
	s.mu.Lock()
	_, ok := s.sessions[sess]
	delete(s.sessions, sess)
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.close()
	metrics.ActiveConnections.Dec()
	s.logger.Debug("connection closed",
		slog.String("sessionId", sess.id),
		slog.Int("requests", sess.requests),
		slog.Duration("lifetime", time.Since(sess.opened)),
	)
}
