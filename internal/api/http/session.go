package apihttp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"videostream/internal/metrics"
)

type sessionState int

const (
	stateReading sessionState = iota
	stateRouting
	stateResponding
	stateClosing
)

func (s sessionState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case stateRouting:
		return "routing"
	case stateResponding:
		return "responding"
	case stateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// maxDrainBytes bounds how much of an unread request body is discarded to
// keep a connection reusable.
const maxDrainBytes = 256 << 10

// Bounds on the read-side linger after rejecting a request head.
const (
	lingerTimeout  = 500 * time.Millisecond
	maxLingerBytes = 8 << 20
)

// session is the per-connection state. At most one goroutine touches it at
// a time: either its readiness waiter or the worker serving a cycle.
type session struct {
	id       string
	conn     net.Conn
	in       *connReader
	br       *bufio.Reader
	bw       *bufio.Writer
	remote   string
	state    sessionState
	requests int
	opened   time.Time
}

func newSession(conn net.Conn) *session {
	in := &connReader{conn: conn}
	return &session{
		id:     uuid.NewString(),
		conn:   conn,
		in:     in,
		br:     bufio.NewReader(in),
		bw:     bufio.NewWriterSize(conn, 32<<10),
		remote: conn.RemoteAddr().String(),
		state:  stateReading,
		opened: time.Now(),
	}
}

// cycle runs one Reading → Routing → Responding pass and leaves the session
// in Reading (keep-alive) or Closing.
func (s *Server) cycle(ctx context.Context, sess *session) {
	sess.state = stateReading
	req, err := http.ReadRequest(sess.br)
	if err != nil {
		if errors.Is(err, errHeaderTooLarge) {
			s.rejectOversizedHeader(sess)
		} else {
			s.readFailed(sess, err)
		}
		sess.state = stateClosing
		return
	}
	sess.in.unlimit()
	sess.requests++

	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(req.Header))
	ctx, span := s.tracer.Start(ctx, "media.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("session.id", sess.id),
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.RequestURI),
			attribute.String("client.address", sess.remote),
		),
	)
	defer span.End()

	started := time.Now()
	sess.state = stateRouting
	resp, route := s.route(ctx, sess, req)
	defer resp.close()

	sess.state = stateResponding
	keepAlive := !req.Close && s.running.Load()
	written, err := s.respond(sess, req, resp, keepAlive)
	duration := time.Since(started)

	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.status),
		attribute.Int64("http.response.body.size", resp.length),
	)
	metrics.HTTPRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(resp.status)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(duration.Seconds())

	s.logger.LogAttrs(ctx, pickRequestLogLevel(resp.status), "http request",
		slog.String("sessionId", sess.id),
		slog.String("method", req.Method),
		slog.String("target", truncate(req.RequestURI, 180)),
		slog.Int("status", resp.status),
		slog.Int64("bytes", written),
		slog.Int64("durationMs", duration.Milliseconds()),
		slog.String("clientIP", clientIP(sess.remote)),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.SessionErrorsTotal.WithLabelValues("write").Inc()
		if !isPeerGone(err) {
			s.logger.Warn("response write failed",
				slog.String("sessionId", sess.id),
				slog.String("error", err.Error()),
			)
		}
		sess.state = stateClosing
		return
	}

	if !keepAlive || !drainBody(req) {
		sess.state = stateClosing
		return
	}
	sess.state = stateReading
}

func (s *Server) respond(sess *session, req *http.Request, resp *response, keepAlive bool) (int64, error) {
	cw := &countingWriter{w: sess.bw}
	if err := resp.toHTTP(req, keepAlive).Write(cw); err != nil {
		return cw.n, err
	}
	if err := sess.bw.Flush(); err != nil {
		return cw.n, err
	}
	if resp.closer != nil && resp.length > 0 {
		metrics.BytesServedTotal.Add(float64(resp.length))
	}
	return cw.n, nil
}

func (s *Server) readFailed(sess *session, err error) {
	switch {
	case errors.Is(err, io.EOF) && sess.br.Buffered() == 0:
		s.logger.Debug("client closed connection",
			slog.String("sessionId", sess.id),
			slog.Int("requests", sess.requests),
		)
	case !s.running.Load():
		s.logger.Debug("session read aborted by shutdown", slog.String("sessionId", sess.id))
	default:
		metrics.SessionErrorsTotal.WithLabelValues("read").Inc()
		s.logger.Warn("request read failed",
			slog.String("sessionId", sess.id),
			slog.String("clientIP", clientIP(sess.remote)),
			slog.String("error", err.Error()),
		)
	}
}

// rejectOversizedHeader answers 431 and keeps reading for a short while
// after the send-side shutdown, so the peer receives the response rather
// than a reset caused by its own unread upload.
func (s *Server) rejectOversizedHeader(sess *session) {
	metrics.SessionErrorsTotal.WithLabelValues("header").Inc()
	metrics.HTTPRequestsTotal.WithLabelValues("unknown", "/other", strconv.Itoa(http.StatusRequestHeaderFieldsTooLarge)).Inc()
	s.logger.Warn("request header too large",
		slog.String("sessionId", sess.id),
		slog.String("clientIP", clientIP(sess.remote)),
		slog.Int("limitBytes", maxHeaderBytes),
	)

	resp := textResponse(http.StatusRequestHeaderFieldsTooLarge, "Request Header Fields Too Large")
	if _, err := s.respond(sess, nil, resp, false); err != nil {
		return
	}
	if cw, ok := sess.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = sess.conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(sess.conn, maxLingerBytes))
}

// close performs a send-side shutdown before releasing the socket so the
// peer sees a clean end of stream after the last response.
func (sess *session) close() {
	sess.state = stateClosing
	_ = sess.bw.Flush()
	if cw, ok := sess.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = sess.conn.Close()
}

// drainBody discards what is left of the request body. It reports false
// when the body is too large or broken to keep the connection.
func drainBody(req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return true
	}
	defer req.Body.Close()
	n, err := io.Copy(io.Discard, io.LimitReader(req.Body, maxDrainBytes+1))
	return err == nil && n <= maxDrainBytes
}

func isPeerGone(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "write"
	}
	return false
}

func pickRequestLogLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err == nil && host != "" {
		return host
	}
	return remote
}

func truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
