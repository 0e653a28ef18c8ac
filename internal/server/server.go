package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
	"github.com/GriffinCanCode/vadrec/internal/metrics"
	"github.com/GriffinCanCode/vadrec/internal/session"
	"github.com/GriffinCanCode/vadrec/internal/trace"
	"github.com/GriffinCanCode/vadrec/internal/transcript"
)

// Controller is the part of the session controller the server drives.
type Controller interface {
	Start(ctx context.Context) bool
	Stop() bool
	Snapshot() session.Snapshot
	WaitSnapshot(ctx context.Context, after uint64) (session.Snapshot, uint64, error)
}

// Command is a client-to-server WebSocket message.
type Command struct {
	Type    string `json:"type"` // "start" or "stop"
	TraceID string `json:"trace_id,omitempty"`
}

type snapshotMessage struct {
	Type string `json:"type"`
	session.Snapshot
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Options configures a Server.
type Options struct {
	AllowedOrigins []string // "*" allows any origin
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer // nil disables /metrics
	History        *transcript.Store   // nil disables /api/transcripts
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	ctl      Controller
	hub      *Hub
	origins  []string
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	history  *transcript.Store
}

// New creates a server. The hub must also be registered as the
// controller's observer.
func New(ctl Controller, hub *Hub, opts Options) *Server {
	return &Server{
		ctl:      ctl,
		hub:      hub,
		origins:  opts.AllowedOrigins,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		history:  opts.History,
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/session/start", s.handleStart)
	mux.HandleFunc("POST /api/session/stop", s.handleStop)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("GET /api/recording", s.handleRecording)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.history != nil {
		mux.HandleFunc("GET /api/transcripts", s.handleTranscripts)
		mux.HandleFunc("DELETE /api/transcripts", s.handleClearTranscripts)
	}
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// cors -> trace -> metrics -> mux
	return corsMiddleware(s.origins, trace.Middleware(s.metricsMiddleware(mux)))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	log := trace.Logger(r.Context())
	if s.ctl.Start(r.Context()) {
		writeJSON(w, http.StatusOK, s.ctl.Snapshot())
		return
	}

	snap := s.ctl.Snapshot()
	switch {
	case snap.Status != session.Idle:
		writeJSON(w, http.StatusConflict, errorMessage{Type: "error", Error: "session already active"})
	case snap.Error != "":
		log.Warn("session start failed", "error", snap.Error)
		writeJSON(w, apperrors.New(snap.ErrorCode, snap.Error).HTTPStatus(), snap)
	default:
		writeJSON(w, http.StatusServiceUnavailable, errorMessage{Type: "error", Error: "session controller closed"})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.ctl.Stop() {
		writeJSON(w, http.StatusConflict, errorMessage{Type: "error", Error: "not recording"})
		return
	}
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}

// handleSession returns the current snapshot. With ?after=N it long-polls
// until a snapshot newer than version N is published.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorMessage{Type: "error", Error: "invalid after"})
			return
		}
		after = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), LongPollTimeout)
	defer cancel()

	// timing out just returns the current snapshot
	snap, ver, err := s.ctl.WaitSnapshot(ctx, after)
	if err != nil && r.Context().Err() != nil {
		return
	}
	w.Header().Set(VersionHeader, strconv.FormatUint(ver, 10))
	writeJSON(w, http.StatusOK, snap)
}

// handleRecording streams the last finalized artifact for playback.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	rec := s.ctl.Snapshot().Recording
	if rec == nil || rec.Path == "" {
		http.Error(w, "no recording", http.StatusNotFound)
		return
	}

	f, err := os.Open(rec.Path)
	if err != nil {
		// replaced by a newer session between snapshot and open
		http.Error(w, "no recording", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "recording unavailable", http.StatusInternalServerError)
		return
	}

	mime := rec.MIMEType
	if mime == "" {
		mime = audio.ArtifactMIMEType
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", strconv.Quote(rec.ID))
	http.ServeContent(w, r, RecordingFilename, info.ModTime(), f)
}

// handleTranscripts lists finished sessions, optionally since an RFC 3339 time.
func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorMessage{Type: "error", Error: "invalid since"})
			return
		}
		since = t
	}

	entries := s.history.Since(since)
	if entries == nil {
		entries = []transcript.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearTranscripts(w http.ResponseWriter, r *http.Request) {
	s.history.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.origins),
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	c := s.hub.register()
	defer s.hub.unregister(c)

	writeErr := make(chan error, 1)
	go func() { writeErr <- s.writeLoop(ctx, conn, c) }()

	if err := writeWithTimeout(ctx, conn, snapshotMessage{Type: "snapshot", Snapshot: s.ctl.Snapshot()}); err != nil {
		return
	}

	s.readLoop(ctx, conn, r.RemoteAddr)
	cancel()
	<-writeErr
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, remote string) {
	log := trace.Logger(ctx)
	rl := &rateLimiter{}

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				log.Debug("websocket read error", "error", err)
			}
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", remote)
			s.reply(ctx, conn, errorMessage{Type: "error", Error: "rate limit exceeded"})
			continue
		}

		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			s.reply(ctx, conn, errorMessage{Type: "error", Error: "invalid message"})
			continue
		}

		tc, _ := trace.ExtractFromJSON(msg)
		cmdCtx := trace.WithContext(ctx, tc)

		switch cmd.Type {
		case "start":
			if !s.ctl.Start(cmdCtx) && s.ctl.Snapshot().Status != session.Idle {
				s.reply(ctx, conn, errorMessage{Type: "error", Error: "session already active"})
			}
		case "stop":
			if !s.ctl.Stop() {
				s.reply(ctx, conn, errorMessage{Type: "error", Error: "not recording"})
			}
		case "snapshot":
			s.reply(ctx, conn, snapshotMessage{Type: "snapshot", Snapshot: s.ctl.Snapshot()})
		default:
			s.reply(ctx, conn, errorMessage{Type: "error", Error: "unknown command " + strconv.Quote(cmd.Type)})
		}
	}
}

// reply queues a direct response behind pending broadcasts.
func (s *Server) reply(ctx context.Context, conn *websocket.Conn, msg any) {
	if err := writeWithTimeout(ctx, conn, msg); err != nil {
		trace.Logger(ctx).Debug("websocket reply failed", "error", err)
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.send:
			if !ok {
				return nil
			}
			if err := writeWithTimeout(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func writeWithTimeout(ctx context.Context, conn *websocket.Conn, msg any) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+trace.TraceIDKey+", "+trace.SpanIDKey)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originPatterns converts allowed origins to the host patterns the
// WebSocket handshake checks.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the WebSocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status))
	})
}
