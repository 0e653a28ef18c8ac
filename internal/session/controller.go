package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	"github.com/GriffinCanCode/vadrec/internal/clock"
	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
	"github.com/GriffinCanCode/vadrec/internal/exchange"
	"github.com/GriffinCanCode/vadrec/internal/metrics"
	"github.com/GriffinCanCode/vadrec/internal/syncx"
	"github.com/GriffinCanCode/vadrec/internal/trace"
	"github.com/GriffinCanCode/vadrec/internal/vad"
)

// Config tunes a Controller.
type Config struct {
	Thresholds vad.Thresholds
	// ExchangeTimeout bounds one transcription call. 0 leaves it to the backend.
	ExchangeTimeout time.Duration
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithMetrics records session metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithObserver sets the event sink.
func WithObserver(o Observer) Option {
	return func(ctl *Controller) {
		if o != nil {
			ctl.observer = o
		}
	}
}

// Controller is the session state machine. Its mutex is the single logical
// control thread: ticks, transitions and exchange completions all run under
// it, one at a time.
type Controller struct {
	cfg      Config
	clock    clock.Clock
	source   audio.Source
	exchange exchange.Exchanger
	observer Observer
	metrics  *metrics.Metrics

	mu       sync.Mutex
	state    State
	run      *run
	text     string
	errMsg   string
	errCode  apperrors.Code
	artifact *audio.Artifact
	closed   bool

	snap   *syncx.Versioned[Snapshot]
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// run is the state scoped to one session, created at Start.
type run struct {
	id       string
	ctx      context.Context
	span     *trace.Span
	started  time.Time
	device   string
	speaking bool
	res      Resources
	cancel   context.CancelFunc // in-flight exchange
}

// New builds an idle controller.
func New(cfg Config, src audio.Source, ex exchange.Exchanger, opts ...Option) *Controller {
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:      cfg,
		clock:    clock.Real{},
		source:   src,
		exchange: ex,
		observer: nopObserver{},
		snap:     syncx.NewVersioned(Snapshot{Status: Idle}),
		base:     base,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetState(Idle.String(), StateNames()...)
	return c
}

// Snapshot returns the latest published state without taking the controller lock.
func (c *Controller) Snapshot() Snapshot {
	return c.snap.Get()
}

// WaitSnapshot blocks until a snapshot newer than version after is
// published. Versions start at 1, so after 0 returns at once.
func (c *Controller) WaitSnapshot(ctx context.Context, after uint64) (Snapshot, uint64, error) {
	return c.snap.Wait(ctx, after)
}

// Start begins a session. It reports false when a session is already active,
// the controller is closed, or the microphone could not be acquired; in the
// last case the snapshot carries the error.
func (c *Controller) Start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state != Idle {
		return false
	}

	c.text, c.errMsg, c.errCode = "", "", apperrors.CodeUnknown
	c.dropArtifactLocked()
	c.emitLocked(Event{Kind: EventReset})

	ctx, span := trace.StartSpan(context.WithoutCancel(ctx), "session")
	id := uuid.NewString()
	span.SetAttr("session_id", id)
	log := trace.Logger(ctx).With("session_id", id)

	stream, err := c.source.Acquire(ctx)
	if err != nil {
		log.Warn("microphone acquisition failed", "error", err)
		c.errMsg, c.errCode = GenericMessage, apperrors.CodeCaptureFailed
		outcome := outcomeCaptureFailed
		if apperrors.IsCode(err, apperrors.CodeMicUnavailable) {
			c.errMsg, c.errCode = PermissionMessage, apperrors.CodeMicUnavailable
			outcome = outcomeMicUnavailable
		}
		c.metrics.RecordOutcome(outcome)
		c.emitLocked(Event{Kind: EventError, SessionID: id, Error: c.errMsg})
		span.SetAttr("outcome", outcome)
		span.End()
		return false
	}

	now := c.clock.Now()
	r := &run{
		id:      id,
		ctx:     ctx,
		span:    span,
		started: now,
		device:  stream.Config().Device,
	}
	r.res = Resources{
		recorder: stream.Record(),
		detector: vad.NewDetector(c.cfg.Thresholds, stream.Analyser(), now),
		stream:   stream,
	}
	interval := r.res.detector.Thresholds().TickInterval
	r.res.loop = vad.NewLoop(c.clock, interval, &c.mu, func() bool { return c.tickLocked(r) })

	c.run = r
	c.setStateLocked(Recording)
	c.metrics.RecordSessionStarted()
	log.Info("recording started", "device", r.device)
	c.emitLocked(Event{Kind: EventStatus})

	r.res.loop.Start()
	return true
}

// Stop ends recording and submits the artifact. It is a no-op outside
// Recording and reports whether it did anything.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Recording {
		return false
	}
	c.stopLocked("manual")
	return true
}

// Close tears down any live session, cancels an in-flight exchange whose
// result will then be discarded, removes the last artifact and waits for
// background work. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if r := c.run; r != nil {
		if r.cancel != nil {
			r.cancel()
		}
		trace.Logger(r.ctx).Info("session closed", "session_id", r.id, "state", c.state.String())
		c.metrics.RecordOutcome(outcomeClosed)
		c.finishLocked(r, outcomeClosed)
	}
	c.dropArtifactLocked()
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
}

// tickLocked is one level monitor step. It returns false to end the loop.
func (c *Controller) tickLocked(r *run) bool {
	if c.run != r || c.state != Recording || r.res.detector == nil {
		return false
	}

	reading, ok := r.res.detector.Tick(c.clock.Now())
	if !ok {
		return false
	}
	c.metrics.RecordTick(reading.RMS, reading.Speaking)

	r.speaking = reading.Speaking
	c.emitLocked(Event{Kind: EventSpeaking, Speaking: reading.Speaking, RMS: reading.RMS})

	if reading.TimedOut {
		trace.Logger(r.ctx).Info("silence timeout", "session_id", r.id, "silence", reading.Silence)
		c.metrics.RecordSilenceTimeout()
		c.stopLocked("silence")
		return false
	}
	return true
}

// stopLocked moves Recording -> Processing, finalizes the artifact and
// submits it. The caller has checked the state.
func (c *Controller) stopLocked(reason string) {
	r := c.run
	log := trace.Logger(r.ctx).With("session_id", r.id)

	r.res.StopSampling()
	r.speaking = false
	rec := r.res.recorder
	r.res.recorder = nil

	c.setStateLocked(Processing)
	r.span.SetAttr("stop_reason", reason)
	c.emitLocked(Event{Kind: EventStatus})

	art, err := rec.Finalize()
	if err != nil {
		log.Error("finalizing recording", "error", err)
		c.errMsg, c.errCode = GenericMessage, apperrors.CodeCaptureFailed
		c.metrics.RecordOutcome(outcomeCaptureFailed)
		c.emitLocked(Event{Kind: EventError, Error: c.errMsg})
		c.finishLocked(r, outcomeCaptureFailed)
		return
	}

	c.artifact = &art
	c.metrics.RecordArtifact(art.Duration.Seconds(), len(art.Data))
	log.Info("recording finalized", "reason", reason, "chunks", art.Chunks, "duration", art.Duration)
	c.emitLocked(Event{Kind: EventRecording, Recording: recordingOf(&art)})

	ctx, cancel := context.WithCancel(c.base)
	ctx = trace.WithContext(ctx, r.span.Ctx)
	if c.cfg.ExchangeTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.cfg.ExchangeTimeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}
	r.cancel = cancel

	c.wg.Add(1)
	go c.submit(ctx, r, art)
}

// submit is the only suspension point: it calls the exchange off-lock and
// re-enters to apply the result.
func (c *Controller) submit(ctx context.Context, r *run, art audio.Artifact) {
	defer c.wg.Done()

	res, err := c.exchange.Transcribe(ctx, art)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.completeLocked(r, res, err)
}

func (c *Controller) completeLocked(r *run, res exchange.Result, err error) {
	log := trace.Logger(r.ctx).With("session_id", r.id)
	if c.run != r || c.state != Processing {
		log.Debug("discarding stale transcription result")
		return
	}
	if r.cancel != nil {
		r.cancel()
	}

	if err != nil {
		msg := apperrors.Message(err)
		if msg == "" {
			msg = GenericMessage
		}
		log.Warn("transcription failed", "error", err)
		c.errMsg, c.errCode = msg, apperrors.CodeOf(err)
		if c.errCode == apperrors.CodeUnknown {
			c.errCode = apperrors.CodeExchangeFailed
		}
		c.metrics.RecordOutcome(outcomeExchangeFailed)
		c.emitLocked(Event{Kind: EventError, Error: msg})
		c.finishLocked(r, outcomeExchangeFailed)
		return
	}

	c.text = res.Text
	c.metrics.RecordOutcome(outcomeSuccess)
	log.Info("transcription complete", "chars", len(res.Text))
	c.emitLocked(Event{Kind: EventTranscript, Text: res.Text})
	c.finishLocked(r, outcomeSuccess)
}

// finishLocked releases every session resource and returns to Idle.
func (c *Controller) finishLocked(r *run, outcome string) {
	r.res.Release()
	r.speaking = false
	c.setStateLocked(Idle)
	c.emitLocked(Event{Kind: EventStatus, SessionID: r.id})
	c.run = nil

	r.span.SetAttr("outcome", outcome)
	r.span.End()
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	c.metrics.SetState(s.String(), StateNames()...)
}

// dropArtifactLocked forgets and deletes the previous recording.
func (c *Controller) dropArtifactLocked() {
	if c.artifact == nil {
		return
	}
	if err := c.artifact.Remove(); err != nil {
		trace.Logger(c.base).Warn("removing previous recording", "path", c.artifact.Path, "error", err)
	}
	c.artifact = nil
}

// emitLocked publishes a snapshot and notifies the observer.
func (c *Controller) emitLocked(e Event) {
	snap := c.snapshotLocked()
	c.snap.Store(snap)

	if e.SessionID == "" {
		e.SessionID = snap.SessionID
	}
	e.Status = c.state
	e.Time = c.clock.Now()
	c.observer.Notify(e)
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:    c.state,
		Text:      c.text,
		Error:     c.errMsg,
		ErrorCode: c.errCode,
		Recording: recordingOf(c.artifact),
	}
	if r := c.run; r != nil {
		s.SessionID = r.id
		s.Speaking = r.speaking
		s.StartedAt = r.started
		s.Device = r.device
	}
	return s
}

func recordingOf(art *audio.Artifact) *RecordingInfo {
	if art == nil {
		return nil
	}
	return &RecordingInfo{
		ID:         art.ID,
		MIMEType:   art.MIMEType,
		Size:       len(art.Data),
		Chunks:     art.Chunks,
		DurationMS: art.Duration.Milliseconds(),
		Path:       art.Path,
	}
}
