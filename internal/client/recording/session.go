// Package recording captures an encounter from the microphone.
//
// A Session moves idle → recording → idle. While recording it runs a
// one-second duration ticker, buffers audio in one-second chunks, holds a
// best-effort keepalive and refreshes the credential on a long heartbeat so
// a long encounter does not end with a dead session.
package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyRecording   = errors.New("a recording is already in progress")
	ErrNotRecording       = errors.New("no recording in progress")
	ErrCaptureUnavailable = errors.New("microphone unavailable")
	ErrCaptureFailed      = errors.New("microphone capture failed")

	errStreamEnded = errors.New("capture stream ended while recording")
)

const (
	DefaultMaxDuration       = 40 * time.Minute
	DefaultHeartbeatInterval = 60 * time.Minute
	tick                     = time.Second
)

var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

type State int

const (
	StateIdle State = iota
	StateRecording
	stateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case stateStopping:
		return "stopping"
	}
	return "unknown"
}

// Recording is the finished capture: a complete WAV file in memory.
type Recording struct {
	Audio       []byte
	Duration    time.Duration
	StartedAt   time.Time
	AutoStopped bool
}

// WriteFile saves the WAV data, creating or truncating path.
func (r Recording) WriteFile(path string) error {
	if err := os.WriteFile(path, r.Audio, 0o600); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

type Config struct {
	MaxDuration       time.Duration
	HeartbeatInterval time.Duration
	Format            Format
}

type Session struct {
	capture   Capture
	keepalive KeepAlive
	refresher Refresher
	clock     Clock
	logger    logging.Logger
	cfg       Config

	onTick     func(elapsed time.Duration)
	onAutoStop func(Recording, error)

	mu        sync.Mutex
	state     State
	elapsed   int
	chunks    [][]byte
	startedAt time.Time
	stream    Stream
	release   func()
	cancel    context.CancelFunc
	group     *errgroup.Group
	autoStop  bool
}

type Option func(*Session)

func WithClock(c Clock) Option { return func(s *Session) { s.clock = c } }

func WithLogger(l logging.Logger) Option { return func(s *Session) { s.logger = l } }

func WithKeepAlive(k KeepAlive) Option { return func(s *Session) { s.keepalive = k } }

// WithRefresher enables the credential heartbeat.
func WithRefresher(r Refresher) Option { return func(s *Session) { s.refresher = r } }

// OnTick is called once per elapsed second with the running duration.
func OnTick(fn func(elapsed time.Duration)) Option { return func(s *Session) { s.onTick = fn } }

// OnAutoStop receives recordings the session ended on its own: the
// duration cap was reached, or capture failed (err set).
func OnAutoStop(fn func(Recording, error)) Option { return func(s *Session) { s.onAutoStop = fn } }

func NewSession(capture Capture, cfg Config, opts ...Option) *Session {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Format.SampleRate <= 0 || cfg.Format.Channels <= 0 {
		cfg.Format = DefaultFormat
	}

	s := &Session{
		capture:   capture,
		keepalive: NopKeepAlive{},
		clock:     realClock{},
		logger:    logging.NewNop(),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.elapsed) * tick
}

// Start opens the microphone and begins buffering. If the device cannot
// be opened the session stays idle and nothing else is started.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyRecording
	}

	stream, err := s.capture.Start(ctx, s.cfg.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	release, err := s.keepalive.Acquire(ctx)
	if err != nil {
		s.logger.Warn(ctx, "keepalive unavailable, recording anyway", "error", err)
		release = nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)

	s.state = StateRecording
	s.elapsed = 0
	s.chunks = nil
	s.startedAt = s.clock.Now()
	s.stream = stream
	s.release = release
	s.cancel = cancel
	s.group = g
	s.autoStop = false

	maxTicks := int(s.cfg.MaxDuration / tick)
	durationTicker := s.clock.NewTicker(tick)

	g.Go(func() error { return s.readLoop(gctx, stream) })
	g.Go(func() error { return s.tickLoop(gctx, durationTicker, maxTicks) })
	if s.refresher != nil {
		heartbeat := s.clock.NewTicker(s.cfg.HeartbeatInterval)
		g.Go(func() error { return s.heartbeatLoop(gctx, heartbeat) })
	}

	s.logger.Info(ctx, "recording started", "max_duration", s.cfg.MaxDuration)
	return nil
}

// Stop ends the recording: timers are cancelled, the device is stopped,
// the keepalive is released and the buffered chunks become one WAV file.
func (s *Session) Stop(ctx context.Context) (Recording, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return Recording{}, ErrNotRecording
	}
	s.state = stateStopping
	stream, release, cancel, g := s.stream, s.release, s.cancel, s.group
	s.mu.Unlock()

	cancel()
	stopErr := stream.Stop()
	waitErr := g.Wait()
	if release != nil {
		release()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Recording{
		Audio:       encodeWAV(s.chunks, s.cfg.Format),
		Duration:    time.Duration(s.elapsed) * tick,
		StartedAt:   s.startedAt,
		AutoStopped: s.autoStop,
	}
	s.state = StateIdle
	s.chunks = nil
	s.stream, s.release, s.cancel, s.group = nil, nil, nil, nil

	if waitErr != nil {
		s.logger.Error(ctx, "recording aborted", "error", waitErr)
		return Recording{}, fmt.Errorf("%w: %w", ErrCaptureFailed, waitErr)
	}
	if stopErr != nil {
		s.logger.Warn(ctx, "capture device did not stop cleanly", "error", stopErr)
	}

	s.logger.Info(ctx, "recording stopped", "duration", rec.Duration, "bytes", len(rec.Audio), "auto", rec.AutoStopped)
	return rec, nil
}

func (s *Session) readLoop(ctx context.Context, stream Stream) error {
	size := s.cfg.Format.BytesPerSecond()
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(stream, buf)
		if n > 0 {
			s.mu.Lock()
			s.chunks = append(s.chunks, buf[:n])
			s.mu.Unlock()
		}

		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			// stopping closed the device under us
			return nil
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			// the device went away or ffmpeg exited on its own
			go s.stopOnOwn(errStreamEnded)
			return errStreamEnded
		default:
			go s.stopOnOwn(err)
			return err
		}
	}
}

func (s *Session) tickLoop(ctx context.Context, t Ticker, maxTicks int) error {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
		}

		s.mu.Lock()
		s.elapsed++
		elapsed := s.elapsed
		s.mu.Unlock()

		if s.onTick != nil {
			s.onTick(time.Duration(elapsed) * tick)
		}
		if elapsed >= maxTicks {
			s.mu.Lock()
			s.autoStop = true
			s.mu.Unlock()
			go s.stopOnOwn(nil)
			return nil
		}
	}
}

func (s *Session) heartbeatLoop(ctx context.Context, t Ticker) error {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
		}
		if _, err := s.refresher.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn(ctx, "credential heartbeat failed", "error", err)
			continue
		}
		s.logger.Debug(ctx, "credential refreshed during recording")
	}
}

// stopOnOwn finishes a recording the user did not stop. If the user got
// there first, Stop reports ErrNotRecording and nothing is delivered.
func (s *Session) stopOnOwn(cause error) {
	rec, err := s.Stop(context.Background())
	if errors.Is(err, ErrNotRecording) {
		return
	}
	if err == nil && cause != nil {
		err = cause
	}
	if s.onAutoStop != nil {
		s.onAutoStop(rec, err)
	}
}
