package recording

import (
	"context"
	"io"
	"time"
)

// Format describes the PCM stream produced by a Capture: signed 16-bit
// little-endian samples.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond is the size of one second of audio in this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Capture opens the microphone. A failed Start means no recording at all.
type Capture interface {
	Start(ctx context.Context, f Format) (Stream, error)
}

// Stream yields raw PCM until Stop is called, after which Read returns
// io.EOF once buffered data is drained.
type Stream interface {
	io.Reader
	Stop() error
}

// KeepAlive keeps the machine awake while recording. The returned release
// func must be safe to call once.
type KeepAlive interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Refresher renews the access credential; used by the long-recording
// heartbeat.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
