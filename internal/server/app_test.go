package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpiredTokens(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestPurgeLoop(t *testing.T) {
	for _, purgeErr := range []error{nil, errors.New("db down")} {
		p := &countingPurger{err: purgeErr}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			purgeLoop(ctx, p, 5*time.Millisecond, logging.NewNop())
			close(done)
		}()

		require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("purgeLoop did not stop")
		}
		assert.GreaterOrEqual(t, p.calls.Load(), int32(2))
	}
}
