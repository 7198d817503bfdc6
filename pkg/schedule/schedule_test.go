package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPruner struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (p *countingPruner) RemoveOlderThan(age time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, age)
	return 1, p.err
}

func (p *countingPruner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestSweeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &countingPruner{}
	s := New(ctx, p)

	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, p.count())

	s.Begin(10*time.Millisecond, time.Hour)
	require.Eventually(t, func() bool { return p.count() >= 2 }, time.Second, 5*time.Millisecond)
	p.mu.Lock()
	assert.Equal(t, time.Hour, p.calls[0])
	p.mu.Unlock()

	s.Stop()
	n, err = s.Sweep()
	require.NoError(t, err)
	assert.Zero(t, n)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &countingPruner{err: errors.New("read-only file system")}
	s := New(ctx, p)
	s.Begin(time.Hour, time.Minute)

	_, err := s.Sweep()
	assert.Error(t, err)
}
