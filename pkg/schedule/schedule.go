package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"booth-camera/pkg/utils"
)

// Pruner removes captures older than a given age.
type Pruner interface {
	RemoveOlderThan(age time.Duration) (int, error)
}

// Sweeper periodically prunes old captures so the kiosk disk does not fill
// up between maintenance visits.
type Sweeper struct {
	t      *time.Ticker
	pruner Pruner
	lock   sync.Mutex
	maxAge time.Duration
	logger *zap.SugaredLogger
	done   chan struct{}
}

func New(ctx context.Context, pruner Pruner) *Sweeper {
	t := time.NewTicker(time.Second)
	t.Stop()

	s := &Sweeper{
		t:      t,
		pruner: pruner,
		logger: utils.GetLogger().Named("sweeper"),
		done:   make(chan struct{}),
	}
	s.startDeal(ctx)

	return s
}

// Begin sweeps every interval, removing files older than maxAge. A zero
// maxAge stops sweeping.
func (s *Sweeper) Begin(interval, maxAge time.Duration) {
	if maxAge <= 0 || interval <= 0 {
		s.Stop()
		return
	}
	s.lock.Lock()
	s.maxAge = maxAge
	s.lock.Unlock()
	s.t.Reset(interval)
	s.logger.Infof("sweeper: every %s, keeping %s", interval, maxAge)
}

func (s *Sweeper) Stop() {
	s.t.Stop()
	s.lock.Lock()
	s.maxAge = 0
	s.lock.Unlock()
	s.logger.Info("sweeper: stopped")
}

// Sweep runs one pass now.
func (s *Sweeper) Sweep() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.maxAge <= 0 {
		return 0, nil
	}
	start := time.Now()
	n, err := s.pruner.RemoveOlderThan(s.maxAge)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.logger.Infof("sweeper: removed %d files in %s", n, time.Since(start))
	}

	return n, nil
}

// Done is closed once the sweeper goroutine exited.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done
}

func (s *Sweeper) startDeal(ctx context.Context) {
	go func(s *Sweeper) {
		defer close(s.done)
		for {
			select {
			case start := <-s.t.C:
				s.logger.Debugf("sweeper: starting deal: %v", start)
				if _, err := s.Sweep(); err != nil {
					s.logger.Errorf("sweeper: %s", err)
				}
			case <-ctx.Done():
				s.t.Stop()
				s.logger.Info("sweeper: stopped!")
				return
			}
		}
	}(s)
}
