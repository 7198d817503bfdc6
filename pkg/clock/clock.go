// Package clock corrects the local time with NTP. The kiosk boards have no
// RTC, so photo timestamps drift until the first successful sync.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"go.uber.org/zap"

	"booth-camera/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger().Named("clock")
}

const DefaultServer = "pool.ntp.org"

type Clock struct {
	server  string
	timeout time.Duration

	mu     sync.RWMutex
	offset time.Duration
	synced time.Time
}

func New(server string) *Clock {
	if server == "" {
		server = DefaultServer
	}
	return &Clock{server: server, timeout: 5 * time.Second}
}

// Now is the local time corrected by the last known offset.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Synced reports when the offset was last updated, zero if never.
func (c *Clock) Synced() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

func (c *Clock) Sync() error {
	resp, err := ntp.QueryWithOptions(c.server, ntp.QueryOptions{Timeout: c.timeout})
	if err != nil {
		return err
	}
	if err = resp.Validate(); err != nil {
		return err
	}
	c.set(resp.ClockOffset)
	logger.Infof("clock offset to %s is %s", c.server, resp.ClockOffset)

	return nil
}

func (c *Clock) set(offset time.Duration) {
	c.mu.Lock()
	c.offset = offset
	c.synced = time.Now()
	c.mu.Unlock()
}

// Run syncs now and then every interval until ctx is done. Failures keep
// the previous offset.
func (c *Clock) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := c.Sync(); err != nil {
			logger.Warnf("ntp sync with %s: %s", c.server, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
