package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RogueTeam/ilpgateway/sessions"
	"github.com/RogueTeam/ilpgateway/utils"
)

const MaxConcurrentJobs = 1_000

// Sweep deletes every session past its TTL or its post completion grace,
// whatever its status. Returns how many sessions were removed
func (c *Controller) Sweep(ctx context.Context) (removed int, err error) {
	now := c.now()

	stream, errChan := c.store.Stream(ctx)
	defer utils.ConsumeChannel(stream)

	var (
		count int64
		jobs  = utils.NewJobPool(MaxConcurrentJobs)
		wg    sync.WaitGroup
	)
	for session := range stream {
		if !session.Expired(now, c.ttl) {
			continue
		}

		jobs.Get()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer jobs.Put()

			err := c.store.Delete(ctx, session.Id)
			switch {
			case err == nil:
				atomic.AddInt64(&count, 1)
			case errors.Is(err, sessions.ErrNotFound):
			default:
				log.Println("ERROR|SWEEPING|SESSION", session.Id, err)
			}
		}()
	}
	wg.Wait()

	err = <-errChan
	if err != nil {
		return int(count), fmt.Errorf("failed to stream sessions: %w", err)
	}
	return int(count), nil
}

// Sweeper runs Sweep every interval until ctx is done
func (c *Controller) Sweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.Sweep(ctx)
			if err != nil {
				log.Println("ERROR|SWEEPING|SESSIONS", err)
				continue
			}
			log.Println("INFO|SWEPT|SESSIONS", removed)
		}
	}
}
