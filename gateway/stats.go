package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/RogueTeam/ilpgateway/sessions"
	"github.com/RogueTeam/ilpgateway/utils"
)

type Stats struct {
	// Live sessions
	Total int
	// Sessions waiting for authorization or being completed
	Active   int
	ByStatus map[sessions.Status]int
	// Creation time of the oldest live session
	Oldest time.Time
	Uptime time.Duration
}

// Stats counts the live sessions. Expired sessions are ignored
func (c *Controller) Stats(ctx context.Context) (stats Stats, err error) {
	now := c.now()

	stream, errChan := c.store.Stream(ctx)
	defer utils.ConsumeChannel(stream)

	stats.ByStatus = make(map[sessions.Status]int, len(sessions.Statuses))
	for _, status := range sessions.Statuses {
		stats.ByStatus[status] = 0
	}
	for session := range stream {
		if session.Expired(now, c.ttl) {
			continue
		}

		stats.Total++
		stats.ByStatus[session.Status]++
		if !session.Status.Final() {
			stats.Active++
		}
		if stats.Oldest.IsZero() || session.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = session.CreatedAt
		}
	}

	err = <-errChan
	if err != nil {
		return stats, fmt.Errorf("failed to stream sessions: %w", err)
	}
	stats.Uptime = now.Sub(c.started)
	return stats, nil
}
