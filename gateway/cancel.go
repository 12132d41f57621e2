package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/RogueTeam/ilpgateway/sessions"
)

// Cancel abandons a session still waiting for authorization and removes it
func (c *Controller) Cancel(ctx context.Context, id string) (err error) {
	now := c.now()
	_, err = c.store.Update(ctx, id, func(s *sessions.Session) (err error) {
		if s.Expired(now, c.ttl) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if s.Status != sessions.StatusPendingAuthorization {
			return fmt.Errorf("%w: session is %s", ErrInvalidState, s.Status)
		}
		s.Status = sessions.StatusCancelled
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}

	err = c.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, sessions.ErrNotFound) {
		// The sweeper removes it later
		log.Println("ERROR|DELETING|SESSION", id, err)
	}
	log.Println("INFO|CANCELLED|SESSION", id)
	return nil
}
