package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/sessions"
)

// Report is the public projection of a session
type Report struct {
	SessionId        string
	Status           sessions.Status
	Amount           uint64
	ReceivingWallet  string
	DebitAmount      openpayments.Amount
	AuthorizationUrl string
	CreatedAt        time.Time
	CompletedAt      *time.Time
	Error            string
}

// Status queries a session by its id. Expired sessions are reported as not found
func (c *Controller) Status(ctx context.Context, id string) (report Report, err error) {
	session, err := c.store.Get(ctx, id)
	if err != nil {
		return report, fmt.Errorf("failed to query session: %w", err)
	}
	if session.Expired(c.now(), c.ttl) {
		return report, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	report = Report{
		SessionId:       session.Id,
		Status:          session.Status,
		Amount:          session.Amount,
		ReceivingWallet: session.ReceivingWalletUrl,
		DebitAmount:     session.Quote.DebitAmount,
		CreatedAt:       session.CreatedAt,
		Error:           session.LastError,
	}
	if session.Status == sessions.StatusPendingAuthorization {
		report.AuthorizationUrl = session.OutgoingGrant.RedirectUrl
	}
	if !session.CompletedAt.IsZero() {
		completedAt := session.CompletedAt
		report.CompletedAt = &completedAt
	}
	return report, nil
}
