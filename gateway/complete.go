package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/RogueTeam/ilpgateway/decimal"
	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/sessions"
	"github.com/RogueTeam/ilpgateway/utils"
)

type (
	Summary struct {
		Amount          uint64
		ReceivingWallet string
		DebitAmount     openpayments.Amount
		// Debit amount in major units. Example: 5.05
		FormattedDebit string
		CompletedAt    time.Time
	}
	Completed struct {
		SessionId       string
		Status          sessions.Status
		OutgoingPayment openpayments.OutgoingPayment
		Summary         Summary
	}
)

func formatAmount(amount openpayments.Amount) string {
	var d decimal.Decimal
	err := d.FromMinorString(amount.Value, amount.AssetScale)
	if err != nil {
		return amount.Value
	}
	return d.String()
}

// claim moves a pending session to completing. Only one caller succeeds
func (c *Controller) claim(ctx context.Context, id string) (session sessions.Session, err error) {
	now := c.now()
	return c.store.Update(ctx, id, func(s *sessions.Session) (err error) {
		if s.Expired(now, c.ttl) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if s.Status != sessions.StatusPendingAuthorization {
			return fmt.Errorf("%w: session is %s", ErrInvalidState, s.Status)
		}
		s.Status = sessions.StatusCompleting
		return nil
	})
}

// pay continues the outgoing grant and executes the stored quote
func (c *Controller) pay(ctx context.Context, session sessions.Session) (payment openpayments.OutgoingPayment, err error) {
	continueCtx, cancel := c.call(ctx)
	defer cancel()

	grant, err := c.client.ContinueGrant(continueCtx, openpayments.ContinueRequest{
		Uri:         session.OutgoingGrant.ContinueUri,
		AccessToken: session.OutgoingGrant.ContinueToken,
	})
	if err != nil {
		return payment, fmt.Errorf("failed to continue outgoing payment grant: %w", err)
	}
	if !grant.Finalized() {
		return payment, fmt.Errorf("%w: %w", openpayments.ErrGrant, ErrNotAuthorized)
	}

	paymentCtx, cancel := c.call(ctx)
	defer cancel()

	payment, err = c.client.CreateOutgoingPayment(paymentCtx, openpayments.OutgoingPaymentRequest{
		ResourceServer: session.SendingWallet.ResourceServer,
		AccessToken:    grant.AccessToken.Value,
		WalletAddress:  session.SendingWallet.Id,
		QuoteId:        session.Quote.Id,
	})
	if err != nil {
		return payment, fmt.Errorf("failed to create outgoing payment: %w", err)
	}
	return payment, nil
}

// Complete executes the payment of a session the user already authorized.
// Failures after the session was claimed leave it errored
func (c *Controller) Complete(ctx context.Context, id string) (completed Completed, err error) {
	session, err := c.claim(ctx, id)
	if err != nil {
		return completed, fmt.Errorf("failed to claim session: %w", err)
	}

	payment, err := c.pay(ctx, session)
	if err != nil {
		log.Println("ERROR|COMPLETING|SESSION", id, err)

		// Record the failure even if the caller went away
		saveCtx, cancel := utils.NewContextWithTimeout(c.callTimeout)
		defer cancel()

		_, saveErr := c.store.Update(saveCtx, id, func(s *sessions.Session) error {
			s.SetError(err)
			return nil
		})
		if saveErr != nil {
			log.Println("ERROR|SAVING|SESSION", id, saveErr)
		}
		return completed, err
	}

	completedAt := c.now()
	saveCtx, cancel := utils.NewContextWithTimeout(c.callTimeout)
	defer cancel()

	saved, err := c.store.Update(saveCtx, id, func(s *sessions.Session) (err error) {
		s.Status = sessions.StatusCompleted
		s.CompletedAt = completedAt
		s.RemoveAt = completedAt.Add(c.grace)
		s.OutgoingPayment = &payment
		return nil
	})
	if err != nil {
		// The payment was made. Report it from the claimed copy
		log.Println("ERROR|SAVING|SESSION", id, payment.Id, err)
	} else {
		session = saved
	}
	log.Println("INFO|COMPLETED|SESSION", id, payment.Id)

	completed = Completed{
		SessionId:       session.Id,
		Status:          sessions.StatusCompleted,
		OutgoingPayment: payment,
		Summary: Summary{
			Amount:          session.Amount,
			ReceivingWallet: session.ReceivingWalletUrl,
			DebitAmount:     session.Quote.DebitAmount,
			FormattedDebit:  formatAmount(session.Quote.DebitAmount),
			CompletedAt:     completedAt,
		},
	}
	return completed, nil
}
