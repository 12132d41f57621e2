package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/sessions"
	"github.com/RogueTeam/ilpgateway/utils"
	"github.com/google/uuid"
)

type Initiated struct {
	SessionId string
	Status    sessions.Status
	// URL the user visits to authorize the payment
	AuthorizationUrl string
	// Continuation URI of the outgoing payment grant
	ContinueUrl     string
	Amount          uint64
	DebitAmount     openpayments.Amount
	ReceivingWallet string
}

func (c *Controller) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return utils.WithTimeout(ctx, c.callTimeout)
}

func (c *Controller) walletAddress(ctx context.Context, url string) (wallet openpayments.WalletAddress, err error) {
	ctx, cancel := c.call(ctx)
	defer cancel()

	wallet, err = c.client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: url})
	if err != nil {
		return wallet, fmt.Errorf("failed to resolve wallet %s: %w", url, err)
	}
	return wallet, nil
}

// resolveWallets looks up the sending and receiving wallets concurrently
func (c *Controller) resolveWallets(ctx context.Context, receivingUrl string) (sending, receiving openpayments.WalletAddress, err error) {
	var (
		wg                       sync.WaitGroup
		sendingErr, receivingErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sending, sendingErr = c.walletAddress(ctx, c.sendingWallet)
	}()
	go func() {
		defer wg.Done()
		receiving, receivingErr = c.walletAddress(ctx, receivingUrl)
	}()
	wg.Wait()

	if sendingErr != nil {
		return sending, receiving, fmt.Errorf("failed to resolve sending wallet: %w", sendingErr)
	}
	if receivingErr != nil {
		return sending, receiving, fmt.Errorf("failed to resolve receiving wallet: %w", receivingErr)
	}
	return sending, receiving, nil
}

// finalizedGrant requests a non interactive grant that must be usable right away
func (c *Controller) finalizedGrant(ctx context.Context, authServer string, access openpayments.Access) (token string, err error) {
	ctx, cancel := c.call(ctx)
	defer cancel()

	grant, err := c.client.RequestGrant(ctx, openpayments.GrantRequest{
		AuthServer: authServer,
		Access:     []openpayments.Access{access},
	})
	if err != nil {
		return "", fmt.Errorf("failed to request %s grant: %w", access.Type, err)
	}
	if !grant.Finalized() {
		return "", fmt.Errorf("%w: %s grant was not finalized", openpayments.ErrGrant, access.Type)
	}
	return grant.AccessToken.Value, nil
}

func (c *Controller) createIncomingPayment(ctx context.Context, receiving openpayments.WalletAddress, amount uint64) (payment openpayments.IncomingPayment, err error) {
	token, err := c.finalizedGrant(ctx, receiving.AuthServer, openpayments.Access{
		Type:    openpayments.AccessIncomingPayment,
		Actions: []openpayments.Action{openpayments.ActionRead, openpayments.ActionComplete, openpayments.ActionCreate},
	})
	if err != nil {
		return payment, err
	}

	ctx, cancel := c.call(ctx)
	defer cancel()

	payment, err = c.client.CreateIncomingPayment(ctx, openpayments.IncomingPaymentRequest{
		ResourceServer: receiving.ResourceServer,
		AccessToken:    token,
		WalletAddress:  receiving.Id,
		IncomingAmount: openpayments.Amount{
			Value:      strconv.FormatUint(amount, 10),
			AssetCode:  receiving.AssetCode,
			AssetScale: receiving.AssetScale,
		},
	})
	if err != nil {
		return payment, fmt.Errorf("failed to create incoming payment: %w", err)
	}
	return payment, nil
}

func (c *Controller) createQuote(ctx context.Context, sending openpayments.WalletAddress, receiver string) (quote openpayments.Quote, err error) {
	token, err := c.finalizedGrant(ctx, sending.AuthServer, openpayments.Access{
		Type:    openpayments.AccessQuote,
		Actions: []openpayments.Action{openpayments.ActionCreate, openpayments.ActionRead},
	})
	if err != nil {
		return quote, err
	}

	ctx, cancel := c.call(ctx)
	defer cancel()

	quote, err = c.client.CreateQuote(ctx, openpayments.QuoteRequest{
		ResourceServer: sending.ResourceServer,
		AccessToken:    token,
		WalletAddress:  sending.Id,
		Receiver:       receiver,
		Method:         openpayments.MethodILP,
	})
	if err != nil {
		return quote, fmt.Errorf("failed to create quote: %w", err)
	}
	return quote, nil
}

// outgoingGrant requests the interactive grant bounded by the quote debit
// amount. It must come back pending user authorization
func (c *Controller) outgoingGrant(ctx context.Context, sending openpayments.WalletAddress, quote openpayments.Quote) (grant sessions.OutgoingGrant, err error) {
	ctx, cancel := c.call(ctx)
	defer cancel()

	debit := quote.DebitAmount
	pending, err := c.client.RequestGrant(ctx, openpayments.GrantRequest{
		AuthServer: sending.AuthServer,
		Access: []openpayments.Access{{
			Type:       openpayments.AccessOutgoingPayment,
			Actions:    []openpayments.Action{openpayments.ActionCreate, openpayments.ActionRead, openpayments.ActionList},
			Identifier: sending.Id,
			Limits:     &openpayments.Limits{DebitAmount: &debit},
		}},
		Interact: &openpayments.Interact{Start: []string{openpayments.InteractRedirect}},
	})
	if err != nil {
		return grant, fmt.Errorf("failed to request outgoing payment grant: %w", err)
	}
	if !pending.Pending() || pending.Interact == nil || pending.Interact.Redirect == "" {
		return grant, fmt.Errorf("%w: outgoing payment grant is not pending interactive authorization", openpayments.ErrGrant)
	}

	grant = sessions.OutgoingGrant{
		ContinueUri:   pending.Continue.Uri,
		ContinueToken: pending.Continue.AccessToken,
		RedirectUrl:   pending.Interact.Redirect,
	}
	return grant, nil
}

// Initiate prepares a payment of req.Amount to req.ReceivingWalletUrl and
// stores a session waiting for the user to authorize it. No session is
// stored when any step fails
func (c *Controller) Initiate(ctx context.Context, req Initiate) (initiated Initiated, err error) {
	err = c.validate(&req)
	if err != nil {
		return initiated, err
	}
	amount := uint64(req.Amount)

	sending, receiving, err := c.resolveWallets(ctx, req.ReceivingWalletUrl)
	if err != nil {
		return initiated, err
	}

	incoming, err := c.createIncomingPayment(ctx, receiving, amount)
	if err != nil {
		return initiated, err
	}

	quote, err := c.createQuote(ctx, sending, incoming.Id)
	if err != nil {
		return initiated, err
	}

	grant, err := c.outgoingGrant(ctx, sending, quote)
	if err != nil {
		return initiated, err
	}

	session := sessions.Session{
		Id:                 uuid.NewString(),
		Status:             sessions.StatusPendingAuthorization,
		CreatedAt:          c.now(),
		Amount:             amount,
		ReceivingWalletUrl: req.ReceivingWalletUrl,
		SendingWallet:      sending,
		ReceivingWallet:    receiving,
		IncomingPaymentId:  incoming.Id,
		Quote:              quote,
		OutgoingGrant:      grant,
	}
	err = c.store.Create(ctx, session)
	if err != nil {
		return initiated, fmt.Errorf("failed to store session: %w", err)
	}
	log.Println("INFO|INITIATED|SESSION", session.Id, quote.DebitAmount.Value, quote.DebitAmount.AssetCode)

	initiated = Initiated{
		SessionId:        session.Id,
		Status:           session.Status,
		AuthorizationUrl: grant.RedirectUrl,
		ContinueUrl:      grant.ContinueUri,
		Amount:           amount,
		DebitAmount:      quote.DebitAmount,
		ReceivingWallet:  req.ReceivingWalletUrl,
	}
	return initiated, nil
}
