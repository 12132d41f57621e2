package testsuite

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/openpayments/mock"
	"github.com/RogueTeam/ilpgateway/random"
	"github.com/RogueTeam/ilpgateway/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fee the network under test must be configured with
const Fee = 5

func grantFor(t *testing.T, client openpayments.Client, authServer string, accessType openpayments.AccessType) (token string) {
	ctx, cancel := utils.NewContext()
	defer cancel()

	grant, err := client.RequestGrant(ctx, openpayments.GrantRequest{
		AuthServer: authServer,
		Access:     []openpayments.Access{{Type: accessType, Actions: []openpayments.Action{openpayments.ActionCreate, openpayments.ActionRead}}},
	})
	require.Nil(t, err, "failed to request %s grant", accessType)
	require.True(t, grant.Finalized(), "%s grant should be finalized", accessType)
	return grant.AccessToken.Value
}

// Test runs the contract every openpayments.Client must satisfy. network is
// the mock backing client, directly or through its HTTP server, configured
// with Fee
func Test(t *testing.T, client openpayments.Client, network *mock.Mock) {
	sender := network.AddWallet("sender-"+random.String(random.CryptoRand(), random.CharsetAlphaNumeric, 8), "USD", 2)
	receiver := network.AddWallet("receiver-"+random.String(random.CryptoRand(), random.CharsetAlphaNumeric, 8), "USD", 2)

	t.Run("WalletAddress", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		wallet, err := client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: receiver.Id})
		assertions.Nil(err, "failed to resolve wallet")
		assertions.Equal(receiver, wallet, "wallet should match the registered one")

		_, err = client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: network.BaseUrl() + "/unknown"})
		assertions.ErrorIs(err, openpayments.ErrWalletLookup, "unknown wallet should fail lookup")
	})

	t.Run("Non interactive grants", func(t *testing.T) {
		grantFor(t, client, receiver.AuthServer, openpayments.AccessIncomingPayment)
		grantFor(t, client, sender.AuthServer, openpayments.AccessQuote)
	})

	t.Run("Outgoing grant requires interaction", func(t *testing.T) {
		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err := client.RequestGrant(ctx, openpayments.GrantRequest{
			AuthServer: sender.AuthServer,
			Access:     []openpayments.Access{{Type: openpayments.AccessOutgoingPayment, Actions: []openpayments.Action{openpayments.ActionCreate}, Identifier: sender.Id}},
		})
		assert.ErrorIs(t, err, openpayments.ErrGrant)
	})

	// Creates incoming payment, quote and a pending outgoing grant
	prepare := func(t *testing.T, amount uint64) (quote openpayments.Quote, grant openpayments.Grant) {
		ctx, cancel := utils.NewContext()
		defer cancel()

		incomingToken := grantFor(t, client, receiver.AuthServer, openpayments.AccessIncomingPayment)
		incoming, err := client.CreateIncomingPayment(ctx, openpayments.IncomingPaymentRequest{
			ResourceServer: receiver.ResourceServer,
			AccessToken:    incomingToken,
			WalletAddress:  receiver.Id,
			IncomingAmount: openpayments.Amount{Value: strconv.FormatUint(amount, 10), AssetCode: receiver.AssetCode, AssetScale: receiver.AssetScale},
		})
		require.Nil(t, err, "failed to create incoming payment")
		require.NotEmpty(t, incoming.Id, "incoming payment should have an id")
		require.NotNil(t, incoming.IncomingAmount)
		assert.Equal(t, strconv.FormatUint(amount, 10), incoming.IncomingAmount.Value)

		quoteToken := grantFor(t, client, sender.AuthServer, openpayments.AccessQuote)
		quote, err = client.CreateQuote(ctx, openpayments.QuoteRequest{
			ResourceServer: sender.ResourceServer,
			AccessToken:    quoteToken,
			WalletAddress:  sender.Id,
			Receiver:       incoming.Id,
			Method:         openpayments.MethodILP,
		})
		require.Nil(t, err, "failed to create quote")
		assert.Equal(t, strconv.FormatUint(amount+Fee, 10), quote.DebitAmount.Value, "debit amount should include the fee")
		assert.Equal(t, strconv.FormatUint(amount, 10), quote.ReceiveAmount.Value)

		grant, err = client.RequestGrant(ctx, openpayments.GrantRequest{
			AuthServer: sender.AuthServer,
			Access: []openpayments.Access{{
				Type:       openpayments.AccessOutgoingPayment,
				Actions:    []openpayments.Action{openpayments.ActionCreate, openpayments.ActionRead},
				Identifier: sender.Id,
				Limits:     &openpayments.Limits{DebitAmount: &quote.DebitAmount},
			}},
			Interact: &openpayments.Interact{Start: []string{openpayments.InteractRedirect}},
		})
		require.Nil(t, err, "failed to request outgoing grant")
		require.False(t, grant.Finalized(), "outgoing grant must wait for interaction")
		require.True(t, grant.Pending(), "outgoing grant should be pending")
		require.NotNil(t, grant.Interact, "outgoing grant should carry interaction")
		require.NotEmpty(t, grant.Interact.Redirect)
		return quote, grant
	}

	t.Run("Outgoing payment", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		quote, grant := prepare(t, 500)

		// Continuing before the user interacted returns the grant still pending
		pending, err := client.ContinueGrant(ctx, openpayments.ContinueRequest{Uri: grant.Continue.Uri, AccessToken: grant.Continue.AccessToken})
		assertions.Nil(err, "continuing a pending grant should not fail")
		assertions.False(pending.Finalized(), "grant should still be pending")

		err = network.Authorize(grant.Interact.Redirect)
		assertions.Nil(err, "failed to authorize")

		_, err = client.ContinueGrant(ctx, openpayments.ContinueRequest{Uri: grant.Continue.Uri, AccessToken: "invalid"})
		assertions.ErrorIs(err, openpayments.ErrGrant, "invalid continuation token should fail")

		finalized, err := client.ContinueGrant(ctx, openpayments.ContinueRequest{Uri: grant.Continue.Uri, AccessToken: grant.Continue.AccessToken})
		assertions.Nil(err, "failed to continue grant")
		if !assertions.True(finalized.Finalized(), "grant should be finalized") {
			return
		}

		payment, err := client.CreateOutgoingPayment(ctx, openpayments.OutgoingPaymentRequest{
			ResourceServer: sender.ResourceServer,
			AccessToken:    finalized.AccessToken.Value,
			WalletAddress:  sender.Id,
			QuoteId:        quote.Id,
		})
		assertions.Nil(err, "failed to create outgoing payment")
		assertions.NotEmpty(payment.Id)
		assertions.Equal(quote.Id, payment.QuoteId)
		assertions.Equal(quote.DebitAmount, payment.DebitAmount)

		_, err = client.CreateOutgoingPayment(ctx, openpayments.OutgoingPaymentRequest{
			ResourceServer: sender.ResourceServer,
			AccessToken:    finalized.AccessToken.Value,
			WalletAddress:  sender.Id,
			QuoteId:        quote.Id,
		})
		assertions.ErrorIs(err, openpayments.ErrResource, "a quote can only be paid once")
	})

	t.Run("Rejected grant", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		_, grant := prepare(t, 100)

		err := network.Reject(grant.Interact.Redirect)
		assertions.Nil(err, "failed to reject")

		_, err = client.ContinueGrant(ctx, openpayments.ContinueRequest{Uri: grant.Continue.Uri, AccessToken: grant.Continue.AccessToken})
		assertions.ErrorIs(err, openpayments.ErrGrant, "rejected grant should fail to continue")
	})

	t.Run("Resource without grant", func(t *testing.T) {
		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err := client.CreateIncomingPayment(ctx, openpayments.IncomingPaymentRequest{
			ResourceServer: receiver.ResourceServer,
			AccessToken:    "invalid",
			WalletAddress:  receiver.Id,
			IncomingAmount: openpayments.Amount{Value: "1", AssetCode: receiver.AssetCode, AssetScale: receiver.AssetScale},
		})
		assert.ErrorIs(t, err, openpayments.ErrResource)
	})

	t.Run("Timeout", func(t *testing.T) {
		network.SetDelay(time.Second)
		defer network.SetDelay(0)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: receiver.Id})
		assert.True(t, errors.Is(err, openpayments.ErrTimeout), "expecting timeout, got: %v", err)
	})
}
