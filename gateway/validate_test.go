package gateway_test

import (
	"errors"
	"math"
	"testing"

	"github.com/RogueTeam/ilpgateway/gateway"
	"github.com/RogueTeam/ilpgateway/openpayments/mock"
	"github.com/RogueTeam/ilpgateway/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func Test_Validation(t *testing.T) {
	type Test struct {
		Name     string
		Request  gateway.Initiate
		Problems int
	}
	tests := []Test{
		{Name: "Missing wallet", Request: gateway.Initiate{Amount: 10}, Problems: 1},
		{Name: "Blank wallet", Request: gateway.Initiate{ReceivingWalletUrl: "   ", Amount: 10}, Problems: 1},
		{Name: "HTTP wallet", Request: gateway.Initiate{ReceivingWalletUrl: "http://example.test/wallet-b", Amount: 10}, Problems: 1},
		{Name: "Malformed wallet", Request: gateway.Initiate{ReceivingWalletUrl: "::not a url", Amount: 10}, Problems: 1},
		{Name: "Wallet without host", Request: gateway.Initiate{ReceivingWalletUrl: "https://", Amount: 10}, Problems: 1},
		{Name: "Zero amount", Request: gateway.Initiate{ReceivingWalletUrl: "https://example.test/wallet-b"}, Problems: 1},
		{Name: "Negative amount", Request: gateway.Initiate{ReceivingWalletUrl: "https://example.test/wallet-b", Amount: -1}, Problems: 1},
		{Name: "Above maximum", Request: gateway.Initiate{ReceivingWalletUrl: "https://example.test/wallet-b", Amount: gateway.DefaultMaxAmount + 1}, Problems: 1},
		{Name: "Fractional", Request: gateway.Initiate{ReceivingWalletUrl: "https://example.test/wallet-b", Amount: 1.5}, Problems: 1},
		{Name: "NaN", Request: gateway.Initiate{ReceivingWalletUrl: "https://example.test/wallet-b", Amount: math.NaN()}, Problems: 1},
		{Name: "Everything wrong", Request: gateway.Initiate{ReceivingWalletUrl: "ftp://example.test", Amount: -5}, Problems: 2},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assertions := assert.New(t)
			f := newFixture(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			_, err := f.ctrl.Initiate(ctx, test.Request)

			var validation *gateway.ValidationError
			if assertions.True(errors.As(err, &validation), "expecting validation error, got: %v", err) {
				assertions.Len(validation.Problems, test.Problems, validation.Problems)
			}
			assertions.Equal(gateway.KindValidation, gateway.Kind(err))
			assertions.Equal(uint64(0), f.network.TotalCalls(), "no network call should be made")
		})
	}

	t.Run("Maximum accepted", func(t *testing.T) {
		f := newFixture(t)
		initiated := f.initiate(t, gateway.DefaultMaxAmount)
		assert.Equal(t, uint64(gateway.DefaultMaxAmount), initiated.Amount)
	})

	t.Run("Allowed hosts", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(t)
		ctrl := gateway.New(gateway.Config{
			Store:         f.store,
			Client:        f.network,
			SendingWallet: "https://example.test/gateway",
			AllowedHosts:  []string{"interledger"},
		})

		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err := ctrl.Initiate(ctx, gateway.Initiate{ReceivingWalletUrl: "https://example.test/wallet-b", Amount: 10})
		assertions.Equal(gateway.KindValidation, gateway.Kind(err))
		assertions.Equal(uint64(0), f.network.TotalCalls())
	})

	t.Run("Trusted wallet prefix", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(t)

		const base = "http://127.0.0.1:3001/mock"
		network := mock.New(mock.Config{BaseUrl: base, Fee: 5})
		sender := network.AddWallet("gateway", "USD", 2)
		network.AddWallet("wallet-b", "USD", 2)

		ctrl := gateway.New(gateway.Config{
			Store:               f.store,
			Client:              network,
			SendingWallet:       sender.Id,
			AllowedHosts:        []string{"interledger"},
			TrustedWalletPrefix: base + "/",
		})

		ctx, cancel := utils.NewContext()
		defer cancel()

		initiated, err := ctrl.Initiate(ctx, gateway.Initiate{ReceivingWalletUrl: base + "/wallet-b", Amount: 10})
		assertions.Nil(err, "wallets under the trusted prefix should be accepted")
		assertions.Equal("15", initiated.DebitAmount.Value)

		for _, walletUrl := range []string{"http://127.0.0.1:3001/other/wallet-b", "http://127.0.0.1:3001/mockery/wallet-b"} {
			_, err = ctrl.Initiate(ctx, gateway.Initiate{ReceivingWalletUrl: walletUrl, Amount: 10})
			assertions.Equal(gateway.KindValidation, gateway.Kind(err), walletUrl)
		}
	})
}

func Test_ValidationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	f := newFixture(t)

	rejected := func(req gateway.Initiate) bool {
		ctx, cancel := utils.NewContext()
		defer cancel()

		before := f.network.TotalCalls()
		_, err := f.ctrl.Initiate(ctx, req)
		return gateway.Kind(err) == gateway.KindValidation && f.network.TotalCalls() == before
	}

	properties.Property("non positive amounts are rejected without network calls", prop.ForAll(
		func(amount float64) bool {
			return rejected(gateway.Initiate{ReceivingWalletUrl: f.receiving.Id, Amount: amount})
		},
		gen.Float64Range(-1e12, 0),
	))

	properties.Property("amounts above the maximum are rejected without network calls", prop.ForAll(
		func(amount float64) bool {
			return rejected(gateway.Initiate{ReceivingWalletUrl: f.receiving.Id, Amount: amount})
		},
		gen.Float64Range(gateway.DefaultMaxAmount+1, 1e15),
	))

	properties.Property("non HTTPS wallets are rejected without network calls", prop.ForAll(
		func(scheme, host string, amount int64) bool {
			return rejected(gateway.Initiate{ReceivingWalletUrl: scheme + "://" + host + ".test/wallet", Amount: float64(amount)})
		},
		gen.OneConstOf("http", "ftp", "ws", "file", "HTTPX"),
		gen.Identifier(),
		gen.Int64Range(1, gateway.DefaultMaxAmount),
	))

	properties.Property("every violation is reported", prop.ForAll(
		func(amount float64) bool {
			ctx, cancel := utils.NewContext()
			defer cancel()

			_, err := f.ctrl.Initiate(ctx, gateway.Initiate{ReceivingWalletUrl: "http://example.test/wallet-b", Amount: amount})
			var validation *gateway.ValidationError
			return errors.As(err, &validation) && len(validation.Problems) == 2
		},
		gen.Float64Range(-1e6, 0),
	))

	properties.TestingRun(t)
}
