package interledger_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/openpayments/interledger"
	"github.com/RogueTeam/ilpgateway/openpayments/mock"
	"github.com/RogueTeam/ilpgateway/openpayments/testsuite"
	"github.com/RogueTeam/ilpgateway/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, walletAddressUrl string, key ed25519.PrivateKey) *interledger.Client {
	client, err := interledger.New(interledger.Config{
		WalletAddressUrl: walletAddressUrl,
		KeyId:            "test-key",
		PrivateKey:       key,
		Client:           &http.Client{},
	})
	require.Nil(t, err, "failed to create client")
	return client
}

func Test_Client(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.Nil(t, err, "failed to generate key")

	network, server := mock.NewServer(mock.Config{Fee: testsuite.Fee}, pub)
	defer server.Close()

	client := newClient(t, server.URL+"/gateway", priv)
	testsuite.Test(t, client, network)

	t.Run("Wrong key", func(t *testing.T) {
		_, other, err := ed25519.GenerateKey(rand.Reader)
		require.Nil(t, err, "failed to generate key")

		wallet := network.AddWallet("wrong-key", "USD", 2)
		client := newClient(t, server.URL+"/gateway", other)

		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err = client.RequestGrant(ctx, openpayments.GrantRequest{
			AuthServer: wallet.AuthServer,
			Access:     []openpayments.Access{{Type: openpayments.AccessQuote, Actions: []openpayments.Action{openpayments.ActionCreate}}},
		})
		assert.ErrorIs(t, err, openpayments.ErrGrant, "server should reject the signature")
	})
}

func Test_New(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.Nil(t, err, "failed to generate key")

	type Test struct {
		Name   string
		Config interledger.Config
	}
	tests := []Test{
		{Name: "Missing wallet", Config: interledger.Config{KeyId: "key", PrivateKey: priv}},
		{Name: "Missing key id", Config: interledger.Config{WalletAddressUrl: "https://example.test/alice", PrivateKey: priv}},
		{Name: "Missing key", Config: interledger.Config{WalletAddressUrl: "https://example.test/alice", KeyId: "key"}},
		{Name: "Short key", Config: interledger.Config{WalletAddressUrl: "https://example.test/alice", KeyId: "key", PrivateKey: priv[:10]}},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			_, err := interledger.New(test.Config)
			assert.ErrorIs(t, err, openpayments.ErrInvalidCredentials)
		})
	}
}

func Test_WalletAddress(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.Nil(t, err, "failed to generate key")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /incomplete", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"https://example.test/incomplete","assetCode":"USD"}`))
	})
	mux.HandleFunc("GET /garbage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html></html>`))
	})
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := interledger.New(interledger.Config{
		WalletAddressUrl: server.URL + "/gateway",
		KeyId:            "test-key",
		PrivateKey:       priv,
		LookupTimeout:    50 * time.Millisecond,
	})
	require.Nil(t, err, "failed to create client")

	ctx, cancel := utils.NewContext()
	defer cancel()

	t.Run("Not found", func(t *testing.T) {
		_, err := client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: server.URL + "/missing"})
		assert.ErrorIs(t, err, openpayments.ErrWalletLookup)
	})
	t.Run("Incomplete descriptor", func(t *testing.T) {
		_, err := client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: server.URL + "/incomplete"})
		assert.ErrorIs(t, err, openpayments.ErrWalletLookup)
	})
	t.Run("Not JSON", func(t *testing.T) {
		_, err := client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: server.URL + "/garbage"})
		assert.ErrorIs(t, err, openpayments.ErrWalletLookup)
	})
	t.Run("Lookup timeout", func(t *testing.T) {
		_, err := client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: server.URL + "/slow"})
		assert.ErrorIs(t, err, openpayments.ErrTimeout)
	})
	t.Run("Unreachable", func(t *testing.T) {
		_, err := client.WalletAddress(ctx, openpayments.WalletAddressRequest{Url: "http://127.0.0.1:1/alice"})
		assert.ErrorIs(t, err, openpayments.ErrWalletLookup)
	})
}
