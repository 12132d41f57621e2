package interledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RogueTeam/ilpgateway/internal/httpsig"
	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/utils"
)

const DefaultLookupTimeout = 10 * time.Second

// Bytes of an error response kept in the returned error
const maxErrorBody = 4 << 10

type Config struct {
	// Wallet address of the gateway. Used as the GNAP client identifier
	// Example: https://ilp.interledger-test.dev/sender
	WalletAddressUrl string
	// Identifier of the key registered in the wallet
	KeyId string
	// Key used to sign every request sent to authorization and resource servers
	PrivateKey ed25519.PrivateKey
	// HTTP Client to use
	Client *http.Client
	// Bound for wallet address lookups. Defaults to DefaultLookupTimeout
	LookupTimeout time.Duration
	// Custom headers to send
	CustomHeaders map[string]string
}

// Client is the Open Payments client backed by the real network.
type Client struct {
	walletAddressUrl string
	signer           httpsig.Signer
	client           *http.Client
	lookupTimeout    time.Duration
	customHeaders    map[string]string
}

var _ openpayments.Client = (*Client)(nil)

func New(config Config) (c *Client, err error) {
	if config.WalletAddressUrl == "" {
		return nil, fmt.Errorf("%w: wallet address url is required", openpayments.ErrInvalidCredentials)
	}
	if config.KeyId == "" {
		return nil, fmt.Errorf("%w: key id is required", openpayments.ErrInvalidCredentials)
	}
	if len(config.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key is required", openpayments.ErrInvalidCredentials)
	}

	c = &Client{
		walletAddressUrl: config.WalletAddressUrl,
		signer:           httpsig.Signer{KeyId: config.KeyId, Key: config.PrivateKey},
		client:           config.Client,
		lookupTimeout:    config.LookupTimeout,
		customHeaders:    config.CustomHeaders,
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.lookupTimeout <= 0 {
		c.lookupTimeout = DefaultLookupTimeout
	}
	return c, nil
}

type request struct {
	Method string
	Url    string
	// GNAP access token, empty for unauthenticated calls
	Token  string
	Sign   bool
	Body   any
	Result any
	// Error kind wrapped on failures
	Kind error
}

func (c *Client) do(ctx context.Context, r request) (err error) {
	var body []byte
	if r.Body != nil {
		body, err = json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.Url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to prepare request: %w", r.Kind, err)
	}
	for key, value := range c.customHeaders {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "GNAP "+r.Token)
	}
	if r.Sign {
		err = c.signer.Sign(req, body)
		if err != nil {
			return fmt.Errorf("%w: failed to sign request: %w", openpayments.ErrInvalidCredentials, err)
		}
	}

	res, err := c.client.Do(req)
	if err != nil {
		if timedOut(err) {
			return fmt.Errorf("%w: %s %s: %w", openpayments.ErrTimeout, r.Method, r.Url, err)
		}
		return fmt.Errorf("%w: %s %s: %w", r.Kind, r.Method, r.Url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		contents, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s: status %d: %s", r.Kind, r.Method, r.Url, res.StatusCode, strings.TrimSpace(string(contents)))
	}

	if r.Result == nil {
		return nil
	}
	err = json.NewDecoder(res.Body).Decode(r.Result)
	if err != nil {
		if timedOut(err) {
			return fmt.Errorf("%w: %s %s: %w", openpayments.ErrTimeout, r.Method, r.Url, err)
		}
		return fmt.Errorf("%w: %s %s: failed to decode response: %w", r.Kind, r.Method, r.Url, err)
	}
	return nil
}

func timedOut(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout())
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func (c *Client) WalletAddress(ctx context.Context, req openpayments.WalletAddressRequest) (wallet openpayments.WalletAddress, err error) {
	ctx, cancel := utils.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	err = c.do(ctx, request{
		Method: http.MethodGet,
		Url:    req.Url,
		Result: &wallet,
		Kind:   openpayments.ErrWalletLookup,
	})
	if err != nil {
		return wallet, err
	}

	if wallet.Id == "" || wallet.AuthServer == "" || wallet.ResourceServer == "" || wallet.AssetCode == "" {
		return wallet, fmt.Errorf("%w: %s: invalid wallet address descriptor", openpayments.ErrWalletLookup, req.Url)
	}
	return wallet, nil
}

type grantBody struct {
	AccessToken struct {
		Access []openpayments.Access `json:"access"`
	} `json:"access_token"`
	Client   string                 `json:"client"`
	Interact *openpayments.Interact `json:"interact,omitempty"`
}

func (c *Client) RequestGrant(ctx context.Context, req openpayments.GrantRequest) (grant openpayments.Grant, err error) {
	var body = grantBody{
		Client:   c.walletAddressUrl,
		Interact: req.Interact,
	}
	body.AccessToken.Access = req.Access

	err = c.do(ctx, request{
		Method: http.MethodPost,
		Url:    req.AuthServer,
		Sign:   true,
		Body:   &body,
		Result: &grant,
		Kind:   openpayments.ErrGrant,
	})
	return grant, err
}

type continueBody struct {
	InteractRef string `json:"interact_ref,omitempty"`
}

func (c *Client) ContinueGrant(ctx context.Context, req openpayments.ContinueRequest) (grant openpayments.Grant, err error) {
	err = c.do(ctx, request{
		Method: http.MethodPost,
		Url:    req.Uri,
		Token:  req.AccessToken,
		Sign:   true,
		Body:   &continueBody{InteractRef: req.InteractRef},
		Result: &grant,
		Kind:   openpayments.ErrGrant,
	})
	return grant, err
}

type incomingPaymentBody struct {
	WalletAddress  string              `json:"walletAddress"`
	IncomingAmount openpayments.Amount `json:"incomingAmount"`
	ExpiresAt      time.Time           `json:"expiresAt,omitzero"`
}

func (c *Client) CreateIncomingPayment(ctx context.Context, req openpayments.IncomingPaymentRequest) (payment openpayments.IncomingPayment, err error) {
	err = c.do(ctx, request{
		Method: http.MethodPost,
		Url:    join(req.ResourceServer, "/incoming-payments"),
		Token:  req.AccessToken,
		Sign:   true,
		Body: &incomingPaymentBody{
			WalletAddress:  req.WalletAddress,
			IncomingAmount: req.IncomingAmount,
			ExpiresAt:      req.ExpiresAt,
		},
		Result: &payment,
		Kind:   openpayments.ErrResource,
	})
	return payment, err
}

type quoteBody struct {
	WalletAddress string `json:"walletAddress"`
	Receiver      string `json:"receiver"`
	Method        string `json:"method"`
}

func (c *Client) CreateQuote(ctx context.Context, req openpayments.QuoteRequest) (quote openpayments.Quote, err error) {
	err = c.do(ctx, request{
		Method: http.MethodPost,
		Url:    join(req.ResourceServer, "/quotes"),
		Token:  req.AccessToken,
		Sign:   true,
		Body: &quoteBody{
			WalletAddress: req.WalletAddress,
			Receiver:      req.Receiver,
			Method:        req.Method,
		},
		Result: &quote,
		Kind:   openpayments.ErrResource,
	})
	return quote, err
}

type outgoingPaymentBody struct {
	WalletAddress string `json:"walletAddress"`
	QuoteId       string `json:"quoteId"`
}

func (c *Client) CreateOutgoingPayment(ctx context.Context, req openpayments.OutgoingPaymentRequest) (payment openpayments.OutgoingPayment, err error) {
	err = c.do(ctx, request{
		Method: http.MethodPost,
		Url:    join(req.ResourceServer, "/outgoing-payments"),
		Token:  req.AccessToken,
		Sign:   true,
		Body: &outgoingPaymentBody{
			WalletAddress: req.WalletAddress,
			QuoteId:       req.QuoteId,
		},
		Result: &payment,
		Kind:   openpayments.ErrResource,
	})
	return payment, err
}
