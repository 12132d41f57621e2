// Package openpayments describes the subset of the Interledger Open Payments
// API consumed by the gateway: wallet address discovery, GNAP grants and the
// incoming-payment, quote and outgoing-payment resources.
package openpayments

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// The wallet address could not be resolved to a valid descriptor
	ErrWalletLookup = errors.New("wallet lookup failed")
	// The call did not finish before its deadline
	ErrTimeout = errors.New("open payments request timed out")
	// The grant was rejected or is not in the expected state
	ErrGrant = errors.New("grant error")
	// Signing credentials are missing or invalid
	ErrInvalidCredentials = errors.New("invalid signing credentials")
	// The resource server rejected the request
	ErrResource = errors.New("resource request failed")
)

type AccessType string

const (
	AccessIncomingPayment AccessType = "incoming-payment"
	AccessQuote           AccessType = "quote"
	AccessOutgoingPayment AccessType = "outgoing-payment"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionComplete Action = "complete"
	ActionList     Action = "list"
)

const (
	InteractRedirect = "redirect"
	MethodILP        = "ilp"
)

type (
	Amount struct {
		// Integer amount in minor units, base 10
		Value      string `json:"value"`
		AssetCode  string `json:"assetCode"`
		AssetScale uint8  `json:"assetScale"`
	}
	WalletAddressRequest struct {
		// Wallet address URL. Example: https://ilp.interledger-test.dev/alice
		Url string
	}
	WalletAddress struct {
		Id             string `json:"id"`
		PublicName     string `json:"publicName,omitempty"`
		AssetCode      string `json:"assetCode"`
		AssetScale     uint8  `json:"assetScale"`
		AuthServer     string `json:"authServer"`
		ResourceServer string `json:"resourceServer"`
	}
	Limits struct {
		DebitAmount   *Amount `json:"debitAmount,omitempty"`
		ReceiveAmount *Amount `json:"receiveAmount,omitempty"`
	}
	Access struct {
		Type       AccessType `json:"type"`
		Actions    []Action   `json:"actions"`
		Identifier string     `json:"identifier,omitempty"`
		Limits     *Limits    `json:"limits,omitempty"`
	}
	InteractFinish struct {
		Method string `json:"method"`
		Uri    string `json:"uri"`
		Nonce  string `json:"nonce"`
	}
	Interact struct {
		Start  []string        `json:"start"`
		Finish *InteractFinish `json:"finish,omitempty"`
	}
	GrantRequest struct {
		// Authorization server of the wallet the access is requested for
		AuthServer string
		// Requested capabilities
		Access []Access
		// Set when user interaction is required
		Interact *Interact
	}
	ContinueRequest struct {
		// Continuation URI returned by the grant request
		Uri string
		// Continuation access token returned by the grant request
		AccessToken string
		// Interaction reference received on the finish redirect, if any
		InteractRef string
	}
	AccessToken struct {
		Value     string   `json:"value"`
		Manage    string   `json:"manage"`
		ExpiresIn int64    `json:"expires_in,omitempty"`
		Access    []Access `json:"access,omitempty"`
	}
	Continue struct {
		Uri         string `json:"uri"`
		AccessToken string `json:"access_token"`
		// Seconds the client should wait before continuing
		Wait int64 `json:"wait,omitempty"`
	}
	InteractResponse struct {
		Redirect string `json:"redirect"`
		Finish   string `json:"finish"`
	}
	Grant struct {
		AccessToken *AccessToken      `json:"access_token,omitempty"`
		Continue    *Continue         `json:"continue,omitempty"`
		Interact    *InteractResponse `json:"interact,omitempty"`
	}
	IncomingPaymentRequest struct {
		ResourceServer string
		AccessToken    string
		WalletAddress  string
		IncomingAmount Amount
		ExpiresAt      time.Time
	}
	IncomingPayment struct {
		Id             string    `json:"id"`
		WalletAddress  string    `json:"walletAddress"`
		IncomingAmount *Amount   `json:"incomingAmount,omitempty"`
		ReceivedAmount Amount    `json:"receivedAmount"`
		Completed      bool      `json:"completed"`
		ExpiresAt      time.Time `json:"expiresAt,omitzero"`
		CreatedAt      time.Time `json:"createdAt,omitzero"`
	}
	QuoteRequest struct {
		ResourceServer string
		AccessToken    string
		WalletAddress  string
		// Incoming payment URL
		Receiver string
		Method   string
	}
	Quote struct {
		Id            string    `json:"id"`
		WalletAddress string    `json:"walletAddress"`
		Receiver      string    `json:"receiver"`
		DebitAmount   Amount    `json:"debitAmount"`
		ReceiveAmount Amount    `json:"receiveAmount"`
		Method        string    `json:"method"`
		ExpiresAt     time.Time `json:"expiresAt,omitzero"`
		CreatedAt     time.Time `json:"createdAt,omitzero"`
	}
	OutgoingPaymentRequest struct {
		ResourceServer string
		AccessToken    string
		WalletAddress  string
		QuoteId        string
	}
	OutgoingPayment struct {
		Id            string    `json:"id"`
		WalletAddress string    `json:"walletAddress"`
		QuoteId       string    `json:"quoteId"`
		Receiver      string    `json:"receiver"`
		DebitAmount   Amount    `json:"debitAmount"`
		ReceiveAmount Amount    `json:"receiveAmount"`
		SentAmount    Amount    `json:"sentAmount"`
		Failed        bool      `json:"failed"`
		CreatedAt     time.Time `json:"createdAt,omitzero"`
	}
)

// Finalized reports if the grant carries a usable access token and needs no
// further interaction
func (g *Grant) Finalized() bool {
	return g.AccessToken != nil && g.AccessToken.Value != ""
}

// Pending reports if the grant waits for user interaction
func (g *Grant) Pending() bool {
	return !g.Finalized() && g.Continue != nil && g.Continue.Uri != ""
}

func (a Amount) String() string {
	contents, _ := json.Marshal(a)
	return string(contents)
}

// Client is the external Open Payments network. Every method is a fallible
// network call
type Client interface {
	// Resolve wallet address metadata
	WalletAddress(ctx context.Context, req WalletAddressRequest) (wallet WalletAddress, err error)

	// Request a grant from an authorization server
	RequestGrant(ctx context.Context, req GrantRequest) (grant Grant, err error)

	// Continue a pending grant after the user interacted with it
	ContinueGrant(ctx context.Context, req ContinueRequest) (grant Grant, err error)

	// Create an incoming payment on the receiver wallet
	CreateIncomingPayment(ctx context.Context, req IncomingPaymentRequest) (payment IncomingPayment, err error)

	// Create a quote on the sender wallet
	CreateQuote(ctx context.Context, req QuoteRequest) (quote Quote, err error)

	// Create the outgoing payment that executes a quote
	CreateOutgoingPayment(ctx context.Context, req OutgoingPaymentRequest) (payment OutgoingPayment, err error)
}
