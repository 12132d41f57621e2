package mock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/random"
	"github.com/google/uuid"
)

type Operation string

const (
	OpWalletAddress         Operation = "wallet-address"
	OpRequestGrant          Operation = "request-grant"
	OpContinueGrant         Operation = "continue-grant"
	OpCreateIncomingPayment Operation = "create-incoming-payment"
	OpCreateQuote           Operation = "create-quote"
	OpCreateOutgoingPayment Operation = "create-outgoing-payment"
)

var Operations = []Operation{
	OpWalletAddress,
	OpRequestGrant,
	OpContinueGrant,
	OpCreateIncomingPayment,
	OpCreateQuote,
	OpCreateOutgoingPayment,
}

var (
	ErrUnknownInteraction = errors.New("unknown interaction")
	ErrAlreadyInteracted  = errors.New("interaction already finished")
)

const (
	AuthPath     = "/auth"
	ContinuePath = AuthPath + "/continue/"
	InteractPath = AuthPath + "/interact/"
)

type pendingGrant struct {
	access      []openpayments.Access
	token       string
	interaction string
	authorized  bool
	rejected    bool
}

// Mock implements openpayments.Client as an in memory Open Payments network.
// All wallets share one authorization and resource server rooted at BaseUrl
type Mock struct {
	mu            sync.Mutex
	baseUrl       string
	fee           uint64
	delay         time.Duration
	autoAuthorize bool
	wallets       map[string]openpayments.WalletAddress // url -> wallet
	tokens        map[string][]openpayments.Access      // access token -> granted access
	grants        map[string]*pendingGrant              // continue uri -> grant
	interactions  map[string]string                     // redirect url -> continue uri
	incoming      map[string]openpayments.IncomingPayment
	quotes        map[string]openpayments.Quote
	spentQuotes   map[string]bool
	outgoing      map[string]openpayments.OutgoingPayment
	failures      map[Operation]error
	calls         map[Operation]uint64
}

var _ openpayments.Client = (*Mock)(nil)

type Config struct {
	// Root of every generated URL. Example: https://example.test
	BaseUrl string
	// Fixed fee in minor units added to every quote debit amount
	Fee uint64
	// Latency added to every call. Calls honor context cancellation while waiting
	Delay time.Duration
	// Finalize interactive grants on their first continuation
	AutoAuthorize bool
}

// New creates a new Mock network.
func New(config Config) *Mock {
	m := &Mock{
		baseUrl:       strings.TrimRight(config.BaseUrl, "/"),
		fee:           config.Fee,
		delay:         config.Delay,
		autoAuthorize: config.AutoAuthorize,
		wallets:       make(map[string]openpayments.WalletAddress),
		tokens:        make(map[string][]openpayments.Access),
		grants:        make(map[string]*pendingGrant),
		interactions:  make(map[string]string),
		incoming:      make(map[string]openpayments.IncomingPayment),
		quotes:        make(map[string]openpayments.Quote),
		spentQuotes:   make(map[string]bool),
		outgoing:      make(map[string]openpayments.OutgoingPayment),
		failures:      make(map[Operation]error),
		calls:         make(map[Operation]uint64),
	}
	if m.baseUrl == "" {
		m.baseUrl = "https://mock.test"
	}
	return m
}

func (m *Mock) BaseUrl() string { return m.baseUrl }

func (m *Mock) AuthServer() string { return m.baseUrl + AuthPath }

func (m *Mock) ResourceServer() string { return m.baseUrl }

// AddWallet registers a wallet address named name and returns it
func (m *Mock) AddWallet(name, assetCode string, assetScale uint8) (wallet openpayments.WalletAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet = openpayments.WalletAddress{
		Id:             m.baseUrl + "/" + strings.TrimLeft(name, "/"),
		PublicName:     name,
		AssetCode:      assetCode,
		AssetScale:     assetScale,
		AuthServer:     m.AuthServer(),
		ResourceServer: m.ResourceServer(),
	}
	m.wallets[wallet.Id] = wallet
	return wallet
}

// Fail makes every call to op return err. A nil err clears the failure
func (m *Mock) Fail(op Operation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *Mock) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delay = delay
}

// Calls returns how many times op was invoked
func (m *Mock) Calls(op Operation) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[op]
}

func (m *Mock) TotalCalls() (total uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, count := range m.calls {
		total += count
	}
	return total
}

func (m *Mock) OutgoingPayments() (payments []openpayments.OutgoingPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, payment := range m.outgoing {
		payments = append(payments, payment)
	}
	return payments
}

func (m *Mock) IncomingPayments() (payments []openpayments.IncomingPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, payment := range m.incoming {
		payments = append(payments, payment)
	}
	return payments
}

// Authorize simulates the user approving the grant behind redirect
func (m *Mock) Authorize(redirect string) (err error) {
	return m.interact(redirect, true)
}

// Reject simulates the user denying the grant behind redirect
func (m *Mock) Reject(redirect string) (err error) {
	return m.interact(redirect, false)
}

func (m *Mock) interact(redirect string, approve bool) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	continueUri, found := m.interactions[redirect]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownInteraction, redirect)
	}
	grant, found := m.grants[continueUri]
	if !found {
		return fmt.Errorf("%w: %s", ErrAlreadyInteracted, redirect)
	}
	if grant.authorized || grant.rejected {
		return fmt.Errorf("%w: %s", ErrAlreadyInteracted, redirect)
	}

	grant.authorized = approve
	grant.rejected = !approve
	return nil
}

func (m *Mock) enter(ctx context.Context, op Operation) (err error) {
	m.mu.Lock()
	m.calls[op]++
	failure := m.failures[op]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s: %w", openpayments.ErrTimeout, op, ctx.Err())
			}
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}

	return failure
}

func (m *Mock) issueToken(access []openpayments.Access) (token openpayments.AccessToken) {
	token = openpayments.AccessToken{
		Value:     random.Token(32),
		Manage:    m.AuthServer() + "/token/" + uuid.NewString(),
		ExpiresIn: 600,
		Access:    access,
	}
	m.tokens[token.Value] = access
	return token
}

func (m *Mock) authorized(token string, accessType openpayments.AccessType) (access openpayments.Access, err error) {
	granted, found := m.tokens[token]
	if !found {
		return access, fmt.Errorf("%w: unknown access token", openpayments.ErrResource)
	}
	for _, access := range granted {
		if access.Type == accessType && slices.Contains(access.Actions, openpayments.ActionCreate) {
			return access, nil
		}
	}
	return access, fmt.Errorf("%w: token does not grant %s create", openpayments.ErrResource, accessType)
}

func (m *Mock) WalletAddress(ctx context.Context, req openpayments.WalletAddressRequest) (wallet openpayments.WalletAddress, err error) {
	err = m.enter(ctx, OpWalletAddress)
	if err != nil {
		return wallet, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wallet, found := m.wallets[strings.TrimRight(req.Url, "/")]
	if !found {
		return wallet, fmt.Errorf("%w: %s: not found", openpayments.ErrWalletLookup, req.Url)
	}
	return wallet, nil
}

func (m *Mock) RequestGrant(ctx context.Context, req openpayments.GrantRequest) (grant openpayments.Grant, err error) {
	err = m.enter(ctx, OpRequestGrant)
	if err != nil {
		return grant, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if req.AuthServer != m.AuthServer() {
		return grant, fmt.Errorf("%w: unknown authorization server: %s", openpayments.ErrGrant, req.AuthServer)
	}
	if len(req.Access) == 0 {
		return grant, fmt.Errorf("%w: no access requested", openpayments.ErrGrant)
	}

	var interactive bool
	for _, access := range req.Access {
		if access.Type == openpayments.AccessOutgoingPayment {
			interactive = true
		}
	}

	if !interactive {
		token := m.issueToken(req.Access)
		grant.AccessToken = &token
		return grant, nil
	}

	if req.Interact == nil || !slices.Contains(req.Interact.Start, openpayments.InteractRedirect) {
		return grant, fmt.Errorf("%w: outgoing payment grants require redirect interaction", openpayments.ErrGrant)
	}

	id := uuid.NewString()
	pending := &pendingGrant{
		access:      req.Access,
		token:       random.Token(32),
		interaction: m.baseUrl + InteractPath + id,
	}
	continueUri := m.baseUrl + ContinuePath + id
	m.grants[continueUri] = pending
	m.interactions[pending.interaction] = continueUri

	grant.Continue = &openpayments.Continue{
		Uri:         continueUri,
		AccessToken: pending.token,
		Wait:        5,
	}
	grant.Interact = &openpayments.InteractResponse{
		Redirect: pending.interaction,
		Finish:   id,
	}
	return grant, nil
}

func (m *Mock) ContinueGrant(ctx context.Context, req openpayments.ContinueRequest) (grant openpayments.Grant, err error) {
	err = m.enter(ctx, OpContinueGrant)
	if err != nil {
		return grant, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pending, found := m.grants[req.Uri]
	if !found {
		return grant, fmt.Errorf("%w: unknown continuation: %s", openpayments.ErrGrant, req.Uri)
	}
	if pending.token != req.AccessToken {
		return grant, fmt.Errorf("%w: invalid continuation token", openpayments.ErrGrant)
	}
	if pending.rejected {
		delete(m.grants, req.Uri)
		return grant, fmt.Errorf("%w: grant rejected by the user", openpayments.ErrGrant)
	}
	if !pending.authorized && !m.autoAuthorize {
		grant.Continue = &openpayments.Continue{Uri: req.Uri, AccessToken: pending.token, Wait: 5}
		return grant, nil
	}

	delete(m.grants, req.Uri)
	token := m.issueToken(pending.access)
	grant.AccessToken = &token
	return grant, nil
}

func (m *Mock) CreateIncomingPayment(ctx context.Context, req openpayments.IncomingPaymentRequest) (payment openpayments.IncomingPayment, err error) {
	err = m.enter(ctx, OpCreateIncomingPayment)
	if err != nil {
		return payment, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, err = m.authorized(req.AccessToken, openpayments.AccessIncomingPayment)
	if err != nil {
		return payment, err
	}
	wallet, found := m.wallets[req.WalletAddress]
	if !found {
		return payment, fmt.Errorf("%w: unknown wallet address: %s", openpayments.ErrResource, req.WalletAddress)
	}
	if req.IncomingAmount.AssetCode != wallet.AssetCode || req.IncomingAmount.AssetScale != wallet.AssetScale {
		return payment, fmt.Errorf("%w: asset mismatch", openpayments.ErrResource)
	}

	amount := req.IncomingAmount
	payment = openpayments.IncomingPayment{
		Id:             m.ResourceServer() + "/incoming-payments/" + uuid.NewString(),
		WalletAddress:  wallet.Id,
		IncomingAmount: &amount,
		ReceivedAmount: openpayments.Amount{Value: "0", AssetCode: wallet.AssetCode, AssetScale: wallet.AssetScale},
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      time.Now().UTC(),
	}
	m.incoming[payment.Id] = payment
	return payment, nil
}

func (m *Mock) CreateQuote(ctx context.Context, req openpayments.QuoteRequest) (quote openpayments.Quote, err error) {
	err = m.enter(ctx, OpCreateQuote)
	if err != nil {
		return quote, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, err = m.authorized(req.AccessToken, openpayments.AccessQuote)
	if err != nil {
		return quote, err
	}
	wallet, found := m.wallets[req.WalletAddress]
	if !found {
		return quote, fmt.Errorf("%w: unknown wallet address: %s", openpayments.ErrResource, req.WalletAddress)
	}
	incoming, found := m.incoming[req.Receiver]
	if !found || incoming.IncomingAmount == nil {
		return quote, fmt.Errorf("%w: unknown receiver: %s", openpayments.ErrResource, req.Receiver)
	}
	if req.Method != openpayments.MethodILP {
		return quote, fmt.Errorf("%w: unsupported method: %s", openpayments.ErrResource, req.Method)
	}

	receive, err := strconv.ParseUint(incoming.IncomingAmount.Value, 10, 64)
	if err != nil {
		return quote, fmt.Errorf("%w: invalid incoming amount: %w", openpayments.ErrResource, err)
	}

	quote = openpayments.Quote{
		Id:            wallet.ResourceServer + "/quotes/" + uuid.NewString(),
		WalletAddress: wallet.Id,
		Receiver:      incoming.Id,
		DebitAmount: openpayments.Amount{
			Value:      strconv.FormatUint(receive+m.fee, 10),
			AssetCode:  wallet.AssetCode,
			AssetScale: wallet.AssetScale,
		},
		ReceiveAmount: *incoming.IncomingAmount,
		Method:        req.Method,
		ExpiresAt:     time.Now().Add(5 * time.Minute).UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	m.quotes[quote.Id] = quote
	return quote, nil
}

func exceeds(limit *openpayments.Limits, debit openpayments.Amount) bool {
	if limit == nil || limit.DebitAmount == nil {
		return false
	}
	max, err := strconv.ParseUint(limit.DebitAmount.Value, 10, 64)
	if err != nil {
		return true
	}
	value, err := strconv.ParseUint(debit.Value, 10, 64)
	if err != nil {
		return true
	}
	return value > max || limit.DebitAmount.AssetCode != debit.AssetCode
}

func (m *Mock) CreateOutgoingPayment(ctx context.Context, req openpayments.OutgoingPaymentRequest) (payment openpayments.OutgoingPayment, err error) {
	err = m.enter(ctx, OpCreateOutgoingPayment)
	if err != nil {
		return payment, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	access, err := m.authorized(req.AccessToken, openpayments.AccessOutgoingPayment)
	if err != nil {
		return payment, err
	}
	quote, found := m.quotes[req.QuoteId]
	if !found {
		return payment, fmt.Errorf("%w: unknown quote: %s", openpayments.ErrResource, req.QuoteId)
	}
	if m.spentQuotes[quote.Id] {
		return payment, fmt.Errorf("%w: quote already used: %s", openpayments.ErrResource, req.QuoteId)
	}
	if quote.WalletAddress != req.WalletAddress {
		return payment, fmt.Errorf("%w: quote belongs to another wallet", openpayments.ErrResource)
	}
	if access.Identifier != "" && access.Identifier != req.WalletAddress {
		return payment, fmt.Errorf("%w: token issued for another wallet", openpayments.ErrResource)
	}
	if exceeds(access.Limits, quote.DebitAmount) {
		return payment, fmt.Errorf("%w: debit amount exceeds grant limits", openpayments.ErrResource)
	}

	payment = openpayments.OutgoingPayment{
		Id:            m.ResourceServer() + "/outgoing-payments/" + uuid.NewString(),
		WalletAddress: req.WalletAddress,
		QuoteId:       quote.Id,
		Receiver:      quote.Receiver,
		DebitAmount:   quote.DebitAmount,
		ReceiveAmount: quote.ReceiveAmount,
		SentAmount:    openpayments.Amount{Value: "0", AssetCode: quote.DebitAmount.AssetCode, AssetScale: quote.DebitAmount.AssetScale},
		CreatedAt:     time.Now().UTC(),
	}
	m.spentQuotes[quote.Id] = true
	m.outgoing[payment.Id] = payment
	return payment, nil
}
