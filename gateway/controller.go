// Package gateway drives payment sessions through the Open Payments flow:
// initiation, user authorization, completion, cancellation and expiry.
package gateway

import (
	"strings"
	"time"

	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/sessions"
)

const (
	DefaultMaxAmount     = 10_000_000
	DefaultTTL           = time.Hour
	DefaultGrace         = 5 * time.Minute
	DefaultCallTimeout   = 30 * time.Second
	DefaultSweepInterval = 30 * time.Minute
)

type Controller struct {
	store         sessions.Store
	client        openpayments.Client
	sendingWallet string
	maxAmount     uint64
	allowedHosts  []string
	trustedPrefix string
	ttl           time.Duration
	grace         time.Duration
	callTimeout   time.Duration
	now           func() time.Time
	started       time.Time
}

type Config struct {
	// Store holding every session
	Store sessions.Store
	// Open Payments network
	Client openpayments.Client
	// Wallet address debited by every payment
	// Example: https://ilp.interledger-test.dev/sender
	SendingWallet string
	// Largest amount accepted by Initiate. Defaults to DefaultMaxAmount
	MaxAmount uint64
	// When set, receiving wallet hosts must contain one of these values
	AllowedHosts []string
	// Wallet URLs under this prefix skip the HTTPS and host rules. Set to the
	// mock network base URL, which is usually served over plain HTTP
	TrustedWalletPrefix string
	// Age after which a session is removed regardless of its status
	TTL time.Duration
	// Time a completed session stays queryable
	Grace time.Duration
	// Bound of every Open Payments call
	CallTimeout time.Duration
	// Clock. Defaults to time.Now
	Now func() time.Time
}

func New(config Config) (ctrl Controller) {
	ctrl.store = config.Store
	ctrl.client = config.Client
	ctrl.sendingWallet = config.SendingWallet
	ctrl.maxAmount = config.MaxAmount
	ctrl.allowedHosts = config.AllowedHosts
	ctrl.trustedPrefix = strings.TrimRight(config.TrustedWalletPrefix, "/")
	ctrl.ttl = config.TTL
	ctrl.grace = config.Grace
	ctrl.callTimeout = config.CallTimeout
	ctrl.now = config.Now

	if ctrl.maxAmount == 0 {
		ctrl.maxAmount = DefaultMaxAmount
	}
	if ctrl.ttl <= 0 {
		ctrl.ttl = DefaultTTL
	}
	if ctrl.grace <= 0 {
		ctrl.grace = DefaultGrace
	}
	if ctrl.callTimeout <= 0 {
		ctrl.callTimeout = DefaultCallTimeout
	}
	if ctrl.now == nil {
		ctrl.now = time.Now
	}
	ctrl.started = ctrl.now()
	return ctrl
}

func (c *Controller) SendingWallet() string { return c.sendingWallet }

func (c *Controller) MaxAmount() uint64 { return c.maxAmount }
