// Package sessions holds the payment session record and the Store contract
// its backends implement.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/RogueTeam/ilpgateway/openpayments"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
)

type Status string

const (
	StatusPendingAuthorization Status = "pending-authorization"
	// Claimed by a running completion. Never returned to PendingAuthorization
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusErrored    Status = "errored"
)

var Statuses = []Status{
	StatusPendingAuthorization,
	StatusCompleting,
	StatusCompleted,
	StatusCancelled,
	StatusErrored,
}

// Final reports if no further transition is allowed out of s
func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusErrored
}

type (
	OutgoingGrant struct {
		// Continuation URI of the pending grant
		ContinueUri string
		// Access token required to continue the grant
		ContinueToken string
		// URL the user visits to authorize the payment
		RedirectUrl string
	}
	Session struct {
		// Unguessable identifier of the session
		Id     string
		Status Status
		// Creation time. Sessions older than the TTL are removed regardless of status
		CreatedAt   time.Time
		CompletedAt time.Time `json:",omitzero"`
		// Time after which a completed session is no longer served
		RemoveAt time.Time `json:",omitzero"`
		// Requested amount in the receiver minor unit
		Amount uint64
		// Receiving wallet as provided by the caller
		ReceivingWalletUrl string
		SendingWallet      openpayments.WalletAddress
		ReceivingWallet    openpayments.WalletAddress
		IncomingPaymentId  string
		Quote              openpayments.Quote
		OutgoingGrant      OutgoingGrant
		// Only set after completion
		OutgoingPayment *openpayments.OutgoingPayment `json:",omitempty"`
		// Message of the failure that moved the session to errored
		LastError string `json:",omitempty"`
	}
)

// Expired reports if the session should be treated as absent at now.
// A zero ttl disables age based expiration
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl > 0 && !now.Before(s.CreatedAt.Add(ttl)) {
		return true
	}
	return !s.RemoveAt.IsZero() && !now.Before(s.RemoveAt)
}

// Deadline returns the moment the session expires
func (s *Session) Deadline(ttl time.Duration) (deadline time.Time) {
	if ttl > 0 {
		deadline = s.CreatedAt.Add(ttl)
	}
	if !s.RemoveAt.IsZero() && (deadline.IsZero() || s.RemoveAt.Before(deadline)) {
		deadline = s.RemoveAt
	}
	return deadline
}

func (s *Session) SetError(err error) {
	if err == nil {
		return
	}

	s.Status = StatusErrored
	s.LastError = err.Error()
}

func (s *Session) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(s)
	return bytes
}

func (s *Session) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, s)
}

// Mutator changes a session inside Store.Update. Returning an error aborts
// the update leaving the stored session untouched
type Mutator func(s *Session) (err error)

// Store owns every session. Implementations are safe for concurrent use
type Store interface {
	// Create persists a new session. Fails with ErrExists if the id is in use
	Create(ctx context.Context, s Session) (err error)
	// Get returns the session identified by id or ErrNotFound
	Get(ctx context.Context, id string) (s Session, err error)
	// Update atomically applies fn to the session identified by id and stores
	// the result. No other Update or Delete on the same id interleaves
	Update(ctx context.Context, id string, fn Mutator) (s Session, err error)
	// Delete removes the session identified by id or fails with ErrNotFound
	Delete(ctx context.Context, id string) (err error)
	// Stream sends every stored session in no particular order. The error
	// channel receives a single value once sessions is closed. sessions
	// must be consumed
	Stream(ctx context.Context) (sessions <-chan Session, err <-chan error)
}
