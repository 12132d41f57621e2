package gateway

import (
	"errors"
	"strings"

	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/sessions"
)

var (
	ErrNotFound     = sessions.ErrNotFound
	ErrInvalidState = errors.New("invalid session state")
	// Authorization was not completed by the user yet
	ErrNotAuthorized = errors.New("authorization not yet completed by the user")
)

// ValidationError lists every rule an initiation request violates
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindWalletLookup   ErrorKind = "wallet-lookup"
	KindTimeout        ErrorKind = "timeout"
	KindGrant          ErrorKind = "grant"
	KindResource       ErrorKind = "resource"
	KindNotFound       ErrorKind = "not-found"
	KindInvalidState   ErrorKind = "invalid-state"
	KindInternalConfig ErrorKind = "internal-config"
	KindInternal       ErrorKind = "internal"
)

// Kind classifies err. Timeouts win over the kind of the failing call
func Kind(err error) ErrorKind {
	var validation *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.Is(err, openpayments.ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, openpayments.ErrWalletLookup):
		return KindWalletLookup
	case errors.Is(err, openpayments.ErrGrant), errors.Is(err, ErrNotAuthorized):
		return KindGrant
	case errors.Is(err, openpayments.ErrResource):
		return KindResource
	case errors.Is(err, openpayments.ErrInvalidCredentials):
		return KindInternalConfig
	default:
		return KindInternal
	}
}
