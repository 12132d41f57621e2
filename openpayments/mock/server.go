package mock

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/RogueTeam/ilpgateway/internal/httpsig"
	"github.com/RogueTeam/ilpgateway/openpayments"
)

// Wire formats accepted by the fake servers
type (
	GrantRequestBody struct {
		AccessToken struct {
			Access []openpayments.Access `json:"access"`
		} `json:"access_token"`
		Client   string                 `json:"client"`
		Interact *openpayments.Interact `json:"interact,omitempty"`
	}
	ContinueRequestBody struct {
		InteractRef string `json:"interact_ref,omitempty"`
	}
	IncomingPaymentBody struct {
		WalletAddress  string              `json:"walletAddress"`
		IncomingAmount openpayments.Amount `json:"incomingAmount"`
		ExpiresAt      time.Time           `json:"expiresAt,omitzero"`
	}
	QuoteBody struct {
		WalletAddress string `json:"walletAddress"`
		Receiver      string `json:"receiver"`
		Method        string `json:"method"`
	}
	OutgoingPaymentBody struct {
		WalletAddress string `json:"walletAddress"`
		QuoteId       string `json:"quoteId"`
	}
	ErrorBody struct {
		Error string `json:"error"`
	}
)

type server struct {
	mock *Mock
	key  ed25519.PublicKey
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, openpayments.ErrWalletLookup):
		return http.StatusNotFound
	case errors.Is(err, openpayments.ErrGrant):
		return http.StatusUnauthorized
	case errors.Is(err, openpayments.ErrResource):
		return http.StatusBadRequest
	case errors.Is(err, openpayments.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Println("ERROR|ENCODING|RESPONSE", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorBody{Error: err.Error()})
}

func bearer(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "GNAP ")
	return token
}

// read verifies the request signature (when a key was configured) and
// decodes the body into v
func (s *server) read(w http.ResponseWriter, r *http.Request, v any) (ok bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: err.Error()})
		return false
	}

	if s.key != nil {
		err = httpsig.Verify(r, body, s.key)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: err.Error()})
			return false
		}
	}

	if v == nil || len(body) == 0 {
		return true
	}
	err = json.Unmarshal(body, v)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: err.Error()})
		return false
	}
	return true
}

func (s *server) walletAddress(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.mock.WalletAddress(r.Context(), openpayments.WalletAddressRequest{Url: s.mock.BaseUrl() + r.URL.Path})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *server) requestGrant(w http.ResponseWriter, r *http.Request) {
	var body GrantRequestBody
	if !s.read(w, r, &body) {
		return
	}

	grant, err := s.mock.RequestGrant(r.Context(), openpayments.GrantRequest{
		AuthServer: s.mock.AuthServer(),
		Access:     body.AccessToken.Access,
		Interact:   body.Interact,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (s *server) continueGrant(w http.ResponseWriter, r *http.Request) {
	var body ContinueRequestBody
	if !s.read(w, r, &body) {
		return
	}

	grant, err := s.mock.ContinueGrant(r.Context(), openpayments.ContinueRequest{
		Uri:         s.mock.BaseUrl() + r.URL.Path,
		AccessToken: bearer(r),
		InteractRef: body.InteractRef,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

// interact plays the role of the wallet's consent screen: visiting the
// redirect URL approves the grant
func (s *server) interact(w http.ResponseWriter, r *http.Request) {
	err := s.mock.Authorize(s.mock.BaseUrl() + r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}

func (s *server) createIncomingPayment(w http.ResponseWriter, r *http.Request) {
	var body IncomingPaymentBody
	if !s.read(w, r, &body) {
		return
	}

	payment, err := s.mock.CreateIncomingPayment(r.Context(), openpayments.IncomingPaymentRequest{
		ResourceServer: s.mock.ResourceServer(),
		AccessToken:    bearer(r),
		WalletAddress:  body.WalletAddress,
		IncomingAmount: body.IncomingAmount,
		ExpiresAt:      body.ExpiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (s *server) createQuote(w http.ResponseWriter, r *http.Request) {
	var body QuoteBody
	if !s.read(w, r, &body) {
		return
	}

	quote, err := s.mock.CreateQuote(r.Context(), openpayments.QuoteRequest{
		ResourceServer: s.mock.ResourceServer(),
		AccessToken:    bearer(r),
		WalletAddress:  body.WalletAddress,
		Receiver:       body.Receiver,
		Method:         body.Method,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quote)
}

func (s *server) createOutgoingPayment(w http.ResponseWriter, r *http.Request) {
	var body OutgoingPaymentBody
	if !s.read(w, r, &body) {
		return
	}

	payment, err := s.mock.CreateOutgoingPayment(r.Context(), openpayments.OutgoingPaymentRequest{
		ResourceServer: s.mock.ResourceServer(),
		AccessToken:    bearer(r),
		WalletAddress:  body.WalletAddress,
		QuoteId:        body.QuoteId,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// Handler serves m over HTTP using the Open Payments wire format. When key is
// not nil every POST must carry a valid signature made with its private pair.
// It is a plain http.Handler: the gateway binary mounts it inside its gin
// engine through gin.WrapH, tests serve it with httptest
func Handler(m *Mock, key ed25519.PublicKey) http.Handler {
	s := &server{mock: m, key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+AuthPath, s.requestGrant)
	mux.HandleFunc("POST "+ContinuePath+"{id}", s.continueGrant)
	mux.HandleFunc("GET "+InteractPath+"{id}", s.interact)
	mux.HandleFunc("POST /incoming-payments", s.createIncomingPayment)
	mux.HandleFunc("POST /quotes", s.createQuote)
	mux.HandleFunc("POST /outgoing-payments", s.createOutgoingPayment)
	mux.HandleFunc("GET /{wallet...}", s.walletAddress)
	return mux
}

// NewServer starts an HTTP server backed by a new Mock whose BaseUrl is the
// server URL. The caller closes the server
func NewServer(config Config, key ed25519.PublicKey) (m *Mock, srv *httptest.Server) {
	var handler http.Handler
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))

	config.BaseUrl = srv.URL
	m = New(config)
	handler = Handler(m, key)
	return m, srv
}
