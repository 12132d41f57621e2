package router

import (
	"time"

	"github.com/RogueTeam/ilpgateway/decimal"
	"github.com/RogueTeam/ilpgateway/gateway"
	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/sessions"
)

type InitiateRequest struct {
	ReceivingWallet string  `json:"receivingWallet"`
	Amount          float64 `json:"amount"`
}

func InitiateToGateway(src *InitiateRequest) (out gateway.Initiate) {
	return gateway.Initiate{
		ReceivingWalletUrl: src.ReceivingWallet,
		Amount:             src.Amount,
	}
}

type (
	Amount struct {
		// Integer amount in minor units
		Value      string `json:"value"`
		AssetCode  string `json:"assetCode"`
		AssetScale uint8  `json:"assetScale"`
		// Value in major units. Example: 5.05
		Formatted string `json:"formatted"`
	}
	InitiateResponse struct {
		SessionId        string          `json:"sessionId"`
		Status           sessions.Status `json:"status"`
		AuthorizationUrl string          `json:"authorizationUrl"`
		ContinueUrl      string          `json:"continueUrl"`
		Amount           uint64          `json:"amount"`
		DebitAmount      Amount          `json:"debitAmount"`
		ReceivingWallet  string          `json:"receivingWallet"`
		Message          string          `json:"message"`
	}
	OutgoingPayment struct {
		Id            string    `json:"id"`
		WalletAddress string    `json:"walletAddress"`
		QuoteId       string    `json:"quoteId"`
		Receiver      string    `json:"receiver"`
		DebitAmount   Amount    `json:"debitAmount"`
		ReceiveAmount Amount    `json:"receiveAmount"`
		CreatedAt     time.Time `json:"createdAt,omitzero"`
	}
	Summary struct {
		Amount          uint64    `json:"amount"`
		ReceivingWallet string    `json:"receivingWallet"`
		DebitAmount     Amount    `json:"debitAmount"`
		CompletedAt     time.Time `json:"completedAt"`
	}
	CompleteResponse struct {
		SessionId       string          `json:"sessionId"`
		Status          sessions.Status `json:"status"`
		OutgoingPayment OutgoingPayment `json:"outgoingPayment"`
		Summary         Summary         `json:"summary"`
		Message         string          `json:"message"`
	}
	StatusResponse struct {
		SessionId        string          `json:"sessionId"`
		Status           sessions.Status `json:"status"`
		Amount           uint64          `json:"amount"`
		ReceivingWallet  string          `json:"receivingWallet"`
		DebitAmount      Amount          `json:"debitAmount"`
		AuthorizationUrl string          `json:"authorizationUrl,omitzero"`
		CreatedAt        time.Time       `json:"createdAt"`
		CompletedAt      *time.Time      `json:"completedAt"`
		Error            string          `json:"error,omitzero"`
	}
	CancelResponse struct {
		SessionId string `json:"sessionId"`
		Message   string `json:"message"`
	}
	HealthResponse struct {
		Status         string    `json:"status"`
		Timestamp      time.Time `json:"timestamp"`
		ActiveSessions int       `json:"activeSessions"`
		Uptime         string    `json:"uptime"`
	}
	StatsResponse struct {
		Total    int                     `json:"total"`
		Active   int                     `json:"active"`
		ByStatus map[sessions.Status]int `json:"byStatus"`
		Oldest   *time.Time              `json:"oldest"`
		Uptime   string                  `json:"uptime"`
	}
	ConfigResponse struct {
		SendingWallet string `json:"sendingWallet"`
		MaxAmount     uint64 `json:"maxAmount"`
		Environment   string `json:"environment"`
		Version       string `json:"version"`
	}
	ErrorResponse struct {
		Error    gateway.ErrorKind `json:"error"`
		Message  string            `json:"message"`
		Problems []string          `json:"problems,omitempty"`
		// Raw error. Only in debug mode
		Details string `json:"details,omitzero"`
	}
)

func AmountFromOpenPayments(src openpayments.Amount) (amount Amount) {
	amount = Amount{
		Value:      src.Value,
		AssetCode:  src.AssetCode,
		AssetScale: src.AssetScale,
		Formatted:  src.Value,
	}
	var d decimal.Decimal
	if d.FromMinorString(src.Value, src.AssetScale) == nil {
		amount.Formatted = d.String()
	}
	return amount
}

func InitiateFromGateway(src *gateway.Initiated) InitiateResponse {
	return InitiateResponse{
		SessionId:        src.SessionId,
		Status:           src.Status,
		AuthorizationUrl: src.AuthorizationUrl,
		ContinueUrl:      src.ContinueUrl,
		Amount:           src.Amount,
		DebitAmount:      AmountFromOpenPayments(src.DebitAmount),
		ReceivingWallet:  src.ReceivingWallet,
		Message:          "payment initiated, user authorization required",
	}
}

func CompleteFromGateway(src *gateway.Completed) CompleteResponse {
	return CompleteResponse{
		SessionId: src.SessionId,
		Status:    src.Status,
		OutgoingPayment: OutgoingPayment{
			Id:            src.OutgoingPayment.Id,
			WalletAddress: src.OutgoingPayment.WalletAddress,
			QuoteId:       src.OutgoingPayment.QuoteId,
			Receiver:      src.OutgoingPayment.Receiver,
			DebitAmount:   AmountFromOpenPayments(src.OutgoingPayment.DebitAmount),
			ReceiveAmount: AmountFromOpenPayments(src.OutgoingPayment.ReceiveAmount),
			CreatedAt:     src.OutgoingPayment.CreatedAt,
		},
		Summary: Summary{
			Amount:          src.Summary.Amount,
			ReceivingWallet: src.Summary.ReceivingWallet,
			DebitAmount:     AmountFromOpenPayments(src.Summary.DebitAmount),
			CompletedAt:     src.Summary.CompletedAt,
		},
		Message: "payment completed",
	}
}

// Convert from the gateway report hiding grant tokens
func StatusFromGateway(src *gateway.Report) StatusResponse {
	return StatusResponse{
		SessionId:        src.SessionId,
		Status:           src.Status,
		Amount:           src.Amount,
		ReceivingWallet:  src.ReceivingWallet,
		DebitAmount:      AmountFromOpenPayments(src.DebitAmount),
		AuthorizationUrl: src.AuthorizationUrl,
		CreatedAt:        src.CreatedAt,
		CompletedAt:      src.CompletedAt,
		Error:            src.Error,
	}
}

func StatsFromGateway(src *gateway.Stats) (stats StatsResponse) {
	stats = StatsResponse{
		Total:    src.Total,
		Active:   src.Active,
		ByStatus: src.ByStatus,
		Uptime:   src.Uptime.Round(time.Second).String(),
	}
	if !src.Oldest.IsZero() {
		oldest := src.Oldest
		stats.Oldest = &oldest
	}
	return stats
}
