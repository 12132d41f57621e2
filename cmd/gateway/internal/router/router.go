package router

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/RogueTeam/ilpgateway/gateway"
	"github.com/gin-gonic/gin"
)

// Manages the entire setup of the Gateway service
type Router struct {
	// Sweep interval. Zero disables the sweeper
	SweepInterval time.Duration
	// Gateway controller
	Gateway *gateway.Controller
	// Base Gin Group to use for routing
	Base gin.IRoutes
	// Optional per client rate limiting
	RateLimiter *RateLimiter
	// Include raw errors in responses
	Debug   bool
	Version string
}

const (
	IdParam            = "id"
	PaymentsPath       = "/payments"
	PaymentsPathWithId = PaymentsPath + "/:" + IdParam
	CompletePathWithId = PaymentsPathWithId + "/complete"
	HealthPath         = "/health"
	StatsPath          = "/stats"
	ConfigPath         = "/config"
	EnvironmentDebug   = "debug"
	EnvironmentRelease = "release"
	UnknownVersion     = "dev"
)

var messages = map[gateway.ErrorKind]string{
	gateway.KindValidation:     "invalid payment request",
	gateway.KindWalletLookup:   "wallet address could not be resolved",
	gateway.KindTimeout:        "the payment network did not answer in time",
	gateway.KindGrant:          "payment authorization failed",
	gateway.KindResource:       "the payment network rejected the request",
	gateway.KindNotFound:       "session not found or expired",
	gateway.KindInvalidState:   "session is not in a valid state for this operation",
	gateway.KindInternalConfig: "gateway is misconfigured",
	gateway.KindInternal:       "internal error",
}

func StatusFor(kind gateway.ErrorKind) int {
	switch kind {
	case gateway.KindValidation:
		return http.StatusBadRequest
	case gateway.KindWalletLookup, gateway.KindGrant, gateway.KindResource:
		return http.StatusBadGateway
	case gateway.KindTimeout:
		return http.StatusGatewayTimeout
	case gateway.KindNotFound:
		return http.StatusNotFound
	case gateway.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) abort(ctx *gin.Context, err error) {
	kind := gateway.Kind(err)
	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		log.Println("ERROR|HANDLING|REQUEST", ctx.Request.Method, ctx.FullPath(), err)
	}

	out := ErrorResponse{
		Error:   kind,
		Message: messages[kind],
	}
	var validation *gateway.ValidationError
	if errors.As(err, &validation) {
		out.Problems = validation.Problems
	}
	if r.Debug {
		out.Details = err.Error()
	}
	ctx.Error(err)
	ctx.AbortWithStatusJSON(status, &out)
}

func (r *Router) initiate(ctx *gin.Context) {
	var req InitiateRequest
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		r.abort(ctx, &gateway.ValidationError{Problems: []string{"body must be a JSON object with receivingWallet and a numeric amount"}})
		return
	}

	initiated, err := r.Gateway.Initiate(ctx, InitiateToGateway(&req))
	if err != nil {
		r.abort(ctx, err)
		return
	}
	out := InitiateFromGateway(&initiated)
	ctx.JSON(http.StatusCreated, &out)
}

func (r *Router) complete(ctx *gin.Context) {
	completed, err := r.Gateway.Complete(ctx, ctx.Param(IdParam))
	if err != nil {
		r.abort(ctx, err)
		return
	}
	out := CompleteFromGateway(&completed)
	ctx.JSON(http.StatusOK, &out)
}

func (r *Router) status(ctx *gin.Context) {
	report, err := r.Gateway.Status(ctx, ctx.Param(IdParam))
	if err != nil {
		r.abort(ctx, err)
		return
	}
	out := StatusFromGateway(&report)
	ctx.JSON(http.StatusOK, &out)
}

func (r *Router) cancel(ctx *gin.Context) {
	id := ctx.Param(IdParam)
	err := r.Gateway.Cancel(ctx, id)
	if err != nil {
		r.abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, &CancelResponse{SessionId: id, Message: "session cancelled"})
}

func (r *Router) health(ctx *gin.Context) {
	stats, err := r.Gateway.Stats(ctx)
	if err != nil {
		r.abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, &HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC(),
		ActiveSessions: stats.Active,
		Uptime:         stats.Uptime.Round(time.Second).String(),
	})
}

func (r *Router) stats(ctx *gin.Context) {
	stats, err := r.Gateway.Stats(ctx)
	if err != nil {
		r.abort(ctx, err)
		return
	}
	out := StatsFromGateway(&stats)
	ctx.JSON(http.StatusOK, &out)
}

func (r *Router) config(ctx *gin.Context) {
	out := ConfigResponse{
		SendingWallet: r.Gateway.SendingWallet(),
		MaxAmount:     r.Gateway.MaxAmount(),
		Environment:   EnvironmentRelease,
		Version:       r.Version,
	}
	if r.Debug {
		out.Environment = EnvironmentDebug
	}
	if out.Version == "" {
		out.Version = UnknownVersion
	}
	ctx.JSON(http.StatusOK, &out)
}

// Register routes in the Gin engine. Background jobs stop with ctx
func (r *Router) Register(ctx context.Context) {
	if r.RateLimiter != nil {
		r.Base.Use(r.RateLimiter.Middleware)
		go r.RateLimiter.Cleanup(ctx)
	}

	r.Base.POST(PaymentsPath, r.initiate)
	r.Base.POST(CompletePathWithId, r.complete)
	r.Base.GET(PaymentsPathWithId, r.status)
	r.Base.DELETE(PaymentsPathWithId, r.cancel)
	r.Base.GET(HealthPath, r.health)
	r.Base.GET(StatsPath, r.stats)
	r.Base.GET(ConfigPath, r.config)

	if r.SweepInterval > 0 {
		go r.Gateway.Sweeper(ctx, r.SweepInterval)
	}
}
