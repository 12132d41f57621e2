package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/RogueTeam/ilpgateway/cmd/gateway/internal/router"
	"github.com/RogueTeam/ilpgateway/gateway"
	"github.com/RogueTeam/ilpgateway/openpayments/mock"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// Set at build time with -ldflags "-X main.version=..."
var version = router.UnknownVersion

const (
	// Mock network mount point when running with -mock
	MockPath             = "/mock"
	DefaultListenAddress = ":3001"
)

var app struct {
	debug  bool
	mock   bool
	config string
}

func parseFlags() {
	flagset := flag.NewFlagSet("gateway", flag.ExitOnError)
	flagset.BoolVar(&app.debug, "debug", false, "set debug mode, errors include details")
	flagset.BoolVar(&app.mock, "mock", false, "use an in memory Open Payments network")
	flagset.StringVar(&app.config, "config", "config.yaml", "YAML configuration")
	err := flagset.Parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	parseFlags()
	if app.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	configContents, err := os.ReadFile(app.config)
	if err != nil {
		log.Fatal(err)
	}

	var cfg Config
	err = yaml.Unmarshal(configContents, &cfg)
	if err != nil {
		log.Fatal(err)
	}

	compiled, err := cfg.Compile(app.mock)
	if err != nil {
		log.Fatal(err)
	}
	defer compiled.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e := gin.Default()
	if compiled.Network != nil {
		handler := http.StripPrefix(MockPath, mock.Handler(compiled.Network, nil))
		e.Any(MockPath+"/*path", gin.WrapH(handler))
		log.Println("INFO|MOCK|NETWORK", strings.TrimRight(cfg.Mock.BaseUrl, "/"))
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = gateway.DefaultSweepInterval
	}
	var r = router.Router{
		SweepInterval: sweepInterval,
		Gateway:       &compiled.Controller,
		Base:          e,
		Debug:         app.debug,
		Version:       version,
	}
	if cfg.RateLimit != nil {
		r.RateLimiter = router.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	r.Register(ctx)

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	srv := &http.Server{Addr: cfg.ListenAddress, Handler: e}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Println("INFO|LISTENING|GATEWAY", cfg.ListenAddress, compiled.Controller.SendingWallet())
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
