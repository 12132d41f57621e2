package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/RogueTeam/ilpgateway/gateway"
	"github.com/RogueTeam/ilpgateway/internal/httpsig"
	"github.com/RogueTeam/ilpgateway/openpayments"
	"github.com/RogueTeam/ilpgateway/openpayments/interledger"
	"github.com/RogueTeam/ilpgateway/openpayments/mock"
	"github.com/RogueTeam/ilpgateway/sessions"
	"github.com/RogueTeam/ilpgateway/sessions/badgerdb"
	"github.com/RogueTeam/ilpgateway/sessions/memory"
	"github.com/RogueTeam/ilpgateway/sessions/redisdb"
	"github.com/dgraph-io/badger/v4"
	"github.com/gabstv/httpdigest"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/proxy"
)

const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverRedis  = "redis"
)

// Name of the sending wallet registered in the mock network
const MockSendingWallet = "gateway"

var (
	ErrUnknownDriver   = errors.New("unknown store driver")
	ErrConflictingAuth = errors.New("digest authentication cannot be combined with a socks5 proxy")
)

// Yaml configuration reference
type (
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password,omitempty"`
		DB       int    `yaml:"db"`
	}
	Store struct {
		// memory, badger or redis
		Driver string `yaml:"driver"`
		// Badger directory
		Path  string `yaml:"path,omitempty"`
		Redis Redis  `yaml:"redis"`
	}
	OpenPayments struct {
		WalletAddress  string `yaml:"wallet-address"`
		KeyId          string `yaml:"key-id"`
		PrivateKeyPath string `yaml:"private-key-path"`
		// Digest credentials sent to the wallet servers
		Username *string `yaml:"username,omitempty"`
		Password *string `yaml:"password,omitempty"`
		// SOCKS5 proxy every wallet request is dialed through. Example: 127.0.0.1:9050
		Socks5 string `yaml:"socks5,omitempty"`
	}
	Mock struct {
		// Public URL the mock network is served at. Interaction redirects point here
		BaseUrl    string   `yaml:"base-url"`
		Fee        uint64   `yaml:"fee"`
		AssetCode  string   `yaml:"asset-code"`
		AssetScale uint8    `yaml:"asset-scale"`
		Wallets    []string `yaml:"wallets"`
	}
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	}
	Config struct {
		ListenAddress  string        `yaml:"listen-address"`
		SweepInterval  time.Duration `yaml:"sweep-interval"`
		SessionTTL     time.Duration `yaml:"session-ttl"`
		CompletedGrace time.Duration `yaml:"completed-grace"`
		CallTimeout    time.Duration `yaml:"call-timeout"`
		MaxAmount      uint64        `yaml:"max-amount"`
		AllowedHosts   []string      `yaml:"allowed-hosts,omitempty"`
		Store          Store         `yaml:"store"`
		OpenPayments   OpenPayments  `yaml:"open-payments"`
		Mock           Mock          `yaml:"mock"`
		RateLimit      *RateLimit    `yaml:"rate-limit,omitempty"`
	}
)

// Compiled holds everything built from the configuration
type Compiled struct {
	Controller gateway.Controller
	// Set when running against the mock network
	Network *mock.Mock
	// Releases the store
	Close func() error
}

func (c *Config) openStore() (store sessions.Store, closer func() error, err error) {
	switch c.Store.Driver {
	case "", DriverMemory:
		return memory.New(), func() error { return nil }, nil
	case DriverBadger:
		db, err := badger.Open(badger.DefaultOptions(c.Store.Path))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return badgerdb.New(badgerdb.Config{DB: db}), db.Close, nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Store.Redis.Address,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err = client.Ping(ctx).Err()
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store = redisdb.New(redisdb.Config{Client: client, TTL: c.sessionTTL()})
		return store, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownDriver, c.Store.Driver)
	}
}

func (c *Config) sessionTTL() time.Duration {
	if c.SessionTTL <= 0 {
		return gateway.DefaultTTL
	}
	return c.SessionTTL
}

// client builds the Open Payments client. Key problems are reported as
// openpayments.ErrInvalidCredentials
func (c *Config) client() (client openpayments.Client, err error) {
	contents, err := os.ReadFile(c.OpenPayments.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read private key: %w", openpayments.ErrInvalidCredentials, err)
	}
	key, err := httpsig.LoadPrivateKey(contents)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", openpayments.ErrInvalidCredentials, err)
	}

	var (
		httpClient http.Client
		digest     = c.OpenPayments.Username != nil && c.OpenPayments.Password != nil
	)
	switch {
	case digest && c.OpenPayments.Socks5 != "":
		return nil, fmt.Errorf("%w: %w", openpayments.ErrInvalidCredentials, ErrConflictingAuth)
	case digest:
		httpClient.Transport = httpdigest.New(*c.OpenPayments.Username, *c.OpenPayments.Password)
	case c.OpenPayments.Socks5 != "":
		httpClient.Transport, err = socks5Transport(c.OpenPayments.Socks5)
		if err != nil {
			return nil, err
		}
	}

	return interledger.New(interledger.Config{
		WalletAddressUrl: c.OpenPayments.WalletAddress,
		KeyId:            c.OpenPayments.KeyId,
		PrivateKey:       key,
		Client:           &httpClient,
	})
}

func socks5Transport(address string) (transport *http.Transport, err error) {
	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare socks5 dialer: %w", err)
	}

	transport = http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if d, ok := dialer.(proxy.ContextDialer); ok {
			return d.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}
	return transport, nil
}

func (c *Config) mockNetwork() (network *mock.Mock, sendingWallet string) {
	network = mock.New(mock.Config{BaseUrl: c.Mock.BaseUrl, Fee: c.Mock.Fee})

	assetCode := c.Mock.AssetCode
	if assetCode == "" {
		assetCode = "USD"
	}
	for _, name := range c.Mock.Wallets {
		network.AddWallet(name, assetCode, c.Mock.AssetScale)
	}
	sending := network.AddWallet(MockSendingWallet, assetCode, c.Mock.AssetScale)
	return network, sending.Id
}

func (c *Config) Compile(useMock bool) (compiled Compiled, err error) {
	var (
		client        openpayments.Client
		sendingWallet = strings.TrimSpace(c.OpenPayments.WalletAddress)
		trusted       string
	)
	if useMock {
		compiled.Network, sendingWallet = c.mockNetwork()
		client = compiled.Network
		trusted = compiled.Network.BaseUrl()
	} else {
		client, err = c.client()
		if err != nil {
			return compiled, fmt.Errorf("failed to prepare open payments client: %w", err)
		}
	}

	store, closer, err := c.openStore()
	if err != nil {
		return compiled, fmt.Errorf("failed to open session store: %w", err)
	}
	compiled.Close = closer

	compiled.Controller = gateway.New(gateway.Config{
		Store:         store,
		Client:        client,
		SendingWallet: sendingWallet,
		MaxAmount:     c.MaxAmount,
		AllowedHosts:  c.AllowedHosts,
		// Mock wallets live on the gateway's own listener
		TrustedWalletPrefix: trusted,
		TTL:                 c.sessionTTL(),
		Grace:               c.CompletedGrace,
		CallTimeout:         c.CallTimeout,
	})
	return compiled, nil
}
