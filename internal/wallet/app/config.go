package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xian-network/go-uwp/internal/wallet/chain"
	"github.com/xian-network/go-uwp/pkg/protocol"
)

type Config struct {
	Host string // Listener host (default: 127.0.0.1, the protocol is wallet-local)
	Port int    // Listener port (default: 8545)

	WalletType     protocol.WalletType // Kind of wallet serving the protocol (default: cli)
	WalletPassword string              // Required: unlock password
	WalletSeed     string              // Optional: 64 hex chars for a deterministic key (default: random)

	NetworkURL string // Chain node RPC URL (default: public testnet)
	ChainID    string // Chain identifier (default: xian-testnet-1)
	ChainMode  string // Chain client mode (http, mock) (default: http)

	CORSMode    string   // CORS preset (development, localhost, production) (default: localhost)
	CORSOrigins []string // Allowed origins for the production preset

	SessionTTL  time.Duration // Session absolute expiry (default: 60m)
	RequestTTL  time.Duration // Pending authorization expiry (default: 5m)
	CacheTTL    time.Duration // Balance cache TTL (default: 30s)
	MaxSessions int           // Concurrent session bound (default: 10)
	MaxPending  int           // Pending request bound (default: 10)

	UnlockLockout time.Duration // Lockout after repeated unlock failures (default: 5m)

	StartupMaxRetries    int           // Bind retries before giving up (default: 3)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Sweep interval (default: 30s)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
}

func LoadConfig() Config {
	cfg := Config{
		Host: getEnvOrDefault("UWP_HOST", protocol.DefaultHost),
		Port: getEnvIntOrDefault("UWP_PORT", protocol.DefaultPort),

		WalletType:     protocol.WalletType(getEnvOrDefault("UWP_WALLET_TYPE", string(protocol.WalletTypeCLI))),
		WalletPassword: os.Getenv("UWP_WALLET_PASSWORD"),
		WalletSeed:     os.Getenv("UWP_WALLET_SEED"),

		NetworkURL: getEnvOrDefault("UWP_NETWORK_URL", chain.DefaultNetworkURL),
		ChainID:    getEnvOrDefault("UWP_CHAIN_ID", "xian-testnet-1"),
		ChainMode:  getEnvOrDefault("UWP_CHAIN_MODE", "http"),

		CORSMode: getEnvOrDefault("UWP_CORS_MODE", "localhost"),

		SessionTTL:  getEnvDurationOrDefault("UWP_SESSION_TTL", protocol.DefaultSessionTTL),
		RequestTTL:  getEnvDurationOrDefault("UWP_REQUEST_TTL", protocol.DefaultRequestTTL),
		CacheTTL:    getEnvDurationOrDefault("UWP_CACHE_TTL", protocol.DefaultCacheTTL),
		MaxSessions: getEnvIntOrDefault("UWP_MAX_SESSIONS", protocol.DefaultMaxSessions),
		MaxPending:  getEnvIntOrDefault("UWP_MAX_PENDING", protocol.DefaultMaxPending),

		UnlockLockout: getEnvDurationOrDefault("UWP_UNLOCK_LOCKOUT", protocol.DefaultLockout),

		StartupMaxRetries:    getEnvIntOrDefault("UWP_STARTUP_MAX_RETRIES", 3),
		ShutdownGracePeriod:  getEnvDurationOrDefault("UWP_SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("UWP_HOUSEKEEPING_INTERVAL", 30*time.Second),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
	}

	if origins := os.Getenv("UWP_CORS_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are read as seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
