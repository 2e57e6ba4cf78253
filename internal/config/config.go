// Package config loads the oracle's process configuration from the
// environment into a single immutable set, read once at startup.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction-failure policies. They decide whether an intent whose audit
// passed but whose on-chain submission failed is marked processed (abandon)
// or left for a later monitoring cycle (retry).
const (
	TxFailurePolicyAbandon = "abandon"
	TxFailurePolicyRetry   = "retry"
)

// Config is the complete, immutable process configuration.
type Config struct {
	// Chain
	RPCURL          string
	ContractAddress common.Address
	OracleAddress   common.Address
	// OraclePrivateKey is the hex-encoded ECDSA key; it is parsed once in
	// main and never logged.
	OraclePrivateKey string

	// Off-chain collaborators
	IntentStoreURL string
	RiskAPIURL     string
	RiskAPIKey     string

	// CRA thresholds
	AllowedCountries   map[string]struct{}
	MaxAmountWei       *big.Int
	TimeWindow         time.Duration
	RiskScoreThreshold int

	// Timing
	PollInterval        time.Duration
	HTTPTimeout         time.Duration
	RPCTimeout          time.Duration
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration

	// State
	StateDir        string
	TxFailurePolicy string
}

// Load reads configuration from the environment. Missing required keys or
// unparseable values return an error; the caller treats that as fatal.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:           getEnvWithDefault("RPC_URL", "http://127.0.0.1:8545"),
		OraclePrivateKey: os.Getenv("ORACLE_PRIVATE_KEY"),
		IntentStoreURL:   strings.TrimSuffix(os.Getenv("INTENT_STORE_URL"), "/"),
		RiskAPIURL:       getEnvWithDefault("RISK_API_URL", "https://api.riskservice.io/check"),
		RiskAPIKey:       os.Getenv("RISK_API_KEY"),
		StateDir:         os.Getenv("STATE_DIR"),
		TxFailurePolicy:  getEnvWithDefault("TX_FAILURE_POLICY", TxFailurePolicyAbandon),
	}

	contractAddr := os.Getenv("CONTRACT_ADDRESS")
	if contractAddr == "" {
		return nil, fmt.Errorf("CONTRACT_ADDRESS environment variable is required")
	}
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("CONTRACT_ADDRESS is not a valid address: %s", contractAddr)
	}
	cfg.ContractAddress = common.HexToAddress(contractAddr)

	oracleAddr := os.Getenv("ORACLE_ADDRESS")
	if oracleAddr == "" {
		return nil, fmt.Errorf("ORACLE_ADDRESS environment variable is required")
	}
	if !common.IsHexAddress(oracleAddr) {
		return nil, fmt.Errorf("ORACLE_ADDRESS is not a valid address: %s", oracleAddr)
	}
	cfg.OracleAddress = common.HexToAddress(oracleAddr)

	if cfg.OraclePrivateKey == "" {
		return nil, fmt.Errorf("ORACLE_PRIVATE_KEY environment variable is required")
	}
	if cfg.IntentStoreURL == "" {
		return nil, fmt.Errorf("INTENT_STORE_URL environment variable is required")
	}

	cfg.AllowedCountries = parseCountrySet(getEnvWithDefault("ALLOWED_COUNTRIES", "US,CA,GB,DE"))
	if len(cfg.AllowedCountries) == 0 {
		return nil, fmt.Errorf("ALLOWED_COUNTRIES must contain at least one country code")
	}

	maxAmount := getEnvWithDefault("MAX_AMOUNT_WEI", "1000000000000000000")
	amount, ok := new(big.Int).SetString(maxAmount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("MAX_AMOUNT_WEI is not a valid non-negative integer: %s", maxAmount)
	}
	cfg.MaxAmountWei = amount

	windowSeconds, err := parseIntEnv("TIME_WINDOW_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.TimeWindow = time.Duration(windowSeconds) * time.Second

	cfg.RiskScoreThreshold, err = parseIntEnv("RISK_SCORE_THRESHOLD", 70)
	if err != nil {
		return nil, err
	}

	if cfg.PollInterval, err = parseDurationEnv("POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = parseDurationEnv("HTTP_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RPCTimeout, err = parseDurationEnv("RPC_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReceiptPollInterval, err = parseDurationEnv("RECEIPT_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReceiptTimeout, err = parseDurationEnv("RECEIPT_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}

	if cfg.TxFailurePolicy != TxFailurePolicyAbandon && cfg.TxFailurePolicy != TxFailurePolicyRetry {
		return nil, fmt.Errorf("TX_FAILURE_POLICY must be %q or %q, got %q",
			TxFailurePolicyAbandon, TxFailurePolicyRetry, cfg.TxFailurePolicy)
	}

	return cfg, nil
}

// CountryAllowed reports whether the given country code, case-normalized,
// is in the allow-set.
func (c *Config) CountryAllowed(country string) bool {
	_, ok := c.AllowedCountries[strings.ToUpper(strings.TrimSpace(country))]
	return ok
}

func parseCountrySet(csv string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, code := range strings.Split(csv, ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %s", key, raw)
	}
	return value, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %s", key, raw)
	}
	return value, nil
}

func getEnvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
