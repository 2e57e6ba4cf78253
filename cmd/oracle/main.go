package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ghostagent/ghost-oracle/internal/audit"
	"github.com/ghostagent/ghost-oracle/internal/chain"
	"github.com/ghostagent/ghost-oracle/internal/config"
	"github.com/ghostagent/ghost-oracle/internal/executor"
	"github.com/ghostagent/ghost-oracle/internal/guard"
	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/ghostagent/ghost-oracle/internal/monitor"
	"github.com/ghostagent/ghost-oracle/internal/processor"
	"github.com/ghostagent/ghost-oracle/internal/signer"
	"github.com/ghostagent/ghost-oracle/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file for local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v. Proceeding with environment variables.", err)
	}

	logger.InitLogger()
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		logger.Fatal("cannot connect to RPC", zap.String("rpc_url", cfg.RPCURL), zap.Error(err))
	}
	defer client.Close()

	// Every chain call carries its own deadline so a dark node connection
	// fails the call instead of hanging a monitoring tick.
	backend := chain.WithDeadline(client, cfg.RPCTimeout)

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chainID, err := backend.ChainID(startupCtx)
	if err != nil {
		logger.Fatal("cannot read chain ID from RPC", zap.String("rpc_url", cfg.RPCURL), zap.Error(err))
	}
	logger.Info("connected to chain",
		zap.String("chain_id", chainID.String()),
		zap.String("contract", cfg.ContractAddress.Hex()),
	)

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OraclePrivateKey, "0x"))
	if err != nil {
		logger.Fatal("invalid ORACLE_PRIVATE_KEY", zap.Error(err))
	}
	if derived := crypto.PubkeyToAddress(key.PublicKey); derived != cfg.OracleAddress {
		logger.Warn("ORACLE_ADDRESS does not match the address derived from ORACLE_PRIVATE_KEY",
			zap.String("configured", cfg.OracleAddress.Hex()),
			zap.String("derived", derived.Hex()),
		)
	}

	var processed store.ProcessedSet
	if cfg.StateDir != "" {
		processed, err = store.NewPebble(cfg.StateDir)
		if err != nil {
			logger.Fatal("cannot open processed-intents store", zap.String("state_dir", cfg.StateDir), zap.Error(err))
		}
		logger.Info("using durable processed-intents store", zap.String("state_dir", cfg.StateDir))
	} else {
		processed = store.NewMemory()
		logger.Warn("using in-memory processed-intents store; history is lost on restart")
	}
	defer func() {
		if err := processed.Close(); err != nil {
			logger.Error("failed to close processed-intents store", zap.Error(err))
		}
	}()

	gateway := chain.NewContractGateway(backend, cfg.ContractAddress)
	saltGuard := guard.New(gateway)

	payloads := audit.NewPayloadClient(cfg.IntentStoreURL, cfg.HTTPTimeout)
	var risk audit.RiskScorer
	if cfg.RiskAPIKey != "" {
		risk = audit.NewRiskClient(cfg.RiskAPIURL, cfg.RiskAPIKey, cfg.HTTPTimeout)
	} else {
		logger.Warn("no risk service credential configured, external risk check will pass unconditionally")
	}
	engine := audit.NewEngine(cfg, payloads, risk)

	intentSigner := signer.New(key, saltGuard)
	exec := executor.New(backend, gateway, saltGuard, key, cfg.OracleAddress, chainID,
		cfg.ReceiptPollInterval, cfg.ReceiptTimeout)

	proc := processor.New(engine, saltGuard, intentSigner, exec, gateway, processed, cfg.TxFailurePolicy)
	mon := monitor.New(gateway, proc, cfg.PollInterval)

	if err := mon.Start(startupCtx); err != nil {
		logger.Fatal("cannot start event monitor", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")
	mon.Stop()
}
