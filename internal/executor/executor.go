// Package executor builds, gas-estimates, signs, submits and confirms
// contract-mutating calls for the oracle's account.
package executor

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ghostagent/ghost-oracle/internal/chain"
	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Operation is the closed set of contract calls the executor can submit.
type Operation int

const (
	// OpVerifyIntent calls verifyIntent(intentHash, signature).
	OpVerifyIntent Operation = iota
	// OpSeizeAssets calls seizeAssets(intentHash).
	OpSeizeAssets
)

func (op Operation) String() string {
	switch op {
	case OpVerifyIntent:
		return "verifyIntent"
	case OpSeizeAssets:
		return "seizeAssets"
	default:
		return "unknown"
	}
}

// ErrReverted indicates a submitted transaction was mined with a failure
// status. It is fatal for the call; the executor never retries or re-signs.
var ErrReverted = errors.New("transaction reverted")

// ContractGuard aborts submission when the target contract fails its
// authenticity check.
type ContractGuard interface {
	Verify(ctx context.Context) error
}

// Executor submits contract calls through the state machine
// Build → EstimateGas → Sign → Send → AwaitReceipt.
type Executor struct {
	backend chain.Backend
	gateway *chain.ContractGateway
	guard   ContractGuard
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	logger  *zap.Logger

	receiptPollInterval time.Duration
	receiptTimeout      time.Duration
}

// New creates an executor for the oracle account. chainID is read once at
// startup and fixed for the process lifetime.
func New(backend chain.Backend, gateway *chain.ContractGateway, guard ContractGuard,
	key *ecdsa.PrivateKey, from common.Address, chainID *big.Int,
	receiptPollInterval, receiptTimeout time.Duration) *Executor {
	return &Executor{
		backend:             backend,
		gateway:             gateway,
		guard:               guard,
		key:                 key,
		from:                from,
		chainID:             chainID,
		logger:              logger.Log,
		receiptPollInterval: receiptPollInterval,
		receiptTimeout:      receiptTimeout,
	}
}

// Submit runs one full submission for the given operation. The account nonce
// is read fresh from the chain immediately before building, a 20% safety
// margin is applied to the estimated gas, and the call blocks until a
// receipt is observed. A receipt status other than success is surfaced as an
// ErrReverted error. Transport failures abort with no retry inside this
// call; retries, if any, happen across a new processing cycle.
func (e *Executor) Submit(ctx context.Context, op Operation, intentHash common.Hash, signature []byte) (*types.Receipt, error) {
	if err := e.guard.Verify(ctx); err != nil {
		return nil, err
	}

	data, err := e.buildCallData(op, intentHash, signature)
	if err != nil {
		return nil, err
	}

	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return nil, errors.Wrap(err, "reading account nonce")
	}

	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading gas price")
	}

	contract := e.gateway.Address()
	estimated, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     e.from,
		To:       &contract,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "estimating gas for %s", op)
	}
	gasLimit := gasLimitWithMargin(estimated)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Value:    new(big.Int),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return nil, errors.Wrapf(err, "signing %s transaction", op)
	}

	if err := e.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Wrapf(err, "sending %s transaction", op)
	}

	e.logger.Info("transaction sent",
		zap.String("operation", op.String()),
		zap.String("intent_hash", intentHash.Hex()),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
	)

	receipt, err := e.awaitReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, errors.Wrapf(ErrReverted, "%s failed (status %d)", op, receipt.Status)
	}

	e.logger.Info("transaction mined",
		zap.String("operation", op.String()),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

func (e *Executor) buildCallData(op Operation, intentHash common.Hash, signature []byte) ([]byte, error) {
	switch op {
	case OpVerifyIntent:
		if len(signature) == 0 {
			return nil, errors.New("verifyIntent requires an approval signature")
		}
		return e.gateway.PackVerifyIntent(intentHash, signature)
	case OpSeizeAssets:
		if signature != nil {
			return nil, errors.New("seizeAssets takes no signature")
		}
		return e.gateway.PackSeizeAssets(intentHash)
	default:
		return nil, errors.Errorf("unknown operation %d", int(op))
	}
}

// awaitReceipt polls for the transaction receipt. The wait is detached from
// caller cancellation: once a transaction is sent, shutdown must still
// attempt to observe its receipt.
func (e *Executor) awaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(e.receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := e.backend.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			e.logger.Warn("receipt lookup failed, retrying",
				zap.String("tx_hash", txHash.Hex()),
				zap.Error(err),
			)
		}

		select {
		case <-waitCtx.Done():
			return nil, errors.Wrapf(waitCtx.Err(), "waiting for receipt of %s", txHash.Hex())
		case <-ticker.C:
		}
	}
}

// gasLimitWithMargin applies the fixed 20% safety margin, rounding up.
func gasLimitWithMargin(estimated uint64) uint64 {
	return (estimated*6 + 4) / 5
}

// Address returns the executor's account address.
func (e *Executor) Address() common.Address {
	return e.from
}
