package chain

import (
	"context"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// deadlineBackend bounds every RPC call with a fixed timeout. A stuck node
// connection then fails the one call instead of wedging the polling loop
// and, through it, shutdown.
type deadlineBackend struct {
	inner   Backend
	timeout time.Duration
}

// WithDeadline wraps a backend so each call carries its own timeout on top
// of whatever deadline the caller's context already has.
func WithDeadline(inner Backend, timeout time.Duration) Backend {
	return &deadlineBackend{inner: inner, timeout: timeout}
}

func (b *deadlineBackend) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.ChainID(ctx)
}

func (b *deadlineBackend) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.BlockNumber(ctx)
}

func (b *deadlineBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.FilterLogs(ctx, q)
}

func (b *deadlineBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.CallContract(ctx, msg, blockNumber)
}

func (b *deadlineBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.PendingNonceAt(ctx, account)
}

func (b *deadlineBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.SuggestGasPrice(ctx)
}

func (b *deadlineBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.EstimateGas(ctx, msg)
}

func (b *deadlineBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.SendTransaction(ctx, tx)
}

func (b *deadlineBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.TransactionReceipt(ctx, txHash)
}
