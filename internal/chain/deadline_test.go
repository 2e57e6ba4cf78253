package chain

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stuckBackend blocks every call until its context is cancelled, imitating
// a node connection that has gone dark without closing.
type stuckBackend struct{}

func (stuckBackend) wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s stuckBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return nil, s.wait(ctx)
}

func (s stuckBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return 0, s.wait(ctx)
}

func (s stuckBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, s.wait(ctx)
}

func (s stuckBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, s.wait(ctx)
}

func (s stuckBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, s.wait(ctx)
}

func (s stuckBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return nil, s.wait(ctx)
}

func (s stuckBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 0, s.wait(ctx)
}

func (s stuckBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return s.wait(ctx)
}

func (s stuckBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, s.wait(ctx)
}

func TestWithDeadline_BoundsStuckCalls(t *testing.T) {
	backend := WithDeadline(stuckBackend{}, 20*time.Millisecond)

	tests := []struct {
		name string
		call func(ctx context.Context) error
	}{
		{"BlockNumber", func(ctx context.Context) error {
			_, err := backend.BlockNumber(ctx)
			return err
		}},
		{"FilterLogs", func(ctx context.Context) error {
			_, err := backend.FilterLogs(ctx, ethereum.FilterQuery{})
			return err
		}},
		{"CallContract", func(ctx context.Context) error {
			_, err := backend.CallContract(ctx, ethereum.CallMsg{}, nil)
			return err
		}},
		{"PendingNonceAt", func(ctx context.Context) error {
			_, err := backend.PendingNonceAt(ctx, common.Address{})
			return err
		}},
		{"SuggestGasPrice", func(ctx context.Context) error {
			_, err := backend.SuggestGasPrice(ctx)
			return err
		}},
		{"EstimateGas", func(ctx context.Context) error {
			_, err := backend.EstimateGas(ctx, ethereum.CallMsg{})
			return err
		}},
		{"SendTransaction", func(ctx context.Context) error {
			return backend.SendTransaction(ctx, nil)
		}},
		{"TransactionReceipt", func(ctx context.Context) error {
			_, err := backend.TransactionReceipt(ctx, common.Hash{})
			return err
		}},
		{"ChainID", func(ctx context.Context) error {
			_, err := backend.ChainID(ctx)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				// An undeadlined context: the wrapper must supply the bound.
				done <- tt.call(context.Background())
			}()

			select {
			case err := <-done:
				require.Error(t, err)
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			case <-time.After(time.Second):
				t.Fatal("call did not return within the per-call deadline")
			}
		})
	}
}

func TestWithDeadline_KeepsTighterCallerDeadline(t *testing.T) {
	backend := WithDeadline(stuckBackend{}, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := backend.BlockNumber(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
