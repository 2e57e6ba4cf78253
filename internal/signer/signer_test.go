package signer_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/ghostagent/ghost-oracle/internal/signer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger()
}

type fakeGuard struct {
	err error
}

func (f fakeGuard) Verify(ctx context.Context) error {
	return f.err
}

func TestSignIntent_RecoverableSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s := signer.New(key, fakeGuard{})
	intentHash := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	signature, err := s.SignIntent(context.Background(), intentHash)
	require.NoError(t, err)
	require.Len(t, signature, 65)

	// The signature must recover to the oracle's own address. SigToPub wants
	// the 0/1 recovery id, so undo the legacy offset first.
	recoverable := append([]byte(nil), signature...)
	recoverable[64] -= 27
	pub, err := crypto.SigToPub(intentHash.Bytes(), recoverable)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestSignIntent_LegacyRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s := signer.New(key, fakeGuard{})

	for i := byte(0); i < 8; i++ {
		signature, err := s.SignIntent(context.Background(), common.Hash{i})
		require.NoError(t, err)
		assert.Contains(t, []byte{27, 28}, signature[64])
	}
}

func TestSignIntent_GuardFailureBlocksSigning(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	guardErr := errors.New("unauthorized contract: salt mismatch")
	s := signer.New(key, fakeGuard{err: guardErr})

	signature, err := s.SignIntent(context.Background(), common.Hash{})
	require.Error(t, err)
	assert.Nil(t, signature)
	assert.Equal(t, guardErr, err)
}
