// Package signer produces the oracle's approval signature over an intent
// identifier.
package signer

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ContractGuard aborts signing when the target contract fails its
// authenticity check.
type ContractGuard interface {
	Verify(ctx context.Context) error
}

// Signer signs intent identifiers with the oracle's private key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	guard   ContractGuard
	logger  *zap.Logger
}

// New creates a signer for the given oracle key.
func New(key *ecdsa.PrivateKey, guard ContractGuard) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		guard:   guard,
		logger:  logger.Log,
	}
}

// Address returns the address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignIntent returns a 65-byte recoverable ECDSA signature (r‖s‖v) over the
// raw intent identifier. The contract applies its own message-prefixing
// convention, so no prefix is added here. The contract authenticity check
// runs first and a failure aborts signing.
func (s *Signer) SignIntent(ctx context.Context, intentHash common.Hash) ([]byte, error) {
	if err := s.guard.Verify(ctx); err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(intentHash.Bytes(), s.key)
	if err != nil {
		return nil, errors.Wrap(err, "signing intent hash")
	}

	// crypto.Sign emits the recovery id as 0/1; the contract's ecrecover
	// expects the legacy 27/28 form.
	signature[64] += 27

	s.logger.Debug("signed intent approval",
		zap.String("intent_hash", intentHash.Hex()),
		zap.String("signer", s.address.Hex()),
	)
	return signature, nil
}
