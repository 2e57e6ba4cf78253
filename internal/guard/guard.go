// Package guard verifies the authenticity of the target contract before any
// signing or state-changing call. The real GhostAgent deployment exposes a
// fixed salt constant; a look-alike contract at another address will not.
package guard

import (
	"context"

	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OfficialSalt is the authenticity constant of the authorized GhostAgent
// deployment.
const OfficialSalt = "0xC0RYM1LL3R_GHOST_AGENT_2025_1234567890abcdef"

// ErrSaltMismatch indicates the target contract does not expose the expected
// authenticity constant. Callers must not sign or transact past this error.
var ErrSaltMismatch = errors.New("unauthorized contract: salt mismatch")

// SaltReader reads the contract-level authenticity constant.
type SaltReader interface {
	ContractSalt(ctx context.Context) (string, error)
}

// SaltGuard checks the target contract's authenticity constant against the
// official value.
type SaltGuard struct {
	contract SaltReader
	expected string
	logger   *zap.Logger
}

// New creates a guard for the given contract binding.
func New(contract SaltReader) *SaltGuard {
	return &SaltGuard{
		contract: contract,
		expected: OfficialSalt,
		logger:   logger.Log,
	}
}

// Verify reads the contract salt and compares it, with exact equality,
// against the expected value. A mismatch is logged distinctly from ordinary
// failures since it implies a potential spoofing condition.
func (g *SaltGuard) Verify(ctx context.Context) error {
	salt, err := g.contract.ContractSalt(ctx)
	if err != nil {
		return errors.Wrap(err, "reading contract salt")
	}

	if salt != g.expected {
		g.logger.Error("contract salt mismatch, refusing to sign or transact",
			zap.String("got", salt),
		)
		return ErrSaltMismatch
	}

	return nil
}
