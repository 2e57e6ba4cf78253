// Package processor orchestrates the handling of one declared intent:
// audit gate, contract authenticity check, approval signature, then the
// verify-then-seize transaction sequence.
package processor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ghostagent/ghost-oracle/internal/audit"
	"github.com/ghostagent/ghost-oracle/internal/chain"
	"github.com/ghostagent/ghost-oracle/internal/config"
	"github.com/ghostagent/ghost-oracle/internal/executor"
	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/ghostagent/ghost-oracle/internal/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Auditor runs the CRA compliance gate for an intent.
type Auditor interface {
	Audit(ctx context.Context, intentHash common.Hash) (*audit.Result, error)
}

// Guard checks the target contract's authenticity.
type Guard interface {
	Verify(ctx context.Context) error
}

// IntentSigner produces the oracle's approval signature for an intent.
type IntentSigner interface {
	SignIntent(ctx context.Context, intentHash common.Hash) ([]byte, error)
}

// Submitter submits one contract-mutating call and confirms it.
type Submitter interface {
	Submit(ctx context.Context, op executor.Operation, intentHash common.Hash, signature []byte) (*types.Receipt, error)
}

// IntentReader reads the on-chain intent record.
type IntentReader interface {
	GetIntent(ctx context.Context, intentHash common.Hash) (*chain.Intent, error)
}

// IntentProcessor drives one intent from discovery to a terminal decision
// and records that the intent has been handled.
type IntentProcessor struct {
	auditor   Auditor
	guard     Guard
	signer    IntentSigner
	submitter Submitter
	intents   IntentReader
	processed store.ProcessedSet
	// retryFailedTx controls the documented policy gap: an intent whose
	// audit passed but whose submission failed is either marked processed
	// anyway (abandon, the default) or left for a later cycle (retry).
	retryFailedTx bool
	logger        *zap.Logger
}

// New creates an intent processor.
func New(auditor Auditor, guard Guard, signer IntentSigner, submitter Submitter,
	intents IntentReader, processed store.ProcessedSet, txFailurePolicy string) *IntentProcessor {
	return &IntentProcessor{
		auditor:       auditor,
		guard:         guard,
		signer:        signer,
		submitter:     submitter,
		intents:       intents,
		processed:     processed,
		retryFailedTx: txFailurePolicy == config.TxFailurePolicyRetry,
		logger:        logger.Log,
	}
}

// Process handles one discovered intent. A nil return means the intent
// reached a terminal decision (or was already handled); an error means the
// intent should be re-delivered on a later monitoring cycle.
func (p *IntentProcessor) Process(ctx context.Context, event chain.IntentDeclaredEvent) error {
	log := p.logger.With(zap.String("intent_hash", event.IntentHash.Hex()))

	seen, err := p.processed.Contains(event.IntentHash)
	if err != nil {
		return errors.Wrap(err, "reading processed set")
	}
	if seen {
		log.Debug("intent already processed, skipping")
		return nil
	}

	log.Info("new intent declared",
		zap.String("declarer", event.Declarer.Hex()),
		zap.Uint64("block", event.BlockNumber),
	)

	result, err := p.auditor.Audit(ctx, event.IntentHash)
	if err != nil {
		// The audit could not run; the intent is rejected, same as a
		// failing check.
		log.Error("CRA audit error, intent will not be verified", zap.Error(err))
		return p.markProcessed(event.IntentHash, log)
	}
	if !result.Passed() {
		log.Info("CRA audit failed, intent will not be verified",
			zap.String("failed_check", result.FailedCheck()),
		)
		return p.markProcessed(event.IntentHash, log)
	}

	// Systemic condition, not a per-intent rejection: the intent stays out
	// of the processed set and is re-attempted on a later cycle.
	if err := p.guard.Verify(ctx); err != nil {
		log.Error("contract authenticity check failed, aborting cycle", zap.Error(err))
		return err
	}

	signature, err := p.signer.SignIntent(ctx, event.IntentHash)
	if err != nil {
		log.Error("failed to sign intent approval", zap.Error(err))
		return err
	}

	submissionFailed := false
	if _, err := p.submitter.Submit(ctx, executor.OpVerifyIntent, event.IntentHash, signature); err != nil {
		log.Error("verifyIntent submission failed", zap.Error(err))
		submissionFailed = true
	} else if _, err := p.submitter.Submit(ctx, executor.OpSeizeAssets, event.IntentHash, nil); err != nil {
		log.Error("seizeAssets submission failed", zap.Error(err))
		submissionFailed = true
	} else {
		p.logFinalStatus(ctx, event.IntentHash, log)
	}

	if submissionFailed && p.retryFailedTx {
		log.Warn("leaving intent unprocessed for retry on a later cycle")
		return errors.New("intent submission failed, retry requested")
	}

	return p.markProcessed(event.IntentHash, log)
}

func (p *IntentProcessor) markProcessed(intentHash common.Hash, log *zap.Logger) error {
	if err := p.processed.Add(intentHash); err != nil {
		log.Error("failed to record processed intent", zap.Error(err))
		return errors.Wrap(err, "recording processed intent")
	}
	return nil
}

func (p *IntentProcessor) logFinalStatus(ctx context.Context, intentHash common.Hash, log *zap.Logger) {
	intent, err := p.intents.GetIntent(ctx, intentHash)
	if err != nil {
		log.Warn("could not read back on-chain intent status", zap.Error(err))
		return
	}
	log.Info("intent fully processed",
		zap.String("status", intent.Status.String()),
		zap.String("declarer", intent.Declarer.Hex()),
	)
}
