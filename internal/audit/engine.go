// Package audit implements the CRA compliance gate: every declared intent
// must pass the timestamp, amount, geography and external-risk checks before
// the oracle will approve it.
package audit

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ghostagent/ghost-oracle/internal/config"
	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Check names, in evaluation order. The external risk call is last because
// it is the most expensive.
const (
	CheckTimestamp    = "timestamp"
	CheckAmount       = "amount"
	CheckGeography    = "geography"
	CheckExternalRisk = "externalRisk"
)

// PayloadFetcher retrieves the off-chain payload for an intent.
type PayloadFetcher interface {
	Fetch(ctx context.Context, intentHash common.Hash) (*IntentPayload, error)
}

// RiskScorer queries the external risk service.
type RiskScorer interface {
	Score(ctx context.Context, intentHash common.Hash, metadata map[string]interface{}) (int, error)
}

// Check is the outcome of a single evaluated CRA check.
type Check struct {
	Name   string
	Passed bool
}

// Result holds the evaluated checks in order. Evaluation stops at the first
// failure, so checks after a failing one are absent rather than failing.
type Result struct {
	Checks []Check
}

// Passed reports whether every check was evaluated and passed.
func (r *Result) Passed() bool {
	if len(r.Checks) == 0 {
		return false
	}
	for _, check := range r.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// FailedCheck returns the name of the failing check, or "" if none failed.
func (r *Result) FailedCheck() string {
	for _, check := range r.Checks {
		if !check.Passed {
			return check.Name
		}
	}
	return ""
}

// Engine evaluates the four CRA checks against an intent's payload.
type Engine struct {
	payloads PayloadFetcher
	// risk is nil when no credential is configured; the external risk check
	// then passes unconditionally. Once configured, any call failure fails
	// the check.
	risk   RiskScorer
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates an audit engine. Pass a nil scorer when no risk-service
// credential is configured.
func NewEngine(cfg *config.Config, payloads PayloadFetcher, risk RiskScorer) *Engine {
	return &Engine{
		payloads: payloads,
		risk:     risk,
		cfg:      cfg,
		logger:   logger.Log,
		now:      time.Now,
	}
}

// Audit fetches the intent payload and runs the CRA checks in fixed order
// with short-circuit on the first failure. A payload fetch failure is
// returned as an error: the audit could not run, no checks are evaluated,
// and the caller treats the intent as rejected.
func (e *Engine) Audit(ctx context.Context, intentHash common.Hash) (*Result, error) {
	payload, err := e.payloads.Fetch(ctx, intentHash)
	if err != nil {
		return nil, errors.Wrapf(err, "CRA audit error for %s", intentHash.Hex())
	}

	checks := []struct {
		name string
		run  func() bool
	}{
		{CheckTimestamp, func() bool { return e.checkTimestamp(payload) }},
		{CheckAmount, func() bool { return e.checkAmount(payload) }},
		{CheckGeography, func() bool { return e.checkGeography(payload) }},
		{CheckExternalRisk, func() bool { return e.checkExternalRisk(ctx, intentHash, payload) }},
	}

	result := &Result{}
	for _, check := range checks {
		passed := check.run()
		result.Checks = append(result.Checks, Check{Name: check.name, Passed: passed})
		e.logger.Info("CRA check evaluated",
			zap.String("intent_hash", intentHash.Hex()),
			zap.String("check", check.name),
			zap.Bool("passed", passed),
		)
		if !passed {
			break
		}
	}

	return result, nil
}

// checkTimestamp passes iff the payload is no older than the configured
// window. The comparison is one-sided: a future timestamp passes.
func (e *Engine) checkTimestamp(payload *IntentPayload) bool {
	age := e.now().Unix() - payload.Timestamp
	return age <= int64(e.cfg.TimeWindow.Seconds())
}

func (e *Engine) checkAmount(payload *IntentPayload) bool {
	return payload.AmountWei.Cmp(e.cfg.MaxAmountWei) <= 0
}

func (e *Engine) checkGeography(payload *IntentPayload) bool {
	return e.cfg.CountryAllowed(payload.OriginCountry)
}

func (e *Engine) checkExternalRisk(ctx context.Context, intentHash common.Hash, payload *IntentPayload) bool {
	if e.risk == nil {
		return true
	}

	score, err := e.risk.Score(ctx, intentHash, payload.Metadata)
	if err != nil {
		e.logger.Warn("external risk check failed",
			zap.String("intent_hash", intentHash.Hex()),
			zap.Error(err),
		)
		return false
	}
	return score < e.cfg.RiskScoreThreshold
}
