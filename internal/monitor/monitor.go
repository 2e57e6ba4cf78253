// Package monitor polls the chain for IntentDeclared events and feeds each
// one to the intent processor.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/ghostagent/ghost-oracle/internal/chain"
	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// EventSource discovers IntentDeclared events on the chain.
type EventSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FilterIntentDeclared(ctx context.Context, fromBlock, toBlock uint64) ([]chain.IntentDeclaredEvent, error)
}

// Processor handles one discovered intent. An error return means the event
// should be re-delivered on a later tick.
type Processor interface {
	Process(ctx context.Context, event chain.IntentDeclaredEvent) error
}

// Monitor drives the polling loop. At most one tick is in flight at a time;
// a tick that fires while the previous one is still running is skipped, not
// queued.
type Monitor struct {
	source    EventSource
	processor Processor
	interval  time.Duration
	logger    *zap.Logger

	tickMu    sync.Mutex
	nextBlock uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a monitor polling on the given interval.
func New(source EventSource, processor Processor, interval time.Duration) *Monitor {
	return &Monitor{
		source:    source,
		processor: processor,
		interval:  interval,
		logger:    logger.Log,
		stopCh:    make(chan struct{}),
	}
}

// Start reads the current chain head and begins polling for events declared
// after it.
func (m *Monitor) Start(ctx context.Context) error {
	latest, err := m.source.LatestBlock(ctx)
	if err != nil {
		return errors.Wrap(err, "reading chain head")
	}
	m.nextBlock = latest + 1

	m.wg.Add(1)
	go m.run()

	m.logger.Info("event monitor started",
		zap.Duration("interval", m.interval),
		zap.Uint64("from_block", m.nextBlock),
	)
	return nil
}

// Stop gracefully shuts down the polling loop. A tick in progress finishes
// first; a transaction already sent still has its receipt observed because
// the executor's receipt wait is detached from tick cancellation.
func (m *Monitor) Stop() {
	m.logger.Info("stopping event monitor...")
	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info("event monitor stopped")
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Tick(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Tick runs one monitoring pass: discover events newer than the previously
// observed point and hand each to the processor in ascending order. A
// transport error makes the tick a no-op without advancing the window. If
// an event's processing reports a retryable failure, the window is rewound
// to that event's block so it is re-delivered on a later tick; the
// processed set keeps already-handled intents from re-entering the audit
// path.
func (m *Monitor) Tick(ctx context.Context) {
	if !m.tickMu.TryLock() {
		m.logger.Warn("previous monitoring tick still running, skipping")
		return
	}
	defer m.tickMu.Unlock()

	log := m.logger.With(zap.String("tick_id", uuid.NewString()))

	latest, err := m.source.LatestBlock(ctx)
	if err != nil {
		log.Warn("monitoring error: could not read chain head", zap.Error(err))
		return
	}
	if latest < m.nextBlock {
		return
	}

	events, err := m.source.FilterIntentDeclared(ctx, m.nextBlock, latest)
	if err != nil {
		log.Warn("monitoring error: could not filter events", zap.Error(err))
		return
	}
	if len(events) > 0 {
		log.Info("discovered intent declarations",
			zap.Int("count", len(events)),
			zap.Uint64("from_block", m.nextBlock),
			zap.Uint64("to_block", latest),
		)
	}

	for _, event := range events {
		if err := m.processor.Process(ctx, event); err != nil {
			log.Warn("intent processing failed, will replay from its block",
				zap.String("intent_hash", event.IntentHash.Hex()),
				zap.Uint64("block", event.BlockNumber),
				zap.Error(err),
			)
			m.nextBlock = event.BlockNumber
			return
		}
	}

	m.nextBlock = latest + 1
}
