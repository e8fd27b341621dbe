package service

import (
	"context"
	"sync"
	"time"

	"tweetgram/internal/metrics"
	"tweetgram/internal/models"
	"tweetgram/internal/privacy"
	"tweetgram/internal/resilience"
	"tweetgram/internal/tracing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// InboundSource fetches a page of new inbound private messages
type InboundSource interface {
	FetchInbound(ctx context.Context, pageSize int) ([]models.InboundMessage, error)
}

// DedupStore is the durable record of already-forwarded message identifiers
type DedupStore interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
	Count(ctx context.Context) (int, error)
	Cleanup(ctx context.Context) error
	Stats(ctx context.Context) models.DedupStats
}

// MessageForwarder delivers one inbound message to the chat transport
type MessageForwarder interface {
	Forward(ctx context.Context, msg models.InboundMessage) error
}

// InboundPoller periodically fetches inbound messages, filters them through
// the dedup store and forwards the survivors. Each message is marked
// processed only after its forward succeeds, so a crash in between can
// re-forward but never lose a message.
type InboundPoller struct {
	source    InboundSource
	caller    *resilience.Caller
	store     DedupStore
	forwarder MessageForwarder
	cfg       models.InboundConfig
	logger    *logrus.Logger
	registry  *metrics.Registry

	mu        sync.Mutex
	lastCheck time.Time

	// runMu guards the lifecycle only. Stop holds it across wg.Wait, so the
	// poll loop must never take it — the loop's shared state lives under mu.
	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewInboundPoller creates a poller. The metrics registry may be nil.
func NewInboundPoller(source InboundSource, caller *resilience.Caller, store DedupStore, forwarder MessageForwarder, cfg models.InboundConfig, logger *logrus.Logger, registry *metrics.Registry) *InboundPoller {
	return &InboundPoller{
		source:    source,
		caller:    caller,
		store:     store,
		forwarder: forwarder,
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
	}
}

// Start launches the polling loop. Starting an already-running poller is a
// no-op, as is starting a poller that is disabled in configuration.
func (p *InboundPoller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if !p.cfg.Enabled {
		p.logger.Info("Inbound polling is disabled in configuration")
		return
	}
	if p.running {
		p.logger.Warn("Inbound poller already running")
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go p.pollLoop(pollCtx)

	p.logger.WithFields(logrus.Fields{
		"interval_sec": p.cfg.PollIntervalSec,
		"page_size":    p.cfg.FetchPageSize,
	}).Info("Inbound poller started")
}

// Stop requests the loop to exit and waits for it. The loop observes the
// cancellation at the next iteration boundary; a forward in flight finishes
// first, so no message is left half-delivered.
func (p *InboundPoller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.running = false
	p.logger.Info("Inbound poller stopped")
}

// IsRunning reports whether the loop is active
func (p *InboundPoller) IsRunning() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.running
}

// Status reports the poller's state for health endpoints
func (p *InboundPoller) Status(ctx context.Context) models.PollerStatus {
	count, err := p.store.Count(ctx)
	if err != nil {
		count = -1
	}

	p.runMu.Lock()
	running := p.running
	p.runMu.Unlock()

	p.mu.Lock()
	lastCheck := p.lastCheck
	p.mu.Unlock()

	return models.PollerStatus{
		Running:         running,
		Enabled:         p.cfg.Enabled,
		PollIntervalSec: p.cfg.PollIntervalSec,
		ProcessedCount:  count,
		LastCheck:       lastCheck,
	}
}

func (p *InboundPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	normal := time.Duration(p.cfg.PollIntervalSec) * time.Second
	backoff := 2 * normal
	if limit := time.Duration(p.cfg.BackoffCapSec) * time.Second; backoff > limit {
		backoff = limit
	}

	for {
		delay := normal
		if err := p.checkNewMessages(ctx); err != nil {
			// A fetch-level failure slows the loop down; one success
			// returns it to the normal interval.
			p.logger.WithFields(logrus.Fields{
				"error":   err,
				"backoff": backoff,
			}).Warn("Inbound fetch failed, backing off")
			delay = backoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// checkNewMessages runs one poll cycle: fetch, filter, forward, mark.
// Messages are forwarded in fetch order. A single bad message is logged and
// skipped; only a fetch-level error is returned to the loop.
func (p *InboundPoller) checkNewMessages(ctx context.Context) error {
	cycleID := uuid.NewString()
	spanCtx, span := tracing.StartSpan(ctx, "inbound.poll_cycle")
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(spanCtx, time.Duration(p.cfg.FetchTimeoutSec)*time.Second)
	defer cancel()

	result, err := p.caller.Call(fetchCtx, "fetch_inbound", []interface{}{p.cfg.FetchPageSize}, func(ctx context.Context) (interface{}, error) {
		return p.source.FetchInbound(ctx, p.cfg.FetchPageSize)
	})

	p.mu.Lock()
	p.lastCheck = time.Now()
	p.mu.Unlock()

	if err != nil {
		tracing.RecordError(spanCtx, err)
		p.count("inbound_fetch_failures")
		return err
	}

	messages, ok := result.([]models.InboundMessage)
	if !ok || len(messages) == 0 {
		return nil
	}

	log := p.logger.WithField("cycle_id", cycleID)
	forwarded := 0
	for _, msg := range messages {
		if msg.ID == "" {
			continue
		}

		processed, err := p.store.IsProcessed(spanCtx, msg.ID)
		if err != nil {
			log.WithFields(logrus.Fields{
				"message_id": privacy.MaskMessageID(msg.ID),
				"error":      err,
			}).Error("Dedup lookup failed, skipping message this cycle")
			continue
		}
		if processed {
			continue
		}

		if err := p.forwarder.Forward(spanCtx, msg); err != nil {
			// One poison message must not block the rest of the batch.
			log.WithFields(logrus.Fields{
				"message_id": privacy.MaskMessageID(msg.ID),
				"error":      err,
			}).Error("Failed to forward inbound message")
			p.count("inbound_forward_failures")
			continue
		}

		if err := p.store.MarkProcessed(spanCtx, msg.ID); err != nil {
			log.WithFields(logrus.Fields{
				"message_id": privacy.MaskMessageID(msg.ID),
				"error":      err,
			}).Error("Failed to mark message processed, it may be forwarded again")
			continue
		}
		forwarded++
	}

	if forwarded > 0 {
		log.WithField("count", forwarded).Info("Forwarded new inbound messages")
		if p.registry != nil {
			p.registry.AddToCounter("inbound_messages_forwarded", float64(forwarded), nil)
		}
	}
	return nil
}

func (p *InboundPoller) count(name string) {
	if p.registry != nil {
		p.registry.IncrementCounter(name, nil)
	}
}
