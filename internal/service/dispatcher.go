package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mandatoja/internal/constants"
	"mandatoja/internal/models"
	"mandatoja/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Dispatcher is the sole authority for turning a due ScheduledMessage into a
// provider send. It runs one dispatch pass on a fixed cadence; overlapping
// passes are prevented by a reentrancy guard, not by locking.
type Dispatcher struct {
	store    Storage
	sessions ClientResolver
	delivery Deliverer
	logger   *logrus.Logger

	tickInterval   time.Duration
	suppressionTTL time.Duration

	ticking atomic.Bool

	mu         sync.Mutex
	suppressed map[int64]*time.Timer

	stopCh chan struct{}
	now    func() time.Time
}

func NewDispatcher(store Storage, sessions ClientResolver, delivery Deliverer, cfg models.DispatchConfig, logger *logrus.Logger) *Dispatcher {
	if cfg.TickIntervalSec <= 0 {
		cfg.TickIntervalSec = constants.DefaultDispatchTickSec
	}
	if cfg.SuppressionTTLSec <= 0 {
		cfg.SuppressionTTLSec = constants.DefaultSuppressionTTLSec
	}

	return &Dispatcher{
		store:          store,
		sessions:       sessions,
		delivery:       delivery,
		logger:         logger,
		tickInterval:   time.Duration(cfg.TickIntervalSec) * time.Second,
		suppressionTTL: time.Duration(cfg.SuppressionTTLSec) * time.Second,
		suppressed:     make(map[int64]*time.Timer),
		stopCh:         make(chan struct{}),
		now:            time.Now,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	d.logger.WithField("interval", d.tickInterval).Info("Starting dispatch worker")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatch worker context cancelled, stopping")
			return
		case <-d.stopCh:
			d.logger.Info("Dispatch worker stop signal received, stopping")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

func (d *Dispatcher) Stop() {
	close(d.stopCh)
}

// Tick runs one dispatch pass. Invoking it while a previous pass is still
// unresolved is a no-op; a stuck provider call delays, but never doubles, the
// processing of the due-message set.
func (d *Dispatcher) Tick(ctx context.Context) {
	if !d.ticking.CompareAndSwap(false, true) {
		d.logger.Debug("Previous dispatch pass still running, skipping tick")
		return
	}
	defer d.ticking.Store(false)

	timer := prometheus.NewTimer(observability.DispatchTickDuration)
	defer timer.ObserveDuration()

	messages, err := d.store.GetScheduledMessagesForSending(ctx)
	if err != nil {
		d.logger.WithError(err).Error("Failed to fetch due messages")
		return
	}

	for i := range messages {
		d.processMessage(ctx, &messages[i])
	}
}

// processMessage handles one due message independently: its failure never
// aborts siblings in the same pass.
func (d *Dispatcher) processMessage(ctx context.Context, msg *models.ScheduledMessage) {
	log := d.logger.WithFields(logrus.Fields{
		"messageId":  msg.ID,
		"instanceId": msg.InstanceID,
	})

	if d.IsSuppressed(msg.ID) {
		log.Debug("Message already handled by queue path, skipping")
		return
	}

	instance, err := d.store.GetInstance(ctx, msg.InstanceID)
	if err != nil {
		log.WithError(err).Error("Failed to resolve provider instance")
		observability.MessagesDispatched.WithLabelValues("error").Inc()
		return
	}
	if instance == nil || !instance.Active {
		log.Warn("Provider instance missing or inactive, skipping message")
		observability.MessagesDispatched.WithLabelValues("skipped").Inc()
		return
	}

	text := strings.TrimSpace(msg.ResponseText)
	if text == "" {
		log.Warn("Message carries no generated response text, skipping")
		observability.MessagesDispatched.WithLabelValues("skipped").Inc()
		return
	}

	hash := MessageHash(msg.PhoneNumber, text, d.now())

	exists, err := d.store.CheckMessageHash(ctx, hash)
	if err != nil {
		log.WithError(err).Error("Failed to check message hash")
		observability.MessagesDispatched.WithLabelValues("error").Inc()
		return
	}
	if exists {
		log.Info("Identical content already delivered this minute, marking sent")
		d.markSent(ctx, msg.ID, log)
		observability.MessagesDispatched.WithLabelValues("deduplicated").Inc()
		return
	}

	if err := d.store.SaveMessageHash(ctx, msg.ID, hash); err != nil {
		if errors.Is(err, models.ErrHashAlreadyReserved) {
			log.Info("Hash reserved by a concurrent worker, marking sent")
			d.markSent(ctx, msg.ID, log)
			observability.MessagesDispatched.WithLabelValues("deduplicated").Inc()
			return
		}
		log.WithError(err).Error("Failed to reserve message hash")
		observability.MessagesDispatched.WithLabelValues("error").Inc()
		return
	}

	client := d.sessions.ClientFor(*instance)
	if err := d.delivery.Deliver(ctx, client, msg.PhoneNumber, text); err != nil {
		log.WithError(err).Error("Delivery failed, releasing hash for retry")
		if rmErr := d.store.RemoveMessageHash(ctx, msg.ID); rmErr != nil {
			log.WithError(rmErr).Error("Failed to release message hash")
		}
		observability.MessagesDispatched.WithLabelValues("failed").Inc()
		return
	}

	d.markSent(ctx, msg.ID, log)
	observability.MessagesDispatched.WithLabelValues("sent").Inc()
	log.Info("Scheduled message dispatched")
}

func (d *Dispatcher) markSent(ctx context.Context, id int64, log *logrus.Entry) {
	if err := d.store.MarkMessageAsSent(ctx, id); err != nil {
		log.WithError(err).Error("Failed to mark message as sent")
	}
}

// Suppress records that the alternate queue path already sent the message, so
// the next dispatch passes skip it. The entry expires on its own; the durable
// backstop against duplicates is the persisted hash, not this map.
func (d *Dispatcher) Suppress(messageID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.suppressed[messageID]; ok {
		timer.Stop()
	}
	d.suppressed[messageID] = time.AfterFunc(d.suppressionTTL, func() {
		d.mu.Lock()
		delete(d.suppressed, messageID)
		d.mu.Unlock()
	})
}

func (d *Dispatcher) IsSuppressed(messageID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.suppressed[messageID]
	return ok
}
