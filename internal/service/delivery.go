package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mandatoja/internal/models"
	"mandatoja/internal/observability"
	"mandatoja/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DeliveryEngine sends one logical text message as a sequence of provider
// calls that mimics human typing cadence. Chunks are strictly sequential;
// typing indicator cleanup is guaranteed on every exit path of a chunk.
type DeliveryEngine struct {
	typing  models.TypingConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger

	// sleep is swapped in tests to avoid real typing delays
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDeliveryEngine(typing models.TypingConfig, provider models.ProviderConfig, logger *logrus.Logger) *DeliveryEngine {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gateway-send",
		Timeout: time.Duration(provider.BreakerTimeoutSec) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= provider.BreakerMaxFails
		},
	})

	return &DeliveryEngine{
		typing:  typing,
		limiter: rate.NewLimiter(rate.Limit(provider.RateLimitPerSec), provider.RateLimitBurst),
		breaker: breaker,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Deliver splits the text into sentence chunks and sends them in order,
// each preceded by a simulated typing window. Empty text is a no-op success.
// Send failures propagate to the caller; typing and mark-seen failures are
// logged and swallowed.
func (e *DeliveryEngine) Deliver(ctx context.Context, sender types.MessageSender, phoneNumber, text string) error {
	chunks := SplitChunks(text)
	if len(chunks) == 0 {
		return nil
	}

	chatID := ChatIDFromPhone(phoneNumber)
	log := e.logger.WithFields(logrus.Fields{
		"chatId": chatID,
		"chunks": len(chunks),
	})

	if err := sender.SendSeen(ctx, chatID); err != nil {
		log.WithError(err).Warn("Failed to mark conversation as seen")
	}

	for i, chunk := range chunks {
		chunk = strings.TrimSuffix(chunk, ".")

		if err := e.simulateTyping(ctx, sender, chatID, e.typingDuration(chunk)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).WithField("chunk", i+1).Warn("Typing simulation failed")
		}

		if err := e.sendChunk(ctx, sender, chatID, chunk); err != nil {
			return fmt.Errorf("failed to send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		observability.ChunksSent.Inc()

		if i < len(chunks)-1 {
			if err := e.sleep(ctx, time.Duration(e.typing.InterChunkDelayMs)*time.Millisecond); err != nil {
				return err
			}
		}
	}

	log.Debug("All chunks delivered")
	return nil
}

// simulateTyping starts the typing indicator and holds it for the computed
// duration. StopTyping runs exactly once per chunk, even when the start or
// the wait fails.
func (e *DeliveryEngine) simulateTyping(ctx context.Context, sender types.MessageSender, chatID string, duration time.Duration) error {
	defer func() {
		if err := sender.StopTyping(ctx, chatID); err != nil {
			e.logger.WithError(err).Debug("Failed to stop typing indicator")
		}
	}()

	if err := sender.StartTyping(ctx, chatID); err != nil {
		return err
	}
	return e.sleep(ctx, duration)
}

func (e *DeliveryEngine) sendChunk(ctx context.Context, sender types.MessageSender, chatID, chunk string) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return sender.SendText(ctx, chatID, chunk)
	})
	return err
}

// typingDuration scales with chunk length, clamped so short chunks still look
// typed and long ones don't stall the queue.
func (e *DeliveryEngine) typingDuration(chunk string) time.Duration {
	duration := time.Duration(len([]rune(chunk))*e.typing.MsPerChar) * time.Millisecond
	min := time.Duration(e.typing.MinMs) * time.Millisecond
	max := time.Duration(e.typing.MaxMs) * time.Millisecond
	if duration < min {
		return min
	}
	if duration > max {
		return max
	}
	return duration
}
