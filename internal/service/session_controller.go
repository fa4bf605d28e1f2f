package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mandatoja/internal/constants"
	"mandatoja/internal/models"
	"mandatoja/internal/observability"
	"mandatoja/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// ErrSessionNotAwaitingScan is returned by FetchQR when the session is not in
// SCAN_QR_CODE, the only state in which the gateway produces a QR payload.
var ErrSessionNotAwaitingScan = errors.New("session is not awaiting QR scan")

const statusPollTimeout = 10 * time.Second

// ClientFactory builds a gateway client for one provider instance.
type ClientFactory func(instance models.ProviderInstance) types.GatewayClient

type qrPoll struct {
	cancel context.CancelFunc
}

// SessionController drives provider sessions through
// STOPPED → STARTING → SCAN_QR_CODE → WORKING on operator demand, and owns
// the per-instance client registry the dispatch worker resolves credentials
// through. At most one QR status poll runs per instance; starting a new one
// cancels the previous.
type SessionController struct {
	factory ClientFactory
	logger  *logrus.Logger

	pollInterval    time.Duration
	pollMaxAttempts int
	settleDelay     time.Duration

	mu      sync.Mutex
	clients map[int64]types.GatewayClient
	polls   map[int64]*qrPoll
	wg      sync.WaitGroup
}

func NewSessionController(factory ClientFactory, cfg models.SessionConfig, logger *logrus.Logger) *SessionController {
	if cfg.QRPollIntervalSec <= 0 {
		cfg.QRPollIntervalSec = constants.DefaultQRPollIntervalSec
	}
	if cfg.QRPollMaxAttempts <= 0 {
		cfg.QRPollMaxAttempts = constants.DefaultQRPollMaxAttempts
	}
	if cfg.SettleDelaySec <= 0 {
		cfg.SettleDelaySec = constants.DefaultSessionSettleSec
	}

	return &SessionController{
		factory:         factory,
		logger:          logger,
		pollInterval:    time.Duration(cfg.QRPollIntervalSec) * time.Second,
		pollMaxAttempts: cfg.QRPollMaxAttempts,
		settleDelay:     time.Duration(cfg.SettleDelaySec) * time.Second,
		clients:         make(map[int64]types.GatewayClient),
		polls:           make(map[int64]*qrPoll),
	}
}

// ClientFor returns the cached gateway client for the instance, building one
// on first use. Instance credential edits require a process restart to take
// effect; the configuration tooling restarts the host on such changes.
func (c *SessionController) ClientFor(instance models.ProviderInstance) types.GatewayClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[instance.ID]; ok {
		return client
	}
	client := c.factory(instance)
	c.clients[instance.ID] = client
	return client
}

// Connect triggers session start on the provider. The session settles into
// SCAN_QR_CODE shortly after; the QR artifact itself is retrieved via FetchQR.
// Provider failures abort the flow and surface to the operator-facing caller.
func (c *SessionController) Connect(ctx context.Context, instance models.ProviderInstance) error {
	client := c.ClientFor(instance)
	log := c.logger.WithFields(logrus.Fields{
		"instanceId": instance.ID,
		"session":    client.SessionName(),
	})

	if err := client.StartSession(ctx); err != nil {
		observability.SessionActions.WithLabelValues("connect", "error").Inc()
		return fmt.Errorf("failed to connect session: %w", err)
	}

	// the gateway needs a moment after start before a QR is available
	if err := sleepContext(ctx, c.settleDelay); err != nil {
		return err
	}

	observability.SessionActions.WithLabelValues("connect", "ok").Inc()
	log.Info("Session start initiated")
	return nil
}

// Reconnect logs out the existing authenticated session and starts a fresh
// one, forcing a new QR. Used from WORKING, e.g. to switch phones. A failed
// logout is tolerated: the session may already be gone.
func (c *SessionController) Reconnect(ctx context.Context, instance models.ProviderInstance) error {
	client := c.ClientFor(instance)

	if err := client.LogoutSession(ctx); err != nil {
		c.logger.WithError(err).WithField("instanceId", instance.ID).Warn("Logout before reconnect failed, continuing")
	}

	if err := sleepContext(ctx, c.settleDelay); err != nil {
		return err
	}

	if err := c.Connect(ctx, instance); err != nil {
		observability.SessionActions.WithLabelValues("reconnect", "error").Inc()
		return err
	}
	observability.SessionActions.WithLabelValues("reconnect", "ok").Inc()
	return nil
}

// FetchQR retrieves the current QR payload and arms the status poll that
// closes the QR flow once the operator has scanned it. Fails unless the
// session is in SCAN_QR_CODE.
func (c *SessionController) FetchQR(ctx context.Context, instance models.ProviderInstance) (string, error) {
	client := c.ClientFor(instance)

	status, err := client.GetSessionStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query session status: %w", err)
	}
	if status != types.SessionStatusScanQRCode {
		return "", fmt.Errorf("%w: status is %s", ErrSessionNotAwaitingScan, status)
	}

	qr, err := client.GetQR(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch QR code: %w", err)
	}

	c.startQRPoll(instance.ID, client)
	return qr.Value, nil
}

// Status returns the session state as reported by the provider's session
// listing.
func (c *SessionController) Status(ctx context.Context, instance models.ProviderInstance) (types.SessionStatus, error) {
	return c.ClientFor(instance).GetSessionStatus(ctx)
}

// CloseQRFlow cancels the instance's QR status poll, e.g. when the operator
// abandons the authentication dialog.
func (c *SessionController) CloseQRFlow(instanceID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if poll, ok := c.polls[instanceID]; ok {
		poll.cancel()
		delete(c.polls, instanceID)
	}
}

// HasActiveQRPoll reports whether a QR status poll is running for the
// instance.
func (c *SessionController) HasActiveQRPoll(instanceID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.polls[instanceID]
	return ok
}

// Close cancels all QR polls and waits for them to drain.
func (c *SessionController) Close() {
	c.mu.Lock()
	for id, poll := range c.polls {
		poll.cancel()
		delete(c.polls, id)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *SessionController) startQRPoll(instanceID int64, client types.GatewayClient) {
	c.mu.Lock()
	if previous, ok := c.polls[instanceID]; ok {
		previous.cancel()
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	poll := &qrPoll{cancel: cancel}
	c.polls[instanceID] = poll
	c.mu.Unlock()

	c.wg.Add(1)
	go c.qrPollLoop(pollCtx, poll, instanceID, client)
}

// qrPollLoop watches session status until it reports WORKING, then retires
// the QR flow. Transient poll failures are logged and do not kill the
// authentication wait. The attempt budget bounds an abandoned flow.
func (c *SessionController) qrPollLoop(ctx context.Context, poll *qrPoll, instanceID int64, client types.GatewayClient) {
	defer c.wg.Done()

	log := c.logger.WithField("instanceId", instanceID)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.pollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		statusCtx, cancel := context.WithTimeout(ctx, statusPollTimeout)
		status, err := client.GetSessionStatus(statusCtx)
		cancel()
		if err != nil {
			log.WithError(err).Warn("QR status poll failed")
			continue
		}

		log.WithField("status", status).Debug("QR status poll")
		if status.IsAuthenticated() {
			log.Info("Session authenticated, closing QR flow")
			c.retireQRPoll(instanceID, poll)
			return
		}
	}

	log.Warn("QR authentication window expired before the session reached WORKING")
	c.retireQRPoll(instanceID, poll)
}

func (c *SessionController) retireQRPoll(instanceID int64, poll *qrPoll) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.polls[instanceID]; ok && current == poll {
		current.cancel()
		delete(c.polls, instanceID)
	}
}
