package service

import (
	"context"
	"testing"
	"time"

	"mandatoja/internal/models"
	"mandatoja/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastSessionConfig() models.SessionConfig {
	return models.SessionConfig{
		QRPollIntervalSec: 1,
		QRPollMaxAttempts: 5,
		SettleDelaySec:    1,
	}
}

func newTestController(gateway *fakeGateway) *SessionController {
	factory := func(instance models.ProviderInstance) types.GatewayClient {
		return gateway
	}
	return NewSessionController(factory, fastSessionConfig(), testLogger())
}

func TestSessionController_ConnectReachesScanState(t *testing.T) {
	gateway := newFakeGateway("default")
	c := newTestController(gateway)

	err := c.Connect(context.Background(), *activeInstance(1))
	require.NoError(t, err)

	status, err := c.Status(context.Background(), *activeInstance(1))
	require.NoError(t, err)
	assert.Equal(t, types.SessionStatusScanQRCode, status)
}

func TestSessionController_ConnectSurfacesStartFailure(t *testing.T) {
	gateway := newFakeGateway("default")
	gateway.startErr = assert.AnError
	c := newTestController(gateway)

	err := c.Connect(context.Background(), *activeInstance(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect session")
}

func TestSessionController_ReconnectToleratesLogoutFailure(t *testing.T) {
	gateway := newFakeGateway("default")
	gateway.setStatus(types.SessionStatusWorking)
	gateway.logoutErr = assert.AnError
	c := newTestController(gateway)

	err := c.Reconnect(context.Background(), *activeInstance(1))
	require.NoError(t, err, "a dead session on logout must not block reconnect")

	assert.Contains(t, gateway.callLog(), "logoutSession")
	assert.Contains(t, gateway.callLog(), "startSession")
}

func TestSessionController_FetchQRRequiresScanState(t *testing.T) {
	gateway := newFakeGateway("default")
	gateway.setStatus(types.SessionStatusWorking)
	c := newTestController(gateway)

	_, err := c.FetchQR(context.Background(), *activeInstance(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotAwaitingScan)
}

func TestSessionController_FetchQRStartsPoll(t *testing.T) {
	gateway := newFakeGateway("default")
	gateway.setStatus(types.SessionStatusScanQRCode)
	gateway.qr = "qr-payload"
	c := newTestController(gateway)
	defer c.Close()

	value, err := c.FetchQR(context.Background(), *activeInstance(1))
	require.NoError(t, err)
	assert.Equal(t, "qr-payload", value)
	assert.True(t, c.HasActiveQRPoll(1))
}

func TestSessionController_QRPollRetiresOnAuthentication(t *testing.T) {
	gateway := newFakeGateway("default")
	gateway.setStatus(types.SessionStatusScanQRCode)
	c := newTestController(gateway)
	defer c.Close()

	_, err := c.FetchQR(context.Background(), *activeInstance(1))
	require.NoError(t, err)
	require.True(t, c.HasActiveQRPoll(1))

	// Operator scans the QR; the gateway transitions to WORKING.
	gateway.setStatus(types.SessionStatusWorking)

	require.Eventually(t, func() bool {
		return !c.HasActiveQRPoll(1)
	}, 5*time.Second, 50*time.Millisecond, "poll must retire once the session authenticates")
}

func TestSessionController_QRPollExpiresAfterBudget(t *testing.T) {
	gateway := newFakeGateway("default")
	gateway.setStatus(types.SessionStatusScanQRCode)
	c := newTestController(gateway)
	defer c.Close()

	_, err := c.FetchQR(context.Background(), *activeInstance(1))
	require.NoError(t, err)

	// Session never authenticates; the attempt budget bounds the poll.
	require.Eventually(t, func() bool {
		return !c.HasActiveQRPoll(1)
	}, 10*time.Second, 100*time.Millisecond, "abandoned QR flow must expire on its own")
}

func TestSessionController_NewFetchCancelsPreviousPoll(t *testing.T) {
	gateway := newFakeGateway("default")
	gateway.setStatus(types.SessionStatusScanQRCode)
	c := newTestController(gateway)
	defer c.Close()

	_, err := c.FetchQR(context.Background(), *activeInstance(1))
	require.NoError(t, err)

	_, err = c.FetchQR(context.Background(), *activeInstance(1))
	require.NoError(t, err)

	// Exactly one registered poll; the replacement retiring must not remove it.
	assert.True(t, c.HasActiveQRPoll(1))
	c.CloseQRFlow(1)
	assert.False(t, c.HasActiveQRPoll(1))
}

func TestSessionController_CloseQRFlowWithoutPollIsNoOp(t *testing.T) {
	gateway := newFakeGateway("default")
	c := newTestController(gateway)

	c.CloseQRFlow(99)
	assert.False(t, c.HasActiveQRPoll(99))
}

func TestSessionController_ClientForCachesByInstance(t *testing.T) {
	built := 0
	factory := func(instance models.ProviderInstance) types.GatewayClient {
		built++
		return newFakeGateway(instance.SessionName)
	}
	c := NewSessionController(factory, fastSessionConfig(), testLogger())

	inst := *activeInstance(1)
	first := c.ClientFor(inst)
	second := c.ClientFor(inst)

	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
}
