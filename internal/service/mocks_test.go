package service

import (
	"context"
	"sync"

	"mandatoja/internal/models"
	"mandatoja/pkg/whatsapp/types"
)

// In-memory Storage fake with injectable failures.
type fakeStorage struct {
	mu sync.Mutex

	messages  []models.ScheduledMessage
	instances map[int64]*models.ProviderInstance
	hashes    map[string]int64 // hash -> message id
	sent      map[int64]bool

	fetchCalls    int
	getMessagesErr error
	saveHashErr    error
	checkHashErr   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		instances: make(map[int64]*models.ProviderInstance),
		hashes:    make(map[string]int64),
		sent:      make(map[int64]bool),
	}
}

func (s *fakeStorage) GetScheduledMessagesForSending(ctx context.Context) ([]models.ScheduledMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.getMessagesErr != nil {
		return nil, s.getMessagesErr
	}
	var due []models.ScheduledMessage
	for _, msg := range s.messages {
		if !s.sent[msg.ID] {
			due = append(due, msg)
		}
	}
	return due, nil
}

func (s *fakeStorage) GetInstance(ctx context.Context, id int64) (*models.ProviderInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances[id], nil
}

func (s *fakeStorage) MarkMessageAsSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = true
	return nil
}

func (s *fakeStorage) CheckMessageHash(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkHashErr != nil {
		return false, s.checkHashErr
	}
	_, ok := s.hashes[hash]
	return ok, nil
}

func (s *fakeStorage) SaveMessageHash(ctx context.Context, messageID int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveHashErr != nil {
		return s.saveHashErr
	}
	if _, ok := s.hashes[hash]; ok {
		return models.ErrHashAlreadyReserved
	}
	s.hashes[hash] = messageID
	return nil
}

func (s *fakeStorage) RemoveMessageHash(ctx context.Context, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, id := range s.hashes {
		if id == messageID {
			delete(s.hashes, hash)
		}
	}
	return nil
}

func (s *fakeStorage) isSent(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id]
}

func (s *fakeStorage) hashCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}

func (s *fakeStorage) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

// Gateway client fake recording the ordered call sequence.
type fakeGateway struct {
	mu sync.Mutex

	session string
	status  types.SessionStatus
	qr      string

	calls []string

	statusErr  error
	startErr   error
	logoutErr  error
	qrErr      error
	sendErr    error
	seenErr    error
	typingErr  error
	stopTypErr error
}

func newFakeGateway(session string) *fakeGateway {
	return &fakeGateway{session: session, status: types.SessionStatusStopped}
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.calls))
	copy(out, g.calls)
	return out
}

func (g *fakeGateway) setStatus(status types.SessionStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

func (g *fakeGateway) SessionName() string { return g.session }

func (g *fakeGateway) SendText(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error) {
	g.record("sendText:" + text)
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	return &types.SendMessageResponse{MessageID: "msg-1", Status: "sent"}, nil
}

func (g *fakeGateway) SendSeen(ctx context.Context, chatID string) error {
	g.record("sendSeen")
	return g.seenErr
}

func (g *fakeGateway) StartTyping(ctx context.Context, chatID string) error {
	g.record("startTyping")
	return g.typingErr
}

func (g *fakeGateway) StopTyping(ctx context.Context, chatID string) error {
	g.record("stopTyping")
	return g.stopTypErr
}

func (g *fakeGateway) ListSessions(ctx context.Context) ([]types.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return []types.Session{{Name: g.session, Status: g.status}}, nil
}

func (g *fakeGateway) GetSessionStatus(ctx context.Context) (types.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}

func (g *fakeGateway) StartSession(ctx context.Context) error {
	g.record("startSession")
	if g.startErr != nil {
		return g.startErr
	}
	g.setStatus(types.SessionStatusScanQRCode)
	return nil
}

func (g *fakeGateway) StopSession(ctx context.Context) error {
	g.record("stopSession")
	g.setStatus(types.SessionStatusStopped)
	return nil
}

func (g *fakeGateway) LogoutSession(ctx context.Context) error {
	g.record("logoutSession")
	if g.logoutErr != nil {
		return g.logoutErr
	}
	g.setStatus(types.SessionStatusStopped)
	return nil
}

func (g *fakeGateway) GetQR(ctx context.Context) (*types.QRCode, error) {
	g.record("getQR")
	if g.qrErr != nil {
		return nil, g.qrErr
	}
	return &types.QRCode{Value: g.qr}, nil
}

// fakeResolver hands the same gateway to every instance.
type fakeResolver struct {
	gateway *fakeGateway
}

func (r *fakeResolver) ClientFor(instance models.ProviderInstance) types.GatewayClient {
	return r.gateway
}

// fakeDeliverer records deliveries and can block or fail.
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []string
	err       error
	blockCh   chan struct{} // when set, Deliver waits until closed
}

func (d *fakeDeliverer) Deliver(ctx context.Context, sender types.MessageSender, phoneNumber, text string) error {
	if d.blockCh != nil {
		<-d.blockCh
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.delivered = append(d.delivered, phoneNumber+"|"+text)
	return nil
}

func (d *fakeDeliverer) deliveredCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}
