package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
	"github.com/mohbadar/pay-connector/internal/events"
	"github.com/mohbadar/pay-connector/internal/gateway"
)

// --- Charge Repository Mock ---

// MockChargeRepository is an in-memory implementation of charge.Repository.
// Writes honour the version compare-and-swap, so optimistic concurrency
// behaves as it does against the database.
type MockChargeRepository struct {
	mu      sync.Mutex
	charges map[uuid.UUID]charge.Charge
	events  map[uuid.UUID][]*charge.Event

	CreateFunc            func(ctx context.Context, c *charge.Charge) error
	FindByExternalIDFunc  func(ctx context.Context, externalID string) (*charge.Charge, error)
	UpdateWithVersionFunc func(ctx context.Context, c *charge.Charge) error
}

func NewMockChargeRepository() *MockChargeRepository {
	return &MockChargeRepository{
		charges: make(map[uuid.UUID]charge.Charge),
		events:  make(map[uuid.UUID][]*charge.Event),
	}
}

// Seed stores a charge directly, bypassing versioning.
func (m *MockChargeRepository) Seed(c *charge.Charge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[c.ID] = *c
}

func (m *MockChargeRepository) Create(ctx context.Context, c *charge.Charge) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[c.ID] = *c
	return nil
}

func (m *MockChargeRepository) FindByID(ctx context.Context, id uuid.UUID) (*charge.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[id]
	if !ok {
		return nil, domainErrors.ErrChargeNotFound
	}
	cp := c
	return &cp, nil
}

func (m *MockChargeRepository) FindByExternalID(ctx context.Context, externalID string) (*charge.Charge, error) {
	if m.FindByExternalIDFunc != nil {
		return m.FindByExternalIDFunc(ctx, externalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.charges {
		if c.ExternalID == externalID {
			cp := c
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrChargeNotFound
}

func (m *MockChargeRepository) FindByGatewayTransactionID(ctx context.Context, providerName, transactionID string) (*charge.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.charges {
		if c.ProviderName == providerName && c.GatewayTransactionID != nil && *c.GatewayTransactionID == transactionID {
			cp := c
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrChargeNotFound
}

func (m *MockChargeRepository) UpdateWithVersion(ctx context.Context, c *charge.Charge) error {
	if m.UpdateWithVersionFunc != nil {
		return m.UpdateWithVersionFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.charges[c.ID]
	if !ok {
		return domainErrors.ErrChargeNotFound
	}
	if stored.Version != c.Version {
		return domainErrors.ErrConflict
	}
	c.Version++
	m.charges[c.ID] = *c
	return nil
}

func (m *MockChargeRepository) FindByStatus(ctx context.Context, status charge.Status, limit, offset int) ([]*charge.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*charge.Charge
	for _, c := range m.charges {
		if c.Status == status && len(out) < limit {
			cp := c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockChargeRepository) FindCreatedBefore(ctx context.Context, statuses []charge.Status, cutoff time.Time, limit int) ([]*charge.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*charge.Charge
	for _, c := range m.charges {
		for _, s := range statuses {
			if c.Status == s && c.CreatedAt.Before(cutoff) && len(out) < limit {
				cp := c
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *MockChargeRepository) AppendEvent(ctx context.Context, e *charge.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ChargeID] = append(m.events[e.ChargeID], e)
	return nil
}

func (m *MockChargeRepository) Events(ctx context.Context, chargeID uuid.UUID) ([]*charge.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*charge.Event(nil), m.events[chargeID]...), nil
}

// --- Refund Repository Mock ---

// MockRefundRepository is an in-memory implementation of refund.Repository
// with the same compare-and-swap semantics as the charge mock.
type MockRefundRepository struct {
	mu      sync.Mutex
	refunds map[uuid.UUID]refund.Refund

	CreateFunc func(ctx context.Context, r *refund.Refund) error
}

func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{refunds: make(map[uuid.UUID]refund.Refund)}
}

func (m *MockRefundRepository) Seed(r *refund.Refund) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[r.ID] = *r
}

func (m *MockRefundRepository) Create(ctx context.Context, r *refund.Refund) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[r.ID] = *r
	return nil
}

func (m *MockRefundRepository) FindByExternalID(ctx context.Context, externalID string) (*refund.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.ExternalID == externalID {
			cp := r
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrRefundNotFound
}

func (m *MockRefundRepository) FindByGatewayTransactionID(ctx context.Context, transactionID string) (*refund.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.GatewayTransactionID != nil && *r.GatewayTransactionID == transactionID {
			cp := r
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrRefundNotFound
}

func (m *MockRefundRepository) ListByChargeID(ctx context.Context, chargeID uuid.UUID) ([]*refund.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*refund.Refund
	for _, r := range m.refunds {
		if r.ChargeID == chargeID {
			cp := r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRefundRepository) UpdateWithVersion(ctx context.Context, r *refund.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.refunds[r.ID]
	if !ok {
		return domainErrors.ErrRefundNotFound
	}
	if stored.Version != r.Version {
		return domainErrors.ErrConflict
	}
	r.Version++
	m.refunds[r.ID] = *r
	return nil
}

// --- Gateway Account Repository Mock ---

type MockGatewayAccountRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]gatewayaccount.Account
}

func NewMockGatewayAccountRepository() *MockGatewayAccountRepository {
	return &MockGatewayAccountRepository{accounts: make(map[uuid.UUID]gatewayaccount.Account)}
}

func (m *MockGatewayAccountRepository) Seed(a *gatewayaccount.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = *a
}

func (m *MockGatewayAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*gatewayaccount.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domainErrors.ErrGatewayAccountNotFound
	}
	cp := a
	return &cp, nil
}

// --- Transaction Manager Mock ---

// NopTxManager runs the function directly. The mocks carry their own
// consistency, so there is nothing to commit or roll back.
type NopTxManager struct{}

func (NopTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Gateway Provider Stub ---

// StubProvider is a gateway.Provider whose behaviour is overridden per test
// through the Func fields. Unset operations succeed with a fixed transaction
// id.
type StubProvider struct {
	ProviderName string

	AuthoriseFunc             func(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error)
	Authorise3DSFunc          func(ctx context.Context, req gateway.Auth3DSRequest) (gateway.Result, error)
	CaptureFunc               func(ctx context.Context, req gateway.CaptureRequest) (gateway.Result, error)
	RefundFunc                func(ctx context.Context, req gateway.RefundRequest) (gateway.Result, error)
	CancelFunc                func(ctx context.Context, req gateway.CancelRequest) (gateway.Result, error)
	GenerateTransactionIDFunc func() (string, bool)
	ParseNotificationFunc     func(payload []byte) ([]gateway.Notification, error)
	VerifyNotificationFunc    func(payload []byte, signature string, account gatewayaccount.Account) bool
	MapNotificationStatusFunc func(status string) (gateway.NotificationStatus, bool)
	SignatureHeaderFunc       func() string
}

func (s *StubProvider) Name() string {
	if s.ProviderName != "" {
		return s.ProviderName
	}
	return "stub"
}

func (s *StubProvider) Authorise(ctx context.Context, req gateway.AuthoriseRequest) (gateway.Result, error) {
	if s.AuthoriseFunc != nil {
		return s.AuthoriseFunc(ctx, req)
	}
	return gateway.Result{Success: true, TransactionID: "stub-tx"}, nil
}

func (s *StubProvider) Authorise3DS(ctx context.Context, req gateway.Auth3DSRequest) (gateway.Result, error) {
	if s.Authorise3DSFunc != nil {
		return s.Authorise3DSFunc(ctx, req)
	}
	return gateway.Result{Success: true, TransactionID: req.TransactionID}, nil
}

func (s *StubProvider) Capture(ctx context.Context, req gateway.CaptureRequest) (gateway.Result, error) {
	if s.CaptureFunc != nil {
		return s.CaptureFunc(ctx, req)
	}
	return gateway.Result{Success: true, CaptureState: gateway.CaptureComplete}, nil
}

func (s *StubProvider) Refund(ctx context.Context, req gateway.RefundRequest) (gateway.Result, error) {
	if s.RefundFunc != nil {
		return s.RefundFunc(ctx, req)
	}
	return gateway.Result{Success: true, TransactionID: "stub-refund-tx"}, nil
}

func (s *StubProvider) Cancel(ctx context.Context, req gateway.CancelRequest) (gateway.Result, error) {
	if s.CancelFunc != nil {
		return s.CancelFunc(ctx, req)
	}
	return gateway.Result{Success: true}, nil
}

func (s *StubProvider) GenerateTransactionID() (string, bool) {
	if s.GenerateTransactionIDFunc != nil {
		return s.GenerateTransactionIDFunc()
	}
	return "", false
}

func (s *StubProvider) ParseNotification(payload []byte) ([]gateway.Notification, error) {
	if s.ParseNotificationFunc != nil {
		return s.ParseNotificationFunc(payload)
	}
	return nil, nil
}

func (s *StubProvider) VerifyNotification(payload []byte, signature string, account gatewayaccount.Account) bool {
	if s.VerifyNotificationFunc != nil {
		return s.VerifyNotificationFunc(payload, signature, account)
	}
	return true
}

func (s *StubProvider) SignatureHeader() string {
	if s.SignatureHeaderFunc != nil {
		return s.SignatureHeaderFunc()
	}
	return ""
}

func (s *StubProvider) MapNotificationStatus(status string) (gateway.NotificationStatus, bool) {
	if s.MapNotificationStatusFunc != nil {
		return s.MapNotificationStatusFunc(status)
	}
	return gateway.NotificationStatus{}, false
}

// --- Event Publisher Mock ---

// RecordingPublisher collects emitted events, optionally failing first.
type RecordingPublisher struct {
	mu       sync.Mutex
	emitted  []events.Event
	EmitFunc func(ctx context.Context, e events.Event) error
}

func (p *RecordingPublisher) Emit(ctx context.Context, e events.Event) error {
	if p.EmitFunc != nil {
		if err := p.EmitFunc(ctx, e); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitted = append(p.emitted, e)
	return nil
}

// Emitted returns a snapshot of everything published so far.
func (p *RecordingPublisher) Emitted() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.emitted...)
}
