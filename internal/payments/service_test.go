package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwell/pkg/logger"
)

type fakeRepository struct {
	mu       sync.Mutex
	payments map[string]*PaymentRecord
	recs     map[uuid.UUID]*RefundReconciliation
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		payments: make(map[string]*PaymentRecord),
		recs:     make(map[uuid.UUID]*RefundReconciliation),
	}
}

func (r *fakeRepository) CreatePayment(ctx context.Context, payment *PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	clone := *payment
	r.payments[payment.Reference] = &clone
	return nil
}

func (r *fakeRepository) GetPaymentByReference(ctx context.Context, reference string) (*PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[reference]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *fakeRepository) ConfirmPayment(ctx context.Context, reference string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[reference]
	if !ok || p.Status != StatusPending {
		return false, nil
	}
	p.Status = StatusConfirmed
	return true, nil
}

func (r *fakeRepository) ConsumePayment(ctx context.Context, reference string, sessionID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[reference]
	if !ok || p.Status != StatusConfirmed {
		return false, nil
	}
	p.Status = StatusConsumed
	p.SessionID = sessionID
	return true, nil
}

func (r *fakeRepository) CreateReconciliation(ctx context.Context, rec *RefundReconciliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	clone := *rec
	r.recs[rec.ID] = &clone
	return nil
}

func (r *fakeRepository) ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]RefundReconciliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RefundReconciliation, 0, len(r.recs))
	for _, rec := range r.recs {
		if unresolvedOnly && rec.Resolved {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *fakeRepository) ResolveReconciliation(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok || rec.Resolved {
		return ErrReconciliationNotFound
	}
	now := time.Now().UTC()
	rec.Resolved = true
	rec.ResolvedAt = &now
	return nil
}

func newTestService() (Service, *fakeRepository) {
	repo := newFakeRepository()
	return NewService(repo, logger.New()), repo
}

func TestInitiatePayment(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	payment, err := svc.InitiatePayment(ctx, uuid.New(), uuid.New(), 24.0, 20.0, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.Reference)
	assert.Equal(t, StatusPending, payment.Status)
	assert.Equal(t, 44.0, payment.Amount, "amount covers base charge plus deposit")
	assert.Equal(t, 24.0, payment.BaseCharge)
	assert.Equal(t, 20.0, payment.Deposit)
	assert.Equal(t, 2, payment.DurationHours)
}

func TestConfirmPaymentOnce(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	payment, err := svc.InitiatePayment(ctx, uuid.New(), uuid.New(), 12.0, 20.0, 1)
	require.NoError(t, err)

	confirmed, err := svc.ConfirmPayment(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	// Confirming the same reference again is rejected; one deposit can
	// never buy two sessions.
	_, err = svc.ConfirmPayment(ctx, payment.Reference)
	assert.ErrorIs(t, err, ErrPaymentAlreadyConfirmed)
}

func TestConfirmUnknownReference(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ConfirmPayment(context.Background(), "pw_missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestConsumePaymentTransitions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	payment, err := svc.InitiatePayment(ctx, uuid.New(), uuid.New(), 12.0, 20.0, 1)
	require.NoError(t, err)

	sessionID := uuid.New()

	// Cannot consume a payment that was never confirmed.
	err = svc.ConsumePayment(ctx, payment.Reference, &sessionID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = svc.ConfirmPayment(ctx, payment.Reference)
	require.NoError(t, err)

	require.NoError(t, svc.ConsumePayment(ctx, payment.Reference, &sessionID))

	stored, err := svc.GetPayment(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusConsumed, stored.Status)
	require.NotNil(t, stored.SessionID)
	assert.Equal(t, sessionID, *stored.SessionID)

	// Consumed is terminal for both transitions.
	err = svc.ConsumePayment(ctx, payment.Reference, &sessionID)
	assert.ErrorIs(t, err, ErrPaymentConsumed)
	_, err = svc.ConfirmPayment(ctx, payment.Reference)
	assert.ErrorIs(t, err, ErrPaymentConsumed)
}

func TestReconciliationLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	payment, err := svc.InitiatePayment(ctx, uuid.New(), uuid.New(), 12.0, 20.0, 1)
	require.NoError(t, err)

	rec, err := svc.RecordReconciliation(ctx, payment, "spot filled before payment confirmation")
	require.NoError(t, err)
	assert.Equal(t, payment.Reference, rec.Reference)
	assert.Equal(t, 32.0, rec.Amount, "the full charge is flagged for manual refund")
	assert.False(t, rec.Resolved)

	unresolved, err := svc.ListReconciliations(ctx, true)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)

	require.NoError(t, svc.ResolveReconciliation(ctx, rec.ID))

	unresolved, err = svc.ListReconciliations(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	all, err := svc.ListReconciliations(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved)
	assert.NotNil(t, all[0].ResolvedAt)

	// Resolving twice fails.
	err = svc.ResolveReconciliation(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrReconciliationNotFound)
}
