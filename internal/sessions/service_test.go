package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwell/internal/broadcast"
	"parkwell/internal/drivers"
	"parkwell/internal/payments"
	"parkwell/internal/shared/config"
	"parkwell/internal/spots"
	"parkwell/pkg/logger"
)

// memSessionRepo is an in-memory stand-in for the gorm-backed repository.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	failCreate bool
	// beforeMarkTerminal runs inside MarkTerminal before the conditional
	// check, letting a test simulate a competing settlement.
	beforeMarkTerminal func()
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]*Session)}
}

var errCreateFailed = errors.New("create failed")

func (r *memSessionRepo) CreateSession(ctx context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errCreateFailed
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now().UTC()
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *memSessionRepo) GetSessionByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *memSessionRepo) ListSessionsByDriver(ctx context.Context, driverID uuid.UUID) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.DriverID == driverID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) ListLiveSessions(ctx context.Context) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.State == StateActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) ListLiveSessionsBySpot(ctx context.Context, spotID uuid.UUID) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.SpotID == spotID && s.State == StateActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) CountLiveSessionsBySpot(ctx context.Context, spotID uuid.UUID) (int, error) {
	live, err := r.ListLiveSessionsBySpot(ctx, spotID)
	if err != nil {
		return 0, err
	}
	return len(live), nil
}

func (r *memSessionRepo) MarkTerminal(ctx context.Context, id uuid.UUID, settlement Settlement) (bool, error) {
	if r.beforeMarkTerminal != nil {
		r.beforeMarkTerminal()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.State != StateActive {
		return false, nil
	}
	s.State = settlement.State
	endedAt := settlement.EndedAt
	s.EndedAt = &endedAt
	s.RefundAmount = settlement.RefundAmount
	s.Penalty = settlement.Penalty
	s.DebtRecorded = settlement.DebtRecorded
	return true, nil
}

func (r *memSessionRepo) Reactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.State != StateForceEnded {
		return false, nil
	}
	s.State = StateActive
	s.EndedAt = nil
	s.RefundAmount = 0
	s.Penalty = 0
	s.DebtRecorded = 0
	return true, nil
}

func (r *memSessionRepo) setExpiry(id uuid.UUID, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.ExpiresAt = expiresAt
	}
}

// memSpotRepo backs the real inventory store in tests.
type memSpotRepo struct {
	mu    sync.Mutex
	spots map[uuid.UUID]spots.Spot
}

func newMemSpotRepo() *memSpotRepo {
	return &memSpotRepo{spots: make(map[uuid.UUID]spots.Spot)}
}

func (r *memSpotRepo) List(ctx context.Context) ([]spots.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]spots.Spot, 0, len(r.spots))
	for _, s := range r.spots {
		out = append(out, s)
	}
	return out, nil
}

func (r *memSpotRepo) GetByID(ctx context.Context, id uuid.UUID) (*spots.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.spots[id]
	if !ok {
		return nil, spots.ErrSpotNotFound
	}
	return &s, nil
}

func (r *memSpotRepo) Create(ctx context.Context, spot *spots.Spot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spots[spot.ID] = *spot
	return nil
}

func (r *memSpotRepo) Update(ctx context.Context, spot *spots.Spot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spots[spot.ID] = *spot
	return nil
}

func (r *memSpotRepo) UpdateAvailable(ctx context.Context, id uuid.UUID, available int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.spots[id]
	if !ok {
		return spots.ErrSpotNotFound
	}
	s.Available = available
	r.spots[id] = s
	return nil
}

func (r *memSpotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spots, id)
	return nil
}

// fakeDriverService covers the wallet surface; the auth surface is unused
// by the session orchestrator.
type fakeDriverService struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*drivers.DriverResponse
	wallets  map[uuid.UUID]float64
	debts    map[uuid.UUID]float64

	creditCalls int
	failDebit   bool
}

func newFakeDriverService() *fakeDriverService {
	return &fakeDriverService{
		profiles: make(map[uuid.UUID]*drivers.DriverResponse),
		wallets:  make(map[uuid.UUID]float64),
		debts:    make(map[uuid.UUID]float64),
	}
}

func (f *fakeDriverService) addDriver(vehicleType string, wallet float64) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.profiles[id] = &drivers.DriverResponse{
		ID:          id.String(),
		Role:        string(drivers.RoleDriver),
		VehicleType: vehicleType,
	}
	f.wallets[id] = wallet
	return id
}

func (f *fakeDriverService) balance(id uuid.UUID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets[id]
}

func (f *fakeDriverService) debt(id uuid.UUID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.debts[id]
}

func (f *fakeDriverService) Register(ctx context.Context, req *drivers.RegisterRequest) (*drivers.AuthResponse, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDriverService) Login(ctx context.Context, req *drivers.LoginRequest) (*drivers.AuthResponse, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDriverService) RefreshToken(ctx context.Context, refreshToken string) (*drivers.TokenPair, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDriverService) ChangePassword(ctx context.Context, driverID uuid.UUID, req *drivers.ChangePasswordRequest) error {
	return errors.New("not supported")
}

func (f *fakeDriverService) ValidateToken(tokenString string) (*drivers.JWTClaims, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDriverService) GetProfile(ctx context.Context, driverID uuid.UUID) (*drivers.DriverResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[driverID]
	if !ok {
		return nil, drivers.ErrDriverNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeDriverService) TopUpWallet(ctx context.Context, driverID uuid.UUID, amount float64) (*drivers.DriverResponse, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDriverService) DebitWallet(ctx context.Context, driverID uuid.UUID, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDebit {
		return drivers.ErrInsufficientFunds
	}
	if f.wallets[driverID] < amount {
		return drivers.ErrInsufficientFunds
	}
	f.wallets[driverID] -= amount
	return nil
}

func (f *fakeDriverService) CreditWallet(ctx context.Context, driverID uuid.UUID, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creditCalls++
	f.wallets[driverID] += amount
	return nil
}

func (f *fakeDriverService) RecordDebt(ctx context.Context, driverID uuid.UUID, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debts[driverID] += amount
	return nil
}

// fakePaymentService mimics the external-payment record machine.
type fakePaymentService struct {
	mu              sync.Mutex
	records         map[string]*payments.PaymentRecord
	reconciliations []payments.RefundReconciliation
	consumedWith    map[string]*uuid.UUID
}

func newFakePaymentService() *fakePaymentService {
	return &fakePaymentService{
		records:      make(map[string]*payments.PaymentRecord),
		consumedWith: make(map[string]*uuid.UUID),
	}
}

func (f *fakePaymentService) InitiatePayment(ctx context.Context, driverID, spotID uuid.UUID, baseCharge, deposit float64, durationHours int) (*payments.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := &payments.PaymentRecord{
		ID:            uuid.New(),
		Reference:     "pw_" + uuid.NewString(),
		DriverID:      driverID,
		SpotID:        spotID,
		Amount:        baseCharge + deposit,
		BaseCharge:    baseCharge,
		Deposit:       deposit,
		Status:        payments.StatusPending,
		DurationHours: durationHours,
	}
	f.records[record.Reference] = record
	clone := *record
	return &clone, nil
}

func (f *fakePaymentService) ConfirmPayment(ctx context.Context, reference string) (*payments.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[reference]
	if !ok {
		return nil, payments.ErrPaymentNotFound
	}
	switch record.Status {
	case payments.StatusConsumed:
		return nil, payments.ErrPaymentConsumed
	case payments.StatusConfirmed:
		return nil, payments.ErrPaymentAlreadyConfirmed
	}
	record.Status = payments.StatusConfirmed
	clone := *record
	return &clone, nil
}

func (f *fakePaymentService) ConsumePayment(ctx context.Context, reference string, sessionID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[reference]
	if !ok {
		return payments.ErrPaymentNotFound
	}
	if record.Status != payments.StatusConfirmed {
		return payments.ErrPaymentNotFound
	}
	record.Status = payments.StatusConsumed
	record.SessionID = sessionID
	f.consumedWith[reference] = sessionID
	return nil
}

func (f *fakePaymentService) GetPayment(ctx context.Context, reference string) (*payments.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[reference]
	if !ok {
		return nil, payments.ErrPaymentNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakePaymentService) RecordReconciliation(ctx context.Context, payment *payments.PaymentRecord, reason string) (*payments.RefundReconciliation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := payments.RefundReconciliation{
		ID:        uuid.New(),
		Reference: payment.Reference,
		DriverID:  payment.DriverID,
		SpotID:    payment.SpotID,
		Amount:    payment.Amount,
		Reason:    reason,
	}
	f.reconciliations = append(f.reconciliations, rec)
	return &rec, nil
}

func (f *fakePaymentService) ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]payments.RefundReconciliation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]payments.RefundReconciliation, len(f.reconciliations))
	copy(out, f.reconciliations)
	return out, nil
}

func (f *fakePaymentService) ResolveReconciliation(ctx context.Context, id uuid.UUID) error {
	return payments.ErrReconciliationNotFound
}

// eventRecorder captures every broadcast event for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *eventRecorder) Publish(event broadcast.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofType(eventType broadcast.EventType) []broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broadcast.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type sessionFixture struct {
	svc      Service
	repo     *memSessionRepo
	drivers  *fakeDriverService
	payments *fakePaymentService
	spotSvc  spots.Service
	events   *eventRecorder
	spot     spots.Spot
	cfg      *config.Config
}

func newSessionFixture(t *testing.T, capacity int) *sessionFixture {
	t.Helper()
	ctx := context.Background()
	log := logger.New()
	cfg := &config.Config{Engine: testEngineConfig()}

	events := &eventRecorder{}
	store := spots.NewStore(newMemSpotRepo())
	spotSvc := spots.NewService(store, nil, events, log)

	repo := newMemSessionRepo()
	store.SetLiveSessionCounter(repo.CountLiveSessionsBySpot)

	driverSvc := newFakeDriverService()
	paymentSvc := newFakePaymentService()
	svc := NewService(repo, spotSvc, driverSvc, paymentSvc, events, cfg, log)

	spot, err := spotSvc.AddSpot(ctx, spots.Spot{
		Name:        "Downtown Plaza Garage",
		HourlyPrice: 12,
		Capacity:    capacity,
		Available:   capacity,
		Lat:         40.7128,
		Lng:         -74.0060,
		VehicleType: spots.VehicleAny,
		TrustLevel:  3,
	})
	require.NoError(t, err)

	return &sessionFixture{
		svc:      svc,
		repo:     repo,
		drivers:  driverSvc,
		payments: paymentSvc,
		spotSvc:  spotSvc,
		events:   events,
		spot:     spot,
		cfg:      cfg,
	}
}

func (f *sessionFixture) available(t *testing.T) int {
	t.Helper()
	spot, err := f.spotSvc.Store().Get(f.spot.ID)
	require.NoError(t, err)
	return spot.Available
}

// reserveWallet starts a one-hour wallet-funded session (12.0 base charge
// on the fixture spot, 32.0 total with the deposit) and optionally rewinds
// its expiry so checkout tests can exercise overtime.
func (f *sessionFixture) reserveWallet(t *testing.T, driverID uuid.UUID, expiredFor time.Duration) uuid.UUID {
	t.Helper()
	resp, err := f.svc.Reserve(context.Background(), driverID, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodWallet),
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Session)
	if expiredFor > 0 {
		f.repo.setExpiry(resp.Session.ID, time.Now().UTC().Add(-expiredFor))
	}
	return resp.Session.ID
}

func farCoords() *CheckoutRequest {
	lat, lng := 40.7228, -74.0060 // about 1.1km north of the fixture spot
	return &CheckoutRequest{Lat: &lat, Lng: &lng}
}

func nearCoords() *CheckoutRequest {
	lat, lng := 40.71295, -74.0060 // under 20m from the fixture spot
	return &CheckoutRequest{Lat: &lat, Lng: &lng}
}

func TestReserveWithWallet(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)

	resp, err := f.svc.Reserve(context.Background(), driverID, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodWallet),
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Session)
	assert.Nil(t, resp.PendingPayment)

	assert.Equal(t, StateActive, resp.Session.State)
	assert.InDelta(t, 12.0, resp.Session.BaseCharge, 1e-9, "one hour at the spot's hourly price")
	assert.Equal(t, 20.0, resp.Session.Deposit)
	assert.Equal(t, MethodWallet, resp.Session.PaymentMethod)

	// The wallet pays base charge plus deposit up front.
	assert.InDelta(t, 68.0, f.drivers.balance(driverID), 1e-9)
	assert.Equal(t, 1, f.available(t))

	reserved := f.events.ofType(broadcast.EventSessionReserved)
	require.Len(t, reserved, 1)
	assert.Equal(t, f.spot.ID, reserved[0].SpotID)
}

func TestReserveInsufficientFunds(t *testing.T) {
	f := newSessionFixture(t, 2)
	// Enough for the deposit alone, not for deposit plus base charge.
	driverID := f.drivers.addDriver("car", 25)

	_, err := f.svc.Reserve(context.Background(), driverID, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodWallet),
	})
	assert.ErrorIs(t, err, drivers.ErrInsufficientFunds)
	assert.Equal(t, 25.0, f.drivers.balance(driverID))
	assert.Equal(t, 2, f.available(t))
}

func TestReserveRefundsChargeWhenCreateFails(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	f.repo.failCreate = true

	_, err := f.svc.Reserve(context.Background(), driverID, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodWallet),
	})
	require.Error(t, err)

	// The full charge goes back and the claimed unit is released.
	assert.Equal(t, 100.0, f.drivers.balance(driverID))
	assert.Equal(t, 2, f.available(t))
}

func TestReserveSpotFull(t *testing.T) {
	f := newSessionFixture(t, 1)
	first := f.drivers.addDriver("car", 100)
	second := f.drivers.addDriver("car", 100)

	f.reserveWallet(t, first, 0)

	_, err := f.svc.Reserve(context.Background(), second, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodWallet),
	})
	assert.ErrorIs(t, err, spots.ErrInsufficientCapacity)
	assert.Equal(t, 100.0, f.drivers.balance(second), "charge returned when no unit is available")
}

func TestReserveVehicleNotAllowed(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("truck", 100)

	vt := spots.VehicleBike
	_, err := f.spotSvc.EditSpot(context.Background(), f.spot.ID, spots.EditAttrs{VehicleType: &vt})
	require.NoError(t, err)

	_, err = f.svc.Reserve(context.Background(), driverID, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodWallet),
	})
	assert.ErrorIs(t, err, ErrVehicleNotAllowed)
}

func TestReserveBlockedSpot(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)

	today := time.Now().UTC().Format("2006-01-02")
	_, err := f.spotSvc.EditSpot(context.Background(), f.spot.ID, spots.EditAttrs{BlockedDates: []string{today}})
	require.NoError(t, err)

	_, err = f.svc.Reserve(context.Background(), driverID, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodWallet),
	})
	assert.ErrorIs(t, err, ErrSpotBlocked)
}

func TestReserveExternalReturnsPendingPayment(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 0)

	resp, err := f.svc.Reserve(context.Background(), driverID, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 2,
		PaymentMethod: string(MethodExternal),
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Session)
	require.NotNil(t, resp.PendingPayment)
	assert.NotEmpty(t, resp.PendingPayment.Reference)
	assert.InDelta(t, 24.0, resp.PendingPayment.BaseCharge, 1e-9)
	assert.Equal(t, 20.0, resp.PendingPayment.Deposit)
	assert.InDelta(t, 44.0, resp.PendingPayment.Amount, 1e-9, "gateway is asked for base charge plus deposit")
	assert.Equal(t, 2, resp.PendingPayment.DurationHours)

	// No unit is claimed until the payment is confirmed.
	assert.Equal(t, 2, f.available(t))
}

func TestConfirmReservation(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 0)
	ctx := context.Background()

	resp, err := f.svc.Reserve(ctx, driverID, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 2,
		PaymentMethod: string(MethodExternal),
	})
	require.NoError(t, err)
	reference := resp.PendingPayment.Reference

	session, err := f.svc.ConfirmReservation(ctx, driverID, reference)
	require.NoError(t, err)
	assert.Equal(t, StateActive, session.State)
	assert.InDelta(t, 24.0, session.BaseCharge, 1e-9)
	assert.Equal(t, 20.0, session.Deposit)
	assert.Equal(t, MethodExternal, session.PaymentMethod)
	assert.Equal(t, reference, session.PaymentReference)
	assert.Equal(t, 1, f.available(t))

	// The payment is consumed and bound to the created session.
	consumed, ok := f.payments.consumedWith[reference]
	require.True(t, ok)
	require.NotNil(t, consumed)
	assert.Equal(t, session.ID, *consumed)

	// A second confirm cannot buy another session.
	_, err = f.svc.ConfirmReservation(ctx, driverID, reference)
	assert.ErrorIs(t, err, payments.ErrPaymentConsumed)
	assert.Equal(t, 1, f.available(t))
}

func TestConfirmReservationWrongDriver(t *testing.T) {
	f := newSessionFixture(t, 2)
	owner := f.drivers.addDriver("car", 0)
	other := f.drivers.addDriver("car", 0)
	ctx := context.Background()

	resp, err := f.svc.Reserve(ctx, owner, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodExternal),
	})
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(ctx, other, resp.PendingPayment.Reference)
	assert.ErrorIs(t, err, payments.ErrPaymentNotFound)
}

func TestConfirmReservationSpotFilledRecordsReconciliation(t *testing.T) {
	f := newSessionFixture(t, 1)
	external := f.drivers.addDriver("car", 0)
	walletDriver := f.drivers.addDriver("car", 100)
	ctx := context.Background()

	resp, err := f.svc.Reserve(ctx, external, &ReserveRequest{
		SpotID:        f.spot.ID.String(),
		DurationHours: 1,
		PaymentMethod: string(MethodExternal),
	})
	require.NoError(t, err)
	reference := resp.PendingPayment.Reference

	// The last unit goes to a wallet reservation before the external
	// payment is confirmed.
	f.reserveWallet(t, walletDriver, 0)

	_, err = f.svc.ConfirmReservation(ctx, external, reference)
	assert.ErrorIs(t, err, spots.ErrInsufficientCapacity)

	require.Len(t, f.payments.reconciliations, 1)
	rec := f.payments.reconciliations[0]
	assert.Equal(t, reference, rec.Reference)
	assert.Equal(t, external, rec.DriverID)
	assert.InDelta(t, 32.0, rec.Amount, 1e-9, "the full confirmed charge is queued for refund")
	assert.Equal(t, "spot filled before payment confirmation", rec.Reason)

	// The payment is retired so it cannot fund a later session.
	consumed, ok := f.payments.consumedWith[reference]
	require.True(t, ok)
	assert.Nil(t, consumed)
}

func TestCheckoutOnTime(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, driverID, 0)

	resp, err := f.svc.Checkout(context.Background(), driverID, sessionID, farCoords())
	require.NoError(t, err)

	assert.Equal(t, StateCheckedOut, resp.State)
	assert.Equal(t, 0.0, resp.Penalty)
	assert.Equal(t, 20.0, resp.RefundAmount)
	assert.Equal(t, 0.0, resp.DebtRecorded)

	// Full deposit back, base charge kept, unit released.
	assert.InDelta(t, 88.0, f.drivers.balance(driverID), 1e-9)
	assert.Equal(t, 2, f.available(t))
	assert.Len(t, f.events.ofType(broadcast.EventSessionCheckedOut), 1)
}

func TestCheckoutOvertimePartialRefund(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	// 39m30s past expiry rounds up to 40 overtime minutes.
	sessionID := f.reserveWallet(t, driverID, 39*time.Minute+30*time.Second)

	resp, err := f.svc.Checkout(context.Background(), driverID, sessionID, farCoords())
	require.NoError(t, err)

	assert.Equal(t, 40, resp.OvertimeMinutes)
	assert.InDelta(t, 13.0, resp.Penalty, 1e-9)
	assert.InDelta(t, 7.0, resp.RefundAmount, 1e-9)
	assert.Equal(t, 0.0, resp.DebtRecorded)
	assert.InDelta(t, 75.0, f.drivers.balance(driverID), 1e-9)
}

func TestCheckoutOvertimeExceedsDeposit(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	// 89m30s past expiry rounds up to 90 overtime minutes.
	sessionID := f.reserveWallet(t, driverID, 89*time.Minute+30*time.Second)

	resp, err := f.svc.Checkout(context.Background(), driverID, sessionID, farCoords())
	require.NoError(t, err)

	assert.Equal(t, 90, resp.OvertimeMinutes)
	assert.InDelta(t, 38.0, resp.Penalty, 1e-9)
	assert.Equal(t, 0.0, resp.RefundAmount)
	assert.InDelta(t, 18.0, resp.DebtRecorded, 1e-9)

	// Nothing refunded, debt recorded against the driver.
	assert.InDelta(t, 68.0, f.drivers.balance(driverID), 1e-9)
	assert.InDelta(t, 18.0, f.drivers.debt(driverID), 1e-9)
}

func TestCheckoutRequiresGps(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, driverID, 0)

	_, err := f.svc.Checkout(context.Background(), driverID, sessionID, &CheckoutRequest{})
	assert.ErrorIs(t, err, ErrGpsUnavailable)

	// Session still live, charge still held.
	assert.InDelta(t, 68.0, f.drivers.balance(driverID), 1e-9)
	assert.Equal(t, 1, f.available(t))
}

func TestCheckoutTooCloseToSpot(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, driverID, 0)

	_, err := f.svc.Checkout(context.Background(), driverID, sessionID, nearCoords())
	assert.ErrorIs(t, err, ErrTooCloseToSpot)
	assert.Equal(t, 1, f.available(t))
}

func TestCheckoutIdempotent(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, driverID, 0)
	ctx := context.Background()

	first, err := f.svc.Checkout(ctx, driverID, sessionID, farCoords())
	require.NoError(t, err)

	// The repeat returns the stored settlement, even without a GPS fix.
	second, err := f.svc.Checkout(ctx, driverID, sessionID, &CheckoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.RefundAmount, second.RefundAmount)
	assert.Equal(t, first.Penalty, second.Penalty)

	// Refund credited exactly once, unit released exactly once.
	assert.Equal(t, 1, f.drivers.creditCalls)
	assert.InDelta(t, 88.0, f.drivers.balance(driverID), 1e-9)
	assert.Equal(t, 2, f.available(t))
	assert.Len(t, f.events.ofType(broadcast.EventSessionCheckedOut), 1)
}

func TestCheckoutNotOwner(t *testing.T) {
	f := newSessionFixture(t, 2)
	owner := f.drivers.addDriver("car", 100)
	other := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, owner, 0)

	_, err := f.svc.Checkout(context.Background(), other, sessionID, farCoords())
	assert.ErrorIs(t, err, ErrNotSessionOwner)
}

func TestCheckoutLosesSettlementRace(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, driverID, 0)
	ctx := context.Background()

	// A competing force-end settlement lands between the checkout's read
	// and its conditional settlement write.
	f.repo.beforeMarkTerminal = func() {
		f.repo.beforeMarkTerminal = nil
		applied, err := f.repo.MarkTerminal(ctx, sessionID, Settlement{
			State:        StateForceEnded,
			EndedAt:      time.Now().UTC(),
			RefundAmount: 20.0,
		})
		require.NoError(t, err)
		require.True(t, applied)
	}

	resp, err := f.svc.Checkout(ctx, driverID, sessionID, farCoords())
	require.NoError(t, err)

	// The loser reads back the winning settlement instead of writing its
	// own, and must not move money again.
	assert.Equal(t, StateForceEnded, resp.State)
	assert.Equal(t, 20.0, resp.RefundAmount)
	assert.Equal(t, 0, f.drivers.creditCalls)
}

func TestForceEnd(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	// Deep in overtime, but eviction still refunds the full deposit.
	sessionID := f.reserveWallet(t, driverID, 2*time.Hour)

	resp, err := f.svc.ForceEnd(context.Background(), sessionID, "lot closure")
	require.NoError(t, err)

	assert.Equal(t, StateForceEnded, resp.State)
	assert.Equal(t, 0.0, resp.Penalty)
	assert.Equal(t, 20.0, resp.RefundAmount)
	assert.Equal(t, 0.0, resp.DebtRecorded)
	assert.InDelta(t, 88.0, f.drivers.balance(driverID), 1e-9)
	assert.Equal(t, 2, f.available(t))

	events := f.events.ofType(broadcast.EventSessionForceEnded)
	require.Len(t, events, 1)
	assert.Equal(t, "lot closure", events[0].Message)
}

func TestForceEndBySpot(t *testing.T) {
	f := newSessionFixture(t, 3)
	first := f.drivers.addDriver("car", 100)
	second := f.drivers.addDriver("car", 100)
	f.reserveWallet(t, first, 0)
	f.reserveWallet(t, second, 0)

	ended, err := f.svc.ForceEndBySpot(context.Background(), f.spot.ID, "maintenance")
	require.NoError(t, err)
	assert.Len(t, ended, 2)
	assert.Equal(t, 3, f.available(t))

	live, err := f.svc.CountLiveBySpot(context.Background(), f.spot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, live)

	events := f.events.ofType(broadcast.EventSessionForceEnded)
	require.Len(t, events, 2)
	assert.Equal(t, "maintenance", events[0].Message)

	// With nothing live left the operation reports the typed no-op.
	_, err = f.svc.ForceEndBySpot(context.Background(), f.spot.ID, "maintenance")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestReinstate(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, driverID, 0)
	ctx := context.Background()

	_, err := f.svc.ForceEnd(ctx, sessionID, "mistake")
	require.NoError(t, err)
	assert.InDelta(t, 88.0, f.drivers.balance(driverID), 1e-9)
	assert.Equal(t, 2, f.available(t))

	require.NoError(t, f.svc.Reinstate(ctx, sessionID))

	// The unit is claimed again, the refunded deposit taken back, and the
	// session is live once more.
	assert.Equal(t, 1, f.available(t))
	assert.InDelta(t, 68.0, f.drivers.balance(driverID), 1e-9)
	stored, err := f.repo.GetSessionByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, stored.State)
	assert.Nil(t, stored.EndedAt)
	assert.Equal(t, 0.0, stored.RefundAmount)
}

func TestReinstateConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("spot filled in the meantime", func(t *testing.T) {
		f := newSessionFixture(t, 1)
		first := f.drivers.addDriver("car", 100)
		second := f.drivers.addDriver("car", 100)
		sessionID := f.reserveWallet(t, first, 0)

		_, err := f.svc.ForceEnd(ctx, sessionID, "")
		require.NoError(t, err)
		f.reserveWallet(t, second, 0)

		err = f.svc.Reinstate(ctx, sessionID)
		assert.ErrorIs(t, err, spots.ErrInsufficientCapacity)
	})

	t.Run("checked-out session cannot be restored", func(t *testing.T) {
		f := newSessionFixture(t, 2)
		driverID := f.drivers.addDriver("car", 100)
		sessionID := f.reserveWallet(t, driverID, 0)

		_, err := f.svc.Checkout(ctx, driverID, sessionID, farCoords())
		require.NoError(t, err)

		err = f.svc.Reinstate(ctx, sessionID)
		assert.ErrorIs(t, err, ErrSessionNotRestorable)
		assert.Equal(t, 2, f.available(t), "no unit stays claimed after the rejection")
	})
}

func TestGetSessionAuthorization(t *testing.T) {
	f := newSessionFixture(t, 2)
	owner := f.drivers.addDriver("car", 100)
	other := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, owner, 0)
	ctx := context.Background()

	_, err := f.svc.GetSession(ctx, owner, string(drivers.RoleDriver), sessionID)
	assert.NoError(t, err)

	_, err = f.svc.GetSession(ctx, other, string(drivers.RoleDriver), sessionID)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	_, err = f.svc.GetSession(ctx, other, string(drivers.RoleAdmin), sessionID)
	assert.NoError(t, err)
}

func TestSessionResponseOvertimePreview(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	sessionID := f.reserveWallet(t, driverID, 9*time.Minute+30*time.Second)

	resp, err := f.svc.GetSession(context.Background(), driverID, string(drivers.RoleDriver), sessionID)
	require.NoError(t, err)

	// A live session past expiry reads as OVERTIME with a running penalty
	// preview; nothing is settled yet.
	assert.Equal(t, StateOvertime, resp.State)
	assert.Equal(t, 10, resp.OvertimeMinutes)
	assert.InDelta(t, 8.0, resp.Penalty, 1e-9)
	assert.Equal(t, 0.0, resp.RefundAmount)
	assert.Nil(t, resp.EndedAt)
}

func TestSweepPublishesOvertimeOnce(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	f.reserveWallet(t, driverID, 10*time.Minute)
	ctx := context.Background()

	impl := f.svc.(*service)
	impl.sweep(ctx)
	impl.sweep(ctx)

	assert.Len(t, f.events.ofType(broadcast.EventSessionOvertime), 1)
}

func TestSweepHealsAvailabilityDrift(t *testing.T) {
	f := newSessionFixture(t, 3)
	driverID := f.drivers.addDriver("car", 100)
	f.reserveWallet(t, driverID, 0)
	ctx := context.Background()

	// A unit claimed outside the session flow leaves the count out of sync
	// with the one live session.
	_, err := f.spotSvc.ReserveUnit(ctx, f.spot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t))

	f.svc.(*service).sweep(ctx)

	assert.Equal(t, 2, f.available(t), "availability re-derived as capacity minus live sessions")
}

func TestSweepForceEndsOrphanedSessions(t *testing.T) {
	f := newSessionFixture(t, 2)
	driverID := f.drivers.addDriver("car", 100)
	ctx := context.Background()

	// A live session pointing at a spot that is no longer in inventory.
	now := time.Now().UTC()
	orphan := &Session{
		SpotID:        uuid.New(),
		DriverID:      driverID,
		State:         StateActive,
		StartedAt:     now,
		ExpiresAt:     now.Add(time.Hour),
		BaseCharge:    12.0,
		Deposit:       20.0,
		PaymentMethod: MethodWallet,
	}
	require.NoError(t, f.repo.CreateSession(ctx, orphan))

	f.svc.(*service).sweep(ctx)

	stored, err := f.repo.GetSessionByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, StateForceEnded, stored.State)
	assert.Equal(t, 20.0, stored.RefundAmount)
	assert.InDelta(t, 120.0, f.drivers.balance(driverID), 1e-9, "deposit returned to the driver")

	events := f.events.ofType(broadcast.EventSessionForceEnded)
	require.Len(t, events, 1)
	assert.Equal(t, "spot removed from inventory", events[0].Message)

	// A second pass finds nothing left to end.
	f.svc.(*service).sweep(ctx)
	assert.Len(t, f.events.ofType(broadcast.EventSessionForceEnded), 1)
}
