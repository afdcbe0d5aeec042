package drivers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwell/internal/shared/config"
	"parkwell/pkg/logger"
)

type fakeRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Driver
	byEmail map[string]*Driver
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byID:    make(map[uuid.UUID]*Driver),
		byEmail: make(map[string]*Driver),
	}
}

func (r *fakeRepository) CreateDriver(ctx context.Context, driver *Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if driver.ID == uuid.Nil {
		driver.ID = uuid.New()
	}
	clone := *driver
	r.byID[driver.ID] = &clone
	r.byEmail[driver.Email] = &clone
	return nil
}

func (r *fakeRepository) GetDriverByEmail(ctx context.Context, email string) (*Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byEmail[email]
	if !ok {
		return nil, ErrDriverNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *fakeRepository) GetDriverByID(ctx context.Context, id uuid.UUID) (*Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, ErrDriverNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *fakeRepository) UpdateDriverPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return ErrDriverNotFound
	}
	d.Password = hashedPassword
	return nil
}

func (r *fakeRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *fakeRepository) DebitWallet(ctx context.Context, id uuid.UUID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return ErrDriverNotFound
	}
	if d.WalletBalance < amount {
		return ErrInsufficientFunds
	}
	d.WalletBalance -= amount
	return nil
}

func (r *fakeRepository) CreditWallet(ctx context.Context, id uuid.UUID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return ErrDriverNotFound
	}
	d.WalletBalance += amount
	return nil
}

func (r *fakeRepository) AddDebt(ctx context.Context, id uuid.UUID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return ErrDriverNotFound
	}
	d.OutstandingDebt += amount
	return nil
}

func newTestService() (Service, *fakeRepository) {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			JWTExpiresIn:     time.Hour,
			RefreshExpiresIn: 24 * time.Hour,
		},
	}
	repo := newFakeRepository()
	return NewService(repo, cfg, logger.New()), repo
}

func registerDriver(t *testing.T, svc Service) *AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName:   "Avery",
		LastName:    "Nguyen",
		Email:       "avery@parkwell.io",
		Password:    "qwerty",
		VehicleType: "car",
		PlateNumber: "NYC-4821",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	registered := registerDriver(t, svc)
	assert.Equal(t, "avery@parkwell.io", registered.Driver.Email)
	assert.Equal(t, string(RoleDriver), registered.Driver.Role)
	assert.Equal(t, "car", registered.Driver.VehicleType)
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)

	// Duplicate email is rejected.
	_, err := svc.Register(ctx, &RegisterRequest{
		FirstName: "Avery",
		LastName:  "Nguyen",
		Email:     "avery@parkwell.io",
		Password:  "qwerty",
	})
	assert.ErrorIs(t, err, ErrDriverAlreadyExists)

	logged, err := svc.Login(ctx, &LoginRequest{Email: "avery@parkwell.io", Password: "qwerty"})
	require.NoError(t, err)
	assert.Equal(t, registered.Driver.ID, logged.Driver.ID)

	_, err = svc.Login(ctx, &LoginRequest{Email: "avery@parkwell.io", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@parkwell.io", Password: "qwerty"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newTestService()

	registered := registerDriver(t, svc)

	claims, err := svc.ValidateToken(registered.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.Driver.ID, claims.DriverID)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, string(RoleDriver), claims.Role)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenRequiresRefreshType(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	registered := registerDriver(t, svc)

	pair, err := svc.RefreshToken(ctx, registered.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	// An access token cannot be used to refresh.
	_, err = svc.RefreshToken(ctx, registered.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	registered := registerDriver(t, svc)
	driverID := uuid.MustParse(registered.Driver.ID)

	err := svc.ChangePassword(ctx, driverID, &ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "changed1",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, driverID, &ChangePasswordRequest{
		CurrentPassword: "qwerty",
		NewPassword:     "changed1",
	}))

	_, err = svc.Login(ctx, &LoginRequest{Email: "avery@parkwell.io", Password: "changed1"})
	assert.NoError(t, err)
}

func TestWalletOperations(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	registered := registerDriver(t, svc)
	driverID := uuid.MustParse(registered.Driver.ID)

	profile, err := svc.TopUpWallet(ctx, driverID, 50)
	require.NoError(t, err)
	assert.Equal(t, 50.0, profile.WalletBalance)

	_, err = svc.TopUpWallet(ctx, driverID, -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, svc.DebitWallet(ctx, driverID, 20))
	err = svc.DebitWallet(ctx, driverID, 100)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, svc.CreditWallet(ctx, driverID, 7))
	require.NoError(t, svc.RecordDebt(ctx, driverID, 18))

	profile, err = svc.GetProfile(ctx, driverID)
	require.NoError(t, err)
	assert.InDelta(t, 37.0, profile.WalletBalance, 1e-9)
	assert.InDelta(t, 18.0, profile.OutstandingDebt, 1e-9)
}
