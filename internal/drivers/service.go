package drivers

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"parkwell/internal/shared/config"
	"parkwell/pkg/logger"
)

type Service interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	ChangePassword(ctx context.Context, driverID uuid.UUID, req *ChangePasswordRequest) error
	ValidateToken(tokenString string) (*JWTClaims, error)

	GetProfile(ctx context.Context, driverID uuid.UUID) (*DriverResponse, error)
	TopUpWallet(ctx context.Context, driverID uuid.UUID, amount float64) (*DriverResponse, error)

	// Balance operations used by the reservation and settlement flows.
	DebitWallet(ctx context.Context, driverID uuid.UUID, amount float64) error
	CreditWallet(ctx context.Context, driverID uuid.UUID, amount float64) error
	RecordDebt(ctx context.Context, driverID uuid.UUID, amount float64) error
}

type service struct {
	repo   Repository
	config *config.Config
	logger *logger.Logger
}

func NewService(repo Repository, cfg *config.Config, log *logger.Logger) Service {
	return &service{
		repo:   repo,
		config: cfg,
		logger: log,
	}
}

func (s *service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDriverAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := strings.ToUpper(req.Role)
	if !IsValidRole(role) {
		role = string(RoleDriver)
	}

	vehicleType := req.VehicleType
	if vehicleType == "" {
		vehicleType = "car"
	}

	driver := &Driver{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    string(hashedPassword),
		Role:        Role(role),
		VehicleType: vehicleType,
		PlateNumber: req.PlateNumber,
	}

	if err := s.repo.CreateDriver(ctx, driver); err != nil {
		return nil, err
	}

	tokenPair, err := s.generateTokenPair(driver.ID.String(), driver.Email, string(driver.Role))
	if err != nil {
		return nil, err
	}

	s.logger.LogAuthSuccess(ctx, driver.ID.String(), "register")

	return &AuthResponse{
		Driver:       ToDriverResponse(driver),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

func (s *service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	driver, err := s.repo.GetDriverByEmail(ctx, req.Email)
	if err != nil {
		if err == ErrDriverNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(driver.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokenPair, err := s.generateTokenPair(driver.ID.String(), driver.Email, string(driver.Role))
	if err != nil {
		return nil, err
	}

	s.logger.LogAuthSuccess(ctx, driver.ID.String(), "login")

	return &AuthResponse{
		Driver:       ToDriverResponse(driver),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Type != "refresh" {
		return nil, ErrInvalidToken
	}

	driverID, err := uuid.Parse(claims.DriverID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	driver, err := s.repo.GetDriverByID(ctx, driverID)
	if err != nil {
		return nil, ErrDriverNotFound
	}

	return s.generateTokenPair(driver.ID.String(), driver.Email, string(driver.Role))
}

func (s *service) ChangePassword(ctx context.Context, driverID uuid.UUID, req *ChangePasswordRequest) error {
	driver, err := s.repo.GetDriverByID(ctx, driverID)
	if err != nil {
		return ErrDriverNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(driver.Password), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.repo.UpdateDriverPassword(ctx, driverID, string(hashedPassword))
}

func (s *service) GetProfile(ctx context.Context, driverID uuid.UUID) (*DriverResponse, error) {
	driver, err := s.repo.GetDriverByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	resp := ToDriverResponse(driver)
	return &resp, nil
}

func (s *service) TopUpWallet(ctx context.Context, driverID uuid.UUID, amount float64) (*DriverResponse, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.repo.CreditWallet(ctx, driverID, amount); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, driverID)
}

func (s *service) DebitWallet(ctx context.Context, driverID uuid.UUID, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.DebitWallet(ctx, driverID, amount)
}

func (s *service) CreditWallet(ctx context.Context, driverID uuid.UUID, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.CreditWallet(ctx, driverID, amount)
}

func (s *service) RecordDebt(ctx context.Context, driverID uuid.UUID, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.AddDebt(ctx, driverID, amount)
}

func (s *service) ValidateToken(tokenString string) (*JWTClaims, error) {
	return s.validateToken(tokenString)
}

func (s *service) generateTokenPair(driverID, email, role string) (*TokenPair, error) {
	now := time.Now()

	accessClaims := JWTClaims{
		DriverID: driverID,
		Email:    email,
		Role:     role,
		Type:     "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.JWTExpiresIn)),
			Issuer:    "parkwell",
			Subject:   driverID,
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	refreshClaims := JWTClaims{
		DriverID: driverID,
		Email:    email,
		Role:     role,
		Type:     "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.RefreshExpiresIn)),
			Issuer:    "parkwell",
			Subject:   driverID,
		},
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.config.JWT.JWTExpiresIn.Seconds()),
	}, nil
}

func (s *service) validateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWT.Secret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
