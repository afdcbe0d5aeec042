package drivers

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=100"`
	LastName    string `json:"last_name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	VehicleType string `json:"vehicle_type" validate:"omitempty,oneof=car bike truck"`
	PlateNumber string `json:"plate_number" validate:"omitempty,max=20"`
	Role        string `json:"role,omitempty"` // Optional, defaults to "DRIVER"
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Driver       DriverResponse `json:"driver"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresIn    int64          `json:"expires_in"`
}

// DriverResponse represents driver data in responses (without sensitive info)
type DriverResponse struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	VehicleType     string    `json:"vehicle_type"`
	PlateNumber     string    `json:"plate_number"`
	WalletBalance   float64   `json:"wallet_balance"`
	OutstandingDebt float64   `json:"outstanding_debt"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RefreshTokenRequest represents refresh token request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// TopUpRequest represents a wallet top-up request
type TopUpRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// JWTClaims represents JWT token claims
type JWTClaims struct {
	DriverID string `json:"driver_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Type     string `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func ToDriverResponse(driver *Driver) DriverResponse {
	return DriverResponse{
		ID:              driver.ID.String(),
		FirstName:       driver.FirstName,
		LastName:        driver.LastName,
		Email:           driver.Email,
		Role:            string(driver.Role),
		VehicleType:     driver.VehicleType,
		PlateNumber:     driver.PlateNumber,
		WalletBalance:   driver.WalletBalance,
		OutstandingDebt: driver.OutstandingDebt,
		CreatedAt:       driver.CreatedAt,
		UpdatedAt:       driver.UpdatedAt,
	}
}
