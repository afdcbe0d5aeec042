package drivers

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleDriver Role = "DRIVER"
	RoleAdmin  Role = "ADMIN"
)

func IsValidRole(role string) bool {
	switch role {
	case string(RoleDriver), string(RoleAdmin):
		return true
	default:
		return false
	}
}

type Driver struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	FirstName string    `json:"first_name" gorm:"not null"`
	LastName  string    `json:"last_name" gorm:"not null"`
	Password  string    `json:"-" gorm:"not null"` // hide in json
	Role      Role      `json:"role" gorm:"not null;default:'DRIVER'"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`

	VehicleType string `json:"vehicle_type" gorm:"type:varchar(10);default:'car'"`
	PlateNumber string `json:"plate_number" gorm:"type:varchar(20)"`

	// WalletBalance funds reservations; OutstandingDebt accrues when a
	// settlement penalty exceeds the deposit.
	WalletBalance   float64 `json:"wallet_balance" gorm:"not null;default:0;check:wallet_balance >= 0"`
	OutstandingDebt float64 `json:"outstanding_debt" gorm:"not null;default:0;check:outstanding_debt >= 0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Driver) TableName() string {
	return "drivers"
}

func (d *Driver) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
