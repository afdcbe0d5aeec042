package main

import (
	"context"
	"fmt"
	"log"

	"parkwell/internal/drivers"
	"parkwell/internal/shared/config"
	"parkwell/internal/shared/database"
	"parkwell/internal/spots"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting ParkWell Database Seeder...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in the correct order (respecting foreign key constraints)
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"admin_actions",
		"refund_reconciliations",
		"payment_records",
		"sessions",
		"spots",
		"drivers",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll seeds all required data
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	if err := s.SeedDrivers(); err != nil {
		return fmt.Errorf("failed to seed drivers: %w", err)
	}

	if err := s.SeedSpots(); err != nil {
		return fmt.Errorf("failed to seed spots: %w", err)
	}

	// Clear Redis cache to ensure fresh state
	if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to clear Redis cache: %v", err)
	}

	return nil
}

// SeedDrivers creates 1 admin and 2 regular drivers with funded wallets
func (s *Seeder) SeedDrivers() error {
	fmt.Println("  👤 Seeding drivers...")

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	driversData := []struct {
		firstName   string
		lastName    string
		email       string
		role        drivers.Role
		vehicleType string
		plateNumber string
		wallet      float64
	}{
		{"Admin", "User", "admin@parkwell.io", drivers.RoleAdmin, "car", "", 0},
		{"Avery", "Nguyen", "avery@parkwell.io", drivers.RoleDriver, "car", "NYC-4821", 100},
		{"Jordan", "Reyes", "jordan@parkwell.io", drivers.RoleDriver, "bike", "NYC-0157", 40},
	}

	for _, d := range driversData {
		driver := drivers.Driver{
			ID:            uuid.New(),
			FirstName:     d.firstName,
			LastName:      d.lastName,
			Email:         d.email,
			Password:      string(hashedPassword),
			Role:          d.role,
			VehicleType:   d.vehicleType,
			PlateNumber:   d.plateNumber,
			WalletBalance: d.wallet,
		}
		if err := s.db.PostgreSQL.Create(&driver).Error; err != nil {
			return fmt.Errorf("failed to create driver %s: %w", d.email, err)
		}
		fmt.Printf("    Created driver: %s (%s)\n", d.email, d.role)
	}

	return nil
}

// SeedSpots creates the initial downtown spot inventory
func (s *Seeder) SeedSpots() error {
	fmt.Println("  🅿️  Seeding spots...")

	spotsData := []struct {
		name        string
		price       float64
		capacity    int
		lat         float64
		lng         float64
		vehicleType spots.VehicleType
		trustLevel  int
	}{
		{"Downtown Plaza Garage", 12, 14, 40.7128, -74.0060, spots.VehicleAny, 4},
		{"Westside Auto Park", 8, 3, 40.7150, -74.0090, spots.VehicleCar, 3},
		{"Times Square Valet", 25, 6, 40.7100, -74.0020, spots.VehicleAny, 5},
		{"Hudson River Lot", 15, 42, 40.7180, -74.0100, spots.VehicleAny, 3},
		{"Canal St Bike Racks", 3, 20, 40.7190, -74.0050, spots.VehicleBike, 2},
	}

	for _, sd := range spotsData {
		spot := spots.Spot{
			ID:          uuid.New(),
			Name:        sd.name,
			HourlyPrice: sd.price,
			Capacity:    sd.capacity,
			Available:   sd.capacity,
			Lat:         sd.lat,
			Lng:         sd.lng,
			VehicleType: sd.vehicleType,
			TrustLevel:  sd.trustLevel,
		}
		if err := s.db.PostgreSQL.Create(&spot).Error; err != nil {
			return fmt.Errorf("failed to create spot %s: %w", sd.name, err)
		}
		fmt.Printf("    Created spot: %s (capacity %d)\n", sd.name, sd.capacity)
	}

	return nil
}
