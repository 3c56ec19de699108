package database

import (
	"fmt"

	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedOptions controls the demo data written by Seed.
type SeedOptions struct {
	RestaurantName string
	TableCount     int
	AdminEmail     string
	AdminPassword  string
}

// SeedResult reports what Seed created.
type SeedResult struct {
	Restaurant models.Restaurant
	Tables     []models.Table
	Menu       []models.MenuItem
	Admin      models.User
}

// Seed writes a restaurant with tables, a small menu and an admin account in one transaction.
func Seed(db *gorm.DB, opts SeedOptions) (*SeedResult, error) {
	if opts.RestaurantName == "" {
		opts.RestaurantName = "QR Bistro"
	}
	if opts.TableCount <= 0 {
		opts.TableCount = 10
	}
	if opts.AdminEmail == "" {
		opts.AdminEmail = "admin@example.com"
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = "secret123"
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	result := &SeedResult{}
	err = db.Transaction(func(tx *gorm.DB) error {
		result.Restaurant = models.Restaurant{Name: opts.RestaurantName}
		if err := tx.Create(&result.Restaurant).Error; err != nil {
			return fmt.Errorf("create restaurant: %w", err)
		}

		for i := 1; i <= opts.TableCount; i++ {
			table := models.Table{
				RestaurantID: result.Restaurant.ID,
				Label:        fmt.Sprintf("T%d", i),
				Capacity:     4,
				Active:       true,
			}
			if err := tx.Create(&table).Error; err != nil {
				return fmt.Errorf("create table %d: %w", i, err)
			}
			result.Tables = append(result.Tables, table)
		}

		result.Menu = []models.MenuItem{
			{
				RestaurantID: result.Restaurant.ID,
				Name:         "Margherita Pizza",
				Price:        12,
				IsAvailable:  true,
				CustomizationOptions: datatypes.NewJSONType([]models.CustomizationOption{
					{Name: "Extra Cheese", Price: 1.5},
					{Name: "Thin Crust", Price: 0},
				}),
			},
			{
				RestaurantID:         result.Restaurant.ID,
				Name:                 "Caesar Salad",
				Price:                8,
				IsAvailable:          true,
				CustomizationOptions: datatypes.NewJSONType([]models.CustomizationOption{{Name: "Grilled Chicken", Price: 3}}),
			},
			{
				RestaurantID:         result.Restaurant.ID,
				Name:                 "Lemonade",
				Price:                4,
				IsAvailable:          true,
				CustomizationOptions: datatypes.NewJSONType([]models.CustomizationOption{}),
			},
		}
		if err := tx.Create(&result.Menu).Error; err != nil {
			return fmt.Errorf("create menu: %w", err)
		}

		result.Admin = models.User{
			Name:     "Admin",
			Email:    opts.AdminEmail,
			Password: string(hashed),
			Role:     models.RoleAdmin,
		}
		if err := tx.Where(models.User{Email: opts.AdminEmail}).FirstOrCreate(&result.Admin).Error; err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Logger().Infof("Seeded restaurant %q with %d tables", result.Restaurant.Name, len(result.Tables))
	return result, nil
}
