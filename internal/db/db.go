package db

import (
	"context"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stockwatch/backend/internal/config"
	"github.com/stockwatch/backend/internal/models"
)

// Connect establishes a connection to the database and migrates the schema.
// TranslateError lets unique-constraint violations surface as
// gorm.ErrDuplicatedKey regardless of driver.
func Connect(config config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(config.URL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the users, companies and watchlist tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Company{},
		&models.WatchlistEntry{},
	)
}

// ConnectRedis establishes a connection to Redis
func ConnectRedis(config config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	ctx := context.Background()

	// Test the connection
	_, err = client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}

	return client, nil
}
