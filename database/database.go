package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"whosaidit/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DefaultConfig はconfig.jsonが無い場合に使う開発用の設定
func DefaultConfig() models.Config {
	return models.Config{
		Port:           "8080",
		DBHost:         "localhost",
		DBPort:         "5432",
		DBUser:         "postgres",
		DBName:         "whosaidit",
		DBSSLMode:      "disable",
		RedisAddr:      "localhost:6379",
		JWTSecret:      "change-me",
		RoomStore:      "redis",
		QuestionStore:  "postgres",
		AllowedOrigins: []string{"http://localhost:5173"},
	}
}

// LoadConfig loads the configuration from filename on top of DefaultConfig and
// applies environment overrides. A missing file is not an error.
func LoadConfig(filename string) (models.Config, error) {
	config := DefaultConfig()
	configFile, err := os.Open(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config, err
	default:
		defer configFile.Close()
		if err := json.NewDecoder(configFile).Decode(&config); err != nil {
			return config, fmt.Errorf("decode %s: %w", filename, err)
		}
	}
	return applyEnv(config), nil
}

func applyEnv(config models.Config) models.Config {
	override := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override("PORT", &config.Port)
	override("DB_HOST", &config.DBHost)
	override("DB_PORT", &config.DBPort)
	override("DB_USER", &config.DBUser)
	override("DB_PASSWORD", &config.DBPassword)
	override("DB_NAME", &config.DBName)
	override("DB_SSLMODE", &config.DBSSLMode)
	override("REDIS_ADDR", &config.RedisAddr)
	override("REDIS_PASSWORD", &config.RedisPassword)
	override("JWT_SECRET", &config.JWTSecret)
	override("ROOM_STORE", &config.RoomStore)
	override("QUESTION_STORE", &config.QuestionStore)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			config.RedisDB = db
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		config.AllowedOrigins = strings.Split(v, ",")
	}
	return config
}

// DSN builds the PostgreSQL connection string.
func DSN(config models.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		config.DBHost, config.DBPort, config.DBUser, config.DBName, config.DBPassword, config.DBSSLMode)
}

func InitPostgreSQL(config models.Config, logger *zap.Logger) (*gorm.DB, error) {
	const maxRetries = 3
	const retryInterval = 5 * time.Second

	var err error
	for i := 0; i <= maxRetries; i++ {
		var gormDB *gorm.DB
		gormDB, err = gorm.Open(postgres.Open(DSN(config)), &gorm.Config{})
		if err == nil {
			return gormDB, nil
		}
		logger.Error("データベース接続のリトライ", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
}

// AutoMigrate creates or updates the questions table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Question{}); err != nil {
		return fmt.Errorf("migrate questions: %w", err)
	}
	return nil
}

func InitRedis(config models.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		rdb.Close()
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.RedisAddr))
	return rdb, nil
}
