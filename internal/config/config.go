package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	MQTT      MQTTConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type StorageConfig struct {
	// FirmwareDir is the root directory firmware binaries are written under.
	FirmwareDir string
	// MaxUploadBytes bounds a single firmware image upload.
	MaxUploadBytes int64
}

type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	HeartbeatTopic string
	ProgressTopic  string
	ResultTopic    string
	CommandPrefix  string
	QoS            byte
	// OfflineAfter is the heartbeat silence window before a device is
	// marked offline.
	OfflineAfter time.Duration
}

type RateLimitConfig struct {
	GeneralRPS   float64
	GeneralBurst int
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()

	viper.SetDefault("STORAGE_FIRMWARE_DIR", "data/firmware")
	viper.SetDefault("STORAGE_MAX_UPLOAD_BYTES", int64(64<<20))
	viper.SetDefault("MQTT_HEARTBEAT_TOPIC", "fleet/+/heartbeat")
	viper.SetDefault("MQTT_PROGRESS_TOPIC", "fleet/+/ota/progress")
	viper.SetDefault("MQTT_RESULT_TOPIC", "fleet/+/ota/result")
	viper.SetDefault("MQTT_COMMAND_PREFIX", "fleet")
	viper.SetDefault("MQTT_QOS", 1)
	viper.SetDefault("DEVICE_OFFLINE_AFTER", "5m")

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Storage: StorageConfig{
			FirmwareDir:    viper.GetString("STORAGE_FIRMWARE_DIR"),
			MaxUploadBytes: viper.GetInt64("STORAGE_MAX_UPLOAD_BYTES"),
		},
		MQTT: MQTTConfig{
			Broker:         viper.GetString("MQTT_BROKER"),
			ClientID:       viper.GetString("MQTT_CLIENT_ID"),
			Username:       viper.GetString("MQTT_USERNAME"),
			Password:       viper.GetString("MQTT_PASSWORD"),
			HeartbeatTopic: viper.GetString("MQTT_HEARTBEAT_TOPIC"),
			ProgressTopic:  viper.GetString("MQTT_PROGRESS_TOPIC"),
			ResultTopic:    viper.GetString("MQTT_RESULT_TOPIC"),
			CommandPrefix:  viper.GetString("MQTT_COMMAND_PREFIX"),
			QoS:            byte(viper.GetUint("MQTT_QOS")),
			OfflineAfter:   viper.GetDuration("DEVICE_OFFLINE_AFTER"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   viper.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: viper.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
