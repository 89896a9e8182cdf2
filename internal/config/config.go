package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the chat service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	JWTSecret          string
	EventChannelBase   string
	PropertyServiceURL string
	EscrowServiceURL   string
	DirectoryTimeout   time.Duration
	PresenceTTL        time.Duration
	LastMessageTTL     time.Duration
	WSKeepAlive        time.Duration
	AttachmentMaxMB    int
	CloudinaryCloud    string
	CloudinaryKey      string
	CloudinarySecret   string
	CloudinaryFolder   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HAVEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Haven Chat API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel_base", "haven")
	v.SetDefault("directory.timeout", "5s")
	v.SetDefault("presence.ttl", "5m")
	v.SetDefault("chat.last_message_ttl", "30m")
	v.SetDefault("ws.keepalive", "30s")
	v.SetDefault("attachment.max_mb", 25)
	v.SetDefault("cloudinary.folder", "haven/chat")

	directoryTimeout, err := time.ParseDuration(v.GetString("directory.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid directory timeout: %w", err)
	}

	presenceTTL, err := time.ParseDuration(v.GetString("presence.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid presence ttl: %w", err)
	}

	lastMessageTTL, err := time.ParseDuration(v.GetString("chat.last_message_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid last message ttl: %w", err)
	}

	keepAlive, err := time.ParseDuration(v.GetString("ws.keepalive"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ws keepalive: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		EventChannelBase:   v.GetString("events.channel_base"),
		PropertyServiceURL: v.GetString("property.service_url"),
		EscrowServiceURL:   v.GetString("escrow.service_url"),
		DirectoryTimeout:   directoryTimeout,
		PresenceTTL:        presenceTTL,
		LastMessageTTL:     lastMessageTTL,
		WSKeepAlive:        keepAlive,
		AttachmentMaxMB:    v.GetInt("attachment.max_mb"),
		CloudinaryCloud:    v.GetString("cloudinary.cloud_name"),
		CloudinaryKey:      v.GetString("cloudinary.api_key"),
		CloudinarySecret:   v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:   v.GetString("cloudinary.folder"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AttachmentMaxMB <= 0 {
		cfg.AttachmentMaxMB = 25
	}

	return cfg, nil
}
