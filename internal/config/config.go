// Package config loads the hub's configuration from an optional JSON file
// with environment variable overrides, following the pattern the hub's
// WebSocket server is modeled on.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ReadTimeout    int    `json:"readTimeout"`
	WriteTimeout   int    `json:"writeTimeout"`
	MaxMessageSize int64  `json:"maxMessageSize"`
}

type WebSocketConfig struct {
	CheckOrigin       bool `json:"checkOrigin"`
	ReadBufferSize    int  `json:"readBufferSize"`
	WriteBufferSize   int  `json:"writeBufferSize"`
	HandshakeTimeout  int  `json:"handshakeTimeout"`
	IdleTimeoutSecs   int  `json:"idleTimeoutSecs"`
	PingIntervalSecs  int  `json:"pingIntervalSecs"`
}

type AuthConfig struct {
	RequireAuth     bool   `json:"requireAuth"`
	JWTSecret       string `json:"jwtSecret"`
	TokenExpiration int    `json:"tokenExpiration"`
	AdminAPIKey     string `json:"adminApiKey"`
}

type MetricsConfig struct {
	EnablePrometheus bool   `json:"enablePrometheus"`
	MetricsPath      string `json:"metricsPath"`
}

type NATSConfig struct {
	URL           string `json:"url"`
	MaxReconnects int    `json:"maxReconnects"`
	ReconnectWait int    `json:"reconnectWaitMs"`
}

// RoomConfig holds the per-match tunables. Only batchWindowMs,
// persistenceDebounceSecs and chatHistorySize are passed to the room
// package; zoneBufferSecs, the chat rate-limit and cooldown fields and
// voteKickExpirySecs are parsed but not read, and the room uses its own
// fixed constants for those.
type RoomConfig struct {
	BatchWindowMs       int     `json:"batchWindowMs"`
	ZoneBufferSecs      float64 `json:"zoneBufferSecs"`
	PersistenceDebounce int     `json:"persistenceDebounceSecs"`
	ChatHistorySize     int     `json:"chatHistorySize"`
	ChatRateLimitCount  int     `json:"chatRateLimitCount"`
	ChatRateLimitWindow int     `json:"chatRateLimitWindowSecs"`
	ChatCooldownSecs    float64 `json:"chatCooldownSecs"`
	VoteKickExpirySecs  int     `json:"voteKickExpirySecs"`
}

// ExternalConfig addresses the app this hub reports timelines and match
// lifecycle events to.
type ExternalConfig struct {
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"apiKey"`
	Timeout int    `json:"timeoutSecs"`
}

type Config struct {
	Server   ServerConfig    `json:"server"`
	WebSocket WebSocketConfig `json:"websocket"`
	Auth     AuthConfig      `json:"auth"`
	Metrics  MetricsConfig   `json:"metrics"`
	NATS     NATSConfig      `json:"nats"`
	Room     RoomConfig      `json:"room"`
	External ExternalConfig  `json:"external"`
}

const defaultConfig = `{
  "server": {
    "host": "0.0.0.0",
    "port": 3001,
    "readTimeout": 10,
    "writeTimeout": 10,
    "maxMessageSize": 1048576
  },
  "websocket": {
    "checkOrigin": true,
    "readBufferSize": 4096,
    "writeBufferSize": 4096,
    "handshakeTimeout": 10,
    "idleTimeoutSecs": 120,
    "pingIntervalSecs": 30
  },
  "auth": {
    "requireAuth": false,
    "jwtSecret": "",
    "tokenExpiration": 3600,
    "adminApiKey": ""
  },
  "metrics": {
    "enablePrometheus": true,
    "metricsPath": "/metrics"
  },
  "nats": {
    "url": "nats://localhost:4222",
    "maxReconnects": 10,
    "reconnectWaitMs": 1000
  },
  "room": {
    "batchWindowMs": 50,
    "zoneBufferSecs": 2,
    "persistenceDebounceSecs": 3,
    "chatHistorySize": 100,
    "chatRateLimitCount": 5,
    "chatRateLimitWindowSecs": 10,
    "chatCooldownSecs": 1,
    "voteKickExpirySecs": 30
  },
  "external": {
    "baseUrl": "http://localhost:3000",
    "apiKey": "",
    "timeoutSecs": 10
  }
}`

// Load reads configPath if set, otherwise the built-in defaults, then
// applies WS_*-prefixed environment overrides on top.
func Load(configPath string) (*Config, error) {
	data := []byte(defaultConfig)
	if configPath != "" {
		var err error
		data, err = os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString("WS_HOST", &cfg.Server.Host)
	overrideInt("WS_PORT", &cfg.Server.Port)
	overrideString("WS_JWT_SECRET", &cfg.Auth.JWTSecret)
	overrideBool("WS_REQUIRE_AUTH", &cfg.Auth.RequireAuth)
	overrideString("WS_API_KEY", &cfg.Auth.AdminAPIKey)
	overrideString("WS_NATS_URL", &cfg.NATS.URL)
	overrideString("WS_EXTERNAL_BASE_URL", &cfg.External.BaseURL)
	overrideString("WS_EXTERNAL_API_KEY", &cfg.External.APIKey)
	overrideBool("WS_ENABLE_PROMETHEUS", &cfg.Metrics.EnablePrometheus)
}

func overrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideBool(key string, dst *bool) {
	switch os.Getenv(key) {
	case "true":
		*dst = true
	case "false":
		*dst = false
	}
}

// Validate rejects configurations the hub cannot safely start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Auth.RequireAuth && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.requireAuth is set but auth.jwtSecret is empty")
	}
	if c.Auth.AdminAPIKey == "" {
		return fmt.Errorf("auth.adminApiKey must be set for the admin notify endpoints")
	}
	if c.External.BaseURL == "" {
		return fmt.Errorf("external.baseUrl must be set")
	}
	if c.Room.BatchWindowMs <= 0 {
		return fmt.Errorf("room.batchWindowMs must be positive")
	}
	return nil
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

func (c *WebSocketConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSecs) * time.Second
}

func (c *WebSocketConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSecs) * time.Second
}

func (c *ExternalConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
