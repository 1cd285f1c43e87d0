package config

import (
	"time"

	"github.com/tidechat/realtime/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	WebSocket WebSocketConfig `json:"websocket" yaml:"websocket"`
	Mongo     MongoConfig     `json:"mongo" yaml:"mongo"`
	Upload    UploadConfig    `json:"upload" yaml:"upload"`
	Logging   logging.Config  `json:"logging" yaml:"logging"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// WebSocketConfig tunes the realtime transport
type WebSocketConfig struct {
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	MaxMessageSize  int64         `json:"max_message_size" yaml:"max_message_size"`
	ReadBufferSize  int           `json:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int           `json:"write_buffer_size" yaml:"write_buffer_size"`
	SendQueueSize   int           `json:"send_queue_size" yaml:"send_queue_size"`
}

// MongoConfig represents the document store connection
type MongoConfig struct {
	URI            string        `json:"uri" yaml:"uri"`
	Database       string        `json:"database" yaml:"database"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	OpTimeout      time.Duration `json:"op_timeout" yaml:"op_timeout"`
}

// UploadConfig represents the media upload service client
type UploadConfig struct {
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	MaxBodySize int64         `json:"max_body_size" yaml:"max_body_size"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  8 * 1024 * 1024,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			SendQueueSize:   256,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "tidechat",
			ConnectTimeout: 10 * time.Second,
			OpTimeout:      5 * time.Second,
		},
		Upload: UploadConfig{
			BaseURL:     "http://localhost:9100",
			Timeout:     30 * time.Second,
			MaxBodySize: 32 * 1024 * 1024,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.WebSocket.MaxMessageSize <= 0 {
		return NewConfigError("websocket.max_message_size", "must be positive")
	}

	if c.WebSocket.SendQueueSize <= 0 {
		return NewConfigError("websocket.send_queue_size", "must be positive")
	}

	if c.Mongo.URI == "" {
		return NewConfigError("mongo.uri", "connection string is required")
	}

	if c.Mongo.Database == "" {
		return NewConfigError("mongo.database", "database name is required")
	}

	if c.Upload.BaseURL == "" {
		return NewConfigError("upload.base_url", "upload service URL is required")
	}

	return nil
}
