// Package config provides host configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/typed-ipc/pkg/serialize"
)

const logPrefix = "config:LoadConfig"

// Serializer names accepted in IPC_SERIALIZER.
const (
	SerializerNone = "none"
	SerializerJSON = "json"
	SerializerCBOR = "cbor"
)

// Config holds ipc-host configuration.
type Config struct {
	// COMMS: connect to NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"ipc-host"`

	// Channel registry
	SubjectPrefix string `envconfig:"IPC_SUBJECT_PREFIX" default:"ipc"`
	Separator     string `envconfig:"IPC_SEPARATOR" default:"::"`
	Serializer    string `envconfig:"IPC_SERIALIZER" default:"none"`
	SchemaVersion string `envconfig:"IPC_SCHEMA_VERSION" default:"1.0.0"`
	RendererID    string `envconfig:"IPC_RENDERER_ID"`
	ManifestFile  string `envconfig:"IPC_MANIFEST_FILE"`

	// RequestTimeout bounds CLI-side invocations only; the registry itself
	// imposes no timeout.
	RequestTimeout time.Duration `envconfig:"IPC_REQUEST_TIMEOUT" default:"10s"`
	TickInterval   time.Duration `envconfig:"IPC_TICK_INTERVAL" default:"1s"`

	// RendererTTL drops ready renderers that have not repeated app::ready
	// within it. Zero keeps them until their target reports closed.
	RendererTTL time.Duration `envconfig:"IPC_RENDERER_TTL" default:"30s"`

	// Embedded broker (broker command)
	BrokerHost string `envconfig:"BROKER_HOST" default:"127.0.0.1"`
	BrokerPort int    `envconfig:"BROKER_PORT" default:"4222"`

	// HTTP status endpoint (IPC_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr string `envconfig:"IPC_HTTP_ADDR"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// NewSerializer returns the serializer named by IPC_SERIALIZER, or nil for none.
func (c *Config) NewSerializer() (serialize.Serializer, error) {
	switch c.Serializer {
	case "", SerializerNone:
		return nil, nil
	case SerializerJSON:
		return serialize.JSON(), nil
	case SerializerCBOR:
		return serialize.CBOR()
	}
	return nil, fmt.Errorf("%s - IPC_SERIALIZER must be one of none, json, cbor; got %q", logPrefix, c.Serializer)
}

func (c *Config) validateCommon() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required", logPrefix)
	}
	if c.SubjectPrefix == "" {
		return fmt.Errorf("%s - IPC_SUBJECT_PREFIX is required", logPrefix)
	}
	if c.Separator == "" {
		return fmt.Errorf("%s - IPC_SEPARATOR is required", logPrefix)
	}
	if _, err := semver.NewVersion(c.SchemaVersion); err != nil {
		return fmt.Errorf("%s - IPC_SCHEMA_VERSION %q is not a semantic version: %w", logPrefix, c.SchemaVersion, err)
	}
	if _, err := c.NewSerializer(); err != nil {
		return err
	}
	return nil
}

// ValidateForServe checks required config when running the main-process host.
func (c *Config) ValidateForServe() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%s - IPC_TICK_INTERVAL must be positive", logPrefix)
	}
	if c.RendererTTL < 0 {
		return fmt.Errorf("%s - IPC_RENDERER_TTL must not be negative", logPrefix)
	}
	return nil
}

// ValidateForCall checks required config when acting as a renderer.
func (c *Config) ValidateForCall() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - IPC_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForBroker checks required config when running the embedded broker.
func (c *Config) ValidateForBroker() error {
	if c.BrokerPort <= 0 || c.BrokerPort > 65535 {
		return fmt.Errorf("%s - BROKER_PORT must be in 1..65535", logPrefix)
	}
	return nil
}
