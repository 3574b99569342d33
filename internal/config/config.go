// Package config handles configuration loading and validation for the rmp
// server and client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xRadioAc7iv/go-rmp/internal/protocol"
	"github.com/0xRadioAc7iv/go-rmp/internal/validate"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 12345

	// MinWorkers is the smallest worker pool the server will run.
	MinWorkers = 4

	DefaultLogLevel = "info"
)

// ClientConfig holds the connection settings of a client.
type ClientConfig struct {
	Host        string
	Port        int
	DialTimeout time.Duration // 0 means no timeout
	MaxBodySize uint32
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Host:        DefaultHost,
		Port:        DefaultPort,
		MaxBodySize: protocol.DefaultMaxBodySize,
	}
}

// ServerConfig holds configuration for the record server.
type ServerConfig struct {
	Port               int           `yaml:"port"`
	RootDir            string        `yaml:"root_dir"`
	Workers            int           `yaml:"workers"`       // Defaults to max(4, NumCPU)
	MaxBodySize        uint32        `yaml:"max_body_size"` // Bytes; larger requests are rejected
	IOTimeout          time.Duration `yaml:"io_timeout"`    // Per-connection deadline, 0 disables it
	MetricsAddr        string        `yaml:"metrics_addr"`  // e.g. ":9100"; empty disables the endpoint
	LogLevel           string        `yaml:"log_level"`
	RequiredAttributes []string      `yaml:"required_attributes"` // Must be present on CREATE
}

// DefaultWorkers returns max(MinWorkers, runtime.NumCPU()).
func DefaultWorkers() int {
	return max(MinWorkers, runtime.NumCPU())
}

// DefaultServerConfig returns a config with every default applied and no
// root directory.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{}
	cfg.applyDefaults()
	return cfg
}

// LoadServerConfig loads server configuration from a YAML file.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &ServerConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers()
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = protocol.DefaultMaxBodySize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.RequiredAttributes == nil {
		c.RequiredAttributes = append([]string(nil), validate.DefaultRequired...)
	}
	// Expand home directory in root dir
	if strings.HasPrefix(c.RootDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			c.RootDir = filepath.Join(homeDir, c.RootDir[2:])
		}
	}
}

// Validate checks the configuration for errors.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RootDir == "" {
		return errors.New("root_dir is required")
	}
	if c.Workers < MinWorkers {
		return fmt.Errorf("workers must be at least %d, got %d", MinWorkers, c.Workers)
	}
	if c.IOTimeout < 0 {
		return errors.New("io_timeout must not be negative")
	}
	for _, name := range c.RequiredAttributes {
		if name == "" {
			return errors.New("required_attributes must not contain empty names")
		}
	}
	return nil
}

// Schema returns the validation schema described by the config.
func (c *ServerConfig) Schema() validate.Schema {
	return validate.Schema{Required: slices.Clone(c.RequiredAttributes)}
}
