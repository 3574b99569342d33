package client

import (
	"time"

	"github.com/0xRadioAc7iv/go-rmp/internal/config"
	"github.com/0xRadioAc7iv/go-rmp/internal/validate"
)

type Option func(*Client)

func WithHost(host string) Option {
	return func(c *Client) {
		c.cfg.Host = host
	}
}

func WithPort(port int) Option {
	return func(c *Client) {
		c.cfg.Port = port
	}
}

// WithDialTimeout bounds connection setup. The default is no timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.cfg.DialTimeout = d
	}
}

// WithMaxBodySize caps the response body the client will accept.
func WithMaxBodySize(n uint32) Option {
	return func(c *Client) {
		c.cfg.MaxBodySize = n
	}
}

// WithLocalValidation rejects invalid requests before dialing the server.
func WithLocalValidation(schema validate.Schema) Option {
	return func(c *Client) {
		c.schema = &schema
	}
}

// FromConfig replaces every connection setting at once.
func FromConfig(cfg config.ClientConfig) Option {
	return func(c *Client) {
		*c.cfg = cfg
	}
}
