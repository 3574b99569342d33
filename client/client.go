package client

import (
	"fmt"
	"net"
	"strconv"

	"github.com/0xRadioAc7iv/go-rmp/internal/config"
	"github.com/0xRadioAc7iv/go-rmp/internal/protocol"
	"github.com/0xRadioAc7iv/go-rmp/internal/record"
	"github.com/0xRadioAc7iv/go-rmp/internal/validate"
)

type Client struct {
	cfg    *config.ClientConfig
	schema *validate.Schema
}

func New(opts ...Option) *Client {
	c := &Client{cfg: config.DefaultClientConfig()}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Addr returns the host:port the client dials.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// Create stores a new record. It fails if the key already exists.
func (c *Client) Create(key string, attrs record.Attributes) (bool, string) {
	return c.Execute(protocol.Create, key, attrs)
}

// Read fetches a record. On success the message is the record's JSON.
func (c *Client) Read(key string) (bool, string) {
	return c.Execute(protocol.Read, key, nil)
}

// Update changes only the attributes present in attrs.
func (c *Client) Update(key string, attrs record.Attributes) (bool, string) {
	return c.Execute(protocol.Update, key, attrs)
}

func (c *Client) Delete(key string) (bool, string) {
	return c.Execute(protocol.Delete, key, nil)
}

// Execute runs any command and folds every failure into (false, message).
// Attributes are dropped for READ and DELETE.
func (c *Client) Execute(cmd protocol.Command, key string, attrs record.Attributes) (bool, string) {
	if cmd == protocol.Read || cmd == protocol.Delete {
		attrs = nil
	}
	rec := record.New(key, attrs)

	if c.schema != nil {
		if err := validate.Validate(cmd, rec, *c.schema); err != nil {
			return false, err.Error()
		}
	}

	resp, err := c.Do(cmd, rec)
	if err != nil {
		return false, err.Error()
	}

	return resp.OK(), string(resp.Body)
}

// Do performs one request/response exchange on a fresh connection and
// reports transport failures as errors.
func (c *Client) Do(cmd protocol.Command, rec record.Record) (*protocol.Response, error) {
	body, err := record.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.Addr(), err)
	}
	defer conn.Close()

	if err := protocol.WriteRequest(conn, cmd, body); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	resp, err := protocol.DecodeResponse(conn, c.cfg.MaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return resp, nil
}

func (c *Client) dial() (net.Conn, error) {
	if c.cfg.DialTimeout > 0 {
		return net.DialTimeout("tcp", c.Addr(), c.cfg.DialTimeout)
	}
	return net.Dial("tcp", c.Addr())
}
