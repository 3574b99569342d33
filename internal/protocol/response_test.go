package protocol_test

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/0xRadioAc7iv/go-rmp/internal/protocol"
)

func TestEncodeDecodeResponse(t *testing.T) {
	tests := []struct {
		name   string
		status protocol.Status
		body   string
	}{
		{"empty ok", protocol.StatusOK, ""},
		{"record body", protocol.StatusOK, `{"key":"a@example.com","attributes":{"name":"John"}}`},
		{"error text", protocol.StatusError, "record does not exist"},
		{"multiline error", protocol.StatusError, "line1\nline2"},
		{"unicode body", protocol.StatusOK, "こんにちは世界"},
		{"large body", protocol.StatusOK, string(make([]byte, 2048))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			go func() {
				_ = protocol.WriteResponse(client, tt.status, []byte(tt.body))
			}()

			resp, err := protocol.DecodeResponse(server, protocol.DefaultMaxBodySize)
			if err != nil {
				t.Fatalf("DecodeResponse failed: %v", err)
			}

			if resp.Status != tt.status {
				t.Errorf("Status mismatch: got %v, want %v", resp.Status, tt.status)
			}
			if string(resp.Body) != tt.body {
				t.Errorf("Body mismatch: got %q, want %q", resp.Body, tt.body)
			}
			if resp.OK() != (tt.status == protocol.StatusOK) {
				t.Errorf("OK() = %v for status %v", resp.OK(), tt.status)
			}
		})
	}
}

func TestEncodedResponseLayout(t *testing.T) {
	payload, err := protocol.EncodeResponse(protocol.StatusError, []byte("no"))
	if err != nil {
		t.Fatalf("EncodeResponse failed: %v", err)
	}

	want := []byte{1, 0, 0, 0, 0, 0, 0, 2, 'n', 'o'}
	if !bytes.Equal(payload, want) {
		t.Fatalf("layout mismatch: got %v, want %v", payload, want)
	}
}

func TestDecodeResponse_TruncatedPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload, err := protocol.EncodeResponse(protocol.StatusOK, []byte("hello world"))
	if err != nil {
		t.Fatalf("EncodeResponse failed: %v", err)
	}

	go func() {
		_, _ = client.Write(payload[:len(payload)/2])
		client.Close()
	}()

	if _, err := protocol.DecodeResponse(server, 0); err == nil {
		t.Fatalf("expected error on truncated response, got nil")
	}
}

func TestDecodeResponse_BlocksUntilComplete(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload, err := protocol.EncodeResponse(protocol.StatusOK, []byte("blocking test"))
	if err != nil {
		t.Fatalf("EncodeResponse failed: %v", err)
	}

	done := make(chan struct{})

	go func() {
		_, _ = protocol.DecodeResponse(server, 0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("DecodeResponse returned early")
	case <-time.After(50 * time.Millisecond):
	}

	_, _ = client.Write(payload)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("DecodeResponse did not return after full payload")
	}
}
