// Package client talks to an rmp record server over TCP.
//
// Every call opens a fresh connection, sends one request, waits for the
// full response and closes the connection. Calls never return an error:
// network failures and server-side errors alike come back as
// (false, message).
//
// Example:
//
//	c := client.New(client.WithHost("127.0.0.1"), client.WithPort(12345))
//
//	ok, msg := c.Create("a@example.com", record.Attributes{"name": "John", "phone": "0000000000"})
//	ok, body := c.Read("a@example.com")
package client
