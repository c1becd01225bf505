// Package valkeystore provides the server's shared cache and the pub/sub broker
// that carries realtime events between server instances.
package valkeystore

import (
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// Connect opens a client to addr.
func Connect(addr, password string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey at %s: %w", addr, err)
	}
	return client, nil
}
