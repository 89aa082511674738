package network

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a named network does not exist in a store.
var ErrNotFound = errors.New("network not found")

// Summary describes a stored network without loading it.
type Summary struct {
	Name          string    `json:"name"`
	NodeCount     int       `json:"node_count"`
	RelationCount int       `json:"relation_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NetworkStore persists named networks.
type NetworkStore interface {
	// SaveNetwork stores n under n.Name, replacing any existing network of
	// the same name.
	SaveNetwork(ctx context.Context, n *Network) error

	// LoadNetwork returns the named network or an error wrapping ErrNotFound.
	LoadNetwork(ctx context.Context, name string) (*Network, error)

	// ListNetworks returns summaries sorted by name.
	ListNetworks(ctx context.Context) ([]Summary, error)

	// DeleteNetwork removes the named network. Deleting a missing network
	// returns an error wrapping ErrNotFound.
	DeleteNetwork(ctx context.Context, name string) error

	Close() error
}
