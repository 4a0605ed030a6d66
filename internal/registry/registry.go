// Package registry defines the share registry collaborator and its HTTP client.
//
// The registry is the remote authoritative service that records which peer
// owns which file. It may reboot, time out, or silently drop listings between
// heartbeats; callers own the reconciliation of that loss.
package registry

import (
	"context"
	"errors"
)

// ErrNameConflict is returned by Register when the owner already has a
// listing with the same file name. The registry forbids duplicate names per
// owner.
var ErrNameConflict = errors.New("registry: file name already listed for owner")

// Listing is one search result. Owner address and port are withheld by the
// registry for privacy; use Owner to resolve them immediately before a
// transfer.
type Listing struct {
	ID   int64  `json:"id"`
	Name string `json:"file_name"`
}

// Owner identifies the peer endpoint serving a listed file.
type Owner struct {
	Name    string `json:"file_name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Client is the consuming edge of the share registry.
type Client interface {
	// Register lists a file for the owner and returns the registry-assigned
	// listing ID. Returns ErrNameConflict when the owner already lists a
	// file with the same name.
	Register(ctx context.Context, ownerID, fileName, ownerAddr string, ownerPort int) (int64, error)

	// Unregister removes a listing. It is an idempotent no-op if the listing
	// is already absent.
	Unregister(ctx context.Context, listingID int64, ownerID string) error

	// Search returns listings whose file name matches the query.
	Search(ctx context.Context, query string) ([]Listing, error)

	// Owner resolves the peer endpoint for a listing.
	Owner(ctx context.Context, listingID int64) (Owner, error)

	// LeaseSeconds returns the registry's advisory listing TTL in seconds.
	LeaseSeconds(ctx context.Context) (int, error)

	// Heartbeat refreshes every listing of the owner. A false return means
	// the registry no longer holds any listing for the owner.
	Heartbeat(ctx context.Context, ownerID string) (bool, error)

	// Disconnect removes every listing of the owner. Best effort, used on
	// shutdown.
	Disconnect(ctx context.Context, ownerID string) error
}
