package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoShardsAvailable means discovery succeeded but no shard could serve the room.
	ErrNoShardsAvailable = errors.New("no shards available")

	// ErrInvalidRoom is returned for an empty room identifier.
	ErrInvalidRoom = errors.New("room id is required")
)

// DiscoveryError is returned when both SRV and address-record lookups failed.
type DiscoveryError struct {
	Service string
	SRVErr  error
	AErr    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery of %s failed: srv: %v; a: %v", e.Service, e.SRVErr, e.AErr)
}

func (e *DiscoveryError) Unwrap() []error {
	return []error{e.SRVErr, e.AErr}
}
