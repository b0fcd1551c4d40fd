package domain

import "errors"

var (
	// ErrMalformedDescriptor is returned if a descriptor, or its checksum,
	// can't be parsed.
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	// ErrNetworkMismatch is returned if a wallet targets a network different
	// from the one configured for the daemon.
	ErrNetworkMismatch = errors.New("network mismatch")
	// ErrWalletNotFound is returned when looking for a wallet name that is
	// not registered.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrUnknownNetwork is returned when parsing an unsupported network name.
	ErrUnknownNetwork = errors.New("unknown network")
)
