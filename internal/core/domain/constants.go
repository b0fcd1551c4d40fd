package domain

const (
	// AccountPrefix is prepended to the wallet name to build the ledger
	// account of a watched wallet.
	AccountPrefix = "watchdescriptor"
	// SharedOutputsSuffix identifies the sub-account holding the outputs of
	// transactions whose inputs are only partially owned by the wallet.
	SharedOutputsSuffix = "shared_outputs"
	// ExternalAccount is the counter-account for any value flowing from/to
	// parties other than the watched wallet.
	ExternalAccount = "external"
	// DefaultGapLimit is the number of consecutive unused addresses after
	// which the scan of a ranged descriptor stops.
	DefaultGapLimit = 20

	checksumLength = 8
)
