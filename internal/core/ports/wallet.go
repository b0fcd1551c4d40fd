package ports

import (
	"context"

	"github.com/tdex-network/watchdescriptor/internal/core/domain"
)

// WalletEngine loads descriptor wallets and syncs them with the chain.
type WalletEngine interface {
	// LoadWallet derives the scripts of the wallet's descriptors and syncs
	// their history. Descriptors that can't be parsed must be reported with
	// domain.ErrMalformedDescriptor, while keys not meant for the wallet's
	// network with domain.ErrNetworkMismatch.
	LoadWallet(
		ctx context.Context, wallet domain.DescriptorWallet,
	) (WalletView, error)
}

// WalletView is a synced snapshot of a descriptor wallet.
type WalletView interface {
	domain.OwnershipView
	// Transactions returns the history of the wallet, confirmed transactions
	// first in ascending height order, then unconfirmed ones.
	Transactions() []domain.Transaction
}
