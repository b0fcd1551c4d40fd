package domain

import (
	"github.com/btcsuite/btcd/wire"
)

// ConfirmationTime holds the block details of a confirmed transaction.
type ConfirmationTime struct {
	Height    uint32
	Timestamp uint64
}

// Transaction is a transaction as known by the wallet engine. Confirmation is
// nil as long as the transaction is unconfirmed.
type Transaction struct {
	Txid         string
	Tx           *wire.MsgTx
	Confirmation *ConfirmationTime
}

func (t Transaction) IsConfirmed() bool {
	return t.Confirmation != nil
}

// OwnershipView is the read-only view over a wallet engine needed to tell
// which scripts and outputs belong to a wallet.
type OwnershipView interface {
	// IsMine returns whether the script is derived from the wallet's
	// descriptors.
	IsMine(script []byte) bool
	// GetTxOut resolves a previous output from the wallet's tx graph.
	GetTxOut(outpoint wire.OutPoint) (*wire.TxOut, bool)
}
