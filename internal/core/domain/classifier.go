package domain

import "github.com/btcsuite/btcd/wire"

// TxShape tells how the inputs of a transaction are split between the
// watched wallet and external parties.
type TxShape int

const (
	// TxShapeReceive means no input is owned by the wallet.
	TxShapeReceive TxShape = iota
	// TxShapeSpend means every input resolves to an output of the wallet.
	TxShapeSpend
	// TxShapeShared means only some of the inputs are owned by the wallet.
	TxShapeShared
)

func (s TxShape) String() string {
	switch s {
	case TxShapeSpend:
		return "spend"
	case TxShapeShared:
		return "shared"
	default:
		return "receive"
	}
}

// ClassifyTransaction returns the shape of the transaction from the point of
// view of the wallet exposing the given ownership view.
// Inputs whose previous output can't be resolved are never considered owned.
// A transaction without inputs spends nothing of the wallet, so it's a
// receive: only the outputs paying the wallet are reported.
func ClassifyTransaction(view OwnershipView, tx Transaction) TxShape {
	if tx.Tx == nil || len(tx.Tx.TxIn) <= 0 {
		return TxShapeReceive
	}

	owned, notOwned := 0, 0
	for _, in := range tx.Tx.TxIn {
		if _, ok := ownedPrevout(view, in); ok {
			owned++
		} else {
			notOwned++
		}
	}

	switch {
	case notOwned == 0:
		return TxShapeSpend
	case owned == 0:
		return TxShapeReceive
	default:
		return TxShapeShared
	}
}

func ownedPrevout(view OwnershipView, in *wire.TxIn) (*wire.TxOut, bool) {
	prevout, ok := view.GetTxOut(in.PreviousOutPoint)
	if !ok || prevout == nil {
		return nil, false
	}
	if !view.IsMine(prevout.PkScript) {
		return nil, false
	}
	return prevout, true
}
