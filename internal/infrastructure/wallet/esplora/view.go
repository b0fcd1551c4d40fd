package esplorawallet

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
)

// walletView is the snapshot of a wallet after a sync. Previous outputs are
// resolved only from the fetched transactions and the prevouts esplora
// attached to their inputs.
type walletView struct {
	scripts map[string]struct{}
	txOuts  map[wire.OutPoint]*wire.TxOut
	txs     []domain.Transaction
}

func newWalletView(
	scripts map[string]struct{}, txs map[string]esploraTx, birthday *uint32,
) (*walletView, error) {
	view := &walletView{
		scripts: scripts,
		txOuts:  make(map[wire.OutPoint]*wire.TxOut),
		txs:     make([]domain.Transaction, 0, len(txs)),
	}

	for _, etx := range txs {
		tx, err := etx.toDomain()
		if err != nil {
			return nil, err
		}

		hash, err := chainhash.NewHashFromStr(tx.Txid)
		if err != nil {
			return nil, err
		}
		for i, out := range tx.Tx.TxOut {
			view.txOuts[*wire.NewOutPoint(hash, uint32(i))] = out
		}

		for i, in := range etx.Vin {
			if in.IsCoinbase || in.Prevout == nil {
				continue
			}
			prevout, err := in.Prevout.toWire()
			if err != nil {
				return nil, err
			}
			view.txOuts[tx.Tx.TxIn[i].PreviousOutPoint] = prevout
		}

		if birthday != nil && tx.IsConfirmed() &&
			tx.Confirmation.Height < *birthday {
			continue
		}
		view.txs = append(view.txs, *tx)
	}

	sort.SliceStable(view.txs, func(i, j int) bool {
		a, b := view.txs[i], view.txs[j]
		if a.IsConfirmed() != b.IsConfirmed() {
			return a.IsConfirmed()
		}
		if a.IsConfirmed() && a.Confirmation.Height != b.Confirmation.Height {
			return a.Confirmation.Height < b.Confirmation.Height
		}
		return a.Txid < b.Txid
	})

	return view, nil
}

func (v *walletView) IsMine(script []byte) bool {
	_, ok := v.scripts[string(script)]
	return ok
}

func (v *walletView) GetTxOut(outpoint wire.OutPoint) (*wire.TxOut, bool) {
	out, ok := v.txOuts[outpoint]
	return out, ok
}

func (v *walletView) Transactions() []domain.Transaction {
	txs := make([]domain.Transaction, len(v.txs))
	copy(txs, v.txs)
	return txs
}
