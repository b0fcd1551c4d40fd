package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// MovementDirection tells whether a coin movement adds or removes value.
type MovementDirection int

const (
	Deposit MovementDirection = iota
	Spend
)

func (d MovementDirection) String() string {
	if d == Spend {
		return "spend"
	}
	return "deposit"
}

// CoinMovement describes a single deposit into, or spend from, a ledger
// account. For spends, Outpoint refers to the consumed previous output, while
// for deposits it refers to the output of the reported transaction.
type CoinMovement struct {
	Direction      MovementDirection
	Account        string
	CounterAccount string
	Outpoint       string
	SpendingTxid   string
	Amount         uint64
	CoinType       string
	BlockHeight    uint32
	Timestamp      uint64
}

// BuildCoinMovements derives the coin movements of a new transaction of the
// wallet according to its shape. Unconfirmed transactions produce none.
// Within a transaction no (direction, outpoint) pair is ever repeated.
func BuildCoinMovements(
	wallet *DescriptorWallet, view OwnershipView, tx Transaction,
	shape TxShape, coinType string,
) []CoinMovement {
	if !tx.IsConfirmed() || tx.Tx == nil {
		return nil
	}

	b := &movementBuilder{
		wallet:   wallet,
		view:     view,
		tx:       tx,
		coinType: coinType,
		seen:     make(map[string]struct{}),
	}

	switch shape {
	case TxShapeSpend:
		b.addSpends()
		b.addDeposits(wallet.Account(), true)
	case TxShapeShared:
		b.addSpends()
		b.addDeposits(wallet.SharedAccount(), true)
	default:
		b.addDeposits(wallet.Account(), false)
	}
	return b.movements
}

type movementBuilder struct {
	wallet    *DescriptorWallet
	view      OwnershipView
	tx        Transaction
	coinType  string
	seen      map[string]struct{}
	movements []CoinMovement
}

// addSpends adds a spend for every input consuming an output of the wallet.
func (b *movementBuilder) addSpends() {
	for _, in := range b.tx.Tx.TxIn {
		prevout, ok := ownedPrevout(b.view, in)
		if !ok {
			continue
		}
		b.add(CoinMovement{
			Direction: Spend,
			Account:   b.wallet.Account(),
			Outpoint:  outpointString(in.PreviousOutPoint),
			Amount:    uint64(prevout.Value),
		})
	}
}

// addDeposits adds a deposit for every output of the transaction. The wallet
// account is the receiving side for owned outputs and the sending side for
// the others, that are skipped unless includeForeign is set.
func (b *movementBuilder) addDeposits(walletAccount string, includeForeign bool) {
	for vout, out := range b.tx.Tx.TxOut {
		account, counterAccount := walletAccount, ExternalAccount
		if !b.view.IsMine(out.PkScript) {
			if !includeForeign {
				continue
			}
			account, counterAccount = ExternalAccount, walletAccount
		}
		b.add(CoinMovement{
			Direction:      Deposit,
			Account:        account,
			CounterAccount: counterAccount,
			Outpoint:       fmt.Sprintf("%s:%d", b.tx.Txid, vout),
			Amount:         uint64(out.Value),
		})
	}
}

func (b *movementBuilder) add(m CoinMovement) {
	key := fmt.Sprintf("%s/%s", m.Direction, m.Outpoint)
	if _, ok := b.seen[key]; ok {
		return
	}
	b.seen[key] = struct{}{}

	m.SpendingTxid = b.tx.Txid
	m.CoinType = b.coinType
	m.BlockHeight = b.tx.Confirmation.Height
	m.Timestamp = b.tx.Confirmation.Timestamp
	b.movements = append(b.movements, m)
}

func outpointString(op wire.OutPoint) string {
	return fmt.Sprintf("%s:%d", op.Hash, op.Index)
}
