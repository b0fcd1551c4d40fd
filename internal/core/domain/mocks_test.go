package domain_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
)

const testDescriptor = "raw(deadbeef)"

var (
	ownScript     = []byte{0x00, 0x14, 0x01}
	ownChange     = []byte{0x00, 0x14, 0x02}
	foreignScript = []byte{0x00, 0x14, 0xff}
)

/*
 * OwnershipView
 */
type mockOwnershipView struct {
	scripts map[string]struct{}
	txouts  map[wire.OutPoint]*wire.TxOut
}

func newMockOwnershipView(scripts ...[]byte) *mockOwnershipView {
	v := &mockOwnershipView{
		scripts: make(map[string]struct{}),
		txouts:  make(map[wire.OutPoint]*wire.TxOut),
	}
	for _, s := range scripts {
		v.scripts[string(s)] = struct{}{}
	}
	return v
}

func (v *mockOwnershipView) IsMine(script []byte) bool {
	_, ok := v.scripts[string(script)]
	return ok
}

func (v *mockOwnershipView) GetTxOut(op wire.OutPoint) (*wire.TxOut, bool) {
	out, ok := v.txouts[op]
	return out, ok
}

// withPrevout registers a previous output in the view's tx graph and returns
// its outpoint.
func (v *mockOwnershipView) withPrevout(
	seed byte, index uint32, value int64, script []byte,
) wire.OutPoint {
	op := wire.OutPoint{Hash: chainhash.Hash{seed}, Index: index}
	v.txouts[op] = wire.NewTxOut(value, script)
	return op
}

func newTestWallet(t *testing.T) *domain.DescriptorWallet {
	w, err := domain.NewDescriptorWallet(
		testDescriptor, nil, nil, nil, domain.NetworkRegtest,
	)
	require.NoError(t, err)
	return w
}

type testOutput struct {
	value  int64
	script []byte
}

func newTestTx(
	inputs []wire.OutPoint, outputs []testOutput, height uint32,
) domain.Transaction {
	msgTx := wire.NewMsgTx(2)
	for _, op := range inputs {
		prev := op
		msgTx.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	}
	for _, out := range outputs {
		msgTx.AddTxOut(wire.NewTxOut(out.value, out.script))
	}

	tx := domain.Transaction{
		Txid: msgTx.TxHash().String(),
		Tx:   msgTx,
	}
	if height > 0 {
		tx.Confirmation = &domain.ConfirmationTime{
			Height:    height,
			Timestamp: 1700000000,
		}
	}
	return tx
}
