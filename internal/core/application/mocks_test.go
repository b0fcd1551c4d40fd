package application_test

import (
	"context"
	"sync/atomic"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/watchdescriptor/internal/core/application"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
)

// **** WalletEngine ****

type mockWalletEngine struct {
	mock.Mock
}

func (m *mockWalletEngine) LoadWallet(
	ctx context.Context, wallet domain.DescriptorWallet,
) (ports.WalletView, error) {
	args := m.Called(ctx, wallet)

	var res ports.WalletView
	if a := args.Get(0); a != nil {
		res = a.(ports.WalletView)
	}
	return res, args.Error(1)
}

// **** Datastore ****

type mockDatastore struct {
	mock.Mock
}

func (m *mockDatastore) Read(
	ctx context.Context, key []string,
) (*ports.DatastoreEntry, error) {
	args := m.Called(ctx, key)

	var res *ports.DatastoreEntry
	if a := args.Get(0); a != nil {
		res = a.(*ports.DatastoreEntry)
	}
	return res, args.Error(1)
}

func (m *mockDatastore) Write(
	ctx context.Context, key []string, value []byte, mode ports.DatastoreMode,
) (*ports.DatastoreEntry, error) {
	args := m.Called(ctx, key, value, mode)

	var res *ports.DatastoreEntry
	if a := args.Get(0); a != nil {
		res = a.(*ports.DatastoreEntry)
	}
	return res, args.Error(1)
}

func (m *mockDatastore) Close() {
	m.Called()
}

// **** Publisher ****

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(topic, message string) error {
	args := m.Called(topic, message)
	return args.Error(0)
}

// messages returns the messages published so far grouped by topic.
func (m *mockPublisher) messages() map[string][]string {
	msgs := make(map[string][]string)
	for _, call := range m.Calls {
		topic := call.Arguments.String(0)
		msgs[topic] = append(msgs[topic], call.Arguments.String(1))
	}
	return msgs
}

// blockingPublisher holds every delivery until release is closed.
type blockingPublisher struct {
	release   chan struct{}
	pending   int32
	delivered int32
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{release: make(chan struct{})}
}

func (p *blockingPublisher) Publish(topic, message string) error {
	atomic.AddInt32(&p.pending, 1)
	<-p.release
	atomic.AddInt32(&p.pending, -1)
	atomic.AddInt32(&p.delivered, 1)
	return nil
}

func (p *blockingPublisher) numPending() int {
	return int(atomic.LoadInt32(&p.pending))
}

func (p *blockingPublisher) numDelivered() int {
	return int(atomic.LoadInt32(&p.delivered))
}

// **** ChainTipSource ****

type mockChainTipSource struct {
	mock.Mock
}

func (m *mockChainTipSource) GetChainTip(ctx context.Context) (ports.BlockInfo, error) {
	args := m.Called(ctx)

	var res ports.BlockInfo
	if a := args.Get(0); a != nil {
		res = a.(ports.BlockInfo)
	}
	return res, args.Error(1)
}

type blockInfo struct {
	hash   string
	height uint32
}

func (b blockInfo) GetHash() string   { return b.hash }
func (b blockInfo) GetHeight() uint32 { return b.height }

// **** WatchService ****

type mockWatchService struct {
	mock.Mock
	blocks atomic.Int32
}

func (m *mockWatchService) WatchDescriptor(
	ctx context.Context, params application.WatchDescriptorParams,
) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *mockWatchService) ListDescriptors(
	ctx context.Context,
) (map[string]domain.WalletInfo, error) {
	args := m.Called(ctx)

	var res map[string]domain.WalletInfo
	if a := args.Get(0); a != nil {
		res = a.(map[string]domain.WalletInfo)
	}
	return res, args.Error(1)
}

func (m *mockWatchService) DeleteDescriptor(
	ctx context.Context, name string,
) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *mockWatchService) OnBlockAdded(
	ctx context.Context, block application.BlockAdded,
) error {
	m.blocks.Add(1)
	args := m.Called(ctx, block)
	return args.Error(0)
}

func (m *mockWatchService) Close() {
	m.Called()
}

// **** WalletView ****

type testView struct {
	scripts map[string]struct{}
	txouts  map[wire.OutPoint]*wire.TxOut
	txs     []domain.Transaction
}

func newTestView(txs ...domain.Transaction) *testView {
	v := &testView{
		scripts: map[string]struct{}{
			string(ownScript):    {},
			string(changeScript): {},
		},
		txouts: make(map[wire.OutPoint]*wire.TxOut),
		txs:    txs,
	}
	for _, tx := range txs {
		hash := tx.Tx.TxHash()
		for i, out := range tx.Tx.TxOut {
			v.txouts[wire.OutPoint{Hash: hash, Index: uint32(i)}] = out
		}
	}
	return v
}

func (v *testView) IsMine(script []byte) bool {
	_, ok := v.scripts[string(script)]
	return ok
}

func (v *testView) GetTxOut(op wire.OutPoint) (*wire.TxOut, bool) {
	out, ok := v.txouts[op]
	return out, ok
}

func (v *testView) Transactions() []domain.Transaction {
	return v.txs
}

// **** Fixtures ****

const testDescriptor = "raw(deadbeef)"

var (
	ownScript     = []byte{0x00, 0x14, 0x01}
	changeScript  = []byte{0x00, 0x14, 0x02}
	foreignScript = []byte{0x00, 0x14, 0xff}
)

// newReceiveTx returns a confirmed tx funding the wallet from an unknown
// outpoint.
func newReceiveTx(amount int64, height uint32) domain.Transaction {
	msgTx := wire.NewMsgTx(2)
	msgTx.AddTxIn(wire.NewTxIn(
		&wire.OutPoint{Hash: chainhash.Hash{byte(height)}, Index: 0}, nil, nil,
	))
	msgTx.AddTxOut(wire.NewTxOut(amount, ownScript))
	return newTransaction(msgTx, height)
}

// newSpendTx returns a tx spending the first output of prev to a foreign
// script, with change back to the wallet.
func newSpendTx(prev domain.Transaction, amount, change int64, height uint32) domain.Transaction {
	msgTx := wire.NewMsgTx(2)
	msgTx.AddTxIn(wire.NewTxIn(
		&wire.OutPoint{Hash: prev.Tx.TxHash(), Index: 0}, nil, nil,
	))
	msgTx.AddTxOut(wire.NewTxOut(amount, foreignScript))
	msgTx.AddTxOut(wire.NewTxOut(change, changeScript))
	return newTransaction(msgTx, height)
}

func newTransaction(msgTx *wire.MsgTx, height uint32) domain.Transaction {
	tx := domain.Transaction{Txid: msgTx.TxHash().String(), Tx: msgTx}
	if height > 0 {
		tx.Confirmation = &domain.ConfirmationTime{
			Height:    height,
			Timestamp: 1700000000 + uint64(height),
		}
	}
	return tx
}

// unconfirmed returns a copy of the tx without confirmation.
func unconfirmed(tx domain.Transaction) domain.Transaction {
	tx.Confirmation = nil
	return tx
}
