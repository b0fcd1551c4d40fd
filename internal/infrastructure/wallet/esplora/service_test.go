package esplorawallet_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
	esplorawallet "github.com/tdex-network/watchdescriptor/internal/infrastructure/wallet/esplora"
)

var (
	ctx         = context.Background()
	regtest     = &chaincfg.RegressionNetParams
	testGap     = uint32(5)
	fingerprint = "d34db33f"
)

func newTestService(t *testing.T, f *fakeEsplora) *esplorawallet.Service {
	svc, err := esplorawallet.NewService(ctx, esplorawallet.Opts{
		URL:               f.URL,
		Network:           domain.NetworkRegtest,
		RequestsPerSecond: 1000,
		DefaultGap:        testGap,
	})
	require.NoError(t, err)
	return svc
}

func newTestXpub(t *testing.T, params *chaincfg.Params) *hdkeychain.ExtendedKey {
	master, err := hdkeychain.NewMaster(bytes.Repeat([]byte{0x01}, 32), params)
	require.NoError(t, err)
	xpub, err := master.Neuter()
	require.NoError(t, err)
	return xpub
}

// deriveWpkh returns the p2wpkh address of xpub/branch/index.
func deriveWpkh(
	t *testing.T, xpub *hdkeychain.ExtendedKey, branch, index uint32,
) btcutil.Address {
	key, err := xpub.Derive(branch)
	require.NoError(t, err)
	key, err = key.Derive(index)
	require.NoError(t, err)
	pubKey, err := key.ECPubKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubKey.SerializeCompressed()), regtest,
	)
	require.NoError(t, err)
	return addr
}

func payToAddr(t *testing.T, addr btcutil.Address) []byte {
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

func newWallet(
	t *testing.T, xpub *hdkeychain.ExtendedKey, birthday *uint32,
) domain.DescriptorWallet {
	external := fmt.Sprintf("wpkh([%s/84h/1h/0h]%s/0/*)", fingerprint, xpub)
	change := fmt.Sprintf("wpkh([%s/84h/1h/0h]%s/1/*)", fingerprint, xpub)
	wallet, err := domain.NewDescriptorWallet(
		external, &change, birthday, nil, domain.NetworkRegtest,
	)
	require.NoError(t, err)
	return *wallet
}

func TestNewService(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f := newFakeEsplora(t)
		svc := newTestService(t, f)
		require.NotNil(t, svc)
		require.NotEmpty(t, f.requestsWithPrefix("/block-height/0"))
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name  string
			setup func(f *fakeEsplora)
			opts  func(f *fakeEsplora) esplorawallet.Opts
			err   error
		}{
			{
				name: "network mismatch",
				setup: func(f *fakeEsplora) {
					f.genesisHash = chaincfg.MainNetParams.GenesisHash.String()
				},
				opts: func(f *fakeEsplora) esplorawallet.Opts {
					return esplorawallet.Opts{URL: f.URL, Network: domain.NetworkRegtest}
				},
				err: domain.ErrNetworkMismatch,
			},
			{
				name:  "unknown network",
				setup: func(f *fakeEsplora) {},
				opts: func(f *fakeEsplora) esplorawallet.Opts {
					return esplorawallet.Opts{URL: f.URL, Network: "liquid"}
				},
				err: domain.ErrUnknownNetwork,
			},
			{
				name:  "unhealthy explorer",
				setup: func(f *fakeEsplora) { f.failing = true },
				opts: func(f *fakeEsplora) esplorawallet.Opts {
					return esplorawallet.Opts{URL: f.URL, Network: domain.NetworkRegtest}
				},
			},
			{
				name:  "missing url",
				setup: func(f *fakeEsplora) {},
				opts: func(f *fakeEsplora) esplorawallet.Opts {
					return esplorawallet.Opts{Network: domain.NetworkRegtest}
				},
			},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				f := newFakeEsplora(t)
				tt.setup(f)

				svc, err := esplorawallet.NewService(ctx, tt.opts(f))
				require.Error(t, err)
				require.Nil(t, svc)
				if tt.err != nil {
					require.ErrorIs(t, err, tt.err)
				}
			})
		}
	})
}

func TestGetChainTip(t *testing.T) {
	f := newFakeEsplora(t)
	svc := newTestService(t, f)

	tip, err := svc.GetChainTip(ctx)
	require.NoError(t, err)
	require.Equal(t, f.tipHeight, tip.GetHeight())
	require.Equal(t, f.tipHash, tip.GetHash())

	f.setFailing(true)
	tip, err = svc.GetChainTip(ctx)
	require.Error(t, err)
	require.Nil(t, tip)
}

func TestLoadWallet(t *testing.T) {
	f := newFakeEsplora(t)
	svc := newTestService(t, f)
	xpub := newTestXpub(t, regtest)

	receiveAddr0 := deriveWpkh(t, xpub, 0, 0)
	receiveAddr3 := deriveWpkh(t, xpub, 0, 3)
	// Out of the gap limit, never discovered.
	receiveAddr15 := deriveWpkh(t, xpub, 0, 15)
	changeAddr1 := deriveWpkh(t, xpub, 1, 1)

	deposit := newTestTx(
		confirmedAt(101), []testVin{foreignInput(200000)},
		testVout{scriptHex(t, receiveAddr0), 150000},
		testVout{"0014" + hex.EncodeToString(make([]byte, 20)), 49000},
	)
	f.addTx(deposit, receiveAddr0)

	secondDeposit := newTestTx(
		confirmedAt(105), []testVin{foreignInput(80000)},
		testVout{scriptHex(t, receiveAddr3), 70000},
	)
	f.addTx(secondDeposit, receiveAddr3)

	lostDeposit := newTestTx(
		confirmedAt(106), []testVin{foreignInput(80000)},
		testVout{scriptHex(t, receiveAddr15), 70000},
	)
	f.addTx(lostDeposit, receiveAddr15)

	spend := newTestTx(
		testStatus{}, []testVin{spendingInput(deposit, 0)},
		testVout{"0014" + hex.EncodeToString(make([]byte, 20)), 100000},
		testVout{scriptHex(t, changeAddr1), 49000},
	)
	f.addTx(spend, receiveAddr0, changeAddr1)

	t.Run("full history", func(t *testing.T) {
		view, err := svc.LoadWallet(ctx, newWallet(t, xpub, nil))
		require.NoError(t, err)

		txs := view.Transactions()
		require.Len(t, txs, 3)
		require.Equal(t, deposit.Txid, txs[0].Txid)
		require.Equal(t, secondDeposit.Txid, txs[1].Txid)
		require.Equal(t, spend.Txid, txs[2].Txid)

		require.True(t, txs[0].IsConfirmed())
		require.Equal(t, uint32(101), txs[0].Confirmation.Height)
		require.Equal(t, uint64(1700000000+101*600), txs[0].Confirmation.Timestamp)
		require.False(t, txs[2].IsConfirmed())
		require.Len(t, txs[0].Tx.TxOut, 2)
		require.Len(t, txs[2].Tx.TxIn, 1)

		require.True(t, view.IsMine(payToAddr(t, receiveAddr0)))
		require.True(t, view.IsMine(payToAddr(t, receiveAddr3)))
		require.True(t, view.IsMine(payToAddr(t, changeAddr1)))
		require.False(t, view.IsMine(payToAddr(t, receiveAddr15)))

		depositHash, err := chainhash.NewHashFromStr(deposit.Txid)
		require.NoError(t, err)
		prevout, ok := view.GetTxOut(*wire.NewOutPoint(depositHash, 0))
		require.True(t, ok)
		require.Equal(t, int64(150000), prevout.Value)

		// Foreign prevouts are resolved from the input data.
		foreignHash, err := chainhash.NewHashFromStr(deposit.Vin[0].Txid)
		require.NoError(t, err)
		prevout, ok = view.GetTxOut(*wire.NewOutPoint(foreignHash, 0))
		require.True(t, ok)
		require.Equal(t, int64(200000), prevout.Value)

		_, ok = view.GetTxOut(*wire.NewOutPoint(&chainhash.Hash{}, 0))
		require.False(t, ok)
	})

	t.Run("with birthday", func(t *testing.T) {
		birthday := uint32(104)
		view, err := svc.LoadWallet(ctx, newWallet(t, xpub, &birthday))
		require.NoError(t, err)

		txs := view.Transactions()
		require.Len(t, txs, 2)
		require.Equal(t, secondDeposit.Txid, txs[0].Txid)
		require.Equal(t, spend.Txid, txs[1].Txid)

		// Txs older than the birthday still resolve prevouts.
		depositHash, err := chainhash.NewHashFromStr(deposit.Txid)
		require.NoError(t, err)
		_, ok := view.GetTxOut(*wire.NewOutPoint(depositHash, 0))
		require.True(t, ok)
	})

	t.Run("with wallet gap", func(t *testing.T) {
		gap := uint32(20)
		wallet := newWallet(t, xpub, nil)
		wallet.Gap = &gap

		view, err := svc.LoadWallet(ctx, wallet)
		require.NoError(t, err)
		require.Len(t, view.Transactions(), 4)
		require.True(t, view.IsMine(payToAddr(t, receiveAddr15)))
	})
}

func TestLoadWalletPaging(t *testing.T) {
	f := newFakeEsplora(t)
	svc := newTestService(t, f)
	xpub := newTestXpub(t, regtest)

	addr := deriveWpkh(t, xpub, 0, 0)
	numOfTxs := 2*pageSize + 3
	for i := 0; i < numOfTxs; i++ {
		tx := newTestTx(
			confirmedAt(uint32(300-i)), []testVin{foreignInput(20000)},
			testVout{scriptHex(t, addr), 10000},
		)
		f.addTx(tx, addr)
	}
	mempoolTx := newTestTx(
		testStatus{}, []testVin{foreignInput(20000)},
		testVout{scriptHex(t, addr), 10000},
	)
	f.addTx(mempoolTx, addr)

	view, err := svc.LoadWallet(ctx, newWallet(t, xpub, nil))
	require.NoError(t, err)

	txs := view.Transactions()
	require.Len(t, txs, numOfTxs+1)
	for i := 1; i < numOfTxs; i++ {
		require.Less(t, txs[i-1].Confirmation.Height, txs[i].Confirmation.Height)
	}
	require.Equal(t, mempoolTx.Txid, txs[numOfTxs].Txid)

	chainRequests := f.requestsWithPrefix(
		fmt.Sprintf("/address/%s/txs/chain/", addr.EncodeAddress()),
	)
	require.Len(t, chainRequests, 2)
}

func TestLoadWalletStaticKeys(t *testing.T) {
	f := newFakeEsplora(t)
	svc := newTestService(t, f)

	_, pubKey := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x02}, 32))
	compressed := hex.EncodeToString(pubKey.SerializeCompressed())
	xonly := hex.EncodeToString(schnorr.SerializePubKey(pubKey))
	keyHash := btcutil.Hash160(pubKey.SerializeCompressed())

	p2pkh, err := btcutil.NewAddressPubKeyHash(keyHash, regtest)
	require.NoError(t, err)
	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(keyHash, regtest)
	require.NoError(t, err)
	p2shP2wpkh, err := btcutil.NewAddressScriptHash(payToAddr(t, p2wpkh), regtest)
	require.NoError(t, err)
	p2tr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(pubKey)), regtest,
	)
	require.NoError(t, err)

	tests := []struct {
		descriptor string
		address    btcutil.Address
	}{
		{fmt.Sprintf("pkh(%s)", compressed), p2pkh},
		{fmt.Sprintf("wpkh([%s/0h]%s)", fingerprint, compressed), p2wpkh},
		{fmt.Sprintf("sh(wpkh(%s))", compressed), p2shP2wpkh},
		{fmt.Sprintf("tr(%s)", compressed), p2tr},
		{fmt.Sprintf("tr(%s)", xonly), p2tr},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.descriptor, func(t *testing.T) {
			wallet, err := domain.NewDescriptorWallet(
				tt.descriptor, nil, nil, nil, domain.NetworkRegtest,
			)
			require.NoError(t, err)

			view, err := svc.LoadWallet(ctx, *wallet)
			require.NoError(t, err)
			require.True(t, view.IsMine(payToAddr(t, tt.address)))
			require.Empty(t, view.Transactions())
		})
	}
}

func TestLoadWalletInvalid(t *testing.T) {
	f := newFakeEsplora(t)
	svc := newTestService(t, f)
	xpub := newTestXpub(t, regtest)
	mainnetXpub := newTestXpub(t, &chaincfg.MainNetParams)

	master, err := hdkeychain.NewMaster(bytes.Repeat([]byte{0x03}, 32), regtest)
	require.NoError(t, err)

	tests := []struct {
		name       string
		descriptor string
		network    domain.Network
		err        error
	}{
		{
			name:       "invalid key",
			descriptor: "wpkh(notakey)",
			network:    domain.NetworkRegtest,
			err:        domain.ErrMalformedDescriptor,
		},
		{
			name:       "hardened step",
			descriptor: fmt.Sprintf("wpkh(%s/0h/*)", xpub),
			network:    domain.NetworkRegtest,
			err:        domain.ErrMalformedDescriptor,
		},
		{
			name:       "wildcard not last",
			descriptor: fmt.Sprintf("wpkh(%s/*/0)", xpub),
			network:    domain.NetworkRegtest,
			err:        domain.ErrMalformedDescriptor,
		},
		{
			name:       "private key",
			descriptor: fmt.Sprintf("wpkh(%s/0/*)", master),
			network:    domain.NetworkRegtest,
			err:        domain.ErrMalformedDescriptor,
		},
		{
			name:       "unsupported expression",
			descriptor: fmt.Sprintf("wsh(multi(1,%s/0/*))", xpub),
			network:    domain.NetworkRegtest,
			err:        domain.ErrMalformedDescriptor,
		},
		{
			name:       "script path taproot",
			descriptor: fmt.Sprintf("tr(%s/0/*,pk(%s/1/*))", xpub, xpub),
			network:    domain.NetworkRegtest,
			err:        domain.ErrMalformedDescriptor,
		},
		{
			name:       "mainnet key",
			descriptor: fmt.Sprintf("wpkh(%s/0/*)", mainnetXpub),
			network:    domain.NetworkRegtest,
			err:        domain.ErrNetworkMismatch,
		},
		{
			name:       "wallet network",
			descriptor: fmt.Sprintf("wpkh(%s/0/*)", xpub),
			network:    domain.NetworkMainnet,
			err:        domain.ErrNetworkMismatch,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			wallet := domain.DescriptorWallet{
				Descriptor: tt.descriptor,
				Network:    tt.network,
			}
			view, err := svc.LoadWallet(ctx, wallet)
			require.ErrorIs(t, err, tt.err)
			require.Nil(t, view)
		})
	}

	t.Run("explorer failure", func(t *testing.T) {
		f.setFailing(true)
		defer f.setFailing(false)

		view, err := svc.LoadWallet(ctx, newWallet(t, xpub, nil))
		require.Error(t, err)
		require.NotErrorIs(t, err, domain.ErrMalformedDescriptor)
		require.Nil(t, view)
	})
}
