package esplorawallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
)

// esploraTx is the JSON representation of a transaction returned by the
// esplora REST API.
type esploraTx struct {
	Txid     string        `json:"txid"`
	Version  int32         `json:"version"`
	Locktime uint32        `json:"locktime"`
	Vin      []esploraVin  `json:"vin"`
	Vout     []esploraVout `json:"vout"`
	Status   esploraStatus `json:"status"`
}

type esploraVin struct {
	Txid       string       `json:"txid"`
	Vout       uint32       `json:"vout"`
	Prevout    *esploraVout `json:"prevout"`
	ScriptSig  string       `json:"scriptsig"`
	Witness    []string     `json:"witness"`
	Sequence   uint32       `json:"sequence"`
	IsCoinbase bool         `json:"is_coinbase"`
}

type esploraVout struct {
	ScriptPubKey string `json:"scriptpubkey"`
	Value        int64  `json:"value"`
}

type esploraStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint32 `json:"block_height"`
	BlockHash   string `json:"block_hash"`
	BlockTime   uint64 `json:"block_time"`
}

func (o esploraVout) toWire() (*wire.TxOut, error) {
	script, err := hex.DecodeString(o.ScriptPubKey)
	if err != nil {
		return nil, fmt.Errorf("invalid scriptpubkey: %w", err)
	}
	return wire.NewTxOut(o.Value, script), nil
}

func (t esploraTx) toWire() (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(t.Version)
	tx.LockTime = t.Locktime

	for _, in := range t.Vin {
		hash, err := chainhash.NewHashFromStr(in.Txid)
		if err != nil {
			return nil, fmt.Errorf("invalid input txid %s: %w", in.Txid, err)
		}
		scriptSig, err := hex.DecodeString(in.ScriptSig)
		if err != nil {
			return nil, fmt.Errorf("invalid scriptsig: %w", err)
		}
		witness := make(wire.TxWitness, 0, len(in.Witness))
		for _, w := range in.Witness {
			item, err := hex.DecodeString(w)
			if err != nil {
				return nil, fmt.Errorf("invalid witness: %w", err)
			}
			witness = append(witness, item)
		}

		txIn := wire.NewTxIn(wire.NewOutPoint(hash, in.Vout), scriptSig, witness)
		txIn.Sequence = in.Sequence
		tx.AddTxIn(txIn)
	}

	for _, out := range t.Vout {
		txOut, err := out.toWire()
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(txOut)
	}
	return tx, nil
}

func (t esploraTx) toDomain() (*domain.Transaction, error) {
	tx, err := t.toWire()
	if err != nil {
		return nil, fmt.Errorf("tx %s: %w", t.Txid, err)
	}

	var confirmation *domain.ConfirmationTime
	if t.Status.Confirmed {
		confirmation = &domain.ConfirmationTime{
			Height:    t.Status.BlockHeight,
			Timestamp: t.Status.BlockTime,
		}
	}
	return &domain.Transaction{
		Txid:         t.Txid,
		Tx:           tx,
		Confirmation: confirmation,
	}, nil
}

type blockInfo struct {
	hash   string
	height uint32
}

func (b blockInfo) GetHash() string {
	return b.hash
}

func (b blockInfo) GetHeight() uint32 {
	return b.height
}
