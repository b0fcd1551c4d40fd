package esplorawallet_test

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
	"github.com/thanhpk/randstr"
)

const (
	regtestGenesisHash = "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"
	pageSize           = 25
)

type testVout struct {
	ScriptPubKey string `json:"scriptpubkey"`
	Value        int64  `json:"value"`
}

type testVin struct {
	Txid       string    `json:"txid"`
	Vout       uint32    `json:"vout"`
	Prevout    *testVout `json:"prevout"`
	ScriptSig  string    `json:"scriptsig"`
	Witness    []string  `json:"witness"`
	Sequence   uint32    `json:"sequence"`
	IsCoinbase bool      `json:"is_coinbase"`
}

type testStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint32 `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockTime   uint64 `json:"block_time,omitempty"`
}

type testTx struct {
	Txid     string     `json:"txid"`
	Version  int32      `json:"version"`
	Locktime uint32     `json:"locktime"`
	Vin      []testVin  `json:"vin"`
	Vout     []testVout `json:"vout"`
	Status   testStatus `json:"status"`
}

// fakeEsplora serves the subset of the esplora REST API used by the engine.
type fakeEsplora struct {
	*httptest.Server

	lock        *sync.Mutex
	tipHeight   uint32
	tipHash     string
	genesisHash string
	history     map[string][]testTx
	requests    []string
	failing     bool
}

func newFakeEsplora(t *testing.T) *fakeEsplora {
	f := &fakeEsplora{
		lock:        &sync.Mutex{},
		tipHeight:   200,
		tipHash:     randomTxid(),
		genesisHash: regtestGenesisHash,
		history:     make(map[string][]testTx),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeEsplora) handle(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.requests = append(f.requests, r.URL.Path)
	if f.failing {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/blocks/tip/height":
		fmt.Fprintf(w, "%d", f.tipHeight)
	case r.URL.Path == "/blocks/tip/hash":
		fmt.Fprint(w, f.tipHash)
	case len(parts) == 2 && parts[0] == "block-height":
		if parts[1] != "0" {
			http.Error(w, "Block not found", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, f.genesisHash)
	case len(parts) == 3 && parts[0] == "address" && parts[2] == "txs":
		f.writeJSON(w, f.firstPage(parts[1]))
	case len(parts) == 5 && parts[0] == "address" && parts[3] == "chain":
		f.writeJSON(w, f.chainPage(parts[1], parts[4]))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeEsplora) writeJSON(w http.ResponseWriter, txs []testTx) {
	w.Header().Set("Content-Type", "application/json")
	//nolint
	json.NewEncoder(w).Encode(txs)
}

func (f *fakeEsplora) firstPage(address string) []testTx {
	page := make([]testTx, 0)
	confirmed := 0
	for _, tx := range f.history[address] {
		if !tx.Status.Confirmed {
			page = append(page, tx)
			continue
		}
		if confirmed < pageSize {
			page = append(page, tx)
			confirmed++
		}
	}
	return page
}

func (f *fakeEsplora) chainPage(address, lastSeen string) []testTx {
	page := make([]testTx, 0)
	found := false
	for _, tx := range f.history[address] {
		if !tx.Status.Confirmed {
			continue
		}
		if found && len(page) < pageSize {
			page = append(page, tx)
		}
		if tx.Txid == lastSeen {
			found = true
		}
	}
	return page
}

// addTx registers the tx in the history of every address it involves.
func (f *fakeEsplora) addTx(tx testTx, addresses ...btcutil.Address) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, addr := range addresses {
		key := addr.EncodeAddress()
		f.history[key] = append(f.history[key], tx)
	}
}

func (f *fakeEsplora) setFailing(failing bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failing = failing
}

func (f *fakeEsplora) requestsWithPrefix(prefix string) []string {
	f.lock.Lock()
	defer f.lock.Unlock()

	reqs := make([]string, 0)
	for _, path := range f.requests {
		if strings.HasPrefix(path, prefix) {
			reqs = append(reqs, path)
		}
	}
	return reqs
}

func randomTxid() string {
	return chainhash.DoubleHashH([]byte(randstr.String(16))).String()
}

func randomWitness() []string {
	return []string{randstr.Hex(36), randstr.Hex(16)}
}

func scriptHex(t *testing.T, addr btcutil.Address) string {
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return hex.EncodeToString(script)
}

func confirmedAt(height uint32) testStatus {
	return testStatus{
		Confirmed:   true,
		BlockHeight: height,
		BlockHash:   randomTxid(),
		BlockTime:   uint64(1700000000 + height*600),
	}
}

// newTestTx returns a tx spending the given prevouts to the given outputs.
func newTestTx(status testStatus, prevouts []testVin, outputs ...testVout) testTx {
	return testTx{
		Txid:     randomTxid(),
		Version:  2,
		Locktime: 0,
		Vin:      prevouts,
		Vout:     outputs,
		Status:   status,
	}
}

func foreignInput(value int64) testVin {
	return testVin{
		Txid: randomTxid(),
		Vout: 0,
		Prevout: &testVout{
			ScriptPubKey: "0014" + hex.EncodeToString(
				btcutil.Hash160([]byte(randstr.String(16))),
			),
			Value: value,
		},
		Witness:  randomWitness(),
		Sequence: 0xfffffffd,
	}
}

func spendingInput(tx testTx, index uint32) testVin {
	out := tx.Vout[index]
	return testVin{
		Txid:     tx.Txid,
		Vout:     index,
		Prevout:  &out,
		Witness:  randomWitness(),
		Sequence: 0xfffffffd,
	}
}
