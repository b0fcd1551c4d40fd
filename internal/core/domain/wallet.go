package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DescriptorWallet is a wallet tracked through its output descriptors, along
// with the ids of the transactions already reported for it.
type DescriptorWallet struct {
	Descriptor       string  `json:"descriptor"`
	ChangeDescriptor *string `json:"change_descriptor,omitempty"`
	Birthday         *uint32 `json:"birthday,omitempty"`
	Gap              *uint32 `json:"gap,omitempty"`
	Network          Network `json:"network"`
	Transactions     TxidSet `json:"transactions"`
}

// WalletInfo is the public projection of a DescriptorWallet.
type WalletInfo struct {
	Descriptor       string  `json:"descriptor"`
	ChangeDescriptor *string `json:"change_descriptor"`
	Birthday         *uint32 `json:"birthday"`
	Gap              *uint32 `json:"gap"`
	Network          Network `json:"network"`
}

// NewDescriptorWallet returns a new wallet for the given descriptors after
// validating them.
func NewDescriptorWallet(
	descriptor string, changeDescriptor *string,
	birthday, gap *uint32, network Network,
) (*DescriptorWallet, error) {
	w := &DescriptorWallet{
		Descriptor:       descriptor,
		ChangeDescriptor: changeDescriptor,
		Birthday:         birthday,
		Gap:              gap,
		Network:          network,
		Transactions:     make(TxidSet),
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Validate checks the descriptors and the network of the wallet.
func (w *DescriptorWallet) Validate() error {
	if err := ValidateDescriptor(w.Descriptor); err != nil {
		return err
	}
	if w.ChangeDescriptor != nil {
		if err := ValidateDescriptor(*w.ChangeDescriptor); err != nil {
			return fmt.Errorf("change descriptor: %w", err)
		}
	}
	if _, err := ParseNetwork(w.Network.String()); err != nil {
		return err
	}
	return nil
}

// Name returns the identifier of the wallet, that is the checksum of its
// external descriptor.
func (w *DescriptorWallet) Name() string {
	name, _ := DescriptorChecksum(w.Descriptor)
	return name
}

// Account returns the ledger account of the wallet.
func (w *DescriptorWallet) Account() string {
	return fmt.Sprintf("%s:%s", AccountPrefix, w.Name())
}

// SharedAccount returns the ledger account collecting the outputs of shared
// transactions.
func (w *DescriptorWallet) SharedAccount() string {
	return fmt.Sprintf("%s:%s", w.Account(), SharedOutputsSuffix)
}

// UpdateTransactions returns, in the given order, the transactions not yet
// seen by the wallet and marks them as seen.
func (w *DescriptorWallet) UpdateTransactions(txs []Transaction) []Transaction {
	if w.Transactions == nil {
		w.Transactions = make(TxidSet)
	}

	newTxs := make([]Transaction, 0)
	for _, tx := range txs {
		if w.Transactions.Has(tx.Txid) {
			continue
		}
		w.Transactions.Add(tx.Txid)
		newTxs = append(newTxs, tx)
	}
	return newTxs
}

// Info returns the public info of the wallet.
func (w *DescriptorWallet) Info() WalletInfo {
	return WalletInfo{
		Descriptor:       w.Descriptor,
		ChangeDescriptor: w.ChangeDescriptor,
		Birthday:         w.Birthday,
		Gap:              w.Gap,
		Network:          w.Network,
	}
}

// Copy returns a deep copy of the wallet.
func (w *DescriptorWallet) Copy() *DescriptorWallet {
	cp := *w
	cp.Transactions = w.Transactions.Copy()
	return &cp
}

// TxidSet is a set of transaction ids. It is serialized as a sorted array.
type TxidSet map[string]struct{}

func (s TxidSet) Has(txid string) bool {
	_, ok := s[txid]
	return ok
}

func (s TxidSet) Add(txid string) {
	s[txid] = struct{}{}
}

func (s TxidSet) Merge(other TxidSet) {
	for txid := range other {
		s[txid] = struct{}{}
	}
}

func (s TxidSet) Copy() TxidSet {
	cp := make(TxidSet, len(s))
	cp.Merge(s)
	return cp
}

func (s TxidSet) Sorted() []string {
	txids := make([]string, 0, len(s))
	for txid := range s {
		txids = append(txids, txid)
	}
	sort.Strings(txids)
	return txids
}

func (s TxidSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *TxidSet) UnmarshalJSON(buf []byte) error {
	txids := make([]string, 0)
	if err := json.Unmarshal(buf, &txids); err != nil {
		return err
	}
	set := make(TxidSet, len(txids))
	for _, txid := range txids {
		set.Add(txid)
	}
	*s = set
	return nil
}
