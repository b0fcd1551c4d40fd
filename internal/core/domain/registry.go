package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Registry holds every watched wallet keyed by name. It's not safe for
// concurrent use, callers must guard it.
type Registry struct {
	wallets map[string]*DescriptorWallet
}

func NewRegistry() *Registry {
	return &Registry{make(map[string]*DescriptorWallet)}
}

// Upsert adds the wallet to the registry and returns its name. If a wallet
// with the same name is already registered, the ids of the transactions
// already reported for it are carried over to the new record.
func (r *Registry) Upsert(wallet *DescriptorWallet) string {
	name := wallet.Name()
	if wallet.Transactions == nil {
		wallet.Transactions = make(TxidSet)
	}
	if prev, ok := r.wallets[name]; ok {
		wallet.Transactions.Merge(prev.Transactions)
	}
	r.wallets[name] = wallet
	return name
}

func (r *Registry) Get(name string) (*DescriptorWallet, bool) {
	w, ok := r.wallets[name]
	return w, ok
}

func (r *Registry) Delete(name string) error {
	if _, ok := r.wallets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, name)
	}
	delete(r.wallets, name)
	return nil
}

// Names returns the sorted list of registered wallet names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.wallets))
	for name := range r.wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.wallets)
}

// List returns the public info of every registered wallet.
func (r *Registry) List() map[string]WalletInfo {
	list := make(map[string]WalletInfo, len(r.wallets))
	for name, w := range r.wallets {
		list[name] = w.Info()
	}
	return list
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wallets)
}

func (r *Registry) UnmarshalJSON(buf []byte) error {
	wallets := make(map[string]*DescriptorWallet)
	if err := json.Unmarshal(buf, &wallets); err != nil {
		return err
	}
	for name, w := range wallets {
		if w == nil {
			return fmt.Errorf("wallet %s: empty record", name)
		}
		if w.Transactions == nil {
			w.Transactions = make(TxidSet)
		}
	}
	r.wallets = wallets
	return nil
}
