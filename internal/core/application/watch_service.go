package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
	"github.com/tdex-network/watchdescriptor/pkg/stats"
	"golang.org/x/sync/errgroup"
)

const defaultRescanConcurrency = 4

// RegistryKey is the datastore key under which the registry is persisted.
var RegistryKey = []string{domain.AccountPrefix}

type WatchDescriptorParams struct {
	Descriptor       string
	ChangeDescriptor *string
	Birthday         *uint32
	Gap              *uint32
	Network          *string
}

type BlockAdded struct {
	Hash   string
	Height uint32
}

// WatchService manages the registry of watched wallets and notifies the
// host about their coin movements.
type WatchService interface {
	// WatchDescriptor adds (or replaces) a wallet, syncs it and notifies the
	// movements of the transactions never reported before. Returns the name
	// of the wallet.
	WatchDescriptor(ctx context.Context, params WatchDescriptorParams) (string, error)
	// ListDescriptors returns the info of every watched wallet by name.
	ListDescriptors(ctx context.Context) (map[string]domain.WalletInfo, error)
	// DeleteDescriptor stops watching the wallet with the given name.
	DeleteDescriptor(ctx context.Context, name string) (string, error)
	// OnBlockAdded rescans every watched wallet.
	OnBlockAdded(ctx context.Context, block BlockAdded) error
	Close()
}

type WatchServiceOpts struct {
	Engine            ports.WalletEngine
	Datastore         ports.Datastore
	Dispatcher        *Dispatcher
	Network           domain.Network
	CoinType          string
	RescanConcurrency int
}

func (o WatchServiceOpts) validate() error {
	if o.Engine == nil {
		return fmt.Errorf("missing wallet engine")
	}
	if o.Datastore == nil {
		return fmt.Errorf("missing datastore")
	}
	if o.Dispatcher == nil {
		return fmt.Errorf("missing dispatcher")
	}
	if _, err := domain.ParseNetwork(o.Network.String()); err != nil {
		return err
	}
	return nil
}

type watchService struct {
	lock       *sync.Mutex
	registry   *domain.Registry
	engine     ports.WalletEngine
	datastore  ports.Datastore
	dispatcher *Dispatcher
	network    domain.Network
	coinType   string
	// max number of wallets synced concurrently during a rescan.
	concurrency int
}

// NewWatchService returns a WatchService with the registry restored from
// the datastore.
func NewWatchService(ctx context.Context, opts WatchServiceOpts) (WatchService, error) {
	svc, err := newWatchService(ctx, opts)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func newWatchService(ctx context.Context, opts WatchServiceOpts) (*watchService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	registry, err := loadRegistry(ctx, opts.Datastore)
	if err != nil {
		return nil, err
	}

	coinType := opts.CoinType
	if coinType == "" {
		coinType = opts.Network.CoinType()
	}
	concurrency := opts.RescanConcurrency
	if concurrency <= 0 {
		concurrency = defaultRescanConcurrency
	}

	stats.WatchedWallets.Set(float64(registry.Len()))
	log.Debugf("restored %d watched wallets", registry.Len())

	return &watchService{
		lock:        &sync.Mutex{},
		registry:    registry,
		engine:      opts.Engine,
		datastore:   opts.Datastore,
		dispatcher:  opts.Dispatcher,
		network:     opts.Network,
		coinType:    coinType,
		concurrency: concurrency,
	}, nil
}

func (s *watchService) WatchDescriptor(
	ctx context.Context, params WatchDescriptorParams,
) (string, error) {
	if params.Network != nil {
		net, err := domain.ParseNetwork(*params.Network)
		if err != nil {
			return "", fmt.Errorf("%w: %s", domain.ErrNetworkMismatch, err)
		}
		if net != s.network {
			return "", fmt.Errorf(
				"%w: wallet is for %s, daemon runs on %s",
				domain.ErrNetworkMismatch, net, s.network,
			)
		}
	}

	wallet, err := domain.NewDescriptorWallet(
		params.Descriptor, params.ChangeDescriptor,
		params.Birthday, params.Gap, s.network,
	)
	if err != nil {
		return "", err
	}

	view, err := s.engine.LoadWallet(ctx, *wallet)
	if err != nil {
		return "", engineError(err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	name := s.registry.Upsert(wallet)
	stats.WatchedWallets.Set(float64(s.registry.Len()))
	s.processWallet(wallet, view)

	if err := s.persist(ctx); err != nil {
		return "", err
	}

	log.WithField("wallet", name).Info("watching wallet")
	return name, nil
}

func (s *watchService) ListDescriptors(
	_ context.Context,
) (map[string]domain.WalletInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.registry.List(), nil
}

func (s *watchService) DeleteDescriptor(
	ctx context.Context, name string,
) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.registry.Delete(name); err != nil {
		return "", err
	}
	stats.WatchedWallets.Set(float64(s.registry.Len()))

	if err := s.persist(ctx); err != nil {
		return "", err
	}

	log.WithField("wallet", name).Info("stopped watching wallet")
	return fmt.Sprintf("Deleted wallet: %s", name), nil
}

func (s *watchService) OnBlockAdded(ctx context.Context, block BlockAdded) error {
	start := time.Now()
	defer func() {
		stats.RescanDuration.Observe(time.Since(start).Seconds())
	}()

	s.lock.Lock()
	names := s.registry.Names()
	snapshots := make([]*domain.DescriptorWallet, 0, len(names))
	for _, name := range names {
		w, _ := s.registry.Get(name)
		snapshots = append(snapshots, w.Copy())
	}
	s.lock.Unlock()

	if len(snapshots) <= 0 {
		return nil
	}

	log.WithFields(log.Fields{
		"height": block.Height,
		"hash":   block.Hash,
	}).Debugf("rescanning %d wallets", len(snapshots))

	views := make([]ports.WalletView, len(snapshots))
	eg := &errgroup.Group{}
	eg.SetLimit(s.concurrency)
	for i := range snapshots {
		i := i
		eg.Go(func() error {
			view, err := s.engine.LoadWallet(ctx, *snapshots[i])
			if err != nil {
				log.WithError(err).WithField("wallet", names[i]).Warn(
					"failed to sync wallet, skipping",
				)
				return nil
			}
			views[i] = view
			return nil
		})
	}
	_ = eg.Wait()

	s.lock.Lock()
	defer s.lock.Unlock()

	changed := false
	for i, name := range names {
		if views[i] == nil {
			continue
		}
		wallet, ok := s.registry.Get(name)
		if !ok {
			log.WithField("wallet", name).Debug("wallet deleted during rescan")
			continue
		}
		if s.processWallet(wallet, views[i]) {
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return s.persist(ctx)
}

func (s *watchService) Close() {
	s.dispatcher.Close()
}

// processWallet reports the coin movements of the transactions never seen
// before by the wallet and returns whether there was any.
func (s *watchService) processWallet(
	wallet *domain.DescriptorWallet, view ports.WalletView,
) bool {
	newTxs := wallet.UpdateTransactions(view.Transactions())
	if len(newTxs) <= 0 {
		return false
	}

	movements := make([]domain.CoinMovement, 0)
	for _, tx := range newTxs {
		shape := domain.ClassifyTransaction(view, tx)
		txMovements := domain.BuildCoinMovements(
			wallet, view, tx, shape, s.coinType,
		)
		log.WithFields(log.Fields{
			"wallet":    wallet.Name(),
			"txid":      tx.Txid,
			"shape":     shape,
			"confirmed": tx.IsConfirmed(),
			"movements": len(txMovements),
		}).Debug("new transaction")
		movements = append(movements, txMovements...)
	}

	s.dispatcher.Dispatch(movements)
	return true
}

func (s *watchService) persist(ctx context.Context) error {
	buf, err := json.Marshal(s.registry)
	if err != nil {
		return err
	}
	if _, err := s.datastore.Write(
		ctx, RegistryKey, buf, ports.DatastoreCreateOrReplace,
	); err != nil {
		return collaboratorFailure(err)
	}
	return nil
}

func loadRegistry(
	ctx context.Context, datastore ports.Datastore,
) (*domain.Registry, error) {
	registry := domain.NewRegistry()

	entry, err := datastore.Read(ctx, RegistryKey)
	if err != nil {
		if errors.Is(err, ports.ErrDatastoreKeyNotFound) {
			return registry, nil
		}
		return nil, collaboratorFailure(err)
	}

	if err := json.Unmarshal(entry.Value, registry); err != nil {
		return nil, fmt.Errorf("failed to restore wallet registry: %w", err)
	}
	return registry, nil
}
