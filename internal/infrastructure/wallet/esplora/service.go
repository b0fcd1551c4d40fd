package esplorawallet

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/txscript"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

const DefaultRequestTimeout = 30 * time.Second

type Opts struct {
	URL               string
	Network           domain.Network
	RequestsPerSecond int
	RequestTimeout    time.Duration
	DefaultGap        uint32
}

func (o Opts) validate() error {
	if len(o.URL) <= 0 {
		return fmt.Errorf("missing esplora url")
	}
	if _, err := domain.ParseNetwork(o.Network.String()); err != nil {
		return err
	}
	if o.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative")
	}
	return nil
}

// Service is the wallet engine deriving descriptor scripts locally and
// syncing their history from an esplora instance. It also serves as
// source of the chain tip.
type Service struct {
	client     *client
	network    domain.Network
	defaultGap uint32
}

// NewService makes sure the esplora instance is reachable and that it
// serves the expected network.
func NewService(ctx context.Context, opts Opts) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	gap := opts.DefaultGap
	if gap == 0 {
		gap = domain.DefaultGapLimit
	}

	svc := &Service{
		client:     newClient(opts.URL, opts.RequestsPerSecond, timeout),
		network:    opts.Network,
		defaultGap: gap,
	}

	if _, err := svc.client.getTipHeight(ctx); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	height, expectedHash := opts.Network.Checkpoint()
	hash, err := svc.client.getBlockHash(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("failed to get block hash at height %d: %w", height, err)
	}
	if hash != expectedHash.String() {
		return nil, fmt.Errorf(
			"%w: esplora block at height %d is %s, expected %s for %s",
			domain.ErrNetworkMismatch, height, hash, expectedHash, opts.Network,
		)
	}

	return svc, nil
}

func (s *Service) LoadWallet(
	ctx context.Context, wallet domain.DescriptorWallet,
) (ports.WalletView, error) {
	if wallet.Network != s.network {
		return nil, fmt.Errorf(
			"%w: wallet is for %s, engine for %s",
			domain.ErrNetworkMismatch, wallet.Network, s.network,
		)
	}

	descriptors := []string{wallet.Descriptor}
	if wallet.ChangeDescriptor != nil {
		descriptors = append(descriptors, *wallet.ChangeDescriptor)
	}

	gap := s.defaultGap
	if wallet.Gap != nil && *wallet.Gap > 0 {
		gap = *wallet.Gap
	}

	res := newScanResult()
	for _, desc := range descriptors {
		d, err := parseDescriptor(desc, s.network)
		if err != nil {
			return nil, err
		}
		if err := s.scan(ctx, d, gap, res); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"wallet":  wallet.Name(),
		"scripts": len(res.scripts),
		"txs":     len(res.txs),
	}).Debug("synced wallet")

	view, err := newWalletView(res.scripts, res.txs, wallet.Birthday)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) GetChainTip(ctx context.Context) (ports.BlockInfo, error) {
	height, err := s.client.getTipHeight(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := s.client.getTipHash(ctx)
	if err != nil {
		return nil, err
	}
	return blockInfo{hash, height}, nil
}

type scanResult struct {
	scripts map[string]struct{}
	txs     map[string]esploraTx
}

func newScanResult() *scanResult {
	return &scanResult{
		scripts: make(map[string]struct{}),
		txs:     make(map[string]esploraTx),
	}
}

func (r *scanResult) addScript(script []byte) {
	r.scripts[string(script)] = struct{}{}
}

func (r *scanResult) addTxs(txs []esploraTx) {
	for _, tx := range txs {
		r.txs[tx.Txid] = tx
	}
}

// scan fetches the history of the descriptor's addresses. Ranged
// descriptors are derived in batches of gap addresses until gap consecutive
// unused ones are found after the last used.
func (s *Service) scan(
	ctx context.Context, d *descriptor, gap uint32, res *scanResult,
) error {
	if !d.isRange() {
		_, err := s.scanBatch(ctx, d, 0, 1, res)
		return err
	}

	lastUsed := int64(-1)
	for start := uint32(0); start < hdkeychain.HardenedKeyStart; start += gap {
		used, err := s.scanBatch(ctx, d, start, gap, res)
		if err != nil {
			return err
		}
		if used > lastUsed {
			lastUsed = used
		}
		if int64(start)+int64(gap)-1 >= lastUsed+int64(gap) {
			return nil
		}
	}
	return nil
}

// scanBatch returns the highest used index of the batch, -1 if none.
func (s *Service) scanBatch(
	ctx context.Context, d *descriptor, start, size uint32, res *scanResult,
) (int64, error) {
	addresses := make([]string, 0, size)
	for i := start; i < start+size && i < hdkeychain.HardenedKeyStart; i++ {
		addr, err := d.deriveAddress(i)
		if err != nil {
			return -1, fmt.Errorf("failed to derive address at index %d: %w", i, err)
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return -1, err
		}
		res.addScript(script)
		addresses = append(addresses, addr.EncodeAddress())
	}

	histories := make([][]esploraTx, len(addresses))
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range addresses {
		i := i
		eg.Go(func() error {
			txs, err := s.client.getAddressTxs(egCtx, addresses[i])
			if err != nil {
				return err
			}
			histories[i] = txs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return -1, err
	}

	used := int64(-1)
	for i, txs := range histories {
		if len(txs) > 0 {
			used = int64(start) + int64(i)
		}
		res.addTxs(txs)
	}
	return used, nil
}
