package application

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
)

// BlockListener defines the methods to start and stop observing the chain
// tip.
type BlockListener interface {
	Start()
	Stop()
}

type blockListener struct {
	chain    ports.ChainTipSource
	svc      WatchService
	interval time.Duration

	lastHash string
	quit     chan struct{}
	wg       *sync.WaitGroup
}

// NewBlockListener returns a listener that polls the chain tip at the given
// interval and triggers a rescan of the watched wallets whenever it changes.
// The listener does nothing if the interval is not positive.
func NewBlockListener(
	chain ports.ChainTipSource, svc WatchService, interval time.Duration,
) BlockListener {
	return &blockListener{
		chain:    chain,
		svc:      svc,
		interval: interval,
		quit:     make(chan struct{}),
		wg:       &sync.WaitGroup{},
	}
}

func (l *blockListener) Start() {
	if l.interval <= 0 || l.chain == nil {
		log.Info("block polling disabled")
		return
	}

	l.wg.Add(1)
	go l.listen()
}

func (l *blockListener) Stop() {
	select {
	case <-l.quit:
		return
	default:
		close(l.quit)
	}
	l.wg.Wait()
}

func (l *blockListener) listen() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.poll()
	for {
		select {
		case <-ticker.C:
			l.poll()
		case <-l.quit:
			return
		}
	}
}

func (l *blockListener) poll() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-l.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	tip, err := l.chain.GetChainTip(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to fetch chain tip")
		return
	}
	if tip.GetHash() == l.lastHash {
		return
	}

	block := BlockAdded{Hash: tip.GetHash(), Height: tip.GetHeight()}
	if err := l.svc.OnBlockAdded(ctx, block); err != nil {
		log.WithError(err).WithField("height", block.Height).Warn(
			"failed to process new block",
		)
		return
	}
	l.lastHash = block.Hash
}
