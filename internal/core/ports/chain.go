package ports

import "context"

type BlockInfo interface {
	GetHash() string
	GetHeight() uint32
}

// ChainTipSource returns the current tip of the chain.
type ChainTipSource interface {
	GetChainTip(ctx context.Context) (BlockInfo, error)
}
