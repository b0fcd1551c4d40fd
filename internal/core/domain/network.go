package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Network identifies the bitcoin chain a wallet lives on.
type Network string

const (
	NetworkMainnet     Network = "mainnet"
	NetworkTestnet     Network = "testnet"
	NetworkSignet      Network = "signet"
	NetworkRegtest     Network = "regtest"
	NetworkInquisition Network = "inquisition"
	NetworkMutinynet   Network = "mutinynet"
)

const (
	mainnetGenesisHash    = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	testnetGenesisHash    = "000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"
	regtestGenesisHash    = "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"
	signetGenesisHash     = "00000008819873e925422c1ff0f99f7cc9bbb232af63a077a480a3633bee1ef6"
	inquisitionBlock1Hash = "00000086d6b2636cb2a392d45edc4ec544a10024d30141c9adf4bfd9de533b53"
	mutinynetBlock1Hash   = "000002855893a0a9b24eaffc5efc770558a326fee4fc10c9da22fc19cd2954f9"
)

var networkAliases = map[string]Network{
	"mainnet":     NetworkMainnet,
	"bitcoin":     NetworkMainnet,
	"testnet":     NetworkTestnet,
	"testnet3":    NetworkTestnet,
	"signet":      NetworkSignet,
	"regtest":     NetworkRegtest,
	"inquisition": NetworkInquisition,
	"mutinynet":   NetworkMutinynet,
}

// ParseNetwork returns the Network matching the given name. Both "mainnet"
// and "bitcoin" refer to the main chain.
func ParseNetwork(name string) (Network, error) {
	net, ok := networkAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	return net, nil
}

func (n Network) String() string {
	return string(n)
}

func (n *Network) UnmarshalJSON(buf []byte) error {
	var name string
	if err := json.Unmarshal(buf, &name); err != nil {
		return err
	}
	net, err := ParseNetwork(name)
	if err != nil {
		return err
	}
	*n = net
	return nil
}

// ChainParams returns the btcd chain parameters for the network. Custom
// signets share the default signet address encoding.
func (n Network) ChainParams() *chaincfg.Params {
	switch n {
	case NetworkMainnet:
		return &chaincfg.MainNetParams
	case NetworkTestnet:
		return &chaincfg.TestNet3Params
	case NetworkRegtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.SigNetParams
	}
}

// IsTestFamily returns whether extended keys for this network use the
// testnet version bytes (tpub).
func (n Network) IsTestFamily() bool {
	return n != NetworkMainnet
}

// CoinType returns the tag denominating the value moved on this network.
func (n Network) CoinType() string {
	switch n {
	case NetworkMainnet:
		return "bc"
	case NetworkTestnet:
		return "tb"
	case NetworkRegtest:
		return "bcrt"
	default:
		return "tbs"
	}
}

// Checkpoint returns the height and hash of the block that uniquely
// identifies the network. Custom signets share the signet genesis block,
// therefore they are told apart by their first mined block.
func (n Network) Checkpoint() (uint32, *chainhash.Hash) {
	var (
		height uint32
		hash   string
	)
	switch n {
	case NetworkMainnet:
		hash = mainnetGenesisHash
	case NetworkTestnet:
		hash = testnetGenesisHash
	case NetworkRegtest:
		hash = regtestGenesisHash
	case NetworkInquisition:
		height, hash = 1, inquisitionBlock1Hash
	case NetworkMutinynet:
		height, hash = 1, mutinynetBlock1Hash
	default:
		hash = signetGenesisHash
	}
	h, _ := chainhash.NewHashFromStr(hash)
	return height, h
}
