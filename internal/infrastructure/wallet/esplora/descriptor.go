package esplorawallet

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
)

type scriptType int

const (
	scriptTypeP2PKH scriptType = iota
	scriptTypeP2WPKH
	scriptTypeP2SHP2WPKH
	scriptTypeP2TR
)

var scriptTypeExpressions = []struct {
	prefix, suffix string
	scriptType     scriptType
}{
	{"sh(wpkh(", "))", scriptTypeP2SHP2WPKH},
	{"wpkh(", ")", scriptTypeP2WPKH},
	{"pkh(", ")", scriptTypeP2PKH},
	{"tr(", ")", scriptTypeP2TR},
}

// keyExpression is either a single public key or an extended public key
// already derived along the non-wildcard steps.
type keyExpression struct {
	pubKey   *btcec.PublicKey
	extKey   *hdkeychain.ExtendedKey
	wildcard bool
}

type descriptor struct {
	scriptType scriptType
	key        keyExpression
	params     *chaincfg.Params
}

// parseDescriptor parses the subset of output descriptors whose scripts can
// be derived by the engine. Extended keys must belong to the network family
// of the wallet.
func parseDescriptor(desc string, network domain.Network) (*descriptor, error) {
	if err := domain.ValidateDescriptor(desc); err != nil {
		return nil, err
	}
	body, _, _ := domain.SplitDescriptorChecksum(desc)

	for _, expr := range scriptTypeExpressions {
		if !strings.HasPrefix(body, expr.prefix) ||
			!strings.HasSuffix(body, expr.suffix) {
			continue
		}

		inner := strings.TrimSuffix(strings.TrimPrefix(body, expr.prefix), expr.suffix)
		if strings.ContainsAny(inner, "(),") {
			return nil, fmt.Errorf(
				"%w: unsupported nested expression %s", domain.ErrMalformedDescriptor, inner,
			)
		}

		key, err := parseKeyExpression(inner, network, expr.scriptType)
		if err != nil {
			return nil, err
		}
		return &descriptor{expr.scriptType, *key, network.ChainParams()}, nil
	}

	return nil, fmt.Errorf(
		"%w: script expression not supported for derivation",
		domain.ErrMalformedDescriptor,
	)
}

func parseKeyExpression(
	expr string, network domain.Network, scriptType scriptType,
) (*keyExpression, error) {
	if strings.HasPrefix(expr, "[") {
		end := strings.Index(expr, "]")
		if end < 0 {
			return nil, fmt.Errorf(
				"%w: unterminated key origin", domain.ErrMalformedDescriptor,
			)
		}
		if err := validateKeyOrigin(expr[1:end]); err != nil {
			return nil, err
		}
		expr = expr[end+1:]
	}

	parts := strings.Split(expr, "/")
	keyStr, steps := parts[0], parts[1:]

	if buf, err := hex.DecodeString(keyStr); err == nil {
		if len(steps) > 0 {
			return nil, fmt.Errorf(
				"%w: derivation steps on a non extended key",
				domain.ErrMalformedDescriptor,
			)
		}
		pubKey, err := parsePubKey(buf, scriptType)
		if err != nil {
			return nil, err
		}
		return &keyExpression{pubKey: pubKey}, nil
	}

	extKey, err := hdkeychain.NewKeyFromString(keyStr)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: invalid key %s", domain.ErrMalformedDescriptor, keyStr,
		)
	}
	if extKey.IsPrivate() {
		return nil, fmt.Errorf(
			"%w: extended private keys are not accepted",
			domain.ErrMalformedDescriptor,
		)
	}
	if !extKey.IsForNet(network.ChainParams()) {
		return nil, fmt.Errorf(
			"%w: extended key is not meant for %s", domain.ErrNetworkMismatch, network,
		)
	}

	key := &keyExpression{}
	for i, step := range steps {
		if step == "*" && i == len(steps)-1 {
			key.wildcard = true
			break
		}
		index, err := parseUnhardenedStep(step)
		if err != nil {
			return nil, err
		}
		if extKey, err = extKey.Derive(index); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrMalformedDescriptor, err)
		}
	}
	key.extKey = extKey
	return key, nil
}

func validateKeyOrigin(origin string) error {
	parts := strings.Split(origin, "/")
	if fp, err := hex.DecodeString(parts[0]); err != nil || len(fp) != 4 {
		return fmt.Errorf(
			"%w: invalid key origin fingerprint", domain.ErrMalformedDescriptor,
		)
	}
	for _, step := range parts[1:] {
		step = strings.TrimRight(step, "'h")
		if _, err := strconv.ParseUint(step, 10, 31); err != nil {
			return fmt.Errorf(
				"%w: invalid key origin path", domain.ErrMalformedDescriptor,
			)
		}
	}
	return nil
}

func parseUnhardenedStep(step string) (uint32, error) {
	if strings.HasSuffix(step, "'") || strings.HasSuffix(step, "h") {
		return 0, fmt.Errorf(
			"%w: hardened derivation from a public key",
			domain.ErrMalformedDescriptor,
		)
	}
	index, err := strconv.ParseUint(step, 10, 31)
	if err != nil {
		return 0, fmt.Errorf(
			"%w: invalid derivation step %s", domain.ErrMalformedDescriptor, step,
		)
	}
	return uint32(index), nil
}

func parsePubKey(buf []byte, scriptType scriptType) (*btcec.PublicKey, error) {
	var (
		pubKey *btcec.PublicKey
		err    error
	)
	switch {
	case len(buf) == schnorr.PubKeyBytesLen && scriptType == scriptTypeP2TR:
		pubKey, err = schnorr.ParsePubKey(buf)
	case len(buf) == btcec.PubKeyBytesLenCompressed:
		pubKey, err = btcec.ParsePubKey(buf)
	default:
		err = fmt.Errorf("unexpected key length %d", len(buf))
	}
	if err != nil {
		return nil, fmt.Errorf(
			"%w: invalid public key: %s", domain.ErrMalformedDescriptor, err,
		)
	}
	return pubKey, nil
}

func (d *descriptor) isRange() bool {
	return d.key.wildcard
}

// deriveAddress returns the address at the given index. The index is
// ignored for non ranged descriptors.
func (d *descriptor) deriveAddress(index uint32) (btcutil.Address, error) {
	pubKey := d.key.pubKey
	if d.key.extKey != nil {
		extKey := d.key.extKey
		if d.key.wildcard {
			var err error
			if extKey, err = extKey.Derive(index); err != nil {
				return nil, err
			}
		}
		var err error
		if pubKey, err = extKey.ECPubKey(); err != nil {
			return nil, err
		}
	}

	switch d.scriptType {
	case scriptTypeP2PKH:
		return btcutil.NewAddressPubKeyHash(
			btcutil.Hash160(pubKey.SerializeCompressed()), d.params,
		)
	case scriptTypeP2WPKH:
		return btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pubKey.SerializeCompressed()), d.params,
		)
	case scriptTypeP2SHP2WPKH:
		witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pubKey.SerializeCompressed()), d.params,
		)
		if err != nil {
			return nil, err
		}
		redeemScript, err := txscript.PayToAddrScript(witnessAddr)
		if err != nil {
			return nil, err
		}
		return btcutil.NewAddressScriptHash(redeemScript, d.params)
	default:
		outputKey := txscript.ComputeTaprootKeyNoScript(pubKey)
		return btcutil.NewAddressTaproot(
			schnorr.SerializePubKey(outputKey), d.params,
		)
	}
}
