package domain

import (
	"fmt"
	"strings"
)

const (
	descriptorInputCharset = "0123456789()[],'/*abcdefgh@:$%{}" +
		"IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~" +
		"ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "
	descriptorChecksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
)

var descriptorGenerator = [5]uint64{
	0xf5dee51989, 0xa9fdca3312, 0x1bab10e32d, 0x3706b1677a, 0x644d626ffd,
}

var supportedScriptExpressions = []string{
	"sh(", "wsh(", "pk(", "pkh(", "wpkh(", "combo(", "multi(", "sortedmulti(",
	"multi_a(", "sortedmulti_a(", "tr(", "addr(", "raw(", "rawtr(",
}

// DescriptorChecksum returns the 8 characters checksum of the given output
// script descriptor, as defined in BIP-380.
// If the descriptor already carries a checksum, this is verified and returned.
func DescriptorChecksum(descriptor string) (string, error) {
	desc, checksum, err := SplitDescriptorChecksum(descriptor)
	if err != nil {
		return "", err
	}

	computed, err := descriptorChecksum(desc)
	if err != nil {
		return "", err
	}
	if checksum != "" && checksum != computed {
		return "", fmt.Errorf(
			"%w: checksum mismatch, expected %s got %s",
			ErrMalformedDescriptor, computed, checksum,
		)
	}
	return computed, nil
}

// SplitDescriptorChecksum separates the script expression of a descriptor
// from its eventual checksum suffix.
func SplitDescriptorChecksum(descriptor string) (string, string, error) {
	desc := strings.TrimSpace(descriptor)
	parts := strings.Split(desc, "#")
	switch len(parts) {
	case 1:
		return desc, "", nil
	case 2:
		if len(parts[1]) != checksumLength {
			return "", "", fmt.Errorf(
				"%w: checksum must be %d characters long",
				ErrMalformedDescriptor, checksumLength,
			)
		}
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf(
			"%w: multiple '#' symbols", ErrMalformedDescriptor,
		)
	}
}

// ValidateDescriptor makes sure the descriptor is made of a supported top
// level script expression with balanced brackets and a valid eventual
// checksum.
func ValidateDescriptor(descriptor string) error {
	if _, err := DescriptorChecksum(descriptor); err != nil {
		return err
	}
	desc, _, _ := SplitDescriptorChecksum(descriptor)
	if len(desc) <= 0 {
		return fmt.Errorf("%w: empty descriptor", ErrMalformedDescriptor)
	}

	supported := false
	for _, prefix := range supportedScriptExpressions {
		if strings.HasPrefix(desc, prefix) {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf(
			"%w: unsupported script expression", ErrMalformedDescriptor,
		)
	}

	stack := make([]rune, 0)
	closing := map[rune]rune{')': '(', ']': '[', '}': '{'}
	for _, c := range desc {
		switch c {
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != closing[c] {
				return fmt.Errorf(
					"%w: unbalanced brackets", ErrMalformedDescriptor,
				)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 || !strings.HasSuffix(desc, ")") {
		return fmt.Errorf("%w: unbalanced brackets", ErrMalformedDescriptor)
	}
	return nil
}

func descriptorChecksum(desc string) (string, error) {
	symbols, err := expandDescriptor(desc)
	if err != nil {
		return "", err
	}
	symbols = append(symbols, 0, 0, 0, 0, 0, 0, 0, 0)
	c := descriptorPolymod(symbols) ^ 1

	checksum := make([]byte, checksumLength)
	for i := 0; i < checksumLength; i++ {
		checksum[i] = descriptorChecksumCharset[(c>>(5*(7-i)))&31]
	}
	return string(checksum), nil
}

func expandDescriptor(desc string) ([]uint64, error) {
	symbols := make([]uint64, 0, len(desc)+len(desc)/3+1)
	groups := make([]uint64, 0, 3)
	for _, c := range desc {
		v := strings.IndexRune(descriptorInputCharset, c)
		if v < 0 {
			return nil, fmt.Errorf(
				"%w: invalid character %q", ErrMalformedDescriptor, c,
			)
		}
		symbols = append(symbols, uint64(v&31))
		groups = append(groups, uint64(v>>5))
		if len(groups) == 3 {
			symbols = append(symbols, groups[0]*9+groups[1]*3+groups[2])
			groups = groups[:0]
		}
	}
	switch len(groups) {
	case 1:
		symbols = append(symbols, groups[0])
	case 2:
		symbols = append(symbols, groups[0]*3+groups[1])
	}
	return symbols, nil
}

func descriptorPolymod(symbols []uint64) uint64 {
	chk := uint64(1)
	for _, value := range symbols {
		top := chk >> 35
		chk = (chk&0x7ffffffff)<<5 ^ value
		for i := 0; i < 5; i++ {
			if (top>>i)&1 == 1 {
				chk ^= descriptorGenerator[i]
			}
		}
	}
	return chk
}
