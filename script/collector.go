package script

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/avras/bitcoinvm-sub000/opcode"
)

var (
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrExpectedKeyBytes   = errors.New("expected public key bytes on stack top")
	ErrExpectedFlag       = errors.New("expected signature flag below stack top")
	ErrMalformedPublicKey = errors.New("malformed public key")
)

// ItemKind tags a symbolic stack item.
type ItemKind int

const (
	ItemData ItemKind = iota
	ItemValidSignature
	ItemInvalidSignature
)

// StackItem is one element of the symbolic stack the collector walks
// with. Data holds the pushed bytes for ItemData, nil otherwise.
type StackItem struct {
	Kind ItemKind
	Data []byte
}

// PublicKeyInScript is a public key pushed by the script and consumed by
// a checksig with a valid signature flag, in SEC1 serialized form plus
// its parsed affine coordinates.
type PublicKeyInScript struct {
	Bytes []byte
	X, Y  *big.Int
}

// CollectPublicKeys walks the script by index jumps, mirroring the
// interpreter's stack discipline, and returns the public keys consumed
// by checksig operations with a valid signature flag, in script order.
// Keys under an invalid flag are skipped without validation.
func CollectPublicKeys(script []byte, initialStack []StackItem) ([]PublicKeyInScript, error) {
	if len(script) > opcode.MaxScriptSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrScriptTooLong, len(script))
	}

	var collected []PublicKeyInScript
	stack := append([]StackItem(nil), initialStack...)
	i := 0

	push := func(data []byte) {
		stack = append([]StackItem{{Kind: ItemData, Data: data}}, stack...)
	}
	// takePush reads n data bytes after the push header ending at index j
	takePush := func(j, n int) error {
		if n == 0 {
			return fmt.Errorf("%w at byte %d", ErrZeroLengthPush, i)
		}
		if j+n > len(script) {
			return fmt.Errorf("%w: %d bytes pending", ErrTruncatedPush, j+n-len(script))
		}
		push(script[j : j+n])
		i = j + n
		return nil
	}

	for i < len(script) {
		op := script[i]
		if !opcode.Enabled(op) {
			return nil, fmt.Errorf("%w: 0x%02x at byte %d", ErrDisabledOpcode, op, i)
		}
		switch {
		case op == opcode.OP_0:
			push(nil)
			i++
		case op >= opcode.OP_1 && op <= opcode.OP_16:
			push([]byte{op - opcode.OP_RESERVED})
			i++
		case op >= 0x01 && op <= 0x4b:
			if err := takePush(i+1, int(op)); err != nil {
				return nil, err
			}
		case op == opcode.OP_PUSHDATA1:
			if i+1 >= len(script) {
				return nil, fmt.Errorf("%w: length field", ErrTruncatedPush)
			}
			if err := takePush(i+2, int(script[i+1])); err != nil {
				return nil, err
			}
		case op == opcode.OP_PUSHDATA2:
			if i+2 >= len(script) {
				return nil, fmt.Errorf("%w: length field", ErrTruncatedPush)
			}
			n := int(script[i+1]) + int(script[i+2])<<8
			if err := takePush(i+3, n); err != nil {
				return nil, err
			}
		case op == opcode.OP_PUSHDATA4:
			if i+4 >= len(script) {
				return nil, fmt.Errorf("%w: length field", ErrTruncatedPush)
			}
			// assembled in uint64 so the high byte cannot overflow int
			n := uint64(script[i+1]) + uint64(script[i+2])<<8 + uint64(script[i+3])<<16 + uint64(script[i+4])<<24
			if n > uint64(len(script)) {
				return nil, fmt.Errorf("%w: %d bytes pending", ErrTruncatedPush, uint64(i+5)+n-uint64(len(script)))
			}
			if err := takePush(i+5, int(n)); err != nil {
				return nil, err
			}
		case op == opcode.OP_CHECKSIG:
			if len(stack) < 2 {
				return nil, fmt.Errorf("%w: checksig at byte %d", ErrStackUnderflow, i)
			}
			top, flag := stack[0], stack[1]
			stack = stack[2:]
			switch flag.Kind {
			case ItemInvalidSignature:
				// skipped; the execution region folds nothing for it
			case ItemValidSignature:
				if top.Kind != ItemData {
					return nil, fmt.Errorf("%w at byte %d", ErrExpectedKeyBytes, i)
				}
				pk, err := parsePublicKey(top.Data)
				if err != nil {
					return nil, fmt.Errorf("%w at byte %d", err, i)
				}
				collected = append(collected, pk)
			default:
				return nil, fmt.Errorf("%w at byte %d", ErrExpectedFlag, i)
			}
			i++
		default: // OP_NOP
			i++
		}
	}

	return collected, nil
}

// parsePublicKey validates a SEC1 serialized key, including the prefix
// byte and curve membership, and extracts its affine coordinates.
func parsePublicKey(data []byte) (PublicKeyInScript, error) {
	if len(data) == 0 {
		return PublicKeyInScript{}, fmt.Errorf("%w: empty", ErrMalformedPublicKey)
	}
	switch data[0] {
	case opcode.PrefixCompressedEvenY, opcode.PrefixCompressedOddY, opcode.PrefixUncompressed:
	default:
		return PublicKeyInScript{}, fmt.Errorf("%w: prefix 0x%02x", ErrMalformedPublicKey, data[0])
	}
	pk, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return PublicKeyInScript{}, fmt.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	ecPub := pk.ToECDSA()
	return PublicKeyInScript{
		Bytes: append([]byte(nil), data...),
		X:     ecPub.X,
		Y:     ecPub.Y,
	}, nil
}
