package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_emulated"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/signature/ecdsa"

	"github.com/avras/bitcoinvm-sub000/opcode"
	"github.com/avras/bitcoinvm-sub000/script"
)

// DefaultMaxCheckSigCount is a reasonable slot cap for typical
// script-pubkeys; constructors accept any positive count.
const DefaultMaxCheckSigCount = 4

// CheckSigSlot is one signature verification slot of the bridge. Active
// slots hold a key the script consumed; inactive slots carry the padding
// signature so the ECDSA gadget still verifies.
type CheckSigSlot struct {
	Active    frontend.Variable
	Prefix    frontend.Variable
	PublicKey ecdsa.PublicKey[emulated.Secp256k1Fp, emulated.Secp256k1Fr]
	Signature ecdsa.Signature[emulated.Secp256k1Fr]
}

// CheckSigBridge verifies one ECDSA signature per consumed public key
// and re-derives the execution region's key accumulator from the
// serialized key bytes. Slot 0 holds the key of the last checksig in the
// script; Count and PkAcc chain backwards from zero at index maxCount.
type CheckSigBridge struct {
	Slots []CheckSigSlot
	Count []frontend.Variable
	PkAcc []frontend.Variable
}

// NewCheckSigBridge allocates a bridge with maxCount signature slots.
func NewCheckSigBridge(maxCount int) CheckSigBridge {
	return CheckSigBridge{
		Slots: make([]CheckSigSlot, maxCount),
		Count: make([]frontend.Variable, maxCount+1),
		PkAcc: make([]frontend.Variable, maxCount+1),
	}
}

// MaxCheckSigCount returns the number of signature slots.
func (b *CheckSigBridge) MaxCheckSigCount() int {
	return len(b.Slots)
}

func eq(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.IsZero(api.Sub(a, b))
}

// constrain verifies every slot and returns the key accumulator and
// count at slot 0, which must match the execution region's boundary
// values.
func (b *CheckSigBridge) constrain(api frontend.API, challenge frontend.Variable) (pkAcc, count frontend.Variable, err error) {
	maxCount := b.MaxCheckSigCount()

	fpField, err := emulated.NewField[emulated.Secp256k1Fp](api)
	if err != nil {
		return nil, nil, err
	}
	frField, err := emulated.NewField[emulated.Secp256k1Fr](api)
	if err != nil {
		return nil, nil, err
	}
	params := sw_emulated.GetCurveParams[emulated.Secp256k1Fp]()
	curve, err := sw_emulated.New[emulated.Secp256k1Fp, emulated.Secp256k1Fr](api, params)
	if err != nil {
		return nil, nil, err
	}
	parityTbl := newParityTable(api)

	// every signature is over the same fixed message
	msg := frField.NewElement(script.ECDSAMessageHash)

	api.AssertIsEqual(b.Count[maxCount], 0)
	api.AssertIsEqual(b.PkAcc[maxCount], 0)

	for j := 0; j < maxCount; j++ {
		slot := &b.Slots[j]
		api.AssertIsBoolean(slot.Active)

		// active slots are contiguous from slot 0
		if j > 0 {
			api.AssertIsEqual(api.Mul(slot.Active, api.Sub(1, b.Slots[j-1].Active)), 0)
		}

		point := sw_emulated.AffinePoint[emulated.Secp256k1Fp](slot.PublicKey)
		curve.AssertIsOnCurve(&point)
		slot.PublicKey.Verify(api, params, msg, &slot.Signature)

		// serialized key bytes, big-endian coordinates; the canonical
		// decomposition pins the unique representative below p, so the
		// parity byte and the folded bytes match the SEC1 serialization
		xBits := fpField.ToBitsCanonical(&slot.PublicKey.X)
		yBits := fpField.ToBitsCanonical(&slot.PublicKey.Y)
		xBytes := bitsToBytesLE(api, xBits)
		yBytes := bitsToBytesLE(api, yBits)

		// prefix is one of 0x02, 0x03, 0x04 and must match the parity of Y
		api.AssertIsEqual(api.Mul(
			api.Sub(slot.Prefix, opcode.PrefixCompressedEvenY),
			api.Sub(slot.Prefix, opcode.PrefixCompressedOddY),
			api.Sub(slot.Prefix, opcode.PrefixUncompressed)), 0)
		legal := parityTbl.Lookup(api.Add(api.Mul(slot.Prefix, 256), yBytes[0]))
		api.AssertIsEqual(legal[0], 1)

		// fold the serialized bytes the way the script pushed them
		rlc := slot.Prefix
		for m := 31; m >= 0; m-- {
			rlc = api.Add(xBytes[m], api.Mul(challenge, rlc))
		}
		rlc33 := rlc
		for m := 31; m >= 0; m-- {
			rlc = api.Add(yBytes[m], api.Mul(challenge, rlc))
		}
		rlc65 := rlc
		keyRLC := api.Select(eq(api, slot.Prefix, opcode.PrefixUncompressed), rlc65, rlc33)

		// chain towards slot 0, unwinding the execution fold
		api.AssertIsEqual(b.Count[j], api.Add(b.Count[j+1], slot.Active))
		api.AssertIsEqual(b.PkAcc[j], api.Select(slot.Active,
			api.Add(keyRLC, api.Mul(challenge, b.PkAcc[j+1])),
			b.PkAcc[j+1]))
	}

	return b.PkAcc[0], b.Count[0], nil
}

// bitsToBytesLE regroups little-endian bits into little-endian bytes.
func bitsToBytesLE(api frontend.API, bits []frontend.Variable) []frontend.Variable {
	bytes := make([]frontend.Variable, 32)
	for i := 0; i < 32; i++ {
		bytes[i] = api.FromBinary(bits[i*8 : (i+1)*8]...)
	}
	return bytes
}

// CheckSigCircuit proves that every counted public key is backed by a
// valid signature over the fixed message, against the accumulator and
// count produced by script execution.
type CheckSigCircuit struct {
	Challenge frontend.Variable `gnark:",public"`
	KeyAcc    frontend.Variable `gnark:",public"`
	KeyCount  frontend.Variable `gnark:",public"`
	Bridge    CheckSigBridge
}

// NewCheckSigCircuit shapes a checksig circuit with maxCount slots.
func NewCheckSigCircuit(maxCount int) *CheckSigCircuit {
	return &CheckSigCircuit{Bridge: NewCheckSigBridge(maxCount)}
}

func (c *CheckSigCircuit) Define(api frontend.API) error {
	pkAcc, count, err := c.Bridge.constrain(api, c.Challenge)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.KeyAcc, pkAcc)
	api.AssertIsEqual(c.KeyCount, count)
	return nil
}
