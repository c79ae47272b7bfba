package circuit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/logger"
	"github.com/consensys/gnark/std/math/emulated"

	"github.com/avras/bitcoinvm-sub000/opcode"
	"github.com/avras/bitcoinvm-sub000/script"
)

var (
	ErrScriptTooLongForCircuit = errors.New("script longer than circuit capacity")
	ErrTooManyKeys             = errors.New("more keys than checksig slots")
	ErrSignatureCountMismatch  = errors.New("signature count does not match key count")
	ErrSignatureKeyMismatch    = errors.New("signature was made under a different key")
	ErrKeyCountMismatch        = errors.New("collected keys do not match the execution checksig count")
)

func feToBig(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// fillTrace assigns the execution columns from an interpreter trace,
// freezing the final state over the padding rows.
func fillTrace(t *ExecutionTrace, trace *script.Trace) {
	maxLen := t.MaxScriptLen()
	n := len(trace.Script)

	for i := 0; i <= maxLen; i++ {
		if i <= n {
			row := &trace.Rows[i]
			t.Op[i] = row.Op
			for j := 0; j < opcode.MaxStackDepth; j++ {
				t.Stack[i][j] = feToBig(row.Stack[j])
			}
			t.ScriptRem[i] = row.ScriptRem
			t.ScriptAcc[i] = feToBig(row.ScriptAcc)
			t.DataRem[i] = row.DataRem
			t.LenRem[i] = row.LenRem
			t.LenAccConst[i] = row.LenAccConst
			t.PkAcc[i] = feToBig(row.PkAcc)
			t.Count[i] = row.CheckSigs
			continue
		}
		final := &trace.Rows[n]
		t.Op[i] = opcode.OP_NOP
		for j := 0; j < opcode.MaxStackDepth; j++ {
			t.Stack[i][j] = feToBig(final.Stack[j])
		}
		t.ScriptRem[i] = 0
		t.ScriptAcc[i] = 0
		t.DataRem[i] = 0
		t.LenRem[i] = 0
		t.LenAccConst[i] = 0
		t.PkAcc[i] = feToBig(final.PkAcc)
		t.Count[i] = final.CheckSigs
	}
	t.ScriptRem[maxLen+1] = 0
	t.DataRem[maxLen+1] = 0
	t.LenRem[maxLen+1] = 0
	t.LenAccConst[maxLen+1] = 0
}

// fillBridge assigns the checksig slots. Keys arrive in script order and
// are placed in reverse, slot 0 holding the last key, so the bridge
// accumulator at slot 0 unwinds to the execution region's fold. Unused
// slots get the padding signature.
func fillBridge(b *CheckSigBridge, keys []script.PublicKeyInScript, sigs []script.SignData, challenge fr.Element) error {
	maxCount := b.MaxCheckSigCount()
	m := len(keys)
	if m > maxCount {
		return fmt.Errorf("%w: %d keys, %d slots", ErrTooManyKeys, m, maxCount)
	}
	if len(sigs) != m {
		return fmt.Errorf("%w: %d signatures, %d keys", ErrSignatureCountMismatch, len(sigs), m)
	}

	padding := script.PaddingSignData()
	paddingBytes := script.SerializeCompressed(&padding.PublicKey)

	b.Count[maxCount] = 0
	b.PkAcc[maxCount] = 0
	var acc fr.Element
	for j := maxCount - 1; j >= 0; j-- {
		slot := &b.Slots[j]
		if j >= m {
			slot.Active = 0
			slot.Prefix = paddingBytes[0]
			slot.PublicKey.X = emulated.ValueOf[emulated.Secp256k1Fp](padding.PublicKey.X.BigInt(new(big.Int)))
			slot.PublicKey.Y = emulated.ValueOf[emulated.Secp256k1Fp](padding.PublicKey.Y.BigInt(new(big.Int)))
			slot.Signature.R = emulated.ValueOf[emulated.Secp256k1Fr](padding.R)
			slot.Signature.S = emulated.ValueOf[emulated.Secp256k1Fr](padding.S)
			b.Count[j] = 0
			b.PkAcc[j] = 0
			continue
		}

		key := keys[m-1-j]
		sig := sigs[m-1-j]
		if sig.PublicKey.X.BigInt(new(big.Int)).Cmp(key.X) != 0 ||
			sig.PublicKey.Y.BigInt(new(big.Int)).Cmp(key.Y) != 0 {
			return fmt.Errorf("%w: key %d", ErrSignatureKeyMismatch, m-1-j)
		}

		slot.Active = 1
		slot.Prefix = key.Bytes[0]
		slot.PublicKey.X = emulated.ValueOf[emulated.Secp256k1Fp](key.X)
		slot.PublicKey.Y = emulated.ValueOf[emulated.Secp256k1Fp](key.Y)
		slot.Signature.R = emulated.ValueOf[emulated.Secp256k1Fr](sig.R)
		slot.Signature.S = emulated.ValueOf[emulated.Secp256k1Fr](sig.S)

		keyRLC := script.DataRLC(key.Bytes, challenge)
		acc.Mul(&acc, &challenge).Add(&acc, &keyRLC)
		b.Count[j] = uint64(m - j)
		b.PkAcc[j] = feToBig(acc)
	}
	return nil
}

// BuildExecutionAssignment maps an interpreter trace into an execution
// circuit witness of the given capacity.
func BuildExecutionAssignment(trace *script.Trace, maxLen int) (*ExecutionCircuit, error) {
	n := len(trace.Script)
	if n > maxLen {
		return nil, fmt.Errorf("%w: %d bytes, capacity %d", ErrScriptTooLongForCircuit, n, maxLen)
	}
	c := NewExecutionCircuit(maxLen)
	c.ScriptLen = n
	c.ScriptRLC = feToBig(trace.Rows[0].ScriptAcc)
	c.Challenge = feToBig(trace.Challenge)
	c.KeyAcc = feToBig(trace.PkAccumulator())
	c.KeyCount = trace.CheckSigCount()
	fillTrace(&c.Trace, trace)
	return c, nil
}

// BuildCheckSigAssignment maps collected keys and their signatures into
// a checksig circuit witness with maxCount slots.
func BuildCheckSigAssignment(keys []script.PublicKeyInScript, sigs []script.SignData, challenge fr.Element, maxCount int) (*CheckSigCircuit, error) {
	c := NewCheckSigCircuit(maxCount)
	if err := fillBridge(&c.Bridge, keys, sigs, challenge); err != nil {
		return nil, err
	}
	c.Challenge = feToBig(challenge)
	c.KeyAcc = c.Bridge.PkAcc[0]
	c.KeyCount = c.Bridge.Count[0]
	return c, nil
}

// BuildOwnershipAssignment maps a trace, its collected keys and their
// signatures into an ownership circuit witness. The keys must be the
// output of script.CollectPublicKeys on the same script and stack.
func BuildOwnershipAssignment(trace *script.Trace, keys []script.PublicKeyInScript, sigs []script.SignData, maxLen, maxCount int) (*OwnershipCircuit, error) {
	n := len(trace.Script)
	if n > maxLen {
		return nil, fmt.Errorf("%w: %d bytes, capacity %d", ErrScriptTooLongForCircuit, n, maxLen)
	}
	if trace.CheckSigCount() != uint64(len(keys)) {
		return nil, fmt.Errorf("%w: %d keys, count %d", ErrKeyCountMismatch, len(keys), trace.CheckSigCount())
	}

	c := NewOwnershipCircuit(maxLen, maxCount)
	c.ScriptLen = n
	c.ScriptRLC = feToBig(trace.Rows[0].ScriptAcc)
	c.Challenge = feToBig(trace.Challenge)
	fillTrace(&c.Trace, trace)
	if err := fillBridge(&c.Bridge, keys, sigs, trace.Challenge); err != nil {
		return nil, err
	}

	log := logger.Logger()
	log.Debug().
		Int("scriptBytes", n).
		Int("rows", maxLen+1).
		Int("keys", len(keys)).
		Int("slots", maxCount).
		Msg("built ownership witness")
	return c, nil
}
