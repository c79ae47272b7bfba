// Package script runs the restricted Bitcoin script interpreter off-circuit
// and produces the per-row trace consumed by the circuit witness builders.
package script

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/avras/bitcoinvm-sub000/opcode"
)

var (
	ErrScriptTooLong    = errors.New("script exceeds maximum size")
	ErrDisabledOpcode   = errors.New("disabled opcode")
	ErrStackOverflow    = errors.New("stack overflow")
	ErrTruncatedPush    = errors.New("script ends inside a push")
	ErrZeroLengthPush   = errors.New("pushdata with zero length")
	ErrBadSignatureFlag = errors.New("signature flag is not 0 or 1")
)

// push modes, derived from the pending byte counters
type pushMode int

const (
	modeOpcode pushMode = iota
	modeFixedPush
	modeLengthField
)

// Row holds the interpreter state after consuming one script byte. The
// layout mirrors the circuit columns: DataRem and LenRem count the bytes
// remaining in the current push including the byte consumed at this row,
// and during a length field DataRem carries the running decoded total.
type Row struct {
	Op          byte
	Stack       [opcode.MaxStackDepth]fr.Element
	ScriptRem   uint64
	ScriptAcc   fr.Element
	DataRem     uint64
	LenRem      uint64
	LenAccConst uint64
	PkAcc       fr.Element
	CheckSigs   uint64
}

// Trace is the full execution trace of a script. Rows[0] is the initial
// state; Rows[i] for i >= 1 is the state after consuming byte i-1.
type Trace struct {
	Script    []byte
	Challenge fr.Element
	Rows      []Row
}

// ScriptRLC returns the digest the verifier commits to: the Horner fold
// of the script bytes under the challenge, first byte in the lowest power.
func ScriptRLC(script []byte, challenge fr.Element) fr.Element {
	var acc, b fr.Element
	for i := len(script) - 1; i >= 0; i-- {
		b.SetUint64(uint64(script[i]))
		acc.Mul(&acc, &challenge).Add(&acc, &b)
	}
	return acc
}

// DataRLC returns the stack representation of a pushed byte string: the
// Horner fold of its bytes under the challenge, in push order.
func DataRLC(data []byte, challenge fr.Element) fr.Element {
	var acc, b fr.Element
	for _, d := range data {
		b.SetUint64(uint64(d))
		acc.Mul(&acc, &challenge).Add(&acc, &b)
	}
	return acc
}

// Run executes script against the initial stack and returns the trace.
// The challenge is the verifier randomness binding the script and
// public key accumulators; it is always passed explicitly.
func Run(script []byte, challenge fr.Element, initialStack [opcode.MaxStackDepth]fr.Element) (*Trace, error) {
	n := len(script)
	if n > opcode.MaxScriptSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrScriptTooLong, n)
	}

	// remaining-script RLC, computed back to front so that row i holds
	// the fold of the bytes not yet consumed
	accs := make([]fr.Element, n+1)
	var b fr.Element
	for i := n - 1; i >= 0; i-- {
		b.SetUint64(uint64(script[i]))
		accs[i].Mul(&accs[i+1], &challenge).Add(&accs[i], &b)
	}

	rows := make([]Row, n+1)
	rows[0] = Row{
		Op:        opcode.OP_NOP,
		Stack:     initialStack,
		ScriptRem: uint64(n),
		ScriptAcc: accs[0],
	}

	mode := modeOpcode
	var rem uint64      // data or length bytes remaining, including the next byte
	var total uint64    // decoded push length, accumulated over the length field
	var accConst uint64 // base-256 weight of the current length byte

	cur := rows[0]
	for i := 1; i <= n; i++ {
		op := script[i-1]
		cur.Op = op
		cur.ScriptRem = uint64(n - (i - 1))
		cur.ScriptAcc = accs[i]
		cur.DataRem = 0
		cur.LenRem = 0
		cur.LenAccConst = 0

		switch mode {
		case modeOpcode:
			if !opcode.Enabled(op) {
				return nil, fmt.Errorf("%w: 0x%02x at byte %d", ErrDisabledOpcode, op, i-1)
			}
			switch {
			case op == opcode.OP_0:
				if err := pushStack(&cur.Stack, uint64(opcode.NegativeZero)); err != nil {
					return nil, fmt.Errorf("%w at byte %d", err, i-1)
				}
			case op >= opcode.OP_1 && op <= opcode.OP_16:
				if err := pushStack(&cur.Stack, uint64(op-opcode.OP_RESERVED)); err != nil {
					return nil, fmt.Errorf("%w at byte %d", err, i-1)
				}
			case op >= 0x01 && op <= 0x4b:
				if err := pushStack(&cur.Stack, 0); err != nil {
					return nil, fmt.Errorf("%w at byte %d", err, i-1)
				}
				mode = modeFixedPush
				rem = uint64(op)
			case op >= opcode.OP_PUSHDATA1 && op <= opcode.OP_PUSHDATA4:
				if err := pushStack(&cur.Stack, 0); err != nil {
					return nil, fmt.Errorf("%w at byte %d", err, i-1)
				}
				mode = modeLengthField
				rem = 1 << (op - opcode.OP_PUSHDATA1)
				total = 0
				accConst = 0
			case op == opcode.OP_CHECKSIG:
				key := cur.Stack[0]
				flag := cur.Stack[1]
				var one fr.Element
				one.SetOne()
				if !flag.IsZero() && !flag.Equal(&one) {
					return nil, fmt.Errorf("%w at byte %d", ErrBadSignatureFlag, i-1)
				}
				if flag.Equal(&one) {
					cur.PkAcc.Mul(&cur.PkAcc, &challenge).Add(&cur.PkAcc, &key)
					cur.CheckSigs++
				}
				cur.Stack[0] = flag
				for j := 2; j < opcode.MaxStackDepth; j++ {
					cur.Stack[j-1] = cur.Stack[j]
				}
				cur.Stack[opcode.MaxStackDepth-1].SetZero()
			case op == opcode.OP_NOP:
				// no-op
			}

		case modeFixedPush:
			b.SetUint64(uint64(op))
			cur.Stack[0].Mul(&cur.Stack[0], &challenge).Add(&cur.Stack[0], &b)
			cur.DataRem = rem
			rem--
			if rem == 0 {
				mode = modeOpcode
			}

		case modeLengthField:
			if accConst == 0 {
				accConst = 1
			} else {
				accConst *= 256
			}
			total += uint64(op) * accConst
			cur.LenRem = rem
			cur.LenAccConst = accConst
			cur.DataRem = total
			rem--
			if rem == 0 {
				if total == 0 {
					return nil, fmt.Errorf("%w at byte %d", ErrZeroLengthPush, i-1)
				}
				mode = modeFixedPush
				rem = total
			}
		}

		rows[i] = cur
	}

	if mode != modeOpcode {
		return nil, fmt.Errorf("%w: %d bytes pending", ErrTruncatedPush, rem)
	}

	return &Trace{Script: script, Challenge: challenge, Rows: rows}, nil
}

// pushStack shifts the stack one slot down and seeds the top with v.
func pushStack(stack *[opcode.MaxStackDepth]fr.Element, v uint64) error {
	if !stack[opcode.MaxStackDepth-1].IsZero() {
		return ErrStackOverflow
	}
	for j := opcode.MaxStackDepth - 1; j > 0; j-- {
		stack[j] = stack[j-1]
	}
	stack[0].SetUint64(v)
	return nil
}

// Top returns the stack top after the last row.
func (t *Trace) Top() fr.Element {
	return t.Rows[len(t.Rows)-1].Stack[0]
}

// Truthy reports whether the final stack top is neither zero nor the
// negative-zero sentinel.
func (t *Trace) Truthy() bool {
	top := t.Top()
	var negZero fr.Element
	negZero.SetUint64(opcode.NegativeZero)
	return !top.IsZero() && !top.Equal(&negZero)
}

// PkAccumulator returns the public key accumulator after the last row.
func (t *Trace) PkAccumulator() fr.Element {
	return t.Rows[len(t.Rows)-1].PkAcc
}

// CheckSigCount returns the number of checksig operations that consumed a
// valid signature flag.
func (t *Trace) CheckSigCount() uint64 {
	return t.Rows[len(t.Rows)-1].CheckSigs
}
