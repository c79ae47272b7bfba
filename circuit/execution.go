// Package circuit arithmetizes restricted Bitcoin script execution: an
// execution region with one constraint row per script byte, and a
// checksig bridge verifying an ECDSA signature for every consumed public
// key. The two regions meet at a pair of running accumulators.
package circuit

import (
	"github.com/consensys/gnark/frontend"

	"github.com/avras/bitcoinvm-sub000/opcode"
)

// ExecutionTrace holds the witness columns of the execution region.
// Stack, Op, PkAcc and Count have one entry per row 0..maxLen, row 0
// being the initial state; ScriptRem, DataRem, LenRem and LenAccConst
// carry one lookahead entry so every row can constrain its successor.
//
// DataRem and LenRem count the bytes remaining in the current push
// including the byte consumed at the row; during a length field DataRem
// holds the running decoded push length.
type ExecutionTrace struct {
	Op          []frontend.Variable
	Stack       [][opcode.MaxStackDepth]frontend.Variable
	ScriptRem   []frontend.Variable
	ScriptAcc   []frontend.Variable
	DataRem     []frontend.Variable
	LenRem      []frontend.Variable
	LenAccConst []frontend.Variable
	PkAcc       []frontend.Variable
	Count       []frontend.Variable
}

// NewExecutionTrace allocates trace columns for scripts of up to maxLen
// bytes.
func NewExecutionTrace(maxLen int) ExecutionTrace {
	return ExecutionTrace{
		Op:          make([]frontend.Variable, maxLen+1),
		Stack:       make([][opcode.MaxStackDepth]frontend.Variable, maxLen+1),
		ScriptRem:   make([]frontend.Variable, maxLen+2),
		ScriptAcc:   make([]frontend.Variable, maxLen+1),
		DataRem:     make([]frontend.Variable, maxLen+2),
		LenRem:      make([]frontend.Variable, maxLen+2),
		LenAccConst: make([]frontend.Variable, maxLen+2),
		PkAcc:       make([]frontend.Variable, maxLen+1),
		Count:       make([]frontend.Variable, maxLen+1),
	}
}

// MaxScriptLen returns the script capacity the trace was allocated for.
func (t *ExecutionTrace) MaxScriptLen() int {
	return len(t.Op) - 1
}

// constrain encodes the execution semantics over the trace columns and
// returns the final public key accumulator and checksig count. Row 0 of
// the stack is the initial stack; the final stack top is asserted
// truthy.
func (t *ExecutionTrace) constrain(api frontend.API, scriptLen, scriptRLC, challenge frontend.Variable) (pkAcc, count frontend.Variable) {
	maxLen := t.MaxScriptLen()

	// initial row: accumulators bound to the public commitment, no push
	// in progress; byte 1 must be an opcode
	api.AssertIsEqual(t.ScriptAcc[0], scriptRLC)
	api.AssertIsEqual(t.ScriptRem[0], scriptLen)
	api.AssertIsEqual(t.ScriptRem[1], t.ScriptRem[0])
	api.AssertIsEqual(t.DataRem[0], 0)
	api.AssertIsEqual(t.DataRem[1], 0)
	api.AssertIsEqual(t.LenRem[0], 0)
	api.AssertIsEqual(t.LenRem[1], 0)
	api.AssertIsEqual(t.PkAcc[0], 0)
	api.AssertIsEqual(t.Count[0], 0)

	tbl := newOpcodeTable(api)
	classes := classify(api, tbl, t.Op[1:])

	var prevLenRow frontend.Variable = 0
	for i := 1; i <= maxLen; i++ {
		cls := classes[i-1]

		active := api.Sub(1, api.IsZero(t.ScriptRem[i]))
		inactive := api.Sub(1, active)
		zData := api.IsZero(t.DataRem[i])
		zLen := api.IsZero(t.LenRem[i])
		opRow := api.Mul(active, zData, zLen)
		dataRow := api.Mul(active, api.Sub(1, zData), zLen)
		lenRow := api.Mul(active, api.Sub(1, zLen))

		// script consumption: peel one byte off the committed RLC
		api.AssertIsEqual(api.Mul(active,
			api.Sub(api.Add(t.Op[i], api.Mul(challenge, t.ScriptAcc[i])), t.ScriptAcc[i-1])), 0)
		api.AssertIsEqual(api.Mul(active,
			api.Sub(api.Add(t.ScriptRem[i+1], 1), t.ScriptRem[i])), 0)

		// exhausted script: everything frozen at zero
		api.AssertIsEqual(api.Mul(inactive, api.Sub(t.ScriptAcc[i], t.ScriptAcc[i-1])), 0)
		api.AssertIsEqual(api.Mul(inactive, t.ScriptAcc[i]), 0)
		api.AssertIsEqual(api.Mul(inactive, t.ScriptRem[i+1]), 0)
		api.AssertIsEqual(api.Mul(inactive, t.DataRem[i]), 0)
		api.AssertIsEqual(api.Mul(inactive, t.LenRem[i]), 0)

		// opcode rows execute only enabled opcodes
		api.AssertIsEqual(api.Mul(opRow, api.Sub(1, cls.Enabled)), 0)

		isPushData := api.Add(cls.PushData1, cls.PushData2, cls.PushData4)
		shiftSel := api.Mul(opRow, api.Add(cls.Op0, cls.Op1To16, cls.PushNext, isPushData))
		csSel := api.Mul(opRow, cls.CheckSig)

		// a push must not drop a live element off the stack bottom
		api.AssertIsEqual(api.Mul(shiftSel, t.Stack[i-1][opcode.MaxStackDepth-1]), 0)

		// the consumed signature flag is boolean
		flag := t.Stack[i-1][1]
		api.AssertIsEqual(api.Mul(csSel, flag, api.Sub(flag, 1)), 0)
		csFold := api.Mul(csSel, flag)

		// stack transition
		pushVal := api.Add(
			api.Mul(cls.Op0, opcode.NegativeZero),
			api.Mul(cls.Op1To16, api.Sub(t.Op[i], opcode.OP_RESERVED)))
		for j := 0; j < opcode.MaxStackDepth; j++ {
			want := t.Stack[i-1][j]
			if j == 0 {
				fold := api.Add(t.Op[i], api.Mul(challenge, t.Stack[i-1][0]))
				want = api.Select(dataRow, fold, want)
				want = api.Select(shiftSel, pushVal, want)
				want = api.Select(csSel, flag, want)
			} else {
				want = api.Select(shiftSel, t.Stack[i-1][j-1], want)
				if j < opcode.MaxStackDepth-1 {
					want = api.Select(csSel, t.Stack[i-1][j+1], want)
				} else {
					want = api.Select(csSel, 0, want)
				}
			}
			api.AssertIsEqual(t.Stack[i][j], want)
		}

		// pending data bytes: staged by a push opcode, counted down on
		// data rows, absent otherwise
		pushNextSel := api.Mul(opRow, cls.PushNext)
		api.AssertIsEqual(api.Mul(pushNextSel, api.Sub(t.DataRem[i+1], t.Op[i])), 0)
		noStage := api.Mul(opRow, api.Sub(1, cls.PushNext, isPushData))
		api.AssertIsEqual(api.Mul(noStage, t.DataRem[i+1]), 0)
		api.AssertIsEqual(api.Mul(dataRow, api.Sub(t.DataRem[i], api.Add(t.DataRem[i+1], 1))), 0)

		// pending length bytes: staged by a pushdata opcode, counted down
		// on length rows
		api.AssertIsEqual(t.LenRem[i+1], api.Add(
			api.Mul(opRow, api.Add(cls.PushData1, api.Mul(cls.PushData2, 2), api.Mul(cls.PushData4, 4))),
			api.Mul(lenRow, api.Sub(t.LenRem[i], 1))))

		// length field: accumulate the push length base-256 little-endian
		api.AssertIsEqual(api.Mul(lenRow,
			api.Sub(t.DataRem[i], api.Add(t.DataRem[i-1], api.Mul(t.Op[i], t.LenAccConst[i])))), 0)
		api.AssertIsEqual(api.Mul(opRow, isPushData, api.Sub(t.LenAccConst[i+1], 1)), 0)
		api.AssertIsEqual(api.Mul(lenRow, prevLenRow,
			api.Sub(t.LenAccConst[i], api.Mul(t.LenAccConst[i-1], 256))), 0)

		// length field completion: hand the decoded total to the data
		// counter and reject zero-length pushes
		isLenOne := api.IsZero(api.Sub(t.LenRem[i], 1))
		lastLen := api.Mul(lenRow, isLenOne)
		api.AssertIsEqual(api.Mul(lastLen, api.Sub(t.DataRem[i+1], t.DataRem[i])), 0)
		api.AssertIsEqual(api.Mul(lastLen, api.IsZero(t.DataRem[i])), 0)

		// public key accumulator and checksig count
		foldVal := api.Add(api.Mul(t.PkAcc[i-1], challenge), t.Stack[i-1][0])
		api.AssertIsEqual(t.PkAcc[i], api.Select(csFold, foldVal, t.PkAcc[i-1]))
		api.AssertIsEqual(t.Count[i], api.Add(t.Count[i-1], csFold))

		prevLenRow = lenRow
	}

	// the whole committed script must have been consumed, with no push
	// left open
	api.AssertIsEqual(t.ScriptRem[maxLen+1], 0)
	api.AssertIsEqual(t.ScriptAcc[maxLen], 0)
	api.AssertIsEqual(t.DataRem[maxLen+1], 0)
	api.AssertIsEqual(t.LenRem[maxLen+1], 0)

	// final stack top is neither zero nor the empty-array sentinel
	top := t.Stack[maxLen][0]
	api.AssertIsDifferent(top, 0)
	api.AssertIsDifferent(top, opcode.NegativeZero)

	return t.PkAcc[maxLen], t.Count[maxLen]
}

// ExecutionCircuit proves that a committed script executes to a truthy
// stack top, exposing the checksig accumulator and count it produced.
type ExecutionCircuit struct {
	ScriptLen frontend.Variable `gnark:",public"`
	ScriptRLC frontend.Variable `gnark:",public"`
	Challenge frontend.Variable `gnark:",public"`
	KeyAcc    frontend.Variable `gnark:",public"`
	KeyCount  frontend.Variable `gnark:",public"`
	Trace     ExecutionTrace
}

// NewExecutionCircuit shapes an execution circuit for scripts of up to
// maxLen bytes.
func NewExecutionCircuit(maxLen int) *ExecutionCircuit {
	return &ExecutionCircuit{Trace: NewExecutionTrace(maxLen)}
}

func (c *ExecutionCircuit) Define(api frontend.API) error {
	pkAcc, count := c.Trace.constrain(api, c.ScriptLen, c.ScriptRLC, c.Challenge)
	api.AssertIsEqual(c.KeyAcc, pkAcc)
	api.AssertIsEqual(c.KeyCount, count)
	return nil
}
