// Package opcode defines the restricted Bitcoin script opcode set and its
// classification, shared between the off-circuit interpreter and the
// in-circuit lookup table.
package opcode

const (
	MaxScriptSize = 520
	MaxStackDepth = 33

	// NegativeZero is the canonical representation of the empty array on
	// the stack. It is falsy, like 0.
	NegativeZero = 0x80
)

const (
	OP_0         = 0x00
	OP_PUSHDATA1 = 0x4c
	OP_PUSHDATA2 = 0x4d
	OP_PUSHDATA4 = 0x4e
	OP_1NEGATE   = 0x4f
	OP_RESERVED  = 0x50
	OP_1         = 0x51
	OP_16        = 0x60
	OP_NOP       = 0x61
	OP_CHECKSIG  = 0xac
)

// PushNext(n) is the opcode that pushes the next n bytes, 1 <= n <= 75.
func PushNext(n int) byte {
	if n < 1 || n > 75 {
		panic("opcode: push length out of range")
	}
	return byte(n)
}

// Public key serialization prefixes (SEC1).
const (
	PrefixCompressedEvenY = 0x02
	PrefixCompressedOddY  = 0x03
	PrefixUncompressed    = 0x04
)

// Class word bit positions.
const (
	bitEnabled = iota
	bitOp0
	bitOp1To16
	bitPushNext
	bitPushData1
	bitPushData2
	bitPushData4
	bitCheckSig

	NumClassBits
)

// Enabled reports whether b is in the restricted opcode set.
func Enabled(b byte) bool {
	if b == OP_CHECKSIG {
		return true
	}
	return b <= OP_NOP && b != OP_1NEGATE && b != OP_RESERVED
}

// Indicators holds the per-class flags for a single opcode byte. At most
// one class flag is set, and a set class flag implies Enabled.
type Indicators struct {
	Enabled     bool
	IsOp0       bool
	IsOp1To16   bool
	IsPushNext  bool
	IsPushData1 bool
	IsPushData2 bool
	IsPushData4 bool
	IsCheckSig  bool
}

// Classify returns the class flags of b.
func Classify(b byte) Indicators {
	return Indicators{
		Enabled:     Enabled(b),
		IsOp0:       b == OP_0,
		IsOp1To16:   b >= OP_1 && b <= OP_16,
		IsPushNext:  b >= 0x01 && b <= 0x4b,
		IsPushData1: b == OP_PUSHDATA1,
		IsPushData2: b == OP_PUSHDATA2,
		IsPushData4: b == OP_PUSHDATA4,
		IsCheckSig:  b == OP_CHECKSIG,
	}
}

// ClassWord packs the class flags of b into one little-endian word,
// bitEnabled in the lowest bit.
func ClassWord(b byte) uint16 {
	ind := Classify(b)
	var w uint16
	set := func(bit int, on bool) {
		if on {
			w |= 1 << bit
		}
	}
	set(bitEnabled, ind.Enabled)
	set(bitOp0, ind.IsOp0)
	set(bitOp1To16, ind.IsOp1To16)
	set(bitPushNext, ind.IsPushNext)
	set(bitPushData1, ind.IsPushData1)
	set(bitPushData2, ind.IsPushData2)
	set(bitPushData4, ind.IsPushData4)
	set(bitCheckSig, ind.IsCheckSig)
	return w
}

// ClassTable returns the packed class word for every byte value.
func ClassTable() [256]uint16 {
	var tbl [256]uint16
	for i := range tbl {
		tbl[i] = ClassWord(byte(i))
	}
	return tbl
}
