package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/lookup/logderivlookup"

	"github.com/avras/bitcoinvm-sub000/opcode"
)

// opcodeClass holds the unpacked classification bits of one script byte.
type opcodeClass struct {
	Enabled   frontend.Variable
	Op0       frontend.Variable
	Op1To16   frontend.Variable
	PushNext  frontend.Variable
	PushData1 frontend.Variable
	PushData2 frontend.Variable
	PushData4 frontend.Variable
	CheckSig  frontend.Variable
}

// newOpcodeTable builds the 256-entry classification ROM. Each entry is
// the packed class word of the byte value; looking a byte up also range
// checks it.
func newOpcodeTable(api frontend.API) logderivlookup.Table {
	tbl := logderivlookup.New(api)
	for _, w := range opcode.ClassTable() {
		tbl.Insert(w)
	}
	return tbl
}

// classify looks up the packed class words of the given bytes and
// unpacks them.
func classify(api frontend.API, tbl logderivlookup.Table, bytes []frontend.Variable) []opcodeClass {
	words := tbl.Lookup(bytes...)
	classes := make([]opcodeClass, len(words))
	for i, w := range words {
		bits := api.ToBinary(w, opcode.NumClassBits)
		classes[i] = opcodeClass{
			Enabled:   bits[0],
			Op0:       bits[1],
			Op1To16:   bits[2],
			PushNext:  bits[3],
			PushData1: bits[4],
			PushData2: bits[5],
			PushData4: bits[6],
			CheckSig:  bits[7],
		}
	}
	return classes
}

// newParityTable builds the prefix/parity legality ROM, indexed by
// prefix*256 + lowYByte: prefix 0x04 accepts any byte, 0x02 only even
// bytes, 0x03 only odd bytes.
func newParityTable(api frontend.API) logderivlookup.Table {
	tbl := logderivlookup.New(api)
	for prefix := 0; prefix <= opcode.PrefixUncompressed; prefix++ {
		for b := 0; b < 256; b++ {
			legal := 0
			switch prefix {
			case opcode.PrefixCompressedEvenY:
				legal = 1 - b&1
			case opcode.PrefixCompressedOddY:
				legal = b & 1
			case opcode.PrefixUncompressed:
				legal = 1
			}
			tbl.Insert(legal)
		}
	}
	return tbl
}
