package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnabled(t *testing.T) {
	require.True(t, Enabled(OP_0))
	require.True(t, Enabled(OP_NOP))
	require.True(t, Enabled(OP_CHECKSIG))
	require.True(t, Enabled(PushNext(1)))
	require.True(t, Enabled(PushNext(75)))
	require.True(t, Enabled(OP_PUSHDATA4))
	require.True(t, Enabled(OP_1))
	require.True(t, Enabled(OP_16))

	require.False(t, Enabled(OP_1NEGATE))
	require.False(t, Enabled(OP_RESERVED))
	require.False(t, Enabled(0x62)) // OP_VER
	require.False(t, Enabled(0xab)) // OP_CODESEPARATOR
	require.False(t, Enabled(0xad)) // OP_CHECKSIGVERIFY
	require.False(t, Enabled(0xff))
}

func TestClassWordExclusive(t *testing.T) {
	for b := 0; b < 256; b++ {
		w := ClassWord(byte(b))
		if !Enabled(byte(b)) {
			require.Zero(t, w, "disabled opcode 0x%02x must have empty class word", b)
			continue
		}
		require.Equal(t, uint16(1), w&1, "enabled bit for 0x%02x", b)
		classBits := 0
		for bit := 1; bit < NumClassBits; bit++ {
			if w&(1<<bit) != 0 {
				classBits++
			}
		}
		require.LessOrEqual(t, classBits, 1, "opcode 0x%02x in more than one class", b)
	}
}

func TestClassTable(t *testing.T) {
	tbl := ClassTable()
	require.Equal(t, ClassWord(OP_CHECKSIG), tbl[OP_CHECKSIG])
	require.Equal(t, uint16(0b00000011), tbl[OP_0])
	require.Equal(t, uint16(0b00000101), tbl[OP_1])
	require.Equal(t, uint16(0b00001001), tbl[PushNext(20)])
	require.Equal(t, uint16(0b00010001), tbl[OP_PUSHDATA1])
	require.Equal(t, uint16(0b00100001), tbl[OP_PUSHDATA2])
	require.Equal(t, uint16(0b01000001), tbl[OP_PUSHDATA4])
	require.Equal(t, uint16(0b10000001), tbl[OP_CHECKSIG])
	require.Equal(t, uint16(0b00000001), tbl[OP_NOP])
	require.Zero(t, tbl[OP_1NEGATE])
	require.Zero(t, tbl[OP_RESERVED])
}
