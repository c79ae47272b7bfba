package script

import (
	"testing"

	secpfr "github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
	"github.com/stretchr/testify/require"

	"github.com/avras/bitcoinvm-sub000/opcode"
)

func testKeyBytes(t *testing.T, seed uint64, compressed bool) []byte {
	t.Helper()
	var priv, nonce secpfr.Element
	priv.SetUint64(seed)
	nonce.SetOne()
	sd, err := SignFixedMessage(nonce, priv)
	require.NoError(t, err)
	if compressed {
		return SerializeCompressed(&sd.PublicKey)
	}
	return SerializeUncompressed(&sd.PublicKey)
}

func pushKey(script, key []byte) []byte {
	script = append(script, opcode.PushNext(len(key)))
	return append(script, key...)
}

func TestCollectSingleCompressedKey(t *testing.T) {
	key := testKeyBytes(t, 0xcd, true)
	script := pushKey(nil, key)
	script = append(script, opcode.OP_CHECKSIG)

	keys, err := CollectPublicKeys(script, []StackItem{{Kind: ItemValidSignature}})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, key, keys[0].Bytes)
	require.NotNil(t, keys[0].X)
	require.NotNil(t, keys[0].Y)
}

func TestCollectSingleUncompressedKey(t *testing.T) {
	key := testKeyBytes(t, 0xcd, false)
	script := pushKey(nil, key)
	script = append(script, opcode.OP_CHECKSIG)

	keys, err := CollectPublicKeys(script, []StackItem{{Kind: ItemValidSignature}})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, key, keys[0].Bytes)
}

func TestCollectMultipleKeysInScriptOrder(t *testing.T) {
	k1 := testKeyBytes(t, 11, true)
	k2 := testKeyBytes(t, 22, false)
	k3 := testKeyBytes(t, 33, true)

	var script []byte
	script = pushKey(script, k1)
	script = append(script, opcode.OP_CHECKSIG)
	script = pushKey(script, k2)
	script = append(script, opcode.OP_CHECKSIG)
	script = pushKey(script, k3)
	script = append(script, opcode.OP_CHECKSIG)

	initial := []StackItem{
		{Kind: ItemValidSignature},
		{Kind: ItemValidSignature},
		{Kind: ItemValidSignature},
	}
	keys, err := CollectPublicKeys(script, initial)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	require.Equal(t, k1, keys[0].Bytes)
	require.Equal(t, k2, keys[1].Bytes)
	require.Equal(t, k3, keys[2].Bytes)
}

func TestCollectSkipsInvalidSignature(t *testing.T) {
	k1 := testKeyBytes(t, 11, true)
	k2 := testKeyBytes(t, 22, true)

	var script []byte
	script = pushKey(script, k1)
	script = append(script, opcode.OP_CHECKSIG)
	script = pushKey(script, k2)
	script = append(script, opcode.OP_CHECKSIG)

	initial := []StackItem{
		{Kind: ItemInvalidSignature},
		{Kind: ItemValidSignature},
	}
	keys, err := CollectPublicKeys(script, initial)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, k2, keys[0].Bytes)
}

func TestCollectPushVariants(t *testing.T) {
	key := testKeyBytes(t, 0x42, true)

	script := []byte{opcode.OP_PUSHDATA1, byte(len(key))}
	script = append(script, key...)
	script = append(script, opcode.OP_CHECKSIG)

	keys, err := CollectPublicKeys(script, []StackItem{{Kind: ItemValidSignature}})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, key, keys[0].Bytes)

	script = []byte{opcode.OP_PUSHDATA2, byte(len(key)), 0}
	script = append(script, key...)
	script = append(script, opcode.OP_CHECKSIG)

	keys, err = CollectPublicKeys(script, []StackItem{{Kind: ItemValidSignature}})
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestCollectErrors(t *testing.T) {
	key := testKeyBytes(t, 0x42, true)

	t.Run("malformed key", func(t *testing.T) {
		bad := append([]byte(nil), key...)
		bad[0] = 0x05
		script := pushKey(nil, bad)
		script = append(script, opcode.OP_CHECKSIG)
		_, err := CollectPublicKeys(script, []StackItem{{Kind: ItemValidSignature}})
		require.ErrorIs(t, err, ErrMalformedPublicKey)
	})
	t.Run("key not on curve", func(t *testing.T) {
		bad := testKeyBytes(t, 0x42, false)
		bad[40] ^= 0xff // corrupt Y
		script := pushKey(nil, bad)
		script = append(script, opcode.OP_CHECKSIG)
		_, err := CollectPublicKeys(script, []StackItem{{Kind: ItemValidSignature}})
		require.Error(t, err)
	})
	t.Run("underflow", func(t *testing.T) {
		_, err := CollectPublicKeys([]byte{opcode.OP_CHECKSIG}, nil)
		require.ErrorIs(t, err, ErrStackUnderflow)
	})
	t.Run("flag is data", func(t *testing.T) {
		script := pushKey(nil, key)
		script = pushKey(script, key)
		script = append(script, opcode.OP_CHECKSIG)
		_, err := CollectPublicKeys(script, nil)
		require.ErrorIs(t, err, ErrExpectedFlag)
	})
	t.Run("disabled opcode", func(t *testing.T) {
		_, err := CollectPublicKeys([]byte{opcode.OP_1NEGATE}, nil)
		require.ErrorIs(t, err, ErrDisabledOpcode)
	})
	t.Run("truncated push", func(t *testing.T) {
		_, err := CollectPublicKeys([]byte{opcode.PushNext(5), 0x01}, nil)
		require.ErrorIs(t, err, ErrTruncatedPush)
	})
	t.Run("pushdata4 declares huge length", func(t *testing.T) {
		_, err := CollectPublicKeys([]byte{opcode.OP_PUSHDATA4, 0xff, 0xff, 0xff, 0xff}, nil)
		require.ErrorIs(t, err, ErrTruncatedPush)
	})
}
