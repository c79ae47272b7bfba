package circuit

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	secpfr "github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/avras/bitcoinvm-sub000/script"
)

// signedKey produces a key/signature pair for the bridge witness.
func signedKey(t *testing.T, seed uint64, compressed bool) (script.PublicKeyInScript, script.SignData) {
	t.Helper()
	var priv, nonce secpfr.Element
	priv.SetUint64(seed)
	nonce.SetUint64(seed + 1)
	sd, err := script.SignFixedMessage(nonce, priv)
	require.NoError(t, err)

	var bytes []byte
	if compressed {
		bytes = script.SerializeCompressed(&sd.PublicKey)
	} else {
		bytes = script.SerializeUncompressed(&sd.PublicKey)
	}
	key := script.PublicKeyInScript{
		Bytes: bytes,
		X:     sd.PublicKey.X.BigInt(new(big.Int)),
		Y:     sd.PublicKey.Y.BigInt(new(big.Int)),
	}
	return key, sd
}

func TestCheckSigSingleCompressedKey(t *testing.T) {
	key, sd := signedKey(t, 0xcd, true)
	assignment, err := BuildCheckSigAssignment(
		[]script.PublicKeyInScript{key}, []script.SignData{sd}, testChallenge(), 2)
	require.NoError(t, err)
	require.NoError(t, test.IsSolved(NewCheckSigCircuit(2), assignment, ecc.BN254.ScalarField()))
}

func TestCheckSigSingleUncompressedKey(t *testing.T) {
	key, sd := signedKey(t, 0xcd, false)
	assignment, err := BuildCheckSigAssignment(
		[]script.PublicKeyInScript{key}, []script.SignData{sd}, testChallenge(), 1)
	require.NoError(t, err)
	require.NoError(t, test.IsSolved(NewCheckSigCircuit(1), assignment, ecc.BN254.ScalarField()))
}

func TestCheckSigPaddingOnly(t *testing.T) {
	assignment, err := BuildCheckSigAssignment(nil, nil, testChallenge(), 2)
	require.NoError(t, err)
	require.NoError(t, test.IsSolved(NewCheckSigCircuit(2), assignment, ecc.BN254.ScalarField()))
}

func TestCheckSigTwoKeys(t *testing.T) {
	k1, s1 := signedKey(t, 11, true)
	k2, s2 := signedKey(t, 22, false)
	assignment, err := BuildCheckSigAssignment(
		[]script.PublicKeyInScript{k1, k2}, []script.SignData{s1, s2}, testChallenge(), 3)
	require.NoError(t, err)
	require.NoError(t, test.IsSolved(NewCheckSigCircuit(3), assignment, ecc.BN254.ScalarField()))
}

func TestCheckSigWrongParityPrefix(t *testing.T) {
	key, sd := signedKey(t, 0xcd, true)
	assignment, err := BuildCheckSigAssignment(
		[]script.PublicKeyInScript{key}, []script.SignData{sd}, testChallenge(), 1)
	require.NoError(t, err)

	// flip the claimed parity: 0x02 <-> 0x03
	if key.Bytes[0] == 0x02 {
		assignment.Bridge.Slots[0].Prefix = 0x03
	} else {
		assignment.Bridge.Slots[0].Prefix = 0x02
	}
	require.Error(t, test.IsSolved(NewCheckSigCircuit(1), assignment, ecc.BN254.ScalarField()))
}

func TestCheckSigIllegalPrefix(t *testing.T) {
	key, sd := signedKey(t, 0xcd, true)
	assignment, err := BuildCheckSigAssignment(
		[]script.PublicKeyInScript{key}, []script.SignData{sd}, testChallenge(), 1)
	require.NoError(t, err)
	assignment.Bridge.Slots[0].Prefix = 0x01
	require.Error(t, test.IsSolved(NewCheckSigCircuit(1), assignment, ecc.BN254.ScalarField()))
}

func TestCheckSigTamperedSignature(t *testing.T) {
	key, sd := signedKey(t, 0xcd, true)
	badR := new(big.Int).Add(sd.R, big.NewInt(1))
	bad := sd
	bad.R = badR
	assignment, err := BuildCheckSigAssignment(
		[]script.PublicKeyInScript{key}, []script.SignData{bad}, testChallenge(), 1)
	require.NoError(t, err)
	require.Error(t, test.IsSolved(NewCheckSigCircuit(1), assignment, ecc.BN254.ScalarField()))
}

func TestCheckSigBuilderValidation(t *testing.T) {
	k1, s1 := signedKey(t, 11, true)
	k2, s2 := signedKey(t, 22, true)

	_, err := BuildCheckSigAssignment(
		[]script.PublicKeyInScript{k1, k2}, []script.SignData{s1, s2}, testChallenge(), 1)
	require.ErrorIs(t, err, ErrTooManyKeys)

	_, err = BuildCheckSigAssignment(
		[]script.PublicKeyInScript{k1}, nil, testChallenge(), 1)
	require.ErrorIs(t, err, ErrSignatureCountMismatch)

	_, err = BuildCheckSigAssignment(
		[]script.PublicKeyInScript{k1}, []script.SignData{s2}, testChallenge(), 1)
	require.ErrorIs(t, err, ErrSignatureKeyMismatch)
}
