package script

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/secp256k1"
	secpfr "github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
	"github.com/stretchr/testify/require"
)

// verifySignature checks (r, s) against pk over msgHash using the
// textbook equation: x(u1*G + u2*pk) mod n == r with u1 = msgHash/s,
// u2 = r/s.
func verifySignature(t *testing.T, sd SignData, msgHash secpfr.Element) {
	t.Helper()
	var r, s secpfr.Element
	r.SetBigInt(sd.R)
	s.SetBigInt(sd.S)
	require.False(t, r.IsZero())
	require.False(t, s.IsZero())

	var sInv, u1, u2 secpfr.Element
	sInv.Inverse(&s)
	u1.Mul(&msgHash, &sInv)
	u2.Mul(&r, &sInv)

	var p1, p2 secp256k1.G1Affine
	p1.ScalarMultiplicationBase(u1.BigInt(new(big.Int)))
	p2.ScalarMultiplication(&sd.PublicKey, u2.BigInt(new(big.Int)))

	var sum secp256k1.G1Jac
	sum.FromAffine(&p1)
	sum.AddMixed(&p2)
	var sumAff secp256k1.G1Affine
	sumAff.FromJacobian(&sum)

	var rx secpfr.Element
	rx.SetBigInt(sumAff.X.BigInt(new(big.Int)))
	require.True(t, rx.Equal(&r))
}

func TestSignFixedMessage(t *testing.T) {
	var priv, nonce, msg secpfr.Element
	priv.SetUint64(0x1234)
	nonce.SetUint64(0x9999)
	msg.SetUint64(ECDSAMessageHash)

	sd, err := SignFixedMessage(nonce, priv)
	require.NoError(t, err)
	verifySignature(t, sd, msg)
}

func TestSignRejectsZeroNonce(t *testing.T) {
	var priv, nonce, msg secpfr.Element
	priv.SetUint64(0x1234)
	msg.SetOne()
	_, err := Sign(nonce, priv, msg)
	require.ErrorIs(t, err, ErrZeroNonce)
}

func TestPaddingSignData(t *testing.T) {
	sd := PaddingSignData()

	// public key is the generator
	_, g := secp256k1.Generators()
	require.True(t, sd.PublicKey.Equal(&g))

	// r = x(G) mod n and s = 1 + r
	var r secpfr.Element
	r.SetBigInt(g.X.BigInt(new(big.Int)))
	require.Equal(t, r.BigInt(new(big.Int)), sd.R)
	var one, s secpfr.Element
	one.SetOne()
	s.Add(&r, &one)
	require.Equal(t, s.BigInt(new(big.Int)), sd.S)

	var msg secpfr.Element
	msg.SetUint64(ECDSAMessageHash)
	verifySignature(t, sd, msg)
}

func TestSerializeRoundTrip(t *testing.T) {
	var priv, nonce secpfr.Element
	priv.SetUint64(77)
	nonce.SetOne()
	sd, err := SignFixedMessage(nonce, priv)
	require.NoError(t, err)

	comp := SerializeCompressed(&sd.PublicKey)
	require.Len(t, comp, 33)
	require.Contains(t, []byte{0x02, 0x03}, comp[0])

	uncomp := SerializeUncompressed(&sd.PublicKey)
	require.Len(t, uncomp, 65)
	require.EqualValues(t, 0x04, uncomp[0])
	require.Equal(t, comp[1:33], uncomp[1:33])
}
