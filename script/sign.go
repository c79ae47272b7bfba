package script

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/secp256k1"
	secpfr "github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
)

// ECDSAMessageHash is the fixed message every checksig signature is made
// over. Ownership is proved by the ability to sign, not by what is signed.
const ECDSAMessageHash = 1

var ErrZeroNonce = errors.New("signing nonce reduces to zero")

// SignData carries one witness signature together with the key material
// that produced it.
type SignData struct {
	PrivateKey secpfr.Element
	PublicKey  secp256k1.G1Affine
	R, S       *big.Int
}

// Sign produces an ECDSA signature (r, s) over msgHash with the given
// nonce and private key, both scalars of the secp256k1 group order.
func Sign(nonce, priv, msgHash secpfr.Element) (SignData, error) {
	if nonce.IsZero() {
		return SignData{}, ErrZeroNonce
	}

	var point secp256k1.G1Affine
	point.ScalarMultiplicationBase(nonce.BigInt(new(big.Int)))

	// r = x(nonce * G) mod n
	var r secpfr.Element
	r.SetBigInt(point.X.BigInt(new(big.Int)))
	if r.IsZero() {
		return SignData{}, ErrZeroNonce
	}

	// s = nonce^-1 * (msgHash + r * priv)
	var s, nonceInv secpfr.Element
	nonceInv.Inverse(&nonce)
	s.Mul(&r, &priv).Add(&s, &msgHash).Mul(&s, &nonceInv)

	var pub secp256k1.G1Affine
	pub.ScalarMultiplicationBase(priv.BigInt(new(big.Int)))

	return SignData{
		PrivateKey: priv,
		PublicKey:  pub,
		R:          r.BigInt(new(big.Int)),
		S:          s.BigInt(new(big.Int)),
	}, nil
}

// SignFixedMessage signs the fixed checksig message with the given nonce
// and private key.
func SignFixedMessage(nonce, priv secpfr.Element) (SignData, error) {
	var msg secpfr.Element
	msg.SetUint64(ECDSAMessageHash)
	return Sign(nonce, priv, msg)
}

// PaddingSignData returns the filler signature assigned to unused
// checksig slots: private key 1 and nonce 1, so the public key is the
// generator, r = x(G) mod n and s = 1 + r. It always verifies against
// the fixed message.
func PaddingSignData() SignData {
	var one secpfr.Element
	one.SetOne()
	sd, err := SignFixedMessage(one, one)
	if err != nil {
		panic(err) // unreachable, nonce is 1
	}
	return sd
}

// SerializeCompressed returns the 33-byte SEC1 form of pk.
func SerializeCompressed(pk *secp256k1.G1Affine) []byte {
	out := make([]byte, 33)
	yBytes := pk.Y.Bytes()
	if yBytes[len(yBytes)-1]&1 == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xBytes := pk.X.Bytes()
	copy(out[1:], xBytes[:])
	return out
}

// SerializeUncompressed returns the 65-byte SEC1 form of pk.
func SerializeUncompressed(pk *secp256k1.G1Affine) []byte {
	out := make([]byte, 65)
	out[0] = 0x04
	xBytes := pk.X.Bytes()
	yBytes := pk.Y.Bytes()
	copy(out[1:33], xBytes[:])
	copy(out[33:], yBytes[:])
	return out
}
