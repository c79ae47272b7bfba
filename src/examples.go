// Contains the example ownership scenarios and the runner that proves them.
package main

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	secpfr "github.com/consensys/gnark-crypto/ecc/secp256k1/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/test"

	"github.com/avras/bitcoinvm-sub000/circuit"
	"github.com/avras/bitcoinvm-sub000/opcode"
	"github.com/avras/bitcoinvm-sub000/script"
)

// Shared circuit capacities so every example fits the same compiled circuit.
const (
	exampleMaxLen   = 128
	exampleMaxCount = 3
)

var exampleNames = []string{
	"p2pk_compressed",
	"p2pk_uncompressed",
	"p2pk_pushdata",
	"two_keys",
}

func exampleSigner(seed uint64) (script.SignData, error) {
	var priv, nonce secpfr.Element
	priv.SetUint64(seed)
	nonce.SetUint64(seed ^ 0xfeed)
	return script.SignFixedMessage(nonce, priv)
}

func pushKeyBytes(s, key []byte) []byte {
	s = append(s, opcode.PushNext(len(key)))
	return append(s, key...)
}

// ownershipAssignment runs the interpreter and the key collector over the
// script with one valid signature flag per checksig, then builds the
// full circuit witness.
func ownershipAssignment(scriptBytes []byte, sigs []script.SignData, challenge fr.Element) (*circuit.OwnershipCircuit, error) {
	var initial [opcode.MaxStackDepth]fr.Element
	items := make([]script.StackItem, len(sigs))
	for i := range sigs {
		initial[i].SetOne()
		items[i] = script.StackItem{Kind: script.ItemValidSignature}
	}

	trace, err := script.Run(scriptBytes, challenge, initial)
	if err != nil {
		return nil, fmt.Errorf("interpreter: %w", err)
	}
	keys, err := script.CollectPublicKeys(scriptBytes, items)
	if err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}
	return circuit.BuildOwnershipAssignment(trace, keys, sigs, exampleMaxLen, exampleMaxCount)
}

// buildExample assembles the script and witness for a named scenario.
func buildExample(name string, challenge fr.Element) (*circuit.OwnershipCircuit, error) {
	switch name {
	case "p2pk_compressed":
		sd, err := exampleSigner(0xa11ce)
		if err != nil {
			return nil, err
		}
		scriptBytes := pushKeyBytes(nil, script.SerializeCompressed(&sd.PublicKey))
		scriptBytes = append(scriptBytes, opcode.OP_CHECKSIG)
		return ownershipAssignment(scriptBytes, []script.SignData{sd}, challenge)

	case "p2pk_uncompressed":
		sd, err := exampleSigner(0xb0b)
		if err != nil {
			return nil, err
		}
		scriptBytes := pushKeyBytes(nil, script.SerializeUncompressed(&sd.PublicKey))
		scriptBytes = append(scriptBytes, opcode.OP_CHECKSIG)
		return ownershipAssignment(scriptBytes, []script.SignData{sd}, challenge)

	case "p2pk_pushdata":
		// Same statement as p2pk_compressed but the key is pushed with an
		// explicit one-byte length field.
		sd, err := exampleSigner(0xca201)
		if err != nil {
			return nil, err
		}
		key := script.SerializeCompressed(&sd.PublicKey)
		scriptBytes := []byte{opcode.OP_PUSHDATA1, byte(len(key))}
		scriptBytes = append(scriptBytes, key...)
		scriptBytes = append(scriptBytes, opcode.OP_CHECKSIG)
		return ownershipAssignment(scriptBytes, []script.SignData{sd}, challenge)

	case "two_keys":
		sd1, err := exampleSigner(0xd00d)
		if err != nil {
			return nil, err
		}
		sd2, err := exampleSigner(0xe22e)
		if err != nil {
			return nil, err
		}
		scriptBytes := pushKeyBytes(nil, script.SerializeCompressed(&sd1.PublicKey))
		scriptBytes = append(scriptBytes, opcode.OP_CHECKSIG)
		scriptBytes = pushKeyBytes(scriptBytes, script.SerializeUncompressed(&sd2.PublicKey))
		scriptBytes = append(scriptBytes, opcode.OP_CHECKSIG)
		return ownershipAssignment(scriptBytes, []script.SignData{sd1, sd2}, challenge)

	default:
		return nil, fmt.Errorf("unknown example name: %s", name)
	}
}

// execute runs a given assignment in one of two modes:
// 1. Fast logic check (prove=false)
// 2. Full proof generation and verification (prove=true)
func execute(assignment *circuit.OwnershipCircuit, prove bool) error {
	if !prove {
		fmt.Println("  ▶ Mode: Fast Logic Check")
		if err := test.IsSolved(circuit.NewOwnershipCircuit(exampleMaxLen, exampleMaxCount), assignment, ecc.BN254.ScalarField()); err != nil {
			return fmt.Errorf("constraints not satisfied: %w", err)
		}
		fmt.Println("  → Constraints satisfied.")
		return nil
	}

	fmt.Println("  ▶ Mode: Full Proof Generation")
	fmt.Println("    1. Compiling circuit...")
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit.NewOwnershipCircuit(exampleMaxLen, exampleMaxCount))
	if err != nil {
		return fmt.Errorf("circuit compilation failed: %w", err)
	}

	fmt.Println("    2. Performing trusted setup (Groth16)...")
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("trusted setup failed: %w", err)
	}

	fmt.Println("    3. Creating witness...")
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("witness creation failed: %w", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return fmt.Errorf("public witness extraction failed: %w", err)
	}

	fmt.Println("    4. Generating proof...")
	proof, err := groth16.Prove(cs, pk, witness)
	if err != nil {
		return fmt.Errorf("proof generation failed: %w", err)
	}

	fmt.Println("    5. Verifying proof...")
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	fmt.Println("  → ✅ Proof verified successfully!")
	return nil
}
