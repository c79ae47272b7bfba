// main.go
// bitcoinvm ownership prover
// -----------------------------------------------------------------------------
// A gnark implementation of a restricted Bitcoin script-pubkey ownership
// statement. The prover commits to the script through a random linear
// combination of its bytes and shows, without revealing which keys signed:
// 1. Executing the script leaves a truthy stack top (execution trace region).
// 2. Every public key consumed by a checksig under a valid signature flag
//    carries an ECDSA signature over a fixed message (checksig bridge).
// The two regions are tied together by the public key accumulator and the
// checksig count crossing their shared boundary.
// -----------------------------------------------------------------------------
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func main() {
	exampleFlag := flag.String("example", "all", "Run a specific example, or 'all'.")
	proveFlag := flag.Bool("prove", false, "Generate and verify a Groth16 proof instead of the fast logic check.")
	flag.Parse()

	fmt.Println("▶ Part 0: Sampling verifier challenge...")
	var challenge fr.Element
	if _, err := challenge.SetRandom(); err != nil {
		fmt.Fprintf(os.Stderr, "challenge sampling failed: %v\n", err)
		os.Exit(1)
	}

	names := exampleNames
	if *exampleFlag != "all" {
		names = []string{*exampleFlag}
	}

	for _, name := range names {
		fmt.Printf("\n▶ Example: %s\n", name)
		assignment, err := buildExample(name, challenge)
		if err != nil {
			fmt.Fprintf(os.Stderr, "building %s failed: %v\n", name, err)
			os.Exit(1)
		}
		if err := execute(assignment, *proveFlag); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
			os.Exit(1)
		}
	}
}
