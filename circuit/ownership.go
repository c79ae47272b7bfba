package circuit

import (
	"github.com/consensys/gnark/frontend"
)

// OwnershipCircuit composes the execution region and the checksig
// bridge: the script committed by (ScriptLen, ScriptRLC) executes to a
// truthy stack top, and each of the public keys it fed to a checksig
// with a valid signature flag verifies an ECDSA signature over the
// fixed message.
type OwnershipCircuit struct {
	ScriptLen frontend.Variable `gnark:",public"`
	ScriptRLC frontend.Variable `gnark:",public"`
	Challenge frontend.Variable `gnark:",public"`
	Trace     ExecutionTrace
	Bridge    CheckSigBridge
}

// NewOwnershipCircuit shapes an ownership circuit for scripts of up to
// maxLen bytes and up to maxCount checksig operations.
func NewOwnershipCircuit(maxLen, maxCount int) *OwnershipCircuit {
	return &OwnershipCircuit{
		Trace:  NewExecutionTrace(maxLen),
		Bridge: NewCheckSigBridge(maxCount),
	}
}

func (c *OwnershipCircuit) Define(api frontend.API) error {
	pkAcc, count := c.Trace.constrain(api, c.ScriptLen, c.ScriptRLC, c.Challenge)
	bridgeAcc, bridgeCount, err := c.Bridge.constrain(api, c.Challenge)
	if err != nil {
		return err
	}

	// boundary: the bridge accounts for exactly the keys the execution
	// region folded
	api.AssertIsEqual(pkAcc, bridgeAcc)
	api.AssertIsEqual(count, bridgeCount)
	return nil
}
