package evm

import (
	"fmt"

	"github.com/sigweihq/beatmarket/pkg/chains"
)

// RPCError is a failure of a single endpoint during receipt lookup
type RPCError struct {
	ChainID  chains.ChainID
	Endpoint string
	Err      error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("chain %s endpoint %s: %v", e.ChainID, e.Endpoint, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}
