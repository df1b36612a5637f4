package evm

import (
	"fmt"

	"github.com/sigweihq/beatmarket/pkg/chains"
)

// Adapter provides receipt lookup and hash validation for one EVM chain.
// Every EVM network in the registry shares this implementation.
type Adapter struct {
	chainID   chains.ChainID
	rpc       *RPCClient
	validator *TransactionValidator
}

// NewAdapter creates an EVM chain adapter
func NewAdapter(chainID chains.ChainID, endpoints []string) *Adapter {
	return &Adapter{
		chainID:   chainID,
		rpc:       NewRPCClient(chainID, endpoints),
		validator: NewTransactionValidator(),
	}
}

// ChainID implements chains.ChainAdapter
func (a *Adapter) ChainID() chains.ChainID {
	return a.chainID
}

// RPCClient implements chains.ChainAdapter
func (a *Adapter) RPCClient() chains.RPCClient {
	return a.rpc
}

// TransactionValidator implements chains.ChainAdapter
func (a *Adapter) TransactionValidator() chains.TransactionValidator {
	return a.validator
}

// NewEVMAdapter creates an adapter for a network described in the registry
func NewEVMAdapter(registry *chains.Registry, chainID chains.ChainID, endpoints []string) (*Adapter, error) {
	desc, err := registry.Describe(chainID)
	if err != nil {
		return nil, err
	}
	if desc.Family != chains.FamilyEVM {
		return nil, fmt.Errorf("chain %s is not an EVM network", chainID)
	}
	if len(endpoints) == 0 {
		endpoints = desc.RPCURLs
	}
	return NewAdapter(chainID, endpoints), nil
}
