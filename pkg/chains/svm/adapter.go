package svm

import (
	"github.com/sigweihq/beatmarket/pkg/chains"
)

// SVMAdapter provides receipt lookup and signature validation for Solana
type SVMAdapter struct {
	chainID   chains.ChainID
	rpc       *RPCClient
	validator *TransactionValidator
}

// NewSVMAdapter creates a new SVM chain adapter
func NewSVMAdapter(chainID chains.ChainID, endpoints []string) *SVMAdapter {
	return &SVMAdapter{
		chainID:   chainID,
		rpc:       NewRPCClient(chainID, endpoints),
		validator: NewTransactionValidator(),
	}
}

var _ chains.ChainAdapter = (*SVMAdapter)(nil)

// ChainID implements chains.ChainAdapter
func (a *SVMAdapter) ChainID() chains.ChainID {
	return a.chainID
}

// RPCClient implements chains.ChainAdapter
func (a *SVMAdapter) RPCClient() chains.RPCClient {
	return a.rpc
}

// TransactionValidator implements chains.ChainAdapter
func (a *SVMAdapter) TransactionValidator() chains.TransactionValidator {
	return a.validator
}
