package svm

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/sigweihq/beatmarket/pkg/chains"
)

// TransactionValidator implements chains.TransactionValidator for SVM chains
type TransactionValidator struct{}

// NewTransactionValidator creates a new SVM transaction validator
func NewTransactionValidator() *TransactionValidator {
	return &TransactionValidator{}
}

var _ chains.TransactionValidator = (*TransactionValidator)(nil)

// NormalizeTransactionHash implements chains.TransactionValidator
// Solana transaction ids are base58 encoded 64-byte signatures.
func (v *TransactionValidator) NormalizeTransactionHash(txHash string) (string, error) {
	sig, err := solana.SignatureFromBase58(strings.TrimSpace(txHash))
	if err != nil {
		return "", fmt.Errorf("invalid transaction signature %q: %w", txHash, err)
	}
	return sig.String(), nil
}

// AddressesEqual implements chains.TransactionValidator
// SVM addresses are case-sensitive (base58 encoding)
func (v *TransactionValidator) AddressesEqual(addr1, addr2 string) bool {
	return addr1 == addr2
}
