package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/beatmarket/pkg/chains"
)

// TransactionValidator implements chains.TransactionValidator for EVM chains
type TransactionValidator struct{}

func NewTransactionValidator() *TransactionValidator {
	return &TransactionValidator{}
}

var _ chains.TransactionValidator = (*TransactionValidator)(nil)

// NormalizeTransactionHash implements chains.TransactionValidator
// Hashes are returned lower-cased with a 0x prefix.
func (v *TransactionValidator) NormalizeTransactionHash(txHash string) (string, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return "", fmt.Errorf("empty transaction hash")
	}

	if !strings.HasPrefix(txHash, "0x") && !strings.HasPrefix(txHash, "0X") {
		txHash = "0x" + txHash
	}

	if len(txHash) != 66 { // 0x + 64 hex chars
		return "", fmt.Errorf("invalid transaction hash format: %s", txHash)
	}

	txHash = "0x" + strings.ToLower(txHash[2:])
	if _, err := hexutil.Decode(txHash); err != nil {
		return "", fmt.Errorf("invalid transaction hash format: %s: %w", txHash, err)
	}

	return txHash, nil
}

// AddressesEqual implements chains.TransactionValidator
// EVM addresses are case-insensitive due to EIP-55 checksumming
func (v *TransactionValidator) AddressesEqual(addr1, addr2 string) bool {
	return strings.EqualFold(addr1, addr2)
}
