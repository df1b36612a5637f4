package chains

import (
	"context"
	"strconv"

	"github.com/sigweihq/beatmarket/pkg/types"
)

// ChainID identifies a network. EVM chains use their decimal numeric id
// ("137"); non-EVM chains use a symbolic token ("solana", "ton").
type ChainID string

// EVM builds the ChainID of a numeric EVM chain
func EVM(id uint64) ChainID {
	return ChainID(strconv.FormatUint(id, 10))
}

// Numeric returns the numeric id, or false for symbolic chains
func (c ChainID) Numeric() (uint64, bool) {
	n, err := strconv.ParseUint(string(c), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c ChainID) String() string {
	return string(c)
}

// Family groups networks that share a wallet and transaction model
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
	FamilyTON    Family = "ton"
)

// NetworkDescriptor is the static metadata of a network
type NetworkDescriptor struct {
	ChainID      ChainID  `json:"chainId" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	NativeSymbol string   `json:"nativeSymbol" yaml:"native_symbol"`
	Decimals     int32    `json:"decimals" yaml:"decimals"`
	RPCURLs      []string `json:"rpcUrls" yaml:"rpc_urls"`
	ExplorerURL  string   `json:"explorerUrl" yaml:"explorer_url"`
	Family       Family   `json:"family" yaml:"family"`
}

// RPCURL returns the primary RPC endpoint, or "" if none is configured
func (d NetworkDescriptor) RPCURL() string {
	if len(d.RPCURLs) == 0 {
		return ""
	}
	return d.RPCURLs[0]
}

// ChainAdapter provides chain-specific operations used to confirm purchases
type ChainAdapter interface {
	// ChainID returns the chain this adapter serves
	ChainID() ChainID

	// RPCClient returns the RPC client manager for this chain
	RPCClient() RPCClient

	// TransactionValidator returns the transaction validator for this chain
	TransactionValidator() TransactionValidator
}

// RPCClient handles blockchain RPC operations
type RPCClient interface {
	// GetTransactionReceipt retrieves a mined transaction's receipt with failover.
	// Returns types.ErrNotFound while the transaction is still pending.
	GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)

	// IsHealthy performs a health check on the RPC endpoint
	IsHealthy(ctx context.Context, endpoint string) bool
}

// TransactionValidator validates chain-specific transaction identifiers
type TransactionValidator interface {
	// NormalizeTransactionHash validates a tx hash or signature and returns its canonical form
	NormalizeTransactionHash(txHash string) (string, error)

	// AddressesEqual compares two addresses using chain-specific rules
	// For EVM: case-insensitive (due to EIP-55 checksumming)
	// For SVM: case-sensitive (base58 encoding)
	AddressesEqual(addr1, addr2 string) bool
}
