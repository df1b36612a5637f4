package constants

import "time"

const (
	DelayBetweenRPCCalls      = 200              // delay in milliseconds between RPC calls
	TransactionReceiptTimeout = 5 * time.Second  // timeout for a single receipt lookup
	CallContractTimeout       = 10 * time.Second // timeout for contract call
	HealthCheckTimeout        = 3 * time.Second  // timeout for endpoint health check
	PinningTimeout            = 30 * time.Second // timeout for pinning service
	TLSHandshakeTimeout       = 10 * time.Second // timeout for TLS handshake
	ResponseHeaderTimeout     = 20 * time.Second // timeout for response header
	ExpectContinueTimeout     = 1 * time.Second  // timeout for expect continue
	DefaultPairingTimeout     = 2 * time.Minute  // how long a relay pairing prompt stays valid
	ReceiptPollInterval       = 2 * time.Second  // how often a pending tx is polled
	MaxResponseBodySize       = 10 * 1024 * 1024 // maximum response body size in bytes (10MB)
	MaxRequestBodySize        = 1024 * 1024      // maximum API request body size in bytes (1MB)
)

// EIP-1193 / EIP-3085 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupported       = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// Provider identifiers
const (
	ProviderMetaMask      = "metamask"
	ProviderTrustWallet   = "trustwallet"
	ProviderCoinbase      = "coinbase"
	ProviderRabby         = "rabby"
	ProviderWalletConnect = "walletconnect"
	ProviderPhantom       = "phantom"
	ProviderTelegram      = "telegram"
	ProviderTonkeeper     = "tonkeeper"
)

// Numeric chain IDs
const (
	ChainIDEthereum = 1
	ChainIDOptimism = 10
	ChainIDBNB      = 56
	ChainIDPolygon  = 137
	ChainIDArbitrum = 42161
	ChainIDSepolia  = 11155111
	ChainIDAurora   = 1313161554
)

// Symbolic chain IDs for non-EVM networks
const (
	ChainSolana = "solana"
	ChainTON    = "ton"
)

const (
	EVMNativeDecimals    = 18
	SolanaNativeDecimals = 9
	TONNativeDecimals    = 9
)

var OfficialRPCEndpoints = map[string][]string{
	"1":          {"https://ethereum-rpc.publicnode.com", "https://eth.llamarpc.com"},
	"10":         {"https://mainnet.optimism.io"},
	"56":         {"https://bsc-dataseed1.binance.org", "https://bsc-dataseed2.binance.org"},
	"137":        {"https://polygon-rpc.com"},
	"42161":      {"https://arb1.arbitrum.io/rpc"},
	"11155111":   {"https://rpc.sepolia.org"},
	"1313161554": {"https://mainnet.aurora.dev"},
	ChainSolana:  {"https://api.mainnet-beta.solana.com"},
	ChainTON:     {"https://toncenter.com/api/v2/jsonRPC"},
}
