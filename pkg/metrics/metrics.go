// Package metrics records marketplace counters and latencies.
package metrics

import "time"

// Recorder receives counters and latencies. Labels that a backend does not
// know are ignored.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event names
const (
	WalletConnect    = "wallet_connect"
	TransactionSent  = "transaction_sent"
	PurchaseOutcome  = "purchase_outcome"
	ReceiptLookup    = "receipt_lookup"
	HTTPRequest      = "http_request"
	TransactionMined = "transaction_mined"
)
