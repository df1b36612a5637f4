package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the marketplace core can surface.
// Callers branch on the kind, never on the error text.
type ErrorKind string

const (
	KindWalletNotInstalled ErrorKind = "wallet_not_installed"
	KindUserRejected       ErrorKind = "user_rejected"
	KindPairingTimeout     ErrorKind = "pairing_timeout"
	KindPairingRejected    ErrorKind = "pairing_rejected"
	KindBridgeUnavailable  ErrorKind = "bridge_unavailable"
	KindUnknownChain       ErrorKind = "unknown_chain"
	KindProviderError      ErrorKind = "provider_error"
	KindNotConnected       ErrorKind = "not_connected"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindReverted           ErrorKind = "reverted"
	KindAlreadyReconciled  ErrorKind = "already_reconciled"
	KindRejected           ErrorKind = "rejected"
	KindConflict           ErrorKind = "conflict"
	KindUnsupportedWallet  ErrorKind = "unsupported_wallet"
	KindConnectInProgress  ErrorKind = "connect_in_progress"
	KindNotFound           ErrorKind = "not_found"
	KindInvalidAmount      ErrorKind = "invalid_amount"
)

var messages = map[ErrorKind]string{
	KindWalletNotInstalled: "Wallet is not installed. Install the wallet extension or app and try again.",
	KindUserRejected:       "Please connect your wallet to continue.",
	KindPairingTimeout:     "Wallet pairing timed out. Scan the code again.",
	KindPairingRejected:    "Wallet pairing was rejected.",
	KindBridgeUnavailable:  "This wallet is only available inside its mobile app.",
	KindUnknownChain:       "This network is not supported.",
	KindProviderError:      "The wallet reported an error.",
	KindNotConnected:       "Wallet not connected.",
	KindInsufficientFunds:  "Insufficient funds for this purchase.",
	KindReverted:           "The transaction was reverted on chain.",
	KindAlreadyReconciled:  "This purchase has already been recorded.",
	KindRejected:           "The purchase could not be confirmed.",
	KindConflict:           "The listing was changed by someone else.",
	KindUnsupportedWallet:  "Unsupported wallet.",
	KindConnectInProgress:  "A wallet connection is already in progress.",
	KindNotFound:           "Beat not found.",
	KindInvalidAmount:      "Invalid amount.",
}

// Message returns the user-facing text for a kind.
func Message(kind ErrorKind) string {
	if msg, ok := messages[kind]; ok {
		return msg
	}
	return "Something went wrong."
}

// Error is a typed failure. Detail carries raw provider text for diagnostics.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a typed error with a diagnostic detail.
func NewError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the kind from an error chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var (
	ErrWalletNotInstalled = &Error{Kind: KindWalletNotInstalled}
	ErrUserRejected       = &Error{Kind: KindUserRejected}
	ErrPairingTimeout     = &Error{Kind: KindPairingTimeout}
	ErrPairingRejected    = &Error{Kind: KindPairingRejected}
	ErrBridgeUnavailable  = &Error{Kind: KindBridgeUnavailable}
	ErrUnknownChain       = &Error{Kind: KindUnknownChain}
	ErrProviderError      = &Error{Kind: KindProviderError}
	ErrNotConnected       = &Error{Kind: KindNotConnected}
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds}
	ErrReverted           = &Error{Kind: KindReverted}
	ErrAlreadyReconciled  = &Error{Kind: KindAlreadyReconciled}
	ErrRejected           = &Error{Kind: KindRejected}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrUnsupportedWallet  = &Error{Kind: KindUnsupportedWallet}
	ErrConnectInProgress  = &Error{Kind: KindConnectInProgress}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount}
)
