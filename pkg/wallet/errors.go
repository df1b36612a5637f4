package wallet

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// ClassifyError maps a raw provider failure onto the error taxonomy. The
// provider's own text is kept as the detail.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case constants.CodeUserRejected:
			return types.NewError(types.KindUserRejected, rpcErr.Error(), err)
		case constants.CodeUnrecognizedChain:
			return types.NewError(types.KindUnknownChain, rpcErr.Error(), err)
		case constants.CodeUnauthorized, constants.CodeDisconnected, constants.CodeChainDisconnected:
			return types.NewError(types.KindNotConnected, rpcErr.Error(), err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return types.NewError(types.KindInsufficientFunds, err.Error(), err)
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "transaction reverted"):
		return types.NewError(types.KindReverted, err.Error(), err)
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return types.NewError(types.KindUserRejected, err.Error(), err)
	}

	return types.NewError(types.KindProviderError, err.Error(), err)
}
