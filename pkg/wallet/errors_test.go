package wallet

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/stretchr/testify/assert"
)

type codeError struct {
	code int
	msg  string
}

func (e *codeError) Error() string  { return e.msg }
func (e *codeError) ErrorCode() int { return e.code }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{name: "user rejected code", err: &codeError{4001, "User rejected the request."}, want: types.KindUserRejected},
		{name: "unrecognized chain", err: &codeError{4902, "Unrecognized chain ID 0x89"}, want: types.KindUnknownChain},
		{name: "disconnected", err: &codeError{4900, "disconnected"}, want: types.KindNotConnected},
		{name: "insufficient funds", err: &codeError{-32000, "insufficient funds for gas * price + value"}, want: types.KindInsufficientFunds},
		{name: "reverted", err: &codeError{3, "execution reverted: Beat not listed"}, want: types.KindReverted},
		{name: "wrapped", err: fmt.Errorf("send: %w", &codeError{4001, "denied"}), want: types.KindUserRejected},
		{name: "other", err: errors.New("internal JSON-RPC error"), want: types.KindProviderError},
		{name: "typed passthrough", err: types.NewError(types.KindPairingTimeout, "", nil), want: types.KindPairingTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			assert.Equal(t, tt.want, types.KindOf(got))
		})
	}
}

func TestClassifyErrorKeepsDetail(t *testing.T) {
	err := ClassifyError(errors.New("nonce too low"))

	var typed *types.Error
	assert.True(t, errors.As(err, &typed))
	assert.Equal(t, "nonce too low", typed.Detail)
}

func TestClassifyErrorPassesContextErrors(t *testing.T) {
	assert.Equal(t, context.Canceled, ClassifyError(context.Canceled))
	assert.Nil(t, ClassifyError(nil))
}
