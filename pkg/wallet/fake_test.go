package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/beatmarket/pkg/chains"
)

type fakeSigner struct {
	account common.Address
	chainID chains.ChainID
}

func (f *fakeSigner) Account() common.Address { return f.account }
func (f *fakeSigner) ChainID() chains.ChainID { return f.chainID }
func (f *fakeSigner) SendTransaction(ctx context.Context, tx *Transaction) (common.Hash, error) {
	return common.Hash{}, nil
}
func (f *fakeSigner) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, nil
}
func (f *fakeSigner) WaitMined(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	return nil, nil
}
func (f *fakeSigner) Rebind(account string, chainID chains.ChainID) Signer {
	return &fakeSigner{account: common.HexToAddress(account), chainID: chainID}
}

// fakeAdapter is a scriptable wallet
type fakeAdapter struct {
	id      string
	address string
	chainID chains.ChainID
	err     error
	balance *big.Int

	// block, when set, holds Connect until closed. ignoreCtx makes Connect
	// succeed even if its context was cancelled meanwhile.
	block     chan struct{}
	ignoreCtx bool
	entered   chan struct{}

	mu          sync.Mutex
	listeners   Listeners
	connects    int
	disconnects int
	switchErrs  []error
	switchCalls []chains.ChainID
	added       []chains.NetworkDescriptor
}

func newFakeAdapter(id string) *fakeAdapter {
	return &fakeAdapter{
		id:      id,
		address: "0x1111111111111111111111111111111111111111",
		chainID: chains.EVM(1),
		entered: make(chan struct{}, 16),
	}
}

func (f *fakeAdapter) ID() string            { return f.id }
func (f *fakeAdapter) Family() chains.Family { return chains.FamilyEVM }
func (f *fakeAdapter) Installed() bool       { return f.id != "missing" }
func (f *fakeAdapter) SupportedChains() []chains.NetworkDescriptor {
	return chains.NewRegistry(chains.DefaultNetworks()...).NetworksByFamily(chains.FamilyEVM)
}

func (f *fakeAdapter) Connect(ctx context.Context) (*Connection, error) {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
	f.entered <- struct{}{}

	if f.block != nil {
		if f.ignoreCtx {
			<-f.block
		} else {
			select {
			case <-f.block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Connection{
		Address: f.address,
		ChainID: f.chainID,
		Signer:  &fakeSigner{account: common.HexToAddress(f.address), chainID: f.chainID},
	}, nil
}

func (f *fakeAdapter) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeAdapter) Listen(l Listeners) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = l
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listeners = Listeners{}
	}
}

func (f *fakeAdapter) current() Listeners {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners
}

func (f *fakeAdapter) emitAccounts(accounts ...string) {
	if fn := f.current().AccountsChanged; fn != nil {
		fn(accounts)
	}
}

func (f *fakeAdapter) emitChain(id chains.ChainID) {
	if fn := f.current().ChainChanged; fn != nil {
		fn(id)
	}
}

func (f *fakeAdapter) emitDisconnect() {
	if fn := f.current().Disconnected; fn != nil {
		fn()
	}
}

func (f *fakeAdapter) SwitchChain(ctx context.Context, chainID chains.ChainID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchCalls = append(f.switchCalls, chainID)
	if len(f.switchErrs) == 0 {
		return nil
	}
	err := f.switchErrs[0]
	f.switchErrs = f.switchErrs[1:]
	return err
}

func (f *fakeAdapter) AddChain(ctx context.Context, desc chains.NetworkDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, desc)
	return nil
}

func (f *fakeAdapter) Balance(ctx context.Context, address string) (*big.Int, error) {
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return f.balance, nil
}

var (
	_ Adapter         = (*fakeAdapter)(nil)
	_ NetworkSwitcher = (*fakeAdapter)(nil)
	_ BalanceReader   = (*fakeAdapter)(nil)
	_ Detector        = (*fakeAdapter)(nil)
)
