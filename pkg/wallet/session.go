package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/utils"
)

// Session is the connection state machine for one application instance.
// It owns the current identity and the active adapter.
//
// Every change of account, chain or connection bumps the generation. Holders
// of a signer must ask for it again with the generation they were built with,
// so nothing keeps using a signer from a previous session.
type Session struct {
	registry *chains.Registry
	adapters map[string]Adapter
	logger   *slog.Logger

	// opMu serializes transitions and notification handling
	opMu sync.Mutex

	mu         sync.RWMutex
	state      State
	identity   Identity
	active     Adapter
	signer     Signer
	unlisten   func()
	cancel     context.CancelFunc
	generation uint64
	connID     uint64
	lastErr    types.ErrorKind

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

// NewSession creates a disconnected session over the given adapters
func NewSession(registry *chains.Registry, logger *slog.Logger, adapters ...Adapter) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		registry:  registry,
		adapters:  make(map[string]Adapter, len(adapters)),
		logger:    logger,
		observers: make(map[int]func(Event)),
	}
	for _, a := range adapters {
		s.adapters[a.ID()] = a
	}
	return s
}

// Providers returns the ids of the configured adapters
func (s *Session) Providers() []string {
	ids := make([]string, 0, len(s.adapters))
	for id := range s.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Detect reports which providers are available. Adapters that cannot be
// probed are reported as available.
func (s *Session) Detect() map[string]bool {
	out := make(map[string]bool, len(s.adapters))
	for id, a := range s.adapters {
		if d, ok := a.(Detector); ok {
			out[id] = d.Installed()
			continue
		}
		out[id] = true
	}
	return out
}

// State returns the current state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Identity returns a copy of the current identity
func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Generation returns the current generation
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Snapshot returns state, identity and generation read together
func (s *Session) Snapshot() (State, Identity, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.identity, s.generation
}

// LastError returns the kind of the most recent failed connect, or ""
func (s *Session) LastError() types.ErrorKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Signer returns the active signer if the session is still at generation gen
func (s *Session) Signer(gen uint64) (Signer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Connected || s.generation != gen {
		return nil, types.NewError(types.KindNotConnected, "wallet session changed", nil)
	}
	if s.signer == nil {
		return nil, types.NewError(types.KindNotConnected, fmt.Sprintf("%s has no transaction signer", s.identity.ProviderID), nil)
	}
	return s.signer, nil
}

// Subscribe registers an observer. Observers run synchronously after each
// transition, in order, and must not call back into the session's mutating
// methods. The returned func unsubscribes.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

// Connect connects to the provider with the given id. Only one connect may be
// in flight. A disconnect that arrives while connecting wins.
func (s *Session) Connect(ctx context.Context, providerID string) (Identity, error) {
	adapter, ok := s.adapters[providerID]
	if !ok {
		return Identity{}, types.NewError(types.KindUnsupportedWallet, providerID, nil)
	}

	s.opMu.Lock()
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	if state == Connecting {
		s.opMu.Unlock()
		return Identity{}, types.NewError(types.KindConnectInProgress, providerID, nil)
	}
	if state == Connected {
		s.disconnectLocked(ctx)
	}

	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.state = Connecting
	s.generation++
	s.connID++
	gen, connID := s.generation, s.connID
	s.active = adapter
	s.cancel = cancel
	s.lastErr = ""
	s.mu.Unlock()

	unlisten := adapter.Listen(s.listeners(connID))
	s.mu.Lock()
	s.unlisten = unlisten
	s.mu.Unlock()

	s.emit(EventConnecting)
	s.opMu.Unlock()

	s.logger.Debug("connecting wallet", "provider", providerID)
	conn, err := adapter.Connect(connectCtx)

	var balance string
	if err == nil {
		balance = s.fetchBalance(connectCtx, adapter, conn.Address, conn.ChainID)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.generation != gen || s.state != Connecting {
		s.mu.Unlock()
		if err == nil {
			if derr := adapter.Disconnect(context.WithoutCancel(ctx)); derr != nil {
				s.logger.Warn("failed to release superseded connection", "provider", providerID, "error", derr)
			}
		}
		return Identity{}, types.NewError(types.KindNotConnected, "disconnected while connecting", nil)
	}

	if err != nil {
		kind := types.KindOf(err)
		if kind == "" {
			kind = types.KindProviderError
			err = types.NewError(kind, err.Error(), err)
		}
		s.state = Disconnected
		s.active = nil
		s.unlisten = nil
		s.cancel = nil
		s.lastErr = kind
		s.mu.Unlock()

		unlisten()
		s.logger.Info("wallet connect failed", "provider", providerID, "kind", kind, "error", err)
		s.emit(EventConnectFailed)
		return Identity{}, err
	}

	s.state = Connected
	s.cancel = nil
	s.signer = conn.Signer
	s.identity = Identity{
		ProviderID: providerID,
		Address:    conn.Address,
		ChainID:    conn.ChainID,
		Balance:    balance,
	}
	identity := s.identity
	s.mu.Unlock()

	s.logger.Info("wallet connected", "provider", providerID, "address", identity.Address, "chain", identity.ChainID)
	s.emit(EventConnected)
	return identity, nil
}

// Disconnect ends the session. Calling it on a disconnected session is a no-op.
func (s *Session) Disconnect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.disconnectLocked(ctx)
}

func (s *Session) disconnectLocked(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return nil
	}
	wasConnecting := s.state == Connecting
	adapter, unlisten, cancel := s.active, s.unlisten, s.cancel

	s.state = Disconnected
	s.identity = Identity{}
	s.active = nil
	s.signer = nil
	s.unlisten = nil
	s.cancel = nil
	s.generation++
	s.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	if cancel != nil {
		cancel()
	}

	var err error
	// A connect still running releases its own adapter when it returns
	if adapter != nil && !wasConnecting {
		err = adapter.Disconnect(ctx)
	}

	s.logger.Info("wallet disconnected")
	s.emit(EventDisconnected)
	return err
}

// OnAccountsChanged applies an account change. An empty list disconnects.
func (s *Session) OnAccountsChanged(accounts []string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.accountsChangedLocked(accounts)
}

func (s *Session) accountsChangedLocked(accounts []string) {
	if len(accounts) == 0 {
		s.disconnectLocked(context.Background())
		return
	}

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return
	}
	if accounts[0] == s.identity.Address {
		s.mu.Unlock()
		return
	}
	s.identity.Address = accounts[0]
	s.identity.Balance = ""
	if s.signer != nil {
		s.signer = s.signer.Rebind(accounts[0], s.identity.ChainID)
	}
	s.generation++
	s.mu.Unlock()

	s.emit(EventAccountChanged)
}

// OnChainChanged applies a network change. The cached balance is dropped and
// the generation bumped, so clients built for the old network stop working.
func (s *Session) OnChainChanged(chainID chains.ChainID) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.chainChangedLocked(chainID)
}

func (s *Session) chainChangedLocked(chainID chains.ChainID) {
	s.mu.Lock()
	if s.state != Connected || s.identity.ChainID == chainID {
		s.mu.Unlock()
		return
	}
	s.identity.ChainID = chainID
	s.identity.Balance = ""
	if s.signer != nil {
		s.signer = s.signer.Rebind(s.identity.Address, chainID)
	}
	s.generation++
	s.mu.Unlock()

	s.logger.Info("wallet network changed", "chain", chainID, "label", s.registry.Label(chainID))
	s.emit(EventChainChanged)
}

// SwitchNetwork asks the active wallet to change network. A wallet that does
// not know the network gets it added from the registry, then the switch is
// retried once. The new chain is applied when the wallet reports it.
func (s *Session) SwitchNetwork(ctx context.Context, chainID chains.ChainID) error {
	s.mu.RLock()
	state, adapter := s.state, s.active
	s.mu.RUnlock()

	if state != Connected || adapter == nil {
		return types.NewError(types.KindNotConnected, "switch network", nil)
	}
	switcher, ok := adapter.(NetworkSwitcher)
	if !ok {
		return types.NewError(types.KindProviderError, fmt.Sprintf("%s cannot switch networks", adapter.ID()), nil)
	}

	err := switcher.SwitchChain(ctx, chainID)
	if err == nil || !errors.Is(err, types.ErrUnknownChain) {
		return err
	}

	desc, derr := s.registry.Describe(chainID)
	if derr != nil {
		return derr
	}

	s.logger.Info("adding network to wallet", "chain", chainID, "name", desc.Name)
	if err := switcher.AddChain(ctx, desc); err != nil {
		return err
	}
	return switcher.SwitchChain(ctx, chainID)
}

// RefreshBalance re-reads the native balance of the connected account
func (s *Session) RefreshBalance(ctx context.Context) (Identity, error) {
	s.mu.RLock()
	state, identity, gen, adapter := s.state, s.identity, s.generation, s.active
	s.mu.RUnlock()

	if state != Connected {
		return Identity{}, types.NewError(types.KindNotConnected, "refresh balance", nil)
	}

	reader, ok := adapter.(BalanceReader)
	if !ok {
		return identity, nil
	}
	bal, err := reader.Balance(ctx, identity.Address)
	if err != nil {
		return identity, ClassifyError(err)
	}
	desc, err := s.registry.Describe(identity.ChainID)
	if err != nil {
		return identity, err
	}
	balance := utils.FormatUnits(bal, desc.Decimals)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return Identity{}, types.NewError(types.KindNotConnected, "wallet session changed", nil)
	}
	s.identity.Balance = balance
	identity = s.identity
	s.mu.Unlock()

	s.emit(EventBalanceChanged)
	return identity, nil
}

func (s *Session) fetchBalance(ctx context.Context, adapter Adapter, address string, chainID chains.ChainID) string {
	reader, ok := adapter.(BalanceReader)
	if !ok {
		return ""
	}
	desc, err := s.registry.Describe(chainID)
	if err != nil {
		return ""
	}
	bal, err := reader.Balance(ctx, address)
	if err != nil {
		s.logger.Warn("failed to read balance", "provider", adapter.ID(), "chain", chainID, "error", err)
		return ""
	}
	return utils.FormatUnits(bal, desc.Decimals)
}

// listeners binds provider notifications to one connection attempt.
// Notifications from an older connection are dropped.
func (s *Session) listeners(connID uint64) Listeners {
	current := func() (State, bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.state, s.connID == connID && s.active != nil
	}
	return Listeners{
		AccountsChanged: func(accounts []string) {
			s.opMu.Lock()
			defer s.opMu.Unlock()
			state, ok := current()
			if !ok {
				return
			}
			// Revoking every account ends the session even mid-connect
			if len(accounts) == 0 || state == Connected {
				s.accountsChangedLocked(accounts)
			}
		},
		ChainChanged: func(chainID chains.ChainID) {
			s.opMu.Lock()
			defer s.opMu.Unlock()
			if state, ok := current(); ok && state == Connected {
				s.chainChangedLocked(chainID)
			}
		},
		Disconnected: func() {
			s.opMu.Lock()
			defer s.opMu.Unlock()
			if _, ok := current(); ok {
				s.disconnectLocked(context.Background())
			}
		},
	}
}

func (s *Session) emit(kind EventKind) {
	s.mu.RLock()
	ev := Event{Kind: kind, State: s.state, Identity: s.identity, Generation: s.generation}
	s.mu.RUnlock()

	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
