// Package wsrpc is a symmetric JSON-RPC 2.0 peer over a WebSocket. Either side
// may issue calls, answer calls and push notifications.
package wsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned for calls on a closed peer
var ErrClosed = errors.New("wsrpc: peer closed")

// NotificationHandler receives the params of a notification
type NotificationHandler func(params json.RawMessage)

// MethodHandler answers a call from the remote side
type MethodHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Error is a JSON-RPC error object. ErrorCode makes it satisfy go-ethereum's rpc.Error.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorCode returns the JSON-RPC error code
func (e *Error) ErrorCode() int {
	return e.Code
}

type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type subscription struct {
	id int
	fn NotificationHandler
}

// Peer is one end of a JSON-RPC connection
type Peer struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   uint64
	nextSub  int
	pending  map[string]chan *message
	subs     map[string][]subscription
	methods  map[string]MethodHandler
	closeErr error

	notifications chan *message
	done          chan struct{}
	closeOnce     sync.Once
}

// Dial connects to a WebSocket JSON-RPC endpoint
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Peer, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return NewPeer(conn, logger), nil
}

// NewPeer wraps an established connection and starts reading from it
func NewPeer(conn *websocket.Conn, logger *slog.Logger) *Peer {
	p := newPeer(conn, logger)
	p.start()
	return p
}

func newPeer(conn *websocket.Conn, logger *slog.Logger) *Peer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Peer{
		conn:          conn,
		logger:        logger,
		pending:       make(map[string]chan *message),
		subs:          make(map[string][]subscription),
		methods:       make(map[string]MethodHandler),
		notifications: make(chan *message, 64),
		done:          make(chan struct{}),
	}
	return p
}

func (p *Peer) start() {
	go p.readLoop()
	go p.dispatchLoop()
}

// Handle registers the handler answering calls to method
func (p *Peer) Handle(method string, fn MethodHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.methods[method] = fn
}

// On subscribes to notifications for method. Handlers run one at a time in
// the order notifications arrive. The returned func unsubscribes.
func (p *Peer) On(method string, fn NotificationHandler) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextSub++
	id := p.nextSub
	p.subs[method] = append(p.subs[method], subscription{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		subs := p.subs[method]
		for i, s := range subs {
			if s.id == id {
				p.subs[method] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Call invokes method on the remote side and decodes the result into result
func (p *Peer) Call(ctx context.Context, method string, params any, result any) error {
	rawParams, err := marshalParams(params)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.closeErr != nil {
		p.mu.Unlock()
		return ErrClosed
	}
	p.nextID++
	id := strconv.FormatUint(p.nextID, 10)
	reply := make(chan *message, 1)
	p.pending[id] = reply
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.write(&message{JSONRPC: "2.0", ID: json.RawMessage(id), Method: method, Params: rawParams}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	case resp := <-reply:
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	}
}

// Notify sends a notification, which has no reply
func (p *Peer) Notify(method string, params any) error {
	rawParams, err := marshalParams(params)
	if err != nil {
		return err
	}
	return p.write(&message{JSONRPC: "2.0", Method: method, Params: rawParams})
}

// Done is closed once the connection is gone
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Close closes the connection. Pending calls fail with ErrClosed.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.writeMu.Lock()
		_ = p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}

func (p *Peer) write(msg *message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	if err := p.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("wsrpc write: %w", err)
	}
	return nil
}

func (p *Peer) readLoop() {
	defer p.shutdown()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			p.mu.Lock()
			p.closeErr = err
			p.mu.Unlock()
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Warn("dropping malformed message", "error", err)
			continue
		}

		switch {
		case msg.Method != "" && len(msg.ID) > 0:
			go p.serve(&msg)
		case msg.Method != "":
			select {
			case p.notifications <- &msg:
			case <-p.done:
				return
			}
		case len(msg.ID) > 0:
			p.mu.Lock()
			reply, ok := p.pending[string(msg.ID)]
			p.mu.Unlock()
			if ok {
				select {
				case reply <- &msg:
				default:
				}
			}
		}
	}
}

func (p *Peer) dispatchLoop() {
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.notifications:
			p.mu.Lock()
			subs := append([]subscription(nil), p.subs[msg.Method]...)
			p.mu.Unlock()
			for _, s := range subs {
				s.fn(msg.Params)
			}
		}
	}
}

func (p *Peer) serve(req *message) {
	p.mu.Lock()
	fn, ok := p.methods[req.Method]
	p.mu.Unlock()

	resp := &message{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &Error{Code: -32601, Message: fmt.Sprintf("method %s not found", req.Method)}
	} else {
		result, err := fn(context.Background(), req.Params)
		if err != nil {
			var rpcErr *Error
			if errors.As(err, &rpcErr) {
				resp.Error = rpcErr
			} else {
				resp.Error = &Error{Code: -32000, Message: err.Error()}
			}
		} else {
			raw, err := json.Marshal(result)
			if err != nil {
				resp.Error = &Error{Code: -32603, Message: err.Error()}
			} else {
				resp.Result = raw
			}
		}
	}

	if err := p.write(resp); err != nil && !errors.Is(err, ErrClosed) {
		p.logger.Warn("failed to write response", "method", req.Method, "error", err)
	}
}

func (p *Peer) shutdown() {
	p.mu.Lock()
	if p.closeErr == nil {
		p.closeErr = ErrClosed
	}
	p.mu.Unlock()
	close(p.done)
	_ = p.conn.Close()
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return raw, nil
}
