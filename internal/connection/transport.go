package connection

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// Transport speaks JSON-RPC 2.0 with LSP Content-Length framing.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	mu       sync.Mutex
	writeMu  sync.Mutex
	nextID   atomic.Int64
	pending  map[int64]chan *response
	handlers map[string]NotificationHandler

	closed  atomic.Bool
	closing atomic.Bool
	done    chan struct{}
	errOnce sync.Once
	err     error
}

// NotificationHandler handles a notification from the server.
type NotificationHandler func(method string, params json.RawMessage)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

var errMalformed = errors.New("malformed message")

// NewTransport creates a transport over r and w. c, when not nil, is closed
// with the transport and must unblock pending reads on r.
func NewTransport(r io.Reader, w io.Writer, c io.Closer) *Transport {
	return &Transport{
		reader:   bufio.NewReaderSize(r, 64*1024),
		writer:   w,
		closer:   c,
		pending:  make(map[int64]chan *response),
		handlers: make(map[string]NotificationHandler),
		done:     make(chan struct{}),
	}
}

// Start begins reading messages in a goroutine. The goroutine exits when the
// reader fails or the transport is closed.
func (t *Transport) Start() {
	go t.readLoop()
}

// Done is closed when the transport stops, either by Close or because the
// peer went away.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Err returns why the transport stopped, or nil while it is open.
func (t *Transport) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Close closes the transport and releases resources.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.fail(ErrShutdown)
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// expectClose marks the transport as shutting down, so the peer going away
// from now on is reported as ErrShutdown rather than a lost connection.
func (t *Transport) expectClose() {
	t.closing.Store(true)
}

// lost ends the transport because the peer went away.
func (t *Transport) lost(err error) {
	if t.closing.Load() {
		err = ErrShutdown
	}
	t.fail(err)
}

func (t *Transport) fail(err error) {
	t.errOnce.Do(func() {
		t.err = err
		// Waiters select on done, so pending channels are dropped rather
		// than closed.
		t.mu.Lock()
		t.pending = make(map[int64]chan *response)
		t.mu.Unlock()
		close(t.done)
	})
}

// Call sends a request and waits for its response.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	if err := t.Err(); err != nil {
		return err
	}

	id := t.nextID.Inc()
	ch := make(chan *response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.send(&request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.err
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}
}

// Notify sends a notification.
func (t *Transport) Notify(_ context.Context, method string, params any) error {
	if err := t.Err(); err != nil {
		return err
	}
	return t.send(&request{JSONRPC: "2.0", Method: method, Params: params})
}

// OnNotification registers a handler for server notifications. The method
// "*" matches any notification without its own handler.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func (t *Transport) readLoop() {
	for {
		msg, err := t.readMessage()
		if err != nil {
			if errors.Is(err, errMalformed) {
				continue
			}
			if t.closed.Load() {
				return
			}
			t.lost(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			return
		}
		t.dispatch(msg)
	}
}

func (t *Transport) readMessage() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "content-length") {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				contentLength = n
			}
		}
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("%w: missing Content-Length header", errMalformed)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (t *Transport) dispatch(data json.RawMessage) {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return
	}

	hasID := len(probe.ID) > 0 && string(probe.ID) != "null"
	switch {
	case hasID && probe.Method == "":
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		t.handleResponse(&resp)
	case hasID:
		// The server asked us something we do not serve.
		_ = t.send(&struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *RPCError       `json:"error"`
		}{"2.0", probe.ID, &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + probe.Method}})
	case probe.Method != "":
		t.handleNotification(probe.Method, probe.Params)
	}
}

func (t *Transport) handleResponse(resp *response) {
	id, err := strconv.ParseInt(string(resp.ID), 10, 64)
	if err != nil {
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (t *Transport) handleNotification(method string, params json.RawMessage) {
	t.mu.Lock()
	handler, ok := t.handlers[method]
	if !ok {
		handler, ok = t.handlers["*"]
	}
	t.mu.Unlock()

	if ok && handler != nil {
		go handler(method, params)
	}
}
