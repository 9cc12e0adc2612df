package connection

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// helperEnv selects the fake language server mode when the test binary is
// started as a server process.
const helperEnv = "PUPPETEXT_TEST_SERVER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelperServer(mode, os.Args[1:]))
	}
	goleak.VerifyTestMain(m)
}

// rpcHandler answers one request. A nil error and nil result sends null.
type rpcHandler func(params json.RawMessage) (any, *RPCError)

// rpcPeer is a minimal JSON-RPC server for tests.
type rpcPeer struct {
	r *bufio.Reader
	w io.Writer

	mu            sync.Mutex
	handlers      map[string]rpcHandler
	notifications []string
	exit          chan struct{}
	exitOnce      sync.Once

	onNotification func(method string)
}

func newRPCPeer(r io.Reader, w io.Writer) *rpcPeer {
	p := &rpcPeer{
		r:        bufio.NewReader(r),
		w:        w,
		handlers: make(map[string]rpcHandler),
		exit:     make(chan struct{}),
	}
	p.handle("initialize", func(json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"capabilities": map[string]any{},
			"serverInfo":   map[string]string{"name": "fake-languageserver", "version": "0.0.1"},
		}, nil
	})
	p.handle("shutdown", func(json.RawMessage) (any, *RPCError) { return nil, nil })
	return p
}

func (p *rpcPeer) handle(method string, h rpcHandler) {
	p.mu.Lock()
	p.handlers[method] = h
	p.mu.Unlock()
}

func (p *rpcPeer) notified() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.notifications...)
}

func (p *rpcPeer) write(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = fmt.Fprintf(p.w, "Content-Length: %d\r\n\r\n%s", len(data), data)
	return err
}

func (p *rpcPeer) read() (map[string]json.RawMessage, error) {
	length := 0
	for {
		line, err := p.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			length, _ = strconv.Atoi(v)
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(p.r, body); err != nil {
		return nil, err
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// serve answers requests until the stream ends or exit is received.
func (p *rpcPeer) serve() {
	for {
		msg, err := p.read()
		if err != nil {
			return
		}
		var method string
		_ = json.Unmarshal(msg["method"], &method)
		id, isRequest := msg["id"]

		if !isRequest {
			p.mu.Lock()
			p.notifications = append(p.notifications, method)
			hook := p.onNotification
			p.mu.Unlock()
			if hook != nil {
				hook(method)
			}
			if method == "exit" {
				p.exitOnce.Do(func() { close(p.exit) })
				return
			}
			continue
		}

		p.mu.Lock()
		h, ok := p.handlers[method]
		p.mu.Unlock()
		reply := map[string]any{"jsonrpc": "2.0", "id": id}
		if !ok {
			reply["error"] = &RPCError{Code: CodeMethodNotFound, Message: "method not found"}
		} else if result, rpcErr := h(msg["params"]); rpcErr != nil {
			reply["error"] = rpcErr
		} else {
			reply["result"] = result
		}
		if err := p.write(reply); err != nil {
			return
		}
	}
}

// farewellLines is how many lines the farewell server prints before exiting.
const farewellLines = 200

// runHelperServer is the body of the fake language server process.
func runHelperServer(mode string, args []string) int {
	if mode == "farewell" {
		for i := 0; i < farewellLines; i++ {
			fmt.Printf("farewell %d\n", i)
		}
		return 0
	}

	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	if mode == "tcp" {
		ip := "127.0.0.1"
		for _, a := range args {
			if v, ok := strings.CutPrefix(a, "--ip="); ok {
				ip = v
			}
		}
		ln, err := net.Listen("tcp", net.JoinHostPort(ip, "0"))
		if err != nil {
			return 2
		}
		fmt.Printf("LANGUAGE SERVER RUNNING %s\n", ln.Addr().String())
		conn, err := ln.Accept()
		if err != nil {
			return 2
		}
		in, out = conn, conn
	}

	peer := newRPCPeer(in, out)
	peer.handle("puppet/getVersion", func(json.RawMessage) (any, *RPCError) {
		return map[string]any{"puppetVersion": "8.0.0", "args": args}, nil
	})
	switch mode {
	case "crash":
		peer.onNotification = func(method string) {
			if method == "initialized" {
				os.Exit(3)
			}
		}
	case "hang":
		peer.handle("initialize", func(json.RawMessage) (any, *RPCError) {
			time.Sleep(time.Hour)
			return nil, nil
		})
	}
	peer.serve()
	return 0
}
