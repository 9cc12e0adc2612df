package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPipeTransport connects a Transport to an rpcPeer over net.Pipe.
func newPipeTransport(t *testing.T) (*Transport, *rpcPeer, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	peer := newRPCPeer(server, server)
	go peer.serve()

	tr := NewTransport(client, client, client)
	tr.Start()
	t.Cleanup(func() {
		tr.Close()
		server.Close()
	})
	return tr, peer, server
}

func TestTransport_Call(t *testing.T) {
	tr, peer, _ := newPipeTransport(t)
	peer.handle("puppet/getVersion", func(json.RawMessage) (any, *RPCError) {
		return map[string]string{"puppetVersion": "8.1.0"}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var result struct {
		PuppetVersion string `json:"puppetVersion"`
	}
	if err := tr.Call(ctx, "puppet/getVersion", nil, &result); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result.PuppetVersion != "8.1.0" {
		t.Errorf("expected puppetVersion 8.1.0, got %q", result.PuppetVersion)
	}
}

func TestTransport_CallRPCError(t *testing.T) {
	tr, _, _ := newPipeTransport(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := tr.Call(ctx, "puppet/unknown", nil, nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func TestTransport_ConcurrentCalls(t *testing.T) {
	tr, peer, _ := newPipeTransport(t)
	peer.handle("echo", func(params json.RawMessage) (any, *RPCError) {
		var n int
		_ = json.Unmarshal(params, &n)
		return n, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var got int
			if err := tr.Call(ctx, "echo", i, &got); err != nil {
				errs <- err
				return
			}
			if got != i {
				errs <- errors.New("mismatched response")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestTransport_Notification(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	peer := newRPCPeer(server, server)

	tr := NewTransport(client, client, client)
	defer tr.Close()

	got := make(chan string, 1)
	tr.OnNotification("window/logMessage", func(_ string, params json.RawMessage) {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(params, &msg)
		got <- msg.Message
	})
	tr.Start()

	go func() {
		_ = peer.write(map[string]any{
			"jsonrpc": "2.0",
			"method":  "window/logMessage",
			"params":  map[string]any{"type": 3, "message": "hello"},
		})
	}()

	select {
	case msg := <-got:
		assert.Equal(t, "hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestTransport_ServerRequestAnsweredWithError(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	peer := newRPCPeer(server, server)

	tr := NewTransport(client, client, client)
	defer tr.Close()
	tr.Start()

	go func() {
		_ = peer.write(map[string]any{"jsonrpc": "2.0", "id": 7, "method": "workspace/configuration"})
	}()

	msg, err := peer.read()
	require.NoError(t, err)
	assert.JSONEq(t, "7", string(msg["id"]))
	assert.Contains(t, string(msg["error"]), "-32601")
}

func TestTransport_PeerClosed(t *testing.T) {
	tr, _, server := newPipeTransport(t)

	server.Close()

	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected Done after peer closed")
	}
	assert.ErrorIs(t, tr.Err(), ErrConnectionLost)
	assert.ErrorIs(t, tr.Call(context.Background(), "x", nil, nil), ErrConnectionLost)
}

func TestTransport_Close(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	// Swallow writes so Call blocks waiting for a response.
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	tr := NewTransport(client, client, client)
	tr.Start()
	if tr.Err() != nil {
		t.Fatalf("expected nil Err while open, got %v", tr.Err())
	}

	result := make(chan error, 1)
	go func() {
		result <- tr.Call(context.Background(), "slow", nil, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrShutdown)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call did not return after Close")
	}
	assert.ErrorIs(t, tr.Err(), ErrShutdown)
	assert.ErrorIs(t, tr.Notify(context.Background(), "x", nil), ErrShutdown)
}

func TestTransport_CallContextCancelled(t *testing.T) {
	tr, peer, _ := newPipeTransport(t)
	block := make(chan struct{})
	defer close(block)
	peer.handle("slow", func(json.RawMessage) (any, *RPCError) {
		<-block
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, tr.Call(ctx, "slow", nil, nil), context.DeadlineExceeded)
}
