package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/puppetext/internal/host"
)

func TestPrompt_ChoosesAction(t *testing.T) {
	var out bytes.Buffer
	c := New(WithInput(strings.NewReader("2\n")), WithOutput(&out))

	action, err := c.ShowInformation(context.Background(), "updated", "Don't show again", "View Release Notes")
	if err != nil {
		t.Fatalf("ShowInformation() error = %v", err)
	}
	if action != "View Release Notes" {
		t.Errorf("expected second action, got %q", action)
	}
	if !strings.Contains(out.String(), "[1] Don't show again") {
		t.Errorf("expected numbered actions, got %q", out.String())
	}
}

func TestPrompt_Dismissed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  []Option
	}{
		{"empty line", "\n", nil},
		{"out of range", "7\n", nil},
		{"not a number", "yes\n", nil},
		{"end of input", "", nil},
		{"non-interactive", "1\n", []Option{NonInteractive()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithInput(strings.NewReader(tt.input)), WithOutput(&bytes.Buffer{})}, tt.opts...)
			c := New(opts...)
			action, err := c.ShowWarning(context.Background(), "msg", "A", "B")
			if err != nil {
				t.Fatalf("ShowWarning() error = %v", err)
			}
			if action != "" {
				t.Errorf("expected dismissal, got %q", action)
			}
		})
	}
}

func TestPrompt_Cancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := New(WithInput(r), WithOutput(&bytes.Buffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ShowError(ctx, "msg", "A"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// syncBuffer is a bytes.Buffer safe to read while the console writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q in %q", want, out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPrompt_ConcurrentAnsweredInOrder(t *testing.T) {
	r, w := io.Pipe()
	out := &syncBuffer{}
	c := New(WithInput(r), WithOutput(out))
	ctx := context.Background()

	type answer struct {
		action string
		err    error
	}
	first := make(chan answer, 1)
	second := make(chan answer, 1)

	go func() {
		a, err := c.ShowInformation(ctx, "updated", "Don't show again", "View Release Notes")
		first <- answer{a, err}
	}()
	waitForOutput(t, out, "updated")

	go func() {
		a, err := c.ShowWarning(ctx, "no puppet", "Troubleshooting Information")
		second <- answer{a, err}
	}()
	// Let the second prompt reach the console before answering.
	time.Sleep(20 * time.Millisecond)

	if _, err := io.WriteString(w, "1\n"); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_ = w.Close()

	a := <-first
	if a.err != nil || a.action != "Don't show again" {
		t.Errorf("first prompt = (%q, %v), expected the first action", a.action, a.err)
	}
	b := <-second
	if b.err != nil || b.action != "" {
		t.Errorf("second prompt = (%q, %v), expected dismissal", b.action, b.err)
	}

	s := out.String()
	if strings.Index(s, "[2] View Release Notes") > strings.Index(s, "no puppet") {
		t.Errorf("expected prompts printed one after the other, got %q", s)
	}
}

func TestInputBox(t *testing.T) {
	c := New(WithInput(strings.NewReader("  mymodule  \n")), WithOutput(&bytes.Buffer{}))
	got, err := c.InputBox(context.Background(), "Enter a name for the new Puppet module")
	if err != nil {
		t.Fatalf("InputBox() error = %v", err)
	}
	if got != "mymodule" {
		t.Errorf("InputBox() = %q, expected %q", got, "mymodule")
	}

	c = New(NonInteractive(), WithOutput(&bytes.Buffer{}))
	if got, _ := c.InputBox(context.Background(), "name"); got != "" {
		t.Errorf("expected empty input when non-interactive, got %q", got)
	}
}

func TestCommands(t *testing.T) {
	c := New(WithOutput(&bytes.Buffer{}))
	ctx := context.Background()

	d, err := c.RegisterCommand("puppet.restartSession", func(context.Context, ...any) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("RegisterCommand() error = %v", err)
	}
	if _, err := c.RegisterCommand("puppet.restartSession", nil); !errors.Is(err, host.ErrCommandExists) {
		t.Errorf("expected ErrCommandExists, got %v", err)
	}

	got, err := c.Execute(ctx, "puppet.restartSession")
	if err != nil || got != "ok" {
		t.Errorf("Execute() = %v, %v", got, err)
	}
	if ids := c.Commands(); len(ids) != 1 {
		t.Errorf("expected one command, got %v", ids)
	}

	if err := d.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if _, err := c.Execute(ctx, "puppet.restartSession"); !errors.Is(err, host.ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestRenderStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"$(check) Puppet", "✓ Puppet"},
		{"$(alert) Puppet: Error", "! Puppet: Error"},
		{"$(sync~spin) Puppet: Starting", "… Puppet: Starting"},
		{"$(circle-slash) Puppet: Stopped", "Puppet: Stopped"},
		{"Puppet", "Puppet"},
	}
	for _, tt := range tests {
		if got := RenderStatus(tt.input); !strings.Contains(got, tt.expected) {
			t.Errorf("RenderStatus(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSetStatus_OnlyChanges(t *testing.T) {
	var out bytes.Buffer
	c := New(WithOutput(&out))

	c.SetStatus("$(check) Puppet", "Connected")
	c.SetStatus("$(check) Puppet", "Connected")
	if n := strings.Count(out.String(), "Puppet"); n != 1 {
		t.Errorf("expected one status line, got %d in %q", n, out.String())
	}
	if c.Status() != "$(check) Puppet" {
		t.Errorf("unexpected status %q", c.Status())
	}
}

func TestDocumentAndOpen(t *testing.T) {
	var out bytes.Buffer
	c := New(WithOutput(&out))
	ctx := context.Background()

	if err := c.ShowDocument(ctx, "puppet resource user", "user { 'root': }\n"); err != nil {
		t.Fatal(err)
	}
	if err := c.Open(ctx, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	for _, want := range []string{"puppet resource user", "user { 'root': }", "https://example.com"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in output %q", want, s)
		}
	}
}

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var out bytes.Buffer
	c := New(WithOutput(&out))

	if err := c.Run(context.Background(), t.TempDir(), "echo pdk-ok"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "pdk-ok") {
		t.Errorf("expected command output, got %q", out.String())
	}
	if err := c.Run(context.Background(), "", "exit 3"); err == nil {
		t.Error("expected error for failing command")
	}
}

func TestRun_ConcurrentWithStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var out bytes.Buffer
	c := New(WithOutput(&out))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			c.SetStatus(fmt.Sprintf("Puppet %d", i), "")
		}
	}()
	err := c.Run(context.Background(), t.TempDir(), "for i in 1 2 3 4 5; do echo pdk-line-$i; echo pdk-err-$i >&2; done")
	<-done
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	c.mu.Lock()
	s := out.String()
	c.mu.Unlock()
	for _, want := range []string{"pdk-line-5", "pdk-err-5", "Puppet 49"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in output %q", want, s)
		}
	}
}
