// Package console implements the host capabilities on a plain terminal so
// the extension can run outside an editor.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/puppetext/internal/host"
)

var (
	infoStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5A623"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	actionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD068"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623"))
)

// iconPattern matches editor icon references such as "$(sync~spin)".
var iconPattern = regexp.MustCompile(`\$\(([^)]*)\)\s*`)

// Console is a host backed by stdin and stdout.
type Console struct {
	out         io.Writer
	in          io.Reader
	interactive bool

	mu       sync.Mutex
	handlers map[string]host.CommandFunc
	status   string

	// promptMu is held from printing a prompt until its answer is read,
	// so concurrent prompts are answered one at a time in print order.
	promptMu sync.Mutex
	readOnce sync.Once
	lines    chan string
}

// Option configures a Console.
type Option func(*Console)

// WithInput sets where answers are read from.
func WithInput(r io.Reader) Option {
	return func(c *Console) { c.in = r }
}

// WithOutput sets where prompts and documents are written.
func WithOutput(w io.Writer) Option {
	return func(c *Console) { c.out = w }
}

// NonInteractive dismisses every prompt without reading input.
func NonInteractive() Option {
	return func(c *Console) { c.interactive = false }
}

// New creates a console host over os.Stdin and os.Stdout.
func New(opts ...Option) *Console {
	c := &Console{
		out:         os.Stdout,
		in:          os.Stdin,
		interactive: true,
		handlers:    make(map[string]host.CommandFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ host.Window    = (*Console)(nil)
	_ host.Opener    = (*Console)(nil)
	_ host.Commands  = (*Console)(nil)
	_ host.StatusBar = (*Console)(nil)
	_ host.Terminal  = (*Console)(nil)
)

// readLine waits for the next input line. It returns "" on end of input.
func (c *Console) readLine(ctx context.Context) (string, error) {
	c.readOnce.Do(func() {
		c.lines = make(chan string)
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				c.lines <- scanner.Text()
			}
		}()
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", nil
		}
		return strings.TrimSpace(line), nil
	}
}

func (c *Console) prompt(ctx context.Context, style lipgloss.Style, label, msg string, actions []string) (string, error) {
	c.promptMu.Lock()
	defer c.promptMu.Unlock()

	c.mu.Lock()
	fmt.Fprintf(c.out, "%s %s\n", style.Render(label), msg)
	for i, a := range actions {
		fmt.Fprintln(c.out, actionStyle.Render(fmt.Sprintf("  [%d] %s", i+1, a)))
	}
	c.mu.Unlock()

	if !c.interactive || len(actions) == 0 {
		return "", nil
	}
	line, err := c.readLine(ctx)
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(actions) {
		return "", nil
	}
	return actions[n-1], nil
}

func (c *Console) ShowInformation(ctx context.Context, msg string, actions ...string) (string, error) {
	return c.prompt(ctx, infoStyle, "info", msg, actions)
}

func (c *Console) ShowWarning(ctx context.Context, msg string, actions ...string) (string, error) {
	return c.prompt(ctx, warnStyle, "warning", msg, actions)
}

func (c *Console) ShowError(ctx context.Context, msg string, actions ...string) (string, error) {
	return c.prompt(ctx, errorStyle, "error", msg, actions)
}

// InputBox reads one line. Non-interactive consoles return "".
func (c *Console) InputBox(ctx context.Context, prompt string) (string, error) {
	c.promptMu.Lock()
	defer c.promptMu.Unlock()

	c.mu.Lock()
	fmt.Fprintf(c.out, "%s ", infoStyle.Render(prompt+":"))
	if !c.interactive {
		fmt.Fprintln(c.out)
		c.mu.Unlock()
		return "", nil
	}
	c.mu.Unlock()
	return c.readLine(ctx)
}

func (c *Console) ShowDocument(_ context.Context, title, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, titleStyle.Render(title))
	fmt.Fprintln(c.out, strings.TrimRight(content, "\n"))
	return nil
}

// Open prints the URL; a terminal has nowhere to open it.
func (c *Console) Open(_ context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", actionStyle.Render("open:"), url)
	return nil
}

func (c *Console) RegisterCommand(id string, fn host.CommandFunc) (host.Disposable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handlers[id]; exists {
		return nil, fmt.Errorf("%w: %s", host.ErrCommandExists, id)
	}
	c.handlers[id] = fn
	return host.DisposableFunc(func() error {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
		return nil
	}), nil
}

// Execute runs a registered command.
func (c *Console) Execute(ctx context.Context, id string, args ...any) (any, error) {
	c.mu.Lock()
	fn, ok := c.handlers[id]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownCommand, id)
	}
	return fn(ctx, args...)
}

// Commands returns the registered command ids, sorted.
func (c *Console) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetStatus prints the status line when it changes.
func (c *Console) SetStatus(text, tooltip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == c.status {
		return
	}
	c.status = text
	line := RenderStatus(text)
	if tooltip != "" {
		line += " " + statusStyle.Render("("+tooltip+")")
	}
	fmt.Fprintln(c.out, line)
}

// Status returns the last status text.
func (c *Console) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RenderStatus replaces icon references with a styled plain-text marker.
func RenderStatus(text string) string {
	style := statusStyle
	plain := iconPattern.ReplaceAllStringFunc(text, func(m string) string {
		icon := iconPattern.FindStringSubmatch(m)[1]
		switch {
		case icon == "check":
			style = okStyle
			return "✓ "
		case icon == "alert":
			style = errorStyle
			return "! "
		case strings.HasPrefix(icon, "sync"):
			style = pendingStyle
			return "… "
		default:
			return ""
		}
	})
	return style.Render(plain)
}

// Run executes commandLine through the system shell in dir.
func (c *Console) Run(ctx context.Context, dir, commandLine string) error {
	shell, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/C"
	}
	cmd := exec.CommandContext(ctx, shell, flag, commandLine)
	cmd.Dir = dir
	w := consoleWriter{c}
	cmd.Stdout = w
	cmd.Stderr = w
	c.mu.Lock()
	fmt.Fprintf(c.out, "%s %s\n", actionStyle.Render("$"), commandLine)
	c.mu.Unlock()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %q: %w", commandLine, err)
	}
	return nil
}

// consoleWriter writes to the console output under its lock.
type consoleWriter struct {
	c *Console
}

func (w consoleWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.out.Write(p)
}
