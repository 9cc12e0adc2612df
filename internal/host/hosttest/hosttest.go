// Package hosttest provides recording fakes of the host capabilities.
package hosttest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/puppetext/internal/host"
	"github.com/dshills/puppetext/internal/host/memento"
)

// PromptKind identifies which Window method produced a prompt.
type PromptKind string

const (
	KindInformation PromptKind = "information"
	KindWarning     PromptKind = "warning"
	KindError       PromptKind = "error"
	KindInput       PromptKind = "input"
)

// Prompt records one call to the fake window.
type Prompt struct {
	Kind    PromptKind
	Message string
	Actions []string
}

// Document records one ShowDocument call.
type Document struct {
	Title   string
	Content string
}

// Window is a host.Window that records prompts and answers them with
// Respond. A nil Respond dismisses every prompt.
type Window struct {
	mu        sync.Mutex
	prompts   []Prompt
	documents []Document

	Respond func(p Prompt) string
}

var _ host.Window = (*Window)(nil)

func (w *Window) show(kind PromptKind, msg string, actions []string) string {
	p := Prompt{Kind: kind, Message: msg, Actions: append([]string(nil), actions...)}
	w.mu.Lock()
	w.prompts = append(w.prompts, p)
	respond := w.Respond
	w.mu.Unlock()
	if respond == nil {
		return ""
	}
	return respond(p)
}

func (w *Window) ShowInformation(_ context.Context, msg string, actions ...string) (string, error) {
	return w.show(KindInformation, msg, actions), nil
}

func (w *Window) ShowWarning(_ context.Context, msg string, actions ...string) (string, error) {
	return w.show(KindWarning, msg, actions), nil
}

func (w *Window) ShowError(_ context.Context, msg string, actions ...string) (string, error) {
	return w.show(KindError, msg, actions), nil
}

func (w *Window) InputBox(_ context.Context, prompt string) (string, error) {
	return w.show(KindInput, prompt, nil), nil
}

func (w *Window) ShowDocument(_ context.Context, title, content string) error {
	w.mu.Lock()
	w.documents = append(w.documents, Document{Title: title, Content: content})
	w.mu.Unlock()
	return nil
}

// Prompts returns every recorded prompt.
func (w *Window) Prompts() []Prompt {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Prompt(nil), w.prompts...)
}

// PromptsOf returns the recorded prompts of one kind.
func (w *Window) PromptsOf(kind PromptKind) []Prompt {
	var out []Prompt
	for _, p := range w.Prompts() {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Documents returns every shown document.
func (w *Window) Documents() []Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Document(nil), w.documents...)
}

// Opener records opened URLs.
type Opener struct {
	mu   sync.Mutex
	urls []string
}

var _ host.Opener = (*Opener)(nil)

func (o *Opener) Open(_ context.Context, url string) error {
	o.mu.Lock()
	o.urls = append(o.urls, url)
	o.mu.Unlock()
	return nil
}

// URLs returns every opened URL.
func (o *Opener) URLs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

// Commands is an in-memory command registry.
type Commands struct {
	mu       sync.Mutex
	handlers map[string]host.CommandFunc
}

var _ host.Commands = (*Commands)(nil)

func (c *Commands) RegisterCommand(id string, fn host.CommandFunc) (host.Disposable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[string]host.CommandFunc)
	}
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
func (c *Commands) Execute(ctx context.Context, id string, args ...any) (any, error) {
	c.mu.Lock()
	fn, ok := c.handlers[id]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownCommand, id)
	}
	return fn(ctx, args...)
}

// IDs returns the registered command ids, sorted.
func (c *Commands) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StatusBar records every status update.
type StatusBar struct {
	mu      sync.Mutex
	history []string
}

var _ host.StatusBar = (*StatusBar)(nil)

func (s *StatusBar) SetStatus(text, _ string) {
	s.mu.Lock()
	s.history = append(s.history, text)
	s.mu.Unlock()
}

// History returns every status text set so far.
func (s *StatusBar) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// Last returns the most recent status text.
func (s *StatusBar) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return ""
	}
	return s.history[len(s.history)-1]
}

// Terminal records command lines instead of running them.
type Terminal struct {
	mu    sync.Mutex
	lines []string
}

var _ host.Terminal = (*Terminal)(nil)

func (t *Terminal) Run(_ context.Context, dir, commandLine string) error {
	t.mu.Lock()
	t.lines = append(t.lines, commandLine)
	t.mu.Unlock()
	return nil
}

// Lines returns every command line run so far.
func (t *Terminal) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// MapConfig is a flat host.ConfigStore.
type MapConfig map[string]any

func (m MapConfig) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Fakes bundles one of each fake.
type Fakes struct {
	Memento   *memento.Memory
	Config    MapConfig
	Window    *Window
	Opener    *Opener
	Commands  *Commands
	StatusBar *StatusBar
	Terminal  *Terminal
}

// New returns a fresh set of fakes over the given configuration.
func New(config map[string]any) *Fakes {
	if config == nil {
		config = map[string]any{}
	}
	return &Fakes{
		Memento:   memento.NewMemory(),
		Config:    MapConfig(config),
		Window:    &Window{},
		Opener:    &Opener{},
		Commands:  &Commands{},
		StatusBar: &StatusBar{},
		Terminal:  &Terminal{},
	}
}

// Host returns the fakes as a host.Host.
func (f *Fakes) Host() host.Host {
	return host.Host{
		GlobalState: f.Memento,
		Config:      f.Config,
		Window:      f.Window,
		Opener:      f.Opener,
		Commands:    f.Commands,
		StatusBar:   f.StatusBar,
		Terminal:    f.Terminal,
	}
}
