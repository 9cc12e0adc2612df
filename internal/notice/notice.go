// Package notice shows the user-facing notices raised during activation:
// the new-version notice, the deprecated settings warning and the missing
// toolchain warning.
//
// Notices never fail activation. Display errors are returned to the caller,
// which is expected to log them and carry on.
package notice

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/puppetext/internal/host"
	"github.com/dshills/puppetext/internal/logging"
	"github.com/dshills/puppetext/internal/settings"
	"github.com/dshills/puppetext/internal/telemetry"
)

// SuppressUpdateNoticeKey is the global state flag that silences the
// version notice.
const SuppressUpdateNoticeKey = "SuppressUpdateNotice"

// Prompt actions.
const (
	ActionDontShowAgain   = "Don't show again"
	ActionReleaseNotes    = "View Release Notes"
	ActionTroubleshooting = "Troubleshooting Information"
)

// Links opened by notice actions.
const (
	ChangelogURL       = "https://marketplace.visualstudio.com/items/jpogran.puppet-vscode/changelog"
	TroubleshootingURL = "https://github.com/lingua-pupuli/puppet-vscode#experience-a-problem"
)

// Notice kinds used for telemetry.
const (
	KindVersion          = "version"
	KindLegacySettings   = "legacy-settings"
	KindMissingToolchain = "missing-toolchain"
)

// Outcome is how a version notice ended.
type Outcome int

const (
	// Suppressed means the notice was not shown.
	Suppressed Outcome = iota
	// Dismissed means the user closed the notice without choosing.
	Dismissed
	// DontShowAgain means the suppress flag was persisted.
	DontShowAgain
	// ReleaseNotes means the changelog was opened.
	ReleaseNotes
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Suppressed:
		return "suppressed"
	case Dismissed:
		return "dismissed"
	case DontShowAgain:
		return "dont-show-again"
	case ReleaseNotes:
		return "release-notes"
	default:
		return "unknown"
	}
}

// Prompt is a notice ready to be displayed.
type Prompt struct {
	Message string
	Actions []string
}

// Sink displays notices through the host.
type Sink struct {
	state   host.Memento
	window  host.Window
	opener  host.Opener
	logger  *logging.Logger
	metrics *telemetry.Metrics
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Sink) { s.metrics = m }
}

// NewSink creates a notice sink over the host capabilities.
func NewSink(state host.Memento, window host.Window, opener host.Opener, opts ...Option) *Sink {
	s := &Sink{
		state:  state,
		window: window,
		opener: opener,
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("notice")
	return s
}

// IssueVersionNotice builds the new-version prompt. It returns false when
// the user has asked not to see it again.
func (s *Sink) IssueVersionNotice(version string) (*Prompt, bool) {
	if host.BoolValue(s.state, SuppressUpdateNoticeKey, false) {
		return nil, false
	}
	return &Prompt{
		Message: fmt.Sprintf("Puppet VSCode has been updated to v%s", version),
		Actions: []string{ActionDontShowAgain, ActionReleaseNotes},
	}, true
}

// ResolveVersionNotice applies the user's response to a version prompt.
// An empty action is a dismissal and changes nothing.
func (s *Sink) ResolveVersionNotice(ctx context.Context, prompt *Prompt, action string) (Outcome, error) {
	if prompt == nil {
		return Suppressed, nil
	}
	switch action {
	case "":
		return Dismissed, nil
	case ActionReleaseNotes:
		if err := s.opener.Open(ctx, ChangelogURL); err != nil {
			return ReleaseNotes, fmt.Errorf("open release notes: %w", err)
		}
		return ReleaseNotes, nil
	default:
		if err := s.state.Update(ctx, SuppressUpdateNoticeKey, true); err != nil {
			return DontShowAgain, fmt.Errorf("persist %s: %w", SuppressUpdateNoticeKey, err)
		}
		return DontShowAgain, nil
	}
}

// VersionNotice shows the new-version notice and applies the response.
// It blocks until the user responds or ctx is done.
func (s *Sink) VersionNotice(ctx context.Context, version string) (Outcome, error) {
	prompt, ok := s.IssueVersionNotice(version)
	if !ok {
		s.logger.Debug("version notice suppressed")
		return Suppressed, nil
	}
	s.metrics.NoticeShown(KindVersion)
	action, err := s.window.ShowInformation(ctx, prompt.Message, prompt.Actions...)
	if err != nil {
		return Dismissed, fmt.Errorf("show version notice: %w", err)
	}
	outcome, err := s.ResolveVersionNotice(ctx, prompt, action)
	s.logger.WithField("outcome", outcome).Debug("version notice resolved")
	return outcome, err
}

// LegacyMessage is the warning text for the given deprecated settings.
func LegacyMessage(entries []settings.LegacySetting) string {
	return "Deprecated Puppet settings have been detected. Please either remove them or, convert them to the correct settings names. (" +
		strings.Join(settings.Names(entries), ", ") + ")"
}

// LegacyWarning shows one aggregated warning for every deprecated setting
// in use. It does nothing for an empty list.
func (s *Sink) LegacyWarning(ctx context.Context, entries []settings.LegacySetting) error {
	if len(entries) == 0 {
		return nil
	}
	s.metrics.NoticeShown(KindLegacySettings)
	if _, err := s.window.ShowWarning(ctx, LegacyMessage(entries)); err != nil {
		return fmt.Errorf("show legacy settings warning: %w", err)
	}
	return nil
}

// MissingToolchainMessage is the warning text for a missing installation.
func MissingToolchainMessage(baseDir string) string {
	return fmt.Sprintf("Could not find a valid Puppet installation at '%s'. While syntax highlighting and grammar detection will still work, intellisense and other advanced features will not.", baseDir)
}

// MissingToolchain reports that no installation exists at baseDir and opens
// the troubleshooting page when asked.
func (s *Sink) MissingToolchain(ctx context.Context, baseDir string) error {
	s.metrics.NoticeShown(KindMissingToolchain)
	action, err := s.window.ShowWarning(ctx, MissingToolchainMessage(baseDir), ActionTroubleshooting)
	if err != nil {
		return fmt.Errorf("show missing toolchain warning: %w", err)
	}
	if action != ActionTroubleshooting {
		return nil
	}
	if err := s.opener.Open(ctx, TroubleshootingURL); err != nil {
		return fmt.Errorf("open troubleshooting page: %w", err)
	}
	return nil
}
