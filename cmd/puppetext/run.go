package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dshills/puppetext/internal/connection"
	"github.com/dshills/puppetext/internal/extension"
	"github.com/dshills/puppetext/internal/host"
	"github.com/dshills/puppetext/internal/host/console"
	"github.com/dshills/puppetext/internal/logging"
	"github.com/dshills/puppetext/internal/settings"
	"github.com/dshills/puppetext/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// layeredStore returns the first value found across its stores.
type layeredStore []host.ConfigStore

func (l layeredStore) Get(name string) (any, bool) {
	for _, s := range l {
		if v, ok := s.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// session is one running extension with everything it was built from.
type session struct {
	ext     *extension.Extension
	console *console.Console
	store   *settings.ViperStore
	logger  *logging.Logger
	metrics *telemetry.Metrics
	server  *telemetry.Server
	closers []func() error
}

func openSession(opts *options) (*session, error) {
	s := &session{logger: opts.logger(), metrics: telemetry.New()}

	ver, err := opts.extensionVersion()
	if err != nil {
		return nil, err
	}
	store, err := opts.store()
	if err != nil {
		return nil, err
	}
	s.store = store

	var config host.ConfigStore = store
	if opts.logLevel != "" {
		config = layeredStore{settings.MapStore{settings.KeyServiceLogLevel: opts.logLevel}, store}
	}

	state, closeState, err := opts.globalState()
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeState)

	consoleOpts := []console.Option{console.WithOutput(os.Stdout)}
	if opts.nonInteractive {
		consoleOpts = append(consoleOpts, console.NonInteractive())
	}
	s.console = console.New(consoleOpts...)

	cwd, err := os.Getwd()
	if err != nil {
		s.close()
		return nil, err
	}

	s.ext, err = extension.New(host.Host{
		GlobalState: state,
		Config:      config,
		Window:      s.console,
		Opener:      s.console,
		Commands:    s.console,
		StatusBar:   s.console,
		Terminal:    s.console,
	},
		extension.WithVersion(ver),
		extension.WithWorkDir(cwd),
		extension.WithLogger(s.logger),
		extension.WithMetrics(s.metrics),
		extension.WithLocator(opts.locator()),
	)
	if err != nil {
		s.close()
		return nil, err
	}

	if opts.metricsAddr != "" {
		s.server, err = telemetry.Listen(opts.metricsAddr, s.metrics, s.ext.Health)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("metrics server: %w", err)
		}
		s.logger.Info("serving metrics on %s", s.server.Addr())
	}
	return s, nil
}

// shutdown deactivates the extension and releases the session.
func (s *session) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.ext.Deactivate(ctx)
	if s.server != nil {
		err = multierr.Append(err, s.server.Shutdown(ctx))
	}
	s.close()
	_ = s.logger.Sync()
	return err
}

func (s *session) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.logger.Warn("close: %v", err)
		}
	}
	s.closers = nil
}

// settle waits until the connection is no longer starting. Without a
// toolchain there is no connection to wait for.
func (s *session) settle(ctx context.Context) (connection.State, error) {
	client, err := s.ext.Client()
	if err != nil {
		if st := s.ext.State(); st == connection.StateUnavailable {
			return st, nil
		}
		return connection.StateUninitialized, err
	}
	changed := make(chan struct{}, 1)
	unsubscribe := client.Subscribe(func(connection.Change) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		if st := client.State(); st != connection.StateStarting {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return client.State(), ctx.Err()
		case <-changed:
		}
	}
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Activate the extension and keep it running until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := s.ext.Activate(ctx); err != nil {
				s.logger.Error("activation: %v", err)
			}

			if s.store.Path() != "" {
				err := s.store.Watch(ctx, func(err error) {
					if err != nil {
						s.logger.Warn("settings reload: %v", err)
						return
					}
					s.logger.Info("settings changed, reactivating")
					if err := s.ext.Deactivate(ctx); err != nil {
						s.logger.Warn("deactivate: %v", err)
					}
					if err := s.ext.Activate(ctx); err != nil {
						s.logger.Error("activation: %v", err)
					}
				})
				if err != nil {
					s.logger.Warn("watching settings: %v", err)
				}
			}

			<-ctx.Done()
			return s.shutdown()
		},
	}
}

func newExecCmd(opts *options) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "exec <command-id> [args...]",
		Short: "Activate the extension, run one command and deactivate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := func() error {
				if err := s.ext.Activate(ctx); err != nil {
					return err
				}
				waitCtx, cancel := context.WithTimeout(ctx, wait)
				defer cancel()
				state, err := s.settle(waitCtx)
				if err != nil {
					return fmt.Errorf("waiting for connection (%s): %w", state, err)
				}

				cmdArgs := make([]any, 0, len(args)-1)
				for _, a := range args[1:] {
					cmdArgs = append(cmdArgs, a)
				}
				result, err := s.console.Execute(ctx, args[0], cmdArgs...)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), result)
			}()

			return multierr.Combine(runErr, s.shutdown())
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", connection.DefaultStartTimeout, "how long to wait for the language server")
	return cmd
}

// printResult writes a command result: strings as is, anything else as JSON.
func printResult(w io.Writer, result any) error {
	switch r := result.(type) {
	case nil:
		return nil
	case string:
		if r != "" {
			_, err := fmt.Fprintln(w, r)
			return err
		}
		return nil
	default:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
}
