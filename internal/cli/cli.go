// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// =============================================================================
// BUILD INFO
// =============================================================================

// BuildInfo is stamped by the linker in main.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options customizes the command tree.
type Options struct {
	Build BuildInfo

	// RunTUI starts the full-screen interface. When nil the bare command
	// falls back to the line-mode chat.
	RunTUI func(ctx context.Context, app *App) error

	// LoadConfig replaces config.Load, for tests.
	LoadConfig func(path string) (*config.Config, error)

	// App is passed to NewApp for every command.
	App AppOptions

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// env is the state shared by all commands of one invocation.
type env struct {
	opts Options

	configPath string
	debug      bool
	jsonMode   bool
	model      string
	testMode   bool
}

// NewRootCommand builds the chatdesk command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "chatdesk",
		Short: "Terminal chat client for hosted and local language models",
		Long: `chatdesk keeps a local history of conversations with AI models and
lets you continue them from a full-screen interface or the command line.

Running chatdesk with no command opens the full-screen interface.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE:          e.runTUI,
	}
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&e.configPath, "config", "", "config file (default ~/.chatdesk/config.toml)")
	flags.BoolVar(&e.debug, "debug", false, "log at debug level to stderr-friendly console format")
	flags.BoolVar(&e.jsonMode, "json", false, "print machine-readable JSON")
	flags.StringVarP(&e.model, "model", "m", "", "model for new conversations")
	flags.BoolVar(&e.testMode, "test-mode", false, "answer with canned replies, no network")

	root.AddCommand(
		newTUICommand(e),
		newChatCommand(e),
		newAskCommand(e),
		newSessionsCommand(e),
		newModelsCommand(e),
		newConfigCommand(e),
		newVersionCommand(e),
	)
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, opts Options, args []string) int {
	root := NewRootCommand(opts)
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitSuccess
	}

	jsonMode, _ := root.PersistentFlags().GetBool("json")
	name := root.Name()
	if cmd != nil {
		name = cmd.Name()
	}
	DisplayError(root.ErrOrStderr(), name, err, jsonMode)
	return GetExitCode(err)
}

// =============================================================================
// APPLICATION LIFECYCLE
// =============================================================================

// loadConfig reads the configuration and applies the global flags.
func (e *env) loadConfig() (*config.Config, error) {
	load := e.opts.LoadConfig
	if load == nil {
		load = func(path string) (*config.Config, error) {
			if path != "" {
				return config.LoadFromPath(path)
			}
			return config.Load()
		}
	}

	cfg, err := load(e.configPath)
	if err != nil {
		if cfg == nil || e.configPath != "" {
			return nil, fmt.Errorf("load config: %w", err)
		}
		fmt.Fprintln(e.opts.Stderr, styles.RenderWarning(err.Error()+" (using defaults)"))
	}

	if e.model != "" {
		cfg.DefaultModel = e.model
	}
	if e.testMode {
		cfg.Chat.TestMode = true
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg.
func (e *env) newLogger(cfg *config.Config) *zap.Logger {
	if e.opts.App.Logger != nil {
		return e.opts.App.Logger
	}
	file, err := cfg.ResolveLogFile()
	if err != nil {
		file = ""
	}
	return logging.Must(logging.Options{
		Level: cfg.Log.Level,
		File:  file,
		Debug: e.debug,
	})
}

// open loads configuration and wires an App. The caller closes it.
func (e *env) open() (*App, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}

	appOpts := e.opts.App
	appOpts.Logger = e.newLogger(cfg)
	if appOpts.Passphrase == nil {
		appOpts.Passphrase = PromptPassphrase
	}
	app, err := NewApp(cfg, appOpts)
	if err != nil {
		appOpts.Logger.Sync()
		return nil, err
	}
	if path, err := e.configFile(); err == nil {
		app.ConfigPath = path
	}
	return app, nil
}

// withApp runs fn against a freshly wired App.
func (e *env) withApp(fn func(app *App) error) error {
	app, err := e.open()
	if err != nil {
		return err
	}
	defer func() {
		app.Close()
		app.Logger.Sync()
	}()
	return fn(app)
}

// writeJSON prints data in the JSON envelope.
func (e *env) writeJSON(w io.Writer, command string, data any) error {
	return NewJSONResponse(command, data).Write(w)
}

// =============================================================================
// TUI / VERSION
// =============================================================================

func newTUICommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen interface (default)",
		Args:  cobra.NoArgs,
		RunE:  e.runTUI,
	}
}

func (e *env) runTUI(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &ValidationError{
			Field:   "command",
			Value:   args[0],
			Reason:  "unknown command",
			Example: "chatdesk --help",
		}
	}
	if e.opts.RunTUI == nil {
		return e.runChat(cmd, false)
	}
	return e.withApp(func(app *App) error {
		return e.opts.RunTUI(cmd.Context(), app)
	})
}

func newVersionCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := e.opts.Build
			data := VersionData{
				Version:   b.Version,
				GitCommit: b.GitCommit,
				BuildDate: b.BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if data.Version == "" {
				data.Version = "dev"
			}
			out := cmd.OutOrStdout()
			if e.jsonMode {
				return e.writeJSON(out, "version", data)
			}
			fmt.Fprintf(out, "chatdesk %s\n", data.Version)
			if data.GitCommit != "" {
				fmt.Fprintf(out, "  commit: %s\n", data.GitCommit)
			}
			if data.BuildDate != "" {
				fmt.Fprintf(out, "  built:  %s\n", data.BuildDate)
			}
			fmt.Fprintf(out, "  %s %s\n", data.GoVersion, data.Platform)
			return nil
		},
	}
}
