// Command quill is an interactive coding assistant. It streams a model's
// responses, lets the model call local tools, and gates every tool call
// behind a permission policy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"quill/internal/agent"
	"quill/internal/config"
	"quill/internal/permission"
	"quill/internal/plugin"
	"quill/internal/tool"
	"quill/internal/ui"
	"quill/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "quill:", err)
		os.Exit(1)
	}
}

func run() error {
	providerFlag := flag.String("provider", "", "backend: anthropic, openai or gemini")
	modelFlag := flag.String("model", "", "model identifier for the selected backend")
	baseURLFlag := flag.String("base-url", "", "OpenAI-compatible server URL (including /v1)")
	projectFlag := flag.String("project", "", "Google Cloud project for Vertex AI")
	maxTurnsFlag := flag.Int("max-turns", -1, "max provider calls per input, 0 for unlimited")
	unattended := flag.Bool("unattended", false, "read one prompt from stdin, auto-deny unexpected permissions")
	logLevelFlag := flag.String("log-level", "", "debug, info, warn or error")
	flag.Parse()

	cfg, err := config.NewLoader().Load()
	if err != nil {
		return err
	}
	applyFlags(cfg, *providerFlag, *modelFlag, *baseURLFlag, *projectFlag, *maxTurnsFlag, *logLevelFlag)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()

	prov, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}

	console := ui.NewConsole(os.Stdin, os.Stdout)

	var descriptors []plugin.Descriptor
	if *unattended {
		descriptors = append(descriptors, plugin.Unattended())
	}
	tools, permCfg := plugin.Apply(tool.Defaults(tool.DefaultOptions{
		BashTimeout: cfg.BashTimeoutSeconds,
	}), descriptors...)
	registry := tool.NewRegistry(tools...)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	perms := permission.NewManager(permCfg, console, cwd, logger)

	ag := agent.New(agent.Options{
		Provider:    prov,
		Registry:    registry,
		Permissions: perms,
		Display:     console,
		Logger:      logger,
		System:      workspace.Describe(cwd),
		MaxTurns:    cfg.MaxTurns,
	})

	if *unattended {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
		_, err = ag.Chat(ctx, string(input))
		return err
	}

	console.Banner(prov.Name(), displayModel(cfg))
	return repl(ctx, ag, console)
}

// repl runs the outer input loop. An interrupt aborts the turn in flight
// and returns to the prompt; end of input ends the session.
func repl(ctx context.Context, ag *agent.Agent, console *ui.Console) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	for {
		input, err := console.ReadInput(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				console.Notice("goodbye")
				return nil
			}
			return err
		}
		if input == "" {
			continue
		}

		_, err = chatInterruptible(ctx, ag, sigCh, input)
		switch {
		case errors.Is(err, context.Canceled):
			console.Notice("interrupted")
		case err != nil:
			// Transport and prompt faults terminate the session.
			console.Error(err)
			return err
		}
	}
}

// chatInterruptible runs one Chat with a context that an interrupt
// cancels. A tool's already-dispatched external process may outlive the
// cancellation; the loop itself always returns promptly.
func chatInterruptible(ctx context.Context, ag *agent.Agent, sigCh <-chan os.Signal, input string) (agent.Outcome, error) {
	chatCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-done:
		}
	}()

	return ag.Chat(chatCtx, input)
}

func applyFlags(cfg *config.Config, providerName, model, baseURL, project string, maxTurns int, logLevel string) {
	if providerName != "" {
		cfg.Provider = providerName
	}
	if model != "" {
		cfg.Model = model
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if project != "" {
		cfg.GeminiProject = project
	}
	if maxTurns >= 0 {
		cfg.MaxTurns = maxTurns
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func displayModel(cfg *config.Config) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return "default"
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
