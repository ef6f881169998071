// Package permission implements the authorization gate consulted once per
// tool invocation. Static configuration is fixed at construction; session
// grants only ever grow and are discarded when the process exits.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"quill/internal/message"
	"quill/internal/tool"
)

// Decision is the answer to a permission prompt.
type Decision string

const (
	// DecisionAllow permits this one invocation.
	DecisionAllow Decision = "allow"
	// DecisionDeny refuses this invocation.
	DecisionDeny Decision = "deny"
	// DecisionAllowAlways permits the invocation and escalates the finest
	// matching scope (exact command, canonical path, or tool name) into
	// session state.
	DecisionAllowAlways Decision = "allow_always"
	// DecisionAllowAll flips the session-wide override; every later check
	// passes regardless of tool.
	DecisionAllowAll Decision = "allow_all"
)

// Prompter is the synchronous user boundary. Implementations block until
// the user answers or the context is cancelled.
type Prompter interface {
	PromptPermission(ctx context.Context, toolName string, args map[string]any) (Decision, error)
}

// Config is the static policy, assembled once before the session starts.
type Config struct {
	// AutoAllow tools pass without any session grant.
	AutoAllow map[string]bool
	// AutoAllowCWD tools pass for paths inside the working directory.
	AutoAllowCWD map[string]bool
	// PathBased tools are granted per canonical path instead of per name.
	PathBased map[string]bool
	// RejectPrompts denies unattended instead of prompting.
	RejectPrompts bool
}

// NewConfig returns an empty static policy.
func NewConfig() Config {
	return Config{
		AutoAllow:    make(map[string]bool),
		AutoAllowCWD: make(map[string]bool),
		PathBased:    make(map[string]bool),
	}
}

// Manager evaluates the policy. Session state mutates monotonically:
// grants are added, never revoked.
type Manager struct {
	cfg      Config
	prompter Prompter
	logger   *slog.Logger
	cwd      string

	mu                  sync.Mutex
	allowedTools        map[string]bool
	allowedBashCommands map[string]bool
	allowedPaths        map[string]map[string]bool // tool name -> canonical path set
	allowAll            bool
}

// NewManager builds the engine. cwd anchors the auto-allow-in-working-
// directory rule and is canonicalized once.
func NewManager(cfg Config, prompter Prompter, cwd string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if resolved, err := canonicalPath(cwd); err == nil {
		cwd = resolved
	}
	return &Manager{
		cfg:                 cfg,
		prompter:            prompter,
		logger:              logger,
		cwd:                 cwd,
		allowedTools:        make(map[string]bool),
		allowedBashCommands: make(map[string]bool),
		allowedPaths:        make(map[string]map[string]bool),
	}
}

// Check decides whether one tool call may proceed. The boolean is the
// decision; the error is reserved for prompt I/O failure (including
// cancellation), which aborts the turn rather than denying it.
func (m *Manager) Check(ctx context.Context, t tool.Tool, call message.ToolCall) (bool, error) {
	if !t.RequiresPermission() {
		return true, nil
	}

	m.mu.Lock()
	if m.allowAll {
		m.mu.Unlock()
		return true, nil
	}
	if m.cfg.AutoAllow[call.Name] {
		m.mu.Unlock()
		return true, nil
	}
	if call.Name == tool.NameBash {
		if cmd, ok := call.Args["command"].(string); ok && m.allowedBashCommands[cmd] {
			m.mu.Unlock()
			return true, nil
		}
	}
	var callPath string
	if m.cfg.PathBased[call.Name] {
		callPath = pathArg(call.Args)
		if callPath != "" {
			if m.allowedPaths[call.Name][callPath] {
				m.mu.Unlock()
				return true, nil
			}
			if m.cfg.AutoAllowCWD[call.Name] && isWithin(m.cwd, callPath) {
				m.mu.Unlock()
				return true, nil
			}
		}
	}
	if m.allowedTools[call.Name] {
		m.mu.Unlock()
		return true, nil
	}
	m.mu.Unlock()

	if m.cfg.RejectPrompts {
		m.logger.Info("permission auto-denied", "tool", call.Name)
		return false, nil
	}

	decision, err := m.prompter.PromptPermission(ctx, call.Name, call.Args)
	if err != nil {
		return false, fmt.Errorf("permission prompt: %w", err)
	}

	switch decision {
	case DecisionAllow:
		return true, nil
	case DecisionDeny:
		return false, nil
	case DecisionAllowAlways:
		m.grantAlways(call, callPath)
		return true, nil
	case DecisionAllowAll:
		m.mu.Lock()
		m.allowAll = true
		m.mu.Unlock()
		m.logger.Info("permission scope escalated", "scope", "all tools")
		return true, nil
	default:
		return false, fmt.Errorf("permission prompt: unexpected decision %q", decision)
	}
}

// grantAlways records an always-grant at the finest scope that matches the
// call: the exact command string for the shell tool, the canonical path
// for path-based tools, otherwise the whole tool name.
func (m *Manager) grantAlways(call message.ToolCall, callPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case call.Name == tool.NameBash:
		cmd, _ := call.Args["command"].(string)
		m.allowedBashCommands[cmd] = true
		m.logger.Info("permission scope escalated", "tool", call.Name, "command", cmd)
	case m.cfg.PathBased[call.Name] && callPath != "":
		if m.allowedPaths[call.Name] == nil {
			m.allowedPaths[call.Name] = make(map[string]bool)
		}
		m.allowedPaths[call.Name][callPath] = true
		m.logger.Info("permission scope escalated", "tool", call.Name, "path", callPath)
	default:
		m.allowedTools[call.Name] = true
		m.logger.Info("permission scope escalated", "tool", call.Name)
	}
}

// pathArg extracts and canonicalizes the call's path argument. A missing
// or unresolvable path falls back to name-scoped handling.
func pathArg(args map[string]any) string {
	raw, ok := args["path"].(string)
	if !ok || raw == "" {
		return ""
	}
	resolved, err := canonicalPath(raw)
	if err != nil {
		return ""
	}
	return resolved
}

// canonicalPath resolves a path to its absolute, symlink-free form. Paths
// that do not exist yet resolve through their deepest existing ancestor so
// a grant issued before a write still matches after it.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	dir, base := filepath.Split(abs)
	dir = filepath.Clean(dir)
	if dir == abs {
		return abs, nil
	}
	resolvedDir, err := canonicalPath(dir)
	if err != nil {
		return abs, nil
	}
	return filepath.Join(resolvedDir, base), nil
}

// isWithin reports whether path is root or one of its descendants.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
