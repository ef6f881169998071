package tool

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"time"

	"quill/internal/provider"
)

const (
	grepTimeout  = 30 * time.Second
	grepLimit    = 50_000 // bytes of output
	grepMaxCount = 100    // matches per file
)

// Grep searches files with ripgrep. Read-only, so not permission gated.
type Grep struct{}

func NewGrep() *Grep { return &Grep{} }

func (g *Grep) Name() string { return NameGrep }

func (g *Grep) Description() string {
	return "Search for a regex pattern in files using ripgrep (rg). " +
		"Returns matching lines with file paths and line numbers."
}

func (g *Grep) Parameters() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"pattern": {
				Type:        "string",
				Description: "The regex pattern to search for",
			},
			"path": {
				Type:        "string",
				Description: "Directory or file to search in (default: current directory)",
				Default:     ".",
			},
			"glob": {
				Type:        "string",
				Description: "Only search files matching this glob pattern (e.g., '*.go')",
			},
			"ignore_case": {
				Type:        "boolean",
				Description: "Case-insensitive search",
				Default:     false,
			},
		},
		Required: []string{"pattern"},
	}
}

func (g *Grep) RequiresPermission() bool { return false }

type grepRequest struct {
	Pattern    string `mapstructure:"pattern"`
	Path       string `mapstructure:"path"`
	Glob       string `mapstructure:"glob"`
	IgnoreCase bool   `mapstructure:"ignore_case"`
}

func (g *Grep) Execute(ctx context.Context, args map[string]any) string {
	var req grepRequest
	if err := decode(args, &req); err != nil {
		return errText("invalid arguments: %v", err)
	}
	if req.Path == "" {
		req.Path = "."
	}

	argv := []string{"--line-number", "--max-count", strconv.Itoa(grepMaxCount)}
	if req.IgnoreCase {
		argv = append(argv, "--ignore-case")
	}
	if req.Glob != "" {
		argv = append(argv, "--glob", req.Glob)
	}
	argv = append(argv, req.Pattern, expandHome(req.Path))

	cctx, cancel := context.WithTimeout(ctx, grepTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, "rg", argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return errText("search timed out after %d seconds", int(grepTimeout.Seconds()))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// rg exits 1 when nothing matched.
			if exitErr.ExitCode() == 1 {
				return "(no matches)"
			}
			return errText("%s", stderr.String())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return errText("ripgrep (rg) not found. Install it: https://github.com/BurntSushi/ripgrep")
		}
		return errText("%v", err)
	}

	out := stdout.String()
	if out == "" {
		return "(no matches)"
	}
	return truncate(out, grepLimit)
}
