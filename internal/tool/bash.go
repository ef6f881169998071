package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"quill/internal/provider"
)

const defaultBashTimeout = 120 // seconds

// Bash executes a shell command with a hard wall-clock timeout. The
// timeout produces a bounded error result instead of blocking the turn
// loop; the underlying process group is killed with the context.
type Bash struct {
	timeout time.Duration
}

// NewBash builds the shell tool. timeoutSeconds of 0 selects the default.
func NewBash(timeoutSeconds int) *Bash {
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultBashTimeout
	}
	return &Bash{timeout: time.Duration(timeoutSeconds) * time.Second}
}

func (b *Bash) Name() string { return NameBash }

func (b *Bash) Description() string {
	return "Execute a shell command and return its output."
}

func (b *Bash) Parameters() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"command": {
				Type:        "string",
				Description: "The shell command to execute",
			},
		},
		Required: []string{"command"},
	}
}

func (b *Bash) RequiresPermission() bool { return true }

type bashRequest struct {
	Command string `mapstructure:"command"`
}

func (b *Bash) Execute(ctx context.Context, args map[string]any) string {
	var req bashRequest
	if err := decode(args, &req); err != nil {
		return errText("invalid arguments: %v", err)
	}
	if req.Command == "" {
		return errText("command is required")
	}

	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, "sh", "-c", req.Command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return errText("command timed out after %d seconds", int(b.timeout.Seconds()))
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n[stderr]\n" + stderr.String()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			output += fmt.Sprintf("\n[exit code: %d]", exitErr.ExitCode())
		} else {
			return errText("%v", err)
		}
	}
	if output == "" {
		return "(no output)"
	}
	return output
}
