// Package tool implements the capability catalog the model can invoke.
// Every tool returns plain text, synchronously, even on internal failure;
// failures surface as short bracketed strings inside the text so a broken
// tool can never abort the batch or the turn.
package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"quill/internal/provider"
)

// Tool names referenced outside the catalog (permission scoping).
const (
	NameBash      = "bash"
	NameReadFile  = "read_file"
	NameWriteFile = "write_file"
	NameEditFile  = "edit_file"
	NameGrep      = "grep"
	NameWebFetch  = "web_fetch"
)

// Tool is one invocable capability. Implementations are immutable after
// construction and safe for reuse across turns.
type Tool interface {
	Name() string
	Description() string
	Parameters() *provider.ParameterSchema

	// RequiresPermission reports whether the permission engine must gate
	// invocations of this tool.
	RequiresPermission() bool

	// Execute runs the tool and returns its textual result. It never
	// returns an error value; internal failures come back as bracketed
	// text.
	Execute(ctx context.Context, args map[string]any) string
}

// Registry is the immutable tool catalog handed to the orchestrator and
// the permission engine. Order is preserved for the provider catalog.
type Registry struct {
	order  []Tool
	byName map[string]Tool
}

// NewRegistry builds a registry. A duplicated name keeps the last tool,
// matching how plugin tools override defaults.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, seen := r.byName[t.Name()]; !seen {
			r.order = append(r.order, t)
		} else {
			for i, existing := range r.order {
				if existing.Name() == t.Name() {
					r.order[i] = t
					break
				}
			}
		}
		r.byName[t.Name()] = t
	}
	return r
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Tools returns the catalog in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions renders the catalog for a provider request.
func (r *Registry) Definitions() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, len(r.order))
	for i, t := range r.order {
		defs[i] = provider.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// Defaults returns the built-in catalog.
func Defaults(opts DefaultOptions) []Tool {
	return []Tool{
		NewBash(opts.BashTimeout),
		NewReadFile(),
		NewWriteFile(),
		NewEditFile(),
		NewGrep(),
		NewWebFetch(),
	}
}

// DefaultOptions carry the configurable knobs of the built-in tools.
type DefaultOptions struct {
	BashTimeout int // seconds, 0 means the 120 s default
}

// decode unmarshals a tool-call argument map into a typed request.
func decode(args map[string]any, req any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           req,
		WeaklyTypedInput: true,
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

// errText formats the bracketed failure text all tools use.
func errText(format string, a ...any) string {
	return "[error: " + fmt.Sprintf(format, a...) + "]"
}

// expandHome resolves a leading ~ against the current user's home.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// truncate bounds tool output so a single result cannot flood the context.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n[truncated...]"
}
