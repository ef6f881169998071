// Package plugin composes the tool catalog and the static permission
// policy before a session starts. A Descriptor is a plain data structure,
// not runtime probing, applied through one fixed entrypoint; the outputs
// feed the registry and permission engine constructors and nothing mutates
// after that.
package plugin

import (
	"quill/internal/permission"
	"quill/internal/tool"
)

// Descriptor enumerates what one extension contributes.
type Descriptor struct {
	// Name identifies the plugin in logs.
	Name string

	// Tools are appended to the catalog. A tool sharing a default's name
	// replaces it.
	Tools []tool.Tool

	// RemoveTools drops named tools from the catalog.
	RemoveTools []string

	// AutoAllow tools skip permission prompting entirely.
	AutoAllow []string

	// AutoAllowCWD tools skip prompting for paths inside the working
	// directory.
	AutoAllowCWD []string

	// PathBased tools receive per-canonical-path grants instead of
	// per-name grants.
	PathBased []string

	// RejectPrompts forces unattended auto-deny for anything that would
	// otherwise prompt.
	RejectPrompts bool
}

// Apply folds the descriptors, in order, over the default catalog and an
// empty static policy. It runs once, before the session; the returned
// values are the immutable inputs to the registry and permission engine.
func Apply(defaults []tool.Tool, descriptors ...Descriptor) ([]tool.Tool, permission.Config) {
	tools := make([]tool.Tool, len(defaults))
	copy(tools, defaults)
	cfg := permission.NewConfig()

	for _, d := range descriptors {
		for _, name := range d.RemoveTools {
			tools = removeTool(tools, name)
		}
		tools = append(tools, d.Tools...)

		for _, name := range d.AutoAllow {
			cfg.AutoAllow[name] = true
		}
		for _, name := range d.AutoAllowCWD {
			cfg.AutoAllowCWD[name] = true
		}
		for _, name := range d.PathBased {
			cfg.PathBased[name] = true
		}
		if d.RejectPrompts {
			cfg.RejectPrompts = true
		}
	}
	return tools, cfg
}

func removeTool(tools []tool.Tool, name string) []tool.Tool {
	out := tools[:0]
	for _, t := range tools {
		if t.Name() != name {
			out = append(out, t)
		}
	}
	return out
}

// Unattended is the built-in descriptor for non-interactive runs: no shell
// or network tools, file edits auto-allowed inside the working directory,
// and anything unexpected denied instead of prompted.
func Unattended() Descriptor {
	return Descriptor{
		Name:          "unattended",
		RemoveTools:   []string{tool.NameBash, tool.NameWebFetch},
		AutoAllowCWD:  []string{tool.NameWriteFile, tool.NameEditFile},
		PathBased:     []string{tool.NameWriteFile, tool.NameEditFile},
		RejectPrompts: true,
	}
}
