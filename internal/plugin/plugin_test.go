package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/provider"
	"quill/internal/tool"
)

type namedTool struct{ name string }

func (t namedTool) Name() string                              { return t.name }
func (t namedTool) Description() string                       { return t.name }
func (t namedTool) Parameters() *provider.ParameterSchema     { return nil }
func (t namedTool) RequiresPermission() bool                  { return true }
func (t namedTool) Execute(context.Context, map[string]any) string { return "" }

func names(tools []tool.Tool) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = t.Name()
	}
	return out
}

func TestApplyNoDescriptorsKeepsDefaults(t *testing.T) {
	defaults := []tool.Tool{namedTool{"a"}, namedTool{"b"}}

	tools, cfg := Apply(defaults)
	assert.Equal(t, []string{"a", "b"}, names(tools))
	assert.Empty(t, cfg.AutoAllow)
	assert.False(t, cfg.RejectPrompts)
}

func TestApplyRemovesAndAddsTools(t *testing.T) {
	defaults := []tool.Tool{namedTool{"a"}, namedTool{"b"}, namedTool{"c"}}

	tools, _ := Apply(defaults, Descriptor{
		Name:        "custom",
		RemoveTools: []string{"b"},
		Tools:       []tool.Tool{namedTool{"d"}},
	})
	assert.Equal(t, []string{"a", "c", "d"}, names(tools))
}

func TestApplyMergesPolicyAcrossDescriptors(t *testing.T) {
	_, cfg := Apply(nil,
		Descriptor{AutoAllow: []string{"grep"}},
		Descriptor{AutoAllowCWD: []string{"write_file"}, PathBased: []string{"write_file"}},
		Descriptor{RejectPrompts: true},
		Descriptor{}, // a later quiet descriptor must not reset the flag
	)
	assert.True(t, cfg.AutoAllow["grep"])
	assert.True(t, cfg.AutoAllowCWD["write_file"])
	assert.True(t, cfg.PathBased["write_file"])
	assert.True(t, cfg.RejectPrompts)
}

func TestApplyDoesNotMutateDefaults(t *testing.T) {
	defaults := []tool.Tool{namedTool{"a"}, namedTool{"b"}}

	Apply(defaults, Descriptor{RemoveTools: []string{"a"}})
	assert.Equal(t, []string{"a", "b"}, names(defaults))
}

func TestUnattendedDescriptor(t *testing.T) {
	defaults := tool.Defaults(tool.DefaultOptions{})

	tools, cfg := Apply(defaults, Unattended())

	got := names(tools)
	assert.NotContains(t, got, tool.NameBash)
	assert.NotContains(t, got, tool.NameWebFetch)
	require.Contains(t, got, tool.NameWriteFile)
	require.Contains(t, got, tool.NameEditFile)

	assert.True(t, cfg.AutoAllowCWD[tool.NameWriteFile])
	assert.True(t, cfg.AutoAllowCWD[tool.NameEditFile])
	assert.True(t, cfg.PathBased[tool.NameWriteFile])
	assert.True(t, cfg.PathBased[tool.NameEditFile])
	assert.True(t, cfg.RejectPrompts)
}
