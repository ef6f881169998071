package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quill/internal/provider"
)

const readLimit = 100_000 // bytes per read_file result

// ReadFile returns file contents. Reading is not gated by the permission
// engine.
type ReadFile struct{}

func NewReadFile() *ReadFile { return &ReadFile{} }

func (r *ReadFile) Name() string { return NameReadFile }

func (r *ReadFile) Description() string {
	return "Read the contents of a file."
}

func (r *ReadFile) Parameters() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"path": {
				Type:        "string",
				Description: "Path to the file to read",
			},
		},
		Required: []string{"path"},
	}
}

func (r *ReadFile) RequiresPermission() bool { return false }

type readFileRequest struct {
	Path string `mapstructure:"path"`
}

func (r *ReadFile) Execute(_ context.Context, args map[string]any) string {
	var req readFileRequest
	if err := decode(args, &req); err != nil {
		return errText("invalid arguments: %v", err)
	}

	path := expandHome(req.Path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errText("file not found: %s", req.Path)
		}
		return errText("%v", err)
	}
	if !info.Mode().IsRegular() {
		return errText("not a file: %s", req.Path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errText("%v", err)
	}
	return truncate(string(content), readLimit)
}

// WriteFile writes content to a file, creating parent directories as
// needed.
type WriteFile struct{}

func NewWriteFile() *WriteFile { return &WriteFile{} }

func (w *WriteFile) Name() string { return NameWriteFile }

func (w *WriteFile) Description() string {
	return "Write content to a file. Creates the file if it doesn't exist."
}

func (w *WriteFile) Parameters() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"path": {
				Type:        "string",
				Description: "Path to the file to write",
			},
			"content": {
				Type:        "string",
				Description: "Content to write to the file",
			},
		},
		Required: []string{"path", "content"},
	}
}

func (w *WriteFile) RequiresPermission() bool { return true }

type writeFileRequest struct {
	Path    string `mapstructure:"path"`
	Content string `mapstructure:"content"`
}

func (w *WriteFile) Execute(_ context.Context, args map[string]any) string {
	var req writeFileRequest
	if err := decode(args, &req); err != nil {
		return errText("invalid arguments: %v", err)
	}

	path := expandHome(req.Path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errText("%v", err)
		}
	}
	if err := os.WriteFile(path, []byte(req.Content), 0o644); err != nil {
		return errText("%v", err)
	}
	return fmt.Sprintf("[wrote %d bytes to %s]", len(req.Content), req.Path)
}

// EditFile replaces exact text in a file. The old text must be unique
// unless replace_all is set; an ambiguous match reports the occurrence
// count and leaves the file untouched.
type EditFile struct{}

func NewEditFile() *EditFile { return &EditFile{} }

func (e *EditFile) Name() string { return NameEditFile }

func (e *EditFile) Description() string {
	return "Replace exact text in a file. The old_string must be unique in the file " +
		"(or use replace_all=true to replace all occurrences). " +
		"Include enough context in old_string to make it unique."
}

func (e *EditFile) Parameters() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"path": {
				Type:        "string",
				Description: "Path to the file to edit",
			},
			"old_string": {
				Type:        "string",
				Description: "The exact text to find and replace",
			},
			"new_string": {
				Type:        "string",
				Description: "The text to replace it with",
			},
			"replace_all": {
				Type:        "boolean",
				Description: "Replace all occurrences instead of just the first",
				Default:     false,
			},
		},
		Required: []string{"path", "old_string", "new_string"},
	}
}

func (e *EditFile) RequiresPermission() bool { return true }

type editFileRequest struct {
	Path       string `mapstructure:"path"`
	OldString  string `mapstructure:"old_string"`
	NewString  string `mapstructure:"new_string"`
	ReplaceAll bool   `mapstructure:"replace_all"`
}

func (e *EditFile) Execute(_ context.Context, args map[string]any) string {
	var req editFileRequest
	if err := decode(args, &req); err != nil {
		return errText("invalid arguments: %v", err)
	}

	path := expandHome(req.Path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errText("file not found: %s", req.Path)
		}
		return errText("%v", err)
	}
	if !info.Mode().IsRegular() {
		return errText("not a file: %s", req.Path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return errText("%v", err)
	}
	content := string(raw)

	count := strings.Count(content, req.OldString)
	if count == 0 {
		return errText("old_string not found in %s", req.Path)
	}
	if count > 1 && !req.ReplaceAll {
		return errText(
			"old_string appears %d times in %s. Use replace_all=true or provide more context to make it unique.",
			count, req.Path,
		)
	}

	replacements := 1
	if req.ReplaceAll {
		content = strings.ReplaceAll(content, req.OldString, req.NewString)
		replacements = count
	} else {
		content = strings.Replace(content, req.OldString, req.NewString, 1)
	}

	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return errText("%v", err)
	}
	return fmt.Sprintf("[replaced %d occurrence(s) in %s]", replacements, req.Path)
}
