// Package ui implements the line-oriented console session boundary: plain
// text in, rendered text out. It implements the agent's Display and the
// permission engine's Prompter; it holds no conversation or permission
// state of its own.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"quill/internal/permission"
)

const resultPreviewLines = 10

// Console renders the session on a terminal.
type Console struct {
	out      io.Writer
	in       *bufio.Reader
	renderer *glamour.TermRenderer

	dim    lipgloss.Style
	errSt  lipgloss.Style
	banner lipgloss.Style
	prompt lipgloss.Style

	indicator *indicator
	streamed  strings.Builder
}

// NewConsole builds a console over the given reader/writer pair.
func NewConsole(in io.Reader, out io.Writer) *Console {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &Console{
		out:      out,
		in:       bufio.NewReader(in),
		renderer: renderer,
		dim:      lipgloss.NewStyle().Faint(true),
		errSt:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		banner: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("4")).
			Padding(0, 1),
		prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// Banner prints the session header.
func (c *Console) Banner(providerName, model string) {
	text := fmt.Sprintf(
		"Quill - coding assistant\nProvider: %s | Model: %s\nType your message and press Enter. Ctrl+D to exit.",
		providerName, model,
	)
	fmt.Fprintln(c.out, c.banner.Render(text))
}

// ReadInput shows the REPL prompt and reads one line. io.EOF signals the
// end of the session.
func (c *Console) ReadInput(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(c.out, "\n> ")
	line, err := c.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// StreamStart arms the delayed thinking indicator. It is a cosmetic side
// task: it only writes to the terminal and is cancelled by the first
// stream event.
func (c *Console) StreamStart() {
	c.streamed.Reset()
	c.indicator = startIndicator(c.out)
}

// StreamText buffers one fragment; the full text is rendered as markdown
// when the stream ends.
func (c *Console) StreamText(text string) {
	c.stopIndicator()
	c.streamed.WriteString(text)
}

// ToolUseStarted switches off the indicator before tool arguments arrive.
func (c *Console) ToolUseStarted() {
	c.stopIndicator()
	fmt.Fprintln(c.out, c.dim.Render("… preparing tool call"))
}

// StreamEnd renders the accumulated assistant text.
func (c *Console) StreamEnd(hadText bool) {
	c.stopIndicator()
	if !hadText {
		return
	}
	text := c.streamed.String()
	if c.renderer != nil {
		if rendered, err := c.renderer.Render(text); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, text)
}

// ToolCall announces an execution, with arguments shortened to one line.
func (c *Console) ToolCall(name string, args map[string]any) {
	fmt.Fprintf(c.out, "\n%s\n", c.dim.Render(fmt.Sprintf("▶ %s(%s)", name, formatArgs(args))))
}

// ToolResult prints a truncated preview of one result.
func (c *Console) ToolResult(content string, isError bool) {
	lines := strings.Split(content, "\n")
	if len(lines) > resultPreviewLines {
		omitted := len(lines) - resultPreviewLines
		lines = append(lines[:resultPreviewLines], fmt.Sprintf("... (%d more lines)", omitted))
	}
	style := c.dim
	if isError {
		style = c.errSt
	}
	for _, line := range lines {
		fmt.Fprintf(c.out, "  %s\n", style.Render(line))
	}
}

// Notice prints session-level information.
func (c *Console) Notice(text string) {
	fmt.Fprintln(c.out, c.dim.Render("["+text+"]"))
}

// Error prints a fault that ends the run.
func (c *Console) Error(err error) {
	fmt.Fprintln(c.out, c.errSt.Render("error: "+err.Error()))
}

// PromptPermission implements permission.Prompter. It blocks for one of
// four answers; only the exact uppercase A grants the session-wide
// override.
func (c *Console) PromptPermission(ctx context.Context, toolName string, args map[string]any) (permission.Decision, error) {
	fmt.Fprintf(c.out, "\n%s\n", c.prompt.Render("Permission required: "+toolName))
	for _, key := range sortedKeys(args) {
		fmt.Fprintf(c.out, "  %s: %s\n", key, shorten(fmt.Sprintf("%v", args[key]), 200))
	}

	for {
		if err := ctx.Err(); err != nil {
			return permission.DecisionDeny, err
		}
		fmt.Fprint(c.out, c.dim.Render("(y)es / (n)o / (a)lways / allow (A)ll: "))
		line, err := c.in.ReadString('\n')
		if err != nil {
			return permission.DecisionDeny, err
		}
		answer := strings.TrimSpace(line)

		// Capital A only: the session-wide override should not be reachable
		// through a slip of the shift key.
		if answer == "A" {
			fmt.Fprintln(c.out, c.dim.Render("Will allow all tools for this session"))
			return permission.DecisionAllowAll, nil
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return permission.DecisionAllow, nil
		case "n", "no":
			return permission.DecisionDeny, nil
		case "a", "always":
			fmt.Fprintln(c.out, c.dim.Render("Will allow this for the rest of the session"))
			return permission.DecisionAllowAlways, nil
		default:
			fmt.Fprintln(c.out, c.errSt.Render("Please enter y, n, a, or A"))
		}
	}
}

func (c *Console) stopIndicator() {
	if c.indicator != nil {
		c.indicator.stop()
		c.indicator = nil
	}
}

func formatArgs(args map[string]any) string {
	parts := make([]string, 0, len(args))
	for _, key := range sortedKeys(args) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, shorten(fmt.Sprintf("%#v", args[key]), 50)))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func shorten(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
