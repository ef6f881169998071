package tool

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"quill/internal/provider"
)

const (
	fetchTimeout   = 30 * time.Second
	fetchLimit     = 50_000 // bytes of rendered text
	fetchBodyLimit = 2 << 20
	fetchUserAgent = "quill/0.1 (AI coding assistant)"
)

// WebFetch retrieves a URL and returns its text. HTML is reduced to plain
// text. Network access is permission gated.
type WebFetch struct {
	client *http.Client
}

func NewWebFetch() *WebFetch {
	return &WebFetch{client: &http.Client{Timeout: fetchTimeout}}
}

func (w *WebFetch) Name() string { return NameWebFetch }

func (w *WebFetch) Description() string {
	return "Fetch content from a URL and return the text. HTML is converted to plain text."
}

func (w *WebFetch) Parameters() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"url": {
				Type:        "string",
				Description: "The URL to fetch",
			},
		},
		Required: []string{"url"},
	}
}

func (w *WebFetch) RequiresPermission() bool { return true }

type webFetchRequest struct {
	URL string `mapstructure:"url"`
}

func (w *WebFetch) Execute(ctx context.Context, args map[string]any) string {
	var req webFetchRequest
	if err := decode(args, &req); err != nil {
		return errText("invalid arguments: %v", err)
	}

	url := req.URL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errText("%v", err)
	}
	httpReq.Header.Set("User-Agent", fetchUserAgent)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return errText("%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errText("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return errText("%v", err)
	}

	content := string(body)
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		content = htmlToText(content)
	}
	if content == "" {
		return "(empty response)"
	}
	return truncate(content, fetchLimit)
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// blockTags force a line break when closed so the extracted text keeps a
// rough document structure.
var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// htmlToText walks the token stream, dropping script/style/head subtrees.
func htmlToText(src string) string {
	tok := html.NewTokenizer(strings.NewReader(src))
	var sb strings.Builder
	skipDepth := 0

	for {
		switch tok.Next() {
		case html.ErrorToken:
			return blankLines.ReplaceAllString(strings.TrimSpace(sb.String()), "\n\n")
		case html.StartTagToken:
			name, _ := tok.TagName()
			switch string(name) {
			case "script", "style", "head":
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			tag := string(name)
			switch tag {
			case "script", "style", "head":
				if skipDepth > 0 {
					skipDepth--
				}
			}
			if blockTags[tag] {
				sb.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := tok.TagName()
			if blockTags[string(name)] {
				sb.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tok.Text())
			}
		}
	}
}
