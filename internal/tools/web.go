package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	webUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	maxRedirects = 5
)

// validateURL checks that rawURL is http(s) with a valid domain.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing domain in URL")
	}
	return nil
}

// WebFetchTool fetches a URL and extracts readable content.
type WebFetchTool struct {
	maxChars   int
	httpClient *http.Client
}

// NewWebFetchTool creates a WebFetchTool. maxChars defaults to 50000.
func NewWebFetchTool(maxChars int) *WebFetchTool {
	if maxChars <= 0 {
		maxChars = 50000
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &WebFetchTool{maxChars: maxChars, httpClient: client}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch URL and extract readable content (HTML → text)."
}

func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "URL to fetch"
			},
			"maxChars": {
				"type": "integer",
				"minimum": 100
			}
		},
		"required": ["url"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL, _ := params["url"].(string)
	if rawURL == "" {
		return "Error: url is required", nil
	}
	if err := validateURL(rawURL); err != nil {
		return errorResult(rawURL, fmt.Sprintf("URL validation failed: %v", err)), nil
	}

	maxChars := t.maxChars
	if mc, ok := params["maxChars"]; ok {
		switch v := mc.(type) {
		case float64:
			maxChars = int(v)
		case int:
			maxChars = v
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errorResult(rawURL, err.Error()), nil
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return errorResult(rawURL, err.Error()), nil
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(rawURL, err.Error()), nil
	}

	title, text := extractReadable(rawURL, bodyBytes, resp.Header.Get("Content-Type"))
	truncated := false
	if len(text) > maxChars {
		text = text[:maxChars]
		truncated = true
	}

	out, _ := json.Marshal(map[string]any{
		"url":       rawURL,
		"title":     title,
		"text":      text,
		"truncated": truncated,
	})
	return string(out), nil
}

// extractReadable runs readability extraction on HTML responses, falling back
// to a crude tag strip when extraction fails. Non-HTML bodies pass through.
func extractReadable(rawURL string, body []byte, contentType string) (string, string) {
	if contentType != "" && !strings.Contains(contentType, "html") {
		return "", strings.TrimSpace(string(body))
	}
	parsedURL, err := url.Parse(rawURL)
	if err == nil {
		if article, rerr := readability.FromReader(bytes.NewReader(body), parsedURL); rerr == nil && article.TextContent != "" {
			return article.Title, strings.TrimSpace(article.TextContent)
		}
	}
	return "", stripHTMLTags(string(body))
}

var (
	reScriptStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	reTags        = regexp.MustCompile(`<[^>]+>`)
	reBlankRuns   = regexp.MustCompile(`\n{3,}`)
)

func stripHTMLTags(s string) string {
	s = reScriptStyle.ReplaceAllString(s, "")
	s = reTags.ReplaceAllString(s, "\n")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func errorResult(rawURL, msg string) string {
	out, _ := json.Marshal(map[string]any{"error": msg, "url": rawURL})
	return string(out)
}
