// Package websearch implements the "websearch" tool server (SPEC_FULL.md
// EXPANSION 4.F+): a single fetchPage tool that downloads a URL and
// returns its readable text.
//
// Grounded on the teacher's internal/tools/websearch/extract.go for the
// SSRF-defense shape (validateURLForSSRF, isPrivateOrReservedIP) kept
// near-verbatim, since the defense itself is not domain-specific to how
// the teacher extracted text. The extraction pipeline itself is
// rewritten against golang.org/x/net/html's parser (html.Parse) instead
// of the teacher's regexp-based readability pass — SPEC_FULL.md calls for
// x/net to have a home in this repo, and a real HTML parser does not
// choke on the malformed markup regexes silently mishandle.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	fetchTimeout   = 15 * time.Second
	maxBodyBytes   = 10 * 1024 * 1024
	maxContentRune = 10000
)

var skipTextTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"nav": true, "header": true, "footer": true, "aside": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "br": true,
	"section": true, "article": true, "tr": true,
}

// Fetcher downloads and extracts readable text from web pages, guarding
// every request against SSRF.
type Fetcher struct {
	httpClient    *http.Client
	skipSSRFCheck bool // test-only: allows localhost targets
}

// NewFetcher returns a Fetcher enforcing the SSRF allow-list.
func NewFetcher() *Fetcher {
	return &Fetcher{httpClient: &http.Client{Timeout: fetchTimeout}}
}

// NewFetcherForTesting returns a Fetcher that skips the SSRF check, for
// tests that fetch from an httptest.Server on localhost.
func NewFetcherForTesting() *Fetcher {
	return &Fetcher{httpClient: &http.Client{Timeout: fetchTimeout}, skipSSRFCheck: true}
}

// isPrivateOrReservedIP reports whether ip must never be the target of
// an outbound fetch triggered by agent-controlled input.
func isPrivateOrReservedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	if metadataIP := net.ParseIP("169.254.169.254"); ip.Equal(metadataIP) {
		return true
	}
	return false
}

// validateURLForSSRF rejects non-http(s) schemes, localhost variants,
// and hostnames that resolve to a private or reserved address.
func validateURLForSSRF(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	lowerHost := strings.ToLower(hostname)
	if lowerHost == "localhost" || strings.HasSuffix(lowerHost, ".localhost") {
		return fmt.Errorf("localhost URLs are not allowed")
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil // DNS may be handled by an upstream proxy
	}
	for _, ip := range ips {
		if isPrivateOrReservedIP(ip) {
			return fmt.Errorf("URL resolves to a private/reserved IP address")
		}
	}
	return nil
}

// Fetch downloads targetURL and returns its readable text, truncated to
// maxContentRune runes.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	if !f.skipSSRFCheck {
		if err := validateURLForSSRF(targetURL); err != nil {
			return "", fmt.Errorf("URL validation failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ConductorBot/1.0)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	content, err := extractReadableText(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	if len([]rune(content)) > maxContentRune {
		content = string([]rune(content)[:maxContentRune]) + "..."
	}
	return content, nil
}

// extractReadableText walks html.Parse's DOM, skipping script/style/nav-
// like subtrees, and joins the remaining text nodes with block-level
// tags turned into line breaks.
func extractReadableText(body string) (string, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	var title, description string
	var b strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipTextTags[n.Data] {
				return
			}
			if n.Data == "title" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			if n.Data == "meta" {
				description = metaDescriptionOf(n, description)
			}
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockTags[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	var result strings.Builder
	if title != "" {
		result.WriteString("Title: " + title + "\n\n")
	}
	if description != "" {
		result.WriteString("Description: " + description + "\n\n")
	}
	result.WriteString(collapseWhitespace(b.String()))
	return strings.TrimSpace(result.String()), nil
}

func metaDescriptionOf(n *html.Node, current string) string {
	var name, content string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "name", "property":
			name = attr.Val
		case "content":
			content = attr.Val
		}
	}
	if (name == "description" || name == "og:description") && content != "" {
		return content
	}
	return current
}

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}
