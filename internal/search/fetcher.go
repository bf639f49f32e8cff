package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

const (
	// DefaultEndpoint is DuckDuckGo's script-free results page.
	DefaultEndpoint = "https://html.duckduckgo.com/html/"
	// DefaultTimeout bounds a single search request.
	DefaultTimeout = 20 * time.Second
	// DefaultLimit is used when the caller does not ask for a count.
	DefaultLimit = 5
	// MaxLimit caps the public search endpoint.
	MaxLimit = 10

	defaultAnchorClass = "result__a"
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxBodySize        = 2 << 20
)

var errStatus = errors.New("search endpoint returned non-2xx status")

// Result is a single search hit.
type Result struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Lookup is the outcome of a best-effort search. Err is set when the fetch
// failed; callers continue without context in that case.
type Lookup struct {
	Query   string
	Results []Result
	Err     error
}

// OK reports whether the fetch succeeded.
func (l Lookup) OK() bool {
	return l.Err == nil
}

// Config configures a Fetcher.
type Config struct {
	Endpoint    string
	Timeout     time.Duration
	AnchorClass string
	UserAgent   string
}

// Fetcher queries an HTML search page and extracts result links.
type Fetcher struct {
	endpoint    *url.URL
	client      *http.Client
	anchorClass string
	userAgent   string
}

// NewFetcher creates a Fetcher. Zero config fields fall back to defaults.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AnchorClass == "" {
		cfg.AnchorClass = defaultAnchorClass
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("search endpoint must be http(s), got %q", cfg.Endpoint)
	}

	return &Fetcher{
		endpoint:    u,
		client:      &http.Client{Timeout: cfg.Timeout},
		anchorClass: cfg.AnchorClass,
		userAgent:   cfg.UserAgent,
	}, nil
}

// ClampLimit is for callers where 0 means "not set": it returns DefaultLimit
// for 0 and BoundLimit(n) otherwise.
func ClampLimit(n int) int {
	if n == 0 {
		return DefaultLimit
	}
	return BoundLimit(n)
}

// BoundLimit clamps an explicitly supplied limit to [1, MaxLimit].
func BoundLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Fetch performs one search request. It makes a single attempt and returns
// at most limit results in page order.
func (f *Fetcher) Fetch(ctx context.Context, query string, limit int) ([]Result, error) {
	ctx, span := otel.Tracer("pj/search").Start(ctx, "search.fetch")
	defer span.End()
	span.SetAttributes(attribute.Int("search.limit", limit))

	if limit <= 0 {
		limit = DefaultLimit
	}

	u := *f.endpoint
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
	}

	results, err := f.parse(io.LimitReader(resp.Body, maxBodySize), limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parse search results: %w", err)
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

// Lookup wraps Fetch into a Lookup value.
func (f *Fetcher) Lookup(ctx context.Context, query string, limit int) Lookup {
	results, err := f.Fetch(ctx, query, limit)
	return Lookup{Query: query, Results: results, Err: err}
}

func (f *Fetcher) parse(r io.Reader, limit int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, limit)
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, f.anchorClass) {
			title := nodeText(n)
			link := f.resolveLink(attr(n, "href"))
			if title != "" && link != "" {
				results = append(results, Result{Title: title, URL: link})
				if len(results) >= limit {
					return false
				}
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)
	return results, nil
}

// resolveLink makes href absolute and unwraps DuckDuckGo's /l/?uddg= redirect.
func (f *Fetcher) resolveLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u = f.endpoint.ResolveReference(u)
	if target := u.Query().Get("uddg"); target != "" {
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
