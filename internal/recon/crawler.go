package recon

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// CrawlerOptions configures a Crawler.
type CrawlerOptions struct {
	Timeout      time.Duration // per-page fetch timeout
	Deadline     time.Duration // overall crawl deadline, 0 for none
	UserAgent    string
	MaxBodyBytes int64
	Logger       *zap.Logger
	// Client overrides the HTTP client built from Timeout and UserAgent.
	Client *resty.Client
}

// Crawler discovers same-origin links starting from a seed URL.
type Crawler struct {
	client   *resty.Client
	deadline time.Duration
	maxBody  int64
	logger   *zap.Logger
}

// NewCrawler creates a crawler.
func NewCrawler(opts CrawlerOptions) *Crawler {
	if opts.Timeout <= 0 {
		opts.Timeout = consts.CrawlRequestTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = consts.MaxCrawlBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = NewHTTPClient(opts.Timeout, opts.UserAgent)
	}
	return &Crawler{
		client:   client,
		deadline: opts.Deadline,
		maxBody:  opts.MaxBodyBytes,
		logger:   opts.Logger,
	}
}

// Crawl fetches pages until the frontier is empty or maxPages URLs have been
// visited, and returns every same-origin link found, sorted for display.
//
// The frontier is a set: which URL is fetched next is unspecified, so once the
// page cap is hit the visited pages (and therefore the result) may differ
// between runs. A URL whose fetch fails is still counted as visited and is
// never retried.
func (c *Crawler) Crawl(ctx context.Context, seed string, maxPages int) ([]string, error) {
	origin, err := parseSeed(seed)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		return []string{}, nil
	}

	if c.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deadline)
		defer cancel()
	}

	visited := make(map[string]struct{}, maxPages)
	frontier := map[string]struct{}{origin.String(): {}}
	found := make(map[string]struct{})

	for len(frontier) > 0 && len(visited) < maxPages {
		if err := ctx.Err(); err != nil {
			c.logger.Debug("crawl stopped early", zap.String("seed", seed), zap.Error(err))
			break
		}

		current := takeAny(frontier)
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		links, err := c.fetchLinks(ctx, current)
		if err != nil {
			c.logger.Debug("crawl fetch failed", zap.String("url", current), zap.Error(err))
			continue
		}

		for _, link := range links {
			if !sameOrigin(origin, link) {
				continue
			}
			key := link.String()
			found[key] = struct{}{}
			if _, seen := visited[key]; !seen {
				frontier[key] = struct{}{}
			}
		}
	}

	c.logger.Info("crawl finished",
		zap.String("seed", seed),
		zap.Int("visited", len(visited)),
		zap.Int("found", len(found)),
	)
	return sortedKeys(found), nil
}

func parseSeed(seed string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return nil, &sharedErrors.ParseError{Input: seed, Reason: err.Error()}
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &sharedErrors.ParseError{Input: seed, Reason: "seed must be an absolute http(s) URL"}
	}
	if u.Hostname() == "" {
		return nil, &sharedErrors.ParseError{Input: seed, Reason: "seed has no host"}
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// takeAny removes and returns an arbitrary member of set.
func takeAny(set map[string]struct{}) string {
	for k := range set {
		delete(set, k)
		return k
	}
	return ""
}

func (c *Crawler) fetchLinks(ctx context.Context, target string) ([]*url.URL, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	if body != nil {
		defer body.Close()
	}

	// Error pages are parsed too; custom 404 and 500 pages often link back into the site.
	if body == nil {
		return nil, nil
	}

	// Relative links resolve against the final URL after redirects.
	pageURL, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		pageURL = raw.Request.URL
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return extractLinks(pageURL, doc), nil
}

func extractLinks(pageURL *url.URL, doc *goquery.Document) []*url.URL {
	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = pageURL.ResolveReference(ref)
		}
	}

	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if u := resolveLink(base, href); u != nil {
			links = append(links, u)
		}
	})
	return links
}

func resolveLink(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "data:"):
		return nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	u := base.ResolveReference(ref)
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u
}

// sameOrigin compares scheme and host, treating default ports as implied.
func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil || a.Hostname() == "" || b.Hostname() == "" {
		return false
	}
	return a.Scheme == b.Scheme &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
