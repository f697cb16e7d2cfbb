package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/convoengine/internal/coreerrors"
)

// DuckDuckGoProvider implements Provider against DuckDuckGo's
// unauthenticated HTML and image-search endpoints. There is no
// official Go client for DuckDuckGo, so — in the same register as the
// hand-rolled Anthropic REST client — this talks to the HTTP endpoints
// directly, parsing result HTML with goquery.
type DuckDuckGoProvider struct {
	httpClient  *http.Client
	htmlBaseURL string
	ddgBaseURL  string
}

// NewDuckDuckGoProvider creates a provider using client, or a default
// 15s-timeout client if client is nil.
func NewDuckDuckGoProvider(client *http.Client) *DuckDuckGoProvider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DuckDuckGoProvider{
		httpClient:  client,
		htmlBaseURL: "https://html.duckduckgo.com",
		ddgBaseURL:  "https://duckduckgo.com",
	}
}

// WithBaseURLs overrides the HTML-results and main DuckDuckGo hosts,
// for pointing the provider at a test server.
func (p *DuckDuckGoProvider) WithBaseURLs(htmlBaseURL, ddgBaseURL string) *DuckDuckGoProvider {
	p.htmlBaseURL = htmlBaseURL
	p.ddgBaseURL = ddgBaseURL
	return p
}

var uddgRedirect = regexp.MustCompile(`uddg=([^&]+)`)

// TextSearch posts q to DuckDuckGo's HTML-lite results page and scrapes
// title/snippet/url out of the returned markup.
func (p *DuckDuckGoProvider) TextSearch(ctx context.Context, q Query) ([]TextResult, error) {
	form := url.Values{
		"q":  {q.Text},
		"kl": {regionOrDefault(q.Region)},
		"kp": {safeSearchParam(q.SafeSearch)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.htmlBaseURL+"/html/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, coreerrors.NewTransportError("duckduckgo.text_search.request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "convoengine/0.1")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, coreerrors.NewTransportError("duckduckgo.text_search.do", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, coreerrors.NewTransportError("duckduckgo.text_search", fmt.Errorf("status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, coreerrors.NewParseError("duckduckgo.text_search.parse", err)
	}

	var results []TextResult
	doc.Find(".result").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if q.MaxResults > 0 && len(results) >= q.MaxResults {
			return false
		}

		link := sel.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		snippet := strings.TrimSpace(sel.Find(".result__snippet").First().Text())

		target := resolveRedirect(href)
		if title == "" || target == "" {
			return true
		}

		results = append(results, TextResult{Title: title, Snippet: snippet, URL: target})
		return true
	})

	return results, nil
}

func resolveRedirect(href string) string {
	if m := uddgRedirect.FindStringSubmatch(href); len(m) == 2 {
		if decoded, err := url.QueryUnescape(m[1]); err == nil {
			return decoded
		}
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}

var vqdPattern = regexp.MustCompile(`vqd=['"]([\d-]+)['"]`)

type ddgImageResponse struct {
	Results []struct {
		Image string `json:"image"`
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"results"`
}

// ImageSearch first scrapes a vqd session token off DuckDuckGo's image
// search page, then calls the i.js results endpoint with it.
func (p *DuckDuckGoProvider) ImageSearch(ctx context.Context, q Query) ([]ImageResult, error) {
	vqd, err := p.fetchVQD(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":   {q.Text},
		"vqd": {vqd},
		"l":   {regionOrDefault(q.Region)},
		"p":   {imageSafeSearchParam(q.SafeSearch)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ddgBaseURL+"/i.js?"+params.Encode(), nil)
	if err != nil {
		return nil, coreerrors.NewTransportError("duckduckgo.image_search.request", err)
	}
	req.Header.Set("User-Agent", "convoengine/0.1")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, coreerrors.NewTransportError("duckduckgo.image_search.do", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, coreerrors.NewTransportError("duckduckgo.image_search.read", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, coreerrors.NewTransportError("duckduckgo.image_search", fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed ddgImageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, coreerrors.NewParseError("duckduckgo.image_search.unmarshal", err)
	}

	max := q.MaxResults
	out := make([]ImageResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if max > 0 && len(out) >= max {
			break
		}
		if r.Image == "" {
			continue
		}
		out = append(out, ImageResult{ImageURL: r.Image, Title: r.Title, SourceURL: r.URL})
	}

	return out, nil
}

func (p *DuckDuckGoProvider) fetchVQD(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ddgBaseURL+"/?q="+url.QueryEscape(query)+"&iar=images", nil)
	if err != nil {
		return "", coreerrors.NewTransportError("duckduckgo.vqd.request", err)
	}
	req.Header.Set("User-Agent", "convoengine/0.1")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", coreerrors.NewTransportError("duckduckgo.vqd.do", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", coreerrors.NewTransportError("duckduckgo.vqd.read", err)
	}

	match := vqdPattern.FindSubmatch(body)
	if match == nil {
		return "", coreerrors.NewParseError("duckduckgo.vqd.parse", fmt.Errorf("vqd token not found"))
	}

	return string(match[1]), nil
}

func regionOrDefault(region string) string {
	if region == "" {
		return "wt-wt"
	}
	return region
}

func safeSearchParam(s SafeSearch) string {
	switch s {
	case SafeSearchOff:
		return "-2"
	case SafeSearchModerate:
		return "-1"
	default:
		return "1"
	}
}

func imageSafeSearchParam(s SafeSearch) string {
	if s == SafeSearchOff {
		return "-1"
	}
	return "1"
}
