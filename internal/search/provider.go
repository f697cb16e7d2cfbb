// Package search wraps the web search provider: text results for
// evidence retrieval, image results for topic enrichment. Both are
// treated as possibly-slow network calls behind one small interface,
// with a hostname blocklist filter grounded on the teacher repo's
// authority-tier host classifier.
package search

import "context"

// SafeSearch is the content-filtering level passed to the provider.
type SafeSearch string

const (
	SafeSearchOff      SafeSearch = "off"
	SafeSearchModerate SafeSearch = "moderate"
	SafeSearchStrict   SafeSearch = "strict"
)

// TextResult is one web search hit.
type TextResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// ImageResult is one image search hit.
type ImageResult struct {
	ImageURL string `json:"image_url"`
	Title    string `json:"title,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// Query parameterizes both search calls.
type Query struct {
	Text       string
	MaxResults int
	SafeSearch SafeSearch
	Region     string
}

// Provider is the abstract search capability consumed by the Fact and
// Topic engines.
type Provider interface {
	// TextSearch retrieves web results for evidence retrieval.
	TextSearch(ctx context.Context, q Query) ([]TextResult, error)

	// ImageSearch retrieves image results for topic enrichment.
	ImageSearch(ctx context.Context, q Query) ([]ImageResult, error)
}
