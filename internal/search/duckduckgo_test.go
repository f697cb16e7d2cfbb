package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleResultsHTML = `
<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FGo">The Go programming language</a>
  <div class="result__snippet">Go is an open source language.</div>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/direct">Direct link result</a>
  <div class="result__snippet">No redirect wrapper here.</div>
</div>
<div class="result">
  <a class="result__a" href="not-a-url">broken</a>
  <div class="result__snippet">should be skipped</div>
</div>
</body></html>
`

func TestDuckDuckGoProvider_TextSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/html/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(sampleResultsHTML))
	}))
	defer server.Close()

	p := NewDuckDuckGoProvider(nil).WithBaseURLs(server.URL, server.URL)

	results, err := p.TextSearch(context.Background(), Query{Text: "golang", MaxResults: 10})
	if err != nil {
		t.Fatalf("TextSearch returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (broken one skipped), got %d: %+v", len(results), results)
	}
	if results[0].Title != "The Go programming language" {
		t.Errorf("unexpected title: %q", results[0].Title)
	}
	if results[0].URL != "https://en.wikipedia.org/wiki/Go" {
		t.Errorf("expected redirect resolved, got %q", results[0].URL)
	}
	if results[1].URL != "https://example.com/direct" {
		t.Errorf("expected direct link preserved, got %q", results[1].URL)
	}
}

func TestDuckDuckGoProvider_TextSearch_MaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(sampleResultsHTML))
	}))
	defer server.Close()

	p := NewDuckDuckGoProvider(nil).WithBaseURLs(server.URL, server.URL)

	results, err := p.TextSearch(context.Background(), Query{Text: "golang", MaxResults: 1})
	if err != nil {
		t.Fatalf("TextSearch returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected MaxResults to cap at 1, got %d", len(results))
	}
}

func TestDuckDuckGoProvider_TextSearch_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewDuckDuckGoProvider(nil).WithBaseURLs(server.URL, server.URL)

	if _, err := p.TextSearch(context.Background(), Query{Text: "golang"}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestDuckDuckGoProvider_ImageSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html>var vqd='12345-67890';</html>`))
		case r.URL.Path == "/i.js":
			if !strings.Contains(r.URL.RawQuery, "vqd=12345-67890") {
				t.Errorf("expected vqd token forwarded in i.js query, got %q", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"results":[
				{"image":"https://example.com/a.jpg","title":"A","url":"https://example.com/a"},
				{"image":"","title":"skip me","url":"https://example.com/b"},
				{"image":"https://example.com/c.jpg","title":"C","url":"https://example.com/c"}
			]}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := NewDuckDuckGoProvider(nil).WithBaseURLs(server.URL, server.URL)

	results, err := p.ImageSearch(context.Background(), Query{Text: "cats", MaxResults: 10})
	if err != nil {
		t.Fatalf("ImageSearch returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (empty image skipped), got %d: %+v", len(results), results)
	}
	if results[0].ImageURL != "https://example.com/a.jpg" {
		t.Errorf("unexpected first image url: %q", results[0].ImageURL)
	}
}

func TestDuckDuckGoProvider_ImageSearch_MissingVQD(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>no token here</html>`))
	}))
	defer server.Close()

	p := NewDuckDuckGoProvider(nil).WithBaseURLs(server.URL, server.URL)

	if _, err := p.ImageSearch(context.Background(), Query{Text: "cats"}); err == nil {
		t.Fatal("expected error when vqd token is missing")
	}
}

func TestDuckDuckGoProvider_ImageSearch_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`vqd='1-2'`))
		case "/i.js":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer server.Close()

	p := NewDuckDuckGoProvider(nil).WithBaseURLs(server.URL, server.URL)

	if _, err := p.ImageSearch(context.Background(), Query{Text: "cats"}); err == nil {
		t.Fatal("expected error on malformed JSON response")
	}
}

func TestRegionOrDefault(t *testing.T) {
	if got := regionOrDefault(""); got != "wt-wt" {
		t.Errorf("expected default region wt-wt, got %q", got)
	}
	if got := regionOrDefault("us-en"); got != "us-en" {
		t.Errorf("expected region passthrough, got %q", got)
	}
}

func TestSafeSearchParam(t *testing.T) {
	cases := map[SafeSearch]string{
		SafeSearchOff:      "-2",
		SafeSearchModerate: "-1",
		SafeSearchStrict:   "1",
	}
	for in, want := range cases {
		if got := safeSearchParam(in); got != want {
			t.Errorf("safeSearchParam(%q) = %q, want %q", in, got, want)
		}
	}
}
