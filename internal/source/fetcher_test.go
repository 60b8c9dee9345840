package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/veristream/internal/cache"
	"github.com/ppiankov/veristream/internal/model"
)

const testPage = `<html><head><title>t</title><style>p{}</style></head>
<body>
<nav>Home | About</nav>
<article>
<h1>The Headline</h1>
<p>First paragraph with   extra   spaces.</p>
<p>Second paragraph.</p>
<script>trackingCode();</script>
</article>
<footer>copyright</footer>
</body></html>`

func testConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:         5 * time.Second,
		UserAgent:       "veristream-test",
		MaxBodyBytes:    1 << 20,
		RequestsPerHost: 1000,
	}
}

func TestExtractText(t *testing.T) {
	text := ExtractText(testPage)

	if !strings.Contains(text, "The Headline") {
		t.Errorf("missing headline: %q", text)
	}
	if !strings.Contains(text, "First paragraph with extra spaces.") {
		t.Errorf("whitespace not collapsed: %q", text)
	}
	for _, banned := range []string{"trackingCode", "Home | About", "copyright", "p{}"} {
		if strings.Contains(text, banned) {
			t.Errorf("boilerplate leaked into text: %q", banned)
		}
	}
}

func TestExtractText_NoArticleTag(t *testing.T) {
	text := ExtractText(`<html><body><p>plain body text</p></body></html>`)
	if text != "plain body text" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestFetcher_FetchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "veristream-test" {
			t.Errorf("unexpected user agent: %q", got)
		}
		fmt.Fprint(w, testPage)
	}))
	defer server.Close()

	f := NewFetcher(testConfig(), nil, nil)
	text, err := f.FetchText(context.Background(), server.URL+"/article")
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestFetcher_RobotsDisallow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		fmt.Fprint(w, testPage)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RespectRobotsTxt = true
	f := NewFetcher(cfg, nil, nil)

	if _, err := f.Fetch(context.Background(), server.URL+"/private/doc"); err == nil {
		t.Error("expected robots.txt to block the fetch")
	}
	if _, err := f.Fetch(context.Background(), server.URL+"/public/doc"); err != nil {
		t.Errorf("allowed path blocked: %v", err)
	}
}

func TestFetcher_CacheHitSkipsNetwork(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, testPage)
	}))
	defer server.Close()

	c := cache.NewMemory(time.Minute)
	f := NewFetcher(testConfig(), c, nil)

	url := server.URL + "/article"
	if _, err := f.Fetch(context.Background(), url); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := f.Fetch(context.Background(), url); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected 1 network hit, got %d", n)
	}
}

func TestFetcher_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(testConfig(), nil, nil)
	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Error("expected error for 404")
	}
}

func TestFetcher_BodySizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 1000))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 100
	f := NewFetcher(cfg, nil, nil)

	body, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(body) != 100 {
		t.Errorf("expected truncation at 100 bytes, got %d", len(body))
	}
}
