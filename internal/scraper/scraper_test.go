package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/uniassist/uniassist/internal/config"
	"github.com/uniassist/uniassist/internal/log"
)

func testScraperConfig(host string) config.ScraperConfig {
	return config.ScraperConfig{
		AllowedDomains: []string{host},
		Parallelism:    2,
		DelayMS:        0,
		TimeoutMS:      5000,
		UserAgent:      "uniassist-test/1.0",
		MaxDepth:       2,
	}
}

func serverHost(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing server URL: %v", err)
	}
	return u.Hostname()
}

func TestCrawl(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>CS118 Home</title></head><body>
			<h1>Programming Fundamentals</h1>
			<p>Introduction to programming using C++. Covers control structures and functions.</p>
			<a href="/outline">Course outline</a>
			<a href="https://external.example.com/evil">External</a>
		</body></html>`)
	})
	mux.HandleFunc("/outline", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Course Outline</title></head><body>
			<h2>Topics</h2>
			<ul><li>Variables and types</li><li>Pointers and memory</li></ul>
			<p>Assessment: midterm 25 percent, final 40 percent.</p>
		</body></html>`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, err := New(testScraperConfig(serverHost(t, srv)), log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	pages, err := s.Crawl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}

	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}

	byURL := make(map[string]Page, len(pages))
	for _, p := range pages {
		byURL[p.URL] = p
	}

	home, ok := byURL[srv.URL+"/"]
	if !ok {
		home, ok = byURL[srv.URL]
	}
	if !ok {
		t.Fatalf("home page not scraped, got %v", pages)
	}
	if !strings.Contains(home.Text, "control structures") {
		t.Errorf("home text missing content: %q", home.Text)
	}

	outline, ok := byURL[srv.URL+"/outline"]
	if !ok {
		t.Fatalf("linked page not followed, got %v", pages)
	}
	if !strings.Contains(outline.Text, "Pointers and memory") {
		t.Errorf("outline text missing list item: %q", outline.Text)
	}
}

func TestCrawlRejectsStartURLOutsideAllowlist(t *testing.T) {
	s, err := New(testScraperConfig("nu.edu.pk"), log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := s.Crawl(context.Background(), "https://example.com"); err == nil {
		t.Fatal("Crawl() accepted start URL outside allowlist")
	}
}

func TestCrawlSkipsNonHTML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Index</title></head><body>
			<p>Course files are listed below for download.</p>
			<a href="/syllabus.json">Syllabus data</a>
		</body></html>`)
	})
	mux.HandleFunc("/syllabus.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"course":"CS118"}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, err := New(testScraperConfig(serverHost(t, srv)), log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	pages, err := s.Crawl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1 (JSON skipped)", len(pages))
	}
}

func TestExtractPageFallback(t *testing.T) {
	// A sparse page readability refuses still yields its element text.
	body := []byte(`<html><head><title>Contact</title></head><body>
		<h1>Contact</h1><p>Office B-12.</p>
	</body></html>`)

	page, err := extractPage("https://nu.edu.pk/contact", body)
	if err != nil {
		t.Fatalf("extractPage() error: %v", err)
	}
	if page.Title == "" {
		t.Error("title not extracted")
	}
	if !strings.Contains(page.Text, "Office B-12.") {
		t.Errorf("text missing paragraph: %q", page.Text)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  Line one \n\n\n   \nLine two\n"
	want := "Line one\nLine two"
	if got := normalizeWhitespace(in); got != want {
		t.Errorf("normalizeWhitespace() = %q, want %q", got, want)
	}
}
