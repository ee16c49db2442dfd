// Package scraper crawls university course pages and extracts their
// readable text for ingestion into the knowledge store.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/uniassist/uniassist/internal/config"
)

// Page is one scraped course page.
type Page struct {
	URL       string
	Title     string
	Text      string
	ScrapedAt time.Time
}

// Scraper crawls pages within the configured domain allowlist. Depth,
// parallelism and politeness delay come from configuration.
type Scraper struct {
	cfg       config.ScraperConfig
	validator *URLValidator
	logger    *slog.Logger
}

// New creates a Scraper.
func New(cfg config.ScraperConfig, logger *slog.Logger) (*Scraper, error) {
	validator, err := NewURLValidator(cfg.AllowedDomains)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{cfg: cfg, validator: validator, logger: logger}, nil
}

// Crawl visits startURL and follows links within the allowed domains up
// to the configured depth. It returns every page with extractable text.
// Cancelling the context aborts requests that have not started yet.
func (s *Scraper) Crawl(ctx context.Context, startURL string) ([]Page, error) {
	if err := s.validator.Validate(startURL); err != nil {
		return nil, fmt.Errorf("start URL rejected: %w", err)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(s.cfg.AllowedDomains...),
		colly.MaxDepth(s.cfg.MaxDepth),
		colly.UserAgent(s.cfg.UserAgent),
		colly.Async(true),
	)
	c.SetRequestTimeout(time.Duration(s.cfg.TimeoutMS) * time.Millisecond)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.cfg.Parallelism,
		Delay:       time.Duration(s.cfg.DelayMS) * time.Millisecond,
	}); err != nil {
		return nil, fmt.Errorf("configuring rate limit: %w", err)
	}

	var (
		mu    sync.Mutex
		pages []Page
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if err := s.validator.Validate(link); err != nil {
			return
		}
		// Depth and revisit tracking are colly's job; ErrAlreadyVisited
		// and ErrMaxDepth are routine here.
		_ = e.Request.Visit(link)
	})

	c.OnResponse(func(r *colly.Response) {
		if !strings.Contains(r.Headers.Get("Content-Type"), "text/html") {
			return
		}

		page, err := extractPage(r.Request.URL.String(), r.Body)
		if err != nil {
			s.logger.Warn("extraction failed", "url", r.Request.URL, "error", err)
			return
		}
		if page.Text == "" {
			s.logger.Debug("no readable text", "url", r.Request.URL)
			return
		}

		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		s.logger.Warn("request failed", "url", r.Request.URL, "error", err)
	})

	if err := c.Visit(startURL); err != nil {
		return nil, fmt.Errorf("visiting %s: %w", startURL, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return pages, err
	}

	s.logger.Info("crawl complete", "start_url", startURL, "pages", len(pages))
	return pages, nil
}

// extractPage pulls the readable text from an HTML document. Readability
// handles article-style pages; sparse pages it rejects fall back to a
// plain element-text walk.
func extractPage(pageURL string, body []byte) (Page, error) {
	page := Page{URL: pageURL, ScrapedAt: time.Now()}

	u, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("parsing page URL: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = normalizeWhitespace(article.TextContent)
		return page, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parsing HTML: %w", err)
	}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	var sb strings.Builder
	doc.Find("h1, h2, h3, h4, p, li, td").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	})

	page.Text = normalizeWhitespace(sb.String())
	if page.Text == "" {
		return Page{}, errors.New("no text content")
	}
	return page, nil
}

// normalizeWhitespace collapses runs of blank lines and trims the text.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
