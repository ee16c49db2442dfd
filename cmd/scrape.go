package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/uniassist/uniassist/internal/scraper"
)

// runScrape crawls course web pages starting from a URL and ingests
// their readable text into the knowledge store.
func runScrape() error {
	scrapeFlags := flag.NewFlagSet("scrape", flag.ContinueOnError)
	scrapeFlags.SetOutput(os.Stderr)

	startURL, err := parseQueryArgs(scrapeFlags, "scrape <url>")
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	s, err := scraper.New(a.Config.Scraper, slog.Default())
	if err != nil {
		return fmt.Errorf("creating scraper: %w", err)
	}

	pages, err := s.Crawl(ctx, startURL)
	if err != nil {
		return fmt.Errorf("crawling %s: %w", startURL, err)
	}
	if len(pages) == 0 {
		fmt.Println("No pages with readable text found.")
		return nil
	}

	var totalChunks, failed int
	for _, page := range pages {
		chunks, err := a.Pipeline.IngestPage(ctx, page.URL, page.Title, page.Text)
		if err != nil {
			slog.Warn("page ingestion failed", "url", page.URL, "error", err)
			failed++
			continue
		}
		totalChunks += chunks
	}

	fmt.Printf("Scraped %d pages (%d chunks stored)\n", len(pages)-failed, totalChunks)
	if failed > 0 {
		fmt.Printf("Failed to store %d pages (see logs)\n", failed)
	}
	return nil
}
