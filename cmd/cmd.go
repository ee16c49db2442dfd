// Package cmd provides CLI commands for UniAssist.
//
// Commands:
//   - ask: Answer a course question from ingested material
//   - chat: Interactive terminal chat with Bubble Tea TUI
//   - quiz: Generate and grade a multiple choice quiz
//   - summarize: Summarize a text or markdown file
//   - ingest: Ingest course documents into the knowledge store
//   - scrape: Crawl course web pages into the knowledge store
//   - serve: HTTP API server with SSE streaming
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the UniAssist CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "ask":
		return runAsk()
	case "chat":
		return runChat()
	case "quiz":
		return runQuiz()
	case "summarize":
		return runSummarize()
	case "ingest":
		return runIngest()
	case "scrape":
		return runScrape()
	case "serve":
		return runServe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("UniAssist - AI study assistant for your university course")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  uniassist ask \"question\"       Answer a question from course material")
	fmt.Println("  uniassist chat                 Start interactive chat mode")
	fmt.Println("  uniassist quiz \"topic\"         Generate and take a quiz on a topic")
	fmt.Println("  uniassist summarize <file>     Summarize a text or markdown file")
	fmt.Println("  uniassist ingest <path>        Ingest a document or directory")
	fmt.Println("  uniassist scrape <url>         Crawl course pages into the store")
	fmt.Println("  uniassist serve [addr]         Start HTTP API server (default: 127.0.0.1:8400)")
	fmt.Println("  uniassist --version            Show version information")
	fmt.Println("  uniassist --help               Show this help")
	fmt.Println()
	fmt.Println("Shortcuts (in chat mode):")
	fmt.Println("  Ctrl+D             Exit chat")
	fmt.Println("  Ctrl+C             Cancel current input")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY       Required with the gemini provider")
	fmt.Println("  UNIASSIST_PROVIDER   Optional: \"gemini\" (default) or \"ollama\"")
	fmt.Println("  DATABASE_URL         Optional: PostgreSQL connection URL")
	fmt.Println("  DEBUG                Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/uniassist/uniassist")
}
