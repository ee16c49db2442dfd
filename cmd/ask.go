package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/uniassist/uniassist/internal/agent"
	"github.com/uniassist/uniassist/internal/app"
	"github.com/uniassist/uniassist/internal/config"
)

// runAsk answers a single question from the terminal, streaming the
// answer to stdout as it is generated.
func runAsk() error {
	askFlags := flag.NewFlagSet("ask", flag.ContinueOnError)
	askFlags.SetOutput(os.Stderr)
	sourceType := askFlags.String("source-type", "", "Restrict retrieval to one source type (past_paper, course_material, web)")

	question, err := parseQueryArgs(askFlags, "ask \"question\"")
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

	result, err := a.Assistant.Ask(ctx, question, *sourceType,
		func(_ context.Context, text string) error {
			fmt.Print(text)
			return nil
		})
	if err != nil {
		if errors.Is(err, agent.ErrNoContext) {
			return fmt.Errorf("no course material matched the question; run 'uniassist ingest' first")
		}
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println()
	if len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range result.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	return nil
}

// parseQueryArgs extracts the single positional argument after the
// command name, parsing any flags that precede or follow it.
func parseQueryArgs(fs *flag.FlagSet, usage string) (string, error) {
	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	var positional []string
	// flag.FlagSet stops at the first non-flag argument, so peel
	// positionals off manually to support flags in any position.
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return "", fmt.Errorf("parsing flags: %w", err)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}

	query := strings.TrimSpace(strings.Join(positional, " "))
	if query == "" {
		return "", fmt.Errorf("usage: uniassist %s", usage)
	}
	return query, nil
}

// setupApp loads configuration and initializes the application.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	a, err := app.Setup(ctx, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

// closeApp closes the application, logging rather than failing on error.
func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
	}
}
