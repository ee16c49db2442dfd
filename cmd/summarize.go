package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/uniassist/uniassist/internal/agent"
)

// runSummarize reads a file and prints a model-generated summary.
func runSummarize() error {
	sumFlags := flag.NewFlagSet("summarize", flag.ContinueOnError)
	sumFlags.SetOutput(os.Stderr)
	style := sumFlags.String("style", agent.SummaryConcise, "Summary style: concise, detailed or bullet_points")

	path, err := parseQueryArgs(sumFlags, "summarize <file> [--style concise]")
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	summary, err := a.Assistant.Summarize(ctx, string(data), *style)
	if err != nil {
		return fmt.Errorf("summarizing %s: %w", path, err)
	}

	fmt.Println(summary)
	return nil
}
