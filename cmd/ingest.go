package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uniassist/uniassist/internal/ingest"
)

// runIngest ingests a document or directory into the knowledge store.
func runIngest() error {
	ingestFlags := flag.NewFlagSet("ingest", flag.ContinueOnError)
	ingestFlags.SetOutput(os.Stderr)
	docType := ingestFlags.String("type", "", "Document type: past_paper, course_material (default: inferred from filename)")

	path, err := parseQueryArgs(ingestFlags, "ingest <path> [--type past_paper]")
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

	result, err := a.Pipeline.Run(ctx, path, *docType)
	if err != nil {
		if errors.Is(err, ingest.ErrLocked) {
			return fmt.Errorf("another ingestion is already running; try again later")
		}
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	fmt.Printf("Ingested %d files (%d chunks) in %s\n",
		result.FilesAdded, result.ChunksAdded, result.Duration.Round(time.Millisecond))
	if result.FilesSkipped > 0 {
		fmt.Printf("Skipped %d unsupported files\n", result.FilesSkipped)
	}
	if result.FilesFailed > 0 {
		fmt.Printf("Failed to ingest %d files (see logs)\n", result.FilesFailed)
	}
	return nil
}
