package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/ingestion"
	"github.com/poiesic/masterdb/reembed"
	"github.com/urfave/cli/v2"
)

// questionLine is one record of the import file.
type questionLine struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Category  string `json:"category"`
	LegacyMid string `json:"legacy_mid,omitempty"`
	LegacySub string `json:"legacy_sub,omitempty"`
}

var importCommand = &cli.Command{
	Name:      "import",
	Usage:     "Import questions from a JSON lines file and embed them",
	ArgsUsage: "<file.jsonl>",
	Action:    importAction,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of questions per import batch",
			Value: 500,
		},
		&cli.BoolFlag{
			Name:  "no-classify",
			Usage: "Do not fill missing legacy categories with the classifier",
		},
	},
}

func importAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected one input file")
	}
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline(ingestion.WithClassification(!c.Bool("no-classify")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	total := 0
	batchSize := max(c.Int("batch-size"), 1)
	batch := make([]*core.Question, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		added, err := pipeline.Ingest(ctx, batch...)
		if err != nil {
			return err
		}
		total += len(added)
		batch = batch[:0]
		return nil
	}

	err = readQuestions(f, func(q *core.Question) error {
		batch = append(batch, q)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	waitErr := pipeline.Wait()
	if err != nil {
		return err
	}
	if waitErr != nil {
		return fmt.Errorf("embedding failed: %w", waitErr)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %d questions in %s\n", green("Imported"), total, time.Since(start).Round(time.Millisecond))
	return nil
}

// readQuestions decodes one question per non-empty line.
func readQuestions(r io.Reader, fn func(*core.Question) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var ql questionLine
		if err := json.Unmarshal(data, &ql); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		category, err := core.ParseCategory(ql.Category)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		q := &core.Question{
			ID:        ql.ID,
			Text:      ql.Text,
			Category:  category,
			LegacyMid: ql.LegacyMid,
			LegacySub: ql.LegacySub,
		}
		if err := core.ValidateQuestion(q); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(q); err != nil {
			return err
		}
	}
	return scanner.Err()
}

var embedCommand = &cli.Command{
	Name:   "embed",
	Usage:  "Embed questions that have no vector, or every question with --all",
	Action: embedAction,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Re-embed every question, replacing stored vectors",
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N questions",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts for a failed batch",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 1 * time.Second,
		},
	},
}

func embedAction(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := reembed.DefaultConfig()
	cfg.BatchSize = db.Config().AI.BatchSize
	cfg.ReportInterval = c.Int("report-interval")
	cfg.Retry.MaxAttempts = c.Int("max-retries")
	cfg.Retry.BaseDelay = c.Duration("retry-delay")
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	reembedder, err := db.NewReembedder(reembed.WithConfig(cfg), reembed.WithProgress(os.Stderr))
	if err != nil {
		return err
	}

	mode := reembed.ModeMissing
	if c.Bool("all") {
		mode = reembed.ModeAll
	}

	ai := db.Config().AI
	fmt.Fprintf(os.Stderr, "Database: %s\n", db.Config().Database.Path)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", ai.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", ai.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	result, err := reembedder.Run(ctx, mode)
	if result != nil {
		fmt.Printf("Embedded %d questions in %s\n", result.Embedded, result.Elapsed.Round(time.Millisecond))
		if len(result.Categories) > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %v\n", yellow("Run `masterdb cluster` to recompute:"), result.Categories)
		}
	}
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	return nil
}

var classifyCommand = &cli.Command{
	Name:   "classify",
	Usage:  "Fill missing legacy categories with the classifier",
	Action: classifyAction,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of questions to classify (0 for all)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print labels without storing them",
		},
	},
}

func classifyAction(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reclassifier, err := db.NewReclassifier(
		reembed.WithClassifyProgress(os.Stderr),
		reembed.WithDryRun(c.Bool("dry-run")))
	if err != nil {
		return err
	}

	result, err := reclassifier.Run(ctx, c.Int("limit"))
	if result != nil {
		fmt.Printf("Processed %d, classified %d, unplaced %d\n", result.Processed, result.Classified, result.Unplaced)
	}
	return err
}
