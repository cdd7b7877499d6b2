package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/pipeline"
	"github.com/urfave/cli/v2"
)

var clusterCommand = &cli.Command{
	Name:      "cluster",
	Usage:     "Recompute clusters and master questions",
	ArgsUsage: "[category...]",
	Action:    clusterAction,
	Flags: []cli.Flag{
		&cli.Float64Flag{
			Name:  "threshold",
			Usage: "Override the cosine distance threshold",
		},
	},
}

func clusterAction(c *cli.Context) error {
	ctx := context.Background()

	categories := make([]core.Category, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		category, err := core.ParseCategory(arg)
		if err != nil {
			return err
		}
		categories = append(categories, category)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("threshold") {
		cfg.Clustering.Threshold = c.Float64("threshold")
	}

	db, err := openWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.NewClusterPipeline()
	if err != nil {
		return err
	}
	defer p.Release()

	report, err := p.Run(ctx, categories...)
	if report != nil {
		printClusterReport(report.Categories, cfg.Clustering.Threshold)
	}
	return err
}

func printClusterReport(reports []*pipeline.CategoryReport, threshold float64) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== Consolidation (threshold %.2f) ===", threshold)))
	for _, r := range reports {
		if r.Err != nil {
			fmt.Printf("  %s %s: %v\n", red("✗"), r.Category, r.Err)
			continue
		}
		status := ""
		if r.Unchanged {
			status = gray(" (unchanged)")
		}
		fmt.Printf("  %s %s: %d questions -> %d masters (%.1f%% reduction)%s\n",
			green("●"), r.Category, r.Questions, r.Clusters, r.Reduction()*100, status)
		fmt.Printf("    Singletons: %d  Excluded: %d  Time: %s\n",
			r.Singletons, len(r.Excluded), r.Duration.Round(time.Millisecond))
		for _, e := range r.Excluded {
			fmt.Printf("    %s %s (%s)\n", gray("-"), e.QuestionID, e.Reason)
		}
	}
	fmt.Println()
}
