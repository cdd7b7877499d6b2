package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/search"
	"github.com/urfave/cli/v2"
)

var searchCommand = &cli.Command{
	Name:      "search",
	Usage:     "Find questions similar to a text or to a stored question",
	ArgsUsage: "<query text>",
	Action:    searchAction,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "k",
			Aliases: []string{"n"},
			Usage:   "Number of results",
			Value:   5,
		},
		&cli.StringFlag{
			Name:  "category",
			Usage: "Restrict results to a category (OD, LD, MA, DD)",
		},
		&cli.StringFlag{
			Name:  "like",
			Usage: "Search neighbours of a stored question ID instead of a text",
		},
		&cli.BoolFlag{
			Name:  "keyword",
			Usage: "Match words in the question text instead of vectors",
		},
		&cli.StringFlag{
			Name:  "term",
			Usage: "List questions tagged with a taxonomy term",
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "Tag type for --term (themes, concepts, aspects)",
		},
	},
}

func searchAction(c *cli.Context) error {
	ctx := context.Background()

	var category core.Category
	if s := c.String("category"); s != "" {
		var err error
		if category, err = core.ParseCategory(s); err != nil {
			return err
		}
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	k := c.Int("k")
	query := strings.Join(c.Args().Slice(), " ")

	switch {
	case c.String("term") != "":
		var tagType core.TagType
		if s := c.String("type"); s != "" {
			if tagType, err = core.ParseTagType(s); err != nil {
				return err
			}
		}
		questions, err := searcher.SearchByTerm(ctx, c.String("term"), tagType, k)
		if err != nil {
			return err
		}
		printQuestions(questions)
		return nil

	case c.Bool("keyword"):
		if query == "" {
			return fmt.Errorf("a query is required")
		}
		questions, err := searcher.SearchText(ctx, query, category, k)
		if err != nil {
			return err
		}
		printQuestions(questions)
		return nil
	}

	var hits []core.ScoredQuestion
	if id := c.String("like"); id != "" {
		hits, err = searcher.SearchByQuestion(ctx, id, k, category != "")
	} else {
		if query == "" {
			return fmt.Errorf("a query or --like is required")
		}
		hits, err = searcher.SearchQuery(ctx, query, k, search.Filter{Category: category})
	}
	if err != nil {
		return err
	}
	return printHits(ctx, searcher, hits)
}

func printHits(ctx context.Context, searcher *search.Searcher, hits []core.ScoredQuestion) error {
	questions, err := searcher.Questions(ctx, hits)
	if err != nil {
		return err
	}
	byID := make(map[string]*core.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Printf("Found %d hits\n", len(hits))
	for i, hit := range hits {
		q, ok := byID[hit.QuestionID]
		if !ok {
			continue
		}
		fmt.Printf("%d: %s %s [%s] %s\n", i+1, yellow(fmt.Sprintf("%.3f", hit.Score)), q.ID, q.Category, q.Text)
		if q.MasterID != nil {
			fmt.Printf("   %s\n", gray("master "+*q.MasterID))
		}
	}
	return nil
}

func printQuestions(questions []*core.Question) {
	fmt.Printf("Found %d questions\n", len(questions))
	for _, q := range questions {
		fmt.Printf("  %s [%s] %s\n", q.ID, q.Category, q.Text)
	}
}

var membersCommand = &cli.Command{
	Name:      "members",
	Usage:     "Show a master question and the variants folded into it",
	ArgsUsage: "<master id>",
	Action:    membersAction,
}

func membersAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected one master ID")
	}
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	view, err := searcher.MasterWithVariants(ctx, c.Args().First())
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	m := view.Master
	fmt.Printf("\n%s\n", cyan(fmt.Sprintf("=== %s (%s, %d members) ===", m.ID, m.Category, m.ClusterSize)))
	if m.CoherenceScore != nil {
		fmt.Printf("%s\n", gray(fmt.Sprintf("coherence %.3f", *m.CoherenceScore)))
	}
	if r := view.Representative; r != nil {
		fmt.Printf("  %s %s %s\n", green("★"), r.ID, r.Text)
	}
	for _, v := range view.Variants {
		fmt.Printf("  %s %s %s\n", gray("·"), v.ID, v.Text)
	}
	fmt.Println()
	return nil
}

var statsCommand = &cli.Command{
	Name:   "stats",
	Usage:  "Show store statistics",
	Action: statsAction,
}

func statsAction(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	stats, err := searcher.Statistics(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== masterdb ==="))
	fmt.Printf("%s %d  %s %d  %s %d\n",
		yellow("Questions:"), stats.Questions, yellow("Embeddings:"), stats.Embeddings, yellow("Masters:"), stats.Masters)
	for _, category := range core.Categories {
		n := stats.QuestionsByCategory[category]
		masters := stats.MastersByCategory[category]
		reduction := 0.0
		if n > 0 && masters > 0 {
			reduction = (1 - float64(masters)/float64(n)) * 100
		}
		fmt.Printf("  %s: %d questions, %d masters (%.1f%%)\n", category, n, masters, reduction)
	}
	fmt.Printf("%s %d  %s %d\n", yellow("Terms:"), stats.Terms, yellow("Tags:"), stats.Tags)
	for _, t := range slices.Sorted(maps.Keys(stats.TermsByType)) {
		fmt.Printf("  %s: %d\n", t, stats.TermsByType[t])
	}
	for _, t := range core.TagTypes {
		fmt.Printf("  %s tags: %d\n", t, stats.TagsByType[t])
	}
	fmt.Println()
	return nil
}
