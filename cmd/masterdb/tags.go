package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/poiesic/masterdb"
	"github.com/poiesic/masterdb/core"
	"github.com/urfave/cli/v2"
)

var suggestCommand = &cli.Command{
	Name:      "suggest",
	Usage:     "Suggest taxonomy tags for a question",
	ArgsUsage: "<question id>",
	Action:    suggestAction,
}

func suggestAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected one question ID")
	}
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	tagger, err := db.NewAutoTagger()
	if err != nil {
		return err
	}
	suggestions, err := tagger.SuggestTags(ctx, c.Args().First())
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n", cyan("=== Suggestions for "+c.Args().First()+" ==="))
	for _, tagType := range core.TagTypes {
		list := suggestions[tagType]
		fmt.Printf("%s\n", tagType)
		if len(list) == 0 {
			fmt.Printf("  %s\n", gray("none"))
			continue
		}
		for _, s := range list {
			detail := string(s.Source)
			if s.Source == core.ProvenanceSimilar {
				detail = fmt.Sprintf("%s, %d votes, avg %.3f", s.Source, s.VoteCount, s.AvgSimilarity)
			}
			fmt.Printf("  %s %s (#%d) %s\n", green(fmt.Sprintf("%.2f", s.Confidence)), s.Term, s.TermID, gray(detail))
		}
	}
	fmt.Println()
	return nil
}

var tagCommand = &cli.Command{
	Name:      "tag",
	Usage:     "Attach a taxonomy term to a question",
	ArgsUsage: "<question id> <term>",
	Action:    tagAction,
	Flags: []cli.Flag{
		&cli.Float64Flag{
			Name:  "confidence",
			Usage: "Confidence recorded with the tag",
			Value: 1.0,
		},
	},
}

func tagAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected a question ID and a term")
	}
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	term, tagType, err := resolveTerm(ctx, db, c.Args().Get(1))
	if err != nil {
		return err
	}
	tagger, err := db.NewAutoTagger()
	if err != nil {
		return err
	}
	if err := tagger.ApplyTag(ctx, c.Args().First(), term.ID, tagType, c.Float64("confidence"), false); err != nil {
		return err
	}
	fmt.Printf("Tagged %s with %s %q\n", c.Args().First(), tagType, term.Term)
	return nil
}

var untagCommand = &cli.Command{
	Name:      "untag",
	Usage:     "Remove a taxonomy term from a question",
	ArgsUsage: "<question id> <term>",
	Action:    untagAction,
}

func untagAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected a question ID and a term")
	}
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	term, tagType, err := resolveTerm(ctx, db, c.Args().Get(1))
	if err != nil {
		return err
	}
	tagger, err := db.NewAutoTagger()
	if err != nil {
		return err
	}
	if err := tagger.RemoveTag(ctx, c.Args().First(), term.ID, tagType); err != nil {
		return err
	}
	fmt.Printf("Removed %s %q from %s\n", tagType, term.Term, c.Args().First())
	return nil
}

// resolveTerm finds a term and the tag type matching its level.
func resolveTerm(ctx context.Context, db *masterdb.Database, text string) (*core.TaxonomyTerm, core.TagType, error) {
	term, err := db.Taxonomy().FindTerm(ctx, text)
	if err != nil {
		return nil, "", fmt.Errorf("term %q: %w", text, err)
	}
	return term, core.TagTypeFor(term.Type), nil
}

var autoTagCommand = &cli.Command{
	Name:   "auto-tag",
	Usage:  "Apply the top suggestion to questions missing a tag type",
	Action: autoTagAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "type",
			Usage: "Tag type to fill (themes, concepts, aspects)",
			Value: string(core.TagTypeThemes),
		},
		&cli.Float64Flag{
			Name:  "min-confidence",
			Usage: "Minimum confidence of an applied suggestion",
			Value: 0.8,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of questions to process (0 for all)",
		},
	},
}

func autoTagAction(c *cli.Context) error {
	ctx := context.Background()

	tagType, err := core.ParseTagType(c.String("type"))
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	tagger, err := db.NewAutoTagger()
	if err != nil {
		return err
	}
	n, err := tagger.AutoTagUntagged(ctx, tagType, c.Float64("min-confidence"), c.Int("limit"))
	if err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %d %s tags\n", green("Applied"), n, tagType)
	return nil
}
