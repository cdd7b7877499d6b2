package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/poiesic/masterdb/config"
	"github.com/poiesic/masterdb/taxonomy"
	"github.com/urfave/cli/v2"
)

var initCommand = &cli.Command{
	Name:   "init",
	Usage:  "Write a default configuration file",
	Action: initAction,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Overwrite an existing file",
		},
	},
}

func initAction(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

var seedTaxonomyCommand = &cli.Command{
	Name:   "seed-taxonomy",
	Usage:  "Load the THEME -> CONCEPT -> ASPECT vocabulary",
	Action: seedTaxonomyAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "YAML seed file (defaults to the built-in seed)",
		},
		&cli.BoolFlag{
			Name:  "legacy-tag",
			Usage: "Tag questions from their category and legacy mid/sub labels",
		},
	},
}

func seedTaxonomyAction(c *cli.Context) error {
	ctx := context.Background()

	var (
		seed *taxonomy.Seed
		err  error
	)
	if path := c.String("file"); path != "" {
		seed, err = taxonomy.LoadSeed(path)
	} else {
		seed, err = taxonomy.DefaultSeed()
	}
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	manager, err := db.NewTaxonomyManager()
	if err != nil {
		return err
	}
	report, err := manager.Seed(ctx, seed)
	if err != nil {
		return err
	}
	fmt.Printf("Terms added: %d, existing: %d, relations: %d\n",
		report.TermsAdded, report.TermsExisting, report.Relations)

	if c.Bool("legacy-tag") {
		n, err := manager.TagLegacy(ctx, seed)
		if err != nil {
			return err
		}
		fmt.Printf("Legacy tags created: %d\n", n)
	}
	return nil
}

var treeCommand = &cli.Command{
	Name:   "tree",
	Usage:  "Print the taxonomy hierarchy",
	Action: treeAction,
}

func treeAction(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	manager, err := db.NewTaxonomyManager()
	if err != nil {
		return err
	}
	roots, err := manager.Tree(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	for _, theme := range roots {
		fmt.Printf("%s %s\n", cyan(theme.Term.Term), gray(fmt.Sprintf("(%d)", theme.Term.UsageCount)))
		for _, concept := range theme.Children {
			fmt.Printf("  %s %s\n", yellow(concept.Term.Term), gray(fmt.Sprintf("(%d)", concept.Term.UsageCount)))
			for _, aspect := range concept.Children {
				fmt.Printf("    %s %s\n", aspect.Term.Term, gray(fmt.Sprintf("(%d)", aspect.Term.UsageCount)))
			}
		}
	}

	orphans, err := manager.Orphans(ctx)
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("\n%s\n", red("Unattached terms:"))
		for _, t := range orphans {
			fmt.Printf("  %s %s\n", t.Type, t.Term)
		}
	}
	return nil
}
