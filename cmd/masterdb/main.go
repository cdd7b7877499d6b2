// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/masterdb"
	"github.com/poiesic/masterdb/config"
	"github.com/urfave/cli/v2"
)

const defaultConfigFile = "masterdb.yaml"

func main() {
	app := &cli.App{
		Name:  "masterdb",
		Usage: "Semantic deduplication and ontology tagging of survey questions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   defaultConfigFile,
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Override the SQLite database path",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			initCommand,
			seedTaxonomyCommand,
			treeCommand,
			importCommand,
			embedCommand,
			classifyCommand,
			clusterCommand,
			searchCommand,
			membersCommand,
			statsCommand,
			suggestCommand,
			tagCommand,
			untagCommand,
			autoTagCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file. A missing default file yields
// the built-in defaults; a missing explicit file is an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !c.IsSet("config"):
		cfg = config.Default()
	default:
		return nil, err
	}

	if db := c.String("db"); db != "" {
		cfg.Database.Path = db
	}
	return cfg, nil
}

// openDatabase loads the configuration and opens the database it describes.
func openDatabase(c *cli.Context) (*masterdb.Database, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return openWithConfig(cfg)
}

func openWithConfig(cfg *config.Config) (*masterdb.Database, error) {
	db, err := masterdb.NewDatabase(cfg, masterdb.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
