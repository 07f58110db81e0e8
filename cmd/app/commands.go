package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/sojourner/internal"
	"github.com/starford/sojourner/internal/cache"
	"github.com/starford/sojourner/internal/export"
	"github.com/starford/sojourner/internal/mcpserver"
	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/schedule"
	pkgconfig "github.com/starford/sojourner/pkg/config"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:   "sojourner",
		Usage:  "Conference schedule browser with favourites, search and calendar export",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Aliases: []string{"s"},
				Usage:   "Path to the schedule XML document (overrides schedule.path)",
				Sources: cli.EnvVars("SOJOURNER_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Always parse the document and never write a snapshot",
			},
			&cli.BoolFlag{
				Name:  "user-favourites",
				Usage: "Keep favourites in the user config directory",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:  "events",
				Usage: "List events in schedule order",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "room", Usage: "Only events in this room"},
					&cli.StringFlag{Name: "track", Usage: "Only events in this track"},
					&cli.StringFlag{Name: "day", Usage: "Weekday name or ISO date"},
				},
				Action: listEvents,
			},
			{
				Name:      "show",
				Usage:     "Print the details of one event",
				ArgsUsage: "<id>",
				Action:    showEvent,
			},
			{
				Name:   "favourites",
				Usage:  "List favourite events",
				Action: listFavourites,
				Commands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Mark events as favourite",
						ArgsUsage: "<id>...",
						Action:    addFavourites,
					},
					{
						Name:      "remove",
						Usage:     "Remove events from the favourites",
						ArgsUsage: "<id>...",
						Action:    removeFavourites,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Full-text search over events",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of results"},
				},
				Action: search,
			},
			{
				Name:  "export",
				Usage: "Write favourites (or all events) as iCalendar",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Export every event instead of favourites"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				},
				Action: exportICS,
			},
			{
				Name:  "cache",
				Usage: "Manage the parsed snapshot cache",
				Commands: []*cli.Command{
					{
						Name:   "clear",
						Usage:  "Delete the snapshot so the next load parses the document",
						Action: clearCache,
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve schedule tools over MCP stdio",
				Action: serveMCP,
			},
		},
	}
}

// loadConfig reads the config file, applies the global flag overrides and
// validates the result.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if p := cmd.String("schedule"); p != "" {
		cfg.Schedule.Path = p
	}
	if cmd.Bool("no-cache") {
		cfg.Schedule.Cache = false
	}
	if cmd.Bool("user-favourites") {
		cfg.Favourites.Path = ""
		cfg.Favourites.PerUser = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openSchedule loads config and schedule for the one-shot commands. Their
// logs go to stderr so stdout carries only command output.
func openSchedule(cmd *cli.Command) (*internal.Config, *schedule.Schedule, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := internal.NewLogger(cfg.App.LogLevel, cmd.Root().ErrWriter)
	sched, err := internal.OpenSchedule(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, sched, logger, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func printSummaries(w io.Writer, events []*models.Event) {
	for i, e := range events {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s] %s\n", e.ID, e.Summary())
	}
}

func listEvents(ctx context.Context, cmd *cli.Command) error {
	_, sched, _, err := openSchedule(cmd)
	if err != nil {
		return err
	}
	printSummaries(cmd.Root().Writer, sched.Filter(cmd.String("room"), cmd.String("track"), cmd.String("day")))
	return nil
}

func showEvent(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("event id is required")
	}
	_, sched, _, err := openSchedule(cmd)
	if err != nil {
		return err
	}
	e, ok := sched.Event(id)
	if !ok {
		return fmt.Errorf("event %q not found", id)
	}
	fmt.Fprintln(cmd.Root().Writer, e.Details())
	return nil
}

func listFavourites(ctx context.Context, cmd *cli.Command) error {
	_, sched, _, err := openSchedule(cmd)
	if err != nil {
		return err
	}
	printSummaries(cmd.Root().Writer, sched.Favourites())
	return nil
}

func addFavourites(ctx context.Context, cmd *cli.Command) error {
	return mutateFavourites(cmd, (*schedule.Schedule).AddFavouriteID, "added")
}

func removeFavourites(ctx context.Context, cmd *cli.Command) error {
	return mutateFavourites(cmd, (*schedule.Schedule).RemoveFavouriteID, "removed")
}

func mutateFavourites(cmd *cli.Command, op func(*schedule.Schedule, string) (*models.Event, error), verb string) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return errors.New("at least one event id is required")
	}
	_, sched, _, err := openSchedule(cmd)
	if err != nil {
		return err
	}
	for _, id := range ids {
		e, err := op(sched, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.Root().Writer, "%s: [%s] %s\n", verb, e.ID, e.Title)
	}
	return nil
}

func search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return errors.New("search query is required")
	}
	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		return fmt.Errorf("invalid limit %d", limit)
	}

	cfg, sched, logger, err := openSchedule(cmd)
	if err != nil {
		return err
	}
	db, err := internal.OpenIndex(cfg, sched, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.Search(query, limit)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	for _, r := range results {
		fmt.Fprintf(w, "[%s] %s\n", r.ID, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", r.Snippet)
		}
	}
	return nil
}

func exportICS(ctx context.Context, cmd *cli.Command) error {
	cfg, sched, _, err := openSchedule(cmd)
	if err != nil {
		return err
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}

	name, events := "Favourites", sched.Favourites()
	if cmd.Bool("all") {
		name, events = "Schedule", sched.Events()
	}

	out := cmd.String("output")
	if out == "" {
		return export.WriteICS(cmd.Root().Writer, name, events, loc)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := export.WriteICS(f, name, events, loc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}
	return nil
}

func clearCache(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cache.New().Invalidate(cfg.Schedule.Path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "removed %s\n", cache.Path(cfg.Schedule.Path))
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, sched, logger, err := openSchedule(cmd)
	if err != nil {
		return err
	}
	db, err := internal.OpenIndex(cfg, sched, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(sched, db).ServeStdio()
}
