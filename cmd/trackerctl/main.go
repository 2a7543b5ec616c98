// main.go - Admin control tool for the tracker
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracker/internal"
	"tracker/internal/cruncher"
	"tracker/internal/seeder"
	"tracker/internal/timeframe"
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&StatsCommand{},
	&SeriesCommand{},
	&FlushCommand{},
	&PurgeCacheCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	cmdName, args := parseArgs(flag.Args())

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	if _, ok := cmd.(*HelpCommand); ok {
		if err := cmd.Execute(ctx, nil, args); err != nil {
			log.Fatalf("Command failed: %v", err)
		}
		return
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	err = cmd.Execute(ctx, app, args)
	if closeErr := app.Close(); closeErr != nil {
		log.Printf("Warning: Cleanup error: %v", closeErr)
	}
	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app.DBManager == nil {
		return fmt.Errorf("no database manager, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// StatsCommand prints the visit summary and the relative window counts
type StatsCommand struct{}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Description() string { return "Shows visit counts for the site" }

func (c *StatsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	locale := fs.String("locale", "", "restrict counts to one locale")
	format := fs.String("format", "", "output format: table, json or yaml (default table on a terminal, json otherwise)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := buildStatsReport(ctx, app.Cruncher, cruncher.Filter{Locale: *locale})
	if err != nil {
		return err
	}
	report.Locale = *locale

	return render(os.Stdout, resolveFormat(*format, os.Stdout), report)
}

func buildStatsReport(ctx context.Context, c *cruncher.Cruncher, f cruncher.Filter) (statsReport, error) {
	var report statsReport

	last, ok, err := c.LastVisited(ctx, f)
	if err != nil {
		return report, err
	}
	if ok {
		report.LastVisited = &last
	}

	if report.Total, err = c.TotalVisitCount(ctx, f); err != nil {
		return report, err
	}
	if report.Today, err = c.TodayCount(ctx, f); err != nil {
		return report, err
	}

	for _, unit := range []timeframe.Unit{timeframe.Day, timeframe.Week, timeframe.Month, timeframe.Year} {
		n, err := c.RelativeCount(ctx, unit, time.Time{}, f)
		if err != nil {
			return report, err
		}
		report.Relative = append(report.Relative, relativeCount{Unit: unit.String(), Count: n})
	}

	return report, nil
}

// SeriesCommand prints visit counts bucketed per calendar unit
type SeriesCommand struct{}

func (c *SeriesCommand) Name() string        { return "series" }
func (c *SeriesCommand) Description() string { return "Shows visits per day, week or month between two dates" }

func (c *SeriesCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <day|week|month|year> -from DATE [-until DATE]", c.Name())
	}

	unit, err := timeframe.ParseUnit(args[0])
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	fromFlag := fs.String("from", "", "first day of the series (YYYY-MM-DD or RFC3339)")
	untilFlag := fs.String("until", "", "last day of the series, defaults to today")
	locale := fs.String("locale", "", "restrict counts to one locale")
	format := fs.String("format", "", "output format: table, json or yaml")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	loc := app.Config.Location()
	from, err := timeframe.ParseInstant(*fromFlag, loc)
	if err != nil {
		return err
	}
	if from.IsZero() {
		return fmt.Errorf("-from is required")
	}
	until, err := timeframe.ParseEndInstant(*untilFlag, loc)
	if err != nil {
		return err
	}

	series, err := app.Cruncher.CountPer(ctx, unit, from, until, cruncher.Filter{Locale: *locale})
	if err != nil {
		return err
	}

	return render(os.Stdout, resolveFormat(*format, os.Stdout), newSeriesReport(series))
}

// FlushCommand deletes recorded views
type FlushCommand struct{}

func (c *FlushCommand) Name() string        { return "flush" }
func (c *FlushCommand) Description() string { return "Deletes recorded views older than or between dates" }

func (c *FlushCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	untilFlag := fs.String("until", "", "delete views created up to this date")
	fromFlag := fs.String("from", "", "only delete views created on or after this date")
	all := fs.Bool("all", false, "delete every recorded view")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		deleted int64
		err     error
	)

	if *all {
		deleted, err = app.Views.FlushAll(ctx)
	} else {
		loc := app.Config.Location()
		var until, from time.Time
		if until, err = timeframe.ParseEndInstant(*untilFlag, loc); err != nil {
			return err
		}
		if until.IsZero() {
			return fmt.Errorf("-until or -all is required")
		}
		if from, err = timeframe.ParseInstant(*fromFlag, loc); err != nil {
			return err
		}
		deleted, err = app.Views.FlushOlderThanOrBetween(ctx, until, from)
	}
	if err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	log.Printf("Deleted %d views", deleted)
	return nil
}

// PurgeCacheCommand drops every memoized count
type PurgeCacheCommand struct{}

func (c *PurgeCacheCommand) Name() string        { return "purge-cache" }
func (c *PurgeCacheCommand) Description() string { return "Removes all cached counts" }

func (c *PurgeCacheCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	purged, err := app.Cache.Purge(ctx)
	if err != nil {
		return fmt.Errorf("cache purge failed: %w", err)
	}

	log.Printf("Purged %d cache entries", purged)
	return nil
}

// SeedCommand populates the DB with sample views
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample views" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	count := fs.Int("views", 1000, "number of views to generate")
	days := fs.Int("days", 90, "spread views over this many past days")
	host := fs.String("host", "example.com", "host used in generated URLs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	se := seeder.NewSeeder(app.Views, app.Logger, *count)
	se.Days = *days
	se.Host = *host

	return se.Run(ctx)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	total, err := app.Views.Query().Count(ctx)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	sqlDB, err := app.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Views: %d", total)
	log.Printf("- Cache driver: %s (enabled: %t)", app.Config.CacheDriver, app.Config.CacheEnabled)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage(os.Stdout)
	return nil
}

// Helper functions

// parseArgs splits the command name from its arguments
func parseArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: trackerctl [command] [args...]")
	fmt.Fprintln(w, "Available commands:")

	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage(os.Stdout)
	os.Exit(1)
}
