package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/app"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/config"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/metrics"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/store"
)

type recordsCommand struct {
	Limit  int    `short:"n" long:"limit" description:"Maximum number of rows to parse (negative = all)" default:"-1"`
	Format string `short:"f" long:"format" description:"Output format: json, jsonl, csv, markdown" default:"json"`
	Output string `short:"o" long:"output" description:"Output base file path (timestamp suffix appended); stdout when empty"`
	Save   bool   `long:"save" description:"Replace the stored domain snapshot with the fetched records"`

	FromSnapshot bool `long:"from-snapshot" description:"Render the stored domain snapshot instead of fetching the feed"`
}

type historyCommand struct {
	Limit int `short:"n" long:"limit" description:"Number of runs to show" default:"20"`
}

type commands struct {
	records recordsCommand
	history historyCommand
}

func main() {
	var cmds commands

	parser := flags.NewParser(&struct{}{}, flags.Default)
	parser.LongDescription = app.Description
	parser.AddCommand("download", "Download the feed CSV", "Runs download_domains_csv and prints the written path.", &struct{}{})
	parser.AddCommand("records", "Fetch and print domain records", "Runs get_domain_records and renders the rows.", &cmds.records)
	parser.AddCommand("health", "Check connector health", "Runs check_health against the loaded configuration.", &struct{}{})
	parser.AddCommand("history", "List recent runs", "Prints the most recent operation runs from the history database.", &cmds.history)
	parser.AddCommand("serve", "Serve the HTTP API", "Exposes the operations, health and metrics over HTTP.", &struct{}{})

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, parser.Active.Name, &cmds); err != nil {
		stop()
		log.Fatalf("error: %v", err)
	}
}

func run(ctx context.Context, command string, cmds *commands) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries command output, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if command == "health" {
		return app.Health(cfg, os.Stdout)
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	st, err := store.NewStore(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("new store: %w", err)
	}
	defer st.Close()

	if err := app.PruneHistory(ctx, cfg, st); err != nil {
		slog.Warn("failed to prune history", "error", err)
	}

	conn := app.NewConnector(cfg, st, m)
	defer conn.Close()

	switch command {
	case "download":
		return app.Download(ctx, cfg, conn, os.Stdout)
	case "records":
		return app.Records(ctx, cfg, conn, st, app.RecordsOptions{
			Limit:  cmds.records.Limit,
			Format: cmds.records.Format,
			Output: cmds.records.Output,
			Save:   cmds.records.Save,

			FromSnapshot: cmds.records.FromSnapshot,
		}, os.Stdout)
	case "history":
		return app.History(ctx, st, cmds.history.Limit, os.Stdout)
	case "serve":
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		return app.Serve(ctx, cfg, conn, reg)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
