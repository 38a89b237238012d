package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/klop2495/art-grants-agent/internal/ai"
	"github.com/klop2495/art-grants-agent/internal/config"
	"github.com/klop2495/art-grants-agent/internal/extract"
	"github.com/klop2495/art-grants-agent/internal/fetch"
	"github.com/klop2495/art-grants-agent/internal/pipeline"
	"github.com/klop2495/art-grants-agent/internal/registry"
	"github.com/klop2495/art-grants-agent/internal/sources"
	"github.com/klop2495/art-grants-agent/internal/state"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agent",
		Short:         "Ingest grant and residency announcements into the registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newStateCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one full ingest cycle over all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			reg, err := sources.LoadRegistry(cfg.SourcesPath)
			if err != nil {
				return fmt.Errorf("loading sources: %w", err)
			}

			store, err := state.Open(cfg.StatePath)
			if err != nil {
				return fmt.Errorf("opening state: %w", err)
			}
			defer store.Close()

			var searcher sources.Searcher
			if searxURL := os.Getenv("AGENT_SEARCH_URL"); searxURL != "" {
				searcher = sources.NewSearxSearcher(searxURL)
			}

			p := &pipeline.Pipeline{
				Cfg:     cfg,
				Fetcher: fetch.NewHTTPFetcher(cfg.FetchTimeout),
				Resolver: &sources.Resolver{
					Fetcher:  fetch.NewCollyFetcher(),
					Searcher: searcher,
				},
				Engine: extract.NewEngine(
					ai.NewOllamaClient(cfg.OllamaBaseURL, cfg.GenModel),
					extract.DefaultRetryPolicy(cfg.MaxAttempts),
					cfg.MarkupBudget,
				),
				Registry: registry.NewClient(cfg.RegistryBaseURL, cfg.RegistryAPIKey),
				State:    store,
				Delay:    cfg.ItemDelay,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := p.Run(ctx, reg)
			if stats != nil {
				printStats(stats)
			}
			return err
		},
	}
}

func printStats(s *pipeline.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("run %s (%s)", s.RunID, s.Finished.Sub(s.Started).Round(time.Second))
	t.AppendRow(table.Row{"pages fetched", s.Fetched})
	t.AppendRow(table.Row{"records extracted", s.Extracted})
	t.AppendRow(table.Row{"created", s.Created})
	t.AppendRow(table.Row{"updated", s.Updated})
	t.AppendRow(table.Row{"stale dropped", s.StaleDropped})
	t.AppendRow(table.Row{"skipped (recent)", s.SkippedRecent})
	t.AppendRow(table.Row{"skipped (deleted)", s.SkippedDeleted})
	t.AppendRow(table.Row{"remove requests honored", s.RemoveRequests})
	t.AppendRow(table.Row{"errors", s.Errored})
	t.SetStyle(table.StyleLight)
	t.Render()
}

func newStateCmd() *cobra.Command {
	var statePath string

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or edit the local sync state",
	}
	stateCmd.PersistentFlags().StringVar(&statePath, "state", "",
		"state path (defaults to AGENT_STATE_PATH or .agent-state)")

	resolvePath := func() string {
		if statePath != "" {
			return statePath
		}
		if v := os.Getenv("AGENT_STATE_PATH"); v != "" {
			return v
		}
		return ".agent-state"
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List processed items and the deleted set",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := state.Open(resolvePath())
			if err != nil {
				return err
			}
			defer store.Close()

			insp, ok := store.(state.Inspector)
			if !ok {
				return fmt.Errorf("state backend does not support inspection")
			}

			processed := insp.Processed()
			ids := make([]string, 0, len(processed))
			for id := range processed {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"external id", "last processed"})
			for _, id := range ids {
				t.AppendRow(table.Row{id, processed[id].Format("2006-01-02 15:04:05")})
			}
			t.SetStyle(table.StyleLight)
			t.Render()

			deleted := insp.Deleted()
			fmt.Printf("\n%d deleted item(s)\n", len(deleted))
			for _, id := range deleted {
				fmt.Println(" ", id)
			}
			return nil
		},
	}

	markDeleted := &cobra.Command{
		Use:   "mark-deleted <external-id>",
		Short: "Add an item to the sticky deleted set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := state.Open(resolvePath())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.MarkDeleted(args[0]); err != nil {
				return err
			}
			log.Printf("[state] %s marked deleted", args[0])
			return nil
		},
	}

	stateCmd.AddCommand(show, markDeleted)
	return stateCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
