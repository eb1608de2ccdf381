package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docrag/internal/config"
	"docrag/internal/logger"
	"docrag/internal/service"
	"docrag/internal/tui"
)

// app carries the state shared by every command.
type app struct {
	cfgPath   string
	storeFlag string
	verbose   bool

	cfg *config.AppConfig
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "rag [path] [query] [k]",
		Short: "Ask questions about your documents",
		Long: `Ingests a document (.txt, .docx, .pdf, .xlsx) into a persistent vector
store, skipping chunks already stored, then answers the query from the top-k
most similar chunks. Without a query an interactive screen opens.`,
		Args:          cobra.MaximumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		RunE: a.runRoot,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to YAML config (default ./config.yaml, then ~/.config/rag/config.yaml)")
	root.PersistentFlags().StringVar(&a.storeFlag, "store", "", "vector store location (overrides store.location)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug diagnostics to stderr")

	root.AddCommand(newIngestCmd(a), newAskCmd(a), newStatsCmd(a))
	return root
}

func (a *app) load() error {
	var err error
	if a.cfgPath == "" {
		a.cfg, _, err = config.LoadDefault()
	} else {
		a.cfg, err = config.Load(a.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.storeFlag != "" {
		a.cfg.Store.Location = a.storeFlag
	}
	level := a.cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	a.log, err = logger.New(level, a.cfg.Log.Format)
	return err
}

func (a *app) runRoot(cmd *cobra.Command, args []string) error {
	var path, query, rawK string
	if len(args) > 0 {
		path = args[0]
	}
	if len(args) > 1 {
		query = args[1]
	}
	if len(args) > 2 {
		rawK = args[2]
	}

	p, err := a.pipeline(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer p.Close()

	if query != "" {
		_, err := p.Run(cmd.Context(), path, query, rawK)
		return err
	}

	if path == "" {
		path = a.cfg.SourcePath
	}
	summary := "Store: " + a.cfg.Store.Location
	if path != "" {
		report, err := p.Ingest(cmd.Context(), path)
		if err != nil {
			return err
		}
		summary = fmt.Sprintf("%s: %d chunks, %d new, %d duplicates", report.Source, report.Chunks, report.Inserted, report.Duplicates)
	}
	p.SetOutput(io.Discard)
	m := tui.New(cmd.Context(), p, summary, a.cfg.Retrieval.DefaultK)
	_, err = tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
	return err
}

func (a *app) pipeline(out io.Writer) (*service.Pipeline, error) {
	return build(a.cfg, a.log, out)
}
