package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"docrag/internal/service"
)

var labelStyle = lipgloss.NewStyle().Bold(true).Width(14)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show what the vector store holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := newStore(a.cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()
			stats, err := service.StoreStats(cmd.Context(), store)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, labelStyle.Render("Store:")+a.cfg.Store.Type+" "+a.cfg.Store.Location)
			fmt.Fprintln(out, labelStyle.Render("Records:")+strconv.Itoa(stats.Records))
			fmt.Fprintln(out, labelStyle.Render("Fingerprints:")+strconv.Itoa(stats.Fingerprints))
			return nil
		},
	}
}
