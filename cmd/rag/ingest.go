package main

import (
	"github.com/spf13/cobra"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Add documents to the vector store",
		Long: `Extracts each document, skips chunks whose text is already stored, and
embeds and stores the rest. Each document is ingested on its own; a failure
stops at that document and leaves earlier ones stored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer p.Close()
			for _, path := range args {
				if _, err := p.Ingest(cmd.Context(), path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
