package main

import (
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query> [k]",
		Short: "Answer a question from the stored documents",
		Long: `Retrieves the k chunks most similar to the query (default from
retrieval.default_k) and answers from them. Nothing is ingested.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer p.Close()
			rawK := ""
			if len(args) > 1 {
				rawK = args[1]
			}
			_, err = p.Ask(cmd.Context(), args[0], p.ParseK(rawK))
			return err
		},
	}
}
