package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/pipeline"
)

var (
	flagSearchLimit    int
	flagSearchMinScore float32
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed library by semantic similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := joinArgs(args)
		if err := pipeline.Preflight(settings, false); err != nil {
			return err
		}

		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		chunks, err := svc.Search(cmd.Context(), query, flagSearchLimit, flagSearchMinScore)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			dim("no results above score %.2f", flagSearchMinScore)
			return nil
		}

		for i, c := range chunks {
			header(fmt.Sprintf("%d. %s @ %s (score %.2f)", i+1, c.MediaTitle, c.Timestamp, c.Score))
			fmt.Println(c.Content)
			if c.URL != "" {
				dim("%s", c.URL)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchLimit, "limit", 5, "maximum results")
	searchCmd.Flags().Float32Var(&flagSearchMinScore, "min-score", 0.3, "minimum similarity score")
}
