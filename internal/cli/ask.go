package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/pipeline"
	"hark/internal/rag"
)

var (
	flagAskModel     string
	flagAskMaxChunks int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question answered from the indexed library with citations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := joinArgs(args)
		if err := pipeline.Preflight(settings, false); err != nil {
			return err
		}

		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		resp, err := svc.Ask(cmd.Context(), question, flagAskMaxChunks, flagAskModel)
		if err != nil {
			return err
		}

		fmt.Println(resp.Answer)
		if len(resp.Sources) > 0 {
			fmt.Println()
			header("Sources")
			fmt.Println(rag.FormatContextForDisplay(resp.Sources))
		}
		return nil
	},
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func init() {
	askCmd.Flags().StringVar(&flagAskModel, "model", "", "chat model override")
	askCmd.Flags().IntVar(&flagAskMaxChunks, "max-chunks", 0, "maximum context chunks (0 = configured default)")
}
