package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/pipeline"
	"hark/internal/rag"
)

var flagChatModel string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation over the indexed library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := pipeline.Preflight(settings, false); err != nil {
			return err
		}

		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		engine := svc.NewChatEngine(flagChatModel)

		header("hark chat")
		dim("/clear resets the conversation, /quit exits")
		fmt.Println()

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
				continue
			case line == "/quit" || line == "/exit":
				return nil
			case line == "/clear":
				engine.ClearHistory()
				dim("history cleared")
				continue
			}

			resp, err := engine.Chat(cmd.Context(), line)
			if err != nil {
				fail("%v", err)
				continue
			}

			fmt.Println()
			fmt.Println(resp.Answer)
			if len(resp.Sources) > 0 {
				fmt.Println()
				dim("%s", rag.FormatContextForDisplay(resp.Sources))
			}
			fmt.Println()
		}
	},
}

func init() {
	chatCmd.Flags().StringVar(&flagChatModel, "model", "", "chat model override")
}
