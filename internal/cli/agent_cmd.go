package cli

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"hark/internal/agent"
	"hark/internal/app"
	"hark/internal/pipeline"
)

var (
	flagAgentVideo string
	flagAgentModel string
)

var agentCmd = &cobra.Command{
	Use:   "agent <task>",
	Short: "Run an agent with tool access over the indexed library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := joinArgs(args)
		if err := pipeline.Preflight(settings, false); err != nil {
			return err
		}

		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		modelName := flagAgentModel
		if modelName == "" {
			modelName = settings.Agent.Model
		}

		clientCfg := openai.DefaultConfig(settings.OpenAI.APIKey)
		if settings.OpenAI.BaseURL != "" {
			clientCfg.BaseURL = settings.OpenAI.BaseURL
		}
		client := openai.NewClientWithConfig(clientCfg)

		orch := svc.Orchestrator()
		a := agent.New(client, modelName, agent.NewToolContext(orch.Store(), orch.Embedder())).
			WithMaxIterations(settings.Agent.MaxIterations)

		var extraContext string
		if flagAgentVideo != "" {
			extraContext = "Focus on the media with ID " + flagAgentVideo
		}

		resp, err := a.Run(cmd.Context(), task, extraContext)
		if err != nil {
			return err
		}

		fmt.Println(resp.Content)
		if len(resp.ToolCalls) > 0 {
			fmt.Println()
			dim("%d tool calls in %d iterations:", len(resp.ToolCalls), resp.Iterations)
			for _, call := range resp.ToolCalls {
				dim("  %s", call)
			}
		}
		return nil
	},
}

func init() {
	agentCmd.Flags().StringVar(&flagAgentVideo, "video", "", "scope the task to one media id")
	agentCmd.Flags().StringVar(&flagAgentModel, "model", "", "chat model override")
}
