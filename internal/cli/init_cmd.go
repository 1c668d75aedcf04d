package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hark/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup: write a config file and check prerequisites",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		header("hark init")
		fmt.Println()

		cfg := config.Default()
		reader := bufio.NewReader(os.Stdin)

		if os.Getenv("OPENAI_API_KEY") == "" {
			warn("OPENAI_API_KEY is not set; export it or put it in a .env file")
		} else {
			success("OPENAI_API_KEY found")
		}

		provider := prompt(reader, "Transcription provider (whisper/fusion)", string(cfg.Transcription.Provider))
		if provider == string(config.ProviderFusion) {
			cfg.Transcription.Provider = config.ProviderFusion
		}

		strategy := prompt(reader, "Chunking strategy (semantic/temporal/hybrid)", cfg.Chunking.Strategy)
		switch strategy {
		case "semantic", "temporal", "hybrid":
			cfg.Chunking.Strategy = strategy
		}

		dataDir := prompt(reader, "Data directory", cfg.General.DataDir)
		if dataDir != "" {
			cfg.General.DataDir = dataDir
			cfg.Store.SQLitePath = strings.TrimSuffix(dataDir, "/") + "/index.db"
		}

		path := flagConfigPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		success("wrote %s", path)
		dim("run `hark doctor` to verify external tools")
		return nil
	},
}

func prompt(reader *bufio.Reader, label, fallback string) string {
	fmt.Printf("%s [%s]: ", label, fallback)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fallback
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	return line
}
