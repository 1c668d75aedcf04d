package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"hark/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Print(config.Describe(settings))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration key (e.g. chunking.strategy temporal)",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := config.Set(&settings, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(settings, flagConfigPath); err != nil {
			return err
		}
		success("set %s = %s", args[0], args[1])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		path := flagConfigPath
		if path == "" {
			path = config.DefaultPath()
		}
		fmt.Println(path)
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the configuration in $EDITOR",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		path := flagConfigPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := config.Save(settings, path); err != nil {
				return err
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		cmd := exec.Command(editor, path)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
}
