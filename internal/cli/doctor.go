package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hark/internal/config"
	"hark/internal/media"
	"hark/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check binaries, credentials and the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		header("hark doctor")
		fmt.Println()
		healthy := true

		for _, tool := range []struct{ name, hint string }{
			{"yt-dlp", "https://github.com/yt-dlp/yt-dlp#installation"},
			{"ffmpeg", "https://ffmpeg.org/download.html"},
			{"ffprobe", "ships with ffmpeg"},
		} {
			if media.LookPath(tool.name) {
				success("%s found", tool.name)
			} else {
				fail("%s not found (%s)", tool.name, tool.hint)
				healthy = false
			}
		}

		if strings.TrimSpace(settings.OpenAI.APIKey) != "" {
			success("OPENAI_API_KEY is set")
		} else {
			fail("OPENAI_API_KEY is not set")
			healthy = false
		}

		if err := config.Validate(settings); err != nil {
			fail("config invalid: %v", err)
			healthy = false
		} else {
			success("config valid")
		}

		st, err := store.NewSQLiteStore(settings.SQLitePath())
		if err != nil {
			fail("store: %v", err)
			healthy = false
		} else {
			items, listErr := st.ListMedia(cmd.Context())
			_ = st.Close()
			if listErr != nil {
				fail("store: %v", listErr)
				healthy = false
			} else {
				success("store ok (%d media indexed) at %s", len(items), settings.SQLitePath())
			}
		}

		fmt.Println()
		if !healthy {
			fail("some checks failed")
			os.Exit(ExitGenericError)
		}
		success("all checks passed")
		return nil
	},
}
