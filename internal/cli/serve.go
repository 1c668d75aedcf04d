package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/httpapi"
	"hark/internal/pipeline"
)

var (
	flagServeHost string
	flagServePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP JSON API",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := pipeline.Preflight(settings, true); err != nil {
			return err
		}

		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		addr := fmt.Sprintf("%s:%d", flagServeHost, flagServePort)
		header("hark API server")
		success("listening on http://%s", addr)
		fmt.Println()
		kv("Health", "GET  /health")
		kv("Transcribe", "POST /transcribe")
		kv("Search", "POST /search")
		kv("Ask (RAG)", "POST /ask")
		kv("List media", "GET  /media")
		kv("Get media", "GET  /media/{id}")

		return httpapi.NewServer(svc).ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeHost, "host", "127.0.0.1", "bind host")
	serveCmd.Flags().IntVar(&flagServePort, "port", 8080, "bind port")
}
