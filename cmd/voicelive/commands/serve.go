package commands

import (
	"github.com/spf13/cobra"

	"github.com/stylehub-project/news-sub000/pkg/hostapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve archived sessions and metrics over HTTP",
	Long: `Serve the session archive over HTTP.

Routes:
  GET    /healthz
  GET    /metrics
  GET    /v1/sessions[?limit=n]
  GET    /v1/sessions/{id}
  DELETE /v1/sessions/{id}
  GET    /v1/sessions/{id}/recording
  GET    /v1/live
  GET    /v1/events[?session=id]   (websocket)

To watch a live conversation, run 'voicelive talk --listen :8080' instead;
it serves the same routes while the session runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := rt.server()
		return srv.Serve(cmd.Context(), serveAddr)
	},
}

func (r *runtime) server() *hostapi.Server {
	return hostapi.New(hostapi.Options{
		Archive:  r.archive,
		Files:    r.files,
		Gatherer: r.registry,
	})
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}
