package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/internal/app"
	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the paginated search API",
	Long: `Serve the read API over HTTP:

  GET /data?search=<term>&cursor=<id>&limit=<n>   Paginated summaries
  GET /data/{id}                                  Full record
  GET /healthz                                    Liveness

Pages are ordered by id; pass nextCursor back as cursor to continue.`,
	Example: `  megatable serve
  megatable serve --addr 127.0.0.1:9000 --detail-cache 10000`,
	GroupID: "query",
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

var (
	serveAddr          string
	serveCaseSensitive bool
	serveMaxLimit      int
	serveDetailCache   int
)

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", fmt.Sprintf("Listen address (default %s)", config.DefaultAddr))
	serveCmd.Flags().BoolVar(&serveCaseSensitive, "case-sensitive", false, "Match search terms case-sensitively")
	serveCmd.Flags().IntVar(&serveMaxLimit, "max-limit", 0, "Largest accepted page size (default 1000)")
	serveCmd.Flags().IntVar(&serveDetailCache, "detail-cache", 0, "Cache up to n full records in memory (0 = off)")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, logger, err := setup(config.Settings{
		Server: config.ServerSettings{
			Addr:          serveAddr,
			CaseSensitive: serveCaseSensitive,
			MaxLimit:      serveMaxLimit,
			DetailCache:   serveDetailCache,
		},
	})
	if err != nil {
		return err
	}
	client, err := app.OpenStore(settings)
	if err != nil {
		return err
	}
	svc, err := app.NewQueryService(client, settings)
	if err != nil {
		return err
	}

	logger.Info("serving records", "addr", settings.Server.Addr, "store", client.Endpoint(), "source", settings.Source)
	return server.New(svc, logger).ListenAndServe(cmd.Context(), settings.Server.Addr)
}
