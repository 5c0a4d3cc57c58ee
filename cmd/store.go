package cmd

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/internal/server"
	"github.com/Zerofisher/megatable/pkg/store/sqlite"
)

var storeCmd = &cobra.Command{
	Use:     "store",
	Short:   "Run a local row store for development",
	GroupID: "dev",
}

var storeServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a SQLite database over the statement protocol",
	Long: `Serve a local SQLite database over the same HTTP statement protocol as the
hosted engine, so seed, serve and search can run without a cloud account.

When --token is set, clients must present it as a bearer token. Point
clients at it with --url http://localhost:8081 and the same --token.`,
	Example: `  megatable store serve --db data/local.db --token dev
  TURSO_DATABASE_URL=http://localhost:8081 TURSO_AUTH_TOKEN=dev megatable seed`,
	Args: cobra.NoArgs,
	RunE: runStoreServe,
}

var (
	storeDB   string
	storeAddr string
	storeWAL  bool
)

func init() {
	storeServeCmd.Flags().StringVar(&storeDB, "db", "data/megatable.db", `SQLite database file (":memory:" for a throwaway store)`)
	storeServeCmd.Flags().StringVar(&storeAddr, "addr", config.DefaultStoreAddr, "Listen address")
	storeServeCmd.Flags().BoolVar(&storeWAL, "wal", true, "Enable WAL journal mode")
	storeCmd.AddCommand(storeServeCmd)
}

func runStoreServe(cmd *cobra.Command, args []string) error {
	_, logger, err := setup(config.Settings{})
	if err != nil {
		return err
	}

	db, err := sqlite.New(sqlite.Config{DBPath: storeDB, WAL: storeWAL && storeDB != ":memory:"})
	if err != nil {
		return err
	}
	defer db.Close()

	ln, err := net.Listen("tcp", storeAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", storeAddr, err)
	}
	fmt.Fprintf(os.Stderr, "Serving %s at http://%s\n", db.Path(), ln.Addr())

	return server.Run(cmd.Context(), ln, sqlite.NewHandler(db, flagToken, logger), logger)
}
